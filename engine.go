package mfacore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the multi-factor authentication core. All methods are safe for
// concurrent use. Construct one through [New] and [Builder.Build].
type Engine struct {
	config     Config
	settings   SettingsStore
	challenges ChallengeStore
	dispatcher ChannelDispatcher
	events     *eventDispatcher
	metrics    *Metrics
	totp       *totpManager
	logger     *zap.Logger
	now        func() time.Time
}

// Close flushes the event pipeline. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.events.Close()
}

// Metrics returns a snapshot of every engine counter.
func (e *Engine) Metrics() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// MetricValue reads one counter without snapshotting the registry.
func (e *Engine) MetricValue(id MetricID) uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Value(id)
}

// EventsDropped reports how many events were discarded by a full buffer.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

// GetSettings returns a copy of the user's MFA settings, or ErrNotConfigured
// when the user has never started setup.
func (e *Engine) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	record, err := e.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	return record, nil
}

func (e *Engine) emit(ctx context.Context, eventType, userID string, method Method, success bool, opErr error, metadata map[string]string) {
	event := Event{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Method:    method,
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.events.Emit(ctx, event)
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}
