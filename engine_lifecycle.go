package mfacore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DisableMFA switches verification off without destroying the enrollment.
// The secret and backup-code digests are kept so [Engine.EnableMFA] restores
// protection without a new setup flow. Any pending out-of-band challenge is
// discarded.
func (e *Engine) DisableMFA(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	err := e.settings.Mutate(ctx, userID, func(s *Settings) error {
		if s.State != StateEnabled {
			return ErrNotEnabled
		}
		s.State = StateDisabled
		return nil
	})
	if errors.Is(err, ErrSettingsNotFound) {
		return ErrNotConfigured
	}
	if err != nil {
		return err
	}

	// A pending challenge must not outlive the enabled state. Best effort:
	// a failure here leaves an entry that expires on its own TTL.
	if _, delErr := e.challenges.Delete(ctx, userID); delErr != nil {
		e.log().Warn("challenge cleanup failed on disable",
			zap.String("user_id", userID),
			zap.Error(delErr),
		)
	}

	e.metrics.Inc(MetricDisabled)
	e.emit(ctx, EventDisabled, userID, "", true, nil, nil)
	e.log().Info("mfa disabled", zap.String("user_id", userID))

	return nil
}

// EnableMFA reactivates a previously disabled enrollment, optionally adding
// methods to the allowed set. An enrollment that never completed setup cannot
// be enabled this way; it needs [Engine.VerifySetup].
func (e *Engine) EnableMFA(ctx context.Context, userID string, methods ...Method) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	for _, m := range methods {
		if !m.valid() {
			return fmt.Errorf("%w: unknown method %q", ErrInvalidArgument, m)
		}
	}

	err := e.settings.Mutate(ctx, userID, func(s *Settings) error {
		switch s.State {
		case StateEnabled:
			return ErrAlreadyEnabled
		case StateSetupInitiated:
			return ErrNotEnabled
		}
		s.State = StateEnabled
		for _, m := range methods {
			s.addMethod(m)
		}
		return nil
	})
	if errors.Is(err, ErrSettingsNotFound) {
		return ErrNotConfigured
	}
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricEnabled)
	e.emit(ctx, EventEnabled, userID, "", true, nil, nil)
	e.log().Info("mfa re-enabled", zap.String("user_id", userID))

	return nil
}
