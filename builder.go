package mfacore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Dependencies are optional: with no stores
// configured the engine runs on in-memory stores, and with no dispatcher the
// SMS/email methods return ErrChannelNotConfigured at send time.
type Builder struct {
	config Config
	redis  *redis.Client

	settingsStore  SettingsStore
	challengeStore ChallengeStore
	dispatcher     ChannelDispatcher
	eventSink      EventSink
	logger         *zap.Logger
	now            func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration wholesale. The config is
// validated at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs both stores with Redis. Explicit WithSettingsStore or
// WithChallengeStore calls take precedence over the client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithSettingsStore(store SettingsStore) *Builder {
	b.settingsStore = store
	return b
}

func (b *Builder) WithChallengeStore(store ChallengeStore) *Builder {
	b.challengeStore = store
	return b
}

// WithDispatcher provides the delivery capability for SMS and email
// challenges.
func (b *Builder) WithDispatcher(d ChannelDispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithEventSink receives lifecycle and verification events asynchronously.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithLogger attaches a structured logger. Without one the engine is silent.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine's time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	settings := b.settingsStore
	challenges := b.challengeStore
	if b.redis != nil {
		if settings == nil {
			settings = NewRedisSettingsStore(b.redis)
		}
		if challenges == nil {
			challenges = NewRedisChallengeStore(b.redis)
		}
	}
	if settings == nil {
		settings = NewMemorySettingsStore()
	}
	if challenges == nil {
		challenges = NewMemoryChallengeStore()
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:     cfg,
		settings:   settings,
		challenges: challenges,
		dispatcher: b.dispatcher,
		events:     newEventDispatcher(cfg.Events, b.eventSink),
		metrics:    NewMetrics(cfg.Metrics),
		totp:       newTOTPManager(cfg.TOTP),
		logger:     logger,
		now:        now,
	}

	b.built = true

	return engine, nil
}
