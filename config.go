package mfacore

import (
	"fmt"
	"strings"
	"time"
)

// Config is the engine configuration. Zero values are filled with defaults by
// [New]; a fully custom Config goes through [Builder.WithConfig] and is
// validated at Build time.
type Config struct {
	TOTP        TOTPConfig
	BackupCodes BackupCodeConfig
	Challenge   ChallengeConfig
	Events      EventConfig
	Metrics     MetricsConfig
}

// TOTPConfig controls secret provisioning and code verification.
type TOTPConfig struct {
	Issuer     string
	Digits     int
	Period     int // seconds per time-step
	Algorithm  string
	Skew       int // accepted steps on each side of now
	SecretSize int // raw secret bytes before base32 encoding

	// EnforceReplayProtection records the last accepted time-step per user
	// and rejects a repeat of that step inside the acceptance window.
	EnforceReplayProtection bool
}

// BackupCodeConfig controls recovery-code batches.
type BackupCodeConfig struct {
	Count  int
	Length int // hex characters per code, before formatting
}

// ChallengeConfig controls out-of-band numeric challenges.
type ChallengeConfig struct {
	Digits int
	TTL    time.Duration
}

// EventConfig controls the async lifecycle-event pipeline.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking Engine calls when the
	// buffer is full. Dropped events are counted, see Engine.EventsDropped.
	DropIfFull bool
}

// MetricsConfig controls the atomic counter registry.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:                  "mfacore",
			Digits:                  6,
			Period:                  30,
			Algorithm:               "SHA1",
			Skew:                    1,
			SecretSize:              20,
			EnforceReplayProtection: true,
		},
		BackupCodes: BackupCodeConfig{
			Count:  10,
			Length: 8,
		},
		Challenge: ChallengeConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone point exists so reference
	// fields added later cannot leak caller aliasing into the engine.
	return cfg
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.TOTP.Issuer) == "" {
		return fmt.Errorf("totp issuer must not be empty")
	}
	if strings.Contains(cfg.TOTP.Issuer, ":") {
		return fmt.Errorf("totp issuer must not contain a colon")
	}
	if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 10 {
		return fmt.Errorf("totp digits must be in [6,10], got %d", cfg.TOTP.Digits)
	}
	if cfg.TOTP.Period <= 0 {
		return fmt.Errorf("totp period must be positive, got %d", cfg.TOTP.Period)
	}
	if cfg.TOTP.Skew < 0 || cfg.TOTP.Skew > 10 {
		return fmt.Errorf("totp skew must be in [0,10], got %d", cfg.TOTP.Skew)
	}
	switch strings.ToUpper(cfg.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("unsupported totp algorithm %q", cfg.TOTP.Algorithm)
	}
	if cfg.TOTP.SecretSize < 20 {
		// 160 bits minimum, per RFC 4226 recommendations.
		return fmt.Errorf("totp secret size must be at least 20 bytes, got %d", cfg.TOTP.SecretSize)
	}
	if cfg.BackupCodes.Count < 1 || cfg.BackupCodes.Count > 64 {
		return fmt.Errorf("backup code count must be in [1,64], got %d", cfg.BackupCodes.Count)
	}
	if cfg.BackupCodes.Length < 8 {
		// 8 hex characters = 32 bits of entropy per code.
		return fmt.Errorf("backup code length must be at least 8, got %d", cfg.BackupCodes.Length)
	}
	if cfg.Challenge.Digits < 6 || cfg.Challenge.Digits > 10 {
		return fmt.Errorf("challenge digits must be in [6,10], got %d", cfg.Challenge.Digits)
	}
	if cfg.Challenge.TTL <= 0 {
		return fmt.Errorf("challenge ttl must be positive, got %s", cfg.Challenge.TTL)
	}
	if cfg.Events.Enabled && cfg.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", cfg.Events.BufferSize)
	}
	return nil
}
