package mfacore

import (
	"context"
	"time"
)

// Method identifies a verification method routed by [Engine.Verify].
type Method string

const (
	// MethodTOTP verifies against the user's provisioned authenticator secret.
	MethodTOTP Method = "totp"
	// MethodSMS verifies against a pending out-of-band challenge sent by SMS.
	MethodSMS Method = "sms"
	// MethodEmail verifies against a pending out-of-band challenge sent by email.
	MethodEmail Method = "email"
	// MethodBackup redeems a single-use recovery code.
	MethodBackup Method = "backup"
)

func (m Method) valid() bool {
	switch m {
	case MethodTOTP, MethodSMS, MethodEmail, MethodBackup:
		return true
	}
	return false
}

// State is the per-user MFA lifecycle state. Absence of a settings record is
// the implicit "not configured" state.
type State uint8

const (
	// StateSetupInitiated means a secret has been provisioned but the first
	// TOTP code has not yet been confirmed.
	StateSetupInitiated State = iota + 1
	// StateEnabled means setup was confirmed and verification is active.
	StateEnabled
	// StateDisabled means MFA was explicitly switched off. The secret and
	// backup-code digests are retained so re-enabling needs no new setup.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateSetupInitiated:
		return "setup_initiated"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	}
	return "unknown"
}

// Settings is the persisted per-user MFA record. Plaintext backup codes are
// never part of it; only their digests are stored.
type Settings struct {
	UserID              string
	State               State
	Methods             []Method
	TOTPSecret          string // base32, no padding
	TOTPLastUsedCounter int64
	PhoneNumber         string
	Email               string
	BackupCodeHashes    [][32]byte
	LastUsedAt          time.Time // zero until the first successful verification
	CreatedAt           time.Time
}

// Clone returns a deep copy so callers and stores never alias the same
// backing slices.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.Methods = append([]Method(nil), s.Methods...)
	out.BackupCodeHashes = append([][32]byte(nil), s.BackupCodeHashes...)
	return &out
}

// HasMethod reports whether m is in the allowed-methods set.
func (s *Settings) HasMethod(m Method) bool {
	for _, have := range s.Methods {
		if have == m {
			return true
		}
	}
	return false
}

func (s *Settings) addMethod(m Method) {
	if !s.HasMethod(m) {
		s.Methods = append(s.Methods, m)
	}
}

// SetupResult carries the one-time plaintext material returned by
// [Engine.SetupMFA]. It is never retrievable again.
type SetupResult struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// VerificationResult is the transient outcome of a Verify call. It is never
// persisted.
type VerificationResult struct {
	UserID    string
	Method    Method
	Timestamp time.Time
	Valid     bool
}

// Challenge is a pending out-of-band verification code for one user. At most
// one challenge exists per user; issuing a new one overwrites the old.
type Challenge struct {
	UserID    string
	Method    Method
	CodeHash  [32]byte
	ExpiresAt int64 // unix seconds
}

// ChannelDispatcher is the delivery capability the caller must implement for
// SMS/email challenges. A nil return means the provider accepted the message;
// any error is surfaced as ErrChannelDispatchFailed and no challenge is
// recorded.
type ChannelDispatcher interface {
	Dispatch(ctx context.Context, method Method, destination, code string) error
}

// SettingsStore is the durable keyed store for per-user MFA settings.
// Implementations must honor the atomicity contract: Mutate serializes
// read-modify-write per user, and ConsumeBackupCode removes at most one
// matching digest even under concurrent calls for the same user.
type SettingsStore interface {
	// Get returns a copy of the user's settings, or ErrSettingsNotFound.
	Get(ctx context.Context, userID string) (*Settings, error)
	// Put creates or replaces the user's settings record.
	Put(ctx context.Context, settings *Settings) error
	// Mutate applies fn to the current record under per-user serialization
	// and persists the result. It returns ErrSettingsNotFound when no record
	// exists, and any error returned by fn unchanged without persisting.
	Mutate(ctx context.Context, userID string, fn func(*Settings) error) error
	// ConsumeBackupCode atomically removes the digest if present. It reports
	// whether a digest was removed and how many remain afterwards.
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (consumed bool, remaining int, err error)
}

// ChallengeStore tracks the single pending out-of-band challenge per user.
type ChallengeStore interface {
	// Save records the challenge, overwriting any prior one for the user.
	Save(ctx context.Context, ch *Challenge, ttl time.Duration) error
	// ConsumeIfMatch atomically deletes the pending challenge and returns
	// true when one exists for the user, its method matches, it has not
	// expired at now, and the code hash matches exactly. A stale entry is
	// lazily discarded and reported as (false, ErrChallengeExpired). All
	// other mismatches return (false, nil) with no mutation.
	ConsumeIfMatch(ctx context.Context, userID string, method Method, codeHash [32]byte, now time.Time) (bool, error)
	// Delete removes any pending challenge for the user.
	Delete(ctx context.Context, userID string) (bool, error)
}
