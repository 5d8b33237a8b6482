package mfacore

import "errors"

var (
	// ErrNotConfigured is returned when an operation requires a prior SetupMFA
	// call and no settings record exists for the user.
	ErrNotConfigured = errors.New("mfa not configured")
	// ErrAlreadyEnabled is returned when setup or enable is attempted for a
	// user whose MFA is already active (or soft-disabled with a live secret).
	ErrAlreadyEnabled = errors.New("mfa already enabled")
	// ErrNotEnabled is returned when a verification or challenge operation is
	// attempted before the setup code has been confirmed, or while MFA is
	// disabled.
	ErrNotEnabled = errors.New("mfa not enabled")
	// ErrInvalidSecret is returned when a stored TOTP secret is not valid
	// base32 material.
	ErrInvalidSecret = errors.New("invalid totp secret encoding")
	// ErrInvalidToken is returned for every token-level mismatch: wrong TOTP
	// code, wrong or missing out-of-band code, expired challenge, or a replay
	// of an already-accepted time-step. The causes are deliberately not
	// distinguishable by the caller.
	ErrInvalidToken = errors.New("invalid verification token")
	// ErrChallengeExpired is returned by ChallengeStore implementations when a
	// pending challenge exists but its TTL has elapsed. Engine.Verify folds it
	// into ErrInvalidToken; the distinction survives only in event metadata.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChannelNotConfigured is returned when SendChallenge targets a method
	// whose destination (phone number, email) has not been registered.
	ErrChannelNotConfigured = errors.New("channel destination not configured")
	// ErrChannelDispatchFailed is returned when the ChannelDispatcher reports
	// a delivery failure. No challenge is recorded; the caller may retry.
	ErrChannelDispatchFailed = errors.New("channel dispatch failed")
	// ErrInvalidBackupCode is returned when a submitted backup code matches no
	// stored digest.
	ErrInvalidBackupCode = errors.New("invalid backup code")
	// ErrBackupCodesExhausted is returned when the stored digest set is empty;
	// the user must regenerate codes through an authenticated channel.
	ErrBackupCodesExhausted = errors.New("backup codes exhausted")
	// ErrSettingsNotFound is the sentinel SettingsStore implementations return
	// for an absent user record. The engine maps it to ErrNotConfigured.
	ErrSettingsNotFound = errors.New("mfa settings not found")
	// ErrInvalidArgument is returned for malformed inputs: empty user IDs,
	// unknown methods, empty account labels or destinations.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// engine or before a required dependency was provided to the Builder.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable wraps backend failures from the settings or
	// challenge store.
	ErrStoreUnavailable = errors.New("mfa store unavailable")
)
