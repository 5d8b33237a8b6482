// Package mfacore provides an embeddable multi-factor authentication
// verification core: per-user TOTP provisioning and drift-tolerant code
// verification, single-use backup codes, and out-of-band (SMS/email) numeric
// challenges with expiry, coordinated by a lifecycle-aware orchestrator.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// mfacore is the public surface. It exposes [Engine], [Builder], [Config],
// value types (Settings, SetupResult, VerificationResult), the capability
// interfaces ([ChannelDispatcher], [SettingsStore], [ChallengeStore],
// [EventSink]), and the sentinel error set. Supporting primitives live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Deliver SMS or email itself. Delivery is the caller's
//     [ChannelDispatcher] capability; the engine only generates codes and
//     tracks the pending challenge.
//   - Own durable persistence. The built-in stores (in-memory, Redis) satisfy
//     the [SettingsStore] and [ChallengeStore] contracts; callers may replace
//     them with any implementation that honors the same atomicity guarantees.
//   - Perform HTTP routing, session management, or password handling.
//
// # Security contract
//
// Plaintext TOTP secrets and backup codes exist only in the [SetupResult]
// and [Engine.RegenerateBackupCodes] return values; the stores only ever see
// the base32 secret and one-way digests. Code comparisons are constant-time.
// A successfully verified TOTP time-step is recorded per user and cannot be
// replayed inside the acceptance window while replay protection is enabled.
package mfacore
