package mfacore

import (
	"sync/atomic"
)

// MetricID identifies one engine counter. IDs are dense and stable within a
// release so exporters can iterate [MetricDefinitions].
type MetricID uint16

const (
	MetricSetupInitiated MetricID = iota
	MetricSetupCompleted
	MetricEnabled
	MetricDisabled
	MetricChallengeSent
	MetricChallengeDispatchFailed
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricTOTPReplayRejected
	MetricChallengeSuccess
	MetricChallengeFailure
	MetricChallengeExpired
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricBackupCodesExhausted
	MetricBackupCodesRegenerated
	MetricVerifySuccess
	MetricVerifyFailure
	metricIDCount
)

// MetricDefinition describes one counter for exporters.
type MetricDefinition struct {
	ID          MetricID
	Name        string
	Description string
}

// MetricDefinitions returns the full counter catalog in MetricID order.
func MetricDefinitions() []MetricDefinition {
	return []MetricDefinition{
		{MetricSetupInitiated, "mfa_setup_initiated_total", "MFA setup flows started"},
		{MetricSetupCompleted, "mfa_setup_completed_total", "MFA setup flows confirmed with a valid code"},
		{MetricEnabled, "mfa_enabled_total", "Transitions into the enabled state"},
		{MetricDisabled, "mfa_disabled_total", "Transitions into the disabled state"},
		{MetricChallengeSent, "mfa_challenge_sent_total", "Out-of-band challenge codes dispatched"},
		{MetricChallengeDispatchFailed, "mfa_challenge_dispatch_failed_total", "Out-of-band dispatch attempts that failed"},
		{MetricTOTPSuccess, "mfa_totp_success_total", "Accepted TOTP codes"},
		{MetricTOTPFailure, "mfa_totp_failure_total", "Rejected TOTP codes"},
		{MetricTOTPReplayRejected, "mfa_totp_replay_rejected_total", "TOTP codes rejected as replays of an accepted time-step"},
		{MetricChallengeSuccess, "mfa_challenge_success_total", "Accepted out-of-band challenge codes"},
		{MetricChallengeFailure, "mfa_challenge_failure_total", "Rejected out-of-band challenge codes"},
		{MetricChallengeExpired, "mfa_challenge_expired_total", "Challenge verifications that hit an expired code"},
		{MetricBackupCodeUsed, "mfa_backup_code_used_total", "Backup codes redeemed"},
		{MetricBackupCodeFailed, "mfa_backup_code_failed_total", "Backup code attempts that matched nothing"},
		{MetricBackupCodesExhausted, "mfa_backup_codes_exhausted_total", "Backup code attempts against an empty batch"},
		{MetricBackupCodesRegenerated, "mfa_backup_codes_regenerated_total", "Backup code batches regenerated"},
		{MetricVerifySuccess, "mfa_verify_success_total", "Verification attempts that succeeded, any method"},
		{MetricVerifyFailure, "mfa_verify_failure_total", "Verification attempts that failed, any method"},
	}
}

const cacheLineSize = 64

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size registry of atomic counters. A nil or disabled
// registry is a no-op on every method.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
