package mfacore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Verify checks a submitted token for the given method. On success it returns
// a transient [VerificationResult] and stamps the settings record's
// LastUsedAt; on failure it returns a nil result and an error.
//
// TOTP and out-of-band failures are uniformly ErrInvalidToken: a wrong code,
// a missing challenge, an expired challenge, and a replayed time-step are not
// distinguishable by the caller. Backup-code failures are the exception and
// stay distinct (ErrInvalidBackupCode, ErrBackupCodesExhausted) because the
// caller must be able to tell the user to regenerate.
func (e *Engine) Verify(ctx context.Context, userID, token string, method Method) (*VerificationResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if !method.valid() {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidArgument, method)
	}

	record, err := e.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	if record.State != StateEnabled {
		return nil, ErrNotEnabled
	}

	now := e.now()

	switch method {
	case MethodTOTP:
		err = e.verifyTOTP(ctx, record, token, now)
	case MethodSMS, MethodEmail:
		err = e.verifyChallenge(ctx, userID, method, token, now)
	case MethodBackup:
		err = e.verifyBackupCode(ctx, userID, token)
	}

	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		return nil, err
	}

	if mutErr := e.touchLastUsed(ctx, userID, now); mutErr != nil {
		e.log().Warn("last-used stamp failed",
			zap.String("user_id", userID),
			zap.Error(mutErr),
		)
	}

	e.metrics.Inc(MetricVerifySuccess)
	e.emit(ctx, EventVerifySuccess, userID, method, true, nil, nil)

	return &VerificationResult{
		UserID:    userID,
		Method:    method,
		Timestamp: now.UTC(),
		Valid:     true,
	}, nil
}

func (e *Engine) verifyTOTP(ctx context.Context, record *Settings, token string, now time.Time) error {
	ok, counter, err := e.totp.VerifyCode(record.TOTPSecret, token, now)
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.Inc(MetricTOTPFailure)
		e.emit(ctx, EventVerifyFailure, record.UserID, MethodTOTP, false, ErrInvalidToken, nil)
		return ErrInvalidToken
	}

	if e.config.TOTP.EnforceReplayProtection {
		replay := false
		err := e.settings.Mutate(ctx, record.UserID, func(s *Settings) error {
			if counter <= s.TOTPLastUsedCounter {
				replay = true
				return nil
			}
			s.TOTPLastUsedCounter = counter
			return nil
		})
		if err != nil {
			return err
		}
		if replay {
			e.metrics.Inc(MetricTOTPReplayRejected)
			e.emit(ctx, EventVerifyFailure, record.UserID, MethodTOTP, false, ErrInvalidToken,
				map[string]string{"reason": "replay"})
			return ErrInvalidToken
		}
	}

	e.metrics.Inc(MetricTOTPSuccess)
	return nil
}

func (e *Engine) verifyChallenge(ctx context.Context, userID string, method Method, token string, now time.Time) error {
	matched, err := e.challenges.ConsumeIfMatch(ctx, userID, method, challengeCodeHash(userID, token), now)
	if errors.Is(err, ErrChallengeExpired) {
		e.metrics.Inc(MetricChallengeExpired)
		e.metrics.Inc(MetricChallengeFailure)
		e.emit(ctx, EventVerifyFailure, userID, method, false, ErrInvalidToken,
			map[string]string{"reason": "expired"})
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if !matched {
		e.metrics.Inc(MetricChallengeFailure)
		e.emit(ctx, EventVerifyFailure, userID, method, false, ErrInvalidToken, nil)
		return ErrInvalidToken
	}

	e.metrics.Inc(MetricChallengeSuccess)
	return nil
}

func (e *Engine) verifyBackupCode(ctx context.Context, userID, token string) error {
	canonical := canonicalizeBackupCode(token)
	if canonical == "" {
		e.metrics.Inc(MetricBackupCodeFailed)
		return ErrInvalidBackupCode
	}

	consumed, remaining, err := e.settings.ConsumeBackupCode(ctx, userID, backupCodeHash(userID, canonical))
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return ErrNotConfigured
		}
		return err
	}
	if !consumed {
		if remaining == 0 {
			e.metrics.Inc(MetricBackupCodesExhausted)
			e.emit(ctx, EventVerifyFailure, userID, MethodBackup, false, ErrBackupCodesExhausted, nil)
			return ErrBackupCodesExhausted
		}
		e.metrics.Inc(MetricBackupCodeFailed)
		e.emit(ctx, EventVerifyFailure, userID, MethodBackup, false, ErrInvalidBackupCode, nil)
		return ErrInvalidBackupCode
	}

	e.metrics.Inc(MetricBackupCodeUsed)
	if remaining <= 2 {
		e.log().Warn("backup codes running low",
			zap.String("user_id", userID),
			zap.Int("remaining", remaining),
		)
	}
	return nil
}

func (e *Engine) touchLastUsed(ctx context.Context, userID string, now time.Time) error {
	return e.settings.Mutate(ctx, userID, func(s *Settings) error {
		s.LastUsedAt = now.UTC()
		return nil
	})
}
