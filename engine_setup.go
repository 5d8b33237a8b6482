package mfacore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SetupMFA provisions a fresh TOTP secret and backup-code batch for the user
// and leaves the record in the setup-initiated state. Verification stays
// inactive until [Engine.VerifySetup] confirms the first code.
//
// A repeated call while setup is still unconfirmed discards the previous
// secret and starts over; a call for a user whose MFA is enabled or disabled
// returns ErrAlreadyEnabled. The returned plaintext secret and backup codes
// exist only in this result and are never retrievable again.
func (e *Engine) SetupMFA(ctx context.Context, userID, accountLabel string, methods ...Method) (*SetupResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if strings.TrimSpace(accountLabel) == "" {
		return nil, fmt.Errorf("%w: empty account label", ErrInvalidArgument)
	}
	for _, m := range methods {
		if !m.valid() {
			return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidArgument, m)
		}
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	codes, hashes, err := generateBackupCodes(userID, e.config.BackupCodes.Count, e.config.BackupCodes.Length)
	if err != nil {
		return nil, err
	}

	record := &Settings{
		UserID:           userID,
		State:            StateSetupInitiated,
		Methods:          []Method{MethodTOTP, MethodBackup},
		TOTPSecret:       secret,
		BackupCodeHashes: hashes,
		CreatedAt:        e.now().UTC(),
	}
	for _, m := range methods {
		record.addMethod(m)
	}

	// An existing record is only replaced under the store's per-user
	// serialization, with the lifecycle state re-checked inside the critical
	// section. An unconditional put could clobber an enrollment that a
	// concurrent VerifySetup just confirmed.
	err = e.settings.Mutate(ctx, userID, func(s *Settings) error {
		if s.State != StateSetupInitiated {
			return ErrAlreadyEnabled
		}
		*s = *record.Clone()
		return nil
	})
	switch {
	case errors.Is(err, ErrSettingsNotFound):
		if err := e.settings.Put(ctx, record); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	e.metrics.Inc(MetricSetupInitiated)
	e.emit(ctx, EventSetupInitiated, userID, MethodTOTP, true, nil, nil)
	e.log().Debug("mfa setup initiated", zap.String("user_id", userID))

	return &SetupResult{
		Secret:          secret,
		ProvisioningURI: e.totp.ProvisionURI(secret, accountLabel),
		BackupCodes:     codes,
	}, nil
}

// VerifySetup confirms the provisioned secret with a first TOTP code and
// activates MFA. The matched time-step seeds replay tracking so the setup
// code cannot be reused for a login.
func (e *Engine) VerifySetup(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	record, err := e.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return ErrNotConfigured
		}
		return err
	}
	if record.State != StateSetupInitiated {
		return ErrAlreadyEnabled
	}

	ok, counter, err := e.totp.VerifyCode(record.TOTPSecret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.Inc(MetricTOTPFailure)
		e.emit(ctx, EventVerifyFailure, userID, MethodTOTP, false, ErrInvalidToken, map[string]string{"phase": "setup"})
		return ErrInvalidToken
	}

	now := e.now().UTC()
	verifiedSecret := record.TOTPSecret
	err = e.settings.Mutate(ctx, userID, func(s *Settings) error {
		if s.State != StateSetupInitiated {
			return ErrAlreadyEnabled
		}
		// A setup restart may have swapped the secret between the code
		// check and this critical section. Enabling here would activate a
		// secret whose code was never confirmed.
		if s.TOTPSecret != verifiedSecret {
			return ErrInvalidToken
		}
		s.State = StateEnabled
		s.LastUsedAt = now
		s.TOTPLastUsedCounter = counter
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return ErrNotConfigured
		}
		return err
	}

	e.metrics.Inc(MetricSetupCompleted)
	e.metrics.Inc(MetricEnabled)
	e.emit(ctx, EventSetupCompleted, userID, MethodTOTP, true, nil, nil)
	e.emit(ctx, EventEnabled, userID, "", true, nil, nil)
	e.log().Info("mfa enabled", zap.String("user_id", userID))

	return nil
}

// AddPhoneNumber registers the SMS destination and adds the sms method to the
// user's allowed set. The record may be in any lifecycle state.
func (e *Engine) AddPhoneNumber(ctx context.Context, userID, phoneNumber string) error {
	return e.addDestination(ctx, userID, MethodSMS, phoneNumber)
}

// AddEmail registers the email destination and adds the email method to the
// user's allowed set.
func (e *Engine) AddEmail(ctx context.Context, userID, email string) error {
	return e.addDestination(ctx, userID, MethodEmail, email)
}

func (e *Engine) addDestination(ctx context.Context, userID string, method Method, destination string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("%w: empty %s destination", ErrInvalidArgument, method)
	}

	err := e.settings.Mutate(ctx, userID, func(s *Settings) error {
		switch method {
		case MethodSMS:
			s.PhoneNumber = strings.TrimSpace(destination)
		case MethodEmail:
			s.Email = strings.TrimSpace(destination)
		}
		s.addMethod(method)
		return nil
	})
	if errors.Is(err, ErrSettingsNotFound) {
		return ErrNotConfigured
	}
	if err != nil {
		return err
	}

	e.log().Debug("mfa destination registered",
		zap.String("user_id", userID),
		zap.String("method", string(method)),
		zap.Int("destination_len", len(destination)),
	)
	return nil
}
