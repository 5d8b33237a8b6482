package mfacore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RegenerateBackupCodes replaces the user's entire backup-code batch with a
// fresh one and returns the new plaintext codes. Every previously issued
// code stops working atomically with the swap. The user must be in the
// enabled state; callers are expected to gate this behind a recent
// authentication.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	codes, hashes, err := generateBackupCodes(userID, e.config.BackupCodes.Count, e.config.BackupCodes.Length)
	if err != nil {
		return nil, err
	}

	err = e.settings.Mutate(ctx, userID, func(s *Settings) error {
		if s.State != StateEnabled {
			return ErrNotEnabled
		}
		s.BackupCodeHashes = append([][32]byte(nil), hashes...)
		s.addMethod(MethodBackup)
		return nil
	})
	if errors.Is(err, ErrSettingsNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricBackupCodesRegenerated)
	e.emit(ctx, EventBackupCodesRegenerated, userID, MethodBackup, true, nil,
		map[string]string{"count": fmt.Sprintf("%d", len(codes))})
	e.log().Info("backup codes regenerated",
		zap.String("user_id", userID),
		zap.Int("count", len(codes)),
	)

	return codes, nil
}
