package mfacore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/okalin/mfacore/internal"
)

// SendChallenge generates a numeric one-time code, hands it to the
// ChannelDispatcher for delivery, and records its digest as the user's
// pending challenge. Issuing a new challenge invalidates any previous one for
// the user, regardless of method.
//
// Dispatch happens before the challenge is recorded: a delivery failure
// returns ErrChannelDispatchFailed and leaves no pending challenge, so a code
// that was never sent can never be consumed.
func (e *Engine) SendChallenge(ctx context.Context, userID string, method Method) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if method != MethodSMS && method != MethodEmail {
		return fmt.Errorf("%w: method %q is not an out-of-band channel", ErrInvalidArgument, method)
	}

	record, err := e.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return ErrNotConfigured
		}
		return err
	}
	if record.State != StateEnabled {
		return ErrNotEnabled
	}

	var destination string
	switch method {
	case MethodSMS:
		destination = record.PhoneNumber
	case MethodEmail:
		destination = record.Email
	}
	if destination == "" || e.dispatcher == nil {
		return ErrChannelNotConfigured
	}

	code, err := internal.NewOTP(e.config.Challenge.Digits)
	if err != nil {
		return fmt.Errorf("generate challenge code: %w", err)
	}

	if err := e.dispatcher.Dispatch(ctx, method, destination, code); err != nil {
		e.metrics.Inc(MetricChallengeDispatchFailed)
		e.emit(ctx, EventChallengeSent, userID, method, false, err, nil)
		e.log().Warn("challenge dispatch failed",
			zap.String("user_id", userID),
			zap.String("method", string(method)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrChannelDispatchFailed, err)
	}

	now := e.now()
	challenge := &Challenge{
		UserID:    userID,
		Method:    method,
		CodeHash:  challengeCodeHash(userID, code),
		ExpiresAt: now.Add(e.config.Challenge.TTL).Unix(),
	}
	if err := e.challenges.Save(ctx, challenge, e.config.Challenge.TTL); err != nil {
		// The code is in flight but unredeemable. The caller should retry,
		// which issues a fresh code.
		return err
	}

	e.metrics.Inc(MetricChallengeSent)
	e.emit(ctx, EventChallengeSent, userID, method, true, nil, nil)
	e.log().Debug("challenge sent",
		zap.String("user_id", userID),
		zap.String("method", string(method)),
	)

	return nil
}
