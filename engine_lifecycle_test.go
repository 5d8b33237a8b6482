package mfacore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisableAndReEnableKeepsEnrollment(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	result := setupEnabledUser(t, engine, clk, "u1")

	if err := engine.DisableMFA(ctx, "u1"); err != nil {
		t.Fatalf("DisableMFA failed: %v", err)
	}
	settings, err := engine.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.State != StateDisabled {
		t.Fatalf("expected disabled state, got %s", settings.State)
	}
	if settings.TOTPSecret == "" || len(settings.BackupCodeHashes) == 0 {
		t.Fatal("disable must keep the secret and backup digests")
	}

	if err := engine.EnableMFA(ctx, "u1"); err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}

	// The original enrollment works again without a new setup flow.
	clk.Advance(time.Duration(engine.config.TOTP.Period) * time.Second)
	code := codeAt(t, result.Secret, engine.config.TOTP, clk.Now())
	if _, err := engine.Verify(ctx, "u1", code, MethodTOTP); err != nil {
		t.Fatalf("Verify after re-enable failed: %v", err)
	}
}

func TestDisableMFARequiresEnabled(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if err := engine.DisableMFA(ctx, "u1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := engine.DisableMFA(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	if _, err := engine.SetupMFA(ctx, "u1", "alice@example.com"); err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	if err := engine.DisableMFA(ctx, "u1"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled before confirmation, got %v", err)
	}
}

func TestEnableMFATransitions(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if err := engine.EnableMFA(ctx, "u1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := engine.SetupMFA(ctx, "u1", "alice@example.com"); err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	// Unconfirmed setup cannot be enabled directly.
	if err := engine.EnableMFA(ctx, "u1"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled for unconfirmed setup, got %v", err)
	}

	setupEnabledUser(t, engine, clk, "u2")
	if err := engine.EnableMFA(ctx, "u2"); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled, got %v", err)
	}

	if err := engine.DisableMFA(ctx, "u2"); err != nil {
		t.Fatalf("DisableMFA failed: %v", err)
	}
	if err := engine.EnableMFA(ctx, "u2", Method("smoke-signal")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown method, got %v", err)
	}
	if err := engine.EnableMFA(ctx, "u2", MethodSMS); err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}
	settings, err := engine.GetSettings(ctx, "u2")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.State != StateEnabled {
		t.Fatalf("expected enabled state, got %s", settings.State)
	}
	if !settings.HasMethod(MethodSMS) {
		t.Fatalf("expected sms added to allowed set, got %v", settings.Methods)
	}
}

func TestGetSettingsReturnsCopy(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	setupEnabledUser(t, engine, clk, "u1")

	if _, err := engine.GetSettings(ctx, "missing"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	settings, err := engine.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	settings.State = StateDisabled
	settings.Methods[0] = MethodEmail

	again, err := engine.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if again.State != StateEnabled || again.Methods[0] == MethodEmail {
		t.Fatal("mutating a returned settings copy must not affect the engine")
	}
}
