package mfacore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestBackupCodeRedemptionIsSingleUse(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	result := setupEnabledUser(t, engine, clk, "u1")
	code := result.BackupCodes[0]

	verification, err := engine.Verify(ctx, "u1", code, MethodBackup)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verification.Valid || verification.Method != MethodBackup {
		t.Fatalf("unexpected verification result: %+v", verification)
	}

	if _, err := engine.Verify(ctx, "u1", code, MethodBackup); !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("expected redeemed code to be rejected, got %v", err)
	}

	settings, err := engine.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(settings.BackupCodeHashes) != 9 {
		t.Fatalf("expected 9 digests remaining, got %d", len(settings.BackupCodeHashes))
	}
}

func TestBackupCodeAcceptsSloppyInput(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	result := setupEnabledUser(t, engine, clk, "u1")

	// Uppercase, no dash, surrounding whitespace.
	sloppy := " " + strings.ToUpper(canonicalizeBackupCode(result.BackupCodes[0])) + " "
	if _, err := engine.Verify(ctx, "u1", sloppy, MethodBackup); err != nil {
		t.Fatalf("Verify with sloppy input failed: %v", err)
	}
}

func TestBackupCodeRejectsUnknownAndEmpty(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	setupEnabledUser(t, engine, clk, "u1")

	if _, err := engine.Verify(ctx, "u1", "zzzz-zzzz", MethodBackup); !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("expected ErrInvalidBackupCode, got %v", err)
	}
	if _, err := engine.Verify(ctx, "u1", "  ", MethodBackup); !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("expected ErrInvalidBackupCode for empty input, got %v", err)
	}
}

func TestBackupCodeExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.BackupCodes.Count = 2
	engine, clk, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	result := setupEnabledUser(t, engine, clk, "u1")
	for _, code := range result.BackupCodes {
		if _, err := engine.Verify(ctx, "u1", code, MethodBackup); err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
	}

	if _, err := engine.Verify(ctx, "u1", result.BackupCodes[0], MethodBackup); !errors.Is(err, ErrBackupCodesExhausted) {
		t.Fatalf("expected ErrBackupCodesExhausted, got %v", err)
	}
}

func TestBackupCodeConcurrentRedemption(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	result := setupEnabledUser(t, engine, clk, "u1")
	code := result.BackupCodes[0]

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Verify(ctx, "u1", code, MethodBackup); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", count)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.RegenerateBackupCodes(ctx, "u1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	result := setupEnabledUser(t, engine, clk, "u1")

	fresh, err := engine.RegenerateBackupCodes(ctx, "u1")
	if err != nil {
		t.Fatalf("RegenerateBackupCodes failed: %v", err)
	}
	if len(fresh) != 10 {
		t.Fatalf("expected 10 fresh codes, got %d", len(fresh))
	}

	// The old batch stops working, the new one works.
	if _, err := engine.Verify(ctx, "u1", result.BackupCodes[0], MethodBackup); !errors.Is(err, ErrInvalidBackupCode) {
		t.Fatalf("expected old code to be rejected, got %v", err)
	}
	if _, err := engine.Verify(ctx, "u1", fresh[0], MethodBackup); err != nil {
		t.Fatalf("fresh code must verify, got %v", err)
	}
}

func TestRegenerateBackupCodesRequiresEnabled(t *testing.T) {
	engine, clk, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.SetupMFA(ctx, "u1", "alice@example.com"); err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	if _, err := engine.RegenerateBackupCodes(ctx, "u1"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled before confirmation, got %v", err)
	}

	setupEnabledUser(t, engine, clk, "u2")
	if err := engine.DisableMFA(ctx, "u2"); err != nil {
		t.Fatalf("DisableMFA failed: %v", err)
	}
	if _, err := engine.RegenerateBackupCodes(ctx, "u2"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled while disabled, got %v", err)
	}
}
