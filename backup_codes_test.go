package mfacore

import (
	"strings"
	"testing"
)

func TestBackupCodeFormatAndCanonicalize(t *testing.T) {
	if got := formatBackupCode("a1b2c3d4"); got != "a1b2-c3d4" {
		t.Fatalf("unexpected formatted code %q", got)
	}

	cases := map[string]string{
		"a1b2-c3d4":   "a1b2c3d4",
		"A1B2-C3D4":   "a1b2c3d4",
		" a1b2 c3d4 ": "a1b2c3d4",
		"a1b2c3d4":    "a1b2c3d4",
	}
	for input, want := range cases {
		if got := canonicalizeBackupCode(input); got != want {
			t.Fatalf("canonicalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBackupCodeHashIsUserBound(t *testing.T) {
	a := backupCodeHash("u1", "a1b2c3d4")
	b := backupCodeHash("u2", "a1b2c3d4")
	if a == b {
		t.Fatal("digests for different users must differ")
	}
	if a != backupCodeHash("u1", "a1b2c3d4") {
		t.Fatal("digest must be deterministic")
	}
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, hashes, err := generateBackupCodes("u1", 10, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}
	if len(codes) != 10 || len(hashes) != 10 {
		t.Fatalf("expected 10 codes and digests, got %d/%d", len(codes), len(hashes))
	}

	seen := make(map[string]struct{}, len(codes))
	for i, code := range codes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("unexpected display format %q", code)
		}
		canonical := canonicalizeBackupCode(code)
		if strings.Trim(canonical, "0123456789abcdef") != "" {
			t.Fatalf("code %q contains non-hex characters", code)
		}
		if _, dup := seen[canonical]; dup {
			t.Fatalf("duplicate code %q in batch", code)
		}
		seen[canonical] = struct{}{}

		if backupCodeHash("u1", canonical) != hashes[i] {
			t.Fatalf("digest %d does not match its code", i)
		}
	}
}
