package mfacore

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"
)

const backupCodeAlphabet = "0123456789abcdef"

// newBackupCode returns length hex characters of recovery material, without
// display formatting.
func newBackupCode(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(length)
	for _, b := range raw {
		sb.WriteByte(backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
	}
	return sb.String(), nil
}

// formatBackupCode inserts a dash at the midpoint, XXXX-XXXX for the default
// length. Formatting is cosmetic; canonicalizeBackupCode strips it again.
func formatBackupCode(code string) string {
	if len(code) < 2 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}

// canonicalizeBackupCode the user's input: trim, drop dashes and spaces,
// lowercase. Lookup works regardless of how the code was transcribed.
func canonicalizeBackupCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToLower(code)
}

// backupCodeHash binds the digest to the owning user so identical codes
// issued to different users never collide in storage.
func backupCodeHash(userID, canonicalCode string) [32]byte {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(canonicalCode))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// challengeCodeHash uses the same keyed construction for out-of-band codes.
func challengeCodeHash(userID, code string) [32]byte {
	return backupCodeHash(userID, strings.TrimSpace(code))
}

// generateBackupCodes returns count fresh codes as (display, digests). The
// display slice is the only place plaintext exists.
func generateBackupCodes(userID string, count, length int) ([]string, [][32]byte, error) {
	display := make([]string, 0, count)
	hashes := make([][32]byte, 0, count)
	seen := make(map[string]struct{}, count)

	for len(display) < count {
		code, err := newBackupCode(length)
		if err != nil {
			return nil, nil, fmt.Errorf("generate backup code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		display = append(display, formatBackupCode(code))
		hashes = append(hashes, backupCodeHash(userID, code))
	}

	return display, hashes, nil
}
