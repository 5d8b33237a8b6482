package mfacore

import (
	"context"
	"encoding/base32"
	"strings"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.TOTP.Issuer = "mfacore-test"
	return cfg
}

// testClock is a manually advanced time source so TOTP steps and challenge
// TTLs are deterministic in tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	method      Method
	destination string
	code        string
}

// fakeDispatcher records dispatched codes and optionally fails delivery.
type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, method Method, destination, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	d.sent = append(d.sent, sentMessage{method: method, destination: destination, code: code})
	return nil
}

func (d *fakeDispatcher) last(t *testing.T) sentMessage {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		t.Fatal("no messages dispatched")
	}
	return d.sent[len(d.sent)-1]
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *testClock, *fakeDispatcher) {
	t.Helper()

	clk := newTestClock()
	dispatcher := &fakeDispatcher{}

	engine, err := New().
		WithConfig(cfg).
		WithDispatcher(dispatcher).
		WithClock(clk.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, clk, dispatcher
}

func codeAt(t *testing.T, secret string, cfg TOTPConfig, at time.Time) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	counter := at.Unix() / int64(cfg.Period)
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

func codeAtOffset(t *testing.T, secret string, cfg TOTPConfig, at time.Time, offset int64) string {
	t.Helper()
	return codeAt(t, secret, cfg, at.Add(time.Duration(offset)*time.Duration(cfg.Period)*time.Second))
}

// setupEnabledUser runs the full setup flow and advances the clock one
// time-step past the confirmation code so it cannot collide with later
// verifications.
func setupEnabledUser(t *testing.T, engine *Engine, clk *testClock, userID string) *SetupResult {
	t.Helper()

	result, err := engine.SetupMFA(context.Background(), userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}

	code := codeAt(t, result.Secret, engine.config.TOTP, clk.Now())
	if err := engine.VerifySetup(context.Background(), userID, code); err != nil {
		t.Fatalf("VerifySetup failed: %v", err)
	}

	clk.Advance(time.Duration(engine.config.TOTP.Period) * time.Second)
	return result
}
