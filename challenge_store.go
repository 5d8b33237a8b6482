package mfacore

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryChallengeStore keeps the per-user pending challenge in process
// memory. Expiry is lazy: stale entries are discarded when touched, there is
// no background sweeper.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	pending map[string]*Challenge
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		pending: make(map[string]*Challenge),
	}
}

func (s *MemoryChallengeStore) Save(ctx context.Context, ch *Challenge, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Last write wins: a fresh challenge silently replaces any pending one.
	clone := *ch
	s.pending[ch.UserID] = &clone
	return nil
}

func (s *MemoryChallengeStore) ConsumeIfMatch(ctx context.Context, userID string, method Method, codeHash [32]byte, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.pending[userID]
	if !ok {
		return false, nil
	}
	if now.Unix() > ch.ExpiresAt {
		delete(s.pending, userID)
		return false, ErrChallengeExpired
	}
	if ch.Method != method {
		return false, nil
	}
	if subtle.ConstantTimeCompare(ch.CodeHash[:], codeHash[:]) != 1 {
		return false, nil
	}

	delete(s.pending, userID)
	return true, nil
}

func (s *MemoryChallengeStore) Delete(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[userID]
	delete(s.pending, userID)
	return ok, nil
}
