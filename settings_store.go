package mfacore

import (
	"context"
	"sync"
)

// MemorySettingsStore keeps settings in a mutex-guarded map. It is the
// default store and is suitable for tests and single-process deployments;
// use [RedisSettingsStore] when settings must survive restarts.
type MemorySettingsStore struct {
	mu      sync.Mutex
	records map[string]*Settings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		records: make(map[string]*Settings),
	}
}

func (s *MemorySettingsStore) Get(ctx context.Context, userID string) (*Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return record.Clone(), nil
}

func (s *MemorySettingsStore) Put(ctx context.Context, settings *Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[settings.UserID] = settings.Clone()
	return nil
}

func (s *MemorySettingsStore) Mutate(ctx context.Context, userID string, fn func(*Settings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return ErrSettingsNotFound
	}

	// fn works on a copy; the map is only updated when fn succeeds.
	updated := record.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	s.records[userID] = updated
	return nil
}

func (s *MemorySettingsStore) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, int, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return false, 0, ErrSettingsNotFound
	}

	for i, stored := range record.BackupCodeHashes {
		if stored == hash {
			updated := record.Clone()
			updated.BackupCodeHashes = append(
				updated.BackupCodeHashes[:i],
				updated.BackupCodeHashes[i+1:]...,
			)
			s.records[userID] = updated
			return true, len(updated.BackupCodeHashes), nil
		}
	}

	return false, len(record.BackupCodeHashes), nil
}
