package mfacore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	settingsKeyPrefix      = "mfs"
	settingsRecordVersion1 = 1

	casMaxRetries = 4
)

// RedisSettingsStore persists settings as versioned binary records. All
// read-modify-write paths run under WATCH so concurrent mutations of the same
// user retry instead of clobbering each other.
type RedisSettingsStore struct {
	redis *redis.Client
}

func NewRedisSettingsStore(redisClient *redis.Client) *RedisSettingsStore {
	return &RedisSettingsStore{redis: redisClient}
}

func (s *RedisSettingsStore) key(userID string) string {
	return settingsKeyPrefix + ":" + userID
}

func (s *RedisSettingsStore) Get(ctx context.Context, userID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeSettings(data)
}

func (s *RedisSettingsStore) Put(ctx context.Context, settings *Settings) error {
	encoded, err := encodeSettings(settings)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(settings.UserID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisSettingsStore) Mutate(ctx context.Context, userID string, fn func(*Settings) error) error {
	key := s.key(userID)

	for i := 0; i < casMaxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeSettings(data)
			if err != nil {
				return err
			}

			if err := fn(record); err != nil {
				return err
			}

			updated, err := encodeSettings(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ErrSettingsNotFound
		}
		return err
	}

	return fmt.Errorf("%w: mutate contention on %s", ErrStoreUnavailable, key)
}

func (s *RedisSettingsStore) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, int, error) {
	key := s.key(userID)

	for i := 0; i < casMaxRetries; i++ {
		var (
			consumed  bool
			remaining int
		)
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeSettings(data)
			if err != nil {
				return err
			}

			idx := -1
			for j, stored := range record.BackupCodeHashes {
				if stored == hash {
					idx = j
					break
				}
			}
			if idx < 0 {
				remaining = len(record.BackupCodeHashes)
				return nil
			}

			record.BackupCodeHashes = append(
				record.BackupCodeHashes[:idx],
				record.BackupCodeHashes[idx+1:]...,
			)
			consumed = true
			remaining = len(record.BackupCodeHashes)

			updated, err := encodeSettings(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return false, 0, ErrSettingsNotFound
		}
		if err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return consumed, remaining, nil
	}

	return false, 0, fmt.Errorf("%w: consume contention on %s", ErrStoreUnavailable, key)
}

func encodeSettings(record *Settings) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(settingsRecordVersion1)
	buf.WriteByte(byte(record.State))

	if err := binary.Write(&buf, binary.BigEndian, record.TOTPLastUsedCounter); err != nil {
		return nil, err
	}

	var lastUsed int64
	if !record.LastUsedAt.IsZero() {
		lastUsed = record.LastUsedAt.Unix()
	}
	if err := binary.Write(&buf, binary.BigEndian, lastUsed); err != nil {
		return nil, err
	}
	var created int64
	if !record.CreatedAt.IsZero() {
		created = record.CreatedAt.Unix()
	}
	if err := binary.Write(&buf, binary.BigEndian, created); err != nil {
		return nil, err
	}

	for _, field := range []string{record.UserID, record.TOTPSecret, record.PhoneNumber, record.Email} {
		if err := writeLenString(&buf, field); err != nil {
			return nil, err
		}
	}

	if len(record.Methods) > 65535 {
		return nil, errors.New("settings method count exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Methods))); err != nil {
		return nil, err
	}
	for _, m := range record.Methods {
		if err := writeLenString(&buf, string(m)); err != nil {
			return nil, err
		}
	}

	if len(record.BackupCodeHashes) > 65535 {
		return nil, errors.New("settings backup code count exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.BackupCodeHashes))); err != nil {
		return nil, err
	}
	for _, h := range record.BackupCodeHashes {
		buf.Write(h[:])
	}

	return buf.Bytes(), nil
}

func decodeSettings(data []byte) (*Settings, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != settingsRecordVersion1 {
		return nil, errors.New("invalid settings record version")
	}

	stateByte, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &Settings{State: State(stateByte)}
	if err := binary.Read(reader, binary.BigEndian, &record.TOTPLastUsedCounter); err != nil {
		return nil, err
	}

	var lastUsed, created int64
	if err := binary.Read(reader, binary.BigEndian, &lastUsed); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if lastUsed != 0 {
		record.LastUsedAt = time.Unix(lastUsed, 0).UTC()
	}
	if created != 0 {
		record.CreatedAt = time.Unix(created, 0).UTC()
	}

	for _, target := range []*string{&record.UserID, &record.TOTPSecret, &record.PhoneNumber, &record.Email} {
		value, err := readLenString(reader)
		if err != nil {
			return nil, err
		}
		*target = value
	}

	var methodCount uint16
	if err := binary.Read(reader, binary.BigEndian, &methodCount); err != nil {
		return nil, err
	}
	record.Methods = make([]Method, 0, methodCount)
	for i := uint16(0); i < methodCount; i++ {
		value, err := readLenString(reader)
		if err != nil {
			return nil, err
		}
		record.Methods = append(record.Methods, Method(value))
	}

	var hashCount uint16
	if err := binary.Read(reader, binary.BigEndian, &hashCount); err != nil {
		return nil, err
	}
	record.BackupCodeHashes = make([][32]byte, hashCount)
	for i := uint16(0); i < hashCount; i++ {
		if _, err := io.ReadFull(reader, record.BackupCodeHashes[i][:]); err != nil {
			return nil, err
		}
	}

	return record, nil
}

func writeLenString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("settings field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readLenString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
