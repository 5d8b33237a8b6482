package mfacore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix      = "mfc"
	challengeRecordVersion1 = 1
)

// RedisChallengeStore holds the pending challenge under one key per user, so
// a fresh Save replaces the old challenge by construction. The key carries a
// TTL matching the challenge, and ConsumeIfMatch re-checks expiry under WATCH
// for the window where the record outlives its deadline.
type RedisChallengeStore struct {
	redis *redis.Client
}

func NewRedisChallengeStore(redisClient *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{redis: redisClient}
}

func (s *RedisChallengeStore) key(userID string) string {
	return challengeKeyPrefix + ":" + userID
}

func (s *RedisChallengeStore) Save(ctx context.Context, ch *Challenge, ttl time.Duration) error {
	encoded, err := encodeChallenge(ch)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(ch.UserID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeStore) ConsumeIfMatch(ctx context.Context, userID string, method Method, codeHash [32]byte, now time.Time) (bool, error) {
	key := s.key(userID)

	for i := 0; i < casMaxRetries; i++ {
		var matched bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			ch, err := decodeChallenge(data)
			if err != nil {
				return err
			}

			if now.Unix() > ch.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			if ch.Method != method || subtle.ConstantTimeCompare(ch.CodeHash[:], codeHash[:]) != 1 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			matched = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if errors.Is(err, ErrChallengeExpired) {
			return false, err
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return matched, nil
	}

	return false, fmt.Errorf("%w: consume contention on %s", ErrStoreUnavailable, key)
}

func (s *RedisChallengeStore) Delete(ctx context.Context, userID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func encodeChallenge(ch *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, ch.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(ch.CodeHash[:])

	if err := writeLenString(&buf, ch.UserID); err != nil {
		return nil, err
	}
	if err := writeLenString(&buf, string(ch.Method)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	ch := &Challenge{}
	if err := binary.Read(reader, binary.BigEndian, &ch.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, ch.CodeHash[:]); err != nil {
		return nil, err
	}

	user, err := readLenString(reader)
	if err != nil {
		return nil, err
	}
	ch.UserID = user

	method, err := readLenString(reader)
	if err != nil {
		return nil, err
	}
	ch.Method = Method(method)

	return ch, nil
}
