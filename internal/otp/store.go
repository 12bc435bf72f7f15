package otp

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

// Purpose distinguishes the two code flows. It is part of the store key, so
// a verification code can never redeem a password reset and vice versa.
type Purpose string

const (
	// PurposeEmailVerification marks codes that prove ownership of a
	// newly registered address.
	PurposeEmailVerification Purpose = "email_verification"
	// PurposePasswordReset marks codes that authorize a password reset.
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is one of the two supported purposes.
func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

const (
	keyPrefix       = "oc"
	recordVersionV1 = 1
)

var (
	// ErrNotFound is returned when no live record exists for the pair.
	ErrNotFound = errors.New("one-time code not found")
	// ErrCodeMismatch is returned when the submitted code does not match.
	ErrCodeMismatch = errors.New("one-time code mismatch")
	// ErrConsumed is returned when the record was already redeemed.
	ErrConsumed = errors.New("one-time code already consumed")
	// ErrAttemptsExceeded is returned when the per-code attempt budget ran out.
	ErrAttemptsExceeded = errors.New("one-time code attempts exceeded")
	// ErrRedisUnavailable wraps transport-level store failures.
	ErrRedisUnavailable = errors.New("one-time code store unavailable")
)

// Record is the persisted shape of a single outstanding code.
type Record struct {
	CodeHash  [32]byte
	ExpiresAt int64
	CreatedAt int64
	Attempts  uint16
	Used      bool
}

// Store reads and writes one-time code records.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient) *Store {
	return &Store{
		redis:  redisClient,
		prefix: keyPrefix,
	}
}

func (s *Store) key(email string, purpose Purpose) string {
	return s.prefix + ":" + string(purpose) + ":" + email
}

// Save persists a fresh record for (email, purpose) with the given TTL.
// Any previous record for the pair is replaced, consumed or not.
func (s *Store) Save(ctx context.Context, email string, purpose Purpose, record *Record, ttl time.Duration) error {
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email, purpose), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the live record for (email, purpose), or ErrNotFound.
func (s *Store) Get(ctx context.Context, email string, purpose Purpose) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(email, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return decodeRecord(data)
}

// Consume atomically redeems the record for (email, purpose) against the
// submitted code hash. On a match the used flag is flipped in place, so a
// second redemption of the same code fails with ErrConsumed. On a mismatch
// the attempt counter advances; the record is destroyed once maxAttempts
// is reached. The lookup and the flag flip happen inside one WATCH
// transaction: under concurrent submissions exactly one caller wins.
func (s *Store) Consume(ctx context.Context, email string, purpose Purpose, providedHash [32]byte, maxAttempts int) (*Record, error) {
	const maxRetries = 4
	key := s.key(email, purpose)

	for i := 0; i < maxRetries; i++ {
		var matched *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeRecord(data)
			if err != nil {
				return err
			}

			// TTL eviction normally removes stale records before we see
			// them, but clock skew between this process and Redis must not
			// extend a code's life.
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrNotFound
			}

			if record.Used {
				return ErrConsumed
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if maxAttempts > 0 && int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrNotFound
				}

				updated, err := encodeRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrCodeMismatch
			}

			record.Used = true

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				ttl = time.Second
			}

			updated, err := encodeRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound),
				errors.Is(err, ErrConsumed),
				errors.Is(err, ErrCodeMismatch),
				errors.Is(err, ErrAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrNotFound
}

func encodeRecord(record *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid one-time code record version")
	}

	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &Record{
		Used: used == 1,
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
