// Package credstore provides a Redis-backed reference implementation of
// authcore.CredentialStore. Production deployments with an existing user
// database implement the interface over that database instead; this store
// is the batteries-included option for services that already run Redis.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dotstore/authcore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cred"

// ErrRedisUnavailable wraps transport-level failures.
var ErrRedisUnavailable = errors.New("credential store unavailable")

// Redis stores one JSON credential record per email. Emails are assumed
// normalized by the engine; the key is derived from the lowercased form.
type Redis struct {
	redis redis.UniversalClient
}

// New creates a credential store backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Redis {
	return &Redis{redis: redisClient}
}

func (s *Redis) key(email string) string {
	return keyPrefix + ":" + email
}

// FindByEmail implements authcore.CredentialStore.
func (s *Redis) FindByEmail(ctx context.Context, email string) (*authcore.Credential, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authcore.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	cred := &authcore.Credential{}
	if err := json.Unmarshal(data, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Create stores a new credential, stamping ID and timestamps. The write is
// SET NX, so two concurrent sign-ups for one email produce exactly one
// record and one authcore.ErrEmailTaken.
func (s *Redis) Create(ctx context.Context, cred *authcore.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(cred.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return authcore.ErrEmailTaken
	}
	return nil
}

// SetVerified implements authcore.CredentialStore.
func (s *Redis) SetVerified(ctx context.Context, email string, verified bool) error {
	return s.update(ctx, email, func(cred *authcore.Credential) {
		cred.Verified = verified
	})
}

// SetAdmin implements authcore.CredentialStore.
func (s *Redis) SetAdmin(ctx context.Context, email string, admin bool) error {
	return s.update(ctx, email, func(cred *authcore.Credential) {
		cred.Admin = admin
	})
}

// UpdatePasswordHash implements authcore.CredentialStore.
func (s *Redis) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	return s.update(ctx, email, func(cred *authcore.Credential) {
		cred.PasswordHash = hash
	})
}

// update applies mutate inside a WATCH transaction so concurrent flag and
// hash updates never clobber each other.
func (s *Redis) update(ctx context.Context, email string, mutate func(*authcore.Credential)) error {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			cred := &authcore.Credential{}
			if err := json.Unmarshal(data, cred); err != nil {
				return err
			}

			mutate(cred)
			cred.UpdatedAt = time.Now().UTC()

			updated, err := json.Marshal(cred)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return authcore.ErrCredentialNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: transaction retries exhausted", ErrRedisUnavailable)
}
