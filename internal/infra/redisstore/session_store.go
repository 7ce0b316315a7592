// Package redisstore keeps session accounts in Redis, one key per user.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session_account:"

// Connect accepts either a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Hash fields of a session key. The binding lives in fieldSession and is
// only ever written whole by ReplaceSessionAccount; touches write
// fieldLastUsed alone so they can never restore an older binding.
const (
	fieldSession  = "session"
	fieldLastUsed = "last_used_at"
)

// SessionStore implements port.SessionStore. A session with ExpiresAt set
// is stored with a matching key TTL.
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewSessionStore creates a SessionStore over client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func key(userID string) string { return keyPrefix + userID }

func (s *SessionStore) GetSessionAccount(ctx context.Context, userID string) (*domain.SessionAccount, error) {
	fields, err := s.client.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return decodeSession(fields)
}

// decodeSession rebuilds a session from its hash. A hash without the
// session field is treated as absent.
func decodeSession(fields map[string]string) (*domain.SessionAccount, error) {
	raw, ok := fields[fieldSession]
	if !ok {
		return nil, nil
	}
	var session domain.SessionAccount
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session account: %w", err)
	}
	if ts, ok := fields[fieldLastUsed]; ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			session.LastUsedAt = t
		}
	}
	return &session, nil
}

// ReplaceSessionAccount swaps the user's hash in one transaction, so at most
// one session exists per user.
func (s *SessionStore) ReplaceSessionAccount(ctx context.Context, session *domain.SessionAccount) (*domain.SessionAccount, error) {
	saved := *session
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	if saved.LastUsedAt.IsZero() {
		saved.LastUsedAt = now
	}

	ttl := time.Duration(0)
	if saved.ExpiresAt != nil {
		ttl = saved.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return nil, &domain.ErrValidation{Field: "expires_at", Message: "already passed"}
		}
	}

	raw, err := json.Marshal(saved)
	if err != nil {
		return nil, err
	}
	k := key(saved.UserID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, fieldSession, raw, fieldLastUsed, saved.LastUsedAt.Format(time.RFC3339Nano))
		if ttl > 0 {
			p.Expire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return &saved, nil
}

// TouchSessionAccount sets last_used_at only. The key TTL is untouched.
func (s *SessionStore) TouchSessionAccount(ctx context.Context, userID string) error {
	k := key(userID)
	ts := s.now().UTC().Format(time.RFC3339Nano)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: "session_account", ID: userID}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, k, fieldLastUsed, ts)
			return nil
		})
		return err
	}, k)

	var notFound *domain.ErrNotFound
	switch {
	case err == nil, errors.Is(err, redis.TxFailedErr):
		// A concurrent replace already wrote a fresh last_used_at.
		return nil
	case errors.As(err, &notFound):
		return err
	default:
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
}
