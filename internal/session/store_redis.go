package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/platform/cache"
)

const defaultTTL = 24 * time.Hour

func sessionKey(id string) string     { return cache.Key("session", id) }
func fingerprintKey(fp string) string { return cache.Key("fingerprint", fp) }

// RedisStore keeps sessions as JSON values that expire after ttl. A second
// key maps the upload fingerprint to the session id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl uses 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, sess *ingest.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, s.ttl)
		if sess.Fingerprint != "" {
			pipe.Set(ctx, fingerprintKey(sess.Fingerprint), sess.ID, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}

	slog.Debug("session saved", "session_id", sess.ID, "bytes", len(data))
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*ingest.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{sessionKey(id)}
	if sess.Fingerprint != "" {
		keys = append(keys, fingerprintKey(sess.Fingerprint))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) FindByFingerprint(ctx context.Context, fingerprint string) (*ingest.Session, error) {
	id, err := s.client.Get(ctx, fingerprintKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrNotFound, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up fingerprint: %w", err)
	}
	return s.Get(ctx, id)
}
