// Package session keeps ingestion sessions between the upload, the preview
// edits and the publish call, so a failed publish can be retried without
// uploading the file again.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
)

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Store persists ingestion sessions. Get returns a copy; changes are only
// visible to other callers after Save.
type Store interface {
	Save(ctx context.Context, sess *ingest.Session) error
	Get(ctx context.Context, id string) (*ingest.Session, error)
	Delete(ctx context.Context, id string) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*ingest.Session, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	prints   map[string]string
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		prints:   make(map[string]string),
	}
}

func (s *MemoryStore) Save(_ context.Context, sess *ingest.Session) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = data
	if sess.Fingerprint != "" {
		s.prints[sess.Fingerprint] = sess.ID
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ingest.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode(data)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	for fp, sid := range s.prints {
		if sid == id {
			delete(s.prints, fp)
		}
	}
	return nil
}

func (s *MemoryStore) FindByFingerprint(ctx context.Context, fingerprint string) (*ingest.Session, error) {
	s.mu.RLock()
	id, ok := s.prints[fingerprint]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrNotFound, fingerprint)
	}
	return s.Get(ctx, id)
}

func decode(data []byte) (*ingest.Session, error) {
	var sess ingest.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}
