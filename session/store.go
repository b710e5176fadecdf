package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/grupomeraki/leadchat/domain"
	"github.com/grupomeraki/leadchat/store"
)

const keyPrefix = "chat:session:"

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func touchedKey(sessionID string) string {
	return keyPrefix + sessionID + ":touched"
}

// SessionStore persists session snapshots with a time-to-live on top of the
// key/value substrate. TTL and eviction live entirely here, not in the store.
type SessionStore struct {
	kv  store.Store
	ttl time.Duration
	now func() time.Time
}

// NewSessionStore creates a session store with the given TTL.
func NewSessionStore(kv store.Store, ttl time.Duration) *SessionStore {
	return &SessionStore{
		kv:  kv,
		ttl: ttl,
		now: time.Now,
	}
}

// Save writes the full session snapshot plus its freshness timestamp
// atomically.
func (ss *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pairs := map[string]string{
		sessionKey(sess.SessionID): string(payload),
		touchedKey(sess.SessionID): sess.LastTouchedAt.Format(time.RFC3339Nano),
	}
	if err := ss.kv.SetMany(ctx, pairs); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Load rehydrates a session. A session older than the TTL is discarded in
// full and replaced with a fresh greeting-only session. A fresh session is
// restored verbatim, except Streaming is coerced to Idle: an in-flight
// request cannot survive a reload.
func (ss *SessionStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	raw, ok, err := ss.kv.Get(ctx, touchedKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session freshness: %w", err)
	}
	if !ok {
		return domain.NewSession(sessionID), nil
	}

	touched, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil || ss.now().Sub(touched) > ss.ttl {
		return ss.Reset(ctx, sessionID)
	}

	payload, ok, err := ss.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return domain.NewSession(sessionID), nil
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		log.Printf("WARN: discarding unreadable session %s: %v", sessionID, err)
		return ss.Reset(ctx, sessionID)
	}

	sess.SessionID = sessionID
	if sess.Mode == domain.ModeStreaming || !sess.Mode.Valid() {
		sess.Mode = domain.ModeIdle
	}
	if len(sess.Messages) == 0 {
		return domain.NewSession(sessionID), nil
	}
	return &sess, nil
}

// Reset clears all persisted keys for the session atomically and returns a
// fresh greeting-only session.
func (ss *SessionStore) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := ss.kv.Delete(ctx, sessionKey(sessionID), touchedKey(sessionID)); err != nil {
		return nil, fmt.Errorf("failed to clear session: %w", err)
	}
	return domain.NewSession(sessionID), nil
}
