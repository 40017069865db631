package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// SessionStore is an in-memory domain.SessionStore for tests and local
// development. Expiry is checked lazily on Get.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
	now      func() time.Time
}

type session struct {
	userID    string
	expiresAt time.Time
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.New().String()
	s.sessions[token] = session{userID: userID, expiresAt: s.now().Add(ttl)}
	return token, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", domain.ErrUnauthorized
	}
	return sess.userID, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
