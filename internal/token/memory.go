package token

import (
	"context"
	"sync"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

// MemoryStore keeps session state in-process. Used by tests and local
// development without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	cartToken string
	bearer    string
	customer  *domain.Customer
	prefs     *domain.Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) session(sessionID string) *memorySession {
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	sess := &memorySession{}
	s.sessions[sessionID] = sess
	return sess
}

func (s *MemoryStore) GetCartToken(_ context.Context, sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.cartToken
	}
	return ""
}

func (s *MemoryStore) SetCartToken(_ context.Context, sessionID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sessionID).cartToken = token
}

func (s *MemoryStore) ClearCartToken(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sessionID).cartToken = ""
}

func (s *MemoryStore) GetAuth(_ context.Context, sessionID string) (string, *domain.Customer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.bearer != "" {
		customer := *sess.customer
		return sess.bearer, &customer
	}
	return "", nil
}

func (s *MemoryStore) SetAuth(_ context.Context, sessionID, bearer string, customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	sess.bearer = bearer
	sess.customer = &customer
}

func (s *MemoryStore) ClearAuth(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	sess.bearer = ""
	sess.customer = nil
}

func (s *MemoryStore) GetPreferences(_ context.Context, sessionID string) (domain.Preferences, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.prefs != nil {
		return *sess.prefs, true
	}
	return domain.Preferences{}, false
}

func (s *MemoryStore) SetPreferences(_ context.Context, sessionID string, prefs domain.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sessionID).prefs = &prefs
}
