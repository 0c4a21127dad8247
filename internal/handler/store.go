package handler

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/payment"
)

// Store errors.
var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionForbidden = errors.New("session belongs to another shopper")
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 30 * time.Minute

// Session is one shopper's checkout of one order.
type Session struct {
	ID         string
	Controller *checkout.Controller
	Widget     *payment.HostedWidget

	token    string
	lastSeen time.Time
}

// Store keeps checkout sessions in memory and expires idle ones.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates a Store. A non-positive ttl selects DefaultSessionTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Add registers a session owned by token and returns it with a fresh id.
func (s *Store) Add(token string, ctrl *checkout.Controller, w *payment.HostedWidget) *Session {
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: ctrl,
		Widget:     w,
		token:      token,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastSeen = s.now()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session and extends its lifetime. The caller's token must
// match the one the session was created with.
func (s *Store) Get(id, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if subtle.ConstantTimeCompare([]byte(sess.token), []byte(token)) != 1 {
		return nil, ErrSessionForbidden
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Delete closes and forgets the session.
func (s *Store) Delete(id, token string) error {
	sess, err := s.Get(id, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	sess.Controller.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the ttl and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				lg.Debug("Expired checkout sessions", zap.Int("count", n), zap.Int("live", s.Len()))
			}
		}
	}
}

func (s *Store) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
}
