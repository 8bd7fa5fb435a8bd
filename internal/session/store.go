package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one caller's authenticated interaction lifetime. Values are
// snapshots: role flags are resolved once at open and never refreshed, even
// if the identity endpoint's view changes later.
type Session struct {
	ID           string
	Credential   string
	Flags        Flags
	TierOverride string
	UserAgent    string
	CreatedAt    time.Time
}

// Store is the process-wide session registry. It is safe for concurrent use
// by independent sessions; the transport serializes traffic within one
// session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session

	resolver IdentityResolver
	logger   zerolog.Logger
}

// NewStore creates a session registry backed by the given identity resolver.
func NewStore(resolver IdentityResolver, logger zerolog.Logger) *Store {
	return &Store{
		sessions: map[string]Session{},
		resolver: resolver,
		logger:   logger.With().Str("component", "sessions").Logger(),
	}
}

// Open validates the credential and creates a new session. Validation
// failure is fail-closed: no session is created and the error surfaces to
// the transport.
func (s *Store) Open(ctx context.Context, credential, tierOverride, userAgent string) (Session, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Session{}, fmt.Errorf("session credential is required")
	}

	flags, err := s.resolver.Resolve(ctx, credential)
	if err != nil {
		return Session{}, fmt.Errorf("validating session credential: %w", err)
	}

	sess := Session{
		ID:           uuid.NewString(),
		Credential:   credential,
		Flags:        flags,
		TierOverride: strings.TrimSpace(tierOverride),
		UserAgent:    strings.TrimSpace(userAgent),
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", sess.ID).
		Bool("elevated", flags.Elevated).
		Bool("auditor", flags.Auditor).
		Str("tier_override", sess.TierOverride).
		Msg("session opened")
	return sess, nil
}

// Get returns a session snapshot by identifier.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	return sess, ok
}

// Close removes a session and everything associated with it. Closing an
// unknown or already-closed session is a no-op.
func (s *Store) Close(id string) {
	trimmed := strings.TrimSpace(id)

	s.mu.Lock()
	_, existed := s.sessions[trimmed]
	delete(s.sessions, trimmed)
	s.mu.Unlock()

	if existed {
		s.logger.Info().Str("session_id", trimmed).Msg("session closed")
	}
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session; used at process teardown.
func (s *Store) Shutdown() {
	s.mu.Lock()
	count := len(s.sessions)
	s.sessions = map[string]Session{}
	s.mu.Unlock()

	if count > 0 {
		s.logger.Info().Int("sessions", count).Msg("all sessions closed on shutdown")
	}
}
