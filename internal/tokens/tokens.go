// Package tokens holds the session's provider access token.
//
// [Store] is the single owner of the bearer token: it restores it from the
// preference store, accepts fresh tokens from the OAuth return, persists them, and
// clears them when the provider rejects them. It also serves as the
// [oauth2.TokenSource] behind the provider client, so invalidation takes effect on
// the very next request.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// PersistKey is the preference key holding the token.
	PersistKey = "hitster.spotify_token"
	// Param is the navigation query parameter carrying a fresh token.
	Param = "token"
)

// Persister stores string preferences.
type Persister interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// ParamStripper removes a query parameter from the current navigation state without adding history.
type ParamStripper interface {
	StripParam(name string)
}

// Store holds the access token.
type Store struct {
	mu    sync.RWMutex
	value string

	persist  Persister
	location ParamStripper
	logger   *log.Logger

	hookMu       sync.Mutex
	onApply      []func(token string)
	onInvalidate []func(reason string)
}

// NewStore creates a [Store]. persist and location may be nil.
func NewStore(persist Persister, location ParamStripper, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		persist:  persist,
		location: location,
		logger:   shared.WithLogger(logger, "component", "tokens"),
	}
}

// OnApply registers fn to run after every successful [Store.Apply].
func (s *Store) OnApply(fn func(token string)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onApply = append(s.onApply, fn)
}

// OnInvalidate registers fn to run after [Store.Invalidate].
func (s *Store) OnInvalidate(fn func(reason string)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Restore applies fresh when it is non-empty, otherwise the persisted token.
// It reports whether a token was applied.
func (s *Store) Restore(fresh string) bool {
	if strings.TrimSpace(fresh) != "" {
		s.Apply(fresh)
		return true
	}

	if s.persist == nil {
		return false
	}
	stored, ok, err := s.persist.Get(PersistKey)
	if err != nil {
		s.logger.Warn("could not read stored token", "error", err)
		return false
	}
	if !ok || stored == "" {
		return false
	}

	s.Apply(stored)
	return true
}

// Apply makes token current, persists it and strips it from the navigation state.
// Persistence failures are logged and do not block the session.
func (s *Store) Apply(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	s.mu.Lock()
	s.value = token
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.Set(PersistKey, token); err != nil {
			s.logger.Warn("could not persist token", "error", err)
		}
	}
	if s.location != nil {
		s.location.StripParam(Param)
	}

	for _, fn := range s.applyHooks() {
		fn(token)
	}
}

// Invalidate clears the token from memory and storage.
func (s *Store) Invalidate(reason string) {
	s.mu.Lock()
	had := s.value != ""
	s.value = ""
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.Delete(PersistKey); err != nil {
			s.logger.Warn("could not clear stored token", "error", err)
		}
	}

	if !had {
		return
	}
	s.logger.Info("token invalidated", "reason", reason)
	for _, fn := range s.invalidateHooks() {
		fn(reason)
	}
}

// Value returns the current token, or "" when unauthenticated.
func (s *Store) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Valid reports whether a token is present.
func (s *Store) Valid() bool {
	return s.Value() != ""
}

// Token implements [oauth2.TokenSource]. The returned token carries no expiry;
// the provider's 401 is what ends it.
func (s *Store) Token() (*oauth2.Token, error) {
	v := s.Value()
	if v == "" {
		return nil, fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}
	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

func (s *Store) applyHooks() []func(string) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return append([]func(string){}, s.onApply...)
}

func (s *Store) invalidateHooks() []func(string) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return append([]func(string){}, s.onInvalidate...)
}
