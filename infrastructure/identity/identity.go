// Package identity provides the identities a board acts as.
package identity

import (
	"sync"

	"stackit/pkg/auth"
)

// Anonymous is never authorized
type Anonymous struct{}

func (Anonymous) IsAuthorized() bool { return false }
func (Anonymous) Credential() string { return "" }

// Static holds a fixed token, such as one passed on the command line
type Static struct {
	token   string
	checker *auth.TokenChecker
}

// NewStatic creates a fixed identity; an empty token is anonymous
func NewStatic(token string, checker *auth.TokenChecker) *Static {
	if checker == nil {
		checker = auth.NewTokenChecker("")
	}
	return &Static{token: token, checker: checker}
}

func (s *Static) IsAuthorized() bool {
	return s.token != "" && s.checker.Check(s.token) == nil
}

func (s *Static) Credential() string {
	return s.token
}

// Session is the identity of one gateway session. The token is replaced on
// every request so a sign-in or sign-out takes effect on the next mutation.
type Session struct {
	mu      sync.RWMutex
	token   string
	checker *auth.TokenChecker
}

// NewSession creates a session identity with no token
func NewSession(checker *auth.TokenChecker) *Session {
	if checker == nil {
		checker = auth.NewTokenChecker("")
	}
	return &Session{checker: checker}
}

// SetToken replaces the bearer token; "" signs the session out
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// IsAuthorized reports whether the current token may mutate the board.
// Expired JWTs count as signed out.
func (s *Session) IsAuthorized() bool {
	token := s.Credential()
	return token != "" && s.checker.Check(token) == nil
}

// Credential returns the current token
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subject returns the JWT subject of the current token, if any
func (s *Session) Subject() string {
	return auth.Subject(s.Credential())
}
