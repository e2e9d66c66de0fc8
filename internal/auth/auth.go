package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidSession is returned when a session identifier is unknown or
// revoked.
var ErrInvalidSession = errors.New("invalid session")

// Identity is the supervisor a valid session resolves to.
type Identity struct {
	SupervisorID string `json:"supervisorId"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

// Validator resolves a session identifier to a supervisor identity.
type Validator interface {
	Validate(ctx context.Context, sessionID string) (Identity, error)
}

// StaticValidator validates sessions against a fixed in-memory table.
type StaticValidator struct {
	mu       sync.RWMutex
	sessions map[string]Identity
}

// NewStaticValidator creates a validator over a fixed session table
func NewStaticValidator(sessions map[string]Identity) *StaticValidator {
	table := make(map[string]Identity, len(sessions))
	for id, identity := range sessions {
		table[id] = identity
	}
	return &StaticValidator{sessions: table}
}

func (v *StaticValidator) Validate(ctx context.Context, sessionID string) (Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	identity, ok := v.sessions[sessionID]
	if !ok {
		return Identity{}, ErrInvalidSession
	}
	return identity, nil
}

// Add registers a session at runtime
func (v *StaticValidator) Add(sessionID string, identity Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions[sessionID] = identity
}

// Revoke removes a session
func (v *StaticValidator) Revoke(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sessions, sessionID)
}
