package sync

import (
	"sort"
	"time"
)

// Supervisor is one entry in the connected-supervisor roster.
type Supervisor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	LastActivity time.Time `json:"lastActivity"`
}

// Acknowledgement records who acknowledged an alert.
type Acknowledgement struct {
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// PriorityOverride records a supervisor-set display priority for an alert.
type PriorityOverride struct {
	Priority string    `json:"priority"`
	Reason   string    `json:"reason,omitempty"`
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}

// Note is a supervisor annotation on an alert.
type Note struct {
	Text  string    `json:"text"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// Broadcast is a time-bounded message shown to every client.
type Broadcast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Dismissal records an alert taken off the displays.
type Dismissal struct {
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// DisplayLock exempts an alert from display auto-rotation.
type DisplayLock struct {
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// SessionState is the shared view every client synchronizes against. It is
// owned by the hub's run loop, mutated only there, and handed to clients as
// deep copies.
type SessionState struct {
	Acknowledged map[string]Acknowledgement  `json:"acknowledged"`
	Priorities   map[string]PriorityOverride `json:"priorities"`
	Notes        map[string]Note             `json:"notes"`
	Broadcasts   []Broadcast                 `json:"broadcasts"`
	Dismissed    map[string]Dismissal        `json:"dismissed"`
	Locked       map[string]DisplayLock      `json:"locked"`
	DisplayMode  string                      `json:"displayMode"`
	Supervisors  []Supervisor                `json:"supervisors"`
}

func newSessionState() *SessionState {
	return &SessionState{
		Acknowledged: make(map[string]Acknowledgement),
		Priorities:   make(map[string]PriorityOverride),
		Notes:        make(map[string]Note),
		Dismissed:    make(map[string]Dismissal),
		Locked:       make(map[string]DisplayLock),
		DisplayMode:  "rotation",
	}
}

// snapshot deep-copies the state for fan-out, dropping expired broadcasts.
func (s *SessionState) snapshot(now time.Time) SessionState {
	out := SessionState{
		Acknowledged: make(map[string]Acknowledgement, len(s.Acknowledged)),
		Priorities:   make(map[string]PriorityOverride, len(s.Priorities)),
		Notes:        make(map[string]Note, len(s.Notes)),
		Dismissed:    make(map[string]Dismissal, len(s.Dismissed)),
		Locked:       make(map[string]DisplayLock, len(s.Locked)),
		DisplayMode:  s.DisplayMode,
	}
	for id, ack := range s.Acknowledged {
		out.Acknowledged[id] = ack
	}
	for id, override := range s.Priorities {
		out.Priorities[id] = override
	}
	for id, note := range s.Notes {
		out.Notes[id] = note
	}
	for id, dismissal := range s.Dismissed {
		out.Dismissed[id] = dismissal
	}
	for id, lock := range s.Locked {
		out.Locked[id] = lock
	}
	for _, broadcast := range s.Broadcasts {
		if broadcast.ExpiresAt.After(now) {
			out.Broadcasts = append(out.Broadcasts, broadcast)
		}
	}
	out.Supervisors = append(out.Supervisors, s.Supervisors...)
	return out
}

// expireBroadcasts drops broadcasts past their declared duration.
func (s *SessionState) expireBroadcasts(now time.Time) {
	kept := s.Broadcasts[:0]
	for _, broadcast := range s.Broadcasts {
		if broadcast.ExpiresAt.After(now) {
			kept = append(kept, broadcast)
		}
	}
	s.Broadcasts = kept
}

// expireActions retires dismissals and acknowledgements recorded before
// the retention cutoff.
func (s *SessionState) expireActions(cutoff time.Time) {
	for id, dismissal := range s.Dismissed {
		if dismissal.At.Before(cutoff) {
			delete(s.Dismissed, id)
		}
	}
	for id, ack := range s.Acknowledged {
		if ack.At.Before(cutoff) {
			delete(s.Acknowledged, id)
		}
	}
}

func (s *SessionState) addSupervisor(supervisor Supervisor) {
	for i, existing := range s.Supervisors {
		if existing.ID == supervisor.ID {
			s.Supervisors[i] = supervisor
			return
		}
	}
	s.Supervisors = append(s.Supervisors, supervisor)
	sort.Slice(s.Supervisors, func(i, j int) bool {
		return s.Supervisors[i].ID < s.Supervisors[j].ID
	})
}

func (s *SessionState) removeSupervisor(id string) {
	for i, existing := range s.Supervisors {
		if existing.ID == id {
			s.Supervisors = append(s.Supervisors[:i], s.Supervisors[i+1:]...)
			return
		}
	}
}

func (s *SessionState) touchSupervisor(id string, now time.Time) {
	for i, existing := range s.Supervisors {
		if existing.ID == id {
			s.Supervisors[i].LastActivity = now
			return
		}
	}
}
