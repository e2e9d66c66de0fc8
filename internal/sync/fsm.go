package sync

import "time"

// ConnState is a client connection lifecycle state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ConnEvent drives the connection state machine.
type ConnEvent int

const (
	EventDialSucceeded ConnEvent = iota
	EventDialFailed
	EventAuthAccepted
	EventAuthRejected
	EventConnectionLost
	EventRetryTimerFired
)

// ReconnectPolicy bounds automatic recovery after unclean closes.
type ReconnectPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultReconnectPolicy allows two retries, 5s backoff doubling to a 30s
// cap.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:    2,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Transition is the outcome of applying one event.
type Transition struct {
	State ConnState
	// RetryIn is set when the machine scheduled a reconnect attempt.
	RetryIn   time.Duration
	Scheduled bool
}

// ConnFSM models one client connection's lifecycle independent of any
// transport, so reconnect behavior is testable without sockets. It is not
// safe for concurrent use; drive it from one goroutine.
type ConnFSM struct {
	policy   ReconnectPolicy
	state    ConnState
	attempts int
	backoff  time.Duration
}

// NewConnFSM starts a machine in Connecting.
func NewConnFSM(policy ReconnectPolicy) *ConnFSM {
	return &ConnFSM{
		policy:  policy,
		state:   StateConnecting,
		backoff: policy.InitialBackoff,
	}
}

// State returns the current lifecycle state
func (f *ConnFSM) State() ConnState { return f.state }

// Terminal reports whether the machine has given up. A terminal machine
// only moves again through manual retry (Reset).
func (f *ConnFSM) Terminal() bool { return f.state == StateDisconnected }

// Attempts returns how many reconnects have been scheduled since the last
// successful authentication.
func (f *ConnFSM) Attempts() int { return f.attempts }

// Apply advances the machine by one event.
func (f *ConnFSM) Apply(event ConnEvent) Transition {
	switch f.state {
	case StateConnecting:
		switch event {
		case EventDialSucceeded:
			f.state = StateAuthenticating
		case EventDialFailed, EventConnectionLost:
			return f.scheduleReconnect()
		}

	case StateAuthenticating:
		switch event {
		case EventAuthAccepted:
			f.state = StateConnected
			f.attempts = 0
			f.backoff = f.policy.InitialBackoff
		case EventAuthRejected:
			// auth failures are not retried automatically
			f.state = StateDisconnected
		case EventConnectionLost:
			return f.scheduleReconnect()
		}

	case StateConnected:
		if event == EventConnectionLost {
			return f.scheduleReconnect()
		}

	case StateReconnecting:
		if event == EventRetryTimerFired {
			f.state = StateConnecting
		}

	case StateDisconnected:
		// terminal, only Reset moves again
	}

	return Transition{State: f.state}
}

// Reset restarts a terminal machine for a manual retry.
func (f *ConnFSM) Reset() {
	f.state = StateConnecting
	f.attempts = 0
	f.backoff = f.policy.InitialBackoff
}

func (f *ConnFSM) scheduleReconnect() Transition {
	if f.attempts >= f.policy.MaxAttempts {
		f.state = StateDisconnected
		return Transition{State: f.state}
	}

	retryIn := f.backoff
	f.attempts++
	f.backoff *= 2
	if f.backoff > f.policy.MaxBackoff {
		f.backoff = f.policy.MaxBackoff
	}
	f.state = StateReconnecting
	return Transition{State: f.state, RetryIn: retryIn, Scheduled: true}
}
