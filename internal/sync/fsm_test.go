package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnFSM_HappyPath(t *testing.T) {
	fsm := NewConnFSM(DefaultReconnectPolicy())
	assert.Equal(t, StateConnecting, fsm.State())

	fsm.Apply(EventDialSucceeded)
	assert.Equal(t, StateAuthenticating, fsm.State())

	fsm.Apply(EventAuthAccepted)
	assert.Equal(t, StateConnected, fsm.State())
	assert.False(t, fsm.Terminal())
}

func TestConnFSM_AuthRejectionIsTerminal(t *testing.T) {
	fsm := NewConnFSM(DefaultReconnectPolicy())
	fsm.Apply(EventDialSucceeded)

	transition := fsm.Apply(EventAuthRejected)
	assert.Equal(t, StateDisconnected, transition.State)
	assert.False(t, transition.Scheduled)
	assert.True(t, fsm.Terminal())
}

func TestConnFSM_ReconnectBackoffDoubles(t *testing.T) {
	fsm := NewConnFSM(DefaultReconnectPolicy())
	fsm.Apply(EventDialSucceeded)
	fsm.Apply(EventAuthAccepted)

	first := fsm.Apply(EventConnectionLost)
	assert.Equal(t, StateReconnecting, first.State)
	assert.True(t, first.Scheduled)
	assert.Equal(t, 5*time.Second, first.RetryIn)

	fsm.Apply(EventRetryTimerFired)
	assert.Equal(t, StateConnecting, fsm.State())

	second := fsm.Apply(EventDialFailed)
	assert.True(t, second.Scheduled)
	assert.Equal(t, 10*time.Second, second.RetryIn)
}

func TestConnFSM_ExhaustedRetriesAreTerminal(t *testing.T) {
	fsm := NewConnFSM(DefaultReconnectPolicy())
	fsm.Apply(EventDialSucceeded)
	fsm.Apply(EventAuthAccepted)

	fsm.Apply(EventConnectionLost)
	fsm.Apply(EventRetryTimerFired)
	fsm.Apply(EventDialFailed)
	fsm.Apply(EventRetryTimerFired)

	transition := fsm.Apply(EventDialFailed)
	assert.Equal(t, StateDisconnected, transition.State)
	assert.False(t, transition.Scheduled)
	assert.True(t, fsm.Terminal())

	// no further automatic retry from the terminal state
	transition = fsm.Apply(EventConnectionLost)
	assert.Equal(t, StateDisconnected, transition.State)
	assert.False(t, transition.Scheduled)
}

func TestConnFSM_SuccessResetsBackoff(t *testing.T) {
	fsm := NewConnFSM(DefaultReconnectPolicy())
	fsm.Apply(EventDialSucceeded)
	fsm.Apply(EventAuthAccepted)

	fsm.Apply(EventConnectionLost)
	fsm.Apply(EventRetryTimerFired)
	fsm.Apply(EventDialSucceeded)
	fsm.Apply(EventAuthAccepted)
	assert.Equal(t, 0, fsm.Attempts())

	transition := fsm.Apply(EventConnectionLost)
	assert.Equal(t, 5*time.Second, transition.RetryIn)
}

func TestConnFSM_BackoffCapped(t *testing.T) {
	fsm := NewConnFSM(ReconnectPolicy{MaxAttempts: 5, InitialBackoff: 5 * time.Second, MaxBackoff: 30 * time.Second})
	fsm.Apply(EventDialSucceeded)
	fsm.Apply(EventAuthAccepted)

	var delays []time.Duration
	transition := fsm.Apply(EventConnectionLost)
	for transition.Scheduled {
		delays = append(delays, transition.RetryIn)
		fsm.Apply(EventRetryTimerFired)
		transition = fsm.Apply(EventDialFailed)
	}

	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second,
	}, delays)
	assert.True(t, fsm.Terminal())
}

func TestConnFSM_ManualReset(t *testing.T) {
	fsm := NewConnFSM(ReconnectPolicy{MaxAttempts: 0, InitialBackoff: 5 * time.Second, MaxBackoff: 30 * time.Second})
	fsm.Apply(EventDialFailed)
	assert.True(t, fsm.Terminal())

	fsm.Reset()
	assert.Equal(t, StateConnecting, fsm.State())
	assert.Equal(t, 0, fsm.Attempts())
}
