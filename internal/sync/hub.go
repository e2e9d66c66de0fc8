package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HairyGair/go-barry/internal/auth"
	"github.com/HairyGair/go-barry/internal/store"
)

const (
	sendBuffer        = 64
	offlineQueueLimit = 100

	defaultBroadcastDuration = 5 * time.Minute
	defaultActionRetention   = 48 * time.Hour
)

// ActionStore persists supervisor actions for restart recovery.
type ActionStore interface {
	Save(ctx context.Context, record store.Record) error
	All(ctx context.Context) ([]store.Record, error)
}

// Session is one live client connection. Its outbound channel is fed only
// by the hub loop.
type Session struct {
	id         string
	clientType string
	identity   string
	supervisor Supervisor
	authed     bool
	send       chan Envelope
	done       chan struct{}
}

// ID returns the connection identifier
func (s *Session) ID() string { return s.id }

// Outbound is the stream of envelopes to deliver to the client.
func (s *Session) Outbound() <-chan Envelope { return s.send }

// Done is closed when the hub has discarded the session.
func (s *Session) Done() <-chan struct{} { return s.done }

type sessionMessage struct {
	sess *Session
	env  Envelope
}

type execRequest struct {
	actor Supervisor
	env   Envelope
	reply chan execResult
}

type execResult struct {
	echo Envelope
	err  error
}

// identityQueue holds messages for a disconnected identity, bounded with a
// drop-oldest policy.
type identityQueue struct {
	pending []Envelope
}

func (q *identityQueue) enqueue(env Envelope) {
	for _, queued := range q.pending {
		if queued.ID == env.ID {
			return
		}
	}
	if len(q.pending) >= offlineQueueLimit {
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, env)
}

// Hub owns the session state and every connected client. All mutation
// happens on the Run loop, one writer, no locks.
type Hub struct {
	validator auth.Validator
	actions   ActionStore
	logger    zerolog.Logger

	register    chan *Session
	unregister  chan *Session
	fromSession chan sessionMessage
	exec        chan execRequest

	state     *SessionState
	sessions  map[string]*Session
	offline   map[string]*identityQueue
	retention time.Duration
}

// NewHub creates a hub. The action store may be nil for ephemeral state.
func NewHub(validator auth.Validator, actions ActionStore, logger zerolog.Logger) *Hub {
	return &Hub{
		validator:   validator,
		actions:     actions,
		logger:      logger.With().Str("component", "hub").Logger(),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		fromSession: make(chan sessionMessage),
		exec:        make(chan execRequest),
		state:       newSessionState(),
		sessions:    make(map[string]*Session),
		offline:     make(map[string]*identityQueue),
		retention:   defaultActionRetention,
	}
}

// SetRetention overrides how long dismissals and acknowledgements stay
// visible before the sweep retires them.
func (h *Hub) SetRetention(d time.Duration) {
	if d > 0 {
		h.retention = d
	}
}

// Run restores persisted actions and drives the hub until ctx is
// cancelled. It must be running before sessions connect.
func (h *Hub) Run(ctx context.Context) {
	if err := h.restoreActions(ctx); err != nil {
		h.logger.Error().Err(err).Msg("failed to restore persisted actions")
	}

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, sess := range h.sessions {
				close(sess.done)
			}
			h.sessions = make(map[string]*Session)
			return

		case sess := <-h.register:
			h.sessions[sess.id] = sess

		case sess := <-h.unregister:
			h.dropSession(sess)

		case msg := <-h.fromSession:
			h.handleSessionMessage(ctx, msg.sess, msg.env)

		case req := <-h.exec:
			echo, err := h.applyAction(ctx, req.actor, req.env)
			req.reply <- execResult{echo: echo, err: err}
			if err == nil {
				h.broadcastEnvelope(echo)
			}

		case now := <-sweep.C:
			h.state.expireBroadcasts(now)
			h.state.expireActions(now.Add(-h.retention))
		}
	}
}

// Connect registers a new unauthenticated session. The client must send an
// auth envelope before anything else.
func (h *Hub) Connect() *Session {
	sess := &Session{
		id:   uuid.NewString(),
		send: make(chan Envelope, sendBuffer),
		done: make(chan struct{}),
	}
	h.register <- sess
	return sess
}

// Disconnect removes a session, keeping its identity's queue for replay on
// reconnect.
func (h *Hub) Disconnect(sess *Session) {
	h.unregister <- sess
}

// Inbound hands a client envelope to the hub loop.
func (h *Hub) Inbound(sess *Session, env Envelope) {
	select {
	case h.fromSession <- sessionMessage{sess: sess, env: env}:
	case <-sess.done:
	}
}

// Do validates sessionID, applies the action and broadcasts its echo. This
// is the path for HTTP commands, equivalent to the same action arriving on
// a socket.
func (h *Hub) Do(ctx context.Context, sessionID string, messageType MessageType, payload interface{}) (Envelope, error) {
	identity, err := h.validator.Validate(ctx, sessionID)
	if err != nil {
		return Envelope{}, err
	}

	env, err := NewMessage(messageType, payload)
	if err != nil {
		return Envelope{}, err
	}

	actor := Supervisor{ID: identity.SupervisorID, Name: identity.Name, Role: identity.Role}
	reply := make(chan execResult, 1)

	select {
	case h.exec <- execRequest{actor: actor, env: env, reply: reply}:
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.echo, res.err
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (h *Hub) restoreActions(ctx context.Context) error {
	if h.actions == nil {
		return nil
	}
	records, err := h.actions.All(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-h.retention)
	restored := 0
	for _, record := range records {
		if record.CreatedAt.Before(cutoff) {
			continue
		}
		restored++
		switch record.Kind {
		case store.KindDismissal:
			h.state.Dismissed[record.AlertID] = Dismissal{Actor: record.Actor, Reason: record.Reason, At: record.CreatedAt}
		case store.KindAcknowledgement:
			h.state.Acknowledged[record.AlertID] = Acknowledgement{Actor: record.Actor, Reason: record.Reason, At: record.CreatedAt}
		}
	}
	h.logger.Info().Int("records", restored).Msg("restored persisted supervisor actions")
	return nil
}

func (h *Hub) handleSessionMessage(ctx context.Context, sess *Session, env Envelope) {
	switch env.Type {
	case TypeAuth:
		h.authenticate(ctx, sess, env)

	case TypePing:
		pong, _ := NewMessage(TypePong, nil)
		h.deliver(sess, pong)

	case TypePong:
		if sess.authed && sess.clientType == ClientSupervisor {
			h.state.touchSupervisor(sess.supervisor.ID, time.Now().UTC())
		}

	case TypeRequestState:
		if sess.authed {
			h.deliver(sess, h.stateUpdate())
		}

	case TypeAcknowledgeAlert, TypeSetPriority, TypeAddNote, TypeBroadcastMessage,
		TypeLockOnDisplay, TypeDismissFromDisplay:
		if !sess.authed || sess.clientType != ClientSupervisor {
			failed, _ := NewMessage(TypeAuthFailed, AuthFailedPayload{Reason: "not authenticated as supervisor"})
			h.deliver(sess, failed)
			return
		}
		echo, err := h.applyAction(ctx, sess.supervisor, env)
		if err != nil {
			h.logger.Warn().Err(err).Str("type", string(env.Type)).Str("actor", sess.supervisor.ID).Msg("rejected action")
			return
		}
		h.broadcastEnvelope(echo)

	default:
		h.logger.Debug().Str("type", string(env.Type)).Msg("ignoring unexpected message")
	}
}

func (h *Hub) authenticate(ctx context.Context, sess *Session, env Envelope) {
	var payload AuthPayload
	if err := env.DecodePayload(&payload); err != nil {
		h.rejectAuth(sess, "malformed auth payload")
		return
	}

	switch payload.ClientType {
	case ClientSupervisor:
		identity, err := h.validator.Validate(ctx, payload.SessionID)
		if err != nil {
			h.rejectAuth(sess, "invalid session")
			return
		}
		sess.clientType = ClientSupervisor
		sess.identity = identity.SupervisorID
		sess.supervisor = Supervisor{
			ID:           identity.SupervisorID,
			Name:         identity.Name,
			Role:         identity.Role,
			LastActivity: time.Now().UTC(),
		}
		sess.authed = true

		h.state.addSupervisor(sess.supervisor)

	case ClientDisplay:
		sess.clientType = ClientDisplay
		sess.identity = payload.DisplayID
		if sess.identity == "" {
			sess.identity = sess.id
		}
		sess.authed = true

	default:
		h.rejectAuth(sess, fmt.Sprintf("unknown client type %q", payload.ClientType))
		return
	}

	success, _ := NewMessage(TypeAuthSuccess, AuthSuccessPayload{
		ConnectionID: sess.id,
		Supervisor:   supervisorRef(sess),
	})
	h.deliver(sess, success)
	h.deliver(sess, h.stateUpdate())
	h.replayQueued(sess)

	if sess.clientType == ClientSupervisor {
		joined, _ := NewMessage(TypeSupervisorJoined, RosterPayload{Supervisor: sess.supervisor})
		h.broadcastEnvelope(joined)
		h.broadcastRoster()
	}

	h.logger.Info().
		Str("connection", sess.id).
		Str("clientType", sess.clientType).
		Str("identity", sess.identity).
		Msg("client authenticated")
}

func supervisorRef(sess *Session) *Supervisor {
	if sess.clientType != ClientSupervisor {
		return nil
	}
	supervisor := sess.supervisor
	return &supervisor
}

func (h *Hub) rejectAuth(sess *Session, reason string) {
	failed, _ := NewMessage(TypeAuthFailed, AuthFailedPayload{Reason: reason})
	h.deliver(sess, failed)
	h.dropSession(sess)
}

// applyAction mutates session state for one validated supervisor action
// and returns the envelope to broadcast. Near-simultaneous actions on the
// same alert resolve last-writer-wins, both echoes still go out.
func (h *Hub) applyAction(ctx context.Context, actor Supervisor, env Envelope) (Envelope, error) {
	now := time.Now().UTC()
	h.state.touchSupervisor(actor.ID, now)

	switch env.Type {
	case TypeAcknowledgeAlert:
		var payload AcknowledgePayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.AlertID == "" {
			return Envelope{}, fmt.Errorf("acknowledge_alert requires alertId")
		}
		h.state.Acknowledged[payload.AlertID] = Acknowledgement{Actor: actor.ID, Reason: payload.Reason, At: now}
		h.persist(ctx, store.Record{Kind: store.KindAcknowledgement, AlertID: payload.AlertID, Actor: actor.ID, Reason: payload.Reason, CreatedAt: now})
		return NewMessage(TypeAlertAcknowledged, ActionEchoPayload{AlertID: payload.AlertID, Actor: actor.ID, Reason: payload.Reason, At: now})

	case TypeSetPriority:
		var payload PriorityPayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.AlertID == "" || payload.Priority == "" {
			return Envelope{}, fmt.Errorf("set_priority requires alertId and priority")
		}
		h.state.Priorities[payload.AlertID] = PriorityOverride{Priority: payload.Priority, Reason: payload.Reason, Actor: actor.ID, At: now}
		return NewMessage(TypePriorityUpdated, ActionEchoPayload{AlertID: payload.AlertID, Actor: actor.ID, Priority: payload.Priority, Reason: payload.Reason, At: now})

	case TypeAddNote:
		var payload NotePayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.AlertID == "" || payload.Note == "" {
			return Envelope{}, fmt.Errorf("add_note requires alertId and note")
		}
		h.state.Notes[payload.AlertID] = Note{Text: payload.Note, Actor: actor.ID, At: now}
		return NewMessage(TypeNoteAdded, ActionEchoPayload{AlertID: payload.AlertID, Actor: actor.ID, Note: payload.Note, At: now})

	case TypeBroadcastMessage:
		var payload BroadcastPayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.Message == "" {
			return Envelope{}, fmt.Errorf("broadcast_message requires message")
		}
		duration := defaultBroadcastDuration
		if payload.DurationSeconds > 0 {
			duration = time.Duration(payload.DurationSeconds) * time.Second
		}
		broadcast := Broadcast{
			ID:        uuid.NewString(),
			Message:   payload.Message,
			Priority:  payload.Priority,
			Actor:     actor.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(duration),
		}
		h.state.Broadcasts = append(h.state.Broadcasts, broadcast)
		return NewMessage(TypeBroadcastReceived, BroadcastEchoPayload{Broadcast: broadcast})

	case TypeLockOnDisplay:
		var payload DisplayActionPayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.AlertID == "" {
			return Envelope{}, fmt.Errorf("lock_on_display requires alertId")
		}
		h.state.Locked[payload.AlertID] = DisplayLock{Actor: actor.ID, At: now}
		return NewMessage(TypeDisplayLocked, ActionEchoPayload{AlertID: payload.AlertID, Actor: actor.ID, At: now})

	case TypeDismissFromDisplay:
		var payload DisplayActionPayload
		if err := env.DecodePayload(&payload); err != nil {
			return Envelope{}, err
		}
		if payload.AlertID == "" {
			return Envelope{}, fmt.Errorf("dismiss_from_display requires alertId")
		}
		h.state.Dismissed[payload.AlertID] = Dismissal{Actor: actor.ID, Reason: payload.Reason, At: now}
		h.persist(ctx, store.Record{Kind: store.KindDismissal, AlertID: payload.AlertID, Actor: actor.ID, Reason: payload.Reason, CreatedAt: now})
		return NewMessage(TypeDisplayDismissed, ActionEchoPayload{AlertID: payload.AlertID, Actor: actor.ID, Reason: payload.Reason, At: now})
	}

	return Envelope{}, fmt.Errorf("unsupported action %s", env.Type)
}

func (h *Hub) persist(ctx context.Context, record store.Record) {
	if h.actions == nil {
		return
	}
	if err := h.actions.Save(ctx, record); err != nil {
		h.logger.Error().Err(err).Str("alert", record.AlertID).Str("kind", record.Kind).Msg("failed to persist action")
	}
}

func (h *Hub) stateUpdate() Envelope {
	env, _ := NewMessage(TypeStateUpdate, h.state.snapshot(time.Now().UTC()))
	return env
}

// broadcastEnvelope fans out to every authenticated session and queues for
// known identities currently offline.
func (h *Hub) broadcastEnvelope(env Envelope) {
	connected := make(map[string]struct{})
	for _, sess := range h.sessions {
		if !sess.authed {
			continue
		}
		connected[sess.identity] = struct{}{}
		h.deliver(sess, env)
	}
	for identity, queue := range h.offline {
		if _, online := connected[identity]; online {
			continue
		}
		queue.enqueue(env)
	}
}

// broadcastRoster sends the updated supervisor list to everyone.
func (h *Hub) broadcastRoster() {
	list, _ := NewMessage(TypeSupervisorList, RosterListPayload{Supervisors: append([]Supervisor(nil), h.state.Supervisors...)})
	h.broadcastEnvelope(list)
}

// deliver sends without blocking the hub loop. A client that cannot keep
// up loses messages rather than stalling everyone else.
func (h *Hub) deliver(sess *Session, env Envelope) {
	select {
	case sess.send <- env:
	default:
		h.logger.Warn().Str("connection", sess.id).Str("type", string(env.Type)).Msg("dropping message for slow client")
	}
}

// replayQueued flushes the identity's offline queue in order. Envelope IDs
// already seen in the queue were deduplicated at enqueue time.
func (h *Hub) replayQueued(sess *Session) {
	queue, ok := h.offline[sess.identity]
	if !ok {
		return
	}
	for _, env := range queue.pending {
		h.deliver(sess, env)
	}
	h.logger.Info().Str("identity", sess.identity).Int("messages", len(queue.pending)).Msg("replayed queued messages")
	delete(h.offline, sess.identity)
}

func (h *Hub) dropSession(sess *Session) {
	if _, ok := h.sessions[sess.id]; !ok {
		return
	}
	delete(h.sessions, sess.id)
	close(sess.done)

	if !sess.authed {
		return
	}

	// keep a queue so the identity can catch up on reconnect
	if _, ok := h.offline[sess.identity]; !ok {
		h.offline[sess.identity] = &identityQueue{}
	}

	if sess.clientType == ClientSupervisor && !h.identityConnected(sess.identity) {
		h.state.removeSupervisor(sess.supervisor.ID)
		left, _ := NewMessage(TypeSupervisorLeft, RosterPayload{Supervisor: sess.supervisor})
		h.broadcastEnvelope(left)
		h.broadcastRoster()
	}

	h.logger.Info().Str("connection", sess.id).Str("identity", sess.identity).Msg("client disconnected")
}

func (h *Hub) identityConnected(identity string) bool {
	for _, sess := range h.sessions {
		if sess.authed && sess.identity == identity {
			return true
		}
	}
	return false
}
