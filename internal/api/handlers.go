package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/HairyGair/go-barry/internal/auth"
	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/services"
	"github.com/HairyGair/go-barry/internal/sync"
)

const sessionHeader = "X-Session-ID"

// Server exposes the aggregator and the hub over HTTP.
type Server struct {
	aggregator *services.Aggregator
	hub        *sync.Hub
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewServer creates the HTTP server surface
func NewServer(aggregator *services.Aggregator, hub *sync.Hub, logger zerolog.Logger) *Server {
	return &Server{
		aggregator: aggregator,
		hub:        hub,
		logger:     logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// origin policy is enforced by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type alertsMetadata struct {
	Sources     []services.SourceStatus `json:"sources"`
	Statistics  alertStatistics         `json:"statistics"`
	LastUpdated time.Time               `json:"lastUpdated"`
	Degraded    bool                    `json:"degraded"`
}

type alertStatistics struct {
	TotalAlerts       int `json:"totalAlerts"`
	HighSeverity      int `json:"highSeverity"`
	SuccessfulSources int `json:"successfulSources"`
	TotalSources      int `json:"totalSources"`
}

type alertsResponse struct {
	Alerts   []alerts.Alert `json:"alerts"`
	Metadata alertsMetadata `json:"metadata"`
}

type commandRequest struct {
	Reason          string `json:"reason,omitempty"`
	Priority        string `json:"priority,omitempty"`
	Note            string `json:"note,omitempty"`
	Message         string `json:"message,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type commandResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Result  *sync.Envelope `json:"result,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListAlerts always answers 200: upstream failures degrade to an
// empty alert list with error detail in the metadata.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.aggregator.FetchAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("alert query degraded")
		snapshot = services.Snapshot{Alerts: []alerts.Alert{}, Degraded: true}
	}
	s.writeJSON(w, http.StatusOK, buildAlertsResponse(snapshot))
}

func buildAlertsResponse(snapshot services.Snapshot) alertsResponse {
	stats := alertStatistics{
		TotalAlerts:  len(snapshot.Alerts),
		TotalSources: len(snapshot.Sources),
	}
	for _, alert := range snapshot.Alerts {
		if alert.EffectiveSeverity() == alerts.SeverityHigh {
			stats.HighSeverity++
		}
	}
	for _, status := range snapshot.Sources {
		if status.Success {
			stats.SuccessfulSources++
		}
	}
	return alertsResponse{
		Alerts: snapshot.Alerts,
		Metadata: alertsMetadata{
			Sources:     snapshot.Sources,
			Statistics:  stats,
			LastUpdated: snapshot.LastUpdated,
			Degraded:    snapshot.Degraded,
		},
	}
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := s.aggregator.FetchAll(r.Context())
	if err == nil {
		for _, alert := range snapshot.Alerts {
			if alert.ID == id {
				s.writeJSON(w, http.StatusOK, alert)
				return
			}
		}
	}
	s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	body := decodeCommand(r)
	s.command(w, r, sync.TypeAcknowledgeAlert, sync.AcknowledgePayload{
		AlertID: chi.URLParam(r, "id"),
		Reason:  body.Reason,
	})
}

func (s *Server) handleSetPriority(w http.ResponseWriter, r *http.Request) {
	body := decodeCommand(r)
	s.command(w, r, sync.TypeSetPriority, sync.PriorityPayload{
		AlertID:  chi.URLParam(r, "id"),
		Priority: body.Priority,
		Reason:   body.Reason,
	})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	body := decodeCommand(r)
	s.command(w, r, sync.TypeAddNote, sync.NotePayload{
		AlertID: chi.URLParam(r, "id"),
		Note:    body.Note,
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	body := decodeCommand(r)
	s.command(w, r, sync.TypeDismissFromDisplay, sync.DisplayActionPayload{
		AlertID: chi.URLParam(r, "id"),
		Reason:  body.Reason,
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, sync.TypeLockOnDisplay, sync.DisplayActionPayload{
		AlertID: chi.URLParam(r, "id"),
	})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	body := decodeCommand(r)
	s.command(w, r, sync.TypeBroadcastMessage, sync.BroadcastPayload{
		Message:         body.Message,
		Priority:        body.Priority,
		DurationSeconds: body.DurationSeconds,
	})
}

// command runs a supervisor action through the hub, so HTTP commands and
// socket actions share validation, state mutation and fan-out.
func (s *Server) command(w http.ResponseWriter, r *http.Request, messageType sync.MessageType, payload interface{}) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		s.writeJSON(w, http.StatusUnauthorized, commandResponse{Success: false, Error: "missing " + sessionHeader + " header"})
		return
	}

	echo, err := s.hub.Do(r.Context(), sessionID, messageType, payload)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrInvalidSession) {
			status = http.StatusUnauthorized
		}
		s.writeJSON(w, status, commandResponse{Success: false, Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Result: &echo})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.ServeConn(ws)
}

func decodeCommand(r *http.Request) commandRequest {
	var body commandRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	return body
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
