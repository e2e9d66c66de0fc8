package here

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
)

const fixtureIncidents = `{
  "results": [
    {
      "location": {
        "description": "A19 southbound, Silverlink to Tyne Tunnel",
        "shape": {
          "links": [
            {"points": [{"lat": 55.0180, "lng": -1.4890}, {"lat": 55.0100, "lng": -1.4800}]}
          ]
        }
      },
      "incidentDetails": {
        "id": "here-1",
        "type": "accident",
        "criticality": "critical",
        "roadClosed": true,
        "startTime": "2025-06-01T09:15:00Z",
        "endTime": "2025-06-01T12:00:00Z",
        "description": {"value": "Multi-vehicle collision, road closed southbound"},
        "summary": {"value": "A19 closed southbound"}
      }
    },
    {
      "location": {
        "description": "A167 Durham Road",
        "shape": {"links": []}
      },
      "incidentDetails": {
        "id": "here-2",
        "type": "construction",
        "criticality": "minor",
        "roadClosed": false,
        "startTime": "2025-06-01T07:00:00Z",
        "description": {"value": "Carriageway repairs, lane one closed"},
        "summary": {"value": ""}
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "circle:54.97,-1.61;r=25000", 5*time.Second)
	client.baseURL = server.URL
	return client
}

func TestFetch_NormalizesIncidents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "circle:54.97,-1.61;r=25000", r.URL.Query().Get("in"))
		w.Write([]byte(fixtureIncidents))
	})

	result, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)

	closure := result[0]
	assert.Equal(t, "here_here-1", closure.ID)
	assert.Equal(t, "A19 closed southbound", closure.Title)
	assert.Equal(t, "A19 southbound, Silverlink to Tyne Tunnel", closure.Location)
	assert.Equal(t, alerts.SeverityHigh, closure.Severity)
	assert.Equal(t, alerts.TypeIncident, closure.Type)
	assert.Equal(t, "here", closure.Source)
	require.NotNil(t, closure.Coordinates)
	assert.InDelta(t, 55.0180, closure.Coordinates.Latitude, 0.0001)
	require.NotNil(t, closure.EndTime)

	roadworks := result[1]
	assert.Equal(t, alerts.TypeRoadwork, roadworks.Type)
	assert.Equal(t, alerts.SeverityLow, roadworks.Severity)
	assert.Equal(t, "Carriageway repairs, lane one closed", roadworks.Title,
		"empty summary falls back to description")
	assert.Nil(t, roadworks.Coordinates)
}

func TestFetch_InvalidKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, alerts.SeverityHigh, mapSeverity("minor", true), "road closed always High")
	assert.Equal(t, alerts.SeverityHigh, mapSeverity("critical", false))
	assert.Equal(t, alerts.SeverityMedium, mapSeverity("major", false))
	assert.Equal(t, alerts.SeverityLow, mapSeverity("minor", false))
	assert.Equal(t, alerts.SeverityLow, mapSeverity("", false))
}
