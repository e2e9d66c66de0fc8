package tomtom

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
  "incidents": [
    {
      "properties": {
        "id": "inc-1",
        "iconCategory": 8,
        "magnitudeOfDelay": 4,
        "startTime": "2025-06-01T10:00:00Z",
        "endTime": "2025-06-01T16:00:00Z",
        "from": "A1 J65 Birtley",
        "to": "A1 J66 Eighton Lodge",
        "roadNumbers": ["A1"],
        "events": [{"description": "Road closed due to collision"}]
      },
      "geometry": {
        "type": "LineString",
        "coordinates": [[-1.5766, 54.8951], [-1.5700, 54.9000]]
      }
    },
    {
      "properties": {
        "id": "inc-2",
        "iconCategory": 6,
        "magnitudeOfDelay": 2,
        "startTime": "2025-06-01T11:30:00Z",
        "from": "Coast Road Wallsend",
        "roadNumbers": ["A1058"],
        "events": [{"description": "Queuing traffic"}]
      },
      "geometry": {
        "type": "Point",
        "coordinates": [-1.5330, 55.0020]
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "-1.8,54.8,-1.3,55.1", 5*time.Second)
	client.baseURL = server.URL
	return client
}

func TestFetch_NormalizesIncidents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("bbox"))
		w.Write([]byte(fixtureIncidents))
	})

	result, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)

	closure := result[0]
	assert.Equal(t, "tomtom_inc-1", closure.ID)
	assert.Equal(t, "A1 - Road closed due to collision", closure.Title)
	assert.Equal(t, "A1 J65 Birtley to A1 J66 Eighton Lodge", closure.Location)
	assert.Equal(t, alerts.SeverityHigh, closure.Severity)
	assert.Equal(t, alerts.TypeIncident, closure.Type)
	assert.Equal(t, "tomtom", closure.Source)
	require.NotNil(t, closure.Coordinates)
	assert.InDelta(t, 54.8951, closure.Coordinates.Latitude, 0.0001)
	assert.InDelta(t, -1.5766, closure.Coordinates.Longitude, 0.0001)
	require.NotNil(t, closure.EndTime)
	assert.Equal(t, time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), *closure.EndTime)

	jam := result[1]
	assert.Equal(t, alerts.SeverityMedium, jam.Severity)
	assert.Equal(t, alerts.TypeCongestion, jam.Type)
	assert.Nil(t, jam.EndTime)
	require.NotNil(t, jam.Coordinates)
	assert.InDelta(t, 55.0020, jam.Coordinates.Latitude, 0.0001)
}

func TestFetch_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetch_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, alerts.SeverityHigh, mapSeverity(iconRoadClosed, 0))
	assert.Equal(t, alerts.SeverityHigh, mapSeverity(iconAccident, 3))
	assert.Equal(t, alerts.SeverityMedium, mapSeverity(iconJam, 0))
	assert.Equal(t, alerts.SeverityMedium, mapSeverity(iconAccident, 2))
	assert.Equal(t, alerts.SeverityLow, mapSeverity(iconAccident, 1))
}
