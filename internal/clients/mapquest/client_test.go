package mapquest

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
      "id": "mq-1",
      "type": 1,
      "severity": 3,
      "shortDesc": "A184 Felling Bypass roadworks",
      "fullDesc": "Resurfacing works between Heworth and Gateshead, expect delays",
      "lat": 54.9530,
      "lng": -1.5620,
      "startTime": "2025-06-01T07:00:00",
      "endTime": "2025-06-05T19:00:00",
      "impacting": true
    },
    {
      "id": "mq-2",
      "type": 3,
      "severity": 1,
      "shortDesc": "Slow traffic on A167",
      "fullDesc": "Slow traffic on A167 Durham Road",
      "lat": 54.8900,
      "lng": -1.5800,
      "startTime": "2025-06-01T08:45:00",
      "impacting": false
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "55.1,-1.8,54.8,-1.3", 5*time.Second)
	client.baseURL = server.URL
	return client
}

func TestFetch_NormalizesIncidents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("boundingBox"))
		w.Write([]byte(fixtureIncidents))
	})

	result, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)

	roadworks := result[0]
	assert.Equal(t, "mapquest_mq-1", roadworks.ID)
	assert.Equal(t, "A184 Felling Bypass roadworks", roadworks.Title)
	assert.Equal(t, alerts.SeverityHigh, roadworks.Severity)
	assert.Equal(t, alerts.TypeRoadwork, roadworks.Type)
	assert.Equal(t, "mapquest", roadworks.Source)
	require.NotNil(t, roadworks.Coordinates)
	assert.InDelta(t, 54.9530, roadworks.Coordinates.Latitude, 0.0001)
	assert.Equal(t, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), roadworks.CreatedAt)
	require.NotNil(t, roadworks.EndTime)

	congestion := result[1]
	assert.Equal(t, alerts.TypeCongestion, congestion.Type)
	assert.Equal(t, alerts.SeverityLow, congestion.Severity)
	assert.Nil(t, congestion.EndTime)
}

func TestFetch_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
