package natlhighways

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

const fixtureFeed = `<?xml version="1.0" encoding="UTF-8"?>
<d2LogicalModel xmlns="http://datex2.eu/schema/2/2_0">
  <payloadPublication>
    <situation id="SIT-1">
      <situationRecord id="REC-1" type="MaintenanceWorks">
        <situationRecordCreationTime>2025-06-01T06:00:00Z</situationRecordCreationTime>
        <situationRecordVersionTime>2025-06-01T08:30:00Z</situationRecordVersionTime>
        <severity>medium</severity>
        <validity>
          <validityTimeSpecification>
            <overallStartTime>2025-06-01T06:00:00Z</overallStartTime>
            <overallEndTime>2025-06-03T18:00:00Z</overallEndTime>
          </validityTimeSpecification>
        </validity>
        <groupOfLocations>
          <locationContainedInGroup>
            <pointByCoordinates>
              <pointCoordinates>
                <latitude>54.8951</latitude>
                <longitude>-1.5766</longitude>
              </pointCoordinates>
            </pointByCoordinates>
            <locationDescriptor>J65 Birtley to J66 Eighton Lodge</locationDescriptor>
            <roadNumber>A1</roadNumber>
          </locationContainedInGroup>
        </groupOfLocations>
        <generalPublicComment>
          <comment>
            <values>
              <value>Carriageway repairs with lane closures northbound.</value>
            </values>
          </comment>
        </generalPublicComment>
      </situationRecord>
    </situation>
    <situation id="SIT-2">
      <situationRecord id="REC-2" type="RoadOrCarriagewayOrLaneManagement">
        <situationRecordCreationTime>2025-06-01T09:00:00Z</situationRecordCreationTime>
        <severity>high</severity>
        <groupOfLocations>
          <locationContainedInGroup>
            <locationDescriptor>A19 Tyne Tunnel southbound</locationDescriptor>
            <roadNumber>A19</roadNumber>
          </locationContainedInGroup>
        </groupOfLocations>
        <generalPublicComment>
          <comment>
            <values>
              <value>Tunnel closed southbound.</value>
            </values>
          </comment>
        </generalPublicComment>
      </situationRecord>
    </situation>
  </payloadPublication>
</d2LogicalModel>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", 5*time.Second)
	client.baseURL = server.URL
	return client
}

func TestFetch_NormalizesSituations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Write([]byte(fixtureFeed))
	})

	result, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)

	roadworks := result[0]
	assert.Equal(t, "nh_REC-1", roadworks.ID)
	assert.Equal(t, "A1 - Roadworks", roadworks.Title)
	assert.Equal(t, "A1 J65 Birtley to J66 Eighton Lodge", roadworks.Location)
	assert.Equal(t, "Carriageway repairs with lane closures northbound.", roadworks.Description)
	assert.Equal(t, alerts.SeverityMedium, roadworks.Severity)
	assert.Equal(t, alerts.TypeRoadwork, roadworks.Type)
	assert.Equal(t, "national_highways", roadworks.Source)
	require.NotNil(t, roadworks.Coordinates)
	assert.InDelta(t, 54.8951, roadworks.Coordinates.Latitude, 0.0001)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), roadworks.UpdatedAt)
	require.NotNil(t, roadworks.EndTime)

	closure := result[1]
	assert.Equal(t, alerts.SeverityHigh, closure.Severity, "carriageway management is always High")
	assert.Nil(t, closure.Coordinates)
	assert.Nil(t, closure.EndTime)
}

func TestFetch_InvalidKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription key")
}

func TestFetch_MalformedFeed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all <"))
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
}
