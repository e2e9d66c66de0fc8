package mapquest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/geo"
	"github.com/HairyGair/go-barry/internal/sources"
)

const sourceName = "mapquest"

// MapQuest incident type codes
const (
	typeConstruction = 1
	typeEvent        = 2
	typeCongestion   = 3
	typeIncident     = 4
)

// Client fetches traffic incidents from the MapQuest Traffic API
type Client struct {
	apiKey      string
	baseURL     string
	boundingBox string // "lat1,lng1,lat2,lng2"
	httpClient  *http.Client
}

// NewClient creates a MapQuest incident client for the given bounding box
func NewClient(apiKey, boundingBox string, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		baseURL:     "https://www.mapquestapi.com",
		boundingBox: boundingBox,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string     { return sourceName }
func (c *Client) Reliability() int { return sources.RankMapQuest }

type incidentResponse struct {
	Incidents []struct {
		ID        string  `json:"id"`
		Type      int     `json:"type"`
		Severity  int     `json:"severity"`
		ShortDesc string  `json:"shortDesc"`
		FullDesc  string  `json:"fullDesc"`
		Lat       float64 `json:"lat"`
		Lng       float64 `json:"lng"`
		StartTime string  `json:"startTime"`
		EndTime   string  `json:"endTime"`
		Impacting bool    `json:"impacting"`
	} `json:"incidents"`
}

// Fetch retrieves current incidents normalized to canonical alerts
func (c *Client) Fetch(ctx context.Context) ([]alerts.Alert, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("boundingBox", c.boundingBox)
	params.Set("filters", "construction,incidents,congestion")

	requestURL := fmt.Sprintf("%s/traffic/v2/incidents?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response incidentResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return c.normalize(response), nil
}

func (c *Client) normalize(response incidentResponse) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(response.Incidents))
	for _, incident := range response.Incidents {
		if incident.ID == "" {
			continue
		}

		alert := alerts.Alert{
			ID:          fmt.Sprintf("mapquest_%s", incident.ID),
			Title:       incident.ShortDesc,
			Description: incident.FullDesc,
			Location:    incident.ShortDesc,
			Severity:    mapSeverity(incident.Severity),
			Status:      alerts.StatusRed,
			Type:        mapType(incident.Type),
			Source:      sourceName,
		}

		if incident.Lat != 0 || incident.Lng != 0 {
			alert.Coordinates = &geo.Point{Latitude: incident.Lat, Longitude: incident.Lng}
		}

		// MapQuest timestamps carry no zone suffix
		if ts, err := time.Parse("2006-01-02T15:04:05", incident.StartTime); err == nil {
			alert.CreatedAt = ts.UTC()
			alert.UpdatedAt = ts.UTC()
		}
		if ts, err := time.Parse("2006-01-02T15:04:05", incident.EndTime); err == nil {
			end := ts.UTC()
			alert.EndTime = &end
		}

		out = append(out, alert)
	}
	return out
}

// mapSeverity: MapQuest severity runs 0-4
func mapSeverity(severity int) alerts.Severity {
	switch {
	case severity >= 3:
		return alerts.SeverityHigh
	case severity == 2:
		return alerts.SeverityMedium
	default:
		return alerts.SeverityLow
	}
}

func mapType(incidentType int) alerts.Type {
	switch incidentType {
	case typeConstruction:
		return alerts.TypeRoadwork
	case typeCongestion:
		return alerts.TypeCongestion
	default:
		return alerts.TypeIncident
	}
}
