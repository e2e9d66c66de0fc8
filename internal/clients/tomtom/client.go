package tomtom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/geo"
	"github.com/HairyGair/go-barry/internal/sources"
)

const sourceName = "tomtom"

// TomTom incident icon categories we care about
const (
	iconAccident   = 1
	iconJam        = 6
	iconRoadClosed = 8
	iconRoadworks  = 9
)

// Client fetches traffic incidents from the TomTom Traffic API
type Client struct {
	apiKey     string
	baseURL    string
	bbox       string
	httpClient *http.Client
}

// NewClient creates a TomTom incident client covering the given
// bounding box ("minLon,minLat,maxLon,maxLat")
func NewClient(apiKey, bbox string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.tomtom.com",
		bbox:    bbox,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string     { return sourceName }
func (c *Client) Reliability() int { return sources.RankTomTom }

// incidentResponse mirrors the TomTom incidentDetails v5 payload
type incidentResponse struct {
	Incidents []struct {
		Properties struct {
			ID               string   `json:"id"`
			IconCategory     int      `json:"iconCategory"`
			MagnitudeOfDelay int      `json:"magnitudeOfDelay"`
			StartTime        string   `json:"startTime"`
			EndTime          string   `json:"endTime"`
			From             string   `json:"from"`
			To               string   `json:"to"`
			RoadNumbers      []string `json:"roadNumbers"`
			Events           []struct {
				Description string `json:"description"`
			} `json:"events"`
		} `json:"properties"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"incidents"`
}

// Fetch retrieves current incidents normalized to canonical alerts
func (c *Client) Fetch(ctx context.Context) ([]alerts.Alert, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("bbox", c.bbox)
	params.Set("fields", "{incidents{properties{id,iconCategory,magnitudeOfDelay,events{description},startTime,endTime,from,to,roadNumbers},geometry{type,coordinates}}}")
	params.Set("timeValidityFilter", "present")

	requestURL := fmt.Sprintf("%s/traffic/services/5/incidentDetails?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
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
		props := incident.Properties
		if props.ID == "" {
			continue
		}

		alert := alerts.Alert{
			ID:          fmt.Sprintf("tomtom_%s", props.ID),
			Title:       buildTitle(props.RoadNumbers, firstEvent(props.Events)),
			Description: firstEvent(props.Events),
			Location:    buildLocation(props.From, props.To),
			Severity:    mapSeverity(props.IconCategory, props.MagnitudeOfDelay),
			Status:      alerts.StatusRed,
			Type:        mapType(props.IconCategory),
			Source:      sourceName,
			Coordinates: firstCoordinate(incident.Geometry.Type, incident.Geometry.Coordinates),
		}

		if ts, err := time.Parse(time.RFC3339, props.StartTime); err == nil {
			alert.CreatedAt = ts
			alert.UpdatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339, props.EndTime); err == nil {
			alert.EndTime = &ts
		}

		out = append(out, alert)
	}
	return out
}

func firstEvent(events []struct {
	Description string `json:"description"`
}) string {
	if len(events) == 0 {
		return ""
	}
	return events[0].Description
}

func buildTitle(roads []string, event string) string {
	if len(roads) > 0 && event != "" {
		return fmt.Sprintf("%s - %s", strings.Join(roads, "/"), event)
	}
	if event != "" {
		return event
	}
	return strings.Join(roads, "/")
}

func buildLocation(from, to string) string {
	switch {
	case from != "" && to != "":
		return fmt.Sprintf("%s to %s", from, to)
	case from != "":
		return from
	default:
		return to
	}
}

// mapSeverity follows the delay magnitude: closures and major delays
// are High, moderate queuing is Medium, everything else Low
func mapSeverity(iconCategory, magnitude int) alerts.Severity {
	if iconCategory == iconRoadClosed || magnitude >= 3 {
		return alerts.SeverityHigh
	}
	if magnitude == 2 || iconCategory == iconJam {
		return alerts.SeverityMedium
	}
	return alerts.SeverityLow
}

func mapType(iconCategory int) alerts.Type {
	switch iconCategory {
	case iconRoadworks:
		return alerts.TypeRoadwork
	case iconJam:
		return alerts.TypeCongestion
	default:
		return alerts.TypeIncident
	}
}

// firstCoordinate pulls the first point out of a Point or LineString
// geometry, [lng, lat] per GeoJSON
func firstCoordinate(geomType string, raw json.RawMessage) *geo.Point {
	if len(raw) == 0 {
		return nil
	}

	switch geomType {
	case "Point":
		var coord []float64
		if err := json.Unmarshal(raw, &coord); err == nil && len(coord) >= 2 {
			return &geo.Point{Latitude: coord[1], Longitude: coord[0]}
		}
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(raw, &coords); err == nil && len(coords) > 0 && len(coords[0]) >= 2 {
			return &geo.Point{Latitude: coords[0][1], Longitude: coords[0][0]}
		}
	}
	return nil
}
