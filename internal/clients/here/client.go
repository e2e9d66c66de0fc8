package here

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

const sourceName = "here"

// Client fetches traffic incidents from the HERE Traffic API v7
type Client struct {
	apiKey     string
	baseURL    string
	area       string // "circle:lat,lng;r=meters" per the v7 `in` parameter
	httpClient *http.Client
}

// NewClient creates a HERE incident client for the given search area
func NewClient(apiKey, area string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://data.traffic.hereapi.com",
		area:    area,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string     { return sourceName }
func (c *Client) Reliability() int { return sources.RankHERE }

type incidentResponse struct {
	Results []incidentResult `json:"results"`
}

type incidentResult struct {
	Location struct {
		Description string `json:"description"`
		Shape       struct {
			Links []struct {
				Points []struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"points"`
			} `json:"links"`
		} `json:"shape"`
	} `json:"location"`
	IncidentDetails struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		Criticality string `json:"criticality"`
		RoadClosed  bool   `json:"roadClosed"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		Description struct {
			Value string `json:"value"`
		} `json:"description"`
		Summary struct {
			Value string `json:"value"`
		} `json:"summary"`
	} `json:"incidentDetails"`
}

// Fetch retrieves current incidents normalized to canonical alerts
func (c *Client) Fetch(ctx context.Context) ([]alerts.Alert, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("in", c.area)
	params.Set("locationReferencing", "shape")

	requestURL := fmt.Sprintf("%s/v7/incidents?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("invalid API key")
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
	out := make([]alerts.Alert, 0, len(response.Results))
	for _, result := range response.Results {
		details := result.IncidentDetails
		if details.ID == "" {
			continue
		}

		title := details.Summary.Value
		if title == "" {
			title = details.Description.Value
		}

		alert := alerts.Alert{
			ID:          fmt.Sprintf("here_%s", details.ID),
			Title:       title,
			Description: details.Description.Value,
			Location:    result.Location.Description,
			Severity:    mapSeverity(details.Criticality, details.RoadClosed),
			Status:      alerts.StatusRed,
			Type:        mapType(details.Type),
			Source:      sourceName,
			Coordinates: firstPoint(result),
		}

		if ts, err := time.Parse(time.RFC3339, details.StartTime); err == nil {
			alert.CreatedAt = ts
			alert.UpdatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339, details.EndTime); err == nil {
			alert.EndTime = &ts
		}

		out = append(out, alert)
	}
	return out
}

func firstPoint(result incidentResult) *geo.Point {
	for _, link := range result.Location.Shape.Links {
		for _, pt := range link.Points {
			return &geo.Point{Latitude: pt.Lat, Longitude: pt.Lng}
		}
	}
	return nil
}

// mapSeverity: closures and critical incidents are High, major is
// Medium, the rest Low
func mapSeverity(criticality string, roadClosed bool) alerts.Severity {
	if roadClosed || criticality == "critical" {
		return alerts.SeverityHigh
	}
	if criticality == "major" {
		return alerts.SeverityMedium
	}
	return alerts.SeverityLow
}

func mapType(incidentType string) alerts.Type {
	switch strings.ToLower(incidentType) {
	case "construction", "roadworks":
		return alerts.TypeRoadwork
	case "congestion":
		return alerts.TypeCongestion
	default:
		return alerts.TypeIncident
	}
}
