package natlhighways

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/geo"
	"github.com/HairyGair/go-barry/internal/sources"
)

const sourceName = "national_highways"

// Client fetches the National Highways DATEX II situation feed
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a National Highways client. The API key goes in
// the Ocp-Apim-Subscription-Key header.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.data.nationalhighways.co.uk",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string     { return sourceName }
func (c *Client) Reliability() int { return sources.RankNationalHighways }

// Minimal DATEX II situation publication mapping. Namespaces are
// ignored, encoding/xml matches on local names.
type situationFeed struct {
	XMLName            xml.Name `xml:"d2LogicalModel"`
	PayloadPublication struct {
		Situations []situation `xml:"situation"`
	} `xml:"payloadPublication"`
}

type situation struct {
	ID      string            `xml:"id,attr"`
	Records []situationRecord `xml:"situationRecord"`
}

type situationRecord struct {
	ID           string `xml:"id,attr"`
	Type         string `xml:"type,attr"`
	CreationTime string `xml:"situationRecordCreationTime"`
	VersionTime  string `xml:"situationRecordVersionTime"`
	Severity     string `xml:"severity"`
	Validity     struct {
		TimeSpecification struct {
			OverallStartTime string `xml:"overallStartTime"`
			OverallEndTime   string `xml:"overallEndTime"`
		} `xml:"validityTimeSpecification"`
	} `xml:"validity"`
	Location struct {
		PointCoordinates struct {
			Latitude  float64 `xml:"latitude"`
			Longitude float64 `xml:"longitude"`
		} `xml:"pointByCoordinates>pointCoordinates"`
		Descriptor string `xml:"locationDescriptor"`
		RoadNumber string `xml:"roadNumber"`
	} `xml:"groupOfLocations>locationContainedInGroup"`
	Comment struct {
		Values []string `xml:"values>value"`
	} `xml:"generalPublicComment>comment"`
}

// Fetch retrieves current situations normalized to canonical alerts
func (c *Client) Fetch(ctx context.Context) ([]alerts.Alert, error) {
	requestURL := fmt.Sprintf("%s/roads/v2.0/closures", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("invalid subscription key")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	var feed situationFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse DATEX feed: %w", err)
	}

	return c.normalize(feed), nil
}

func (c *Client) normalize(feed situationFeed) []alerts.Alert {
	var out []alerts.Alert
	for _, sit := range feed.PayloadPublication.Situations {
		for _, record := range sit.Records {
			if record.ID == "" {
				continue
			}

			description := strings.Join(record.Comment.Values, " ")
			location := record.Location.Descriptor
			if record.Location.RoadNumber != "" {
				location = strings.TrimSpace(record.Location.RoadNumber + " " + location)
			}

			alert := alerts.Alert{
				ID:          fmt.Sprintf("nh_%s", record.ID),
				Title:       buildTitle(record.Type, record.Location.RoadNumber),
				Description: description,
				Location:    location,
				Severity:    mapSeverity(record.Severity, record.Type),
				Status:      alerts.StatusRed,
				Type:        mapType(record.Type),
				Source:      sourceName,
				Coordinates: coordinates(record),
			}

			if ts := parseTime(record.CreationTime); !ts.IsZero() {
				alert.CreatedAt = ts
			}
			if ts := parseTime(record.VersionTime); !ts.IsZero() {
				alert.UpdatedAt = ts
			}
			if ts := parseTime(record.Validity.TimeSpecification.OverallEndTime); !ts.IsZero() {
				alert.EndTime = &ts
			}

			out = append(out, alert)
		}
	}
	if out == nil {
		out = []alerts.Alert{}
	}
	return out
}

func coordinates(record situationRecord) *geo.Point {
	pt := record.Location.PointCoordinates
	if pt.Latitude == 0 && pt.Longitude == 0 {
		return nil
	}
	return &geo.Point{Latitude: pt.Latitude, Longitude: pt.Longitude}
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func buildTitle(recordType, roadNumber string) string {
	label := humanizeRecordType(recordType)
	if roadNumber != "" {
		return fmt.Sprintf("%s - %s", roadNumber, label)
	}
	return label
}

func humanizeRecordType(recordType string) string {
	switch {
	case strings.Contains(recordType, "MaintenanceWorks"):
		return "Roadworks"
	case strings.Contains(recordType, "AbnormalTraffic"):
		return "Congestion"
	case strings.Contains(recordType, "Accident"):
		return "Accident"
	case strings.Contains(recordType, "RoadOrCarriagewayOrLaneManagement"):
		return "Road closure"
	default:
		return "Traffic alert"
	}
}

func mapSeverity(severity, recordType string) alerts.Severity {
	if strings.Contains(recordType, "RoadOrCarriagewayOrLaneManagement") {
		return alerts.SeverityHigh
	}
	switch strings.ToLower(severity) {
	case "high", "highest":
		return alerts.SeverityHigh
	case "medium":
		return alerts.SeverityMedium
	default:
		return alerts.SeverityLow
	}
}

func mapType(recordType string) alerts.Type {
	switch {
	case strings.Contains(recordType, "MaintenanceWorks"):
		return alerts.TypeRoadwork
	case strings.Contains(recordType, "AbnormalTraffic"):
		return alerts.TypeCongestion
	default:
		return alerts.TypeIncident
	}
}
