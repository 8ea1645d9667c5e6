// Package watersource discovers water features near a farm from an
// Overpass-compatible geographic data provider and keeps each farm's
// copy fresh on a day-scale TTL.
package watersource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/farm"
)

// DefaultEndpoint is the public Overpass API interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// ErrProvider wraps every failure talking to the provider. Callers
// match it with errors.Is.
var ErrProvider = errors.New("water source provider")

// Client queries the provider for water features around a point.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient returns a provider client. An empty endpoint selects the
// public Overpass API.
func NewClient(endpoint string, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 25 * time.Second},
		logger:   logger,
	}
}

// overpassResponse is the provider's JSON envelope.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// overpassElement is one feature. Nodes carry lat/lon directly; ways
// and relations carry a computed center because the query asks for
// "out center".
type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// waterQuery builds the Overpass QL union selecting water features
// within radiusKm of the point.
func waterQuery(lat, lon, radiusKm float64) string {
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusKm*1000, lat, lon)
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, sel := range []string{
		`node["natural"="water"]`,
		`way["natural"="water"]`,
		`relation["natural"="water"]`,
		`node["waterway"]`,
		`way["waterway"]`,
		`node["natural"="spring"]`,
		`node["man_made"~"water_tower|water_well"]`,
		`way["man_made"~"water_tower|water_well"]`,
		`way["landuse"="reservoir"]`,
	} {
		b.WriteString("  " + sel + around + ";\n")
	}
	b.WriteString(");\nout center;")
	return b.String()
}

// FetchNear returns the water features within radiusKm of the point.
// Zero features is a valid result; every transport or decode failure
// wraps ErrProvider.
func (c *Client) FetchNear(ctx context.Context, lat, lon, radiusKm float64) ([]farm.WaterSource, error) {
	form := url.Values{"data": {waterQuery(lat, lon, radiusKm)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", ErrProvider, resp.Status, truncate(data, 200))
	}

	var out overpassResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	sources := make([]farm.WaterSource, 0, len(out.Elements))
	seen := make(map[string]bool, len(out.Elements))
	for _, el := range out.Elements {
		ws, ok := elementToSource(el)
		if !ok || seen[ws.ID] {
			continue
		}
		seen[ws.ID] = true
		sources = append(sources, ws)
	}
	c.logger.Debug("fetched water sources",
		zap.Int("elements", len(out.Elements)),
		zap.Int("sources", len(sources)))
	return sources, nil
}

// elementToSource converts one provider element. Elements without a
// usable coordinate are skipped.
func elementToSource(el overpassElement) (farm.WaterSource, bool) {
	lat, lon := el.Lat, el.Lon
	if el.Type != "node" {
		if el.Center == nil {
			return farm.WaterSource{}, false
		}
		lat, lon = el.Center.Lat, el.Center.Lon
	}
	return farm.WaterSource{
		ID:     fmt.Sprintf("%s/%d", el.Type, el.ID),
		Name:   el.Tags["name"],
		Type:   classify(el.Tags),
		Lat:    lat,
		Lon:    lon,
		Source: farm.SourceOSM,
	}, true
}

// classify maps provider tags onto the fixed water source kinds.
// Recognizably water-related tags that match no specific kind degrade
// to Waterway so a fetch never fails on vocabulary it has not seen.
func classify(tags map[string]string) farm.WaterSourceType {
	switch tags["waterway"] {
	case "":
	case "river":
		return farm.River
	case "stream":
		return farm.Stream
	case "canal":
		return farm.Canal
	default:
		return farm.Waterway
	}

	if tags["natural"] == "spring" {
		return farm.Spring
	}

	switch tags["man_made"] {
	case "water_tower":
		return farm.WaterTower
	case "water_well":
		return farm.Well
	}

	if tags["landuse"] == "reservoir" {
		return farm.Reservoir
	}

	if tags["natural"] == "water" {
		switch tags["water"] {
		case "lake", "oxbow":
			return farm.Lake
		case "pond":
			return farm.Pond
		case "reservoir", "basin":
			return farm.Reservoir
		case "river":
			return farm.River
		case "canal":
			return farm.Canal
		case "stream":
			return farm.Stream
		}
	}

	return farm.Waterway
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
