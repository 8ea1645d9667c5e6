// Package farmclient is a typed Go client for the farmmap REST API.
//
// Every method returns the raw *http.Response alongside the decoded
// body so callers can read hypermedia Link and action headers.
package farmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// DefaultTimeout bounds each request when no custom http.Client is set.
const DefaultTimeout = 30 * time.Second

// Client talks to one farmmap server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL, e.g.
// "http://localhost:8086".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response decoded from the server's problem
// document.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("farmmap: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("farmmap: %d %s", e.Status, e.Title)
}

// Wire types. These mirror the server's response bodies.

type HealthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type InfoBody struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	DataDir  string   `json:"data_dir"`
	DB       bool     `json:"db"`
	Farms    int      `json:"farms"`
	Features []string `json:"features"`
}

type MessageBody struct {
	Message string `json:"message"`
}

type WaterSource struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Type   string  `json:"type"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source"`
}

type SectionData struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Ring                 orb.Ring  `json:"ring"`
	AreaAcres            float64   `json:"areaAcres"`
	CropType             string    `json:"cropType,omitempty"`
	SoilType             string    `json:"soilType,omitempty"`
	IrrigationType       string    `json:"irrigationType,omitempty"`
	Color                string    `json:"color"`
	CreatedAt            time.Time `json:"createdAt"`
	NearestWaterSourceID *string   `json:"nearestWaterSourceId,omitempty"`
}

type BoundaryData struct {
	Ring      orb.Ring  `json:"ring"`
	AreaAcres float64   `json:"areaAcres"`
	Centroid  orb.Point `json:"centroid"`
}

type FarmMapping struct {
	FarmID                  string        `json:"farmId"`
	Boundary                *BoundaryData `json:"boundary,omitempty"`
	Sections                []SectionData `json:"sections"`
	WaterSources            []WaterSource `json:"waterSources"`
	WaterSourcesLastFetched *time.Time    `json:"waterSourcesLastFetched,omitempty"`
}

type FarmStats struct {
	FarmID           string     `json:"farmId"`
	BoundaryAcres    float64    `json:"boundaryAcres"`
	SectionCount     int        `json:"sectionCount"`
	SectionAcres     float64    `json:"sectionAcres"`
	WaterSourceCount int        `json:"waterSourceCount"`
	WaterFetchedAt   *time.Time `json:"waterFetchedAt,omitempty"`
}

type SectionMeta struct {
	Name           string `json:"name"`
	CropType       string `json:"cropType,omitempty"`
	SoilType       string `json:"soilType,omitempty"`
	IrrigationType string `json:"irrigationType,omitempty"`
}

type WaterSourcesBody struct {
	Sources     []WaterSource `json:"sources"`
	LastFetched *time.Time    `json:"lastFetched,omitempty"`
}

type RefreshBody struct {
	Refreshed   bool       `json:"refreshed"`
	Count       int        `json:"count"`
	LastFetched *time.Time `json:"lastFetched,omitempty"`
}

type ManualSourceBody struct {
	Name string  `json:"name,omitempty"`
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type FarmsPage struct {
	Total  int      `json:"total"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Data   []string `json:"data"`
}

type QueryInputBody struct {
	Query string `json:"query"`
}

type QueryBody struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Count   int                      `json:"count"`
}

type TablesBody struct {
	Tables []string `json:"tables"`
}

type ringBody struct {
	Ring orb.Ring `json:"ring"`
}

// do runs one request and decodes the JSON response into out when out
// is non-nil. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: resp.Status}
		if json.Unmarshal(data, apiErr) == nil && apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return resp, apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

func farmPath(farmID string, rest ...string) string {
	parts := []string{"/api/v1/farms", url.PathEscape(farmID)}
	parts = append(parts, rest...)
	return strings.Join(parts, "/")
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) (*http.Response, HealthBody, error) {
	var body HealthBody
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, &body)
	return resp, body, err
}

// GetInfo returns service metadata.
func (c *Client) GetInfo(ctx context.Context) (*http.Response, InfoBody, error) {
	var body InfoBody
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/info", nil, &body)
	return resp, body, err
}

// ListFarms pages through the farm ids known to the server.
func (c *Client) ListFarms(ctx context.Context, offset, limit int) (*http.Response, FarmsPage, error) {
	var body FarmsPage
	path := fmt.Sprintf("/api/v1/farms?offset=%d&limit=%d", offset, limit)
	resp, err := c.do(ctx, http.MethodGet, path, nil, &body)
	return resp, body, err
}

// GetMapping returns the full geometry document for a farm.
func (c *Client) GetMapping(ctx context.Context, farmID string) (*http.Response, FarmMapping, error) {
	var body FarmMapping
	resp, err := c.do(ctx, http.MethodGet, farmPath(farmID, "mapping"), nil, &body)
	return resp, body, err
}

// GetGeoJSON returns the farm's geometry as a GeoJSON feature
// collection.
func (c *Client) GetGeoJSON(ctx context.Context, farmID string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+farmPath(farmID, "geojson"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: resp.Status}
		json.Unmarshal(data, apiErr)
		return resp, nil, apiErr
	}
	return resp, data, nil
}

// GetStats returns summary statistics for a farm.
func (c *Client) GetStats(ctx context.Context, farmID string) (*http.Response, FarmStats, error) {
	var body FarmStats
	resp, err := c.do(ctx, http.MethodGet, farmPath(farmID, "stats"), nil, &body)
	return resp, body, err
}

// PutBoundary sets or replaces the farm boundary.
func (c *Client) PutBoundary(ctx context.Context, farmID string, ring orb.Ring) (*http.Response, FarmMapping, error) {
	var body FarmMapping
	resp, err := c.do(ctx, http.MethodPut, farmPath(farmID, "boundary"), ringBody{Ring: ring}, &body)
	return resp, body, err
}

// ClearBoundary removes the farm boundary. Sections stay.
func (c *Client) ClearBoundary(ctx context.Context, farmID string) (*http.Response, FarmMapping, error) {
	var body FarmMapping
	resp, err := c.do(ctx, http.MethodDelete, farmPath(farmID, "boundary"), nil, &body)
	return resp, body, err
}

// ListSections returns the farm's crop sections in creation order.
func (c *Client) ListSections(ctx context.Context, farmID string) (*http.Response, []SectionData, error) {
	var body []SectionData
	resp, err := c.do(ctx, http.MethodGet, farmPath(farmID, "sections"), nil, &body)
	return resp, body, err
}

// CreateSection adds a crop section from a polygon ring.
func (c *Client) CreateSection(ctx context.Context, farmID string, ring orb.Ring) (*http.Response, SectionData, error) {
	var body SectionData
	resp, err := c.do(ctx, http.MethodPost, farmPath(farmID, "sections"), ringBody{Ring: ring}, &body)
	return resp, body, err
}

// GetSection returns one section.
func (c *Client) GetSection(ctx context.Context, farmID, sectionID string) (*http.Response, SectionData, error) {
	var body SectionData
	resp, err := c.do(ctx, http.MethodGet, farmPath(farmID, "sections", url.PathEscape(sectionID)), nil, &body)
	return resp, body, err
}

// UpdateSectionMeta replaces a section's editable details.
func (c *Client) UpdateSectionMeta(ctx context.Context, farmID, sectionID string, meta SectionMeta) (*http.Response, SectionData, error) {
	var body SectionData
	resp, err := c.do(ctx, http.MethodPut, farmPath(farmID, "sections", url.PathEscape(sectionID)), meta, &body)
	return resp, body, err
}

// UpdateSectionRing replaces a section's polygon. Area and nearest
// water source are recomputed server side.
func (c *Client) UpdateSectionRing(ctx context.Context, farmID, sectionID string, ring orb.Ring) (*http.Response, SectionData, error) {
	var body SectionData
	resp, err := c.do(ctx, http.MethodPut, farmPath(farmID, "sections", url.PathEscape(sectionID), "ring"), ringBody{Ring: ring}, &body)
	return resp, body, err
}

// DeleteSection removes a section. Deleting an absent section succeeds.
func (c *Client) DeleteSection(ctx context.Context, farmID, sectionID string) (*http.Response, MessageBody, error) {
	var body MessageBody
	resp, err := c.do(ctx, http.MethodDelete, farmPath(farmID, "sections", url.PathEscape(sectionID)), nil, &body)
	return resp, body, err
}

// GetWaterSources returns the farm's known water sources.
func (c *Client) GetWaterSources(ctx context.Context, farmID string) (*http.Response, WaterSourcesBody, error) {
	var body WaterSourcesBody
	resp, err := c.do(ctx, http.MethodGet, farmPath(farmID, "water-sources"), nil, &body)
	return resp, body, err
}

// AddWaterSource records a manually placed water source.
func (c *Client) AddWaterSource(ctx context.Context, farmID string, src ManualSourceBody) (*http.Response, WaterSource, error) {
	var body WaterSource
	resp, err := c.do(ctx, http.MethodPost, farmPath(farmID, "water-sources"), src, &body)
	return resp, body, err
}

// RefreshWaterSources fetches nearby water sources from the provider
// when the cached copy is stale, or always when force is set.
func (c *Client) RefreshWaterSources(ctx context.Context, farmID string, force bool) (*http.Response, RefreshBody, error) {
	var body RefreshBody
	path := farmPath(farmID, "water-sources", "refresh")
	if force {
		path += "?force=true"
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil, &body)
	return resp, body, err
}

// Query runs a read-only SQL query against the server's database.
func (c *Client) Query(ctx context.Context, in QueryInputBody) (*http.Response, QueryBody, error) {
	var body QueryBody
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/query", in, &body)
	return resp, body, err
}

// ListTables lists the database tables.
func (c *Client) ListTables(ctx context.Context) (*http.Response, TablesBody, error) {
	var body TablesBody
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/tables", nil, &body)
	return resp, body, err
}
