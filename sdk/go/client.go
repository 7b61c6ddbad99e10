package plantlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Plantline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Asset represents the API asset model (partial).
type Asset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Criticality int    `json:"criticality"`
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
}

// WorkOrder represents the API work order model (partial).
type WorkOrder struct {
	ID       int64  `json:"id"`
	AssetID  int64  `json:"asset_id"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// InventoryItem represents a spare part.
type InventoryItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"min_quantity"`
	Unit        string  `json:"unit,omitempty"`
}

// Movement represents a stock movement. Quantity carries the applied
// signed delta.
type Movement struct {
	ID           int64   `json:"id"`
	ItemID       int64   `json:"item_id"`
	MovementType string  `json:"movement_type"`
	Quantity     float64 `json:"quantity"`
	Reference    string  `json:"reference,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Reliability is one asset's reliability report.
type Reliability struct {
	AssetID          int64    `json:"asset_id"`
	MTBFHours        *float64 `json:"mtbf_hours"`
	MTTRHours        *float64 `json:"mttr_hours"`
	AvailabilityPct  *float64 `json:"availability_pct"`
	ReliabilityDays  int      `json:"reliability_window_days"`
	AvailabilityDays int      `json:"availability_window_days"`
}

// Compliance is a closed sheet's compliance report.
type Compliance struct {
	AssetID       int64              `json:"asset_id"`
	Month         int                `json:"month"`
	Year          int                `json:"year"`
	GlobalPercent float64            `json:"global_percent"`
	ByFrequency   map[string]float64 `json:"by_frequency"`
}

// Event represents a log entry. PayloadJSON is the raw payload document.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts"`
	Type        string `json:"type"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id,omitempty"`
	ActorID     string `json:"actor_id"`
	PayloadJSON string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAsset registers an asset.
func (c *Client) CreateAsset(ctx context.Context, name string, criticality int) (Asset, error) {
	body := map[string]any{
		"name":        name,
		"criticality": criticality,
	}
	var resp Asset
	err := c.do(ctx, http.MethodPost, "assets", body, &resp)
	return resp, err
}

// Assets lists every asset.
func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var resp []Asset
	err := c.do(ctx, http.MethodGet, "assets", nil, &resp)
	return resp, err
}

// ReportFailure opens a corrective work order.
func (c *Client) ReportFailure(ctx context.Context, assetID int64, title string, machineDown bool) (WorkOrder, error) {
	body := map[string]any{
		"asset_id":     assetID,
		"kind":         "corrective",
		"title":        title,
		"machine_down": machineDown,
	}
	var resp WorkOrder
	err := c.do(ctx, http.MethodPost, "work-orders", body, &resp)
	return resp, err
}

// ScheduleMaintenance opens a preventive work order.
func (c *Client) ScheduleMaintenance(ctx context.Context, assetID int64, title string) (WorkOrder, error) {
	body := map[string]any{
		"asset_id": assetID,
		"kind":     "preventive",
		"title":    title,
	}
	var resp WorkOrder
	err := c.do(ctx, http.MethodPost, "work-orders", body, &resp)
	return resp, err
}

// SetWorkOrderStatus moves a work order along the board. completion may be
// nil; when completing, pass the closing figures the API expects
// ("downtime_hours", "labor_hours", "labor_cost", "parts_cost",
// "solution_notes").
func (c *Client) SetWorkOrderStatus(ctx context.Context, id int64, status string, completion map[string]any) (WorkOrder, error) {
	body := map[string]any{"status": status}
	if completion != nil {
		body["completion"] = completion
	}
	var resp WorkOrder
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("work-orders/%d", id), body, &resp)
	return resp, err
}

// RecordMovement records a stock movement against an item.
func (c *Client) RecordMovement(ctx context.Context, itemID int64, movementType string, quantity float64, reference string) (Movement, error) {
	body := map[string]any{
		"type":      movementType,
		"quantity":  quantity,
		"reference": reference,
	}
	var resp Movement
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("items/%d/movements", itemID), body, &resp)
	return resp, err
}

// LowStock returns items at or below their reorder threshold.
func (c *Client) LowStock(ctx context.Context) ([]InventoryItem, error) {
	var resp []InventoryItem
	err := c.do(ctx, http.MethodGet, "items/low-stock", nil, &resp)
	return resp, err
}

// AssetReliability fetches MTBF, MTTR and availability for an asset.
func (c *Client) AssetReliability(ctx context.Context, assetID int64) (Reliability, error) {
	var resp Reliability
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("kpis/assets/%d/reliability", assetID), nil, &resp)
	return resp, err
}

// SheetCount is one task's tally in a CloseSheet call.
type SheetCount struct {
	TaskDefID int64 `json:"task_def_id"`
	Performed int   `json:"performed"`
	Possible  int   `json:"possible"`
}

// CloseSheet closes a monthly maintenance sheet.
func (c *Client) CloseSheet(ctx context.Context, assetID int64, month, year, workingDays int, counts []SheetCount) error {
	body := map[string]any{
		"asset_id":     assetID,
		"month":        month,
		"year":         year,
		"working_days": workingDays,
		"counts":       counts,
	}
	return c.do(ctx, http.MethodPost, "sheets", body, nil)
}

// SheetCompliance fetches the compliance report for one closed sheet.
func (c *Client) SheetCompliance(ctx context.Context, assetID int64, month, year int) (Compliance, error) {
	endpoint := fmt.Sprintf("sheets/compliance?asset_id=%d&month=%d&year=%d", assetID, month, year)
	var resp Compliance
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("events?limit=%d", limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
