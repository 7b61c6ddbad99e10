package server

import (
	"math"

	"plantline/internal/analytics"
	"plantline/internal/domain"
	"plantline/internal/engine"
)

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Request payloads

type CreateAssetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Criticality int    `json:"criticality,omitempty" minimum:"1" maximum:"5"`
	Location    string `json:"location,omitempty"`
}

type SetAssetStatusRequest struct {
	Status string `json:"status" enum:"operational,maintenance,broken,inactive"`
}

type CreateWorkOrderRequest struct {
	AssetID     int64  `json:"asset_id"`
	Kind        string `json:"kind" enum:"preventive,corrective"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high,emergency"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	MachineDown bool   `json:"machine_down,omitempty"`
}

type CompletionRequest struct {
	DowntimeHours *float64 `json:"downtime_hours,omitempty" minimum:"0"`
	LaborHours    *float64 `json:"labor_hours,omitempty" minimum:"0"`
	LaborCost     *float64 `json:"labor_cost,omitempty" minimum:"0"`
	PartsCost     *float64 `json:"parts_cost,omitempty" minimum:"0"`
	SolutionNotes string   `json:"solution_notes,omitempty"`
}

type UpdateWorkOrderRequest struct {
	Status     *string            `json:"status,omitempty" enum:"pending,approved,in_progress,completed,cancelled"`
	AssignedTo *string            `json:"assigned_to,omitempty"`
	Completion *CompletionRequest `json:"completion,omitempty"`
}

type CreateItemRequest struct {
	Name        string  `json:"name"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    float64 `json:"quantity,omitempty" minimum:"0"`
	MinQuantity float64 `json:"min_quantity,omitempty" minimum:"0"`
	Unit        string  `json:"unit,omitempty"`
	UnitCost    float64 `json:"unit_cost,omitempty" minimum:"0"`
	Location    string  `json:"location,omitempty"`
}

type RecordMovementRequest struct {
	Type      string  `json:"type" enum:"purchase,consumption,adjustment,return"`
	Quantity  float64 `json:"quantity"`
	Reference string  `json:"reference,omitempty"`
}

type CreateTaskDefinitionRequest struct {
	AssetID   int64  `json:"asset_id"`
	Component string `json:"component,omitempty"`
	Name      string `json:"name"`
	Frequency string `json:"frequency" enum:"daily,weekly,biweekly,monthly,quarterly,semiannual,annual"`
}

type SheetTaskCountRequest struct {
	TaskDefID int64 `json:"task_def_id"`
	Performed int   `json:"performed"`
	Possible  int   `json:"possible"`
}

type CloseSheetRequest struct {
	AssetID      int64                   `json:"asset_id"`
	Month        int                     `json:"month" minimum:"1" maximum:"12"`
	Year         int                     `json:"year"`
	WorkingDays  int                     `json:"working_days" minimum:"0" maximum:"31"`
	Observations string                  `json:"observations,omitempty"`
	Counts       []SheetTaskCountRequest `json:"counts"`
}

type CreateScheduleRequest struct {
	AssetID       int64  `json:"asset_id"`
	Title         string `json:"title"`
	FrequencyDays int    `json:"frequency_days" minimum:"1"`
	FirstDue      string `json:"first_due,omitempty" format:"date-time"`
}

type MintAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type MintAPIKeyResponse struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key"`
}

type ComplianceResponse struct {
	AssetID       int64              `json:"asset_id"`
	Month         int                `json:"month"`
	Year          int                `json:"year"`
	GlobalPercent float64            `json:"global_percent"`
	ByFrequency   map[string]float64 `json:"by_frequency"`
}

type StockoutResponse struct {
	Item     domain.InventoryItem       `json:"item"`
	Forecast analytics.StockoutForecast `json:"forecast"`
}

type TrendResponse struct {
	ItemID      int64                  `json:"item_id,omitempty"`
	Granularity string                 `json:"granularity" enum:"monthly,daily"`
	WindowDays  int                    `json:"window_days"`
	Points      []analytics.TrendPoint `json:"points"`
}

// complianceResponse rounds the engine's raw report for presentation.
func complianceResponse(assetID int64, month, year int, report analytics.ComplianceReport) ComplianceResponse {
	byFreq := make(map[string]float64, len(report.ByFrequency))
	for f, pct := range report.ByFrequency {
		byFreq[f] = round1(pct)
	}
	return ComplianceResponse{
		AssetID:       assetID,
		Month:         month,
		Year:          year,
		GlobalPercent: round1(report.GlobalPercent),
		ByFrequency:   byFreq,
	}
}

func completionFromRequest(req *CompletionRequest) *engine.CompletionDetails {
	if req == nil {
		return nil
	}
	return &engine.CompletionDetails{
		DowntimeHours: req.DowntimeHours,
		LaborHours:    req.LaborHours,
		LaborCost:     req.LaborCost,
		PartsCost:     req.PartsCost,
		SolutionNotes: req.SolutionNotes,
	}
}
