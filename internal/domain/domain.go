package domain

import "time"

// Asset statuses.
const (
	AssetOperational = "operational"
	AssetMaintenance = "maintenance"
	AssetBroken      = "broken"
	AssetInactive    = "inactive"
)

// Work order kinds.
const (
	KindPreventive = "preventive"
	KindCorrective = "corrective"
)

// Work order statuses.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Inventory movement types.
const (
	MovementPurchase    = "purchase"
	MovementConsumption = "consumption"
	MovementAdjustment  = "adjustment"
	MovementReturn      = "return"
)

type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Criticality int       `json:"criticality"`
	Status      string    `json:"status" enum:"operational,maintenance,broken,inactive"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at" format:"date-time"`
}

type WorkOrder struct {
	ID            int64      `json:"id"`
	AssetID       int64      `json:"asset_id"`
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	Kind          string     `json:"kind" enum:"preventive,corrective"`
	Priority      string     `json:"priority,omitempty" enum:"low,medium,high,emergency"`
	Status        string     `json:"status" enum:"pending,approved,in_progress,completed,cancelled"`
	ReportedBy    string     `json:"reported_by,omitempty"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at" format:"date-time"`
	StartedAt     *time.Time `json:"started_at,omitempty" format:"date-time"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" format:"date-time"`
	DowntimeHours *float64   `json:"downtime_hours,omitempty"`
	LaborHours    *float64   `json:"labor_hours,omitempty"`
	LaborCost     *float64   `json:"labor_cost,omitempty"`
	PartsCost     *float64   `json:"parts_cost,omitempty"`
	SolutionNotes string     `json:"solution_notes,omitempty"`
}

type InventoryItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"min_quantity"`
	Unit        string  `json:"unit,omitempty"`
	UnitCost    float64 `json:"unit_cost,omitempty"`
	Location    string  `json:"location,omitempty"`
}

// InventoryMovement is one append-only stock change. Quantity keeps the sign
// it was recorded with; magnitude consumers take the absolute value.
type InventoryMovement struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	MovementType string    `json:"movement_type" enum:"purchase,consumption,adjustment,return"`
	Quantity     float64   `json:"quantity"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
}

type MaintenanceSchedule struct {
	ID                int64      `json:"id"`
	AssetID           int64      `json:"asset_id"`
	Title             string     `json:"title"`
	FrequencyDays     int        `json:"frequency_days"`
	NextDueDate       time.Time  `json:"next_due_date" format:"date-time"`
	LastGeneratedDate *time.Time `json:"last_generated_date,omitempty" format:"date-time"`
	Active            bool       `json:"active"`
}

type TaskDefinition struct {
	ID        int64  `json:"id"`
	AssetID   int64  `json:"asset_id"`
	Component string `json:"component,omitempty"`
	Name      string `json:"name"`
	Frequency string `json:"frequency" enum:"daily,weekly,biweekly,monthly,quarterly,semiannual,annual"`
}

type MonthlySheet struct {
	ID           int64     `json:"id"`
	AssetID      int64     `json:"asset_id"`
	Month        int       `json:"month"`
	Year         int       `json:"year"`
	WorkingDays  int       `json:"working_days"`
	Observations string    `json:"observations,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
}

// MonthlyTaskCount is one task definition's tally on a monthly sheet. A
// sheet's counts are replaced wholesale when the sheet closes, never patched.
type MonthlyTaskCount struct {
	SheetID        int64 `json:"sheet_id"`
	TaskDefID      int64 `json:"task_def_id"`
	PerformedCount int   `json:"performed_count"`
	PossibleCount  int   `json:"possible_count"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
