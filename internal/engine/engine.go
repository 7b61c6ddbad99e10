package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plantline/internal/config"
	"plantline/internal/domain"
	"plantline/internal/events"
	"plantline/internal/repo"
)

// Engine wires the repo, the event log and the analytics calculators behind
// the operations the CLI and HTTP API expose. All mutations run in a
// transaction with an event appended before commit.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// --- assets ---

type AssetCreateOptions struct {
	Name        string
	Description string
	Criticality int
	Location    string
	ActorID     string
}

func (e Engine) CreateAsset(ctx context.Context, opts AssetCreateOptions) (domain.Asset, error) {
	if opts.Name == "" {
		return domain.Asset{}, errors.New("name is required")
	}
	if opts.Criticality == 0 {
		opts.Criticality = 3
	}
	if opts.Criticality < 1 || opts.Criticality > 5 {
		return domain.Asset{}, errors.New("criticality must be between 1 and 5")
	}
	a := domain.Asset{
		Name:        opts.Name,
		Description: opts.Description,
		Criticality: opts.Criticality,
		Status:      domain.AssetOperational,
		Location:    opts.Location,
		CreatedAt:   e.now().UTC(),
	}
	a, err := e.Repo.InsertAsset(ctx, a)
	if err != nil {
		return a, fmt.Errorf("insert asset: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "asset.created", "asset", fmt.Sprint(a.ID), opts.ActorID, events.EventPayload{"name": a.Name}); err != nil {
		return a, err
	}
	return a, tx.Commit()
}

func validAssetStatus(s string) bool {
	switch s {
	case domain.AssetOperational, domain.AssetMaintenance, domain.AssetBroken, domain.AssetInactive:
		return true
	}
	return false
}

func (e Engine) SetAssetStatus(ctx context.Context, id int64, status, actorID string) (domain.Asset, error) {
	if !validAssetStatus(status) {
		return domain.Asset{}, fmt.Errorf("invalid asset status %s", status)
	}
	a, err := e.Repo.GetAsset(ctx, id)
	if err != nil {
		return a, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAssetStatus(ctx, tx, id, status); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "asset.status", "asset", fmt.Sprint(id), actorID, events.EventPayload{"from": a.Status, "to": status}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = status
	return a, nil
}

// --- work orders ---

type WorkOrderCreateOptions struct {
	AssetID     int64
	Title       string
	Description string
	Priority    string
	ReportedBy  string
	AssignedTo  string
	MachineDown bool
	ActorID     string
}

// ReportFailure opens a corrective work order for a failure report. When the
// machine is down the asset is flagged broken in the same transaction.
func (e Engine) ReportFailure(ctx context.Context, opts WorkOrderCreateOptions) (domain.WorkOrder, error) {
	return e.createWorkOrder(ctx, domain.KindCorrective, "workorder.reported", opts)
}

// ScheduleMaintenance opens a preventive work order.
func (e Engine) ScheduleMaintenance(ctx context.Context, opts WorkOrderCreateOptions) (domain.WorkOrder, error) {
	opts.MachineDown = false
	return e.createWorkOrder(ctx, domain.KindPreventive, "workorder.scheduled", opts)
}

func validPriority(p string) bool {
	switch p {
	case "", "low", "medium", "high", "emergency":
		return true
	}
	return false
}

func (e Engine) createWorkOrder(ctx context.Context, kind, evtType string, opts WorkOrderCreateOptions) (domain.WorkOrder, error) {
	if opts.AssetID == 0 {
		return domain.WorkOrder{}, errors.New("asset is required")
	}
	if !validPriority(opts.Priority) {
		return domain.WorkOrder{}, fmt.Errorf("invalid priority %s", opts.Priority)
	}
	if _, err := e.Repo.GetAsset(ctx, opts.AssetID); err != nil {
		return domain.WorkOrder{}, err
	}
	wo := domain.WorkOrder{
		AssetID:     opts.AssetID,
		Title:       opts.Title,
		Description: opts.Description,
		Kind:        kind,
		Priority:    opts.Priority,
		Status:      domain.StatusPending,
		ReportedBy:  opts.ReportedBy,
		AssignedTo:  opts.AssignedTo,
		CreatedAt:   e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return wo, err
	}
	defer tx.Rollback()
	wo, err = e.Repo.InsertWorkOrder(ctx, tx, wo)
	if err != nil {
		return wo, fmt.Errorf("insert work order: %w", err)
	}
	if opts.MachineDown {
		if err := e.Repo.UpdateAssetStatus(ctx, tx, opts.AssetID, domain.AssetBroken); err != nil {
			return wo, err
		}
	}
	if err := e.Events.Append(ctx, tx, evtType, "work_order", fmt.Sprint(wo.ID), opts.ActorID, events.EventPayload{
		"asset_id": wo.AssetID,
		"kind":     wo.Kind,
		"priority": wo.Priority,
	}); err != nil {
		return wo, err
	}
	return wo, tx.Commit()
}

func ensureWorkOrderTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.StatusPending:
		if newStatus == domain.StatusApproved || newStatus == domain.StatusInProgress || newStatus == domain.StatusCancelled {
			return nil
		}
	case domain.StatusApproved:
		if newStatus == domain.StatusInProgress || newStatus == domain.StatusCancelled {
			return nil
		}
	case domain.StatusInProgress:
		if newStatus == domain.StatusCompleted || newStatus == domain.StatusCancelled {
			return nil
		}
	}
	return fmt.Errorf("invalid work order status transition %s -> %s", oldStatus, newStatus)
}

// CompletionDetails carries the figures captured on the closing form.
type CompletionDetails struct {
	DowntimeHours *float64
	LaborHours    *float64
	LaborCost     *float64
	PartsCost     *float64
	SolutionNotes string
}

func (d CompletionDetails) validate() error {
	for name, v := range map[string]*float64{
		"downtime_hours": d.DowntimeHours,
		"labor_hours":    d.LaborHours,
		"labor_cost":     d.LaborCost,
		"parts_cost":     d.PartsCost,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}

type WorkOrderStatusOptions struct {
	ID         int64
	Status     string
	AssignedTo *string
	Completion *CompletionDetails
	ActorID    string
}

// SetWorkOrderStatus moves a work order along the board. Entering
// in_progress stamps started_at once; completing stamps completed_at and
// stores the closing figures. Completing a corrective order on a broken
// asset puts the asset back in service.
func (e Engine) SetWorkOrderStatus(ctx context.Context, opts WorkOrderStatusOptions) (domain.WorkOrder, error) {
	wo, err := e.Repo.GetWorkOrder(ctx, opts.ID)
	if err != nil {
		return wo, err
	}
	if opts.Status != "" && opts.Status != wo.Status {
		if err := ensureWorkOrderTransition(wo.Status, opts.Status); err != nil {
			return wo, err
		}
	}
	if opts.Completion != nil && opts.Status != domain.StatusCompleted {
		return wo, errors.New("completion details only apply when completing")
	}

	original := wo.Status
	now := e.now().UTC()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return wo, err
	}
	defer tx.Rollback()

	if opts.AssignedTo != nil {
		wo.AssignedTo = *opts.AssignedTo
	}
	if opts.Status != "" {
		wo.Status = opts.Status
	}
	if wo.Status == domain.StatusInProgress && wo.StartedAt == nil {
		wo.StartedAt = &now
	}
	if wo.Status == domain.StatusCompleted && original != domain.StatusCompleted {
		if now.Before(wo.CreatedAt) {
			return wo, errors.New("completed_at would precede created_at")
		}
		wo.CompletedAt = &now
		if wo.StartedAt != nil && wo.StartedAt.After(now) {
			return wo, errors.New("started_at is after completed_at")
		}
		if opts.Completion != nil {
			if err := opts.Completion.validate(); err != nil {
				return wo, err
			}
			wo.DowntimeHours = opts.Completion.DowntimeHours
			wo.LaborHours = opts.Completion.LaborHours
			wo.LaborCost = opts.Completion.LaborCost
			wo.PartsCost = opts.Completion.PartsCost
			wo.SolutionNotes = opts.Completion.SolutionNotes
		}
		if wo.Kind == domain.KindCorrective {
			asset, err := e.Repo.GetAsset(ctx, wo.AssetID)
			if err != nil {
				return wo, err
			}
			if asset.Status == domain.AssetBroken {
				if err := e.Repo.UpdateAssetStatus(ctx, tx, wo.AssetID, domain.AssetOperational); err != nil {
					return wo, err
				}
				if err := e.Events.Append(ctx, tx, "asset.status", "asset", fmt.Sprint(wo.AssetID), opts.ActorID, events.EventPayload{
					"from": domain.AssetBroken, "to": domain.AssetOperational,
				}); err != nil {
					return wo, err
				}
			}
		}
	}

	if err := e.Repo.UpdateWorkOrder(ctx, tx, wo); err != nil {
		return wo, err
	}
	if err := e.Events.Append(ctx, tx, "workorder.updated", "work_order", fmt.Sprint(wo.ID), opts.ActorID, events.EventPayload{
		"from_status": original,
		"to_status":   wo.Status,
	}); err != nil {
		return wo, err
	}
	return wo, tx.Commit()
}
