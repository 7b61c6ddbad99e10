package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantline/internal/domain"
	"plantline/internal/events"
)

type ScheduleCreateOptions struct {
	AssetID       int64
	Title         string
	FrequencyDays int
	FirstDue      time.Time
	ActorID       string
}

func (e Engine) CreateSchedule(ctx context.Context, opts ScheduleCreateOptions) (domain.MaintenanceSchedule, error) {
	if opts.Title == "" {
		return domain.MaintenanceSchedule{}, errors.New("title is required")
	}
	if opts.FrequencyDays < 1 {
		return domain.MaintenanceSchedule{}, errors.New("frequency must be at least one day")
	}
	if _, err := e.Repo.GetAsset(ctx, opts.AssetID); err != nil {
		return domain.MaintenanceSchedule{}, err
	}
	due := opts.FirstDue
	if due.IsZero() {
		due = e.now().UTC().AddDate(0, 0, opts.FrequencyDays)
	}
	s := domain.MaintenanceSchedule{
		AssetID:       opts.AssetID,
		Title:         opts.Title,
		FrequencyDays: opts.FrequencyDays,
		NextDueDate:   due.UTC(),
		Active:        true,
	}
	s, err := e.Repo.InsertSchedule(ctx, s)
	if err != nil {
		return s, fmt.Errorf("insert schedule: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "schedule.created", "maintenance_schedule", fmt.Sprint(s.ID), opts.ActorID, events.EventPayload{
		"asset_id":       s.AssetID,
		"frequency_days": s.FrequencyDays,
	}); err != nil {
		return s, err
	}
	return s, tx.Commit()
}

func (e Engine) ListSchedules(ctx context.Context, assetID int64) ([]domain.MaintenanceSchedule, error) {
	return e.Repo.ListSchedules(ctx, assetID)
}

// GenerateDueWorkOrders opens a preventive work order for every active
// schedule whose next due date has passed, then advances each schedule past
// the current time. Running it twice in a row generates nothing new.
func (e Engine) GenerateDueWorkOrders(ctx context.Context, actorID string) ([]domain.WorkOrder, error) {
	now := e.now().UTC()
	due, err := e.Repo.DueSchedules(ctx, now)
	if err != nil {
		return nil, err
	}
	var created []domain.WorkOrder
	for _, s := range due {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return created, err
		}
		wo := domain.WorkOrder{
			AssetID:     s.AssetID,
			Title:       s.Title,
			Description: fmt.Sprintf("generated from schedule %d", s.ID),
			Kind:        domain.KindPreventive,
			Priority:    "medium",
			Status:      domain.StatusPending,
			CreatedAt:   now,
		}
		wo, err = e.Repo.InsertWorkOrder(ctx, tx, wo)
		if err != nil {
			tx.Rollback()
			return created, fmt.Errorf("insert work order: %w", err)
		}
		next := s.NextDueDate
		for !next.After(now) {
			next = next.AddDate(0, 0, s.FrequencyDays)
		}
		if err := e.Repo.AdvanceSchedule(ctx, tx, s.ID, now, next); err != nil {
			tx.Rollback()
			return created, err
		}
		if err := e.Events.Append(ctx, tx, "schedule.generated", "maintenance_schedule", fmt.Sprint(s.ID), actorID, events.EventPayload{
			"work_order_id": wo.ID,
			"next_due":      next.Format(time.RFC3339),
		}); err != nil {
			tx.Rollback()
			return created, err
		}
		if err := tx.Commit(); err != nil {
			return created, err
		}
		created = append(created, wo)
	}
	return created, nil
}
