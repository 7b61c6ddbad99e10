package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"plantline/internal/domain"
	"plantline/internal/engine"
)

func registerKPIs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "asset-reliability",
		Method:      http.MethodGet,
		Path:        "/kpis/assets/{asset_id}/reliability",
		Summary:     "MTBF, MTTR and availability for an asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
	}) (*struct {
		Body engine.ReliabilityReport `json:"body"`
	}, error) {
		report, err := e.AssetReliability(ctx, input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ReliabilityReport `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/kpis/dashboard",
		Summary:     "Plant-wide maintenance and inventory overview",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Dashboard `json:"body"`
	}, error) {
		dash, err := e.DashboardReport(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Dashboard `json:"body"`
		}{Body: dash}, nil
	})
}

func registerSchedules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-schedule",
		Method:        http.MethodPost,
		Path:          "/schedules",
		Summary:       "Create a preventive maintenance schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateScheduleRequest `json:"body"`
	}) (*struct {
		Body domain.MaintenanceSchedule `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var firstDue time.Time
		if input.Body.FirstDue != "" {
			t, err := time.Parse(time.RFC3339, input.Body.FirstDue)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid first_due timestamp", nil)
			}
			firstDue = t
		}
		s, err := e.CreateSchedule(ctx, engine.ScheduleCreateOptions{
			AssetID:       input.Body.AssetID,
			Title:         input.Body.Title,
			FrequencyDays: input.Body.FrequencyDays,
			FirstDue:      firstDue,
			ActorID:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MaintenanceSchedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-schedules",
		Method:      http.MethodGet,
		Path:        "/schedules",
		Summary:     "List maintenance schedules",
	}, func(ctx context.Context, input *struct {
		AssetID int64 `query:"asset_id"`
	}) (*struct {
		Body []domain.MaintenanceSchedule `json:"body"`
	}, error) {
		schedules, err := e.ListSchedules(ctx, input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MaintenanceSchedule `json:"body"`
		}{Body: schedules}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-due-work-orders",
		Method:      http.MethodPost,
		Path:        "/schedules/generate",
		Summary:     "Open work orders for every schedule past due",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WorkOrder `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		created, err := e.GenerateDueWorkOrders(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkOrder `json:"body"`
		}{Body: created}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest audit events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		evts, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evts}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "mint-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Mint an API key for the calling actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body MintAPIKeyRequest `json:"body"`
	}) (*struct {
		Body MintAPIKeyResponse `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.MintAPIKey(ctx, actor, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MintAPIKeyResponse `json:"body"`
		}{Body: MintAPIKeyResponse{
			ID:      key.ID,
			ActorID: key.ActorID,
			Name:    key.Name,
			Key:     secret,
		}}, nil
	})
}
