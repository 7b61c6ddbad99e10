package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"plantline/internal/domain"
	"plantline/internal/engine"
)

func registerAssets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-asset",
		Method:        http.MethodPost,
		Path:          "/assets",
		Summary:       "Register an asset",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateAssetRequest `json:"body"`
	}) (*struct {
		Body domain.Asset `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		asset, err := e.CreateAsset(ctx, engine.AssetCreateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Criticality: input.Body.Criticality,
			Location:    input.Body.Location,
			ActorID:     actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Asset `json:"body"`
		}{Body: asset}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assets",
		Method:      http.MethodGet,
		Path:        "/assets",
		Summary:     "List assets",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Asset `json:"body"`
	}, error) {
		assets, err := e.Repo.ListAssets(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Asset `json:"body"`
		}{Body: assets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-asset",
		Method:      http.MethodGet,
		Path:        "/assets/{asset_id}",
		Summary:     "Get an asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
	}) (*struct {
		Body domain.Asset `json:"body"`
	}, error) {
		asset, err := e.Repo.GetAsset(ctx, input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Asset `json:"body"`
		}{Body: asset}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-asset-status",
		Method:      http.MethodPatch,
		Path:        "/assets/{asset_id}/status",
		Summary:     "Change an asset's status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		AssetID int64                 `path:"asset_id"`
		Body    SetAssetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Asset `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		asset, err := e.SetAssetStatus(ctx, input.AssetID, input.Body.Status, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Asset `json:"body"`
		}{Body: asset}, nil
	})
}

func registerWorkOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-work-order",
		Method:        http.MethodPost,
		Path:          "/work-orders",
		Summary:       "Open a work order",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkOrderRequest `json:"body"`
	}) (*struct {
		Body domain.WorkOrder `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.WorkOrderCreateOptions{
			AssetID:     input.Body.AssetID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			ReportedBy:  actor,
			AssignedTo:  input.Body.AssignedTo,
			MachineDown: input.Body.MachineDown,
			ActorID:     actor,
		}
		var (
			wo  domain.WorkOrder
			err error
		)
		if input.Body.Kind == domain.KindPreventive {
			wo, err = e.ScheduleMaintenance(ctx, opts)
		} else {
			wo, err = e.ReportFailure(ctx, opts)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkOrder `json:"body"`
		}{Body: wo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-work-orders",
		Method:      http.MethodGet,
		Path:        "/work-orders",
		Summary:     "List work orders",
	}, func(ctx context.Context, input *struct {
		AssetID int64  `query:"asset_id"`
		Status  string `query:"status"`
		Since   string `query:"since" format:"date-time"`
	}) (*struct {
		Body []domain.WorkOrder `json:"body"`
	}, error) {
		var since time.Time
		if input.Since != "" {
			t, err := time.Parse(time.RFC3339, input.Since)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid since timestamp", nil)
			}
			since = t
		}
		var statuses []string
		if input.Status != "" {
			statuses = []string{input.Status}
		}
		orders, err := e.Repo.ListWorkOrders(ctx, input.AssetID, since, statuses...)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkOrder `json:"body"`
		}{Body: orders}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work-order",
		Method:      http.MethodGet,
		Path:        "/work-orders/{work_order_id}",
		Summary:     "Get a work order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkOrderID int64 `path:"work_order_id"`
	}) (*struct {
		Body domain.WorkOrder `json:"body"`
	}, error) {
		wo, err := e.Repo.GetWorkOrder(ctx, input.WorkOrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkOrder `json:"body"`
		}{Body: wo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-work-order",
		Method:      http.MethodPatch,
		Path:        "/work-orders/{work_order_id}",
		Summary:     "Move a work order along the board",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		WorkOrderID int64                  `path:"work_order_id"`
		Body        UpdateWorkOrderRequest `json:"body"`
	}) (*struct {
		Body domain.WorkOrder `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.WorkOrderStatusOptions{
			ID:         input.WorkOrderID,
			AssignedTo: input.Body.AssignedTo,
			Completion: completionFromRequest(input.Body.Completion),
			ActorID:    actor,
		}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		wo, err := e.SetWorkOrderStatus(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkOrder `json:"body"`
		}{Body: wo}, nil
	})
}
