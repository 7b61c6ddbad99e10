package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"plantline/internal/domain"
	"plantline/internal/engine"
)

func registerInventory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-item",
		Method:        http.MethodPost,
		Path:          "/items",
		Summary:       "Register an inventory item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateItemRequest `json:"body"`
	}) (*struct {
		Body domain.InventoryItem `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.CreateItem(ctx, engine.ItemCreateOptions{
			Name:        input.Body.Name,
			SKU:         input.Body.SKU,
			Quantity:    input.Body.Quantity,
			MinQuantity: input.Body.MinQuantity,
			Unit:        input.Body.Unit,
			UnitCost:    input.Body.UnitCost,
			Location:    input.Body.Location,
			ActorID:     actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.InventoryItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/items",
		Summary:     "List inventory items",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.InventoryItem `json:"body"`
	}, error) {
		items, err := e.Repo.ListItems(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.InventoryItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "low-stock",
		Method:      http.MethodGet,
		Path:        "/items/low-stock",
		Summary:     "Items at or below their reorder threshold",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.InventoryItem `json:"body"`
	}, error) {
		items, err := e.LowStockItems(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.InventoryItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-movement",
		Method:        http.MethodPost,
		Path:          "/items/{item_id}/movements",
		Summary:       "Record a stock movement",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ItemID int64                 `path:"item_id"`
		Body   RecordMovementRequest `json:"body"`
	}) (*struct {
		Body domain.InventoryMovement `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.RecordMovement(ctx, engine.MovementOptions{
			ItemID:    input.ItemID,
			Type:      input.Body.Type,
			Quantity:  input.Body.Quantity,
			Reference: input.Body.Reference,
			ActorID:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.InventoryMovement `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-movements",
		Method:      http.MethodGet,
		Path:        "/items/{item_id}/movements",
		Summary:     "List an item's stock movements",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID int64  `path:"item_id"`
		Since  string `query:"since" format:"date-time"`
	}) (*struct {
		Body []domain.InventoryMovement `json:"body"`
	}, error) {
		if _, err := e.Repo.GetItem(ctx, input.ItemID); err != nil {
			return nil, handleError(err)
		}
		var since time.Time
		if input.Since != "" {
			t, err := time.Parse(time.RFC3339, input.Since)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid since timestamp", nil)
			}
			since = t
		}
		movements, err := e.Repo.ListMovements(ctx, input.ItemID, since)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.InventoryMovement `json:"body"`
		}{Body: movements}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "item-trend",
		Method:      http.MethodGet,
		Path:        "/items/{item_id}/trend",
		Summary:     "Consumption and purchase trend for an item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID      int64  `path:"item_id"`
		Granularity string `query:"granularity" enum:"monthly,daily"`
		WindowDays  int    `query:"window_days" minimum:"0"`
	}) (*struct {
		Body TrendResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetItem(ctx, input.ItemID); err != nil {
			return nil, handleError(err)
		}
		granularity := input.Granularity
		if granularity == "" {
			granularity = "monthly"
		}
		windowDays := input.WindowDays
		if windowDays <= 0 {
			windowDays = e.Config.Analytics.TrendWindowDays
		}
		points, err := e.ConsumptionTrend(ctx, input.ItemID, windowDays, granularity == "daily")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TrendResponse `json:"body"`
		}{Body: TrendResponse{
			ItemID:      input.ItemID,
			Granularity: granularity,
			WindowDays:  windowDays,
			Points:      points,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "item-stockout",
		Method:      http.MethodGet,
		Path:        "/items/{item_id}/stockout",
		Summary:     "Stockout forecast for an item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID int64 `path:"item_id"`
	}) (*struct {
		Body StockoutResponse `json:"body"`
	}, error) {
		item, forecast, err := e.StockoutForecast(ctx, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StockoutResponse `json:"body"`
		}{Body: StockoutResponse{Item: item, Forecast: forecast}}, nil
	})
}
