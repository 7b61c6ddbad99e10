package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"plantline/internal/domain"
	"plantline/internal/engine"
)

func registerSheets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task-definition",
		Method:        http.MethodPost,
		Path:          "/task-definitions",
		Summary:       "Define a recurring maintenance task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskDefinitionRequest `json:"body"`
	}) (*struct {
		Body domain.TaskDefinition `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		td, err := e.CreateTaskDefinition(ctx, engine.TaskDefinitionOptions{
			AssetID:   input.Body.AssetID,
			Component: input.Body.Component,
			Name:      input.Body.Name,
			Frequency: input.Body.Frequency,
			ActorID:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskDefinition `json:"body"`
		}{Body: td}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-definitions",
		Method:      http.MethodGet,
		Path:        "/assets/{asset_id}/task-definitions",
		Summary:     "List an asset's task definitions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
	}) (*struct {
		Body []domain.TaskDefinition `json:"body"`
	}, error) {
		if _, err := e.Repo.GetAsset(ctx, input.AssetID); err != nil {
			return nil, handleError(err)
		}
		defs, err := e.Repo.ListTaskDefinitions(ctx, input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TaskDefinition `json:"body"`
		}{Body: defs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "close-sheet",
		Method:        http.MethodPost,
		Path:          "/sheets",
		Summary:       "Close a monthly maintenance sheet",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body CloseSheetRequest `json:"body"`
	}) (*struct {
		Body domain.MonthlySheet `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		counts := make([]engine.SheetTaskCount, 0, len(input.Body.Counts))
		for _, c := range input.Body.Counts {
			counts = append(counts, engine.SheetTaskCount{
				TaskDefID: c.TaskDefID,
				Performed: c.Performed,
				Possible:  c.Possible,
			})
		}
		sheet, err := e.CloseSheet(ctx, engine.SheetCloseOptions{
			AssetID:      input.Body.AssetID,
			Month:        input.Body.Month,
			Year:         input.Body.Year,
			WorkingDays:  input.Body.WorkingDays,
			Observations: input.Body.Observations,
			Counts:       counts,
			ActorID:      actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MonthlySheet `json:"body"`
		}{Body: sheet}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sheets",
		Method:      http.MethodGet,
		Path:        "/sheets",
		Summary:     "List monthly sheets",
	}, func(ctx context.Context, input *struct {
		AssetID int64 `query:"asset_id"`
	}) (*struct {
		Body []domain.MonthlySheet `json:"body"`
	}, error) {
		sheets, err := e.Repo.ListSheets(ctx, input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MonthlySheet `json:"body"`
		}{Body: sheets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sheet-compliance",
		Method:      http.MethodGet,
		Path:        "/sheets/compliance",
		Summary:     "Compliance report for one closed sheet",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `query:"asset_id" required:"true"`
		Month   int   `query:"month" required:"true" minimum:"1" maximum:"12"`
		Year    int   `query:"year" required:"true"`
	}) (*struct {
		Body ComplianceResponse `json:"body"`
	}, error) {
		report, err := e.SheetCompliance(ctx, input.AssetID, input.Month, input.Year)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ComplianceResponse `json:"body"`
		}{Body: complianceResponse(input.AssetID, input.Month, input.Year, report)}, nil
	})
}
