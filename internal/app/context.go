package app

import (
	"context"
	"errors"
	"fmt"

	"plantline/internal/config"
	"plantline/internal/repo"
)

// ResolveConfig returns the plant configuration, layering sources: the stored
// row in the database wins, then the workspace plantline.yml, then built-in
// defaults. Whatever is resolved is written back so the database stays the
// source of truth for a running server.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetPlantConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("plant")
	}
	if err := r.UpsertPlantConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed plant config: %w", err)
	}
	return cfg, nil
}
