package repo

import (
	"context"
	"database/sql"
	"time"

	"gopkg.in/yaml.v3"

	"plantline/internal/config"
)

// UpsertPlantConfig stores the active plant config in the workspace DB.
func (r Repo) UpsertPlantConfig(ctx context.Context, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO plant_config(id, config_yaml, updated_at) VALUES (1,?,?)
ON CONFLICT(id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetPlantConfig loads and validates the stored plant config.
func (r Repo) GetPlantConfig(ctx context.Context) (*config.Config, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM plant_config WHERE id=1`)
	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(raw))
}
