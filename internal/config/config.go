package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models plantline.yml.
type Config struct {
	Plant struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"plant"`
	Analytics Analytics `yaml:"analytics"`
	Scheduler struct {
		// Cron spec for the preventive generation job.
		Spec string `yaml:"spec"`
	} `yaml:"scheduler"`
	Frequencies []string `yaml:"frequencies"`
}

// Analytics carries the window defaults handed to the calculators. They are
// plain parameters on every analytics function; this is only where the
// deployed values live.
type Analytics struct {
	ReliabilityWindowDays  int     `yaml:"reliability_window_days"`
	AvailabilityWindowDays int     `yaml:"availability_window_days"`
	TrendWindowDays        int     `yaml:"trend_window_days"`
	StockoutLookbackDays   int     `yaml:"stockout_lookback_days"`
	ReorderHorizonDays     int     `yaml:"reorder_horizon_days"`
	SafetyFactor           float64 `yaml:"safety_factor"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run pl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Plant.Name == "" {
		return fmt.Errorf("config.plant.name is required")
	}
	a := c.Analytics
	if a.ReliabilityWindowDays <= 0 {
		return fmt.Errorf("config.analytics.reliability_window_days must be positive")
	}
	if a.AvailabilityWindowDays <= 0 {
		return fmt.Errorf("config.analytics.availability_window_days must be positive")
	}
	if a.TrendWindowDays <= 0 {
		return fmt.Errorf("config.analytics.trend_window_days must be positive")
	}
	if a.StockoutLookbackDays <= 0 {
		return fmt.Errorf("config.analytics.stockout_lookback_days must be positive")
	}
	if a.ReorderHorizonDays <= 0 {
		return fmt.Errorf("config.analytics.reorder_horizon_days must be positive")
	}
	if a.SafetyFactor < 1 {
		return fmt.Errorf("config.analytics.safety_factor must be >= 1")
	}
	if len(c.Frequencies) == 0 {
		return fmt.Errorf("config.frequencies is required")
	}
	for _, f := range c.Frequencies {
		if f == "" {
			return fmt.Errorf("config.frequencies contains empty entry")
		}
	}
	return nil
}

// KnownFrequency reports whether f is in the configured frequency catalog.
func (c *Config) KnownFrequency(f string) bool {
	for _, known := range c.Frequencies {
		if known == f {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "plantline.yml")
}

// Default returns the default Config struct for a plant.
func Default(plantName string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(plantName)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(plantName string) string {
	return fmt.Sprintf(defaultTemplate, plantName)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `plant:
  name: %s
  timezone: UTC

analytics:
  reliability_window_days: 180
  availability_window_days: 30
  trend_window_days: 90
  stockout_lookback_days: 30
  reorder_horizon_days: 30
  safety_factor: 1.2

scheduler:
  spec: "0 6 * * *"

frequencies:
  - daily
  - weekly
  - biweekly
  - monthly
  - quarterly
  - semiannual
  - annual
`
