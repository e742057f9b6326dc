// Package config loads tier and engine settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vanplan/internal/model"
)

type Config struct {
	Tiers        map[string]model.CapacityCeiling `yaml:"tiers"`
	Planner      PlannerConfig                    `yaml:"planner"`
	Availability AvailabilityConfig               `yaml:"availability"`
}

type PlannerConfig struct {
	ExactLimit int `yaml:"exactLimit"`
}

type AvailabilityConfig struct {
	// MatchRule selects the corridor geography predicate. Currently
	// "outward-postcode" is the only built-in; custom predicates are
	// injected in code.
	MatchRule           string        `yaml:"matchRule"`
	StoreTimeout        time.Duration `yaml:"storeTimeout"`
	StoreRetries        int           `yaml:"storeRetries"`
	RetryBackoff        time.Duration `yaml:"retryBackoff"`
	AppendRetries       int           `yaml:"appendRetries"`
	SeedCorridors       bool          `yaml:"seedCorridors"`
	CorridorWindowHours int           `yaml:"corridorWindowHours"`
}

// UnmarshalYAML overlays present keys onto the receiver's current values
// and accepts Go duration strings ("750ms", "2s") for the timeouts,
// which yaml.v3 will not decode into time.Duration on its own.
func (a *AvailabilityConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MatchRule           *string `yaml:"matchRule"`
		StoreTimeout        *string `yaml:"storeTimeout"`
		StoreRetries        *int    `yaml:"storeRetries"`
		RetryBackoff        *string `yaml:"retryBackoff"`
		AppendRetries       *int    `yaml:"appendRetries"`
		SeedCorridors       *bool   `yaml:"seedCorridors"`
		CorridorWindowHours *int    `yaml:"corridorWindowHours"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MatchRule != nil {
		a.MatchRule = *raw.MatchRule
	}
	if raw.StoreTimeout != nil {
		d, err := time.ParseDuration(*raw.StoreTimeout)
		if err != nil {
			return fmt.Errorf("storeTimeout: %w", err)
		}
		a.StoreTimeout = d
	}
	if raw.RetryBackoff != nil {
		d, err := time.ParseDuration(*raw.RetryBackoff)
		if err != nil {
			return fmt.Errorf("retryBackoff: %w", err)
		}
		a.RetryBackoff = d
	}
	if raw.StoreRetries != nil {
		a.StoreRetries = *raw.StoreRetries
	}
	if raw.AppendRetries != nil {
		a.AppendRetries = *raw.AppendRetries
	}
	if raw.SeedCorridors != nil {
		a.SeedCorridors = *raw.SeedCorridors
	}
	if raw.CorridorWindowHours != nil {
		a.CorridorWindowHours = *raw.CorridorWindowHours
	}
	return nil
}

// Default returns the settings used when no config file is present.
func Default() Config {
	return Config{
		Tiers: map[string]model.CapacityCeiling{
			"economy":  {VolumeM3: 14, WeightKg: 1100, WorkerSeats: 2},
			"standard": {VolumeM3: 14, WeightKg: 1100, WorkerSeats: 2},
			"express":  {VolumeM3: 20, WeightKg: 1500, WorkerSeats: 3},
		},
		Planner: PlannerConfig{ExactLimit: 8},
		Availability: AvailabilityConfig{
			MatchRule:           "outward-postcode",
			StoreTimeout:        1500 * time.Millisecond,
			StoreRetries:        3,
			RetryBackoff:        200 * time.Millisecond,
			AppendRetries:       3,
			SeedCorridors:       true,
			CorridorWindowHours: 6,
		},
	}
}

// Load reads a YAML config file over the defaults. Missing file is fine;
// a malformed one is not.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, t := range c.Tiers {
		if t.VolumeM3 < 0 || t.WeightKg < 0 || t.WorkerSeats < 0 {
			return fmt.Errorf("tier %s: negative ceiling dimension", name)
		}
	}
	if c.Planner.ExactLimit < 0 {
		return fmt.Errorf("planner.exactLimit must be >= 0")
	}
	if c.Availability.StoreRetries < 0 || c.Availability.AppendRetries < 0 {
		return fmt.Errorf("availability retries must be >= 0")
	}
	return nil
}

// Ceiling returns the tier's ceiling, falling back to economy.
func (c Config) Ceiling(tier string) model.CapacityCeiling {
	if t, ok := c.Tiers[tier]; ok {
		return t
	}
	return c.Tiers["economy"]
}
