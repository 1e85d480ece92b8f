package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Logging   LoggingConfig   `toml:"logging"`
	Scripting ScriptingConfig `toml:"scripting"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type EngineConfig struct {
	// WorkerCount is the pool concurrency. -1 means hardware parallelism
	// minus one; 0 is legal and runs everything on the main thread.
	WorkerCount int `toml:"worker_count"`
	// FrameLimitHz caps the frame rate. 0 means unlimited.
	FrameLimitHz int `toml:"frame_limit_hz"`
	// MaxDeltaSeconds clamps reported delta time after stalls.
	MaxDeltaSeconds float64 `toml:"max_delta_seconds"`
	// PhaseBudget is the soft per-phase duration budget. Exceeding it logs
	// a warning; execution still runs to completion. 0 disables.
	PhaseBudget time.Duration `toml:"phase_budget"`
	// Profiling enables per-system timing export and the metrics endpoint.
	Profiling bool `toml:"profiling"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptingConfig struct {
	// Dir holds the Lua scripts referenced by pipeline files.
	Dir string `toml:"dir"`
	// Pipeline is the YAML file declaring scripted systems and user tasks.
	Pipeline string `toml:"pipeline"`
}

type MetricsConfig struct {
	// BindAddress serves the Prometheus endpoint when profiling is on.
	BindAddress string `toml:"bind_address"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			WorkerCount:     -1,
			FrameLimitHz:    0,
			MaxDeltaSeconds: 0.25,
			PhaseBudget:     0,
			Profiling:       false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Metrics: MetricsConfig{
			BindAddress: "127.0.0.1:9180",
		},
	}
}

func (c *Config) validate() error {
	if c.Engine.FrameLimitHz < 0 {
		return fmt.Errorf("engine.frame_limit_hz must be >= 0, got %d", c.Engine.FrameLimitHz)
	}
	if c.Engine.MaxDeltaSeconds <= 0 {
		return fmt.Errorf("engine.max_delta_seconds must be > 0, got %v", c.Engine.MaxDeltaSeconds)
	}
	return nil
}
