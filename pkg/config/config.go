// Package config holds the server and simulation tuning, loaded from YAML
// on top of the built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/cbodonnell/roulette/pkg/wheel"
	"gopkg.in/yaml.v3"
)

// Outcome modes.
const (
	OutcomeModeRandom       = "random"
	OutcomeModeProvablyFair = "provably_fair"
	OutcomeModeFixed        = "fixed"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Table   TableConfig    `yaml:"table"`
	Outcome OutcomeConfig  `yaml:"outcome"`
	Wheel   wheel.Settings `yaml:"wheel"`
}

type ServerConfig struct {
	APIPort      int           `yaml:"apiPort"`
	WSPort       int           `yaml:"wsPort"`
	TickInterval time.Duration `yaml:"tickInterval"`
	SaveInterval time.Duration `yaml:"saveInterval"`
	QueueSize    int           `yaml:"queueSize"`
	Migrations   string        `yaml:"migrations"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
}

type TableConfig struct {
	StartingBalance int `yaml:"startingBalance"`
	MaxStackHeight  int `yaml:"maxStackHeight"`
	MaxHistory      int `yaml:"maxHistory"`
	// RestartDelay is the pause in seconds between the payout and the wheel reset.
	RestartDelay float64 `yaml:"restartDelay"`
	// ResultDisplayTime is how long in seconds a result stays visible.
	ResultDisplayTime float64 `yaml:"resultDisplayTime"`
}

type OutcomeConfig struct {
	Mode       string `yaml:"mode"`
	Seed       int64  `yaml:"seed"`
	Number     int    `yaml:"number"`
	ServerSeed string `yaml:"serverSeed"`
	ClientSeed string `yaml:"clientSeed"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			APIPort:      8080,
			WSPort:       8081,
			TickInterval: 20 * time.Millisecond,
			SaveInterval: 30 * time.Second,
			QueueSize:    1024,
			Migrations:   "./migrations",
			CORSOrigins:  []string{"*"},
		},
		Table: TableConfig{
			StartingBalance:   ledger.DefaultBalance,
			MaxStackHeight:    ledger.DefaultMaxStackHeight,
			MaxHistory:        history.DefaultMaxRecords,
			RestartDelay:      3.2,
			ResultDisplayTime: 5,
		},
		Outcome: OutcomeConfig{
			Mode: OutcomeModeRandom,
		},
		Wheel: wheel.DefaultSettings(),
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %v", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("server.tickInterval must be positive")
	}
	if c.Server.SaveInterval <= 0 {
		return fmt.Errorf("server.saveInterval must be positive")
	}
	if c.Table.StartingBalance < 0 {
		return fmt.Errorf("table.startingBalance must not be negative")
	}
	if c.Table.MaxStackHeight <= 0 {
		return fmt.Errorf("table.maxStackHeight must be positive")
	}
	if c.Table.MaxHistory <= 0 {
		return fmt.Errorf("table.maxHistory must be positive")
	}
	if c.Table.RestartDelay < 0 || c.Table.ResultDisplayTime < 0 {
		return fmt.Errorf("table delays must not be negative")
	}
	switch c.Outcome.Mode {
	case OutcomeModeRandom:
	case OutcomeModeProvablyFair:
		if c.Outcome.ServerSeed == "" {
			return fmt.Errorf("outcome.serverSeed is required in %s mode", OutcomeModeProvablyFair)
		}
	case OutcomeModeFixed:
		if !table.ValidNumber(c.Outcome.Number) {
			return fmt.Errorf("outcome.number %d is not on the wheel", c.Outcome.Number)
		}
	default:
		return fmt.Errorf("unknown outcome.mode %q", c.Outcome.Mode)
	}
	return c.Wheel.Validate()
}

// OutcomeSource builds the source selected by the outcome mode.
func (c Config) OutcomeSource() wheel.OutcomeSource {
	switch c.Outcome.Mode {
	case OutcomeModeFixed:
		return wheel.DeterministicSource{Number: c.Outcome.Number}
	case OutcomeModeProvablyFair:
		return wheel.NewProvablyFairSource(c.Outcome.ServerSeed, c.Outcome.ClientSeed)
	default:
		seed := c.Outcome.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return wheel.NewRandomSource(seed)
	}
}
