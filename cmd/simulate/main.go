package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/config"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/game"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"gopkg.in/yaml.v3"
)

// maxStepsPerRound bounds a single round so a stuck simulation cannot hang the run.
const maxStepsPerRound = 100000

type report struct {
	Spins        int           `yaml:"spins" json:"spins"`
	Aborted      int           `yaml:"aborted" json:"aborted"`
	Spot         string        `yaml:"spot" json:"spot"`
	Chip         int           `yaml:"chip" json:"chip"`
	FinalBalance int           `yaml:"finalBalance" json:"finalBalance"`
	Deposited    int           `yaml:"deposited" json:"deposited"`
	Stats        history.Stats `yaml:"stats" json:"stats"`
	Frequencies  map[int]int   `yaml:"frequencies" json:"frequencies"`
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	logLevel := flag.String("log-level", "warn", "Log level")
	spins := flag.Int("spins", 100, "Number of rounds to play")
	seed := flag.Int64("seed", 1, "Seed for the orbit durations and the random outcome mode")
	spot := flag.String("spot", "red", "Spot to bet on every round")
	chip := flag.String("chip", "10", "Chip denomination to bet")
	fast := flag.Bool("fast", false, "Shorten the orbit to speed up the run")
	format := flag.String("format", "yaml", "Report format: yaml or json")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	logger := log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	denomination, err := chips.ParseDenomination(*chip)
	if err != nil {
		panic(fmt.Sprintf("Invalid chip: %v", err))
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to load config: %v", err))
		}
	}
	if cfg.Outcome.Mode == config.OutcomeModeRandom && cfg.Outcome.Seed == 0 {
		cfg.Outcome.Seed = *seed
	}
	if *fast {
		cfg.Wheel.MinOrbitDuration = 1
		cfg.Wheel.MaxOrbitDuration = 2
	}
	cfg.Table.RestartDelay = 0
	cfg.Table.MaxHistory = max(*spins, 1)

	bus := events.NewBus()
	m := game.NewManager(game.NewManagerOptions{
		Config: cfg,
		Bus:    bus,
		Rand:   rand.New(rand.NewSource(*seed)),
		Logger: logger.WithComponent("game"),
	})
	if m.Layout().Spot(*spot) == nil {
		panic(fmt.Sprintf("Unknown spot: %s", *spot))
	}

	var settled, aborted, finished int
	balance := cfg.Table.StartingBalance
	frequencies := make(map[int]int)
	events.Subscribe(bus, func(e events.PayoutComputed) {
		settled++
		frequencies[e.WinningNumber]++
	})
	events.Subscribe(bus, func(events.SpinAborted) {
		aborted++
		finished++
	})
	events.Subscribe(bus, func(events.RoundReset) { finished++ })
	events.Subscribe(bus, func(e events.BalanceChanged) { balance = e.Balance })

	r := report{Spot: *spot, Chip: denomination.Value(), Frequencies: frequencies}
	dt := cfg.Wheel.FixedDeltaTime
	for i := 0; i < *spins; i++ {
		if balance < denomination.Value() {
			m.Execute(game.Command{Type: game.CommandAddFunds, Amount: cfg.Table.StartingBalance})
			r.Deposited += cfg.Table.StartingBalance
		}
		if res := m.Execute(game.Command{Type: game.CommandPlaceBet, SpotID: *spot, Denomination: denomination}); !res.Accepted {
			panic(fmt.Sprintf("Bet rejected in round %d: %s", i, res.Reason))
		}
		if res := m.Execute(game.Command{Type: game.CommandSpin}); !res.Accepted {
			m.Execute(game.Command{Type: game.CommandCancelBets})
			continue
		}

		want := finished + 1
		for step := 0; finished < want; step++ {
			if step >= maxStepsPerRound {
				panic(fmt.Sprintf("Round %d did not finish", i))
			}
			m.Step(dt)
		}
		if (i+1)%100 == 0 {
			log.Info("Played %d of %d rounds", i+1, *spins)
		}
	}

	save := m.SaveData()
	r.Spins = settled
	r.Aborted = aborted
	r.FinalBalance = save.Balance
	r.Stats = save.Stats()

	var out []byte
	switch *format {
	case "yaml":
		out, err = yaml.Marshal(r)
	case "json":
		out, err = json.MarshalIndent(r, "", "  ")
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to write report: %v", err))
	}
	fmt.Println(string(out))
}
