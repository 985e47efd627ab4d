package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cbodonnell/roulette/pkg/api"
	"github.com/cbodonnell/roulette/pkg/config"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/game"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/messages"
	"github.com/cbodonnell/roulette/pkg/network"
	"github.com/cbodonnell/roulette/pkg/queue"
	"github.com/cbodonnell/roulette/pkg/repositories"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/cbodonnell/roulette/pkg/version"
	"github.com/cbodonnell/roulette/pkg/workers"
)

const defaultDatabaseURL = "sqlite://roulette.db"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	logLevel := flag.String("log-level", "info", "Log level")
	apiPort := flag.Int("api-port", 0, "HTTP API port, overrides the config")
	wsPort := flag.Int("ws-port", 0, "WebSocket port, overrides the config")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to load config: %v", err))
		}
	}
	if *apiPort != 0 {
		cfg.Server.APIPort = *apiPort
	}
	if *wsPort != 0 {
		cfg.Server.WSPort = *wsPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connStr := os.Getenv("ROULETTE_DATABASE_URL")
	if connStr == "" {
		connStr = defaultDatabaseURL
	}
	repository, err := repositories.Open(ctx, connStr, cfg.Server.Migrations)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	saveData, _, err := game.LoadOrDefault(ctx, repository, cfg.Table.StartingBalance)
	if err != nil {
		panic(fmt.Sprintf("Failed to load saved game: %v", err))
	}

	bus := events.NewBus()
	stateManager := state.NewInMemoryStateManager()
	layout := table.StandardLayout()

	saveChan := make(chan *history.SaveData, 16)
	gameManager := game.NewManager(game.NewManagerOptions{
		Config:       cfg,
		Bus:          bus,
		Layout:       layout,
		Commands:     queue.NewInMemoryQueue(cfg.Server.QueueSize),
		StateManager: stateManager,
		SaveChan:     saveChan,
		SaveData:     saveData,
		Logger:       logger.WithComponent("game"),
	})

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:           cfg.Server.WSPort,
		AllowedOrigins: cfg.Server.CORSOrigins,
		Snapshot: func() (*messages.Message, error) {
			s, err := stateManager.Get(ctx)
			if err != nil {
				return nil, err
			}
			return messages.NewStateMessage(s)
		},
	})

	saveWorker := workers.NewSaveGameDataWorker(workers.NewSaveGameDataWorkerOptions{
		Repository: repository,
		SaveChan:   saveChan,
		Interval:   cfg.Server.SaveInterval,
		Bus:        bus,
	})
	broadcastWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		Broadcaster:   wsServer,
		Bus:           bus,
		StateManager:  stateManager,
		StateInterval: 100 * time.Millisecond,
	})

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         cfg.Server.APIPort,
		Commander:    gameManager,
		StateManager: stateManager,
		Layout:       layout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       logger.WithComponent("api"),
	})
	go apiServer.Start()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := wsServer.Start(ctx); err != nil {
			log.Error("WebSocket server stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		broadcastWorker.Start(ctx)
	}()

	gameCtx, cancelGame := context.WithCancel(context.Background())
	gameDone := make(chan struct{})
	go func() {
		defer close(gameDone)
		log.Info("Starting game manager")
		if err := gameManager.Start(gameCtx); err != nil {
			log.Error("Game manager stopped: %v", err)
		}
	}()

	saveCtx, cancelSave := context.WithCancel(context.Background())
	go func() {
		defer wg.Done()
		saveWorker.Start(saveCtx)
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}

	// the game loop hands its final save to the worker before the worker stops
	cancelGame()
	<-gameDone
	cancelSave()
	wg.Wait()
}
