// Package server initializes and runs the main application server.
// It opens the encrypted store, wires the identity resolver and the game
// engine on top of it, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dpavlenko/cryptoquest/internal/game"
	"github.com/dpavlenko/cryptoquest/internal/identity"
	"github.com/dpavlenko/cryptoquest/internal/logging"
	"github.com/dpavlenko/cryptoquest/internal/server/config"
	"github.com/dpavlenko/cryptoquest/internal/storage"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *storage.FileStore
	engine   *game.Engine
	resolver *identity.Resolver
}

func NewApp(cfg *config.Config) (*App, error) {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(l)

	store, err := storage.NewFileStore(cfg.DataFile, cfg.MasterKeyFile, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	engine := game.NewEngine(store, logger, cfg.SecretURL, cfg.FinalMessage)
	resolver := identity.NewResolver(store, logger)

	return &App{
		config:   cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		resolver: resolver,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startTextServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := NewHandler(app.engine, app.resolver, app.config, app.logger)
	s := NewTextServer(app.config.ListenAddr, h, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startTextServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
