package tracker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/pkg/logger"
	"github.com/SakuraBurst/questtracker/internal/pkg/metrics"
	"github.com/SakuraBurst/questtracker/internal/tracker/cache"
	"github.com/SakuraBurst/questtracker/internal/tracker/config"
	"github.com/SakuraBurst/questtracker/internal/tracker/controller"
	"github.com/SakuraBurst/questtracker/internal/tracker/database"
	"github.com/SakuraBurst/questtracker/internal/tracker/router"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

const startupTimeout = 15 * time.Second

type App struct {
	router *router.HttpRouter
	logger *zap.Logger
}

func (a *App) Run() error {
	sisChan := make(chan os.Signal, 1)
	go func() {
		if err := a.router.Run(); err != nil {
			a.logger.Error("router.Run failed: ", zap.Error(err))
			sisChan <- os.Interrupt
		}
	}()
	return a.gracefulShutdown(sisChan)
}

func (a *App) gracefulShutdown(sisChan chan os.Signal) error {
	signal.Notify(sisChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sisChan
	a.logger.Info("shutting down", zap.String("signal", sig.String()))
	if err := a.router.Close(); err != nil {
		a.logger.Error("router.Close failed: ", zap.Error(err))
	}
	// stdout sync fails with EINVAL on most terminals
	_ = a.logger.Sync()
	return nil
}

// NewApp wires storage, the optional redis cache, the controller and the router.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.InitLogger(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, errors.Wrap(err, "logger.InitLogger failed: ")
	}
	metrics.Register()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	lc, err := newLeaderboardCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var c *controller.Controller
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewDB(cfg, log)
		if err != nil {
			_ = lc.Close()
			return nil, errors.Wrap(err, "database.NewDB failed: ")
		}
		c = controller.NewController(cfg, db, lc, log)
	default:
		c = controller.NewController(cfg, database.NewMemoryDB(), lc, log)
	}

	if err := c.Seed(ctx, cfg.Seed.DemoUser); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "controller.Seed failed: ")
	}

	r := router.CreateRouter(c, cfg, log)
	log.Info("app configured",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.String("http_port", cfg.HttpPort),
	)
	return &App{
		router: r,
		logger: log,
	}, nil
}

type leaderboardCache interface {
	GetLeaderboard(ctx context.Context) ([]*types.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, entries []*types.LeaderboardEntry) error
	InvalidateLeaderboard(ctx context.Context) error
	Close() error
}

func newLeaderboardCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (leaderboardCache, error) {
	if cfg.Redis.Addr == "" {
		return cache.Nop{}, nil
	}
	client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, errors.Wrap(err, "cache.Connect failed: ")
	}
	log.Info("leaderboard cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.LeaderboardTTL))
	return cache.NewLeaderboardCache(client, cfg.Redis.LeaderboardTTL), nil
}
