package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/config"
	httptransport "github.com/example/pc-reservation/internal/http"
	"github.com/example/pc-reservation/internal/logging"
	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/persistence/gormstore"
	"github.com/example/pc-reservation/internal/persistence/memory"
	"github.com/example/pc-reservation/internal/persistence/sqlite"
	"github.com/example/pc-reservation/internal/retention"
	"github.com/example/pc-reservation/internal/timegrid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reservation service stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves HTTP and the retention sweep until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, health, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	service, err := newApp(ctx, cfg, store, health, logger, appDeps{})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           service.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("reservation API listening", "addr", server.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if service.retention != nil {
		g.Go(func() error {
			return service.retention.Run(gctx)
		})
	} else {
		logger.Info("retention sweep disabled")
	}

	return g.Wait()
}

// openStorage selects the backend named by cfg.Storage. The returned check
// reports whether the backend is reachable.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, httptransport.HealthCheck, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, store.Ping, nil
	case config.StoragePostgres:
		store, err := gormstore.OpenPostgres(ctx, cfg.PostgresDSN, gormstore.Config{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			SlowThreshold:   200 * time.Millisecond,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, store.Ping, nil
	case config.StorageMemory:
		logger.Warn("using in-memory storage; reservations are lost on restart")
		return memory.Open(), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

type app struct {
	handler      http.Handler
	computers    *application.ComputerService
	reservations *application.ReservationService
	retention    *retention.Runner
}

// appDeps overrides the clock and identifier source. Zero fields fall back to
// time.Now and uuid.NewString.
type appDeps struct {
	now         func() time.Time
	idGenerator func() string
}

// newApp wires services, handlers and the retention runner onto store, and seeds
// the default computers when configured.
func newApp(ctx context.Context, cfg config.Config, store persistence.Store, health httptransport.HealthCheck, logger *slog.Logger, deps appDeps) (*app, error) {
	grid := timegrid.New(cfg.Location)
	idGenerator := deps.idGenerator
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	now := deps.now
	if now == nil {
		now = time.Now
	}

	computerRepo := newComputerRepositoryAdapter(store)
	reservationRepo := newReservationRepositoryAdapter(store)

	computerService := application.NewComputerServiceWithLogger(computerRepo, idGenerator, now, logger)
	reservationService := application.NewReservationServiceWithLogger(reservationRepo, computerService, grid, idGenerator, now, logger)

	if cfg.SeedComputers {
		seeded, err := computerService.SeedComputers(ctx, application.DefaultComputerNames)
		if err != nil {
			return nil, fmt.Errorf("seed computers: %w", err)
		}
		if seeded > 0 {
			logger.Info("default computers registered", "count", seeded)
		}
	}

	var runner *retention.Runner
	if cfg.RetentionSchedule != "" {
		var err error
		runner, err = retention.NewRunner(reservationService, cfg.RetentionSchedule, grid.Location(),
			retention.WithLogger(logger.With("component", "retention")),
		)
		if err != nil {
			return nil, err
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Computers:    httptransport.NewComputerHandler(computerService, logger),
		Reservations: httptransport.NewReservationHandler(reservationService, grid, now, logger),
		Health:       health,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	return &app{
		handler:      router,
		computers:    computerService,
		reservations: reservationService,
		retention:    runner,
	}, nil
}
