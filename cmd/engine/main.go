package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/httpapi"
	"jobtrack-engine/internal/ingest"
	"jobtrack-engine/internal/logger"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/parse"
	"jobtrack-engine/internal/review"
	"jobtrack-engine/internal/scheduler"
	"jobtrack-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine
	_ = godotenv.Load()

	// Engine data dir: use env if provided (the desktop shell passes one), else local folder.
	dataDir := os.Getenv("JOBTRACK_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	userCfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("config bootstrap: %w", err)
	}
	loadCfg := func() (config.Config, error) { return config.Load(userCfgPath) }
	cfg, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load (%s): %w", userCfgPath, err)
	}
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	log, err := logger.Init(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	instance := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := instance.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return errors.New("another engine is already running on " + dataDir)
	}
	defer func() { _ = instance.Unlock() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := filepath.Join(dataDir, "jobtrack.db")
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// we hold the instance lock, so a set flag is left over from a crash
	if err := db.EndSync(ctx); err != nil {
		return fmt.Errorf("clear stale sync flag: %w", err)
	}

	hub := events.NewHub()
	gws := &gateways{cfgVal: &cfgVal, tokens: db, log: log}
	defer gws.Close()

	engine := ingest.New(db, gws.forRun, parse.DefaultDispatcher(), log, ingest.Options{
		Threshold: cfg.Sync.AutoImportThreshold,
		LockPath:  filepath.Join(dataDir, "sync.lock"),
		Events:    hub,
	})
	reviews := review.NewService(db, log, hub)

	router := httpapi.NewRouter(httpapi.Deps{
		Log:         log,
		Hub:         hub,
		Store:       db,
		Sync:        engine,
		Reviews:     reviews,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Gateway:     gws.forRun,
		OnConfig: func(c config.Config) {
			if err := logger.SetLevel(c.Log.Level); err != nil {
				log.Warn("apply log level", zap.Error(err))
			}
			engine.SetThreshold(c.Sync.AutoImportThreshold)
			if c.Sync.IntervalMinutes != cfg.Sync.IntervalMinutes {
				log.Warn("sync.interval_minutes changes take effect after restart",
					zap.Int("running", cfg.Sync.IntervalMinutes), zap.Int("saved", c.Sync.IntervalMinutes))
			}
		},
	})

	token, err := shutdownToken(dataDir)
	if err != nil {
		return fmt.Errorf("shutdown token: %w", err)
	}
	router.Post("/shutdown", shutdownHandler(token, stop))

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("engine listening", zap.String("addr", "http://"+addr), zap.String("db", dbPath))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if every := cfg.Sync.IntervalMinutes; every > 0 {
		g.Go(func() error {
			scheduler.Every(gctx, time.Duration(every)*time.Minute, "gmail-sync", log, func(ctx context.Context) error {
				_, err := engine.RunSync(ctx, false)
				if errors.Is(err, ingest.ErrSyncInProgress) || errors.Is(err, mailbox.ErrNotConnected) {
					log.Debug("scheduled sync skipped", zap.Error(err))
					return nil
				}
				return err
			})
			return nil
		})
	}

	err = g.Wait()
	log.Info("engine stopped")
	return err
}
