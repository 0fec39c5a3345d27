package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saltydog/internal/api"
	"saltydog/pkg/config"
	"saltydog/pkg/logging"
	"saltydog/pkg/prefs"
	"saltydog/pkg/probe"
	"saltydog/pkg/tracker"
	"saltydog/pkg/tracking"
	"saltydog/pkg/units"
	"saltydog/pkg/version"
)

var (
	configPath = flag.String("config", "configs/saltydog.yaml", "Path to the config file")
	envPath    = flag.String("env", ".env", "Optional dotenv file with SALTYDOG_* overrides")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := loadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv loads a dotenv file if present. Variables already set win.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("SaltyDog Started", "version", version.Version, "sensor", appCfg.Sensor.Provider)

	prefStore, err := prefs.Open(appCfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	defer prefStore.Close()

	results := probe.Run(ctx, startupProbes(appCfg, prefStore))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	defaults := defaultPrefs(appCfg)
	userPrefs, err := prefStore.Load(ctx, defaults)
	if err != nil {
		slog.Warn("Failed to load preferences, using config defaults", "error", err)
		userPrefs = defaults
	}

	src, err := initSensor(&appCfg.Sensor)
	if err != nil {
		return fmt.Errorf("failed to initialize sensor: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("Sensor close failed", "error", err)
		}
	}()

	engine := tracking.NewEngine(src,
		tracking.WithThresholds(userPrefs.Thresholds()),
		tracking.WithTickInterval(time.Duration(appCfg.Tracking.TickInterval)),
		tracking.WithTracker(tracker.New(), appCfg.Sensor.Provider),
	)
	defer engine.Close()

	if userPrefs.BackgroundTracking {
		engine.EnableBackgroundTracking()
	}

	go engine.Run(ctx, src.Events())

	if appCfg.Tracking.AutoAuthorize {
		if err := engine.RequestAuthorization(); err != nil {
			slog.Warn("Authorization request failed", "error", err)
		}
	}

	return runServer(ctx, appCfg, engine, prefStore, defaults, userPrefs)
}

func defaultPrefs(cfg *config.Config) prefs.Preferences {
	return prefs.Preferences{
		SpeedUnit:          units.SpeedUnit(cfg.Display.SpeedUnit),
		DistanceUnit:       units.DistanceUnit(cfg.Display.DistanceUnit),
		MinimumAccuracy:    float64(cfg.Tracking.MinimumAccuracy),
		MinimumSpeed:       float64(cfg.Tracking.MinimumSpeed),
		BackgroundTracking: cfg.Tracking.BackgroundTracking,
	}
}

func startupProbes(cfg *config.Config, st *prefs.Store) []probe.Probe {
	probes := []probe.Probe{
		{
			Name: "Preference Store",
			Check: func(ctx context.Context) error {
				_, _, err := st.Get(ctx, prefs.KeySpeedUnit)
				return err
			},
			Critical: true,
		},
	}
	if cfg.Sensor.Provider == "replay" {
		probes = append(probes, probe.Probe{
			Name: "Replay Track",
			Check: func(context.Context) error {
				_, err := os.Stat(cfg.Sensor.Replay.File)
				return err
			},
			Critical: true,
		})
	}
	return probes
}

func runServer(ctx context.Context, cfg *config.Config, engine *tracking.Engine, st *prefs.Store, defaults, current prefs.Preferences) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	du := api.NewDisplayUnits(current.SpeedUnit, current.DistanceUnit)
	prefsH := api.NewPrefsHandler(st, engine, du, defaults)
	streamH := api.NewStreamHandler(engine, du)

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		State:   api.NewStateHandler(engine, du),
		Track:   api.NewTrackHandler(engine),
		Control: api.NewControlHandler(engine, du, prefsH),
		Prefs:   prefsH,
		Stats:   api.NewStatsHandler(engine.Tracker(), engine),
		Stream:  streamH,
	}, shutdownFunc)
	srv.RegisterOnShutdown(streamH.CloseAll)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
