package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"dentcal/internal/blocked"
	"dentcal/internal/config"
	"dentcal/internal/geometry"
	"dentcal/internal/gesture"
	appLog "dentcal/internal/log"
	"dentcal/internal/remote"
	"dentcal/internal/web"
	"dentcal/internal/week"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	appLog.Info("dentcal starting", "version", "0.1.0")

	// .env is optional; real deployments set the token via the environment.
	_ = godotenv.Load()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"remote", conf.Remote.BaseURL,
		"label_field", conf.LabelField,
		"refresh", conf.RefreshCron,
		"snap_minutes", conf.SnapMinutes,
		"blocked_rules", len(conf.Blocked),
	)

	token := ""
	if conf.Remote.TokenEnv != "" {
		token = os.Getenv(conf.Remote.TokenEnv)
		if token == "" {
			appLog.Warn("remote token env is empty; requests go out unauthenticated",
				"env", conf.Remote.TokenEnv)
		}
	}

	gateway := remote.NewClient(conf, token)
	grid := geometry.New(conf.Grid.HalfHourHeight, conf.Grid.HeaderHeight, conf.SnapMinutes)
	ctrl := gesture.New(grid, week.New(time.Now), gateway, conf.Treatments)
	overlay := blocked.New(conf.Blocked)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Initial week load. Per-date failures degrade to empty columns, so a
	// partially reachable remote store still yields a usable calendar.
	if err := ctrl.LoadWeek(ctx); err != nil {
		appLog.Error("initial week load incomplete", err)
	}

	// Periodic re-fetch of the visible week. This is the convergence path for
	// any optimistic state that outlived a failed commit.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, 60*time.Second)
		defer refreshCancel()
		if err := ctrl.LoadWeek(refreshCtx); err != nil {
			appLog.Error("scheduled week refresh incomplete", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, ctrl, overlay, flags.debug).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("dentcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/dentcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Verbose logging and local cache paths")

	flag.Parse()

	return cfg
}
