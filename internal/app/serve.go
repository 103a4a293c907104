package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/habitboard/internal/config"
	"github.com/blackwell-systems/habitboard/internal/goal"
	"github.com/blackwell-systems/habitboard/internal/hub"
	"github.com/blackwell-systems/habitboard/internal/progress"
	"github.com/blackwell-systems/habitboard/internal/render"
	"github.com/blackwell-systems/habitboard/internal/server"
	"github.com/blackwell-systems/habitboard/internal/store"
	"github.com/blackwell-systems/habitboard/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Long: `Connect to the hub, keep a goal progress snapshot warm, and serve the
TRMNL device API over HTTP.

The snapshot refreshes on a schedule (cache_duration) and on demand; device
polls are always answered from the cached snapshot, so a slow or offline
hub never stalls a display.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Hub.Token == "" {
		return errors.New("hub.token is not set (HABITBOARD_HUB_TOKEN or config.yaml)")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(log)

	weekStart, err := progress.ParseWeekStart(cfg.WeekStart)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := hub.NewClient(cfg.Hub.URL, cfg.Hub.Token, cfg.Hub.Timeout, log)
	if err := client.Connect(ctx); err != nil {
		// Bad credentials are fatal; a hub that is down is not — the
		// reconnect loop takes over once serving starts.
		if errors.Is(err, hub.ErrAuthFailed) {
			return err
		}
		log.Warn("hub not reachable at startup; will keep retrying", "error", err)
		go func() {
			for ctx.Err() == nil {
				if err := client.Connect(ctx); err == nil {
					return
				}
				time.Sleep(5 * time.Second)
			}
		}()
	}
	defer client.Close()

	devices, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening device store: %w", err)
	}
	defer devices.Close()

	renderer, err := render.New(cfg.ImagesDir, log)
	if err != nil {
		return err
	}

	discoverer := goal.NewDiscoverer(client, log)
	trk := tracker.New(discoverer, client, weekStart, cfg.CacheDuration, log)
	go func() {
		if err := trk.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("tracker stopped", "error", err)
		}
	}()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		Version:         appVersion,
		RefreshInterval: cfg.RefreshInterval,
		Debug:           cfg.SlogLevel() == slog.LevelDebug,
	}, trk, renderer, devices, client, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
