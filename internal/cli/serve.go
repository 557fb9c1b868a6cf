package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/httpapi"
	"github.com/forPelevin/clipforge/internal/pipeline"
)

const (
	httpShutdownTimeout = 30 * time.Second
	drainTimeout        = 2 * time.Minute
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the stage workers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	cmd.Flags().Int("workers", 0, "Worker count (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v != 0 {
		cfg.Workers = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	app.Start()
	srv := httpapi.New(app.Service, pipeline.HTTPOptions(cfg), log)

	listenErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("clipforge listening")
		listenErr <- srv.Listen(cfg.Addr)
	}()

	select {
	case err = <-listenErr:
		if err != nil {
			err = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received, draining")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if serr := srv.ShutdownWithContext(shutdownCtx); serr != nil {
		log.WithError(serr).Error("http shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if cerr := app.Close(drainCtx); cerr != nil {
		log.WithError(cerr).Warn("workers did not drain cleanly")
		err = errors.Join(err, cerr)
	}
	log.Info("stopped")
	return err
}
