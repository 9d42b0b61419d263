package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server.
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP server exposing run control, brief reads, and topic/source
administration.

On startup, runs left RUNNING by a previous process are swept: any past its
recorded timeout is marked FAILED.

Examples:
  # Start on the configured host/port
  dailybrief serve

  # Start on a custom port
  dailybrief serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config)")
	return cmd
}

func runServe(port int, host string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.withAI(); err != nil {
		return err
	}

	if port != 0 {
		e.cfg.Server.Port = port
	}
	if host != "" {
		e.cfg.Server.Host = host
	}

	for _, kind := range []core.RunKind{core.RunIngest, core.RunAI, core.RunBuildBrief} {
		if err := e.supervisor.SweepStale(kind, e.cfg.RunTimeout()); err != nil {
			logger.Error("Failed to sweep stale runs", err)
		}
	}

	srv := server.New(e.store, e.supervisor, e.ingester, e.processor, e.builder, e.cfg)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on http://%s:%d", e.cfg.Server.Host, e.cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("Server shutdown initiated (%s)", sig))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Server stopped")
	}
	return nil
}
