package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/equihomepartners/core-engine/internal/httpapi"
	"github.com/equihomepartners/core-engine/internal/resultstore"
	hostconfig "github.com/equihomepartners/core-engine/pkg/config"
	"github.com/equihomepartners/core-engine/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// newServeCommand builds the "serve" subcommand: starts the HTTP API and
// shuts it down gracefully on the root command's context cancellation.
func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for submitting and polling simulation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	return cmd
}

func serve(ctx context.Context, port int) error {
	appCfg, err := hostconfig.Load()
	if err != nil {
		return fmt.Errorf("load host configuration: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:       appCfg.Logging.Level,
		Development: appCfg.Logging.Development,
		Encoding:    appCfg.Logging.Encoding,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync()

	store, err := resultstore.NewFile(appCfg.Results.Dir)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}

	server := httpapi.NewServer(store, log)
	router := server.Router()
	if appCfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening", logger.Int("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
