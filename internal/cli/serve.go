package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/rpattn/spanql/internal/config"
	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/export"
	"github.com/rpattn/spanql/internal/httpapi"
	"github.com/rpattn/spanql/internal/middleware"
	"github.com/rpattn/spanql/internal/query"
	"github.com/rpattn/spanql/internal/repository"
	"github.com/rpattn/spanql/internal/spans"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMigrations bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the span listing HTTP server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "do not apply pending migrations on start")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, opts.Verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if !opts.SkipMigrations {
		if err := db.RunMigrations(cfg.Database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	spanRepo := repository.NewSpanRepository(conn.DB, query.Postgres)
	costRepo := repository.NewSpanCostRepository(conn.DB, query.Postgres)
	svc := spans.NewService(spanRepo, costRepo, cfg.Pagination)
	api := httpapi.NewHandler(svc, export.WithPageSize(cfg.Pagination.MaxPageSize)).
		WithExportTimeout(cfg.Server.ExportTimeout)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newHTTPHandler(cfg.Server, api, costRepo, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting span server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited")
	return nil
}

// newHTTPHandler wraps the API routes in CORS, logging and the per-request
// cost loader.
func newHTTPHandler(cfg config.ServerConfig, api *httpapi.Handler, costs repository.SpanCostRepository, logger *slog.Logger) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
	})

	return corsHandler.Handler(middleware.LoggingMiddleware(logger)(
		middleware.DataLoaderMiddleware(costs)(api.Routes()),
	))
}
