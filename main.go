package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/msomdec/logo-feedback/internal/config"
	"github.com/msomdec/logo-feedback/internal/domain"
	"github.com/msomdec/logo-feedback/internal/handler"
	"github.com/msomdec/logo-feedback/internal/repository/disk"
	"github.com/msomdec/logo-feedback/internal/service"
	"github.com/msomdec/logo-feedback/internal/tracing"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "logo-feedback",
		Short:         "Serve a gallery of logo designs and collect feedback on them",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Bind, "bind", cfg.Bind, "address to bind to")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	flags.StringVar(&cfg.UploadDir, "uploads", cfg.UploadDir, "directory holding uploaded designs")
	flags.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "path of the comment ledger")
	flags.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory of static assets")
	flags.IntVar(&cfg.MaxUploadMB, "max-upload-mb", cfg.MaxUploadMB, "largest accepted file in MB")
	flags.IntVar(&cfg.SubmitPerMinute, "submit-rate", cfg.SubmitPerMinute, "submissions per minute per client, 0 disables")
	flags.BoolVar(&cfg.StrictLedger, "strict-ledger", cfg.StrictLedger, "refuse to start on a corrupt ledger instead of moving it aside")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := disk.New(disk.Options{
		UploadDir:    cfg.UploadDir,
		LedgerPath:   cfg.LedgerPath,
		StrictLedger: cfg.StrictLedger,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Check(ctx); err != nil {
		if errors.Is(err, domain.ErrCorruptLedger) {
			return fmt.Errorf("%w: fix or remove %s, or start without --strict-ledger", err, cfg.LedgerPath)
		}
		return fmt.Errorf("check ledger: %w", err)
	}

	designService := service.NewDesignService(store.Designs(), cfg.MaxUploadBytes())
	commentService := service.NewCommentService(store.Comments(), store.Designs())
	limiter := service.NewSubmissionLimiter(cfg.SubmitPerMinute, cfg.SubmitBurst, nil)

	staticDir := cfg.StaticDir
	if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
		slog.Warn("static directory not found, static assets disabled", "dir", staticDir)
		staticDir = ""
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, designService, commentService, limiter, staticDir)

	srv := &http.Server{
		Handler:           otelhttp.NewHandler(handler.RequestLogger(handler.SecurityHeaders(mux)), "logo-feedback"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Bind before serving so an unavailable address fails startup.
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", ln.Addr().String(), "uploads", cfg.UploadDir, "ledger", cfg.LedgerPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
