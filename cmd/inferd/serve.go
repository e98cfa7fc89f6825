package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/service"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	addr      string
	modelsDir string
	budgetMB  int
	marginMB  int
	fallback  string
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  inferd serve --config inferd.yaml\n  inferd serve --budget-mb 8192 --margin-mb 512",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, &cfg, f)
			return serve(cmd.Context(), opts, cfg)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", envOr("INFERD_ADDR", config.DefaultAddr), "HTTP listen address, e.g. :8080")
	fl.StringVar(&f.modelsDir, "models-dir", config.DefaultModelsDir, "Directory to scan for *.gguf model files")
	fl.IntVar(&f.budgetMB, "budget-mb", 0, "Memory budget in MB for resident models (0=unlimited)")
	fl.IntVar(&f.marginMB, "margin-mb", 0, "Memory in MB to keep free")
	fl.StringVar(&f.fallback, "fallback", os.Getenv("INFERD_FALLBACK_ORDER"), "Comma separated provider fallback order")
	return cmd
}

// applyServeFlags lets explicitly set flags override the config file.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	fl := cmd.Flags()
	if fl.Changed("addr") || cfg.Addr == config.DefaultAddr {
		cfg.Addr = f.addr
	}
	if fl.Changed("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if fl.Changed("budget-mb") {
		cfg.Scheduler.BudgetMB = f.budgetMB
	}
	if fl.Changed("margin-mb") {
		cfg.Scheduler.MarginMB = f.marginMB
	}
	if order := splitCSV(f.fallback); len(order) > 0 {
		cfg.FallbackOrder = order
	}
}

func serve(parent context.Context, opts *rootOptions, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := opts.log
	svc, err := service.New(ctx, cfg, service.Options{Logger: &log})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("close service")
		}
	}()

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(cfg.RequestTimeout.Std())
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	httpapi.SetCORSCredentials(cfg.CORS.AllowCredentials, cfg.CORS.MaxAge)

	// Handlers observe this context so in-flight generations stop on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	cancelBase()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
