package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LedgerService Connect RPC server",
		Long: `Serves splitledger.v1.LedgerService over HTTP/1.1 and h2c, plus
prometheus metrics on /metrics and a liveness probe on /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				rootOpts.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), rootOpts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := openBackend(opts, reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize storage", err)
	}
	defer b.Close()

	mux := newServeMux(opts, b, reg)

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(middleware.HTTPLogging(logger, middleware.CORS(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Connect server starting",
		"address", cfg.Server.Addr,
		"driver", cfg.Storage.Driver,
		"auth", cfg.Auth.JWTSecret != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newServeMux(opts *RootOptions, b *backend, reg *prometheus.Registry) *http.ServeMux {
	cfg, logger := opts.cfg, opts.logger

	var interceptors []connect.Interceptor
	switch {
	case cfg.Auth.JWTSecret == "":
		logger.Warn("Authentication disabled: creators default to the payer")
	case cfg.Auth.Required:
		interceptors = append(interceptors, middleware.RequireAuth(auth.NewJWTManager(cfg.Auth.JWTSecret, 0)))
	default:
		interceptors = append(interceptors, middleware.OptionalAuth(auth.NewJWTManager(cfg.Auth.JWTSecret, 0)))
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor(logger))

	mux := http.NewServeMux()
	path, handler := apiconnect.NewLedgerServiceHandler(
		service.NewLedgerService(b.engine, logger),
		connect.WithInterceptors(interceptors...),
	)
	mux.Handle(path, handler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}
