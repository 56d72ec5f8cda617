// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/procauth/internal/api"
	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/dispatch"
	"github.com/holomush/procauth/internal/observability"
	"github.com/holomush/procauth/internal/session"
)

// sessionSweepInterval is how often expired sessions are dropped.
const sessionSweepInterval = time.Minute

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps holds injectable dependencies for the serve command.
// Nil fields use their defaults.
type ServeDeps struct {
	App *AppDeps

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer

	// Listen opens the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// Started, when set, is called with the bound API address once the
	// server accepts connections.
	Started func(apiAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the procedure API",
		Long: `Serve the dbms.security procedures over HTTP. Clients log in with
POST /login and call procedures with POST /procedures/{name}. Metrics and
health probes are served on a separate address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps)
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	fs.String("server.api-addr", d.Server.APIAddr, "procedure API listen address")
	fs.String("server.metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.Bool("server.auth-enabled", d.Server.AuthEnabled, "require login; when false every call runs with full access")
	fs.Int("server.session-ttl-minutes", d.Server.SessionTTLMinutes, "how long a login stays valid")
	addRealmFlags(fs)

	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	return &out
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	slog.Info("starting procauth",
		"version", version,
		"realm_backend", cfg.Realm.Backend,
		"auth_enabled", cfg.Server.AuthEnabled,
	)

	a, err := newApp(ctx, cfg, deps.App)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []api.Option
	if !cfg.Server.AuthEnabled {
		slog.Warn("authentication disabled; every call runs with full access")
		opts = append(opts, api.WithAuthDisabled())
	}
	handler := api.NewHandler(a.dispatcher, a.sessions, opts...)

	listener, err := deps.Listen("tcp", cfg.Server.APIAddr)
	if err != nil {
		return oops.Code("API_LISTEN_FAILED").With("addr", cfg.Server.APIAddr).Wrap(err)
	}
	apiServer := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	var obsServer ObservabilityServer
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, a.provider.Registered,
			dispatch.RegisterMetrics, session.RegisterMetrics)
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			shutdown(apiServer, nil, cfg.Server.ShutdownSeconds)
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")
	go a.sessions.Sweep(ctx, sessionSweepInterval)

	apiAddr := listener.Addr().String()
	cmd.Printf("procauth serving on %s\n", apiAddr)
	slog.Info("procedure API ready", "addr", apiAddr, "procedures", a.registry.Len())
	if deps.Started != nil {
		deps.Started(apiAddr)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	shutdown(apiServer, obsServer, cfg.Server.ShutdownSeconds)
	slog.Info("shutdown complete")

	if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// shutdown stops the API server, then the observability server, within
// seconds.
func shutdown(apiServer *http.Server, obsServer ObservabilityServer, seconds int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seconds)*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx with the first serve error a server reports.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}
