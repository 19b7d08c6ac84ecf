// Package app wires the bridge into a standalone HTTP host with a gRPC
// health endpoint and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/nativebridge/internal/bridge"
	"github.com/patric-chuzhbe/nativebridge/internal/calc"
	"github.com/patric-chuzhbe/nativebridge/internal/config"
	"github.com/patric-chuzhbe/nativebridge/internal/grpcserver"
	"github.com/patric-chuzhbe/nativebridge/internal/ipchecker"
	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/netfetch"
	"github.com/patric-chuzhbe/nativebridge/internal/ownership"
	"github.com/patric-chuzhbe/nativebridge/internal/router"
)

const shutdownTimeout = 10 * time.Second

// App holds the configuration, the bridge and the servers exposing it.
type App struct {
	cfg         *config.Config
	bridge      *bridge.Bridge
	httpHandler http.Handler
	grpcServer  *grpcserver.Server
}

// New loads the configuration, initializes logging and builds the bridge,
// the router and the gRPC server.
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.bridge = bridge.New(
		calc.New(calc.WithConcurrency(app.cfg.BatchConcurrency)),
		netfetch.New(app.cfg.NetworkGetURL, app.cfg.NetworkGetTimeout),
	)

	signingKey, err := base64.URLEncoding.DecodeString(app.cfg.OwnershipSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding ownership secret: %w", err)
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet, ipchecker.WithProxyHeaders(app.cfg.TrustProxyHeaders))
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(app.bridge, ownership.New(signingKey), checker)

	if app.cfg.GRPCAddr != "" {
		app.grpcServer = grpcserver.New()
	}

	return app, nil
}

// Handler exposes the HTTP routes, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run serves HTTP and gRPC until SIGINT or SIGTERM, then shuts both down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr, "GRPCAddr", a.cfg.GRPCAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		lis, err := grpcserver.Listen(a.cfg.GRPCAddr)
		if err != nil {
			_ = server.Close()
			return err
		}
		go func() {
			serverErrCh <- a.grpcServer.Serve(lis)
		}()
		a.grpcServer.MarkServing()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Draining connections...")
		if a.grpcServer != nil {
			a.grpcServer.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		if n := a.bridge.Outstanding(); n > 0 {
			logger.Log.Warnln("users still owned at shutdown", "outstanding", n)
		}

		return nil

	case err := <-serverErrCh:
		if a.grpcServer != nil {
			a.grpcServer.Stop()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Close flushes the logger.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
