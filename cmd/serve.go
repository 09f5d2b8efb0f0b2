package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/song-migrations/internal/server"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/desertthunder/song-migrations/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// newHandler builds the API router with its middleware stack.
func (r *Runner) newHandler() (http.Handler, error) {
	if r.dispatcher == nil || r.transfers == nil || r.spotify == nil || r.ytmusic == nil || r.source == nil {
		return nil, fmt.Errorf("%w: the API needs both sessions, the Spotify catalog, a store and a bus", shared.ErrServiceUnavailable)
	}

	router := server.NewMuxRouter()
	router.Use(server.Recovery(r.logger), server.Logging(r.logger), server.CORS(r.config.Server.AllowedOrigin))
	if secret := r.config.Server.JWTSecret; secret != "" {
		router.Use(server.JWTMiddleware([]byte(secret), "/health"))
	}
	router.Handler(server.NewAPI(r.spotify, r.ytmusic, r.source, r.dispatcher, r.transfers, r.logger))
	if r.users != nil {
		router.Handler(server.NewUsersAPI(r.users, r.logger))
	}
	return router, nil
}

// Serve runs the HTTP API until interrupted. With --worker and a consumable bus it
// also executes transfer jobs in the same process.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	handler, err := r.newHandler()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	httpServer := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("starting API server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		r.logger.Info("shutting down API server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if cmd.Bool("worker") {
		if r.consumer == nil || r.executor == nil {
			r.logger.Warn("bus driver cannot be consumed in process, jobs wait for an external worker", "driver", r.config.Bus.Driver)
		} else {
			g.Go(func() error { return r.consume(gctx) })
		}
	}

	return g.Wait()
}

// Worker consumes transfer jobs until interrupted.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	if r.consumer == nil {
		return fmt.Errorf("%w: bus driver %q cannot be consumed", shared.ErrServiceUnavailable, r.config.Bus.Driver)
	}
	if r.executor == nil {
		return fmt.Errorf("%w: the worker needs the YouTube Music session, catalog and a store", shared.ErrServiceUnavailable)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.consume(ctx)
}

func (r *Runner) consume(ctx context.Context) error {
	topic := r.config.Bus.Topic
	if topic == "" {
		topic = tasks.DefaultTopic
	}
	r.logger.Info("consuming transfer jobs", "driver", r.config.Bus.Driver, "topic", topic)
	if err := r.consumer.Consume(ctx, topic, r.executor.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
