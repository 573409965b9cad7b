package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"

	"github.com/tauronsensor/tauronsensor/pkg/coordinator"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/mqtt"
	"github.com/tauronsensor/tauronsensor/pkg/sensor"
	"github.com/tauronsensor/tauronsensor/pkg/server"
	"github.com/tauronsensor/tauronsensor/pkg/storage"
	"github.com/tauronsensor/tauronsensor/pkg/tauron"
)

func main() {
	// init packages
	client := tauron.Configured()
	s := storage.Configured()
	svc := sensor.NewService(client)
	coord := coordinator.Configured(svc, s, client.Username)
	broker := mqtt.Configured()

	// init server
	srv := server.Configured(coord, func(ctx context.Context, username, password string) (string, error) {
		return sensor.ValidateCredentials(ctx, client.BaseURL(), username, password, client.Timeout())
	})

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(log.Ctx(context.Background()))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	// check the credentials up front so a typo shows in the logs right away,
	// polling still starts either way and retries the login
	if !svc.Login(ctx) {
		log.Ctx(ctx).WarnContext(ctx, "initial tauron login failed", slog.String("username", client.Username()))
	}

	if broker.Enabled() {
		if err := broker.Start(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to start mqtt broker", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := broker.Close(); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to close mqtt broker", "error", err)
			}
		}()
		coord.AddPublisher(broker)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		// Run will block until context is canceled or error happens
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
