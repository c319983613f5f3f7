package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/nudge"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	if err := run(lg.Sugar()); err != nil {
		lg.Sugar().Errorw("service stopped", "err", err)
		lg.Sync()
		os.Exit(1)
	}
}

func run(sugar *zap.SugaredLogger) error {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sugar.Infow("starting service-chat", "env", cfg.AppEnv, "addr", cfg.HTTPAddr)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := a.Handler(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Nudge.SchedulerEnabled {
		sched := nudge.NewScheduler(a.NudgeJob(), cfg.Nudge.Interval, sugar)
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
		sugar.Infow("nudge scheduler running", "interval", cfg.Nudge.Interval)
	}
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down")

		// give a short grace period for in-flight requests
		doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(doneCtx); err != nil {
			sugar.Warnw("http server shutdown failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	sugar.Info("goodbye")
	return nil
}
