package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-trading/scout/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring API, and watch the feed when one is configured",
	RunE:  runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Score snapshots from the feed (websocket or kafka) and emit alerts",
	RunE:  runWatch,
}

var watchModels []string

func init() {
	rootCmd.AddCommand(serveCmd, watchCmd)
	watchCmd.Flags().StringSliceVar(&watchModels, "model", nil, "Model ids to evaluate (default: all stored models)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Str("addr", cfg.API.Addr).
		Str("default_model", cfg.Scoring.DefaultModelID).
		Bool("feed", feedEnabled()).
		Msg("scout: serving")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server().ListenAndServe(gctx, api.Config{
			Addr:         cfg.API.Addr,
			CORSOrigins:  cfg.API.CORSOrigins,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
		})
	})
	if feedEnabled() {
		g.Go(func() error {
			return watch(gctx, a, nil)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Msg("scout: shutdown complete")
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !feedEnabled() {
		return errors.New("no snapshot source: set feed.url, or feed.source: kafka with bus.brokers")
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	err = watch(ctx, a, watchModels)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func feedEnabled() bool {
	return cfg.Feed.Source == "kafka" || cfg.Feed.URL != ""
}

func watch(ctx context.Context, a *app, ids []string) error {
	models, err := a.selectModels(ctx, ids)
	if err != nil {
		return err
	}
	in, stop, err := a.snapshots(ctx)
	if err != nil {
		return err
	}
	defer stop()

	go a.feedQuality.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case qa := <-a.feedQuality.Alerts():
				log.Warn().
					Str("level", qa.Level).
					Str("source", qa.Source).
					Str("chain", qa.Chain).
					Str("detail", qa.Message).
					Msg("scout: feed quality alert")
			}
		}
	}()
	in = a.feedQuality.Tap(ctx, a.cfg.Feed.Source, in)

	job := a.job()
	err = job.Watch(ctx, in, models)
	log.Info().
		Interface("job", job.Stats()).
		Interface("feeds", a.feedQuality.Snapshot()).
		Msg("scout: watch stopped")
	return err
}
