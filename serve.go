package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/debemdeboas/postkey/internal/config"
	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/dispatch"
	"github.com/debemdeboas/postkey/internal/metrics"
	"github.com/debemdeboas/postkey/internal/transport/telegram"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireToken(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.templates.PurgeOlderThan(ctx, cfg.Templates.Retention); err != nil {
		// A failed sweep is retried on the next start.
		mainLogger.Error().Err(err).Msg("Retention sweep failed")
	}

	grammar := cfg.Buttons.Grammar()
	ctrl := controller.New(st.templates, st.saved,
		controller.WithGrammar(grammar),
		controller.WithTitleLength(cfg.Templates.TitleLength),
		controller.WithListLimit(cfg.Templates.ListLimit),
		controller.WithRecentLimit(cfg.Templates.InlineListLimit),
	)

	bot, err := telegram.NewBot(cfg.Bot.Token)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Addr)
		})
	}

	dispatcher := dispatch.New(ctx, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize)
	channel := telegram.New(bot, ctrl, dispatcher,
		telegram.WithGrammar(grammar),
		telegram.WithAllowFrom(cfg.Bot.AllowFrom),
		telegram.WithRateLimit(cfg.Bot.EventsPerSecond, cfg.Bot.Burst),
		telegram.WithPollTimeout(cfg.Bot.PollTimeout),
	)

	g.Go(func() error {
		defer dispatcher.Close()
		return channel.Run(ctx)
	})

	mainLogger.Info().Str("storage", cfg.Storage.Path).Int("workers", cfg.Dispatch.Workers).Msg("Bot started")

	err = g.Wait()
	mainLogger.Info().Msg("Bot stopped")
	return err
}
