package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rickgao/widget-market/internal/agent"
	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/marketfeed"
	"github.com/rickgao/widget-market/internal/pricestore"
	"github.com/rickgao/widget-market/internal/version"
)

func newAgentCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a single trading agent until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "" {
				a.cfg.Agent.Mode = mode
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			a.logger.Info("starting agent", version.Attrs()...)

			client := pricestore.NewClient(a.cfg.Redis)
			defer client.Close()

			return runAgent(cmd.Context(), a.cfg, client, agent.NewRandomRand(), a.logger)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "force the trading mode: random, rules or noise")
	return cmd
}

// runAgent runs one agent on client until ctx is cancelled. Redis being
// unreachable, at start or later, is retried by the agent rather than
// returned.
func runAgent(ctx context.Context, cfg *config.Config, client *redis.Client, rng agent.Rand, logger *slog.Logger) error {
	ac, err := agent.NewConfig(cfg, rng)
	if err != nil {
		return err
	}

	subscribe := func(ctx context.Context) (agent.EventSource, error) {
		sub, err := marketfeed.Subscribe(ctx, client, cfg.Market.Topic, cfg.Market.ChannelSize)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}

	ag := agent.NewSubscribed(
		ac,
		pricestore.New(client),
		marketfeed.NewPublisher(client, cfg.Market.Topic),
		subscribe,
		rng,
		logger,
	)
	return ag.Run(ctx)
}
