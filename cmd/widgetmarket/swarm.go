package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/widget-market/internal/agent"
	"github.com/rickgao/widget-market/internal/model"
	"github.com/rickgao/widget-market/internal/pricestore"
	"github.com/rickgao/widget-market/internal/version"
)

func newSwarmCmd(a *app) *cobra.Command {
	var (
		agents int
		seed   bool
	)

	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Run many trading agents in one process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			logger := a.logger

			if cmd.Flags().Changed("agents") {
				cfg.Swarm.Agents = agents
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if seed {
				cfg.Swarm.Seed = true
			}

			logger.Info("starting swarm", append(version.Attrs(), "agents", cfg.Swarm.Agents)...)

			client := pricestore.NewClient(cfg.Redis)
			defer client.Close()

			if cfg.Swarm.Seed {
				good := model.Good(cfg.Market.Good)
				// Agents fall back to the default price, so a failed seed is not fatal.
				set, err := pricestore.New(client).Seed(ctx, good, cfg.Market.DefaultPrice)
				if err != nil {
					logger.Warn("seed market price", "good", good, "error", err)
				} else {
					logger.Info("seeded market price", "good", good, "price", cfg.Market.DefaultPrice, "written", set)
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < cfg.Swarm.Agents; i++ {
				g.Go(func() error {
					return runAgent(gctx, cfg, client, agent.NewRandomRand(), logger)
				})
			}

			err := g.Wait()
			logger.Info("swarm stopped")
			return err
		},
	}

	cmd.Flags().IntVarP(&agents, "agents", "n", 0, "number of agents (overrides swarm.agents)")
	cmd.Flags().BoolVar(&seed, "seed", false, "write the default price if the store is empty")
	return cmd
}
