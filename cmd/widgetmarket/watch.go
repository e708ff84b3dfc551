package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/widget-market/internal/livefeed"
)

func newWatchCmd(a *app) *cobra.Command {
	cfg := livefeed.DefaultClientConfig()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print transactions streamed by a running recorder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			c, err := livefeed.Dial(ctx, cfg, a.logger)
			if err != nil {
				return fmt.Errorf("dial %s: %w", cfg.URL, err)
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-c.Messages():
					if !ok {
						select {
						case err := <-c.Errors():
							return err
						default:
							return nil
						}
					}
					fmt.Fprintf(out, "%d %s %s %.4f\n", msg.ReceivedAt, msg.Good, msg.TransactionType, msg.Price)
				}
			}
		},
	}

	cmd.Flags().StringVar(&cfg.URL, "url", cfg.URL, "recorder live feed URL")
	return cmd
}
