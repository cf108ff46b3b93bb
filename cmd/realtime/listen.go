package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Verboo/Verboo-Realtime-go/sdk/client"
)

func newListenCmd() *cobra.Command {
	var (
		timeout time.Duration
		noResub bool
	)
	cmd := &cobra.Command{
		Use:   "listen CHANNEL...",
		Short: "Subscribe to channels and print received messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			c, err := session(ctx, timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for _, ch := range args {
				err := c.Subscribe(ch, !noResub, func(_ *client.Client, channel, message string) {
					fmt.Fprintf(out, "%s\t%s\t%s\n", time.Now().Format(time.RFC3339), channel, message)
				})
				if err != nil {
					return fmt.Errorf("subscribe %s: %w", ch, err)
				}
			}
			<-ctx.Done()
			_ = c.Disconnect()
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "connect-timeout", 15*time.Second, "time to wait for the session")
	cmd.Flags().BoolVar(&noResub, "no-resubscribe", false, "do not subscribe again after a reconnect")
	return cmd
}
