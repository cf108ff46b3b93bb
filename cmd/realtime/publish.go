package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "publish CHANNEL [MESSAGE]",
		Short: "Publish a message, read from stdin when MESSAGE is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := ""
			if len(args) == 2 {
				msg = args[1]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read message: %w", err)
				}
				msg = strings.TrimRight(string(raw), "\r\n")
			}

			ctx, cancel := signalContext()
			defer cancel()
			c, err := session(ctx, timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(args[0], msg); err != nil {
				return err
			}
			// parts are queued; give the write pump a moment before closing
			time.Sleep(200 * time.Millisecond)
			return c.Disconnect()
		},
	}
	cmd.Flags().DurationVar(&timeout, "connect-timeout", 15*time.Second, "time to wait for the session")
	return cmd
}
