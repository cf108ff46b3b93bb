package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
	"github.com/Verboo/Verboo-Realtime-go/pkg/balancer"
	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
)

func newDiscoverCmd() *cobra.Command {
	var (
		timeout  time.Duration
		useHTTP3 bool
		insecure bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Ask the balancer for a broker server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster := config.GetString("realtime.cluster_url")
			if cluster == "" {
				return fmt.Errorf("missing --cluster-url")
			}
			opts := []balancer.Option{balancer.WithTimeout(timeout), balancer.WithLogger(logger.S())}
			if useHTTP3 {
				opts = append(opts, balancer.WithHTTP3(insecure))
			}
			ctx, cancel := signalContext()
			defer cancel()
			server, err := balancer.New(opts...).Resolve(ctx, cluster, config.GetString("realtime.app_key"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), server)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", balancer.DefaultTimeout, "lookup timeout")
	cmd.Flags().BoolVar(&useHTTP3, "http3", false, "query the balancer over HTTP/3")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS verification (DEV ONLY)")
	return cmd
}
