// Command realtime is a small command line client for realtime brokers. It
// resolves servers through a balancer, listens on channels and publishes
// messages, with settings from flags, REALTIME_* variables or a config file.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
	"github.com/Verboo/Verboo-Realtime-go/pkg/metrics"
	"github.com/Verboo/Verboo-Realtime-go/sdk/client"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger.Sync()
}

type globalFlags struct {
	configFile  string
	url         string
	clusterURL  string
	appKey      string
	token       string
	transport   string
	debug       bool
	metricsAddr string
}

func newRoot() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "realtime",
		Short:         "realtime broker command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "config file (yaml/toml/json)")
	pf.StringVar(&g.url, "url", "", "broker server URL (http or https)")
	pf.StringVar(&g.clusterURL, "cluster-url", "", "balancer URL; takes precedence over --url")
	pf.StringVar(&g.appKey, "app-key", "", "application key")
	pf.StringVar(&g.token, "token", "", "authentication token")
	pf.StringVar(&g.transport, "transport", "", "transport mode: framed, ws")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (host:port)")

	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newListenCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// load initializes config and logging, then lets explicit flags override
// the environment and the config file.
func (g *globalFlags) load(cmd *cobra.Command) error {
	if err := config.Init("REALTIME", g.configFile); err != nil {
		return err
	}
	flags := cmd.Flags()
	overrides := map[string]string{
		"url":         "realtime.url",
		"cluster-url": "realtime.cluster_url",
		"app-key":     "realtime.app_key",
		"token":       "realtime.auth_token",
		"transport":   "realtime.transport",
	}
	for flag, key := range overrides {
		if flags.Changed(flag) {
			v, _ := flags.GetString(flag)
			config.Set(key, v)
		}
	}
	logger.Init(logger.New(g.debug))

	if g.metricsAddr != "" {
		metrics.Register()
		go serveMetrics(g.metricsAddr, logger.S())
	}
	return nil
}

func serveMetrics(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Infow("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorw("metrics server stopped", "err", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func credentials() (string, string, error) {
	appKey, token := config.GetString("realtime.app_key"), config.GetString("realtime.auth_token")
	if appKey == "" || token == "" {
		return "", "", errors.New("missing --app-key or --token")
	}
	return appKey, token, nil
}

// session builds a client from config and connects it, returning once the
// broker validated the session.
func session(ctx context.Context, timeout time.Duration) (*client.Client, error) {
	appKey, token, err := credentials()
	if err != nil {
		return nil, err
	}
	c, err := client.NewClient(append(client.OptionsFromConfig(), client.WithLogger(logger.S()))...)
	if err != nil {
		return nil, err
	}

	connected := make(chan struct{}, 1)
	failed := make(chan error, 1)
	c.OnConnected(func(*client.Client) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	c.OnReconnected(func(*client.Client) { logger.S().Infow("reconnected") })
	c.OnDisconnected(func(*client.Client) { logger.S().Infow("disconnected") })
	c.OnException(func(_ *client.Client, err error) {
		logger.S().Warnw("realtime exception", "err", err)
		select {
		case failed <- err:
		default:
		}
	})

	if err := c.Connect(appKey, token); err != nil {
		_ = c.Close()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-connected:
			return c, nil
		case err := <-failed:
			logger.S().Debugw("exception while connecting", "err", err)
		case <-timer.C:
			_ = c.Close()
			return nil, fmt.Errorf("not connected after %s", timeout)
		case <-ctx.Done():
			_ = c.Close()
			return nil, ctx.Err()
		}
	}
}
