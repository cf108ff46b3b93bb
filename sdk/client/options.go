package client

import (
	"context"
	"crypto/tls"
	"time"

	"go.uber.org/zap"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
	"github.com/Verboo/Verboo-Realtime-go/sdk/transport"
)

// Discovery resolves a cluster URL to one broker server URL.
type Discovery interface {
	Resolve(ctx context.Context, clusterURL, appKey string) (string, error)
}

// AsyncDiscovery is a Discovery that can report through a callback. The
// client prefers it when available.
type AsyncDiscovery interface {
	Discovery
	ResolveAsync(ctx context.Context, clusterURL, appKey string, done func(server string, err error))
}

// Option configures the client.
type Option func(*Options)

// Options contains configuration options for the realtime client.
type Options struct {
	URL                    string             // Direct broker URL (http or https)
	ClusterURL             string             // Balancer URL; takes precedence over URL
	ConnectionMetadata     string             // Sent with validate, at most 256 chars
	AnnouncementSubChannel string             // Sub channel for broker announcements
	SessionID              string             // Sent with validate (usually empty)
	ConnectionTimeout      time.Duration      // Wait between reconnect attempts (default 5s)
	HeartbeatActive        bool               // Send client heartbeats
	HeartbeatTime          int                // Heartbeat interval in seconds, 10..60
	HeartbeatFails         int                // Missed heartbeats tolerated by the broker, 1..6
	SilenceTimeout         time.Duration      // Inbound silence that forces a reconnect (default 30s)
	TLSFallback            bool               // Switch a plain cluster URL to TLS on reconnect
	Mode                   string             // Transport mode: "framed" or "ws"
	Insecure               bool               // Skip TLS verification if true
	TlsCfg                 *tls.Config        // TLS configuration for client (optional)
	MaxFrameSize           int64              // Inbound frame limit, 0 uses the config default
	DiscoveryTimeout       time.Duration      // Balancer read timeout (default 15s)
	Discovery              Discovery          // Custom resolver, defaults to pkg/balancer
	MultipartTTL           time.Duration      // Lifetime of incomplete multi-part buffers
	Presence               PresenceService    // Presence REST collaborator (optional)
	Logger                 *zap.SugaredLogger // Custom logger for client events
	Debug                  bool               // Enable debug logging (default off)
}

// WithURL connects directly to a broker, without discovery.
func WithURL(url string) Option {
	return func(o *Options) { o.URL = url }
}

// WithClusterURL resolves the broker through a balancer.
func WithClusterURL(url string) Option {
	return func(o *Options) { o.ClusterURL = url }
}

func WithConnectionMetadata(metadata string) Option {
	return func(o *Options) { o.ConnectionMetadata = metadata }
}

func WithAnnouncementSubChannel(channel string) Option {
	return func(o *Options) { o.AnnouncementSubChannel = channel }
}

func WithSessionID(id string) Option {
	return func(o *Options) { o.SessionID = id }
}

// WithConnectionTimeout sets the wait between reconnect attempts.
func WithConnectionTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectionTimeout = d }
}

// WithHeartbeat enables client heartbeats every seconds, telling the broker
// to tolerate fails missed beats.
func WithHeartbeat(seconds, fails int) Option {
	return func(o *Options) {
		o.HeartbeatActive = true
		o.HeartbeatTime = seconds
		o.HeartbeatFails = fails
	}
}

// WithSilenceTimeout sets how long the connection may stay silent before it
// is dropped and reconnected.
func WithSilenceTimeout(d time.Duration) Option {
	return func(o *Options) { o.SilenceTimeout = d }
}

func WithTLSFallback(enabled bool) Option {
	return func(o *Options) { o.TLSFallback = enabled }
}

// WithTransportType specifies which transport to use.
func WithTransportType(mode string) Option {
	return func(o *Options) { o.Mode = mode }
}

// WithInsecure skips TLS verification.
func WithInsecure() Option {
	return func(o *Options) { o.Insecure = true }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TlsCfg = cfg }
}

func WithMaxFrameSize(n int64) Option {
	return func(o *Options) { o.MaxFrameSize = n }
}

func WithDiscovery(d Discovery) Option {
	return func(o *Options) { o.Discovery = d }
}

func WithDiscoveryTimeout(d time.Duration) Option {
	return func(o *Options) { o.DiscoveryTimeout = d }
}

func WithMultipartTTL(d time.Duration) Option {
	return func(o *Options) { o.MultipartTTL = d }
}

func WithPresenceService(p PresenceService) Option {
	return func(o *Options) { o.Presence = p }
}

// WithLogger sets a custom logger (supports zap.SugaredLogger).
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithDebug enables debug logging (default off).
func WithDebug(debug bool) Option {
	return func(o *Options) { o.Debug = debug }
}

// OptionsFromConfig translates the keys loaded by internal/config into
// options. Unset keys keep the client defaults.
func OptionsFromConfig() []Option {
	var opts []Option
	if u := config.GetString("realtime.cluster_url"); u != "" {
		opts = append(opts, WithClusterURL(u))
	} else if u := config.GetString("realtime.url"); u != "" {
		opts = append(opts, WithURL(u))
	}
	if m := config.GetString("realtime.connection_metadata"); m != "" {
		opts = append(opts, WithConnectionMetadata(m))
	}
	if s := config.GetString("realtime.announcement_subchannel"); s != "" {
		opts = append(opts, WithAnnouncementSubChannel(s))
	}
	if config.GetBool("realtime.heartbeat.active") {
		opts = append(opts, WithHeartbeat(config.GetInt("realtime.heartbeat.time"), config.GetInt("realtime.heartbeat.fails")))
	}
	if mode := config.GetString("realtime.transport"); mode != "" {
		opts = append(opts, WithTransportType(mode))
	}
	if config.GetBool("realtime.insecure") {
		opts = append(opts, WithInsecure())
	}
	opts = append(opts,
		WithConnectionTimeout(config.GetDuration("realtime.connection_timeout", defaultConnectionTimeout)),
		WithDiscoveryTimeout(config.GetDuration("realtime.discovery.timeout", 0)),
		WithMultipartTTL(config.GetDuration("realtime.multipart.ttl", defaultMultipartTTL)),
	)
	return opts
}

const defaultConnectionTimeout = 5 * time.Second

// newOptions creates a default Options structure with defaults.
func newOptions(opts []Option) *Options {
	opt := &Options{
		Mode:              transport.ModeFramed,
		ConnectionTimeout: defaultConnectionTimeout,
		HeartbeatTime:     defaultHeartbeatTime,
		HeartbeatFails:    defaultHeartbeatFails,
		SilenceTimeout:    defaultSilenceTimeout,
		TLSFallback:       true,
		MultipartTTL:      defaultMultipartTTL,
	}

	for _, o := range opts {
		o(opt)
	}

	if opt.ConnectionTimeout <= 0 {
		opt.ConnectionTimeout = defaultConnectionTimeout
	}
	if opt.SilenceTimeout <= 0 {
		opt.SilenceTimeout = defaultSilenceTimeout
	}

	if opt.Logger == nil {
		opt.Logger = logger.S()
		if opt.Debug {
			l, err := zap.NewDevelopment()
			if err == nil {
				opt.Logger = l.Sugar()
			}
		}
	}

	return opt
}
