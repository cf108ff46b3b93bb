// Package balancer resolves a cluster entry point to a concrete broker server
// URL. The balancer answers a GET with a one-line script assignment:
//
//	var SOCKET_SERVER = "https://broker-3.example.net:443";
package balancer

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"

	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
	"github.com/Verboo/Verboo-Realtime-go/pkg/metrics"
)

const (
	UserAgent      = "ortc-server-side-api"
	DefaultTimeout = 15 * time.Second
)

var serverPattern = regexp.MustCompile(`^var SOCKET_SERVER = "(http.*)";$`)

// InvalidResponseError is returned when the balancer answer is not a server
// assignment. Body holds the raw response for diagnostics.
type InvalidResponseError struct {
	StatusCode int
	Body       string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid balancer response (status %d): %q", e.StatusCode, e.Body)
}

// Resolver performs balancer lookups.
type Resolver struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	log       *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithTimeout sets the read timeout of one lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTP3 sends lookups over HTTP/3 (QUIC). Only https balancers can be
// reached this way.
func WithHTTP3(insecure bool) Option {
	return func(r *Resolver) {
		r.client = &http.Client{
			Transport: &http3.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
			},
		}
	}
}

// WithLogger sets the logger used for lookup results.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// New builds a Resolver with a plain HTTP client and the default timeout.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client:    &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: UserAgent,
		log:       logger.S(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve asks the balancer at clusterURL for a server. appKey, when set, is
// passed as the appkey query parameter.
func (r *Resolver) Resolve(ctx context.Context, clusterURL, appKey string) (string, error) {
	target := RequestURL(clusterURL, appKey)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		metrics.DiscoveryRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("build balancer request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.DiscoveryRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("balancer request %s: %w", target, err)
	}
	defer resp.Body.Close()

	// lines are concatenated without separators
	var body strings.Builder
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		body.WriteString(sc.Text())
	}
	if err := sc.Err(); err != nil {
		metrics.DiscoveryRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read balancer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.DiscoveryRequests.WithLabelValues("invalid").Inc()
		return "", &InvalidResponseError{StatusCode: resp.StatusCode, Body: body.String()}
	}
	m := serverPattern.FindStringSubmatch(body.String())
	if m == nil || strings.TrimSpace(m[1]) == "" {
		metrics.DiscoveryRequests.WithLabelValues("invalid").Inc()
		return "", &InvalidResponseError{StatusCode: resp.StatusCode, Body: body.String()}
	}

	metrics.DiscoveryRequests.WithLabelValues("ok").Inc()
	r.log.Debugw("balancer resolved server", "cluster", clusterURL, "server", m[1])
	return m[1], nil
}

// ResolveAsync runs Resolve in the background and reports through done.
func (r *Resolver) ResolveAsync(ctx context.Context, clusterURL, appKey string, done func(server string, err error)) {
	go func() {
		server, err := r.Resolve(ctx, clusterURL, appKey)
		done(server, err)
	}()
}

// RequestURL builds the lookup URL, defaulting the scheme to http.
func RequestURL(clusterURL, appKey string) string {
	u := strings.TrimSpace(clusterURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	if strings.TrimSpace(appKey) != "" {
		u += "?appkey=" + appKey
	}
	return u
}

// SecureClusterURL upgrades a plain cluster URL to its TLS variant, used for
// the fallback attempt on reconnect. Already secure URLs are returned as is.
func SecureClusterURL(clusterURL string) string {
	if !strings.HasPrefix(clusterURL, "http://") {
		return clusterURL
	}
	u := "https://" + strings.TrimPrefix(clusterURL, "http://")
	return strings.Replace(u, "/server/", "/server/ssl/", 1)
}
