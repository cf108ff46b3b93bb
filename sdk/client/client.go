package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Verboo/Verboo-Realtime-go/pkg/balancer"
	"github.com/Verboo/Verboo-Realtime-go/pkg/dedup"
	"github.com/Verboo/Verboo-Realtime-go/pkg/metrics"
	"github.com/Verboo/Verboo-Realtime-go/pkg/protocol"
	"github.com/Verboo/Verboo-Realtime-go/sdk/transport"
)

// Client is one realtime session. It discovers a broker, keeps the
// connection validated and reconnects after abnormal drops, and routes
// received messages to the subscribed channel callbacks.
//
// All session state is guarded by mu. Callbacks are never invoked while mu
// is held, so they may call back into the client.
type Client struct {
	opts      *Options
	log       *zap.SugaredLogger
	discovery Discovery

	mu sync.Mutex

	url          string
	clusterURL   string
	isCluster    bool
	appKey       string
	token        string
	metadata     string
	announcement string
	connTimeout  time.Duration
	hbActive     bool
	hbTime       int
	hbFails      int
	regID        string

	connected     bool
	connecting    bool
	disconnecting bool
	reconnecting  bool
	closed        bool

	permissions       map[string]string
	subs              map[string]*subscription
	dedup             *dedup.Ring
	parts             *multipartBuffer
	sessionExpiration int

	tr        transport.Transport
	lastFrame time.Time
	beat      *ticker // heartbeat sender
	watch     *ticker // silence monitor

	runCtx    context.Context
	runCancel context.CancelFunc
	loop      context.Context // context of the running reconnect loop
	retry     bool

	onConnected    func(*Client)
	onDisconnected func(*Client)
	onReconnecting func(*Client)
	onReconnected  func(*Client)
	onSubscribed   func(*Client, string)
	onUnsubscribed func(*Client, string)
	onException    func(*Client, error)
}

// NewClient creates a new realtime client instance. No I/O happens until
// Connect.
func NewClient(opts ...Option) (*Client, error) {
	options := newOptions(opts)

	if options.HeartbeatActive {
		if err := validateHeartbeatTime(options.HeartbeatTime); err != nil {
			return nil, err
		}
		if err := validateHeartbeatFails(options.HeartbeatFails); err != nil {
			return nil, err
		}
	}

	c := &Client{
		opts:         options,
		log:          options.Logger,
		discovery:    options.Discovery,
		metadata:     options.ConnectionMetadata,
		announcement: options.AnnouncementSubChannel,
		connTimeout:  options.ConnectionTimeout,
		hbActive:     options.HeartbeatActive,
		hbTime:       options.HeartbeatTime,
		hbFails:      options.HeartbeatFails,
		permissions:  map[string]string{},
		subs:         map[string]*subscription{},
		dedup:        dedup.New(dedup.DefaultCapacity),
		parts:        newMultipartBuffer(defaultMultipartEntries, options.MultipartTTL),
	}
	if options.ClusterURL != "" {
		c.clusterURL = treatURL(options.ClusterURL)
		c.isCluster = true
	} else {
		c.url = treatURL(options.URL)
	}
	if c.discovery == nil {
		bopts := []balancer.Option{balancer.WithLogger(c.log)}
		if options.DiscoveryTimeout > 0 {
			bopts = append(bopts, balancer.WithTimeout(options.DiscoveryTimeout))
		}
		c.discovery = balancer.New(bopts...)
	}
	return c, nil
}

var _ AsyncDiscovery = (*balancer.Resolver)(nil)

// events collects callbacks while mu is held, to run after it is released.
type events []func()

func (e *events) add(fn func()) { *e = append(*e, fn) }

func (e events) run() {
	for _, fn := range e {
		fn()
	}
}

func (c *Client) exceptionLocked(ev *events, err error) {
	if cb := c.onException; cb != nil {
		ev.add(func() { cb(c, err) })
	}
}

func (c *Client) emitException(err error) {
	c.mu.Lock()
	cb := c.onException
	c.mu.Unlock()
	if cb != nil {
		cb(c, err)
	}
}

// fail delivers err to the exception callback and returns it.
func (c *Client) fail(err error) error {
	c.emitException(err)
	return err
}

// Connect validates the credentials and settings, then connects in the
// background. Progress is reported through the event callbacks.
func (c *Client) Connect(appKey, token string) error {
	c.mu.Lock()
	if err := c.checkConnectLocked(appKey, token); err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	c.appKey, c.token = appKey, token
	c.connecting = true
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	ctx := c.runCtx
	target, cluster := c.url, c.isCluster
	if cluster {
		target = c.clusterURL
	}
	c.mu.Unlock()

	c.log.Infow("realtime connecting", "target", target, "cluster", cluster)
	go func() {
		if err := c.attempt(ctx); err != nil {
			c.startReconnect(ctx)
		}
	}()
	return nil
}

func (c *Client) checkConnectLocked(appKey, token string) error {
	switch {
	case c.closed:
		return errClosed
	case c.connected:
		return ErrAlreadyConnected
	case isNullOrEmpty(c.url) && isNullOrEmpty(c.clusterURL):
		return emptyField("URL")
	case isNullOrEmpty(appKey):
		return emptyField("Application Key")
	case isNullOrEmpty(token):
		return emptyField("Authentication Token")
	case !c.isCluster && !isValidURL(c.url):
		return invalidCharacters("URL")
	case c.isCluster && !isValidURL(c.clusterURL):
		return invalidCharacters("Cluster URL")
	case !isValidInput(appKey):
		return invalidCharacters("Application Key")
	case !isValidInput(token):
		return invalidCharacters("Authentication Token")
	case !isNullOrEmpty(c.announcement) && !isValidInput(c.announcement):
		return invalidCharacters("Announcement Subchannel")
	case len(c.metadata) > maxConnectionMetadataSize:
		return maxLength("Connection metadata", maxConnectionMetadataSize)
	case c.connecting || c.reconnecting:
		return errConnecting
	}
	return nil
}

// resolve asks discovery for a server. Resolvers with a callback form are
// awaited against ctx so Disconnect does not wait on a slow balancer.
func (c *Client) resolve(ctx context.Context, clusterURL, appKey string) (string, error) {
	async, ok := c.discovery.(AsyncDiscovery)
	if !ok {
		return c.discovery.Resolve(ctx, clusterURL, appKey)
	}
	type result struct {
		server string
		err    error
	}
	ch := make(chan result, 1)
	async.ResolveAsync(ctx, clusterURL, appKey, func(server string, err error) {
		ch <- result{server, err}
	})
	select {
	case r := <-ch:
		return r.server, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// attempt resolves the broker and opens one transport. The session
// continues from the transport callbacks.
func (c *Client) attempt(ctx context.Context) error {
	c.mu.Lock()
	if c.reconnecting && c.opts.TLSFallback && c.isCluster {
		if secure := balancer.SecureClusterURL(c.clusterURL); secure != c.clusterURL {
			c.log.Infow("realtime switching cluster to tls", "cluster", secure)
			c.clusterURL = secure
		}
	}
	isCluster, server, appKey := c.isCluster, c.url, c.appKey
	if isCluster {
		server = c.clusterURL
	}
	c.mu.Unlock()

	if isCluster {
		resolved, err := c.resolve(ctx, server, appKey)
		if err != nil {
			return c.attemptFailed(ctx, err)
		}
		c.log.Debugw("realtime server resolved", "server", resolved)
		server = resolved
	}

	wsURL, err := connectionURL(server)
	if err != nil {
		return c.attemptFailed(ctx, err)
	}
	tr, err := transport.CreateTransport(transport.Options{
		URL:          wsURL,
		Insecure:     c.opts.Insecure,
		Mode:         c.opts.Mode,
		TlsCfg:       c.opts.TlsCfg,
		MaxFrameSize: c.opts.MaxFrameSize,
		Logger:       c.log,
	})
	if err != nil {
		return c.attemptFailed(ctx, err)
	}
	tr.OnMessage(func(text string) { c.handleFrame(tr, text) })
	tr.OnClose(func(forced bool) { c.handleClose(tr, forced) })
	tr.OnError(func(err error) { c.handleTransportError(tr, err) })

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return ctx.Err()
	}
	c.tr = tr
	c.lastFrame = time.Now()
	c.mu.Unlock()

	if err := tr.Connect(ctx); err != nil {
		c.mu.Lock()
		if c.tr == tr {
			c.tr = nil
		}
		c.mu.Unlock()
		return c.attemptFailed(ctx, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr != tr {
		// disconnected while the handshake was running
		tr.Close(false)
		return nil
	}
	timeout := c.opts.SilenceTimeout
	c.watch.Stop()
	c.watch = startTicker(silenceCheckInterval(timeout), func() { c.checkSilence(tr, timeout) })
	return nil
}

func (c *Client) attemptFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	c.reconnecting = true
	c.mu.Unlock()

	c.log.Warnw("realtime connect failed", "err", err)
	c.emitException(connectError(err))
	return err
}

// startReconnect runs the reconnect loop for ctx unless it already runs, in
// which case the loop is told to retry once more.
func (c *Client) startReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reconnecting || c.closed || ctx.Err() != nil {
		return
	}
	if c.loop == ctx {
		c.retry = true
		return
	}
	c.loop = ctx
	c.retry = false
	go c.reconnectLoop(ctx)
}

func (c *Client) reconnectLoop(ctx context.Context) {
	exit := func() {
		c.mu.Lock()
		if c.loop == ctx {
			c.loop = nil
			c.retry = false
		}
		c.mu.Unlock()
	}

	for {
		c.mu.Lock()
		wait := c.connTimeout
		c.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			exit()
			return
		case <-timer.C:
		}

		c.mu.Lock()
		if !c.reconnecting || c.closed || c.connected {
			c.mu.Unlock()
			exit()
			return
		}
		c.retry = false
		cb := c.onReconnecting
		c.mu.Unlock()

		metrics.Reconnects.Inc()
		c.log.Infow("realtime reconnecting", "wait", wait)
		if cb != nil {
			cb(c)
		}

		err := c.attempt(ctx)

		c.mu.Lock()
		again := c.retry || (err != nil && c.reconnecting && !c.closed)
		if !again && c.loop == ctx {
			c.loop = nil
		}
		c.retry = false
		c.mu.Unlock()
		if !again {
			return
		}
	}
}

func (c *Client) checkSilence(tr transport.Transport, timeout time.Duration) {
	c.mu.Lock()
	if c.tr != tr {
		c.mu.Unlock()
		return
	}
	idle := time.Since(c.lastFrame)
	c.mu.Unlock()
	if idle > timeout {
		c.log.Warnw("realtime heartbeat timeout", "idle", idle)
		tr.Close(true)
	}
}

func (c *Client) startHeartbeatLocked(tr transport.Transport) {
	c.beat.Stop()
	c.beat = nil
	if !c.hbActive {
		return
	}
	c.beat = startTicker(time.Duration(c.hbTime)*heartbeatUnit, func() {
		if err := tr.Send(protocol.Wrap(protocol.Heartbeat)); err != nil {
			c.log.Debugw("realtime heartbeat send failed", "err", err)
		}
	})
}

func (c *Client) stopTimersLocked() {
	c.beat.Stop()
	c.watch.Stop()
	c.beat, c.watch = nil, nil
}

// resetLocked returns the session to idle: flags cleared, registry and
// permissions emptied, background work stopped.
func (c *Client) resetLocked() {
	c.connected = false
	c.connecting = false
	c.reconnecting = false
	c.disconnecting = false
	c.permissions = map[string]string{}
	c.subs = map[string]*subscription{}
	c.parts.purge()
	c.stopTimersLocked()
	if c.runCancel != nil {
		c.runCancel()
	}
	metrics.Subscriptions.Set(0)
}

func (c *Client) handleFrame(tr transport.Transport, text string) {
	c.mu.Lock()
	if c.tr != tr {
		c.mu.Unlock()
		return
	}
	c.lastFrame = time.Now()
	c.mu.Unlock()

	switch text {
	case protocol.ControlOpen:
		c.sendValidate(tr)
		return
	case protocol.ControlHeartbeat:
		return
	}

	msg, err := protocol.Parse(text)
	if err != nil {
		c.log.Debugw("realtime frame decode failed", "err", err)
		c.emitException(err)
		return
	}

	switch msg.Operation {
	case protocol.OpValidated:
		c.handleValidated(tr, msg)
	case protocol.OpSubscribed:
		c.handleSubscribed(msg)
	case protocol.OpUnsubscribed:
		c.handleUnsubscribed(msg)
	case protocol.OpReceived:
		c.handleReceived(msg)
	case protocol.OpError:
		c.handleServerError(tr, msg)
	case protocol.OpClose:
		c.log.Infow("realtime broker closed the session")
		tr.Close(true)
	default:
		c.emitException(fmt.Errorf("%w: unknown operation: %s", protocol.ErrInvalidMessage, text))
	}
}

func (c *Client) sendValidate(tr transport.Transport) {
	c.mu.Lock()
	cmd := protocol.Validate(protocol.ValidateParams{
		AppKey:                 c.appKey,
		Token:                  c.token,
		AnnouncementSubChannel: c.announcement,
		SessionID:              c.opts.SessionID,
		Metadata:               c.metadata,
		HeartbeatActive:        c.hbActive,
		HeartbeatTime:          c.hbTime,
		HeartbeatFails:         c.hbFails,
	})
	c.mu.Unlock()
	if err := tr.Send(protocol.Wrap(cmd)); err != nil {
		c.emitException(fmt.Errorf("send validate: %w", err))
	}
}

func (c *Client) handleValidated(tr transport.Transport, msg *protocol.Message) {
	perms, err := msg.Permissions()
	if err != nil {
		c.emitException(err)
		perms = map[string]string{}
	}

	var ev events
	var resubscribe []string
	c.mu.Lock()
	if c.tr != tr {
		c.mu.Unlock()
		return
	}
	c.permissions = perms
	c.sessionExpiration = msg.SessionExpirationTime()
	c.connected = true
	c.disconnecting = false

	reconnected := c.reconnecting && !c.connecting
	if reconnected {
		c.reconnecting = false
		for ch, s := range c.subs {
			if !s.resubscribe {
				delete(c.subs, ch)
				continue
			}
			perm, err := resolvePermission(c.permissions, ch, false)
			if err != nil {
				delete(c.subs, ch)
				c.exceptionLocked(&ev, err)
				continue
			}
			s.subscribing, s.subscribed = true, false
			resubscribe = append(resubscribe, s.command(c.appKey, c.token, ch, perm, c.regID))
		}
		if cb := c.onReconnected; cb != nil {
			ev.add(func() { cb(c) })
		}
	} else {
		c.connecting = false
		c.reconnecting = false
		if cb := c.onConnected; cb != nil {
			ev.add(func() { cb(c) })
		}
	}
	c.startHeartbeatLocked(tr)
	metrics.Connects.Inc()
	metrics.Subscriptions.Set(float64(c.subscribedCountLocked()))
	c.mu.Unlock()

	c.log.Infow("realtime session validated", "reconnected", reconnected, "permissions", len(perms), "resubscribe", len(resubscribe))
	for _, cmd := range resubscribe {
		if err := tr.Send(protocol.Wrap(cmd)); err != nil {
			c.emitException(fmt.Errorf("resubscribe: %w", err))
		}
	}
	ev.run()
}

func (c *Client) subscribedCountLocked() int {
	n := 0
	for _, s := range c.subs {
		if s.subscribed {
			n++
		}
	}
	return n
}

func (c *Client) handleSubscribed(msg *protocol.Message) {
	ch, err := msg.ChannelName()
	if err != nil {
		c.emitException(err)
		return
	}
	c.mu.Lock()
	if s := c.subs[ch]; s != nil {
		s.subscribing, s.subscribed = false, true
	}
	metrics.Subscriptions.Set(float64(c.subscribedCountLocked()))
	cb := c.onSubscribed
	c.mu.Unlock()

	c.log.Debugw("realtime subscribed", "channel", ch)
	if cb != nil {
		cb(c, ch)
	}
}

func (c *Client) handleUnsubscribed(msg *protocol.Message) {
	ch, err := msg.ChannelName()
	if err != nil {
		c.emitException(err)
		return
	}
	c.mu.Lock()
	delete(c.subs, ch)
	metrics.Subscriptions.Set(float64(c.subscribedCountLocked()))
	cb := c.onUnsubscribed
	c.mu.Unlock()

	c.log.Debugw("realtime unsubscribed", "channel", ch)
	if cb != nil {
		cb(c, ch)
	}
}

// handleReceived runs a delivery through reassembly and the dedup ring
// before handing it to the channel callback.
func (c *Client) handleReceived(msg *protocol.Message) {
	c.mu.Lock()
	s := c.subs[msg.Channel]
	if s == nil {
		c.mu.Unlock()
		return
	}
	var text string
	if msg.Complete() {
		if msg.ID != "" && c.dedup.CheckAndRecord(msg.ID) {
			c.mu.Unlock()
			metrics.DuplicatesSuppressed.Inc()
			c.log.Debugw("realtime duplicate suppressed", "channel", msg.Channel, "id", msg.ID)
			return
		}
		text = msg.Text()
	} else {
		raw, done := c.parts.add(msg)
		if !done {
			c.mu.Unlock()
			return
		}
		if c.dedup.CheckAndRecord(msg.ID) {
			c.mu.Unlock()
			metrics.DuplicatesSuppressed.Inc()
			c.log.Debugw("realtime duplicate suppressed", "channel", msg.Channel, "id", msg.ID)
			return
		}
		text = protocol.Unescape(raw)
	}
	h := s.handler
	c.mu.Unlock()

	metrics.MessagesDispatched.Inc()
	h.invoke(c, MessageOptions{
		Channel:  msg.Channel,
		Message:  text,
		Filtered: msg.Filtered,
		SeqID:    msg.ID,
	})
}

func (c *Client) handleServerError(tr transport.Transport, msg *protocol.Message) {
	serr, err := msg.ServerError()
	if err != nil {
		c.emitException(err)
		return
	}

	var ev events
	var closing transport.Transport
	c.mu.Lock()
	switch serr.Operation {
	case protocol.ErrOpSubscribe, protocol.ErrOpSubscribeMaxSize, protocol.ErrOpUnsubscribeMaxSize:
		c.cancelSubscriptionLocked(serr.Channel)
	}
	if serr.Fatal() && c.tr == tr {
		// the close callback finishes the reset
		c.reconnecting = false
		c.disconnecting = true
		c.stopTimersLocked()
		closing = tr
	}
	c.exceptionLocked(&ev, serr)
	c.mu.Unlock()

	c.log.Warnw("realtime server error", "op", serr.Tag, "channel", serr.Channel, "err", serr.Message)
	ev.run()
	if closing != nil {
		closing.Close(false)
	}
}

// cancelSubscriptionLocked drops a pending subscription. Established ones
// are left alone.
func (c *Client) cancelSubscriptionLocked(channel string) {
	s := c.subs[channel]
	if s == nil {
		return
	}
	s.subscribing = false
	if !s.subscribed {
		delete(c.subs, channel)
	}
}

func (c *Client) handleClose(tr transport.Transport, forced bool) {
	var ev events
	c.mu.Lock()
	if c.tr != tr {
		c.mu.Unlock()
		return
	}
	c.tr = nil
	c.connected = false
	c.stopTimersLocked()
	c.permissions = map[string]string{}

	if c.disconnecting || c.closed || !forced {
		c.resetLocked()
		if cb := c.onDisconnected; cb != nil {
			ev.add(func() { cb(c) })
		}
		c.mu.Unlock()
		c.log.Infow("realtime disconnected")
		ev.run()
		return
	}

	if !c.reconnecting {
		c.reconnecting = true
		if cb := c.onDisconnected; cb != nil {
			ev.add(func() { cb(c) })
		}
	}
	ctx, wait := c.runCtx, c.connTimeout
	c.mu.Unlock()

	c.log.Warnw("realtime connection lost, reconnect scheduled", "wait", wait)
	ev.run()
	c.startReconnect(ctx)
}

func (c *Client) handleTransportError(tr transport.Transport, err error) {
	c.mu.Lock()
	stale := c.tr != tr
	c.mu.Unlock()
	if stale {
		return
	}
	c.log.Debugw("realtime transport error", "err", err)
	c.emitException(err)
}

// Disconnect closes the session gracefully. While reconnecting it stops the
// reconnect loop instead.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		if !c.reconnecting {
			c.mu.Unlock()
			return c.fail(ErrNotConnected)
		}
		tr := c.tr
		c.tr = nil
		c.resetLocked()
		c.mu.Unlock()
		c.log.Infow("realtime reconnect cancelled")
		if tr != nil {
			tr.Close(false)
		}
		return nil
	}
	c.stopTimersLocked()
	c.disconnecting = true
	c.connecting = false
	c.reconnecting = false
	tr := c.tr
	c.mu.Unlock()

	c.log.Infow("realtime disconnecting")
	if tr != nil {
		tr.Close(false)
	}
	return nil
}

// Send publishes message on channel, split into parts when it exceeds the
// part size. Parts are queued in order.
func (c *Client) Send(channel, message string) error {
	c.mu.Lock()
	var err error
	switch {
	case !c.connected:
		err = ErrNotConnected
	case isNullOrEmpty(channel):
		err = emptyField("Channel")
	case !isValidInput(channel):
		err = invalidCharacters("Channel")
	case isNullOrEmpty(message):
		err = emptyField("Message")
	case len(channel) > maxChannelSize:
		err = maxLength("Channel", maxChannelSize)
	}
	var perm string
	if err == nil {
		perm, err = resolvePermission(c.permissions, channel, true)
	}
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	tr, appKey, token := c.tr, c.appKey, c.token
	c.mu.Unlock()

	id := protocol.NewMessageID()
	for _, part := range protocol.Split(message, id) {
		if err := tr.Send(protocol.Wrap(protocol.Send(appKey, token, channel, perm, part))); err != nil {
			return c.fail(fmt.Errorf("send to %s: %w", channel, err))
		}
	}
	return nil
}

// Subscribe subscribes channel. With subscribeOnReconnected the channel is
// subscribed again after a reconnect.
func (c *Client) Subscribe(channel string, subscribeOnReconnected bool, onMessage OnMessage) error {
	return c.subscribe(channel, subscribeOnReconnected, handler{kind: handlerPlain, plain: onMessage}, false, false, "")
}

// SubscribeWithFilter subscribes channel with a broker-side filter.
func (c *Client) SubscribeWithFilter(channel string, subscribeOnReconnected bool, filter string, onMessage OnMessageWithFilter) error {
	return c.subscribe(channel, subscribeOnReconnected, handler{kind: handlerFilter, filter: onMessage}, false, true, filter)
}

// SubscribeWithOptions subscribes opts.Channel and delivers messages as a
// MessageOptions bundle.
func (c *Client) SubscribeWithOptions(opts SubscribeOptions, onMessage OnMessageWithOptions) error {
	return c.subscribe(opts.Channel, opts.SubscribeOnReconnected, handler{kind: handlerOptions, options: onMessage},
		false, opts.Filter != "", opts.Filter)
}

// SubscribeWithNotifications subscribes channel and registers the push
// registration id for it. See SetRegistrationID.
func (c *Client) SubscribeWithNotifications(channel string, subscribeOnReconnected bool, onMessage OnMessageWithPayload) error {
	return c.subscribe(channel, subscribeOnReconnected, handler{kind: handlerPayload, payload: onMessage}, true, false, "")
}

func (c *Client) subscribe(channel string, resubscribe bool, h handler, notifications, withFilter bool, filter string) error {
	c.mu.Lock()
	perm, err := c.checkSubscribeLocked(channel, notifications)
	if err == nil && !h.valid() {
		err = emptyField("OnMessage")
	}
	if err == nil && notifications && c.regID == "" {
		err = pushError("no push registration id set")
	}
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	s := &subscription{
		subscribing:   true,
		resubscribe:   resubscribe,
		notifications: notifications,
		withFilter:    withFilter,
		filter:        filter,
		handler:       h,
	}
	c.subs[channel] = s
	cmd := s.command(c.appKey, c.token, channel, perm, c.regID)
	tr := c.tr
	c.mu.Unlock()

	if err := tr.Send(protocol.Wrap(cmd)); err != nil {
		c.mu.Lock()
		if c.subs[channel] == s {
			delete(c.subs, channel)
		}
		c.mu.Unlock()
		return c.fail(fmt.Errorf("subscribe %s: %w", channel, err))
	}
	return nil
}

func (c *Client) checkSubscribeLocked(channel string, notifications bool) (string, error) {
	if !c.connected {
		return "", ErrNotConnected
	}
	if err := validateChannel(channel, notifications); err != nil {
		return "", err
	}
	if s := c.subs[channel]; s != nil {
		if s.subscribing {
			return "", alreadySubscribed(channel, true)
		}
		if s.subscribed {
			return "", alreadySubscribed(channel, false)
		}
	}
	if len(channel) > maxChannelSize {
		return "", maxLength("Channel", maxChannelSize)
	}
	return resolvePermission(c.permissions, channel, false)
}

// Unsubscribe stops receiving messages on channel.
func (c *Client) Unsubscribe(channel string) error {
	c.mu.Lock()
	s := c.subs[channel]
	var err error
	switch {
	case !c.connected:
		err = ErrNotConnected
	case isNullOrEmpty(channel):
		err = emptyField("Channel")
	case s == nil:
		err = notSubscribed(channel)
	case !isValidInput(channel):
		err = invalidCharacters("Channel")
	case !s.subscribed:
		err = notSubscribed(channel)
	case len(channel) > maxChannelSize:
		err = maxLength("Channel", maxChannelSize)
	}
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	s.resubscribe = false
	regID := ""
	if s.notifications {
		regID = c.regID
	}
	cmd := protocol.Unsubscribe(c.appKey, channel, regID)
	tr := c.tr
	c.mu.Unlock()

	if err := tr.Send(protocol.Wrap(cmd)); err != nil {
		return c.fail(fmt.Errorf("unsubscribe %s: %w", channel, err))
	}
	return nil
}

// IsSubscribed reports whether channel is subscribed on a connected session.
func (c *Client) IsSubscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.subs[channel]
	return c.connected && s != nil && s.subscribed
}

// Close tears the client down: background work stops and the transport is
// closed without reconnecting. A closed client cannot connect again.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tr := c.tr
	c.tr = nil
	c.resetLocked()
	c.mu.Unlock()

	if tr != nil {
		tr.Close(false)
	}
	c.log.Debugw("realtime client closed")
	return nil
}

// IsConnected reports whether the session is validated.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SessionExpirationTime returns the session lifetime in seconds granted by
// the last validated reply.
func (c *Client) SessionExpirationTime() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionExpiration
}

// Permissions returns a copy of the permission table of the session.
func (c *Client) Permissions() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.permissions))
	for k, v := range c.permissions {
		out[k] = v
	}
	return out
}

// SetURL sets a direct broker URL and turns discovery off.
func (c *Client) SetURL(url string) {
	c.mu.Lock()
	c.url = treatURL(url)
	c.isCluster = false
	c.mu.Unlock()
}

// SetClusterURL sets the balancer URL and turns discovery on.
func (c *Client) SetClusterURL(url string) {
	c.mu.Lock()
	c.clusterURL = treatURL(url)
	c.isCluster = true
	c.mu.Unlock()
}

func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Client) ClusterURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clusterURL
}

func (c *Client) SetConnectionMetadata(metadata string) {
	c.mu.Lock()
	c.metadata = metadata
	c.mu.Unlock()
}

func (c *Client) SetAnnouncementSubChannel(channel string) {
	c.mu.Lock()
	c.announcement = channel
	c.mu.Unlock()
}

// SetConnectionTimeout sets the wait between reconnect attempts.
func (c *Client) SetConnectionTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.connTimeout = d
	c.mu.Unlock()
}

// SetHeartbeatActive takes effect on the next validate.
func (c *Client) SetHeartbeatActive(active bool) {
	c.mu.Lock()
	c.hbActive = active
	c.mu.Unlock()
}

// SetHeartbeatTime sets the heartbeat interval in seconds (10..60).
func (c *Client) SetHeartbeatTime(seconds int) error {
	if err := validateHeartbeatTime(seconds); err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.hbTime = seconds
	c.mu.Unlock()
	return nil
}

// SetHeartbeatFails sets the missed heartbeats tolerated by the broker (1..6).
func (c *Client) SetHeartbeatFails(fails int) error {
	if err := validateHeartbeatFails(fails); err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.hbFails = fails
	c.mu.Unlock()
	return nil
}

// OnConnected sets a callback that will be called when the session is validated.
func (c *Client) OnConnected(cb func(*Client)) {
	c.mu.Lock()
	c.onConnected = cb
	c.mu.Unlock()
}

// OnDisconnected sets a callback that will be called when the connection is
// closed, gracefully or not.
func (c *Client) OnDisconnected(cb func(*Client)) {
	c.mu.Lock()
	c.onDisconnected = cb
	c.mu.Unlock()
}

// OnReconnecting is called before every reconnect attempt.
func (c *Client) OnReconnecting(cb func(*Client)) {
	c.mu.Lock()
	c.onReconnecting = cb
	c.mu.Unlock()
}

// OnReconnected is called when a reconnect attempt is validated.
func (c *Client) OnReconnected(cb func(*Client)) {
	c.mu.Lock()
	c.onReconnected = cb
	c.mu.Unlock()
}

func (c *Client) OnSubscribed(cb func(c *Client, channel string)) {
	c.mu.Lock()
	c.onSubscribed = cb
	c.mu.Unlock()
}

func (c *Client) OnUnsubscribed(cb func(c *Client, channel string)) {
	c.mu.Lock()
	c.onUnsubscribed = cb
	c.mu.Unlock()
}

// OnException sets the sink for every error the client reports.
func (c *Client) OnException(cb func(c *Client, err error)) {
	c.mu.Lock()
	c.onException = cb
	c.mu.Unlock()
}
