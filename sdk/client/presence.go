package client

// PresenceRequest addresses one presence REST call. Key is the
// authentication token for Presence and the private key otherwise.
type PresenceRequest struct {
	URL       string
	IsCluster bool
	AppKey    string
	Key       string
	Channel   string
	Metadata  bool
}

// PresenceResult is the presence state of a channel.
type PresenceResult struct {
	Subscriptions int64
	Metadata      map[string]int64
}

// PresenceService performs the presence REST calls. Implementations report
// through done, possibly on another goroutine.
type PresenceService interface {
	Presence(req PresenceRequest, done func(*PresenceResult, error))
	EnablePresence(req PresenceRequest, done func(string, error))
	DisablePresence(req PresenceRequest, done func(string, error))
}

var errNoPresence = &Error{Code: CodeEmptyField, Field: "PresenceService", msg: "no presence service configured"}

// presenceRequest builds a request against the configured target. It fails
// when the session is not connected.
func (c *Client) presenceRequest(key, channel string, metadata bool) (PresenceService, PresenceRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, PresenceRequest{}, ErrNotConnected
	}
	if c.opts.Presence == nil {
		return nil, PresenceRequest{}, errNoPresence
	}
	target := c.url
	if c.isCluster {
		target = c.clusterURL
	}
	return c.opts.Presence, PresenceRequest{
		URL:       target,
		IsCluster: c.isCluster,
		AppKey:    c.appKey,
		Key:       key,
		Channel:   channel,
		Metadata:  metadata,
	}, nil
}

// Presence fetches the subscriptions of channel.
func (c *Client) Presence(channel string, done func(*PresenceResult, error)) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	svc, req, err := c.presenceRequest(token, channel, false)
	if err != nil {
		return c.fail(err)
	}
	svc.Presence(req, done)
	return nil
}

// EnablePresence turns presence on for channel, optionally with metadata.
func (c *Client) EnablePresence(privateKey, channel string, metadata bool, done func(string, error)) error {
	svc, req, err := c.presenceRequest(privateKey, channel, metadata)
	if err != nil {
		return c.fail(err)
	}
	svc.EnablePresence(req, done)
	return nil
}

// DisablePresence turns presence off for channel.
func (c *Client) DisablePresence(privateKey, channel string, done func(string, error)) error {
	svc, req, err := c.presenceRequest(privateKey, channel, false)
	if err != nil {
		return c.fail(err)
	}
	svc.DisablePresence(req, done)
	return nil
}
