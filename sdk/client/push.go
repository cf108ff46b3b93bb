package client

import (
	"sync"
)

// Process-wide push callbacks. Hosts set them at startup; deliveries read
// them concurrently.
var (
	pushMu           sync.RWMutex
	onPush           func(channel, message, payload string)
	onRegistrationID func(registrationID string)
)

// SetOnPushNotification sets the handler for push messages that no
// connected session can take.
func SetOnPushNotification(fn func(channel, message, payload string)) {
	pushMu.Lock()
	onPush = fn
	pushMu.Unlock()
}

// SetOnRegistrationID sets the handler notified when the platform push
// service assigns a registration id.
func SetOnRegistrationID(fn func(registrationID string)) {
	pushMu.Lock()
	onRegistrationID = fn
	pushMu.Unlock()
}

// NotifyRegistrationID forwards a registration id from the push platform to
// the registered handler.
func NotifyRegistrationID(id string) {
	pushMu.RLock()
	fn := onRegistrationID
	pushMu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

// SetRegistrationID sets the push registration id used by
// SubscribeWithNotifications.
func (c *Client) SetRegistrationID(id string) {
	c.mu.Lock()
	c.regID = id
	c.mu.Unlock()
}

// RegistrationID returns the push registration id.
func (c *Client) RegistrationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regID
}

// DeliverPush routes a push message into the session when it is connected
// and subscribed to channel with notifications. Otherwise the process-wide
// push handler gets it. It reports whether someone took the message.
func (c *Client) DeliverPush(channel, message, payload string) bool {
	c.mu.Lock()
	s := c.subs[channel]
	if c.connected && s != nil && s.notifications {
		h := s.handler
		c.mu.Unlock()
		h.invoke(c, MessageOptions{Channel: channel, Message: message, Payload: payload})
		return true
	}
	c.mu.Unlock()

	pushMu.RLock()
	fn := onPush
	pushMu.RUnlock()
	if fn == nil {
		c.emitException(pushError("no handler for push message on channel " + channel))
		return false
	}
	fn(channel, message, payload)
	return true
}
