package client

import "github.com/Verboo/Verboo-Realtime-go/pkg/protocol"

// OnMessage receives a message delivered on a subscribed channel.
type OnMessage func(c *Client, channel, message string)

// OnMessageWithPayload also receives the push payload. The payload is empty
// for messages that arrived over the realtime connection.
type OnMessageWithPayload func(c *Client, channel, message, payload string)

// OnMessageWithFilter also reports whether the broker applied the
// subscription filter to the message.
type OnMessageWithFilter func(c *Client, channel string, filtered bool, message string)

// OnMessageWithOptions receives the whole delivery as one bundle.
type OnMessageWithOptions func(c *Client, msg MessageOptions)

// MessageOptions describes one delivered message.
type MessageOptions struct {
	Channel  string
	Message  string
	Filtered bool
	SeqID    string // message id, empty for unidentified deliveries
	Payload  string
}

// SubscribeOptions configures SubscribeWithOptions.
type SubscribeOptions struct {
	Channel                string
	SubscribeOnReconnected bool
	Filter                 string // optional broker-side filter expression
}

type handlerKind uint8

const (
	handlerPlain handlerKind = iota
	handlerPayload
	handlerFilter
	handlerOptions
)

// handler is a tagged union over the callback variants.
type handler struct {
	kind    handlerKind
	plain   OnMessage
	payload OnMessageWithPayload
	filter  OnMessageWithFilter
	options OnMessageWithOptions
}

func (h handler) valid() bool {
	switch h.kind {
	case handlerPlain:
		return h.plain != nil
	case handlerPayload:
		return h.payload != nil
	case handlerFilter:
		return h.filter != nil
	case handlerOptions:
		return h.options != nil
	}
	return false
}

func (h handler) invoke(c *Client, m MessageOptions) {
	switch h.kind {
	case handlerPlain:
		h.plain(c, m.Channel, m.Message)
	case handlerPayload:
		h.payload(c, m.Channel, m.Message, m.Payload)
	case handlerFilter:
		h.filter(c, m.Channel, m.Filtered, m.Message)
	case handlerOptions:
		h.options(c, m)
	}
}

// subscription is the registry entry for one channel. subscribing and
// subscribed are never both set.
type subscription struct {
	subscribing   bool
	subscribed    bool
	resubscribe   bool
	notifications bool
	withFilter    bool
	filter        string
	handler       handler
}

// command renders the subscribe command for the entry.
func (s *subscription) command(appKey, token, channel, permission, regID string) string {
	if s.withFilter {
		return protocol.SubscribeFilter(appKey, token, channel, permission, s.filter)
	}
	if !s.notifications {
		regID = ""
	}
	return protocol.Subscribe(appKey, token, channel, permission, regID)
}
