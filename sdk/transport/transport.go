package transport

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
)

const (
	ModeFramed = "framed" // sentinel framed socket (default)
	ModeWS     = "ws"     // RFC 6455 websocket via gorilla
)

const (
	defaultTimeout     = 5 * time.Second
	defaultSendTimeout = 5 * time.Second
	writeQueueSize     = 512
)

type Options struct {
	URL          string        // ws:// or wss:// connection URL
	Insecure     bool          // skip TLS verification
	Timeout      time.Duration // dial and handshake timeout
	SendTimeout  time.Duration // max wait for a slot in the write queue
	Mode         string        // ModeFramed or ModeWS
	TlsCfg       *tls.Config   // TLS configuration; overrides Insecure
	MaxFrameSize int64         // max inbound payload; 0 uses config default
	Logger       *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.S()
	}
	if o.TlsCfg == nil {
		o.TlsCfg = &tls.Config{InsecureSkipVerify: o.Insecure}
	}
	return o
}

// Transport is the interface for all transports. Inbound text is delivered
// in arrival order on the transport's receive goroutine; Send never
// interleaves frames. Close is asynchronous and reports through OnClose
// exactly once, with forced set when the peer went away or the owner forced
// the close.
type Transport interface {
	Connect(ctx context.Context) error
	Send(text string) error
	OnMessage(cb func(text string))
	OnClose(cb func(forced bool))
	OnError(cb func(err error))
	Close(forced bool)
	IsConnected() bool
}

func CreateTransport(options Options) (Transport, error) {
	switch options.Mode {
	case "", ModeFramed:
		return NewFramedTransport(options)
	case ModeWS:
		return NewWsTransport(options)
	default:
		return nil, ErrUnsupportedTransport
	}
}

var (
	ErrUnsupportedTransport = &sdkError{
		code:   "unsupported_transport",
		msg:    "transport mode not supported (framed/ws)",
		isUser: true,
	}
	ErrNotConnected = &sdkError{
		code: "not_connected",
		msg:  "transport not connected",
	}
	ErrAlreadyConnected = &sdkError{
		code:   "already_connected",
		msg:    "transport already connected",
		isUser: true,
	}
	ErrQueueTimeout = &sdkError{
		code: "queue_timeout",
		msg:  "transport write queue full",
	}
	ErrHandshake = &sdkError{
		code: "handshake",
		msg:  "transport handshake failed",
	}
)

type sdkError struct {
	code   string
	msg    string
	isUser bool
}

func (e *sdkError) Error() string { return e.msg }

// Code returns the stable error code.
func (e *sdkError) Code() string { return e.code }

// UserError reports whether the caller misused the transport.
func (e *sdkError) UserError() bool { return e.isUser }

// handlers holds the owner callbacks shared by every transport.
type handlers struct {
	mu        sync.RWMutex
	onMessage func(string)
	onClose   func(bool)
	onError   func(error)
}

func (h *handlers) OnMessage(cb func(text string)) {
	h.mu.Lock()
	h.onMessage = cb
	h.mu.Unlock()
}

func (h *handlers) OnClose(cb func(forced bool)) {
	h.mu.Lock()
	h.onClose = cb
	h.mu.Unlock()
}

func (h *handlers) OnError(cb func(err error)) {
	h.mu.Lock()
	h.onError = cb
	h.mu.Unlock()
}

func (h *handlers) emitMessage(text string) {
	h.mu.RLock()
	cb := h.onMessage
	h.mu.RUnlock()
	if cb != nil {
		cb(text)
	}
}

func (h *handlers) emitClose(forced bool) {
	h.mu.RLock()
	cb := h.onClose
	h.mu.RUnlock()
	if cb != nil {
		cb(forced)
	}
}

func (h *handlers) emitError(err error) {
	h.mu.RLock()
	cb := h.onError
	h.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}
