package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
	"github.com/Verboo/Verboo-Realtime-go/pkg/metrics"
)

// WsTransport carries the same protocol text over RFC 6455 text messages,
// for brokers fronted by a standard websocket endpoint.
type WsTransport struct {
	handlers

	urlStr string
	opts   Options

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	started   bool
	closed    bool

	ctx     context.Context
	cancel  context.CancelFunc
	writeCh chan string

	closeOnce sync.Once
	wg        sync.WaitGroup // wait group to coordinate pump shutdown
}

func NewWsTransport(opts Options) (*WsTransport, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("url required for ws transport")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WsTransport{
		urlStr:  opts.URL,
		opts:    opts.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		writeCh: make(chan string, writeQueueSize),
	}, nil
}

func (w *WsTransport) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyConnected
	}
	w.started = true
	w.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: w.opts.Timeout,
		TLSClientConfig:  w.opts.TlsCfg,
	}

	conn, _, err := dialer.DialContext(ctx, w.urlStr, nil)
	if err != nil {
		return fmt.Errorf("%w: dial failed: %v", ErrHandshake, err)
	}

	limit := w.opts.MaxFrameSize
	if limit <= 0 {
		limit = config.MaxFramePayloadSize()
	}
	conn.SetReadLimit(limit)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	w.conn = conn
	w.connected = true
	// start pumps and track them with WaitGroup for graceful Close.
	w.wg.Add(2)
	w.mu.Unlock()

	go func() { defer w.wg.Done(); w.readPump(conn) }()
	go func() { defer w.wg.Done(); w.writePump(conn) }()

	w.opts.Logger.Infow("ws connected", "url", w.urlStr)
	return nil
}

func (w *WsTransport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.ctx.Done():
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					w.opts.Logger.Debugw("ws unexpected close", "err", err)
					w.emitError(fmt.Errorf("ws read: %w", err))
				} else {
					w.opts.Logger.Debugw("ws read ended", "err", err)
				}
			}
			w.Close(true)
			return
		}
		metrics.FramesReceived.Inc()
		w.emitMessage(string(data))
	}
}

func (w *WsTransport) writePump(conn *websocket.Conn) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case text := <-w.writeCh:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				w.opts.Logger.Errorw("ws write failed", "err", err)
				w.emitError(fmt.Errorf("ws write: %w", err))
				w.Close(true)
				continue
			}
			metrics.FramesSent.Inc()
		}
	}
}

// Send queues text for the write pump, blocking up to SendTimeout.
func (w *WsTransport) Send(text string) error {
	if !w.IsConnected() {
		return ErrNotConnected
	}
	timer := time.NewTimer(w.opts.SendTimeout)
	defer timer.Stop()
	select {
	case w.writeCh <- text:
		return nil
	case <-w.ctx.Done():
		return ErrNotConnected
	case <-timer.C:
		return ErrQueueTimeout
	}
}

func (w *WsTransport) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *WsTransport) Close(forced bool) {
	w.closeOnce.Do(func() {
		go w.shutdown(forced)
	})
}

func (w *WsTransport) shutdown(forced bool) {
	w.mu.Lock()
	c := w.conn
	w.connected = false
	w.closed = true
	w.mu.Unlock()

	// Signal pumps to stop before closing so the write pump exits first.
	w.cancel()
	if c != nil {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.Close()
	}
	w.wg.Wait()

	w.opts.Logger.Debugw("ws transport closed", "url", w.urlStr, "forced", forced)
	w.emitClose(forced)
}
