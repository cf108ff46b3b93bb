package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/Verboo/Verboo-Realtime-go/pkg/frame"
	"github.com/Verboo/Verboo-Realtime-go/pkg/metrics"
)

// FramedTransport speaks the sentinel framed protocol over a raw TCP or TLS
// socket: an HTTP-like upgrade handshake, then 0x00 text 0xFF frames.
type FramedTransport struct {
	handlers

	opts Options
	u    *url.URL

	mu        sync.RWMutex
	conn      net.Conn
	connected bool
	started   bool
	closed    bool

	ctx     context.Context
	cancel  context.CancelFunc
	writeCh chan []byte
	writeMu sync.Mutex // serializes socket writes (pump and close sequence)

	closeOnce sync.Once
	wg        sync.WaitGroup // wait group to coordinate pump shutdown
}

func NewFramedTransport(opts Options) (*FramedTransport, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("url required for framed transport")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FramedTransport{
		opts:    opts.withDefaults(),
		u:       u,
		ctx:     ctx,
		cancel:  cancel,
		writeCh: make(chan []byte, writeQueueSize),
	}, nil
}

// Connect dials, performs the handshake and starts the pumps. A transport
// connects at most once; reconnecting means building a new transport.
func (t *FramedTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.started = true
	t.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	conn, err := t.dial(dialCtx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.u.Host, err)
	}

	h, err := frame.NewHandshake(t.u)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)
	if _, err := conn.Write(h.Request()); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: write request: %v", ErrHandshake, err)
	}
	br := bufio.NewReader(conn)
	if err := h.ReadResponse(br); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	_ = conn.SetDeadline(time.Time{})

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	t.conn = conn
	t.connected = true
	t.wg.Add(2)
	t.mu.Unlock()

	go func() { defer t.wg.Done(); t.readPump(frame.NewReader(br, t.opts.MaxFrameSize)) }()
	go func() { defer t.wg.Done(); t.writePump() }()

	t.opts.Logger.Infow("framed transport connected", "url", t.u.String())
	return nil
}

func (t *FramedTransport) dial(ctx context.Context) (net.Conn, error) {
	port := t.u.Port()
	nd := &net.Dialer{KeepAlive: 30 * time.Second}
	if t.u.Scheme == "wss" {
		if port == "" {
			port = "443"
		}
		cfg := t.opts.TlsCfg.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = t.u.Hostname()
		}
		td := &tls.Dialer{NetDialer: nd, Config: cfg}
		return td.DialContext(ctx, "tcp", net.JoinHostPort(t.u.Hostname(), port))
	}
	if port == "" {
		port = "80"
	}
	return nd.DialContext(ctx, "tcp", net.JoinHostPort(t.u.Hostname(), port))
}

func (t *FramedTransport) readPump(r *frame.Reader) {
	for {
		f, err := r.ReadFrame()
		if err != nil {
			select {
			case <-t.ctx.Done():
				// closing on request
			default:
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					t.opts.Logger.Debugw("framed read ended", "err", err)
					t.emitError(fmt.Errorf("read frame: %w", err))
				}
			}
			t.Close(true)
			return
		}
		if f.Type == frame.FrameClose {
			t.opts.Logger.Debugw("framed peer sent close")
			t.Close(true)
			return
		}
		metrics.FramesReceived.Inc()
		t.emitMessage(f.Text())
	}
}

func (t *FramedTransport) writePump() {
	for {
		select {
		case <-t.ctx.Done():
			t.drain()
			return
		case b := <-t.writeCh:
			err := t.write(b)
			frame.ReleaseEncoded(b) // Always release buffer after use
			if err != nil {
				t.opts.Logger.Errorw("framed write failed", "err", err)
				t.emitError(fmt.Errorf("write frame: %w", err))
				t.Close(true)
			}
		}
	}
}

// drain releases buffers still queued at shutdown.
func (t *FramedTransport) drain() {
	for {
		select {
		case b := <-t.writeCh:
			frame.ReleaseEncoded(b)
		default:
			return
		}
	}
}

func (t *FramedTransport) write(b []byte) error {
	t.mu.RLock()
	c := t.conn
	t.mu.RUnlock()
	if c == nil {
		return ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := c.Write(b); err != nil {
		return err
	}
	metrics.FramesSent.Inc()
	return nil
}

// Send frames text and queues it for the write pump. It blocks up to
// SendTimeout when the queue is full.
func (t *FramedTransport) Send(text string) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	pb, err := frame.EncodePooled(text)
	if err != nil {
		return err
	}

	timer := time.NewTimer(t.opts.SendTimeout)
	defer timer.Stop()
	select {
	case t.writeCh <- pb:
		return nil
	case <-t.ctx.Done():
		frame.ReleaseEncoded(pb)
		return ErrNotConnected
	case <-timer.C:
		frame.ReleaseEncoded(pb)
		return ErrQueueTimeout
	}
}

func (t *FramedTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Close tears the connection down in the background. Only the first call
// has an effect.
func (t *FramedTransport) Close(forced bool) {
	t.closeOnce.Do(func() {
		go t.shutdown(forced)
	})
}

func (t *FramedTransport) shutdown(forced bool) {
	t.mu.Lock()
	c := t.conn
	t.connected = false
	t.closed = true
	t.mu.Unlock()

	if c != nil {
		t.writeMu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = c.Write(frame.CloseSequence) // best-effort
		t.writeMu.Unlock()
	}
	t.cancel()
	if c != nil {
		_ = c.Close()
	}
	t.wg.Wait()

	t.opts.Logger.Debugw("framed transport closed", "url", t.u.String(), "forced", forced)
	t.emitClose(forced)
}
