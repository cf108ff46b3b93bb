// Package testutil provides an in-process broker that speaks the framed
// handshake and the realtime text protocol, for transport and session tests.
// The same listener also answers plain GET requests as a balancer.
package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Verboo/Verboo-Realtime-go/internal/auth"
	"github.com/Verboo/Verboo-Realtime-go/pkg/frame"
	"github.com/Verboo/Verboo-Realtime-go/pkg/protocol"
)

// Broker is a scripted realtime broker. By default it validates every
// session, acknowledges subscribe and unsubscribe commands and delivers
// published parts to every connection subscribed to the channel.
type Broker struct {
	tb testing.TB
	ln net.Listener

	mu            sync.Mutex
	conns         map[*brokerConn]struct{}
	commands      []string
	accepts       int
	permissions   map[string]string
	expiration    int
	validateError string
	subscribeErr  map[string]string
	silent        bool
	balancerCalls int
	tokenSecret   string

	wg sync.WaitGroup
}

type brokerConn struct {
	c    net.Conn
	wmu  sync.Mutex
	subs map[string]bool
}

// NewBroker starts a broker on a loopback port and stops it at test cleanup.
func NewBroker(tb testing.TB) *Broker {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("broker listen: %v", err)
	}
	b := &Broker{
		tb:           tb,
		ln:           ln,
		conns:        map[*brokerConn]struct{}{},
		subscribeErr: map[string]string{},
		expiration:   1800,
	}
	b.wg.Add(1)
	go b.acceptLoop()
	tb.Cleanup(b.Close)
	return b
}

// URL is the server URL clients connect to.
func (b *Broker) URL() string { return "http://" + b.ln.Addr().String() }

// BalancerURL is a cluster URL served by the same listener.
func (b *Broker) BalancerURL() string { return b.URL() + "/server/2.1/" }

// SetPermissions sets the table returned in validated replies; nil sends null.
func (b *Broker) SetPermissions(p map[string]string) {
	b.mu.Lock()
	b.permissions = p
	b.mu.Unlock()
}

// RejectValidate makes subsequent validate commands fail with msg.
func (b *Broker) RejectValidate(msg string) {
	b.mu.Lock()
	b.validateError = msg
	b.mu.Unlock()
}

// RejectSubscribe makes subscribe commands on channel fail with msg.
func (b *Broker) RejectSubscribe(channel, msg string) {
	b.mu.Lock()
	b.subscribeErr[channel] = msg
	b.mu.Unlock()
}

// RequireToken makes validate check the token as a JWT signed with secret.
func (b *Broker) RequireToken(secret string) {
	b.mu.Lock()
	b.tokenSecret = secret
	b.mu.Unlock()
}

// SetSilent stops all automatic replies, including the open frame.
func (b *Broker) SetSilent(silent bool) {
	b.mu.Lock()
	b.silent = silent
	b.mu.Unlock()
}

// Accepts returns the number of completed handshakes.
func (b *Broker) Accepts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepts
}

// BalancerCalls returns the number of balancer lookups served.
func (b *Broker) BalancerCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balancerCalls
}

// Commands returns every command received so far, unquoted.
func (b *Broker) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commands...)
}

// CommandsWithPrefix returns the received commands starting with prefix.
func (b *Broker) CommandsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range b.Commands() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Heartbeats counts the client heartbeat commands received so far.
func (b *Broker) Heartbeats() int {
	n := 0
	for _, c := range b.Commands() {
		if c == protocol.Heartbeat {
			n++
		}
	}
	return n
}

// WaitCommands blocks until n commands with prefix were received.
func (b *Broker) WaitCommands(prefix string, n int, timeout time.Duration) []string {
	b.tb.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got := b.CommandsWithPrefix(prefix)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			b.tb.Fatalf("timed out waiting for %d %q commands, got %v", n, prefix, b.Commands())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Broadcast writes raw protocol text to every connection.
func (b *Broker) Broadcast(text string) {
	for _, c := range b.snapshot() {
		_ = c.writeText(text)
	}
}

// Deliver sends a received-message frame for channel to every connection.
func (b *Broker) Deliver(channel, m string) {
	b.Broadcast(ReceivedFrame(channel, m, nil))
}

// DropAll closes every connection abruptly, without a close sentinel.
func (b *Broker) DropAll() {
	for _, c := range b.snapshot() {
		_ = c.c.Close()
	}
}

// CloseAll sends the close sentinel and closes every connection.
func (b *Broker) CloseAll() {
	for _, c := range b.snapshot() {
		c.wmu.Lock()
		_, _ = c.c.Write(frame.CloseSequence)
		c.wmu.Unlock()
		_ = c.c.Close()
	}
}

// Close stops the listener and all connections.
func (b *Broker) Close() {
	_ = b.ln.Close()
	b.DropAll()
	b.wg.Wait()
}

func (b *Broker) snapshot() []*brokerConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*brokerConn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Broker) acceptLoop() {
	defer b.wg.Done()
	for {
		c, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serve(c)
		}()
	}
}

func (b *Broker) serve(c net.Conn) {
	defer c.Close()
	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	key1 := req.Header.Get("Sec-WebSocket-Key1")
	if key1 == "" {
		b.serveBalancer(c)
		return
	}
	key3 := make([]byte, 8)
	if _, err := io.ReadFull(br, key3); err != nil {
		return
	}
	resp, err := frame.ServerResponse("ws://"+req.Host+req.URL.Path, req.Header.Get("Origin"),
		key1, req.Header.Get("Sec-WebSocket-Key2"), key3)
	if err != nil {
		return
	}
	if _, err := c.Write(resp); err != nil {
		return
	}

	bc := &brokerConn{c: c, subs: map[string]bool{}}
	b.mu.Lock()
	b.conns[bc] = struct{}{}
	b.accepts++
	silent := b.silent
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.conns, bc)
		b.mu.Unlock()
	}()

	if !silent {
		if err := bc.writeText(ControlOpen); err != nil {
			return
		}
	}

	r := frame.NewReader(br, 0)
	for {
		f, err := r.ReadFrame()
		if err != nil || f.Type == frame.FrameClose {
			return
		}
		b.handle(bc, f.Text())
	}
}

func (b *Broker) serveBalancer(c net.Conn) {
	b.mu.Lock()
	b.balancerCalls++
	b.mu.Unlock()
	body := fmt.Sprintf("var SOCKET_SERVER = %q;", b.URL())
	fmt.Fprintf(c, "HTTP/1.1 200 OK\r\nContent-Type: text/javascript\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
}

// ControlOpen is the frame the broker sends once the handshake completes.
const ControlOpen = "o"

func (b *Broker) handle(bc *brokerConn, raw string) {
	cmd := unquote(raw)
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	silent := b.silent
	perms := b.permissions
	expiration := b.expiration
	validateErr := b.validateError
	secret := b.tokenSecret
	b.mu.Unlock()
	if silent {
		return
	}

	fields := strings.Split(cmd, ";")
	switch fields[0] {
	case "validate":
		if validateErr == "" && secret != "" {
			if len(fields) < 3 {
				validateErr = "Invalid connection."
			} else if _, err := auth.UserID(fields[2], secret); err != nil {
				validateErr = "Invalid connection."
			}
		}
		if validateErr != "" {
			_ = bc.writeText(ErrorFrame("validate", "", validateErr))
			return
		}
		_ = bc.writeText(ValidatedFrame(perms, expiration))
	case "subscribe", "subscribefilter":
		if len(fields) < 4 {
			return
		}
		ch := fields[3]
		b.mu.Lock()
		subErr := b.subscribeErr[ch]
		b.mu.Unlock()
		if subErr != "" {
			_ = bc.writeText(ErrorFrame("subscribe", ch, subErr))
			return
		}
		bc.wmu.Lock()
		bc.subs[ch] = true
		bc.wmu.Unlock()
		_ = bc.writeText(OperationFrame("ortc-subscribed", ch))
	case "unsubscribe":
		if len(fields) < 3 {
			return
		}
		ch := fields[2]
		bc.wmu.Lock()
		delete(bc.subs, ch)
		bc.wmu.Unlock()
		_ = bc.writeText(OperationFrame("ortc-unsubscribed", ch))
	case "send":
		parts := strings.SplitN(cmd, ";", 6)
		if len(parts) < 6 {
			return
		}
		ch, content := parts[3], parts[5]
		for _, other := range b.snapshot() {
			other.wmu.Lock()
			subscribed := other.subs[ch]
			other.wmu.Unlock()
			if subscribed {
				_ = other.writeText(ReceivedFrame(ch, content, nil))
			}
		}
	}
}

func (bc *brokerConn) writeText(text string) error {
	bc.wmu.Lock()
	defer bc.wmu.Unlock()
	_ = bc.c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := bc.c.Write(frame.EncodeText(text))
	return err
}

// unquote removes the wire quoting and one escaping level of a command.
func unquote(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
}

func envelope(inner string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string{inner}); err != nil {
		panic(err)
	}
	return "a" + strings.TrimSuffix(buf.String(), "\n")
}

func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// ValidatedFrame renders an ortc-validated reply.
func ValidatedFrame(perms map[string]string, expiration int) string {
	up := "null"
	if perms != nil {
		raw, _ := json.Marshal(perms)
		up = string(raw)
	}
	return envelope(fmt.Sprintf(`{"op":"ortc-validated","up":%s,"set":%d}`, up, expiration))
}

// OperationFrame renders a channel-scoped reply such as ortc-subscribed.
func OperationFrame(op, channel string) string {
	return envelope(fmt.Sprintf(`{"op":%s,"ch":%s}`, jsonString(op), jsonString(channel)))
}

// ErrorFrame renders an ortc-error reply for the given error operation.
func ErrorFrame(op, channel, msg string) string {
	return envelope(fmt.Sprintf(`{"op":"ortc-error","ex":{"op":%s,"ch":%s,"ex":%s}}`,
		jsonString(op), jsonString(channel), jsonString(msg)))
}

// ReceivedFrame renders a message delivery. m is the unescaped content,
// including any <id>_<part>-<total>_ prefix. filtered, when non-nil, adds
// the filter flag.
func ReceivedFrame(channel, m string, filtered *bool) string {
	if filtered != nil {
		return envelope(fmt.Sprintf(`{"ch":%s,"f":%t,"m":%s}`, jsonString(channel), *filtered, jsonString(m)))
	}
	return envelope(fmt.Sprintf(`{"ch":%s,"m":%s}`, jsonString(channel), jsonString(m)))
}

// CloseFrame renders a protocol close.
func CloseFrame() string { return `c[3000,"Go away!"]` }
