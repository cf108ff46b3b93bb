package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWsTransport_EchoAndClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte("o"))
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	defer srv.Close()

	tr, err := NewWsTransport(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewWsTransport: %v", err)
	}
	msgs := make(chan string, 4)
	closed := make(chan bool, 1)
	tr.OnMessage(func(text string) { msgs <- text })
	tr.OnClose(func(forced bool) { closed <- forced })
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case m := <-msgs:
		if m != "o" {
			t.Fatalf("unexpected first message %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no open message")
	}
	if err := tr.Send(`"b"`); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-received:
		if got != `"b"` {
			t.Fatalf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not receive message")
	}
	tr.Close(false)
	select {
	case forced := <-closed:
		if forced {
			t.Fatalf("expected graceful close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnClose not called")
	}
}

func TestWsTransport_ServerDropIsForced(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Close()
	}))
	defer srv.Close()

	tr, _ := NewWsTransport(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Timeout: 2 * time.Second})
	closed := make(chan bool, 1)
	tr.OnClose(func(forced bool) { closed <- forced })
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case forced := <-closed:
		if !forced {
			t.Fatalf("server drop must be forced")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnClose not called")
	}
}
