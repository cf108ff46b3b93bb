package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Verboo/Verboo-Realtime-go/internal/auth"
	"github.com/Verboo/Verboo-Realtime-go/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--user", "alice", "--secret", "s3")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok := strings.TrimSpace(out)
	if uid, err := auth.UserID(tok, "s3"); err != nil || uid != "alice" {
		t.Fatalf("token did not verify: %q %v", uid, err)
	}

	out, err = run(t, "token", "--secret", "s3", "--verify", tok)
	if err != nil || strings.TrimSpace(out) != "alice" {
		t.Fatalf("verify: %q %v", out, err)
	}
	if _, err := run(t, "token", "--secret", "other", "--verify", tok); err == nil {
		t.Fatal("wrong secret verified")
	}
	if _, err := run(t, "token"); err == nil {
		t.Fatal("missing user accepted")
	}
}

func TestDiscoverCommand(t *testing.T) {
	b := testutil.NewBroker(t)
	out, err := run(t, "discover", "--cluster-url", b.BalancerURL(), "--app-key", "k")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if strings.TrimSpace(out) != b.URL() {
		t.Fatalf("got %q, want %q", out, b.URL())
	}
	if b.BalancerCalls() != 1 {
		t.Fatalf("balancer calls %d", b.BalancerCalls())
	}
}

func TestPublishCommand(t *testing.T) {
	b := testutil.NewBroker(t)
	_, err := run(t, "publish", "--url", b.URL(), "--app-key", "k", "--token", "t", "room", "hello")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	cmds := b.WaitCommands("send;k;t;room;null;", 1, 2*time.Second)
	if len(cmds) != 1 || !strings.HasSuffix(cmds[0], "_1-1_hello") {
		t.Fatalf("commands %v", b.Commands())
	}
}

func TestPublishRequiresCredentials(t *testing.T) {
	if _, err := run(t, "publish", "--url", "http://127.0.0.1:1", "--app-key", "", "--token", "", "room", "m"); err == nil {
		t.Fatal("missing credentials accepted")
	}
}
