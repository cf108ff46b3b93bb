package client

import (
	"testing"
	"time"

	"github.com/Verboo/Verboo-Realtime-go/pkg/protocol"
)

func part(id string, i, total int, content string) *protocol.Message {
	return &protocol.Message{Operation: protocol.OpReceived, Channel: "room", ID: id, Part: i, Total: total, Payload: content}
}

func TestMultipartBuffer_Reassembles(t *testing.T) {
	b := newMultipartBuffer(0, 0)
	if _, done := b.add(part("id1", 2, 3, "bb")); done {
		t.Fatal("completed early")
	}
	if _, done := b.add(part("id1", 3, 3, "cc")); done {
		t.Fatal("completed early")
	}
	if b.pending() != 1 {
		t.Fatalf("pending %d", b.pending())
	}
	got, done := b.add(part("id1", 1, 3, "aa"))
	if !done || got != "aabbcc" {
		t.Fatalf("got %q %v", got, done)
	}
	if b.pending() != 0 {
		t.Fatalf("buffer kept after completion: %d", b.pending())
	}
}

func TestMultipartBuffer_DuplicatePartDoesNotComplete(t *testing.T) {
	b := newMultipartBuffer(0, 0)
	b.add(part("id1", 1, 2, "a"))
	if _, done := b.add(part("id1", 1, 2, "a")); done {
		t.Fatal("duplicate part completed the message")
	}
	if got, done := b.add(part("id1", 2, 2, "b")); !done || got != "ab" {
		t.Fatalf("got %q %v", got, done)
	}
}

func TestMultipartBuffer_Expires(t *testing.T) {
	b := newMultipartBuffer(0, 30*time.Millisecond)
	b.add(part("id1", 1, 2, "a"))
	time.Sleep(80 * time.Millisecond)
	if got, done := b.add(part("id1", 2, 2, "b")); done {
		t.Fatalf("expired part was joined: %q", got)
	}
}

func TestMultipartBuffer_EvictsOldest(t *testing.T) {
	b := newMultipartBuffer(2, time.Minute)
	b.add(part("id1", 1, 2, "a"))
	b.add(part("id2", 1, 2, "a"))
	b.add(part("id3", 1, 2, "a"))
	if b.pending() != 2 {
		t.Fatalf("pending %d", b.pending())
	}
	if _, done := b.add(part("id1", 2, 2, "b")); done {
		t.Fatal("evicted buffer completed")
	}
	b.purge()
	if b.pending() != 0 {
		t.Fatalf("pending after purge %d", b.pending())
	}
}
