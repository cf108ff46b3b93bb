package client

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Verboo/Verboo-Realtime-go/pkg/protocol"
)

const (
	defaultMultipartTTL     = 5 * time.Minute
	defaultMultipartEntries = 1024
)

type partBuffer struct {
	channel string
	parts   map[int]string
}

// multipartBuffer collects the parts of split messages by message id.
// Buffers that never complete expire after the TTL or are evicted once more
// than the configured number of ids are pending.
type multipartBuffer struct {
	lru *expirable.LRU[string, *partBuffer]
}

func newMultipartBuffer(size int, ttl time.Duration) *multipartBuffer {
	if size <= 0 {
		size = defaultMultipartEntries
	}
	if ttl <= 0 {
		ttl = defaultMultipartTTL
	}
	return &multipartBuffer{lru: expirable.NewLRU[string, *partBuffer](size, nil, ttl)}
}

// add stores one part and, when it was the last missing one, returns the
// reassembled raw content ordered by part index.
func (b *multipartBuffer) add(msg *protocol.Message) (string, bool) {
	buf, ok := b.lru.Get(msg.ID)
	if !ok {
		buf = &partBuffer{channel: msg.Channel, parts: map[int]string{}}
		b.lru.Add(msg.ID, buf)
	}
	buf.parts[msg.Part] = msg.Payload
	if msg.Total <= 0 || len(buf.parts) < msg.Total {
		return "", false
	}

	parts := make([]protocol.Part, 0, len(buf.parts))
	for i, content := range buf.parts {
		parts = append(parts, protocol.Part{ID: msg.ID, Index: i, Total: msg.Total, Content: content})
	}
	b.lru.Remove(msg.ID)
	return protocol.Join(parts), true
}

func (b *multipartBuffer) pending() int { return b.lru.Len() }

func (b *multipartBuffer) purge() { b.lru.Purge() }
