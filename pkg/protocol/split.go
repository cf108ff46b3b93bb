package protocol

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// PartSize is the maximum number of payload bytes carried by one send part.
const PartSize = 800

// MessageIDLen is the length of the per-send random message id.
const MessageIDLen = 8

const idSymbols = "0123456789abcdefghijklmnopqrstuvwxyz"

// Part is one ordered fragment of an outgoing or incoming message.
type Part struct {
	ID      string
	Index   int // 1-based
	Total   int
	Content string
}

// Identifier renders <id>_<index>-<total>.
func (p Part) Identifier() string { return fmt.Sprintf("%s_%d-%d", p.ID, p.Index, p.Total) }

// NewMessageID returns MessageIDLen random lowercase alphanumerics.
func NewMessageID() string {
	var raw [MessageIDLen]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(fmt.Sprintf("protocol: read random: %v", err))
	}
	for i := range raw {
		raw[i] = idSymbols[int(raw[i])%len(idSymbols)]
	}
	return string(raw[:])
}

// Split cuts message into parts of at most PartSize bytes. Cuts fall on rune
// boundaries so every part stays valid UTF-8; for ASCII input this is the
// plain fixed-size slicing. An empty message yields a single empty part.
func Split(message, id string) []Part {
	var chunks []string
	rest := message
	for len(rest) > PartSize {
		cut := PartSize
		for cut > 0 && !utf8.RuneStart(rest[cut]) {
			cut--
		}
		if cut == 0 {
			cut = PartSize
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	chunks = append(chunks, rest)

	parts := make([]Part, len(chunks))
	for i, c := range chunks {
		parts[i] = Part{ID: id, Index: i + 1, Total: len(chunks), Content: c}
	}
	return parts
}

// Join concatenates parts ordered by index regardless of arrival order.
func Join(parts []Part) string {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	var b strings.Builder
	for _, p := range sorted {
		b.WriteString(p.Content)
	}
	return b.String()
}
