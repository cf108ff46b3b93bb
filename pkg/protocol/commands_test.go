package protocol

import (
	"regexp"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	got := Validate(ValidateParams{AppKey: "key", Token: "tok", Metadata: `a"b\c`})
	if want := `validate;key;tok;;;a\"b\\c`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	got = Validate(ValidateParams{AppKey: "key", Token: "tok", AnnouncementSubChannel: "sub",
		HeartbeatActive: true, HeartbeatTime: 15, HeartbeatFails: 3})
	if want := "validate;key;tok;sub;;;15;3;"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	cases := []struct{ got, want string }{
		{Subscribe("key", "tok", "room1", "w", ""), "subscribe;key;tok;room1;w"},
		{Subscribe("key", "tok", "room1", "", ""), "subscribe;key;tok;room1;null"},
		{Subscribe("key", "tok", "room1", "r", "reg42"), "subscribe;key;tok;room1;r;reg42;GCM"},
		{SubscribeFilter("key", "tok", "room1", "r", "message.a = 1"), "subscribefilter;key;tok;room1;r;message.a = 1"},
		{Unsubscribe("key", "room1", ""), "unsubscribe;key;room1"},
		{Unsubscribe("key", "room1", "reg42"), "unsubscribe;key;room1;reg42;GCM"},
		{Wrap(Heartbeat), `"b"`},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("got %q want %q", c.got, c.want)
		}
	}
}

func TestSend(t *testing.T) {
	p := Part{ID: "abcd1234", Index: 1, Total: 1, Content: `he said "hi"/bye`}
	got := Send("key", "tok", "room1", "w", p)
	if want := `send;key;tok;room1;w;abcd1234_1-1_he said \"hi\"\/bye`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEscapeJSON(t *testing.T) {
	cases := map[string]string{
		"plain":          "plain",
		"a\tb\nc\rd":     `a\tb\nc\rd`,
		"\x01":           `\u0001`,
		"\u2028":         `\u2028`,
		"ünicode ✓":      "ünicode ✓",
		`back\slash "q"`: `back\\slash \"q\"`,
	}
	for in, want := range cases {
		if got := EscapeJSON(in); got != want {
			t.Fatalf("EscapeJSON(%q) = %q want %q", in, got, want)
		}
		if back, err := UnescapeJSON(EscapeJSON(in)); err != nil || back != in {
			t.Fatalf("UnescapeJSON round trip for %q: %q %v", in, back, err)
		}
	}
}

func TestUnescapeFallback(t *testing.T) {
	if got := Unescape(`bad \x escape`); got != `bad \x escape` {
		t.Fatalf("expected raw fallback, got %q", got)
	}
	// one valid level followed by an invalid second level
	if got := Unescape(`\\q`); got != `\q` {
		t.Fatalf("expected first level result, got %q", got)
	}
}

var idPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

func TestNewMessageID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		if !idPattern.MatchString(id) {
			t.Fatalf("unexpected id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Fatalf("ids are not random enough: %d distinct", len(seen))
	}
}

func TestSplitAndJoin(t *testing.T) {
	msg := strings.Repeat("0123456789", 205) // 2050 bytes
	parts := Split(msg, "abcd1234")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	sizes := []int{800, 800, 450}
	for i, p := range parts {
		if len(p.Content) != sizes[i] || p.Index != i+1 || p.Total != 3 || p.ID != "abcd1234" {
			t.Fatalf("part %d: unexpected %+v (len %d)", i, p.Identifier(), len(p.Content))
		}
	}
	shuffled := []Part{parts[2], parts[0], parts[1]}
	if got := Join(shuffled); got != msg {
		t.Fatalf("reassembly mismatch")
	}
}

func TestSplit_SmallAndExact(t *testing.T) {
	if parts := Split("hello", "id"); len(parts) != 1 || parts[0].Identifier() != "id_1-1" {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts := Split(strings.Repeat("x", 1600), "id"); len(parts) != 2 {
		t.Fatalf("exact multiple must not produce an empty trailing part, got %d", len(parts))
	}
}

func TestSplit_RuneBoundaries(t *testing.T) {
	msg := strings.Repeat("é", 1000) // 2000 bytes, 2 bytes per rune
	parts := Split("a"+msg, "id")
	for _, p := range parts {
		if len(p.Content) > PartSize {
			t.Fatalf("part exceeds PartSize: %d", len(p.Content))
		}
		if !strings.HasSuffix(p.Content, "é") && p.Index != p.Total {
			t.Fatalf("part %d split inside a rune", p.Index)
		}
	}
	if Join(parts) != "a"+msg {
		t.Fatalf("reassembly mismatch")
	}
}
