package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// TestEncodeReadRoundTrip verifies that framed payloads decode back unchanged.
func TestEncodeReadRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"o",
		`a["{\"op\":\"ortc-validated\",\"up\":null,\"set\":10}"]`,
		"héllo wörld ✓",
		strings.Repeat("z", 64*1024),
	}
	var stream bytes.Buffer
	for _, c := range cases {
		stream.Write(EncodeText(c))
	}
	r := NewReader(&stream, 0)
	for i, want := range cases {
		f, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("case %d: ReadFrame: %v", i, err)
		}
		if f.Type != FrameText {
			t.Fatalf("case %d: unexpected type %v", i, f.Type)
		}
		if f.Text() != want {
			t.Fatalf("case %d: payload mismatch: len got=%d want=%d", i, len(f.Payload), len(want))
		}
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last frame, got %v", err)
	}
}

func TestReadFrame_Close(t *testing.T) {
	r := NewReader(bytes.NewReader(CloseSequence), 0)
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Type != FrameClose {
		t.Fatalf("expected close frame, got %v", f.Type)
	}
}

func TestReadFrame_InvalidLead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("xyz")), 0)
	if _, err := r.ReadFrame(); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	r := NewReader(bytes.NewReader(EncodeText(strings.Repeat("q", 128))), 64)
	if _, err := r.ReadFrame(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{Start, 'a', 'b'}), 0)
	if _, err := r.ReadFrame(); err == nil {
		t.Fatalf("expected error for unterminated frame")
	}
}

// TestEncodePooledAndRelease checks that EncodePooled returns a framed buffer and ReleaseEncoded accepts it.
func TestEncodePooledAndRelease(t *testing.T) {
	b, err := EncodePooled("pooled")
	if err != nil {
		t.Fatalf("EncodePooled: %v", err)
	}
	if b[0] != Start || b[len(b)-1] != End || string(b[1:len(b)-1]) != "pooled" {
		t.Fatalf("unexpected pooled frame %q", b)
	}
	ReleaseEncoded(b)
	b2, err := EncodePooled("again")
	if err != nil {
		t.Fatalf("second EncodePooled: %v", err)
	}
	ReleaseEncoded(b2)
	ReleaseEncoded(nil)
}
