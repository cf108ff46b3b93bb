package frame

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"net/url"
	"strconv"
	"strings"
)

// maxHandshakeLine bounds a single response header line.
const maxHandshakeLine = 2000

// TokenLen is the size of the server token that follows the response headers.
const TokenLen = 16

var ErrHandshake = errors.New("frame: handshake failed")

// Handshake holds the client half of the upgrade exchange. The server proves
// it read the request by answering with MD5(n1 ‖ n2 ‖ Key3) where n1 and n2 are
// the numbers encoded in Key1 and Key2.
type Handshake struct {
	URL    *url.URL
	Origin string
	Key1   string
	Key2   string
	Key3   [8]byte

	expected [TokenLen]byte
}

// NewHandshake generates fresh keys for u.
func NewHandshake(u *url.URL) (*Handshake, error) {
	h := &Handshake{URL: u, Origin: "http://" + u.Hostname()}
	var n1, n2 uint32
	h.Key1, n1 = generateKey()
	h.Key2, n2 = generateKey()
	if _, err := rand.Read(h.Key3[:]); err != nil {
		return nil, fmt.Errorf("generate key3: %w", err)
	}
	h.expected = challenge(n1, n2, h.Key3[:])
	return h, nil
}

// Request renders the upgrade request followed by the 8-byte Key3.
func (h *Handshake) Request() []byte {
	path := h.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if h.URL.RawQuery != "" {
		path += "?" + h.URL.RawQuery
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	b.WriteString("Upgrade: WebSocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Host: %s\r\n", h.URL.Host)
	fmt.Fprintf(&b, "Origin: %s\r\n", h.Origin)
	fmt.Fprintf(&b, "Sec-WebSocket-Key1: %s\r\n", h.Key1)
	fmt.Fprintf(&b, "Sec-WebSocket-Key2: %s\r\n", h.Key2)
	b.WriteString("\r\n")
	b.Write(h.Key3[:])
	return b.Bytes()
}

// ReadResponse consumes the status line, headers, blank line and server token
// from br and verifies them.
func (h *Handshake) ReadResponse(br *bufio.Reader) error {
	var lines []string
	for {
		line, err := readLine(br)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: empty response", ErrHandshake)
	}
	if err := verifyStatusLine(lines[0]); err != nil {
		return err
	}
	headers := make(map[string]string, len(lines)-1)
	for _, l := range lines[1:] {
		k, v, ok := strings.Cut(l, ": ")
		if !ok {
			return fmt.Errorf("%w: malformed header %q", ErrHandshake, l)
		}
		headers[strings.ToLower(k)] = v
	}
	if !strings.EqualFold(headers["upgrade"], "WebSocket") {
		return fmt.Errorf("%w: missing Upgrade header", ErrHandshake)
	}
	if !strings.EqualFold(headers["connection"], "Upgrade") {
		return fmt.Errorf("%w: missing Connection header", ErrHandshake)
	}

	var token [TokenLen]byte
	if _, err := io.ReadFull(br, token[:]); err != nil {
		return fmt.Errorf("%w: read token: %v", ErrHandshake, err)
	}
	if token != h.expected {
		return fmt.Errorf("%w: token mismatch", ErrHandshake)
	}
	return nil
}

// ServerResponse builds the server answer for a client request carrying key1,
// key2 and key3. Used by brokers and test doubles.
func ServerResponse(location, origin, key1, key2 string, key3 []byte) ([]byte, error) {
	n1, err := ParseKey(key1)
	if err != nil {
		return nil, err
	}
	n2, err := ParseKey(key2)
	if err != nil {
		return nil, err
	}
	token := challenge(n1, n2, key3)
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 101 WebSocket Protocol Handshake\r\n")
	b.WriteString("Upgrade: WebSocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Origin: %s\r\n", origin)
	fmt.Fprintf(&b, "Sec-WebSocket-Location: %s\r\n", location)
	b.WriteString("\r\n")
	b.Write(token[:])
	return b.Bytes(), nil
}

// ParseKey decodes a Sec-WebSocket-Key value: the digits form a number that
// must divide evenly by the count of spaces.
func ParseKey(key string) (uint32, error) {
	var digits strings.Builder
	spaces := 0
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ':
			spaces++
		}
	}
	if spaces == 0 || digits.Len() == 0 {
		return 0, fmt.Errorf("%w: malformed key %q", ErrHandshake, key)
	}
	n, err := strconv.ParseUint(digits.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if n%uint64(spaces) != 0 {
		return 0, fmt.Errorf("%w: key not divisible by spaces", ErrHandshake)
	}
	return uint32(n / uint64(spaces)), nil
}

func challenge(n1, n2 uint32, key3 []byte) [TokenLen]byte {
	buf := make([]byte, 8, 8+len(key3))
	binary.BigEndian.PutUint32(buf[0:4], n1)
	binary.BigEndian.PutUint32(buf[4:8], n2)
	buf = append(buf, key3...)
	return md5.Sum(buf)
}

// generateKey returns a key string and the number it encodes.
func generateKey() (string, uint32) {
	spaces := mrand.IntN(12) + 1
	max := uint64(0xFFFFFFFF) / uint64(spaces)
	number := uint32(mrand.Uint64N(max + 1))
	key := []byte(strconv.FormatUint(uint64(number)*uint64(spaces), 10))

	for i := mrand.IntN(12) + 1; i > 0; i-- {
		key = insertAt(key, mrand.IntN(len(key)+1), randomNoise())
	}
	for i := 0; i < spaces; i++ {
		key = insertAt(key, mrand.IntN(len(key)-1)+1, ' ') // never first or last
	}
	return string(key), number
}

// randomNoise picks a printable non-digit character.
func randomNoise() byte {
	for {
		c := byte(mrand.IntN(0x7E-0x21+1) + 0x21)
		if c < '0' || c > '9' {
			return c
		}
	}
}

func insertAt(b []byte, pos int, c byte) []byte {
	b = append(b, 0)
	copy(b[pos+1:], b[pos:])
	b[pos] = c
	return b
}

func verifyStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return fmt.Errorf("%w: malformed status line %q", ErrHandshake, line)
	}
	if parts[1] != "101" {
		return fmt.Errorf("%w: unexpected status %q", ErrHandshake, line)
	}
	return nil
}

func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		line = append(line, chunk...)
		if len(line) > maxHandshakeLine {
			return "", errors.New("header line too long")
		}
		if !isPrefix {
			return strings.TrimSpace(string(line)), nil
		}
	}
}
