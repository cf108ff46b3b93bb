package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// EscapeJSON escapes s for embedding inside a JSON string literal: quote,
// backslash, slash, the short control escapes, and \uXXXX for the remaining
// C0/C1 controls and the U+2000–U+20FF block.
func EscapeJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r <= 0x1F || (r >= 0x7F && r <= 0x9F) || (r >= 0x2000 && r <= 0x20FF) {
				b.WriteString(`\u`)
				b.WriteByte(hexDigits[(r>>12)&0xF])
				b.WriteByte(hexDigits[(r>>8)&0xF])
				b.WriteByte(hexDigits[(r>>4)&0xF])
				b.WriteByte(hexDigits[r&0xF])
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// EscapeMetadata backslash-escapes backslash and quote only.
func EscapeMetadata(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// UnescapeJSON reverses one level of JSON string escaping.
func UnescapeJSON(s string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return "", fmt.Errorf("unescape: %w", err)
	}
	return out, nil
}

// Unescape removes the two escaping levels of received content (the array
// envelope and the embedded object). On malformed input the best result so
// far is returned.
func Unescape(s string) string {
	once, err := UnescapeJSON(s)
	if err != nil {
		return s
	}
	twice, err := UnescapeJSON(once)
	if err != nil {
		return once
	}
	return twice
}
