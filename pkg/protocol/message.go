// Package protocol implements the realtime broker wire codec: it classifies
// inbound frame text into typed operations and renders outbound commands.
//
// Inbound operation replies are JSON objects embedded, escaped, in a one-element
// array envelope:
//
//	a["{\"op\":\"ortc-validated\",\"up\":{...},\"set\":1800}"]
//	a["{\"ch\":\"room\",\"m\":\"<id>_<part>-<total>_<content>\"}"]
//	c[3000,"Go away!"]
//
// The broker is fixed, so the patterns below keep its exact separators.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Control frames sent by the broker outside the operation envelope.
const (
	ControlOpen      = "o" // connection accepted, client must validate
	ControlHeartbeat = "h" // server heartbeat
)

type Operation uint8

const (
	OpUnknown Operation = iota
	OpValidated
	OpSubscribed
	OpUnsubscribed
	OpReceived
	OpError
	OpClose
)

func (o Operation) String() string {
	switch o {
	case OpValidated:
		return "validated"
	case OpSubscribed:
		return "subscribed"
	case OpUnsubscribed:
		return "unsubscribed"
	case OpReceived:
		return "received"
	case OpError:
		return "error"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

var operationIndex = map[string]Operation{
	"ortc-validated":    OpValidated,
	"ortc-subscribed":   OpSubscribed,
	"ortc-unsubscribed": OpUnsubscribed,
	"ortc-error":        OpError,
}

var (
	operationPattern   = regexp.MustCompile(`^a\["\{\\"op\\":\\"([^"]+)\\",(.*)\}"\]$`)
	channelPattern     = regexp.MustCompile(`^\\"ch\\":\\"(.*)\\"$`)
	receivedPattern    = regexp.MustCompile(`^a?\["\{\\"ch\\":\\"(.*)\\",(?:\\"f\\":(true|false),)?\\"m\\":\\"([\s\S]*?)\\"\}"\]$`)
	multipartPattern   = regexp.MustCompile(`^(.[^_]*)_(.[^-]*)-(.[^_]*)_([\s\S]*?)$`)
	exceptionPattern   = regexp.MustCompile(`^\\"ex\\":(\{.*\})$`)
	permissionsPattern = regexp.MustCompile(`^\\"up\\":{1}(.*),\\"set\\":(.*)$`)
	closePattern       = regexp.MustCompile(`^c\[\d\d\d\d,"([\s\S])*"]$`)
)

// ErrInvalidMessage is returned for frame text matching no known pattern.
var ErrInvalidMessage = errors.New("protocol: invalid message format")

// Message is one parsed inbound frame. For operation replies Payload is the
// reply body after the op tag; for received messages it is the (still
// escaped) content with any multi-part prefix removed.
type Message struct {
	Operation Operation
	Payload   string
	Channel   string
	ID        string
	Part      int
	Total     int
	Filtered  bool
}

// Parse classifies text. Unknown op tags parse successfully with OpUnknown so
// the caller can surface them without aborting dispatch.
func Parse(text string) (*Message, error) {
	if m := operationPattern.FindStringSubmatch(text); m != nil {
		return &Message{Operation: operationIndex[m[1]], Payload: m[2], Part: -1, Total: -1}, nil
	}
	if m := receivedPattern.FindStringSubmatch(text); m != nil {
		msg := &Message{
			Operation: OpReceived,
			Channel:   m[1],
			Filtered:  m[2] == "true",
			Payload:   m[3],
			Part:      -1,
			Total:     -1,
		}
		parseMultipart(msg)
		return msg, nil
	}
	if closePattern.MatchString(text) {
		return &Message{Operation: OpClose, Part: -1, Total: -1}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, text)
}

// parseMultipart strips an <id>_<part>-<total>_ prefix. Numeric fields that
// do not parse leave the message as a single unidentified delivery.
func parseMultipart(msg *Message) {
	m := multipartPattern.FindStringSubmatch(msg.Payload)
	if m == nil {
		return
	}
	part, total := -1, -1
	var err error
	if strings.TrimSpace(m[2]) != "" {
		if part, err = strconv.Atoi(m[2]); err != nil {
			return
		}
	}
	if strings.TrimSpace(m[3]) != "" {
		if total, err = strconv.Atoi(m[3]); err != nil {
			return
		}
	}
	msg.ID = m[1]
	msg.Part = part
	msg.Total = total
	msg.Payload = m[4]
}

// Complete reports whether the message is a whole delivery that goes straight
// to dedup and dispatch instead of the multi-part buffer.
func (m *Message) Complete() bool {
	return m.ID == "" || m.Part == -1 || (m.Part == 1 && m.Total == 1)
}

// Text returns the received content with both escaping levels removed.
func (m *Message) Text() string { return Unescape(m.Payload) }

// Permissions extracts the channel permission table from a validated reply.
// A null or absent table yields an empty map.
func (m *Message) Permissions() (map[string]string, error) {
	out := map[string]string{}
	g := permissionsPattern.FindStringSubmatch(m.Payload)
	if g == nil {
		return out, nil
	}
	var content string
	if err := json.Unmarshal([]byte(`"`+g[1]+`"`), &content); err != nil {
		return nil, fmt.Errorf("unescape permissions: %w", err)
	}
	var table map[string]string
	if err := json.Unmarshal([]byte(content), &table); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	for k, v := range table {
		out[k] = v
	}
	return out, nil
}

// SessionExpirationTime returns the "set" value of a validated reply, or 0.
func (m *Message) SessionExpirationTime() int {
	g := permissionsPattern.FindStringSubmatch(m.Payload)
	if g == nil || strings.TrimSpace(g[2]) == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(g[2]))
	if err != nil {
		return 0
	}
	return n
}

// ChannelName returns the channel of a subscribed or unsubscribed reply.
func (m *Message) ChannelName() (string, error) {
	g := channelPattern.FindStringSubmatch(m.Payload)
	if g == nil {
		return "", fmt.Errorf("%w: no channel in %s reply", ErrInvalidMessage, m.Operation)
	}
	return g[1], nil
}

// ServerError decodes the body of an ortc-error reply.
func (m *Message) ServerError() (*ServerError, error) {
	g := exceptionPattern.FindStringSubmatch(m.Payload)
	if g == nil {
		return nil, fmt.Errorf("%w: exception body not found", ErrInvalidMessage)
	}
	var body struct {
		Op string `json:"op"`
		Ch string `json:"ch"`
		Ex string `json:"ex"`
	}
	if err := json.Unmarshal([]byte(strings.ReplaceAll(g[1], `\"`, `"`)), &body); err != nil {
		return nil, fmt.Errorf("decode server error: %w", err)
	}
	return &ServerError{
		Operation: errorOperationIndex[body.Op],
		Tag:       body.Op,
		Channel:   body.Ch,
		Message:   body.Ex,
	}, nil
}
