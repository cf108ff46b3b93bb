package client

import (
	"fmt"
)

// ErrorCode classifies client errors.
type ErrorCode uint8

const (
	CodeEmptyField ErrorCode = iota + 1
	CodeMaxLength
	CodeInvalidCharacters
	CodeNotConnected
	CodeAlreadyConnected
	CodeAlreadySubscribed
	CodeNotSubscribed
	CodeNoPermission
	CodePush
	CodeHeartbeat
	CodeConnect
)

func (c ErrorCode) String() string {
	switch c {
	case CodeEmptyField:
		return "empty_field"
	case CodeMaxLength:
		return "max_length"
	case CodeInvalidCharacters:
		return "invalid_characters"
	case CodeNotConnected:
		return "not_connected"
	case CodeAlreadyConnected:
		return "already_connected"
	case CodeAlreadySubscribed:
		return "already_subscribed"
	case CodeNotSubscribed:
		return "not_subscribed"
	case CodeNoPermission:
		return "no_permission"
	case CodePush:
		return "push"
	case CodeHeartbeat:
		return "heartbeat"
	case CodeConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// Error is returned by every client operation and delivered to the
// exception callback. Two errors match with errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Field   string // offending field, for validation errors
	Channel string // offending channel, when one applies
	msg     string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotConnected      = &Error{Code: CodeNotConnected, msg: "not connected"}
	ErrAlreadyConnected  = &Error{Code: CodeAlreadyConnected, msg: "already connected"}
	ErrAlreadySubscribed = &Error{Code: CodeAlreadySubscribed, msg: "already subscribed"}
	ErrNotSubscribed     = &Error{Code: CodeNotSubscribed, msg: "not subscribed"}
	ErrNoPermission      = &Error{Code: CodeNoPermission, msg: "no permission"}
	ErrEmptyField        = &Error{Code: CodeEmptyField, msg: "empty field"}
	ErrMaxLength         = &Error{Code: CodeMaxLength, msg: "max length exceeded"}
	ErrInvalidCharacters = &Error{Code: CodeInvalidCharacters, msg: "invalid characters"}
	ErrPush              = &Error{Code: CodePush, msg: "push notifications"}
	ErrHeartbeat         = &Error{Code: CodeHeartbeat, msg: "heartbeat"}
	ErrConnect           = &Error{Code: CodeConnect, msg: "unable to connect"}
)

var (
	errConnecting = &Error{Code: CodeAlreadyConnected, msg: "already trying to connect"}
	errClosed     = &Error{Code: CodeNotConnected, msg: "client is closed"}
)

func emptyField(field string) *Error {
	return &Error{Code: CodeEmptyField, Field: field, msg: field + " is null or empty"}
}

func maxLength(field string, limit int) *Error {
	return &Error{Code: CodeMaxLength, Field: field, msg: fmt.Sprintf("%s size exceeds the limit of %d characters", field, limit)}
}

func invalidCharacters(field string) *Error {
	return &Error{Code: CodeInvalidCharacters, Field: field, msg: field + " has invalid characters"}
}

func alreadySubscribed(channel string, pending bool) *Error {
	verb := "subscribed"
	if pending {
		verb = "subscribing"
	}
	return &Error{Code: CodeAlreadySubscribed, Channel: channel, msg: fmt.Sprintf("already %s to the channel %s", verb, channel)}
}

func notSubscribed(channel string) *Error {
	return &Error{Code: CodeNotSubscribed, Channel: channel, msg: "not subscribed to the channel " + channel}
}

func noPermission(channel string, write bool) *Error {
	op := "subscribe"
	if write {
		op = "send"
	}
	return &Error{Code: CodeNoPermission, Channel: channel, msg: fmt.Sprintf("no permission found to %s to the channel %s", op, channel)}
}

func pushError(msg string) *Error {
	return &Error{Code: CodePush, msg: msg}
}

func heartbeatError(msg string) *Error {
	return &Error{Code: CodeHeartbeat, msg: msg}
}

func connectError(err error) *Error {
	return &Error{Code: CodeConnect, msg: "unable to connect", err: err}
}
