package protocol

import "fmt"

// ErrorOperation identifies which command a server error refers to.
type ErrorOperation uint8

const (
	ErrOpUnknown ErrorOperation = iota
	ErrOpUnexpected
	ErrOpValidate
	ErrOpSubscribe
	ErrOpSubscribeMaxSize
	ErrOpUnsubscribeMaxSize
	ErrOpSendMaxSize
)

var errorOperationIndex = map[string]ErrorOperation{
	"ex":                  ErrOpUnexpected,
	"validate":            ErrOpValidate,
	"subscribe":           ErrOpSubscribe,
	"subscribe_maxsize":   ErrOpSubscribeMaxSize,
	"unsubscribe_maxsize": ErrOpUnsubscribeMaxSize,
	"send_maxsize":        ErrOpSendMaxSize,
}

// ServerError is an error reported by the broker. Tag keeps the raw operation
// tag so unknown tags can still be surfaced.
type ServerError struct {
	Operation ErrorOperation
	Tag       string
	Channel   string
	Message   string
}

func (e *ServerError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("server error (%s) on channel %s: %s", e.Tag, e.Channel, e.Message)
	}
	return fmt.Sprintf("server error (%s): %s", e.Tag, e.Message)
}

// Fatal reports whether the error ends the session: validate failures and
// size limit violations.
func (e *ServerError) Fatal() bool {
	switch e.Operation {
	case ErrOpValidate, ErrOpSubscribeMaxSize, ErrOpUnsubscribeMaxSize, ErrOpSendMaxSize:
		return true
	}
	return false
}
