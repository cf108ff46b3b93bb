package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Heartbeat is the client heartbeat command.
const Heartbeat = "b"

// ValidateParams carries the fields of the validate command.
type ValidateParams struct {
	AppKey                 string
	Token                  string
	AnnouncementSubChannel string
	SessionID              string
	Metadata               string
	HeartbeatActive        bool
	HeartbeatTime          int
	HeartbeatFails         int
}

// Validate renders validate;<appkey>;<token>;<subchannel>;<sessionId>;<metadata>[;<hbTime>;<hbFails>;].
func Validate(p ValidateParams) string {
	var b strings.Builder
	b.WriteString("validate;")
	b.WriteString(p.AppKey)
	b.WriteByte(';')
	b.WriteString(p.Token)
	b.WriteByte(';')
	b.WriteString(p.AnnouncementSubChannel)
	b.WriteByte(';')
	b.WriteString(p.SessionID)
	b.WriteByte(';')
	b.WriteString(EscapeMetadata(p.Metadata))
	if p.HeartbeatActive {
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(p.HeartbeatTime))
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(p.HeartbeatFails))
		b.WriteByte(';')
	}
	return b.String()
}

// Subscribe renders a subscribe command. A non-empty regID enables push
// notifications for the channel.
func Subscribe(appKey, token, channel, permission, regID string) string {
	cmd := fmt.Sprintf("subscribe;%s;%s;%s;%s", appKey, token, channel, permissionField(permission))
	if regID != "" {
		cmd += ";" + regID + ";GCM"
	}
	return cmd
}

// SubscribeFilter renders a filtered subscribe command.
func SubscribeFilter(appKey, token, channel, permission, filter string) string {
	return fmt.Sprintf("subscribefilter;%s;%s;%s;%s;%s", appKey, token, channel, permissionField(permission), filter)
}

// Unsubscribe renders an unsubscribe command.
func Unsubscribe(appKey, channel, regID string) string {
	if regID != "" {
		return fmt.Sprintf("unsubscribe;%s;%s;%s;GCM", appKey, channel, regID)
	}
	return fmt.Sprintf("unsubscribe;%s;%s", appKey, channel)
}

// Send renders one part of a published message. The part content is JSON
// escaped here.
func Send(appKey, token, channel, permission string, part Part) string {
	return fmt.Sprintf("send;%s;%s;%s;%s;%s_%s",
		appKey, token, channel, permissionField(permission), part.Identifier(), EscapeJSON(part.Content))
}

// Wrap quotes a command for the wire.
func Wrap(cmd string) string { return `"` + cmd + `"` }

func permissionField(p string) string {
	if p == "" {
		return "null"
	}
	return p
}
