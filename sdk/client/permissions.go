package client

import "strings"

// Announcement channels carry broker presence events and can never be
// written to when the broker granted no explicit permission table.
var announcementChannels = map[string]struct{}{
	"ortcClientConnected":    {},
	"ortcClientDisconnected": {},
	"ortcClientSubscribed":   {},
	"ortcClientUnsubscribed": {},
}

// resolvePermission returns the permission token to send for channel. An
// empty table allows every read, and every write outside the announcement
// channels, with no token.
func resolvePermission(table map[string]string, channel string, write bool) (string, error) {
	if len(table) == 0 {
		if write {
			name := channel
			if i := strings.IndexByte(channel, ':'); i > 0 {
				name = channel[:i]
			}
			if _, reserved := announcementChannels[name]; reserved {
				return "", noPermission(channel, write)
			}
		}
		return "", nil
	}

	if p := table[channel]; p != "" {
		return p, nil
	}
	if i := strings.IndexByte(channel, ':'); i > 0 {
		if p := table[channel[:i+1]+"*"]; p != "" {
			return p, nil
		}
	}
	return "", noPermission(channel, write)
}
