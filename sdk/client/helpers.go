package client

import (
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"

	"github.com/Verboo/Verboo-Realtime-go/internal/auth"
	"github.com/Verboo/Verboo-Realtime-go/pkg/protocol"
)

// GenerateToken signs a development authentication token for userID,
// valid for a day. An empty secret uses the development secret.
func GenerateToken(userID string, secret string) (string, error) {
	return auth.Sign(userID, secret, auth.DefaultTTL)
}

// connectionURL turns a broker server URL into the socket URL
// <ws|wss>://host:port/broadcast/<n>/<id>/websocket.
func connectionURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	scheme, port := "ws", "80"
	switch u.Scheme {
	case "http":
	case "https":
		scheme, port = "wss", "443"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return fmt.Sprintf("%s://%s/broadcast/%d/%s/websocket",
		scheme, net.JoinHostPort(u.Hostname(), port), rand.IntN(1000), protocol.NewMessageID()), nil
}
