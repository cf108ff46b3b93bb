package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Verboo/Verboo-Realtime-go/pkg/logger"
	"github.com/Verboo/Verboo-Realtime-go/sdk/client"
)

// Usage examples:
// Direct broker:  ./realtime-chat-client -url http://localhost:8080 -app-key demo -user alice -room lobby
// Through cluster: ./realtime-chat-client -cluster https://balancer.example.net/server/ssl/2.1 -app-key demo -user bob
// RFC 6455 broker: ./realtime-chat-client -url https://localhost:8443 -mode ws -insecure -user alice

// Main function initializes the realtime client with a TUI interface for interactive messaging.
func main() {
	// Initialize the logger
	logger.Init(logger.New(false))

	var (
		url      = flag.String("url", "http://localhost:8080", "broker server URL")
		cluster  = flag.String("cluster", "", "balancer URL, overrides -url")
		appKey   = flag.String("app-key", "demo", "application key")
		mode     = flag.String("mode", "framed", "transport mode: framed, ws")
		insecure = flag.Bool("insecure", false, "skip TLS verification")
		userID   = flag.String("user", "cli-user", "user id for the token (default: cli-user)")
		room     = flag.String("room", "lobby", "channel to chat on")
		filter   = flag.String("filter", "", "optional broker-side filter for a second subscription")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Generate JWT token for authentication
	token, err := client.GenerateToken(*userID, "")
	if err != nil {
		logger.S().Fatalf("failed to generate token: %v", err)
	}

	opts := []client.Option{
		client.WithTransportType(*mode),
		client.WithConnectionTimeout(2 * time.Second),
		client.WithHeartbeat(15, 3),
		client.WithConnectionMetadata(*userID),
		client.WithTLSConfig(&tls.Config{InsecureSkipVerify: *insecure}),
		client.WithDebug(*debug),
	}
	if *cluster != "" {
		opts = append(opts, client.WithClusterURL(*cluster))
	} else {
		opts = append(opts, client.WithURL(*url))
	}
	c, err := client.NewClient(opts...)
	if err != nil {
		logger.S().Fatalf("failed to create client: %v", err)
	}
	defer c.Close()

	// Initialize TUI application with proper styling and layout
	app := tview.NewApplication()

	logView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() { app.Draw() })

	input := tview.NewInputField().
		SetLabel(fmt.Sprintf("%s: ", *room)).
		SetFieldWidth(0)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(logView, 0, 1, false).
		AddItem(input, 1, 0, true)

	subscribe := func() {
		// Options handler shows the sequence id of every message.
		err := c.SubscribeWithOptions(client.SubscribeOptions{Channel: *room, SubscribeOnReconnected: true},
			func(_ *client.Client, m client.MessageOptions) {
				line := fmt.Sprintf("[%s #%s] %s", m.Channel, m.SeqID, m.Message)
				fmt.Fprintf(logView, "[white]%s\n", tview.Escape(line))
			})
		if err != nil {
			fmt.Fprintf(logView, "[red]Subscribe failed: %v\n", err)
		}

		if *filter == "" {
			return
		}
		// Filtered handler marks messages that matched the broker filter.
		err = c.SubscribeWithFilter(*room+":filtered", true, *filter,
			func(_ *client.Client, channel string, filtered bool, message string) {
				fmt.Fprintf(logView, "[cyan][%s filtered=%t] %s\n", channel, filtered, tview.Escape(message))
			})
		if err != nil {
			fmt.Fprintf(logView, "[red]Filtered subscribe failed: %v\n", err)
		}
	}

	// Connection handler displays a success message when the session is validated.
	c.OnConnected(func(*client.Client) {
		fmt.Fprintf(logView, "[green]Connected as %s\n", *userID)
		subscribe()
	})
	c.OnSubscribed(func(_ *client.Client, channel string) {
		fmt.Fprintf(logView, "[green]Subscribed to %s\n", channel)
	})
	c.OnReconnecting(func(*client.Client) {
		fmt.Fprintf(logView, "[yellow]Reconnecting...\n")
	})
	c.OnReconnected(func(*client.Client) {
		fmt.Fprintf(logView, "[green]Reconnected\n")
	})
	c.OnDisconnected(func(*client.Client) {
		fmt.Fprintf(logView, "[red]Disconnected\n")
	})
	c.OnException(func(_ *client.Client, err error) {
		fmt.Fprintf(logView, "[red]%s\n", tview.Escape(err.Error()))
	})

	// Input field handling for sending messages
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := strings.TrimSpace(input.GetText())
			if text == "" {
				return
			}

			msg := fmt.Sprintf("[%s] %s", *userID, text)

			if err := c.Send(*room, msg); err != nil {
				fmt.Fprintf(logView, "[red]Failed to send: %v\n", err)
			} else {
				fmt.Fprintf(logView, "[yellow][you]: %s\n", tview.Escape(text))
			}

			input.SetText("")
		}
	})

	if err := c.Connect(*appKey, token); err != nil {
		fmt.Fprintf(logView, "[red]Connection failed: %v\n", err)
	}

	// Run the TUI application
	if err := app.SetRoot(layout, true).Run(); err != nil {
		panic(err)
	}
}
