package client

import (
	"regexp"
	"strings"
)

const (
	maxChannelSize            = 100
	maxConnectionMetadataSize = 256
)

var (
	inputPattern        = regexp.MustCompile(`^[\w\-:/.]*$`)
	notificationPattern = regexp.MustCompile(`^[\w\-:]*$`)
	urlPattern          = regexp.MustCompile(`^\s*(http|https)://(\w+:{0,1}\w*@)?(\S+)(:[0-9]+)?(/|/([\w#!:.?+=&%@!\-/]))?\s*$`)
)

func isNullOrEmpty(s string) bool { return strings.TrimSpace(s) == "" }

func isValidInput(s string) bool { return inputPattern.MatchString(s) }

func isValidNotificationChannel(s string) bool { return notificationPattern.MatchString(s) }

func isValidURL(s string) bool { return urlPattern.MatchString(s) }

// treatURL trims the URL and drops one trailing slash.
func treatURL(u string) string {
	u = strings.TrimSpace(u)
	return strings.TrimSuffix(u, "/")
}

// validateChannel runs the checks shared by send, subscribe and unsubscribe.
func validateChannel(channel string, notifications bool) error {
	if isNullOrEmpty(channel) {
		return emptyField("Channel")
	}
	valid := isValidInput(channel)
	if notifications {
		valid = isValidNotificationChannel(channel)
	}
	if !valid {
		return invalidCharacters("Channel")
	}
	return nil
}
