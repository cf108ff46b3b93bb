package client

import (
	"errors"
	"strings"
	"testing"
)

func TestIsValidInput(t *testing.T) {
	for _, s := range []string{"room", "chat:room-1", "a/b.c", "under_score", ""} {
		if !isValidInput(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []string{"a b", "semi;colon", "quote\"", "ação"} {
		if isValidInput(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestIsValidNotificationChannel(t *testing.T) {
	if !isValidNotificationChannel("news:sport-1") {
		t.Fatal("plain channel rejected")
	}
	if isValidNotificationChannel("news/sport") || isValidNotificationChannel("news.sport") {
		t.Fatal("separator accepted for push channel")
	}
}

func TestIsValidURL(t *testing.T) {
	for _, s := range []string{"http://broker.local", "https://broker.local:443/server/2.1", " http://127.0.0.1:8080 "} {
		if !isValidURL(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []string{"ftp://broker.local", "broker.local", "ws://broker.local"} {
		if isValidURL(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestTreatURL(t *testing.T) {
	if got := treatURL("  http://h/path/ "); got != "http://h/path" {
		t.Fatalf("got %q", got)
	}
	if got := treatURL("http://h"); got != "http://h" {
		t.Fatalf("got %q", got)
	}
}

func TestValidateChannel(t *testing.T) {
	if err := validateChannel("   ", false); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("blank channel: %v", err)
	}
	if err := validateChannel("a b", false); !errors.Is(err, ErrInvalidCharacters) {
		t.Fatalf("space: %v", err)
	}
	if err := validateChannel("a/b", true); !errors.Is(err, ErrInvalidCharacters) {
		t.Fatalf("push slash: %v", err)
	}
	if err := validateChannel(strings.Repeat("c", 200), false); err != nil {
		t.Fatalf("length is checked by callers: %v", err)
	}
}
