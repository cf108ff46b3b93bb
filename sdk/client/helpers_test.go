package client

import (
	"regexp"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestConnectionURL(t *testing.T) {
	cases := []struct {
		server string
		want   string
	}{
		{"http://broker.local", `^ws://broker\.local:80/broadcast/\d{1,3}/[0-9a-z]{8}/websocket$`},
		{"https://broker.local", `^wss://broker\.local:443/broadcast/\d{1,3}/[0-9a-z]{8}/websocket$`},
		{"http://127.0.0.1:8080/", `^ws://127\.0\.0\.1:8080/broadcast/\d{1,3}/[0-9a-z]{8}/websocket$`},
	}
	for _, tc := range cases {
		got, err := connectionURL(tc.server)
		if err != nil {
			t.Fatalf("%s: %v", tc.server, err)
		}
		if !regexp.MustCompile(tc.want).MatchString(got) {
			t.Fatalf("%s: got %s", tc.server, got)
		}
	}
	if _, err := connectionURL("ftp://broker.local"); err == nil {
		t.Fatal("ftp scheme accepted")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken("user-1", "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parsed, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["user_id"] != "user-1" {
		t.Fatalf("claims %v", claims)
	}
	if _, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return []byte("other"), nil }); err == nil {
		t.Fatal("wrong secret accepted")
	}
}
