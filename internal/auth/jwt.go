// Package auth signs and checks development authentication tokens. Realtime
// brokers treat the token as opaque; local brokers and the CLI use these
// helpers to mint tokens for a user and to check them on validate.
//
// Only numeric exp claims are accepted. A string exp fails validation.
package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
)

// DevSecret signs tokens when no secret is configured.
const DevSecret = "JWT-Secret-key"

// DefaultTTL is the lifetime of generated tokens.
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken is the standard error for invalid JWT tokens
var ErrInvalidToken = errors.New("invalid token")

// Secret returns the configured JWT secret, or DevSecret.
func Secret() string {
	if s := config.JWTSecret(); s != "" {
		return s
	}
	return DevSecret
}

// Sign issues an HS256 token with a user_id claim valid for ttl.
func Sign(userID, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		secret = DevSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     float64(now),
		"exp":     float64(now + int64(ttl.Seconds())),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses and validates a JWT token using the provided secret.
// Accepted algorithms: HS256, HS384, HS512.
func ValidateToken(tok string, secret string) (map[string]interface{}, error) {
	if tok == "" {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	token, err := parser.ParseWithClaims(tok, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if exp, ok := claims["exp"]; ok {
		if !validateNumericDate(exp) {
			return nil, ErrInvalidToken
		}
	}

	res := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		res[k] = v
	}
	return res, nil
}

// UserID validates tok and returns its user_id claim.
func UserID(tok, secret string) (string, error) {
	claims, err := ValidateToken(tok, secret)
	if err != nil {
		return "", err
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		return "", ErrInvalidToken
	}
	return uid, nil
}

// validateNumericDate reports whether v is a numeric UNIX timestamp not in the past.
func validateNumericDate(v interface{}) bool {
	now := time.Now().Unix()
	switch t := v.(type) {
	case float64:
		return int64(t) >= now
	case int64:
		return t >= now
	default:
		return false
	}
}
