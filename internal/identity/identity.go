// Package identity answers "who am I" for the chat client and signs and
// checks the bearer tokens the relay accepts.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIdentity = errors.New("identity: no display name or usable token")

// Resolve picks the local author name. With a token it is the token's
// name, email or username claim, the same name the relay stamps on every
// message from this session, so displayName is ignored. Without a token
// displayName is used as is. The token is not verified here; the relay
// does that.
func Resolve(displayName, token string) (string, error) {
	if token == "" {
		if name := strings.TrimSpace(displayName); name != "" {
			return name, nil
		}
		return "", ErrNoIdentity
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("identity: parse token: %w", err)
	}
	if name := NameFromClaims(claims); name != "" {
		return name, nil
	}
	return "", ErrNoIdentity
}

// NameFromClaims returns the first non-empty of name, email, username.
func NameFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"name", "email", "username"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// GenerateToken signs an HS256 token carrying username and email.
func GenerateToken(secret, username, email string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies signature and expiry and returns the claims.
func ValidateToken(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
