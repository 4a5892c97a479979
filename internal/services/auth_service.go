package services

import (
	"fmt"

	"taskforge-chat/internal/identity"
	"taskforge-chat/internal/models"
)

// AuthService checks bearer tokens presented to the relay.
type AuthService struct {
	secret string
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: secret}
}

// Authenticate returns the display name carried by a valid token.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := identity.ValidateToken(s.secret, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	name := identity.NameFromClaims(claims)
	if name == "" {
		return "", fmt.Errorf("%w: token carries no name", models.ErrUnauthorized)
	}
	return name, nil
}
