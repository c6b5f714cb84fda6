package service

import (
	"context"
	"fmt"
)

// TokenVerifier abstracts Firebase ID token verification for testability.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// AuthService resolves bearer tokens to user IDs.
type AuthService struct {
	verifier TokenVerifier
}

// NewAuthService creates an AuthService.
func NewAuthService(verifier TokenVerifier) *AuthService {
	return &AuthService{verifier: verifier}
}

// VerifyToken validates an ID token and returns the user's UID.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("service.VerifyToken: empty token")
	}
	uid, err := s.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("service.VerifyToken: %w", err)
	}
	return uid, nil
}
