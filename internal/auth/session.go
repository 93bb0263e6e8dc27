// Package auth verifies the bearer session tokens minted by the identity
// bridge after a user completes provider sign-in. A session token is an
// HS256 JWT carrying the provider sign-in method and the profile claims
// the provider asserted at login.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/whisperlink/whisperlink-backend/internal/config"
)

// SessionTTL bounds how long a minted session token stays valid.
const SessionTTL = 24 * time.Hour

// Claims extends the standard JWT claims with the provider identity
// fields the resolver consumes.
type Claims struct {
	jwt.RegisteredClaims
	SignInProvider string `json:"sign_in_provider"`
	ScreenName     string `json:"screen_name,omitempty"`
	ProviderUserID string `json:"provider_user_id,omitempty"`
}

// Session is the verified identity of one request.
type Session struct {
	UID            string
	SignInProvider string
	// ScreenName is the handle the provider asserted at sign-in, if any.
	ScreenName string
	// ProviderUserID is the provider's stable account id, if any.
	ProviderUserID string
}

// Manager signs and verifies session tokens using HS256.
type Manager struct {
	secret   []byte
	issuer   string
	provider string
}

// NewManager creates a manager from the auth section of the config.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		secret:   []byte(cfg.Auth.JWTSecret),
		issuer:   cfg.Auth.Issuer,
		provider: cfg.Auth.Provider,
	}
}

// GenerateSecret returns a random 32-byte hex string for use as a JWT secret.
func GenerateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Mint signs a session token for the given identity. Used by the identity
// bridge and by tests.
func (m *Manager) Mint(s Session) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
		SignInProvider: s.SignInProvider,
		ScreenName:     s.ScreenName,
		ProviderUserID: s.ProviderUserID,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and returns the session it asserts.
// The caller still owns the provider check; Verify only proves the
// token is ours and unexpired.
func (m *Manager) Verify(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, fmt.Errorf("auth: parse session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("auth: invalid session token")
	}

	return &Session{
		UID:            claims.Subject,
		SignInProvider: claims.SignInProvider,
		ScreenName:     claims.ScreenName,
		ProviderUserID: claims.ProviderUserID,
	}, nil
}

// Provider returns the sign-in provider this deployment accepts.
func (m *Manager) Provider() string {
	return m.provider
}
