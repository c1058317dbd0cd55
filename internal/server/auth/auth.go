// Package auth provides credential verification, per-IP failed-login
// throttling and opaque session tokens. All state is in-memory and
// process-lifetime.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for the auth layer.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyAttempts    = errors.New("too many failed login attempts, try again tomorrow")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// Authenticator verifies a single configured credential pair and hands out
// session tokens. The password is compared against a bcrypt hash; plaintext
// is never stored.
type Authenticator struct {
	username     string
	passwordHash string
	throttle     *Throttle

	mu       sync.RWMutex
	sessions map[string]bool
}

// NewAuthenticator creates an authenticator for the configured username and
// bcrypt password hash.
func NewAuthenticator(username, passwordHash string, throttle *Throttle) *Authenticator {
	return &Authenticator{
		username:     username,
		passwordHash: passwordHash,
		throttle:     throttle,
		sessions:     make(map[string]bool),
	}
}

// Login verifies the credentials for a request from ip. Failures count
// against the per-IP throttle; success clears it and returns a fresh session
// token.
func (a *Authenticator) Login(ip, username, password string) (string, error) {
	if a.throttle.Blocked(ip) {
		slog.Warn("login blocked by throttle", "ip", ip)
		return "", ErrTooManyAttempts
	}

	if username != a.username ||
		bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		a.throttle.RecordFailure(ip)
		slog.Warn("failed login attempt", "ip", ip, "username", username)
		return "", ErrInvalidCredentials
	}

	a.throttle.Clear(ip)

	token, err := generateSessionToken(40)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	a.mu.Lock()
	a.sessions[token] = true
	a.mu.Unlock()

	slog.Info("login successful", "ip", ip, "username", username)
	return token, nil
}

// Verify reports whether token belongs to a live session.
func (a *Authenticator) Verify(token string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if token == "" || !a.sessions[token] {
		return ErrInvalidSession
	}
	return nil
}

// Logout invalidates a session token. Unknown tokens are ignored.
func (a *Authenticator) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// generateSessionToken produces a cryptographically secure random string.
func generateSessionToken(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
