// Package auth verifies identity tokens issued by the external identity
// provider. The provider owns the login protocol; this package only checks
// signatures and extracts the stable user id every operation is scoped by.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotReady means the verifier's key material has not settled yet.
	// Callers must not execute operations in this state.
	ErrNotReady = errors.New("auth verifier not ready")

	ErrInvalidToken = errors.New("token inválido o expirado")
)

// Claims carried in every access token from the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller: a stable user id plus a display name used
// in ledger entries.
type Identity struct {
	UserID uuid.UUID
	Name   string
}

// Verifier validates Bearer tokens. Key material either comes straight from
// configuration (ready immediately) or is fetched from the identity
// provider's key endpoint in the background with bounded retries — requests
// arriving before it settles wait on Ready.
type Verifier struct {
	ready  chan struct{}
	secret []byte
	err    error
}

// NewVerifier starts key loading. With a static secret the verifier is ready
// before it returns; with a key URL it becomes ready asynchronously.
func NewVerifier(secret, keyURL string) *Verifier {
	v := &Verifier{ready: make(chan struct{})}
	if secret != "" {
		v.secret = []byte(secret)
		close(v.ready)
		return v
	}
	go v.fetchKey(keyURL)
	return v
}

const (
	keyFetchAttempts = 5
	keyFetchBackoff  = 2 * time.Second
	keyFetchTimeout  = 10 * time.Second
)

func (v *Verifier) fetchKey(keyURL string) {
	defer close(v.ready)
	client := &http.Client{Timeout: keyFetchTimeout}
	for attempt := 1; attempt <= keyFetchAttempts; attempt++ {
		secret, err := fetchKeyOnce(client, keyURL)
		if err == nil {
			v.secret = secret
			log.Info().Msg("auth key material loaded from identity provider")
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("auth key fetch failed")
		time.Sleep(keyFetchBackoff * time.Duration(attempt))
	}
	v.err = fmt.Errorf("auth key fetch exhausted after %d attempts", keyFetchAttempts)
}

func fetchKeyOnce(client *http.Client, keyURL string) ([]byte, error) {
	resp, err := client.Get(keyURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, err
	}
	secret := strings.TrimSpace(string(body))
	if secret == "" {
		return nil, errors.New("key endpoint returned empty body")
	}
	return []byte(secret), nil
}

// WaitReady blocks until key material settles, the load fails permanently, or
// ctx expires. The bounded ctx is the caller's responsibility — waiting
// indefinitely for authentication is never correct.
func (v *Verifier) WaitReady(ctx context.Context) error {
	select {
	case <-v.ready:
		return v.err
	case <-ctx.Done():
		return ErrNotReady
	}
}

// Verify parses and validates a token, returning the resolved identity.
// Callers must have observed WaitReady first.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: userID, Name: claims.Name}, nil
}

// Sign issues a token with this verifier's key. Used by tests and the demo
// seeder; production tokens come from the identity provider.
func (v *Verifier) Sign(userID uuid.UUID, name string, ttl time.Duration) (string, error) {
	if err := v.WaitReady(context.Background()); err != nil {
		return "", err
	}
	claims := &Claims{
		UserID: userID.String(),
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
