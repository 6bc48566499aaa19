package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_StaticSecretReadyImmediately(t *testing.T) {
	v := NewVerifier("test-secret", "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, v.WaitReady(ctx))
}

func TestVerifier_SignVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", "")
	userID := uuid.New()

	token, err := v.Sign(userID, "Ana", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "Ana", identity.Name)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret", "")

	token, err := v.Sign(uuid.New(), "Ana", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsForeignSignature(t *testing.T) {
	issuer := NewVerifier("other-secret", "")
	v := NewVerifier("test-secret", "")

	token, err := issuer.Sign(uuid.New(), "Eve", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsGarbage(t *testing.T) {
	v := NewVerifier("test-secret", "")
	_, err := v.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_FetchesKeyFromProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote-secret\n"))
	}))
	defer srv.Close()

	v := NewVerifier("", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.WaitReady(ctx))

	token, err := v.Sign(uuid.New(), "Ana", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.NoError(t, err)
}

func TestVerifier_WaitReadyBounded(t *testing.T) {
	// A provider that never answers: the caller's deadline wins.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewVerifier("", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, v.WaitReady(ctx), ErrNotReady)
}
