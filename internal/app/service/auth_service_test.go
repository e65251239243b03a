package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

func TestLoginPersistsSessionUnderAccessToken(t *testing.T) {
	sessions := newFakeSessions()
	svc := NewAuthService(&fakeOAuth{}, sessions)

	cred, err := svc.Login(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cred.AccessToken)

	sess, ok := sessions.rows["tok-abc"]
	require.True(t, ok)
	assert.Equal(t, cred, sess.Credential)
	assert.True(t, sess.ExpiresAt.After(time.Now().Add(13*24*time.Hour)))
}

func TestCredentialForTokenUnknownToken(t *testing.T) {
	svc := NewAuthService(&fakeOAuth{}, newFakeSessions())

	_, err := svc.CredentialForToken(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = svc.CredentialForToken(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestCredentialForTokenExpiredSessionIsDropped(t *testing.T) {
	sessions := newFakeSessions()
	sessions.rows["tok-old"] = storage.Session{
		Token:      "tok-old",
		ExpiresAt:  time.Now().Add(-time.Hour),
		Credential: domain.Credential{AccessToken: "tok-old", TokenType: "Bearer"},
	}
	svc := NewAuthService(&fakeOAuth{}, sessions)

	_, err := svc.CredentialForToken(context.Background(), "tok-old")
	require.ErrorIs(t, err, domain.ErrInvalidSession)
	_, still := sessions.rows["tok-old"]
	assert.False(t, still)
}

func TestLogoutDeletesSession(t *testing.T) {
	sessions := newFakeSessions()
	svc := NewAuthService(&fakeOAuth{}, sessions)

	cred, err := svc.Login(context.Background(), "abc")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), cred.AccessToken))

	_, err = svc.CredentialForToken(context.Background(), cred.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidSession)
}
