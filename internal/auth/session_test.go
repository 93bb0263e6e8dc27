package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperlink/whisperlink-backend/internal/auth"
	"github.com/whisperlink/whisperlink-backend/internal/config"
)

func testManager(secret string) *auth.Manager {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = secret
	cfg.Auth.Issuer = "whisperlink-test"
	cfg.Auth.Provider = "twitter.com"
	return auth.NewManager(cfg)
}

func TestMintAndVerifyRoundtrip(t *testing.T) {
	m := testManager("secret-a")

	token, err := m.Mint(auth.Session{
		UID:            "u1",
		SignInProvider: "twitter.com",
		ScreenName:     "alice",
		ProviderUserID: "x123",
	})
	require.NoError(t, err)

	sess, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UID)
	assert.Equal(t, "twitter.com", sess.SignInProvider)
	assert.Equal(t, "alice", sess.ScreenName)
	assert.Equal(t, "x123", sess.ProviderUserID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := testManager("secret-a").Mint(auth.Session{UID: "u1", SignInProvider: "twitter.com"})
	require.NoError(t, err)

	_, err = testManager("secret-b").Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := testManager("secret-a").Verify("not-a-token")
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	assert.Equal(t, "twitter.com", testManager("s").Provider())
}
