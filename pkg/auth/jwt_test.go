package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager(testSecret, time.Hour, "salescrm")
	require.NoError(t, err)

	token, exp, err := m.GenerateToken("u1", "rep@example.com", "Rep One", "sales_rep")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "rep@example.com", claims.Email)
	assert.Equal(t, "sales_rep", claims.Role)
}

func TestValidateToken_Expired(t *testing.T) {
	m, err := NewTokenManager(testSecret, time.Minute, "")
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := m.GenerateToken("u1", "a@b.co", "", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	a, _ := NewTokenManager(testSecret, time.Hour, "")
	b, _ := NewTokenManager("another-secret-of-enough-length", time.Hour, "")

	token, _, err := a.GenerateToken("u1", "a@b.co", "", "")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsNoneAlg(t *testing.T) {
	m, _ := NewTokenManager(testSecret, time.Hour, "")
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateToken(s)
	assert.Error(t, err)
}

func TestNewTokenManager_ShortSecret(t *testing.T) {
	_, err := NewTokenManager("short", time.Hour, "")
	assert.Error(t, err)
}
