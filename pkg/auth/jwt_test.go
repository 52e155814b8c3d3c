package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Token_Round_Trip(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken("alice")
	req.NoError(err)

	claims, err := m.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
}

func Test_Expired_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", -time.Minute)

	token, err := m.GenerateToken("alice")
	req.NoError(err)

	_, err = m.ValidateToken(token)
	req.Error(err)
}

func Test_Wrong_Key_Is_Rejected(t *testing.T) {
	req := require.New(t)
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, err := issuer.GenerateToken("alice")
	req.NoError(err)

	_, err = verifier.ValidateToken(token)
	req.Error(err)
}

func Test_BearerToken_Sources(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	req.Equal("abc123", BearerToken(r))

	r = httptest.NewRequest("GET", "/ws?token=qp456", nil)
	req.Equal("qp456", BearerToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	req.Empty(BearerToken(r))
}
