package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndAuthorize(t *testing.T) {
	v := NewJWTValidator("secret")
	token, err := v.GenerateToken("ptm", []string{ScopePower}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Authorize("Bearer "+token, ScopePower)
	require.NoError(t, err)
	assert.Equal(t, "ptm", claims.Service)

	_, err = v.Authorize(token, ScopePush)
	assert.ErrorIs(t, err, ErrMissingScope)
}

func TestValidateRejects(t *testing.T) {
	v := NewJWTValidator("secret")

	expired, err := v.GenerateToken("ptm", nil, -time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other, err := NewJWTValidator("other").GenerateToken("ptm", nil, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
