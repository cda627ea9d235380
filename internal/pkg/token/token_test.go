package token

import (
	"testing"
	"time"

	"loan-manager/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	signed, err := Issue("secret", "user-1", time.Hour, time.Now())
	require.NoError(t, err)

	userID, err := Parse("secret", signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParse_Rejects(t *testing.T) {
	expired, err := Issue("secret", "user-1", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = Parse("secret", expired)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	valid, err := Issue("secret", "user-1", time.Hour, time.Now())
	require.NoError(t, err)
	_, err = Parse("other-secret", valid)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("secret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_EmptySecret(t *testing.T) {
	_, err := Issue("", "user-1", time.Hour, time.Now())
	assert.Error(t, err)
}
