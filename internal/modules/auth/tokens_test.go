package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_TokenService_Issue_And_Verify(t *testing.T) {
	// Arrange
	tokens := NewTokenService([]byte("test-signing-key"), time.Hour, time.Hour)
	defer tokens.Stop()

	userID := uuid.New()

	// Act
	token, err := tokens.Issue(userID)
	require.NoError(t, err)

	verifiedID, err := tokens.Verify(token)

	// Assert
	require.NoError(t, err)
	require.Equal(t, userID, verifiedID)
}

func Test_TokenService_Verify_Fails_For_Invalidated_Token(t *testing.T) {
	// Arrange
	tokens := NewTokenService([]byte("test-signing-key"), time.Hour, time.Hour)
	defer tokens.Stop()

	token, err := tokens.Issue(uuid.New())
	require.NoError(t, err)

	// Act
	tokens.Invalidate(token)
	_, err = tokens.Verify(token)

	// Assert
	require.Error(t, err)
}

func Test_TokenService_Verify_Fails_For_Foreign_Signature(t *testing.T) {
	// Arrange
	tokens := NewTokenService([]byte("test-signing-key"), time.Hour, time.Hour)
	defer tokens.Stop()

	other := NewTokenService([]byte("different-key"), time.Hour, time.Hour)
	defer other.Stop()

	token, err := other.Issue(uuid.New())
	require.NoError(t, err)

	// Act
	_, err = tokens.Verify(token)

	// Assert
	require.Error(t, err)
}

func Test_TokenService_Verify_Fails_For_Garbage(t *testing.T) {
	// Arrange
	tokens := NewTokenService([]byte("test-signing-key"), time.Hour, time.Hour)
	defer tokens.Stop()

	// Act
	_, err := tokens.Verify("not-a-token")

	// Assert
	require.Error(t, err)
}
