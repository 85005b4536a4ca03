package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s3cret", Issuer: "booking-api"})
	userID := uuid.New()

	token, err := svc.Issue(userID, "ann@example.com")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService(Config{Secret: "one"}).Issue(uuid.New(), "")
	require.NoError(t, err)

	_, err = NewJWTService(Config{Secret: "two"}).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s3cret", TTL: time.Minute}).(*jwtService)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.Issue(uuid.New(), "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewJWTService(Config{Secret: "s3cret"}).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
