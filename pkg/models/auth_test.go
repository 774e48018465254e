package models

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthModel_SessionToken(t *testing.T) {
	m := NewAuthModel(testAppConfig(), logrus.New())

	token, err := m.GenerateSessionToken("session-1", "user-1")
	require.NoError(t, err)

	claims, err := m.VerifySessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionId)
	assert.Equal(t, "user-1", claims.UserId)
}

func TestAuthModel_RejectsOtherSecret(t *testing.T) {
	cnf := testAppConfig()
	cnf.Client.Secret = "another-secret-with-enough-length-0001"
	other := NewAuthModel(cnf, logrus.New())

	token, err := other.GenerateSessionToken("session-1", "user-1")
	require.NoError(t, err)

	m := NewAuthModel(testAppConfig(), logrus.New())
	_, err = m.VerifySessionToken(token)
	assert.Error(t, err)
}

func TestAuthModel_RejectsExpired(t *testing.T) {
	cnf := testAppConfig()
	validity := -2 * time.Minute
	cnf.Client.TokenValidity = &validity
	m := NewAuthModel(cnf, logrus.New())

	token, err := m.GenerateSessionToken("session-1", "user-1")
	require.NoError(t, err)

	_, err = m.VerifySessionToken(token)
	assert.ErrorIs(t, err, jwt.ErrExpired)
}
