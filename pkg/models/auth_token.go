package models

import (
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// SessionTokenClaims scopes a token to one speech session.
type SessionTokenClaims struct {
	SessionId string `json:"session_id"`
	UserId    string `json:"user_id"`
}

// GenerateSessionToken signs an HS256 token for sessionId with the client secret.
func (m *AuthModel) GenerateSessionToken(sessionId, userId string) (string, error) {
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(m.app.Client.Secret)},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	cl := jwt.Claims{
		Issuer:    m.app.Client.ApiKey,
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(*m.app.Client.TokenValidity)),
		Subject:   userId,
	}
	c := &SessionTokenClaims{
		SessionId: sessionId,
		UserId:    userId,
	}

	return jwt.Signed(sig).Claims(cl).Claims(c).Serialize()
}

// VerifySessionToken checks signature, issuer and expiry.
func (m *AuthModel) VerifySessionToken(token string) (*SessionTokenClaims, error) {
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, err
	}

	out := jwt.Claims{}
	claims := new(SessionTokenClaims)
	if err = tok.Claims([]byte(m.app.Client.Secret), &out, claims); err != nil {
		return nil, err
	}

	if err = out.Validate(jwt.Expected{Issuer: m.app.Client.ApiKey, Time: time.Now().UTC()}); err != nil {
		return nil, err
	}
	if claims.SessionId == "" {
		return nil, errors.New("token has no session")
	}

	return claims, nil
}
