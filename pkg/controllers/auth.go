package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models"
)

// AuthController holds dependencies for auth-related handlers.
type AuthController struct {
	AppConfig *config.AppConfig
	AuthModel *models.AuthModel
}

func NewAuthController(config *config.AppConfig, authModel *models.AuthModel) *AuthController {
	return &AuthController{
		AppConfig: config,
		AuthModel: authModel,
	}
}

// HandleAuthHeaderCheck is a middleware to check API-KEY & HASH-SIGNATURE.
func (ac *AuthController) HandleAuthHeaderCheck(c *fiber.Ctx) error {
	apiKey := c.Get("API-KEY", "")
	signature := c.Get("HASH-SIGNATURE", "")
	body := c.Body()

	if apiKey != ac.AppConfig.Client.ApiKey {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "invalid API key")
	}
	if signature == "" {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "hash signature value required")
	}

	mac := hmac.New(sha256.New, []byte(ac.AppConfig.Client.Secret))
	mac.Write(body)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expectedSignature), []byte(signature)) != 1 {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "can't verify provided information")
	}

	return c.Next()
}

// HandleVerifyHeaderToken is a middleware to verify the session token.
// The token may come as Authorization header or, for EventSource clients,
// as the token query parameter.
func (ac *AuthController) HandleVerifyHeaderToken(c *fiber.Ctx) error {
	authToken := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if authToken == "" {
		authToken = c.Query("token")
	}

	if authToken == "" {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "auth header missing")
	}

	claims, err := ac.AuthModel.VerifySessionToken(authToken)
	if err != nil {
		c.Status(fiber.StatusUnauthorized)
		errMsg := "invalid token"
		if errors.Is(err, jwt.ErrExpired) {
			errMsg = "token expired"
		}
		return sendCommonResponse(c, false, errMsg)
	}

	c.Locals("sessionId", claims.SessionId)
	c.Locals("userId", claims.UserId)

	return c.Next()
}
