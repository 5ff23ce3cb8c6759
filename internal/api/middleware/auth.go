package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/directprint/agent/internal/config"
)

// AuthMiddleware guards the API with a configured key. Callers either
// send the key on every request or trade it for a short-lived JWT via the
// token endpoint. Disabled auth is a no-op passthrough, the default for a
// loopback-only agent.
type AuthMiddleware struct {
	cfg    config.AuthConfig
	secret []byte
}

type Claims struct {
	jwt.RegisteredClaims
	Authenticated bool `json:"authenticated"`
}

type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthMiddleware(cfg config.AuthConfig) (*AuthMiddleware, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	// The signing secret is per-process: tokens do not outlive the agent,
	// which holds no durable state anyway.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return &AuthMiddleware{cfg: cfg, secret: secret}, nil
}

func (a *AuthMiddleware) verifyKey(key string) bool {
	if key == "" {
		return false
	}
	if a.cfg.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.cfg.APIKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.cfg.APIKey), []byte(key)) == 1
}

func (a *AuthMiddleware) generateToken() (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.cfg.TokenTTL)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "directprint-agent",
		},
		Authenticated: true,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	return token, expires, err
}

func (a *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// TokenHandler exchanges the API key for a bearer token.
func (a *AuthMiddleware) TokenHandler(c *gin.Context) {
	if !a.cfg.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "auth is not enabled"})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if !a.verifyKey(req.APIKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	token, expires, err := a.generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}

// RequireAuth accepts either X-Api-Key or a bearer JWT.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.cfg.Enabled {
			c.Next()
			return
		}

		if a.verifyKey(c.GetHeader("X-Api-Key")) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := a.validateToken(tokenString); err == nil && claims.Authenticated {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}
