package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"notify_poller/internal/http/resp"
)

const (
	contextKeyUserID = "user_id"
	headerKeyUserID  = "X-User-ID"
	tokenIssuer      = "notify-store"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// GenerateToken signs an HS256 token for userID valid for ttl.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// JWTAuth verifies the bearer token and stores its user id on the context.
// A request whose X-User-ID header names a different user is rejected.
func JWTAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			unauthorized(c, "bearer token required")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID == "" {
			logger.Warn("token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			unauthorized(c, "invalid token")
			return
		}

		if header := c.GetHeader(headerKeyUserID); header != "" && header != claims.UserID {
			unauthorized(c, "user id does not match token")
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

func unauthorized(c *gin.Context, message string) {
	resp.Error(c, http.StatusUnauthorized, resp.CodeUnauthorized, message)
}
