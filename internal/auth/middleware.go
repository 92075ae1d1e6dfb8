package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/users"
)

type Options struct {
	// JWTSecret enables HS256 bearer verification. Empty trusts X-User-Id.
	JWTSecret string
}

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	jwt.RegisteredClaims
}

// WithUser resolves the acting user, records their contact details in dir
// and stores the id under CtxUserID.
func WithUser(dir users.Directory, opts Options, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := identify(c, opts)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
			c.Abort()
			return
		}

		if _, err := dir.EnsureUser(c.Request.Context(), u); err != nil {
			logger.FromContext(c.Request.Context(), log).Error("ensure user failed", "user_id", u.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user failed"})
			c.Abort()
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Next()
	}
}

func identify(c *gin.Context, opts Options) (users.UpsertUser, error) {
	if opts.JWTSecret == "" {
		id := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if id == "" {
			return users.UpsertUser{}, errors.New("missing X-User-Id header")
		}
		return users.UpsertUser{
			ID:             id,
			Email:          strings.TrimSpace(c.GetHeader("X-User-Email")),
			DisplayName:    strings.TrimSpace(c.GetHeader("X-User-Name")),
			WhatsAppNumber: strings.TrimSpace(c.GetHeader("X-User-WhatsApp")),
		}, nil
	}

	token := extractToken(c)
	if token == "" {
		return users.UpsertUser{}, errors.New("missing authorization token")
	}
	claims, err := ParseToken(token, opts.JWTSecret)
	if err != nil {
		return users.UpsertUser{}, errors.New("invalid token")
	}
	return users.UpsertUser{
		ID:             claims.Subject,
		Email:          claims.Email,
		DisplayName:    claims.Name,
		WhatsAppNumber: claims.WhatsApp,
	}, nil
}

// ParseToken verifies an HS256 token and requires a subject.
func ParseToken(token, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// SignToken issues an HS256 token. Used by tooling and tests.
func SignToken(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
