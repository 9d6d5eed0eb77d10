package middleware

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/solite/internal/auth"
	"github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/response"
)

const (
	CtxClaimsKey      = "authClaims"
	CtxUserIDKey      = "userID"
	CtxBearerTokenKey = "bearerToken"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*iauth.Claims, error)
}

type authOptions struct {
	queryParam string
}

// AuthOption customises Auth.
type AuthOption func(*authOptions)

// AllowQueryToken accepts the token from the named query parameter when no
// Authorization header is sent. Browsers cannot set headers on websocket upgrades.
func AllowQueryToken(param string) AuthOption {
	return func(o *authOptions) {
		o.queryParam = param
	}
}

// Auth enforces JWT authentication using the supplied validator.
func Auth(jwt TokenValidator, opts ...AuthOption) gin.HandlerFunc {
	var options authOptions
	for _, opt := range opts {
		opt(&options)
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && options.queryParam != "" {
			token = strings.TrimSpace(c.Query(options.queryParam))
			ok = token != ""
		}
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			message := "Invalid token"
			if stderrors.Is(err, iauth.ErrExpiredToken) {
				message = "Token expired"
			}
			response.Error(c, errors.ErrUnauthorized.WithMessage(message).WithInternal(err))
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxBearerTokenKey, token)

		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(CtxUserIDKey)
	return id, id != ""
}

// Claims returns the validated token claims, if any.
func Claims(c *gin.Context) (*iauth.Claims, bool) {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*iauth.Claims)
	return claims, ok && claims != nil
}

// BearerToken returns the raw token the request was authenticated with.
func BearerToken(c *gin.Context) string {
	return c.GetString(CtxBearerTokenKey)
}

func bearerToken(header string) (string, bool) {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
