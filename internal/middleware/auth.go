package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/models"
)

const userKey = "user"

// Headers trusted by HeaderAuth.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TokenVerifier verifies Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// CurrentUser returns the user set by the auth middleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

func claim(token *auth.Token, name string) string {
	s, _ := token.Claims[name].(string)
	return s
}

// UserFromToken builds the user from the standard Firebase claims.
func UserFromToken(token *auth.Token) models.User {
	u := models.User{
		ID:          token.UID,
		Email:       claim(token, "email"),
		DisplayName: claim(token, "name"),
		Avatar:      claim(token, "picture"),
		Provider:    token.Firebase.SignInProvider,
	}
	return u
}

// VerifyToken verifies the bearer ID token and stores the user in the context.
func VerifyToken(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			logger.Warn("Error verifying Firebase ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}
		c.Set(userKey, UserFromToken(token))
		c.Next()
	}
}

// HeaderAuth trusts the identity headers sent by the client. Development only.
func HeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: HeaderUserID + " header is required"})
			return
		}
		c.Set(userKey, models.User{
			ID:          uid,
			Email:       strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
			DisplayName: strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Provider:    "header",
		})
		c.Next()
	}
}
