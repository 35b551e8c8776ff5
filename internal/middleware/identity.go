package middleware

import (
	"net/http"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/jwt"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultSessionCookieName is the session cookie read when none is configured
	DefaultSessionCookieName = "session"

	// IdentityContextKey is the key used to store the identity in context
	IdentityContextKey = "identity"

	firstNameCookie = "firstname"
	lastNameCookie  = "lastname"
	usernameCookie  = "username"
)

// IdentityMiddleware resolves who is posting and stores it in the context.
// With a token manager the signed session cookie is used; without one the plain
// name cookies are read. It never rejects a request: an unknown visitor gets an
// empty identity.
func IdentityMiddleware(tokenManager *jwt.TokenManager, cookieName string) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = DefaultSessionCookieName
	}

	return func(c *gin.Context) {
		var identity models.Identity
		if tokenManager != nil {
			identity = identityFromSession(c, tokenManager, cookieName)
		} else {
			identity = identityFromCookies(c)
		}

		c.Set(IdentityContextKey, identity)
		c.Next()
	}
}

func identityFromSession(c *gin.Context, tokenManager *jwt.TokenManager, cookieName string) models.Identity {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == "" {
		return models.Identity{}
	}

	claims, err := tokenManager.ValidateToken(cookie)
	if err != nil {
		logger.Debug("Ignoring invalid session cookie", zap.Error(err))
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, "", -1, "/", "", false, true)
		return models.Identity{}
	}

	return models.Identity{
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Username:  claims.Username,
	}
}

func identityFromCookies(c *gin.Context) models.Identity {
	read := func(name string) string {
		value, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		return value
	}

	return models.Identity{
		FirstName: read(firstNameCookie),
		LastName:  read(lastNameCookie),
		Username:  read(usernameCookie),
	}
}

// GetIdentity returns the identity stored by IdentityMiddleware, or an empty one
func GetIdentity(c *gin.Context) models.Identity {
	val, exists := c.Get(IdentityContextKey)
	if !exists {
		return models.Identity{}
	}
	identity, _ := val.(models.Identity)
	return identity
}
