package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func identityRouter(tokenManager *jwt.TokenManager) (*gin.Engine, *models.Identity) {
	var captured models.Identity
	router := gin.New()
	router.Use(IdentityMiddleware(tokenManager, ""))
	router.GET("/test", func(c *gin.Context) {
		captured = GetIdentity(c)
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestIdentityMiddleware_PlainCookies(t *testing.T) {
	router, captured := identityRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: "firstname", Value: "Jane"})
	req.AddCookie(&http.Cookie{Name: "lastname", Value: "null"})
	req.AddCookie(&http.Cookie{Name: "username", Value: "jdoe"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Identity{FirstName: "Jane", LastName: "null", Username: "jdoe"}, *captured)
}

func TestIdentityMiddleware_NoCookies(t *testing.T) {
	router, captured := identityRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Identity{}, *captured)
}

func TestIdentityMiddleware_SessionToken(t *testing.T) {
	tm := jwt.NewTokenManager("secret", "test", 1)
	token, err := tm.GenerateToken("jdoe", "Jane", "Doe")
	require.NoError(t, err)

	router, captured := identityRouter(tm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: token})
	// plain cookies are ignored once sessions are signed
	req.AddCookie(&http.Cookie{Name: "username", Value: "mallory"})
	router.ServeHTTP(w, req)

	assert.Equal(t, models.Identity{FirstName: "Jane", LastName: "Doe", Username: "jdoe"}, *captured)
}

func TestIdentityMiddleware_InvalidSessionIsAnonymous(t *testing.T) {
	router, captured := identityRouter(jwt.NewTokenManager("secret", "test", 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: "garbage"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Identity{}, *captured)
	assert.Contains(t, w.Header().Get("Set-Cookie"), DefaultSessionCookieName+"=;")
}

func TestGetIdentity_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, models.Identity{}, GetIdentity(c))
}
