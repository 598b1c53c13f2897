package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret-0123456789abcdef"

func router(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		name := "anonymous"
		if claims := util.GetUserFromContext(c); claims != nil {
			name = claims.Username
		}
		c.String(http.StatusOK, name)
	})
	r.GET("/", handlers...)
	return r
}

func tokenFor(t *testing.T, role model.UserRole, key string) string {
	u := &model.User{Username: "user-" + string(role), Role: role}
	u.ID = "id-1"
	tok, err := util.GenerateJWT(u, key, time.Hour)
	require.NoError(t, err)
	return tok
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRole(t *testing.T) {
	r := router(AuthMiddleware(secret), RoleMiddleware(model.Admin))

	assert.Equal(t, http.StatusUnauthorized, get(r, "/", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/", tokenFor(t, model.Admin, "another-secret-another-secret-xx")).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/", tokenFor(t, model.Candidate, secret)).Code)

	w := get(r, "/", tokenFor(t, model.Admin, secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-admin", w.Body.String())

	w = get(r, "/?token="+tokenFor(t, model.Admin, secret), "")
	assert.Equal(t, http.StatusOK, w.Code, "query tokens serve websocket clients")
}

func TestTryAuth(t *testing.T) {
	r := router(TryAuthMiddleware(secret))

	assert.Equal(t, "anonymous", get(r, "/", "").Body.String())
	assert.Equal(t, "anonymous", get(r, "/", "garbage").Body.String())
	assert.Equal(t, "user-candidate", get(r, "/", tokenFor(t, model.Candidate, secret)).Body.String())
}
