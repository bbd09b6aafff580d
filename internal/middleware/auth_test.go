package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret string, perms, roles []string, exp time.Time) string {
	t.Helper()
	claims := JWTClaims{
		UserID:      "u-1",
		Name:        "Tester",
		Permissions: perms,
		Roles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequestID(), JWTAuth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		p := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "name": p.Name})
	})
	r.GET("/x", handlers...)
	return r
}

func get(r *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter()
	valid := signToken(t, testSecret, nil, nil, time.Now().Add(time.Hour))

	w := get(r, "/x", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40100")

	w = get(r, "/x", signToken(t, "other-secret", nil, nil, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/x", signToken(t, testSecret, nil, nil, time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/x", valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u-1")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// SSE 客户端通过 query 传 token
	w = get(r, "/x?token="+valid, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_SubjectFallback(t *testing.T) {
	r := newRouter()
	claims := JWTClaims{
		Name: "Sub Only",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	w := get(r, "/x", s)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u-sub")

	claims.Subject = ""
	s, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	w = get(r, "/x", s)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40103")
}

func TestPrincipal_Can(t *testing.T) {
	tests := []struct {
		name  string
		p     Principal
		perm  string
		allow bool
	}{
		{"explicit", Principal{Permissions: []string{PermWrite}}, PermWrite, true},
		{"wildcard", Principal{Permissions: []string{PermAll}}, PermExport, true},
		{"namespace wildcard", Principal{Permissions: []string{"crm:*"}}, PermExport, true},
		{"other namespace", Principal{Permissions: []string{"plm:*"}}, PermRead, false},
		{"read only", Principal{Permissions: []string{PermRead}}, PermWrite, false},
		{"purchaser grant", Principal{Roles: []string{RolePurchaser}}, PermExport, true},
		{"viewer grant", Principal{Roles: []string{RoleViewer}}, PermWrite, false},
		{"admin", Principal{Roles: []string{RoleAdmin}}, "crm:anything", true},
		{"nothing", Principal{}, PermRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allow, tt.p.Can(tt.perm))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	r := newRouter(RequirePermission(PermWrite))
	exp := time.Now().Add(time.Hour)

	assert.Equal(t, http.StatusOK, get(r, "/x", signToken(t, testSecret, []string{PermWrite}, nil, exp)).Code)
	assert.Equal(t, http.StatusOK, get(r, "/x", signToken(t, testSecret, []string{PermAll}, nil, exp)).Code)
	assert.Equal(t, http.StatusOK, get(r, "/x", signToken(t, testSecret, nil, []string{RolePurchaser}, exp)).Code)

	w := get(r, "/x", signToken(t, testSecret, []string{PermRead}, []string{RoleViewer}, exp))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40302")
}

func TestRequirePermission_WithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequirePermission(PermRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/x", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40300")
}

func TestRequireRole(t *testing.T) {
	r := newRouter(RequireRole(RoleAdmin))
	exp := time.Now().Add(time.Hour)

	assert.Equal(t, http.StatusOK, get(r, "/x", signToken(t, testSecret, nil, []string{RoleAdmin}, exp)).Code)
	// "*" 权限不等于管理员角色
	assert.Equal(t, http.StatusForbidden, get(r, "/x", signToken(t, testSecret, []string{PermAll}, nil, exp)).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/x", signToken(t, testSecret, nil, []string{RolePurchaser}, exp)).Code)

	r = newRouter(RequireRole(RolePurchaser))
	assert.Equal(t, http.StatusOK, get(r, "/x", signToken(t, testSecret, nil, []string{RoleAdmin}, exp)).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/x", signToken(t, testSecret, nil, []string{RoleViewer}, exp)).Code)
}
