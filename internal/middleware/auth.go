package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CRM 权限
const (
	PermRead   = "crm:read"
	PermWrite  = "crm:write"
	PermExport = "crm:export"
	PermAll    = "*"
)

// CRM 角色
const (
	RoleAdmin     = "crm_admin" // 可执行级联删除，隐含全部角色与权限
	RolePurchaser = "purchaser"
	RoleViewer    = "viewer"
)

// 角色默认授予的权限，令牌中的 perms 在此基础上叠加
var rolePermissions = map[string][]string{
	RolePurchaser: {PermRead, PermWrite, PermExport},
	RoleViewer:    {PermRead},
}

const principalKey = "principal"

// JWTClaims JWT claims
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

// Principal 当前请求的操作人
type Principal struct {
	UserID      string
	Name        string
	Email       string
	Roles       []string
	Permissions []string
}

// HasRole 是否具备角色，管理员具备全部角色
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// Can 是否具备权限；支持 "*" 与 "crm:*" 通配以及角色授予
func (p *Principal) Can(perm string) bool {
	if p.HasRole(RoleAdmin) {
		return true
	}
	for _, granted := range p.Permissions {
		if matchPermission(granted, perm) {
			return true
		}
	}
	for _, r := range p.Roles {
		for _, granted := range rolePermissions[r] {
			if granted == perm {
				return true
			}
		}
	}
	return false
}

func matchPermission(granted, perm string) bool {
	if granted == PermAll || granted == perm {
		return true
	}
	if prefix, ok := strings.CutSuffix(granted, ":*"); ok {
		return strings.HasPrefix(perm, prefix+":")
	}
	return false
}

// CurrentPrincipal 取出 JWTAuth 写入的操作人，未认证时为nil
func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

func bearerToken(c *gin.Context) string {
	if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	// 回退到 query param（SSE 场景使用）
	return c.Query("token")
}

func abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

// JWTAuth JWT认证中间件
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			abort(c, http.StatusUnauthorized, 40103, "Invalid token claims")
			return
		}

		c.Set(principalKey, &Principal{
			UserID:      claims.UserID,
			Name:        claims.Name,
			Email:       claims.Email,
			Roles:       claims.Roles,
			Permissions: claims.Permissions,
		})
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// RequirePermission 权限检查中间件
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil {
			abort(c, http.StatusForbidden, 40300, "No permissions found")
			return
		}
		if !p.Can(perm) {
			abort(c, http.StatusForbidden, 40302, "Permission denied: "+perm)
			return
		}
		c.Next()
	}
}

// RequireRole 角色检查中间件
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil {
			abort(c, http.StatusForbidden, 40310, "No roles found")
			return
		}
		if !p.HasRole(role) {
			abort(c, http.StatusForbidden, 40312, "Role required: "+role)
			return
		}
		c.Next()
	}
}
