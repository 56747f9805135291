package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"moneycase/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimsKey = "claims"

	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// JWTClaims are the custom claims embedded in every operator token.
// BranchID, when set, restricts the operator to that branch's routes.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	BranchID *int64 `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Operator is the identity recorded as OpenedBy / ClosedBy.
func (c *JWTClaims) Operator() string {
	if c.Username != "" {
		return c.Username
	}
	return c.UserID
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.CodeUnauthorized, "authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid || claims.Operator() == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.CodeUnauthorized, "invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(apierror.CodeForbidden, "insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RequireBranchAccess rejects branch-restricted tokens on other branches' routes.
// It reads the :branch_id path parameter; routes without it pass through.
func RequireBranchAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		raw := c.Param("branch_id")
		if claims == nil || claims.BranchID == nil || raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && id != *claims.BranchID {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(apierror.CodeForbidden, "token is restricted to another branch"))
			return
		}
		c.Next()
	}
}

// GetClaims retrieves typed claims from the Gin context; nil when unauthenticated.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
