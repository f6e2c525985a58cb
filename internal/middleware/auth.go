package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AuthContextKey = "bridge_subject"
	RoleContextKey = "bridge_role"
)

// Bridge roles. The page agent pushes snapshots and answers page requests;
// the controller (popup, worker) drives captures.
const (
	RolePage       = "page"
	RoleBackground = "background"
	RoleController = "controller"
)

// Claims represents bridge JWT claims
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// BridgeAuth signs and validates the tokens exchanged between contexts
type BridgeAuth struct {
	secret []byte
}

// NewBridgeAuth creates an authenticator; an empty secret disables checks
func NewBridgeAuth(secret string) *BridgeAuth {
	return &BridgeAuth{secret: []byte(secret)}
}

// Enabled reports whether tokens are required
func (a *BridgeAuth) Enabled() bool {
	return len(a.secret) > 0
}

// GenerateToken issues a token for subject acting in role
func (a *BridgeAuth) GenerateToken(subject, role string, expiresIn time.Duration) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates a raw token
func (a *BridgeAuth) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Require validates the bearer token and, when roles are given, that the
// token carries one of them.
func (a *BridgeAuth) Require(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		claims, err := a.Parse(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if len(roles) > 0 && !contains(roles, claims.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not allowed"})
			c.Abort()
			return
		}

		c.Set(AuthContextKey, claims.Subject)
		c.Set(RoleContextKey, claims.Role)
		c.Next()
	}
}

// GetSubject retrieves the authenticated subject from the context
func GetSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get(AuthContextKey)
	if !exists {
		return "", false
	}

	subjectStr, ok := subject.(string)
	return subjectStr, ok
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
