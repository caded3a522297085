package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeFleck/sensorvision-sub002/internal/auth"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

const claimsKey = "authClaims"

// requireAuth validates the bearer token and stores its claims on the
// request context.
func requireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			status := gin.H{"error": "invalid token"}
			if errors.Is(err, auth.ErrExpiredToken) {
				status = gin.H{"error": "token expired"}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, status)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireAdmin gates a route group to admin accounts. Must run after
// requireAuth.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := currentClaims(c); claims == nil || claims.Role != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.Claims)
	return claims
}

// requestLog writes one line per request in the daemon log.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("http: %s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// observeRequests feeds the request duration histogram. The route
// template is used rather than the raw path so ids do not explode the
// label space.
func observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, path,
			strconv.Itoa(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}
