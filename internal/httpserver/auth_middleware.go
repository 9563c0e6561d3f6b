package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/auth"
)

const ctxSubjectKey = "auth_subject"

func RequireUser(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}

		claims, ok := auth.VerifyToken(secret, token, time.Now())
		if !ok {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Set(ctxSubjectKey, claims.Subject)
		c.Next()
	}
}

// RequireIngestKey gates the write endpoints on a shared key. An empty
// configured key leaves ingestion open.
func RequireIngestKey(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader("X-Ingest-Key"))
		if got == "" {
			authz := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				got = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
