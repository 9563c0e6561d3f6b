package query

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/auth"
)

const dashboardSubject = "dashboard"

// LoginHandler exchanges the dashboard password for a signed token. The
// deployment is single tenant: one password hash from the environment,
// no user table.
func LoginHandler(passwordHash string, authSecret []byte, tokenTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(authSecret) == 0 || passwordHash == "" {
			respondErr(c, http.StatusServiceUnavailable, "auth not configured")
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		if !auth.CheckPassword(passwordHash, req.Password) {
			respondErr(c, http.StatusUnauthorized, "invalid credentials")
			return
		}

		expiresAt := time.Now().Add(tokenTTL)
		token, err := auth.SignToken(authSecret, dashboardSubject, expiresAt)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{
			"token":      token,
			"expires_at": expiresAt.UTC().Unix(),
		})
	}
}
