package server

import (
	"fmt"
	"strings"
	"time"

	"bidvault/internal/auth"
	"bidvault/internal/biddingerrors"
	"bidvault/services/bidding/helpers"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if userID, ok := helpers.CurrentUser(c); ok {
		fields["user_id"] = userID
	}
	utils.Info("HTTP Request", fields)
}

// RequireAuth resolves the bearer token to a caller and rejects the request otherwise
func RequireAuth(identity auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			helpers.RespondError(c, "RequireAuth", fmt.Errorf("%w - missing bearer token", biddingerrors.ErrUnauthorized), nil)
			return
		}

		userID, err := identity.Authenticate(token)
		if err != nil {
			helpers.RespondError(c, "RequireAuth", err, nil)
			return
		}

		c.Set(helpers.UserIDKey, userID)
		c.Next()
	}
}
