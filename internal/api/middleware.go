package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mealdeal/internal/auth"
	"mealdeal/internal/user"
)

const userContextKey = "currentUser"

// RequireAuth validates the bearer token and resolves it back to a user
// record, aborting with 401 otherwise.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errorJSON(c, http.StatusUnauthorized, "authorization header is missing")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			errorJSON(c, http.StatusUnauthorized, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(tokenString, h.jwtSecret)
		if err != nil {
			errorJSON(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		u, err := h.UserStore.ByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				errorJSON(c, http.StatusUnauthorized, "unknown user")
			} else {
				errorJSON(c, http.StatusInternalServerError, "database error")
			}
			c.Abort()
			return
		}

		c.Set(userContextKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *user.User {
	u, _ := c.MustGet(userContextKey).(*user.User)
	return u
}
