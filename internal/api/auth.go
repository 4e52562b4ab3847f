package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mealdeal/internal/auth"
	"mealdeal/internal/logger"
	"mealdeal/internal/user"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type googleLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register creates a user with a hashed password.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	u, err := h.UserStore.Create(ctx, req.Email, &hash, nil)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			errorJSON(c, http.StatusBadRequest, "email already registered")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusCreated, u)
}

// Token is the password login endpoint; on success it issues a bearer token.
func (h *Handler) Token(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	u, err := h.UserStore.ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			errorJSON(c, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	if u.HashedPassword == nil || !auth.CheckPassword(*u.HashedPassword, req.Password) {
		errorJSON(c, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	h.issueToken(c, u)
}

// GoogleLogin verifies a Google ID token and either attaches its subject id
// to an email-matched user or creates a new password-less user, then issues
// the normal bearer token.
func (h *Handler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 10*time.Second)
	defer cancel()

	identity, err := h.GoogleVerifier.Verify(ctx, req.Token)
	if err != nil {
		logger.Warn("google token verification failed", zap.Error(err))
		errorJSON(c, http.StatusUnauthorized, "invalid google token")
		return
	}

	u, err := h.UserStore.ByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		u, err = h.UserStore.Create(ctx, identity.Email, nil, &identity.Subject)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "database error")
			return
		}
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	default:
		if u.GoogleUserID == nil {
			if err := h.UserStore.AttachGoogleID(ctx, u.ID, identity.Subject); err != nil {
				errorJSON(c, http.StatusInternalServerError, "database error")
				return
			}
		}
	}

	h.issueToken(c, u)
}

// GetProfile returns the authenticated user's profile.
func (h *Handler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// UpdateProfile applies a partial profile update.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var patch user.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if patch.HouseholdSize != nil && *patch.HouseholdSize < 1 {
		errorJSON(c, http.StatusBadRequest, "household_size must be at least 1")
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	u, err := h.UserStore.UpdateProfile(ctx, currentUser(c).ID, patch)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *Handler) issueToken(c *gin.Context, u *user.User) {
	token, err := auth.GenerateToken(u.ID, u.Email, h.jwtSecret)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}
