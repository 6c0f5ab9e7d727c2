package api

import (
	"errors"
	"net/http"

	"gatherhub/backend/internal/models"
	"gatherhub/backend/internal/repository"
	"gatherhub/backend/pkg/jwt"
	"gatherhub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues chat access tokens against local accounts. In
// deployments with an external identity provider this endpoint is
// disabled and tokens arrive already minted.
type AuthHandler struct {
	users  repository.UserRepository
	tokens *jwt.Service
	logger *logger.Logger
}

func NewAuthHandler(users repository.UserRepository, tokens *jwt.Service, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Login exchanges email/password for a signed token
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("error binding JSON for login", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.logger.Error("error during login", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		return
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Name, user.AvatarURL)
	if err != nil {
		h.logger.Error("error generating token", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		return
	}

	h.logger.Info("user logged in", "userID", user.ID, "email", user.Email)

	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}
