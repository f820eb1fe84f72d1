package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"ghar-chat-service/internal/auth"
	"ghar-chat-service/internal/models"
	"ghar-chat-service/internal/repositories"
	"ghar-chat-service/internal/telemetry"
)

// AuthHandler issues session tokens for the mobile app's login and signup forms.
type AuthHandler struct {
	userRepo  repositories.UserRepository
	audit     *telemetry.AuditEmitter
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(userRepo repositories.UserRepository, audit *telemetry.AuditEmitter, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, audit: audit, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Signup registers a tenant or owner account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := strings.ToLower(req.Role)
	if role != models.RoleOwner {
		role = models.RoleTenant
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		return
	}

	user, err := h.userRepo.CreateUser(c.Request.Context(), req.Name, strings.ToLower(req.Email), string(hash), role)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "account created", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login verifies credentials and returns a session token plus the user object
// the app persists in its local store.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			h.audit.Emit(c.Request.Context(), "WARN", "login failed: unknown email", requestIDFromContext(c), nil)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.audit.Emit(c.Request.Context(), "WARN", "login failed: bad password", requestIDFromContext(c), &user.ID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, user.ID, user.Role, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "login succeeded", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
}

// Me returns the signed-in user's profile, backing the app's account screen.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userRepo.GetUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
