package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ghar-chat-service/internal/auth"
	"ghar-chat-service/internal/mocks"
	"ghar-chat-service/internal/models"
	"ghar-chat-service/internal/repositories"
	"ghar-chat-service/internal/telemetry"
)

const testJWTSecret = "test-secret"

func setupAuthRouter() (*gin.Engine, *mocks.UserRepositoryMock, *mocks.PublisherMock) {
	gin.SetMode(gin.TestMode)

	userRepo := new(mocks.UserRepositoryMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "ghar-chat-service", "test")
	handler := NewAuthHandler(userRepo, audit, testJWTSecret, time.Hour)

	router := gin.New()
	router.POST("/signup", handler.Signup)
	router.POST("/login", handler.Login)
	router.GET("/me", func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	}, handler.Me)
	return router, userRepo, publisher
}

func TestSignup(t *testing.T) {
	router, userRepo, publisher := setupAuthRouter()

	created := models.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: models.RoleTenant}
	userRepo.On("CreateUser", mock.Anything, "Asha", "asha@example.com",
		mock.AnythingOfType("string"), models.RoleTenant).Return(created, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(
		`{"name": "Asha", "email": "Asha@Example.com", "password": "secret1", "role": "landlord"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	userRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSignupOwnerRolePreserved(t *testing.T) {
	router, userRepo, publisher := setupAuthRouter()

	userRepo.On("CreateUser", mock.Anything, "Ravi", "ravi@example.com",
		mock.AnythingOfType("string"), models.RoleOwner).
		Return(models.User{ID: "u2", Role: models.RoleOwner}, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(
		`{"name": "Ravi", "email": "ravi@example.com", "password": "secret1", "role": "Owner"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	userRepo.AssertExpectations(t)
}

func TestSignupDuplicateEmail(t *testing.T) {
	router, userRepo, _ := setupAuthRouter()

	userRepo.On("CreateUser", mock.Anything, "Asha", "asha@example.com",
		mock.AnythingOfType("string"), models.RoleTenant).
		Return(models.User{}, errors.New("duplicate key")).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(
		`{"name": "Asha", "email": "asha@example.com", "password": "secret1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSignupInvalidPayload(t *testing.T) {
	router, _, _ := setupAuthRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(
		`{"name": "Asha", "email": "not-an-email", "password": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	router, userRepo, publisher := setupAuthRouter()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := models.User{ID: "u1", Name: "Asha", Email: "asha@example.com",
		Role: models.RoleTenant, PasswordHash: string(hash)}
	userRepo.On("GetUserByEmail", mock.Anything, "asha@example.com").Return(stored, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(
		`{"email": "asha@example.com", "password": "secret1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool        `json:"success"`
		Token   string      `json:"token"`
		User    models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "u1", resp.User.ID)

	// The token must round-trip through our own validator.
	userID, err := auth.ValidateToken(testJWTSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestLoginWrongPassword(t *testing.T) {
	router, userRepo, publisher := setupAuthRouter()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := models.User{ID: "u1", Email: "asha@example.com", PasswordHash: string(hash)}
	userRepo.On("GetUserByEmail", mock.Anything, "asha@example.com").Return(stored, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(
		`{"email": "asha@example.com", "password": "wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	router, userRepo, _ := setupAuthRouter()

	stored := models.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: models.RoleTenant}
	userRepo.On("GetUser", mock.Anything, "u1").Return(stored, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "Asha", resp.User.Name)
	userRepo.AssertExpectations(t)
}

func TestMeUnknownUser(t *testing.T) {
	router, userRepo, _ := setupAuthRouter()

	userRepo.On("GetUser", mock.Anything, "u1").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	router, userRepo, publisher := setupAuthRouter()

	userRepo.On("GetUserByEmail", mock.Anything, "ghost@example.com").
		Return(models.User{}, repositories.ErrUserNotFound).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(
		`{"email": "ghost@example.com", "password": "whatever"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
