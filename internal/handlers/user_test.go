package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func setupUserRouter(handler *UserHandler, ident *models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if ident != nil {
			c.Set("identity", *ident)
		}
		c.Next()
	})
	r.POST("/users/sync", handler.Sync)
	r.GET("/users/me", handler.Me)
	r.GET("/users/search", handler.Search)
	r.POST("/users/status", handler.SetStatus)
	return r
}

func TestSyncCreatesProfile(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	ident := models.Identity{Subject: "sub-1", DisplayName: "Alice", Email: "alice@example.com"}
	router := setupUserRouter(handler, &ident)

	userRepo.On("ResolveOrCreate", mock.Anything, ident).
		Return(models.User{ID: 1, DisplayName: "Alice", Email: "alice@example.com"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/users/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "Alice", user.DisplayName)
	userRepo.AssertExpectations(t)
}

func TestSyncUnauthenticated(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), nil)
	router := setupUserRouter(handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/users/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	router := setupUserRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").
		Return(models.User{ID: 1, DisplayName: "Alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "Alice", user.DisplayName)
	userRepo.AssertExpectations(t)
}

func TestMeUnauthenticatedReturnsNull(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), nil)
	router := setupUserRouter(handler, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", rec.Body.String())
}

func TestMeUnknownSubjectReturnsNull(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	router := setupUserRouter(handler, &models.Identity{Subject: "sub-ghost"})

	userRepo.On("GetBySubject", mock.Anything, "sub-ghost").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", rec.Body.String())
	userRepo.AssertExpectations(t)
}

func TestSearchExcludesCaller(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	router := setupUserRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	userRepo.On("Search", mock.Anything, 1, "bob").
		Return([]models.User{{ID: 2, DisplayName: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, 2, resp.Users[0].ID)
	userRepo.AssertExpectations(t)
}

func TestSearchUnauthenticatedReturnsEmpty(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), nil)
	router := setupUserRouter(handler, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
}

func TestSetStatusOnline(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	router := setupUserRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	userRepo.On("SetOnlineStatus", mock.Anything, 1, true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/users/status", bytes.NewBufferString(`{"is_online":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestSetStatusUnauthenticatedNoOp(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil)
	router := setupUserRouter(handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/users/status", bytes.NewBufferString(`{"is_online":false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	userRepo.AssertNotCalled(t, "SetOnlineStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatusMissingFlag(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), nil)
	router := setupUserRouter(handler, &models.Identity{Subject: "sub-1"})

	req := httptest.NewRequest(http.MethodPost, "/users/status", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
