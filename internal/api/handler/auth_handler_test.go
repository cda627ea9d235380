package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-manager/internal/api/handler"
	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/config"
	"loan-manager/internal/domain/user"
	"loan-manager/internal/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var authCfg = config.AuthConfig{
	Enabled:    true,
	JWTSecret:  "testsecret",
	TokenTTL:   time.Hour,
	CookieName: "auth-session",
}

func setupAuthHandler() (*handler.AuthHandler, *MockUserService) {
	svc := new(MockUserService)
	return handler.NewAuthHandler(svc, authCfg, discardLogger), svc
}

func lender() *user.User {
	return &user.User{ID: "user-1", Email: "lender@example.com", Name: "Lender", PasswordHash: "hash", CreatedAt: fixedNow}
}

func TestSignup(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h, svc := setupAuthHandler()
		svc.On("Signup", mock.Anything, "lender@example.com", "s3cretpass", "Lender").Return(lender(), nil).Once()

		rec := httptest.NewRecorder()
		h.Signup(rec, newRequest(http.MethodPost, "/auth/signup",
			dto.SignupRequest{Email: "lender@example.com", Password: "s3cretpass", Name: "Lender"}, "", nil))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hash")
	})

	t.Run("short password", func(t *testing.T) {
		h, _ := setupAuthHandler()
		rec := httptest.NewRecorder()
		h.Signup(rec, newRequest(http.MethodPost, "/auth/signup",
			dto.SignupRequest{Email: "lender@example.com", Password: "short", Name: "Lender"}, "", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("email taken", func(t *testing.T) {
		h, svc := setupAuthHandler()
		svc.On("Signup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, user.ErrEmailTaken).Once()

		rec := httptest.NewRecorder()
		h.Signup(rec, newRequest(http.MethodPost, "/auth/signup",
			dto.SignupRequest{Email: "lender@example.com", Password: "s3cretpass", Name: "Lender"}, "", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Run("sets the session cookie", func(t *testing.T) {
		h, svc := setupAuthHandler()
		svc.On("Authenticate", mock.Anything, "lender@example.com", "s3cretpass").Return(lender(), nil).Once()

		rec := httptest.NewRecorder()
		h.Login(rec, newRequest(http.MethodPost, "/auth/login",
			dto.LoginRequest{Email: "lender@example.com", Password: "s3cretpass"}, "", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoginResponse
		require.NoError(t, decodeBody(rec, &resp))

		userID, err := token.Parse(authCfg.JWTSecret, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "auth-session", cookies[0].Name)
		assert.Equal(t, resp.Token, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("bad credentials", func(t *testing.T) {
		h, svc := setupAuthHandler()
		svc.On("Authenticate", mock.Anything, "lender@example.com", "wrongpass").Return(nil, user.ErrInvalidCredentials).Once()

		rec := httptest.NewRecorder()
		h.Login(rec, newRequest(http.MethodPost, "/auth/login",
			dto.LoginRequest{Email: "lender@example.com", Password: "wrongpass"}, "", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutAndMe(t *testing.T) {
	h, svc := setupAuthHandler()

	rec := httptest.NewRecorder()
	h.Logout(rec, newRequest(http.MethodPost, "/auth/logout", nil, "user-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)

	svc.On("GetUser", mock.Anything, "user-1").Return(lender(), nil).Once()
	rec = httptest.NewRecorder()
	h.Me(rec, newRequest(http.MethodGet, "/auth/me", nil, "user-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var me dto.UserResponse
	require.NoError(t, decodeBody(rec, &me))
	assert.Equal(t, "lender@example.com", me.Email)

	rec = httptest.NewRecorder()
	h.Me(rec, newRequest(http.MethodGet, "/auth/me", nil, "", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
