package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-admission-api/internal/models"
	"github.com/noah-isme/uni-admission-api/internal/service"
	"github.com/noah-isme/uni-admission-api/pkg/jobs"
)

type fakeUserRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User), tokens: make(map[string]*models.RefreshToken)}
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByAlternativeID(_ context.Context, altID string) (*models.User, error) {
	for _, u := range f.users {
		if u.AlternativeID == altID {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	if user.AlternativeID == "" {
		user.AlternativeID = "alt-generated"
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id, fullName string, avatarURL *string) error {
	if u, ok := f.users[id]; ok {
		u.FullName = fullName
		u.AvatarURL = avatarURL
	}
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (f *fakeUserRepo) Activate(_ context.Context, id string) error {
	if u, ok := f.users[id]; ok {
		u.Activated = true
	}
	return nil
}

func (f *fakeUserRepo) ListEnvoyTypes(context.Context) ([]models.EnvoyType, error) {
	return []models.EnvoyType{{ID: 1, Name: "Student"}}, nil
}

func (f *fakeUserRepo) RevokeUserRefreshTokens(context.Context, string) error { return nil }

func (f *fakeUserRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeUserRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := f.tokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, rt := range f.tokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

type fakeAvatars struct{}

func (fakeAvatars) SaveAvatar(originalName string, _ io.Reader) (string, error) {
	return "stored-" + originalName, nil
}
func (fakeAvatars) Delete(string) error { return nil }

type fakeQueue struct{ jobs []jobs.Job }

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestAuthHandler(repo *fakeUserRepo) *AuthHandler {
	svc := service.NewAuthService(repo, fakeAvatars{}, &fakeQueue{}, validator.New(), zap.NewNop(), service.AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "uni-admission-api",
	})
	return NewAuthHandler(svc)
}

func seedActivatedUser(t *testing.T, repo *fakeUserRepo, id, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &models.User{ID: id, Email: email, PasswordHash: string(hash), FullName: "User", RoleID: models.RoleIDEnvoy, Activated: true, AlternativeID: "alt-" + id}
	repo.users[id] = user
	return user
}

func jsonRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeUserRepo()
	seedActivatedUser(t, repo, "u1", "user@example.com", "password")
	handler := newTestAuthHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/login", `{"email":"user@example.com","password":"password"}`)

	handler.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "user@example.com", envelope.Data.User.Email)
}

func TestAuthHandlerLoginUnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestAuthHandler(newFakeUserRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/login", `{"email":"gone@example.com","password":"password"}`)

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "the user no longer exists")
}

func TestAuthHandlerCheckEmailContract(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeUserRepo()
	seedActivatedUser(t, repo, "u1", "user@example.com", "password")
	handler := newTestAuthHandler(repo)

	// Registered email.
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/check-email?email=user@example.com", nil)
	handler.CheckEmail(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())

	// Unknown email.
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/check-email?email=nobody@example.com", nil)
	handler.CheckEmail(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var notFound map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notFound))
	assert.NotEmpty(t, notFound["message"])

	// Missing field keeps the legacy error body.
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/check-email", nil)
	handler.CheckEmail(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"form data missing."}`, rec.Body.String())
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeUserRepo()
	handler := newTestAuthHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/register",
		`{"email":"new@example.com","password":"secret123","full_name":"New Envoy","phone_number":"0900000000","envoy_type_id":1}`)

	handler.Register(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.users, 1)
	for _, u := range repo.users {
		assert.False(t, u.Activated)
		assert.Equal(t, models.RoleIDEnvoy, u.RoleID)
	}
}

func TestAuthHandlerActivate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeUserRepo()
	user := seedActivatedUser(t, repo, "u1", "user@example.com", "password")
	user.Activated = false
	handler := newTestAuthHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/activate?token="+user.AlternativeID, nil)

	handler.Activate(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, repo.users["u1"].Activated)
}
