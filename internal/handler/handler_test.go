package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-enroll/internal/auth"
	"class-enroll/internal/handler"
	"class-enroll/internal/model"
	"class-enroll/internal/repository"
	"class-enroll/internal/service"
)

type fixture struct {
	router *chi.Mux
	store  *repository.MemoryStore
	tokens *auth.TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	classSvc := service.NewClassService(store)
	admissionSvc := service.NewAdmissionService(store, store, nil)
	userSvc := service.NewUserService(store, tokens)
	h := handler.New(classSvc, admissionSvc, userSvc)

	r := chi.NewRouter()
	authenticated := handler.Authenticator(tokens)
	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.RegisterUser)
		r.Post("/sessions", h.Login)
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", h.ListClasses)
			r.Get("/{id}", h.GetClass)
			r.Get("/{id}/applications", h.ListClassApplications)
			r.Get("/{id}/occupancy", h.GetOccupancy)
			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Post("/", h.CreateClass)
				r.Delete("/{id}", h.DeleteClass)
				r.Post("/{id}/applications", h.Apply)
				r.Delete("/{id}/applications", h.CancelApplication)
			})
		})
		r.With(authenticated).Get("/users/me/applications", h.ListMyApplications)
	})

	return &fixture{router: r, store: store, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) tokenFor(t *testing.T, admin bool) (string, string) {
	t.Helper()
	user := model.User{ID: uuid.New().String(), Email: uuid.New().String() + "@example.com", IsAdmin: admin}
	require.NoError(t, f.store.CreateUser(t.Context(), user))
	token, _, err := f.tokens.Issue(user, time.Now())
	require.NoError(t, err)
	return token, user.ID
}

func (f *fixture) createClass(t *testing.T, capacity int) string {
	t.Helper()
	token, _ := f.tokenFor(t, true)
	rec := f.do(t, http.MethodPost, "/api/classes", token, model.CreateClassRequest{
		Title:    "Test Class",
		Capacity: capacity,
		StartAt:  time.Now().Add(24 * time.Hour),
		EndAt:    time.Now().Add(25 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class model.Class
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &class))
	return class.ID
}

func TestRegisterLoginFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users", "", model.RegisterUserRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/users", "", model.RegisterUserRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sessions", "", model.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var tokenResp model.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	assert.NotEmpty(t, tokenResp.Token)

	rec = f.do(t, http.MethodPost, "/api/sessions", "", model.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateClassRequiresAdminToken(t *testing.T) {
	f := newFixture(t)

	req := model.CreateClassRequest{
		Title:    "Test",
		Capacity: 5,
		StartAt:  time.Now().Add(time.Hour),
		EndAt:    time.Now().Add(2 * time.Hour),
	}

	rec := f.do(t, http.MethodPost, "/api/classes", "", req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken, _ := f.tokenFor(t, false)
	rec = f.do(t, http.MethodPost, "/api/classes", userToken, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplyFlow(t *testing.T) {
	f := newFixture(t)
	classID := f.createClass(t, 1)

	token1, user1 := f.tokenFor(t, false)
	token2, _ := f.tokenFor(t, false)

	rec := f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", token1, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app model.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, user1, app.UserID)

	// Duplicate application.
	rec = f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", token1, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Capacity exhausted.
	rec = f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", token2, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown class.
	rec = f.do(t, http.MethodPost, "/api/classes/"+uuid.New().String()+"/applications", token2, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/classes/"+classID+"/occupancy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var occ model.Occupancy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &occ))
	assert.Equal(t, model.Occupancy{Current: 1, Max: 1}, occ)

	// Cancel frees the seat for the other user.
	rec = f.do(t, http.MethodDelete, "/api/classes/"+classID+"/applications", token1, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", token2, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCancelWithoutApplication(t *testing.T) {
	f := newFixture(t)
	classID := f.createClass(t, 3)
	token, _ := f.tokenFor(t, false)

	rec := f.do(t, http.MethodDelete, "/api/classes/"+classID+"/applications", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListClassApplicationsAndHistory(t *testing.T) {
	f := newFixture(t)
	classID := f.createClass(t, 5)

	var tokens []string
	for i := 0; i < 3; i++ {
		token, _ := f.tokenFor(t, false)
		tokens = append(tokens, token)
		rec := f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", token, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/classes/"+classID+"/applications?page=1&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page model.Page[model.ApplicationSummary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Len(t, page.Items, 2)

	rec = f.do(t, http.MethodGet, "/api/users/me/applications", tokens[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, classID, page.Items[0].ClassID)
}

func TestDeleteClassCascades(t *testing.T) {
	f := newFixture(t)
	classID := f.createClass(t, 5)

	applicantToken, _ := f.tokenFor(t, false)
	rec := f.do(t, http.MethodPost, "/api/classes/"+classID+"/applications", applicantToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// A non-host non-admin cannot delete.
	rec = f.do(t, http.MethodDelete, "/api/classes/"+classID, applicantToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, _ := f.tokenFor(t, true)
	rec = f.do(t, http.MethodDelete, "/api/classes/"+classID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/me/applications", applicantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page model.Page[model.ApplicationSummary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Items)

	rec = f.do(t, http.MethodGet, "/api/classes/"+classID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	classID := f.createClass(t, 5)

	path := fmt.Sprintf("/api/classes/%s/applications", classID)

	rec := f.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, path, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
