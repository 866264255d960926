package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
)

func statusWriter(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case appErrors.ErrUnauthenticated:
		w.WriteHeader(http.StatusUnauthorized)
	case appErrors.ErrForbidden:
		w.WriteHeader(http.StatusForbidden)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func TestMiddleware(t *testing.T) {
	token, err := GenerateJWT(Actor{UserID: 5, SchoolID: 2, Roles: []string{RoleBoard}}, "secret", time.Hour)
	require.NoError(t, err)

	var seen Actor
	h := Middleware("secret", statusWriter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, seen.UserID)
	assert.Equal(t, 2, seen.SchoolID)
	assert.True(t, seen.HasRole(RoleAdmin, RoleBoard))
}

func TestMiddleware_Rejects(t *testing.T) {
	other, err := GenerateJWT(Actor{UserID: 1}, "other-secret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT(Actor{UserID: 1}, "secret", -time.Hour)
	require.NoError(t, err)

	h := Middleware("secret", statusWriter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Token abc", "Bearer " + other, "Bearer " + expired} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, header)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(statusWriter, RoleBoard, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{UserID: 1, Roles: []string{RoleMember}}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = req.WithContext(WithActor(req.Context(), Actor{UserID: 1, Roles: []string{RoleAdmin}}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestActor_RequireSchool(t *testing.T) {
	_, err := Actor{UserID: 1}.RequireSchool()
	assert.ErrorIs(t, err, appErrors.ErrNoSchoolSelected)

	id, err := Actor{SchoolID: 9}.RequireSchool()
	require.NoError(t, err)
	assert.Equal(t, 9, id)
}
