package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-auth/internal/apierrors"
	"github.com/pribylovaa/go-session-auth/internal/models"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/token"
)

// fakeAuth — заглушка AuthService с запоминанием аргументов.
type fakeAuth struct {
	signupIn  service.SignupInput
	loginArgs [2]string
	logout    *token.Claims

	res *models.AuthResult
	err error
}

func (f *fakeAuth) Signup(_ context.Context, in service.SignupInput) (*models.AuthResult, error) {
	f.signupIn = in
	return f.res, f.err
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*models.AuthResult, error) {
	f.loginArgs = [2]string{email, password}
	return f.res, f.err
}

func (f *fakeAuth) Logout(_ context.Context, claims token.Claims) error {
	f.logout = &claims
	return f.err
}

func sampleResult() *models.AuthResult {
	return &models.AuthResult{
		Token:     "tok",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:      models.PublicUser{ID: "id-1", Name: "A", Surname: "B", Email: "a@b.com"},
	}
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
}

func TestSignup_Created(t *testing.T) {
	f := &fakeAuth{res: sampleResult()}
	h := New(f)

	rr := httptest.NewRecorder()
	h.Signup(rr, post(`{"name":"A","surname":"B","email":"a@b.com","password":"Abcdef1!"}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Equal(t, service.SignupInput{Name: "A", Surname: "B", Email: "a@b.com", Password: "Abcdef1!"}, f.signupIn)

	var got AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "tok", got.Token)
	require.Equal(t, sampleResult().User, got.User)
	require.True(t, sampleResult().ExpiresAt.Equal(got.ExpiresAt))
}

func TestLogin_ServiceErrorMapped(t *testing.T) {
	f := &fakeAuth{err: service.ErrInvalidCredentials}
	h := New(f)

	rr := httptest.NewRecorder()
	h.Login(rr, post(`{"email":"a@b.com","password":"x"}`))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, [2]string{"a@b.com", "x"}, f.loginArgs)

	var got apierrors.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "invalid_credentials", got.Code)
}

func TestDecodeStrict(t *testing.T) {
	cases := map[string]string{
		"broken":        `{"email":`,
		"unknown field": `{"email":"a@b.com","password":"x","admin":true}`,
		"trailing data": `{"email":"a@b.com","password":"x"} {}`,
		"too large":     `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
	}

	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			var in LoginRequest
			err := decodeStrict(httptest.NewRecorder(), post(body), &in)
			require.ErrorIs(t, err, apierrors.ErrMalformedBody)
		})
	}
}

func TestMe_WithoutIdentity(t *testing.T) {
	rr := httptest.NewRecorder()
	New(&fakeAuth{}).Me(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_WithoutClaims(t *testing.T) {
	f := &fakeAuth{}
	rr := httptest.NewRecorder()
	New(f).Logout(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Nil(t, f.logout)
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHealthz(t *testing.T) {
	ready := false
	h := Healthz(func() bool { return ready })

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	ready = true
	rr = httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
