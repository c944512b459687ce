package auth_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours/internal/auth"
)

type sessionBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Data    struct {
		User map[string]any `json:"user"`
	} `json:"data"`
}

func newAuthRouter(f *fixture) http.Handler {
	h := auth.NewHandler(nil, f.service, auth.Transport{})
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/forgotPassword", h.ForgotPassword)
	r.Patch("/resetPassword/{token}", h.ResetPassword)
	r.With(f.authn.Protect).Patch("/updatePassword", h.UpdatePassword)
	return r
}

func call(t *testing.T, router http.Handler, method, path, body string, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, sessionBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	var out sessionBody
	if res.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	}
	return res, out
}

func TestSignupEndpoint(t *testing.T) {
	f := newFixture(t)
	router := newAuthRouter(f)

	res, body := call(t, router, http.MethodPost, "/signup",
		`{"name":"Ann","email":"ann@x.com","password":"secret123","passwordConfirm":"secret123","role":"admin"}`)

	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, "success", body.Status)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "ann@x.com", body.Data.User["email"])
	assert.Equal(t, "user", body.Data.User["role"])
	for key := range body.Data.User {
		assert.NotContains(t, strings.ToLower(key), "password")
	}
	assert.NotContains(t, body.Data.User, "active")

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, body.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Expires.IsZero())
}

func TestSignupEndpointRejectsMismatchedConfirmation(t *testing.T) {
	f := newFixture(t)
	res, body := call(t, newAuthRouter(f), http.MethodPost, "/signup",
		`{"name":"Ann","email":"ann@x.com","password":"secret123","passwordConfirm":"nope12345"}`)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "fail", body.Status)
	assert.Empty(t, body.Token)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@x.com", "secret123")
	router := newAuthRouter(f)

	wrong, wrongBody := call(t, router, http.MethodPost, "/login", `{"email":"ann@x.com","password":"secret124"}`)
	ghost, ghostBody := call(t, router, http.MethodPost, "/login", `{"email":"ghost@x.com","password":"secret124"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, ghost.Code)
	assert.Equal(t, "Incorrect email or password", wrongBody.Message)
	assert.Equal(t, wrongBody, ghostBody)
	assert.NotContains(t, strings.ToLower(wrongBody.Message), "not found")
	assert.Empty(t, wrong.Result().Cookies())
}

func TestLoginEndpointMissingFields(t *testing.T) {
	f := newFixture(t)
	res, body := call(t, newAuthRouter(f), http.MethodPost, "/login", `{"email":"ann@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Please provide email and password!", body.Message)
}

func TestLoginEndpointMalformedBody(t *testing.T) {
	f := newFixture(t)
	res, body := call(t, newAuthRouter(f), http.MethodPost, "/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "fail", body.Status)
}

func TestForgotPasswordEndpoint(t *testing.T) {
	f := newFixture(t)
	session := f.signup(t, "ann@x.com", "secret123")
	router := newAuthRouter(f)

	res, body := call(t, router, http.MethodPost, "/forgotPassword", `{"email":"ghost@x.com"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "fail", body.Status)

	res, body = call(t, router, http.MethodPost, "/forgotPassword", `{"email":"ann@x.com"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Token sent to email!", body.Message)

	f.outbox.err = errors.New("dial tcp: connection refused")
	res, body = call(t, router, http.MethodPost, "/forgotPassword", `{"email":"ann@x.com"}`)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "There was an error sending the email. Try again later!", body.Message)
	assert.NotContains(t, res.Body.String(), "connection refused")

	stored, _ := f.store.Snapshot(session.User.ID)
	assert.False(t, stored.HasResetToken())
}

func TestResetPasswordEndpoint(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@x.com", "secret123")
	router := newAuthRouter(f)
	_, _ = call(t, router, http.MethodPost, "/forgotPassword", `{"email":"ann@x.com"}`)
	plain := f.outbox.lastToken(t)

	res, body := call(t, router, http.MethodPatch, "/resetPassword/"+plain, `{"password":"newsecret1","passwordConfirm":"newsecret1"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.NotEmpty(t, body.Token)

	res, _ = call(t, router, http.MethodPatch, "/resetPassword/"+plain, `{"password":"newsecret1","passwordConfirm":"newsecret1"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUpdatePasswordEndpoint(t *testing.T) {
	f := newFixture(t)
	session := f.signup(t, "ann@x.com", "secret123")
	router := newAuthRouter(f)
	withToken := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+session.Token) }

	res, _ := call(t, router, http.MethodPatch, "/updatePassword", `{"passwordCurrent":"secret123","password":"newsecret1","passwordConfirm":"newsecret1"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res, body := call(t, router, http.MethodPatch, "/updatePassword", `{"passwordCurrent":"bad-guess","password":"newsecret1","passwordConfirm":"newsecret1"}`, withToken)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Your current password is wrong.", body.Message)

	res, body = call(t, router, http.MethodPatch, "/updatePassword", `{"passwordCurrent":"secret123","password":"newsecret1","passwordConfirm":"newsecret1"}`, withToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.NotEmpty(t, body.Token)
}
