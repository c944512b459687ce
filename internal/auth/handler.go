package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natours/natours/internal/platform/httpx"
	"github.com/natours/natours/internal/shared"
	"github.com/natours/natours/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	transport Transport
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, transport Transport) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, transport: transport}
}

type userData struct {
	User *users.User `json:"user"`
}

// Signup registers a user and returns a session token.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if !h.decode(w, r, &in) {
		return
	}
	session, err := h.service.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendSession(w, http.StatusCreated, session)
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	session, err := h.service.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

// ForgotPassword mails a reset link to the account owner.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), in, requestBaseURL(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Status: "success", Message: "Token sent to email!"})
}

// ResetPassword sets a new password using the token from the path.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	session, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

// UpdatePassword changes the caller's password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in UpdatePasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	session, err := h.service.UpdatePassword(r.Context(), users.FromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

func (h *Handler) sendSession(w http.ResponseWriter, status int, session *Session) {
	h.transport.SetToken(w, session.Token, session.ExpiresAt)
	httpx.JSON(w, status, httpx.Envelope{
		Status: "success",
		Token:  session.Token,
		Data:   userData{User: session.User},
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		h.fail(w, r, shared.Validation(shared.ReasonInvalidInput, err.Error()))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.RespondError(w, r, h.logger, err)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
