package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/natours/natours/internal/platform/httpx"
	"github.com/natours/natours/internal/shared"
)

// Handler exposes user endpoints. Routing and access rules are declared by
// the caller; every method here expects an authenticated user in context
// where it needs one.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type userData struct {
	User *User `json:"user"`
}

type usersData struct {
	Users      []User             `json:"users"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

// Me returns the caller's own record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current := FromContext(r.Context())
	if current == nil {
		h.fail(w, r, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access."))
		return
	}
	user, err := h.service.Get(r.Context(), current.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, userData{User: user})
}

// UpdateMe applies an allow-listed profile update for the caller.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	current := FromContext(r.Context())
	if current == nil {
		h.fail(w, r, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access."))
		return
	}
	var in ProfileInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, shared.Validation(shared.ReasonInvalidInput, err.Error()))
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), current.ID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, userData{User: user})
}

// DeleteMe deactivates the caller's account.
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	current := FromContext(r.Context())
	if current == nil {
		h.fail(w, r, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access."))
		return
	}
	if err := h.service.Deactivate(r.Context(), current.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns one page of active users, selected by the page and limit
// query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := h.queryInt(w, r, "page")
	if !ok {
		return
	}
	perPage, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}
	list, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []User{}
	}
	n := len(list)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Status: "success", Results: &n, Data: usersData{Users: list, Pagination: &pagination}})
}

// Get returns one user by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, userData{User: user})
}

// Update applies an administrative change to one user.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in AdminInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, shared.Validation(shared.ReasonInvalidInput, err.Error()))
		return
	}
	user, err := h.service.AdminUpdate(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, userData{User: user})
}

// Delete deactivates one user.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.fail(w, r, shared.Validation(shared.ReasonInvalidInput, "Invalid id: "+raw))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.fail(w, r, shared.Validation(shared.ReasonInvalidInput, "Invalid "+name+": "+raw))
		return 0, false
	}
	return n, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.RespondError(w, r, h.logger, err)
}
