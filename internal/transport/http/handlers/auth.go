package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-session-auth/internal/apierrors"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/middleware"
)

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.Auth.Signup(r.Context(), service.SignupInput{
		Name:     in.Name,
		Surname:  in.Surname,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authFromResult(res))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromResult(res))
}

// Me возвращает личность из проверенного токена, без обращения к хранилищу.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMissingCredentials)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: id.Public()})
}

// Logout отзывает текущий токен (если включён denylist) и отвечает 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMissingCredentials)
		return
	}

	if err := h.Auth.Logout(r.Context(), claims); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
