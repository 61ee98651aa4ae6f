package httpapi

import (
	"net/http"

	"github.com/nodevault/custody-service/internal/httputil"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	u, err := h.app.Auth.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	session, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	u, err := h.app.Auth.VerifyEmail(r.Context(), payload.Token)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Auth.ForgotPassword(r.Context(), payload.Email); err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "if the email exists, a reset link has been sent",
	})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Auth.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
