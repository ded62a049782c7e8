package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mntdherm/no-schema-update-sub001/internal/application/auth"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/mntdherm/no-schema-update-sub001/internal/pkg/validate"
	"github.com/mntdherm/no-schema-update-sub001/internal/transport/http/middleware"
)

// PasswordHandler handles the password reset request and in-session change.
type PasswordHandler struct {
	svc auth.Service
}

func NewPasswordHandler(svc auth.Service) *PasswordHandler {
	return &PasswordHandler{svc: svc}
}

// RequestReset always answers 200 with the same message; whether the email
// exists must not be observable from the outside.
func (h *PasswordHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email, deviceInfo(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "if the address is registered, a reset email is on its way"})
}

func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}
