package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mntdherm/no-schema-update-sub001/internal/application/action"
	"github.com/mntdherm/no-schema-update-sub001/internal/pkg/validate"
)

// ActionHandler resolves emailed action links.
type ActionHandler struct {
	svc action.Service
}

func NewActionHandler(svc action.Service) *ActionHandler {
	return &ActionHandler{svc: svc}
}

// Resolve handles GET /auth/action?mode=...&oobCode=...
// Invalid codes come back as 200 with path "invalid" and a reason; the
// action page renders them, they are not transport errors.
func (h *ActionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	oobCode := r.URL.Query().Get("oobCode")
	if mode == "" || oobCode == "" {
		writeError(w, http.StatusBadRequest, "mode and oobCode are required")
		return
	}
	res, err := h.svc.Resolve(r.Context(), mode, oobCode)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompleteReset handles POST /auth/action/password.
func (h *ActionHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OobCode     string `json:"oob_code" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.CompletePasswordReset(r.Context(), req.OobCode, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password reset"})
}
