package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mntdherm/no-schema-update-sub001/internal/application/audit"
)

// AuditHandler exposes read access to the audit trail. Admin only.
type AuditHandler struct {
	svc audit.Service
}

func NewAuditHandler(svc audit.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// ListByUser handles GET /audit-logs/{id}?limit=N, newest first.
func (h *AuditHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.ListByUser(r.Context(), userID, int32(limit))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}
