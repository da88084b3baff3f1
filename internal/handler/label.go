package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/service"
)

// LabelHandler serves one label collection. The server mounts one instance
// at /api/recipe/tags/ and another at /api/recipe/ingredients/.
type LabelHandler struct {
	svc    *service.LabelService
	logger *slog.Logger
}

func NewLabelHandler(svc *service.LabelService, logger *slog.Logger) *LabelHandler {
	return &LabelHandler{svc: svc, logger: logger}
}

// HandleList returns the caller's labels.
//
// HTTP: GET /api/recipe/tags/?assigned_only=1
//
// assigned_only accepts anything strconv.ParseBool does ("1", "true", "0").
func (h *LabelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	assignedOnly := false
	if raw := r.URL.Query().Get("assigned_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, h.logger, apperror.ValidationFailed("assigned_only", "Must be 0 or 1."))
			return
		}
		assignedOnly = v
	}

	labels, err := h.svc.List(r.Context(), callerID(r), assignedOnly)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

// HandleCreate adds a label owned by the caller.
//
// HTTP: POST /api/recipe/tags/
// REQUEST BODY: {"name": "Vegan"}
func (h *LabelHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.LabelInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	label, err := h.svc.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (h *LabelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	label, err := h.svc.Get(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// HandleUpdate serves PUT and PATCH. Name is the only writable field, so
// both verbs behave the same.
func (h *LabelHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.LabelInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	label, err := h.svc.Update(r.Context(), callerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

func (h *LabelHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathID(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
