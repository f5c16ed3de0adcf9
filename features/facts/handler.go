package facts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/vector"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.service.Ensure(ctx, r.PathValue("chat_id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": info})
}

// AddDocument accepts a single fact ({text, meta, id}) or a batch
// ({facts: [...]}).
func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Fact
		Facts []Fact `json:"facts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	facts := req.Facts
	if len(facts) == 0 {
		facts = []Fact{req.Fact}
	}

	ids, err := h.service.Add(ctx, r.PathValue("chat_id"), facts)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{"ids": ids, "count": len(ids)},
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in SearchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	matches, err := h.service.Search(ctx, r.PathValue("chat_id"), in)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	if matches == nil {
		matches = []vector.Match{}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": matches,
		"meta": map[string]int{"count": len(matches)},
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		IDs       []string         `json:"ids"`
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.service.UpdateMeta(ctx, r.PathValue("chat_id"), req.IDs, req.Metadatas)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": map[string]int{"updated": n},
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, err := h.service.Drop(ctx, r.PathValue("chat_id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	slog.InfoContext(ctx, "facts collection dropped", "collection", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "facts request failed", "error", err)
	}
	h.writeError(ctx, w, code, err.Error(), status)
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
