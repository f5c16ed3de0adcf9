package resume

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/vector"
)

type Handler struct {
	service  *Service
	maxBytes int64
}

func NewHandler(s *Service, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Handler{service: s, maxBytes: maxUploadMB << 20}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to read file", http.StatusBadRequest)
		return
	}

	u, err := h.service.Upload(ctx, header.Filename, data, r.FormValue("name"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{"data": u})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	n, ok := h.intParam(ctx, w, q.Get("n"))
	if !ok {
		return
	}

	matches, err := h.service.Search(ctx, q.Get("query"), n, q.Get("name"), q.Get("candidate_id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeMatches(ctx, w, matches)
}

func (h *Handler) FindByName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	n, ok := h.intParam(ctx, w, q.Get("n"))
	if !ok {
		return
	}

	matches, err := h.service.FindByName(ctx, q.Get("name"), n)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeMatches(ctx, w, matches)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Reset(ctx); err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": map[string]string{"status": "ok", "message": "collection reset"},
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploads, err := h.service.List(ctx)
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if uploads == nil {
		uploads = []Upload{}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": uploads,
		"meta": map[string]int{"count": len(uploads)},
	})
}

func (h *Handler) intParam(ctx context.Context, w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "n must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (h *Handler) writeMatches(ctx context.Context, w http.ResponseWriter, matches []vector.Match) {
	if matches == nil {
		matches = []vector.Match{}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": matches,
		"meta": map[string]int{"count": len(matches)},
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, ErrDuplicate) {
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
		return
	}
	code, status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "resume request failed", "error", err)
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
