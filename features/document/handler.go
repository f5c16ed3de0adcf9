package document

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/ingest"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/vector"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type ingestRequest struct {
	Collection   string `json:"collection"`
	SourceID     string `json:"source_id"`
	SourceType   string `json:"source_type"`
	DocumentName string `json:"document_name"`
	Content      string `json:"content"`
}

func (req ingestRequest) document() ingest.Document {
	return ingest.Document{
		SourceID:     req.SourceID,
		SourceType:   sourceType(req.SourceType),
		DocumentName: req.DocumentName,
		Content:      req.Content,
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.Ingest(ctx, req.Collection, req.document())
	if err != nil {
		h.fail(ctx, w, "ingest failed", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{"data": res})
}

func (h *Handler) IngestAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Enqueue(ctx, req.Collection, req.document()); err != nil {
		h.fail(ctx, w, "enqueue failed", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]string{"status": "queued", "source_id": req.SourceID},
	})
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in QueryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	matches, err := h.service.Query(ctx, in)
	if err != nil {
		h.fail(ctx, w, "query failed", err)
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

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Collection string `json:"collection"`
	}
	// an empty body resets the default collection
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	name, err := h.service.Reset(ctx, req.Collection)
	if err != nil {
		h.fail(ctx, w, "reset failed", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"collection": name, "reset": true},
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code, status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, msg, "error", err)
	} else {
		slog.WarnContext(ctx, msg, "error", err)
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
