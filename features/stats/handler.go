package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"talentrag/apps/backend/internal/middleware"
)

type UploadRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

// Collections reports record counts. Names lists the collections the
// process currently holds a handle for.
type Collections interface {
	Default() string
	Names() []string
	Count(ctx context.Context, name string) (int, error)
}

type Handler struct {
	uploadRepo  UploadRepo
	jobRepo     JobRepo
	collections Collections
}

func NewHandler(u UploadRepo, j JobRepo, c Collections) *Handler {
	return &Handler{uploadRepo: u, jobRepo: j, collections: c}
}

type CollectionStats struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

type StatsResponse struct {
	Collections []CollectionStats `json:"collections"`
	Documents   int               `json:"documents"`
	Uploads     int               `json:"uploads"`
	FailedJobs  int               `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	uCount, err := h.uploadRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count uploads", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count uploads", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	names := map[string]bool{h.collections.Default(): true}
	for _, n := range h.collections.Names() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	resp := StatsResponse{Uploads: uCount, FailedJobs: jCount, Collections: make([]CollectionStats, 0, len(sorted))}
	for _, n := range sorted {
		count, err := h.collections.Count(ctx, n)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count documents", "error", err, "collection", n, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
			return
		}
		resp.Collections = append(resp.Collections, CollectionStats{Name: n, Records: count})
		resp.Documents += count
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
