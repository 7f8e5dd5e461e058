package rag

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/scrybe-app/scrybe/internal/transcript"
	"github.com/scrybe-app/scrybe/pkg/models"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/summary", h.Summary)
	mux.HandleFunc("/query", h.Query)
}

// Summary ingests the video and streams a summary, ending with the
// video ID trailer so the client learns the resolved ID from the same
// response.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req models.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "Missing url", http.StatusUnprocessableEntity)
		return
	}
	if req.Depth == "" {
		req.Depth = models.DepthBrief
	}
	if req.Style == "" {
		req.Style = models.StyleBulletPoints
	}

	summary, err := h.svc.PrepareSummary(r.Context(), req)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	e := newEmitter(w)
	if err := h.svc.Stream(r.Context(), summary.Prompt, summaryTemperature, e.emit); err != nil {
		e.fail(err)
		return
	}
	if err := e.trailer(summary.VideoID); err != nil {
		e.fail(err)
		return
	}

	hlog.FromRequest(r).Info().Str("path", "/summary").Str("video_id", summary.VideoID).
		Str("depth", string(req.Depth)).Dur("dur", time.Since(start)).Msg("served")
}

// Query answers a question about an already-ingested video. Terminal
// outcomes return JSON; answerable ones stream text. Clients branch on
// Content-Type.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.VideoID == "" {
		http.Error(w, "Missing videoId", http.StatusBadRequest)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Query, req.VideoID)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	if answer.Terminal != nil {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(answer.Terminal); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
		hlog.FromRequest(r).Info().Str("path", "/query").Str("video_id", req.VideoID).
			Str("quality", answer.Terminal.Metadata.ContextQuality).Dur("dur", time.Since(start)).Msg("served terminal")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	e := newEmitter(w)
	if err := h.svc.Stream(r.Context(), answer.Prompt, answerTemperature, e.emit); err != nil {
		e.fail(err)
		return
	}

	hlog.FromRequest(r).Info().Str("path", "/query").Str("video_id", req.VideoID).
		Str("strategy", answer.Strategy).Str("quality", answer.Quality).
		Dur("dur", time.Since(start)).Msg("served")
}

func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcript.ErrInvalidURL):
		http.Error(w, "Invalid YouTube URL", http.StatusBadRequest)
	case errors.Is(err, transcript.ErrNotFound):
		http.Error(w, "Transcript not found", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
	}
}
