package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/config"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

// Transcriber runs one transcription against the remote server.
type Transcriber interface {
	Transcribe(ctx context.Context, p transcribe.Payload, opts transcribe.Options) (*transcribe.Result, error)
}

// JobTracker is told the source name of a job before it starts.
type JobTracker interface {
	Track(job, source string)
}

// TranscribeHandler relays uploaded audio to the remote server.
type TranscribeHandler struct {
	transcriber Transcriber
	tracker     JobTracker
	cfg         *config.Config
	log         zerolog.Logger
}

func NewTranscribeHandler(t Transcriber, tracker JobTracker, cfg *config.Config, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		transcriber: t,
		tracker:     tracker,
		cfg:         cfg,
		log:         log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the transcribe endpoint.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
}

// Transcribe handles POST /api/v1/transcribe.
// Expects a multipart form with the audio under "audio_file" and optional
// "language", "task" and "word_timestamps" fields. Responds 201 with the
// Result, or 502 when the remote server cannot be reached.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		WriteError(w, http.StatusServiceUnavailable, "transcription not available")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio_file")
		return
	}
	defer file.Close()

	req := h.cfg.RequestOptions()
	if v := strings.TrimSpace(r.FormValue("language")); v != "" {
		req.Language = v
	}
	if v := strings.TrimSpace(r.FormValue("task")); v != "" {
		if v != "transcribe" && v != "translate" {
			WriteErrorDetail(w, http.StatusBadRequest, "invalid task", `must be "transcribe" or "translate"`)
			return
		}
		req.Task = v
	}
	wt, err := FormBool(r, "word_timestamps", req.WordTimestamps)
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid word_timestamps", err.Error())
		return
	}
	req.WordTimestamps = wt

	job := uuid.NewString()
	if h.tracker != nil {
		h.tracker.Track(job, header.Filename)
	}

	res, err := h.transcriber.Transcribe(r.Context(), transcribe.Payload{
		Name: header.Filename,
		Body: file,
	}, transcribe.Options{
		JobID:   job,
		Live:    true,
		Request: req,
	})
	w.Header().Set("X-Job-ID", job)
	if err != nil {
		// A canceled request surfaces as a ConnectionError from the upload.
		if r.Context().Err() != nil {
			h.log.Debug().Str("job", job).Msg("client went away during transcription")
			return
		}
		var connErr *transcribe.ConnectionError
		if errors.As(err, &connErr) {
			captureError(r, err, "remote connection failed")
			WriteErrorDetail(w, http.StatusBadGateway, "remote unavailable", err.Error())
			return
		}
		captureError(r, err, "transcription failed")
		WriteErrorDetail(w, http.StatusInternalServerError, "transcription failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, res)
}
