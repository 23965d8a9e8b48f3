package database

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

// Recorder persists every successful transcription it observes. Failed jobs
// are not stored. Callers that know the audio source name register it with
// Track before starting the job.
type Recorder struct {
	store     ResultStore
	remoteURL string
	timeout   time.Duration
	log       zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*pendingJob
}

type pendingJob struct {
	source string
	info   *transcribe.Info
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store ResultStore, remoteURL string, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		remoteURL: remoteURL,
		timeout:   10 * time.Second,
		log:       log.With().Str("component", "recorder").Logger(),
		jobs:      make(map[string]*pendingJob),
	}
}

// Track associates a source name with a job id.
func (r *Recorder) Track(job, source string) {
	r.mu.Lock()
	r.pending(job).source = source
	r.mu.Unlock()
}

func (r *Recorder) OnInfo(job string, info transcribe.Info, _ string) {
	r.mu.Lock()
	r.pending(job).info = &info
	r.mu.Unlock()
}

func (r *Recorder) OnSegment(string, int, transcribe.Segment) {}

func (r *Recorder) OnDone(job string, res *transcribe.Result, err error) {
	r.mu.Lock()
	p := r.jobs[job]
	delete(r.jobs, job)
	r.mu.Unlock()

	if err != nil || res == nil {
		return
	}

	row := buildRow(job, r.remoteURL, p, res)
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	id, ierr := r.store.InsertResult(ctx, row)
	if ierr != nil {
		r.log.Error().Err(ierr).Str("job", job).Msg("failed to store transcription")
		return
	}
	r.log.Debug().Str("job", job).Int64("id", id).Int("segments", len(row.Segments)).Msg("transcription stored")
}

// pending must be called with r.mu held.
func (r *Recorder) pending(job string) *pendingJob {
	p, ok := r.jobs[job]
	if !ok {
		p = &pendingJob{}
		r.jobs[job] = p
	}
	return p
}

func buildRow(job, remoteURL string, p *pendingJob, res *transcribe.Result) *ResultRow {
	row := &ResultRow{
		JobID:     job,
		RemoteURL: remoteURL,
		Language:  res.Language,
		Text:      res.Text,
		Segments:  res.Segments,
	}
	if p == nil {
		return row
	}
	row.Source = p.source
	if p.info != nil {
		row.LanguageCode = p.info.Language
		prob, dur := p.info.LanguageProbability, p.info.Duration
		row.LanguageProbability = &prob
		row.Duration = &dur
	}
	return row
}
