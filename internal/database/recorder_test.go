package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []*ResultRow
	err  error
}

func (f *fakeStore) InsertResult(_ context.Context, row *ResultRow) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, row)
	return int64(len(f.rows)), nil
}

// ── Recorder ─────────────────────────────────────────────────────────

func TestRecorder(t *testing.T) {
	t.Run("stores_successful_job", func(t *testing.T) {
		store := &fakeStore{}
		r := NewRecorder(store, "http://remote:8000", zerolog.Nop())

		r.Track("j1", "clip.wav")
		r.OnInfo("j1", transcribe.Info{Language: "en", LanguageProbability: 0.9, Duration: 10}, "english")
		r.OnSegment("j1", 0, transcribe.Segment{Start: 0, End: 4, Text: " Hello"})
		r.OnDone("j1", &transcribe.Result{
			Text:     " Hello",
			Segments: []transcribe.Segment{{Start: 0, End: 4, Text: " Hello"}},
			Language: "english",
		}, nil)

		if len(store.rows) != 1 {
			t.Fatalf("stored %d rows, want 1", len(store.rows))
		}
		row := store.rows[0]
		if row.JobID != "j1" || row.Source != "clip.wav" || row.RemoteURL != "http://remote:8000" {
			t.Errorf("row identity = %+v", row)
		}
		if row.Language != "english" || row.LanguageCode != "en" {
			t.Errorf("Language = %q/%q, want english/en", row.Language, row.LanguageCode)
		}
		if row.Duration == nil || *row.Duration != 10 {
			t.Errorf("Duration = %v, want 10", row.Duration)
		}
		if len(row.Segments) != 1 {
			t.Errorf("Segments = %d, want 1", len(row.Segments))
		}
	})

	t.Run("skips_failed_job", func(t *testing.T) {
		store := &fakeStore{}
		r := NewRecorder(store, "", zerolog.Nop())
		r.Track("j2", "a.wav")
		r.OnDone("j2", nil, errors.New("connection refused"))
		if len(store.rows) != 0 {
			t.Errorf("stored %d rows for failed job", len(store.rows))
		}
		if len(r.jobs) != 0 {
			t.Errorf("pending jobs = %d, want 0", len(r.jobs))
		}
	})

	t.Run("without_info", func(t *testing.T) {
		store := &fakeStore{}
		r := NewRecorder(store, "", zerolog.Nop())
		r.OnDone("j3", &transcribe.Result{Text: "x", Segments: []transcribe.Segment{}}, nil)
		if len(store.rows) != 1 {
			t.Fatalf("stored %d rows, want 1", len(store.rows))
		}
		if store.rows[0].LanguageProbability != nil || store.rows[0].LanguageCode != "" {
			t.Errorf("row = %+v, want no info fields", store.rows[0])
		}
	})

	t.Run("store_error_is_logged", func(t *testing.T) {
		store := &fakeStore{err: errors.New("db down")}
		r := NewRecorder(store, "", zerolog.Nop())
		r.OnDone("j4", &transcribe.Result{Segments: []transcribe.Segment{}}, nil)
	})
}

// ── segmentRows ──────────────────────────────────────────────────────

func TestSegmentRows(t *testing.T) {
	segs := []transcribe.Segment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: "b", Words: []transcribe.Word{{Word: "b", Start: 1, End: 2, Probability: 0.5}}},
	}
	rows, err := segmentRows(7, segs)
	if err != nil {
		t.Fatalf("segmentRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != int64(7) || rows[1][1] != 1 {
		t.Errorf("row keys = %v / %v", rows[0][:2], rows[1][:2])
	}
	if w, _ := rows[0][5].([]byte); w != nil {
		t.Errorf("words for segment without timings = %s, want nil", w)
	}
	w, _ := rows[1][5].([]byte)
	if !strings.Contains(string(w), `"probability":0.5`) {
		t.Errorf("words = %s", w)
	}
}

func TestMigrationErrorMessage(t *testing.T) {
	err := &MigrationError{
		failed:  migrations[1],
		pending: migrations[1:],
		err:     errors.New("permission denied"),
	}
	msg := err.Error()
	if !strings.Contains(msg, `migration "create segments" failed: permission denied`) {
		t.Errorf("Error() = %q", msg)
	}
	if !strings.Contains(msg, "idx_transcriptions_created_at") {
		t.Error("Error() should list remaining migrations")
	}
	if !errors.Is(err, err.err) {
		t.Error("MigrationError should unwrap to the cause")
	}
}
