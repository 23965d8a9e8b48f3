package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMatchExtension(t *testing.T) {
	exts := []string{".wav", ".mp3"}
	tests := []struct {
		name string
		path string
		exts []string
		want bool
	}{
		{"match", "/a/b/clip.wav", exts, true},
		{"upper_case", "/a/CLIP.MP3", exts, true},
		{"no_match", "/a/notes.txt", exts, false},
		{"no_extension", "/a/README", exts, false},
		{"hidden_file", "/a/.clip.wav", exts, false},
		{"empty_list_accepts", "/a/anything.bin", nil, true},
		{"empty_list_skips_hidden", "/a/.swp", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchExtension(tt.path, tt.exts); got != tt.want {
				t.Errorf("MatchExtension(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
	done  chan string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fail: map[string]bool{}, done: make(chan string, 16)}
}

func (r *recordingRunner) run(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	fail := r.fail[filepath.Base(path)]
	r.mu.Unlock()
	r.done <- path
	if fail {
		return errors.New("remote unavailable")
	}
	return nil
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if filepath.Base(got) != want {
			t.Fatalf("processed %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestWatcherBackfill(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newRecordingRunner()
	r.fail["old.wav"] = true
	w := New(Options{Dir: dir, Extensions: []string{".wav"}, Backfill: true, Log: zerolog.Nop()}, r.run)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	waitFor(t, r.done, "old.wav")

	deadline := time.Now().Add(2 * time.Second)
	for w.Status().FilesFailed != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	st := w.Status()
	if st.FilesFailed != 1 || st.FilesProcessed != 0 {
		t.Errorf("Status = %+v, want 1 failed", st)
	}
	if st.WatchDir != dir {
		t.Errorf("WatchDir = %q, want %q", st.WatchDir, dir)
	}
}

func TestWatcherNewFile(t *testing.T) {
	dir := t.TempDir()
	r := newRecordingRunner()
	w := New(Options{
		Dir:        dir,
		Extensions: []string{".wav"},
		Debounce:   20 * time.Millisecond,
		Log:        zerolog.Nop(),
	}, r.run)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "new.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		f.Write([]byte("chunk"))
	}
	f.Close()

	waitFor(t, r.done, "new.wav")

	// A later write to the same file must not trigger a second run.
	os.WriteFile(path, []byte("more"), 0o644)
	select {
	case got := <-r.done:
		t.Fatalf("file processed twice: %s", got)
	case <-time.After(200 * time.Millisecond):
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Status().FilesProcessed != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := w.Status(); got.FilesProcessed != 1 || got.Status != "watching" {
		t.Errorf("Status = %+v, want 1 processed while watching", got)
	}
}

func TestWatcherStop(t *testing.T) {
	w := New(Options{Dir: t.TempDir(), Log: zerolog.Nop()}, func(context.Context, string) error { return nil })
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	if got := w.Status().Status; got != "stopped" {
		t.Errorf("Status = %q, want stopped", got)
	}
}
