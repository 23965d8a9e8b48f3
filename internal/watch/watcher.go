package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Runner transcribes one audio file.
type Runner func(ctx context.Context, path string) error

// Options configures a Watcher.
type Options struct {
	Dir        string
	Extensions []string      // lowercase, with leading dot; empty accepts every file
	Debounce   time.Duration // default 500ms
	Workers    int           // default 1
	Backfill   bool          // process files already present at Start
	Log        zerolog.Logger
}

// Status is a point-in-time view of the watcher for the health endpoint.
type Status struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	FilesProcessed int64  `json:"files_processed"`
	FilesFailed    int64  `json:"files_failed"`
}

// Watcher monitors a directory tree for new audio files and hands each one
// to the Runner exactly once.
type Watcher struct {
	opts Options
	run  Runner
	log  zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	work    chan string
	wg      sync.WaitGroup

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	seenMu sync.Mutex
	seen   map[string]struct{}

	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
	status         atomic.Value // string: "starting", "backfilling", "watching", "stopped"
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options, run Runner) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	w := &Watcher{
		opts:           opts,
		run:            run,
		log:            opts.Log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		seen:           make(map[string]struct{}),
	}
	w.status.Store("starting")
	return w
}

// Start adds every directory under Dir to the watch set, starts the workers
// and the event loop, and optionally backfills existing files.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	dirCount := 0
	err = filepath.WalkDir(w.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	w.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", w.opts.Dir).
		Strs("extensions", w.opts.Extensions).
		Msg("file watcher initialized")

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.work = make(chan string, w.opts.Workers*16)
	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	go w.watchLoop()

	if w.opts.Backfill {
		go w.backfill()
	} else {
		w.status.Store("watching")
	}
	return nil
}

// Stop closes the fsnotify watcher, cancels in-flight work and waits for
// the workers to exit.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	if w.watcher != nil {
		w.watcher.Close()
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()
	w.wg.Wait()

	w.log.Info().
		Int64("files_processed", w.filesProcessed.Load()).
		Int64("files_failed", w.filesFailed.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher status.
func (w *Watcher) Status() Status {
	s, _ := w.status.Load().(string)
	return Status{
		Status:         s,
		WatchDir:       w.opts.Dir,
		FilesProcessed: w.filesProcessed.Load(),
		FilesFailed:    w.filesFailed.Load(),
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// Newly created subdirectories join the watch set.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				} else {
					w.log.Debug().Str("path", event.Name).Msg("watching new directory")
				}
				continue
			}

			if !w.accepts(event.Name) {
				continue
			}
			w.scheduleProcess(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces a path so the file is fully written before it
// is uploaded.
func (w *Watcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	if !w.markSeen(path) {
		return
	}
	select {
	case w.work <- path:
	case <-w.ctx.Done():
	}
}

func (w *Watcher) worker() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case path := <-w.work:
			w.process(path)
		}
	}
}

func (w *Watcher) process(path string) {
	start := time.Now()
	if err := w.run(w.ctx, path); err != nil {
		w.filesFailed.Add(1)
		w.log.Warn().Err(err).Str("path", path).Msg("failed to transcribe watched file")
		return
	}
	w.filesProcessed.Add(1)
	w.log.Debug().Str("path", path).Dur("elapsed", time.Since(start)).Msg("watched file transcribed")
}

// backfill queues files already present in the tree, oldest first.
func (w *Watcher) backfill() {
	w.status.Store("backfilling")

	type fileEntry struct {
		path    string
		modTime time.Time
	}
	var files []fileEntry
	_ = filepath.WalkDir(w.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.accepts(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: path, modTime: info.ModTime()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	w.log.Info().Int("files", len(files)).Msg("backfill starting")
	for _, f := range files {
		if w.ctx.Err() != nil {
			w.log.Info().Msg("backfill interrupted by shutdown")
			return
		}
		w.enqueue(f.path)
	}
	w.status.Store("watching")
}

// markSeen records path and reports whether it was new.
func (w *Watcher) markSeen(path string) bool {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	if _, ok := w.seen[path]; ok {
		return false
	}
	w.seen[path] = struct{}{}
	return true
}

func (w *Watcher) accepts(path string) bool {
	return MatchExtension(path, w.opts.Extensions)
}

// MatchExtension reports whether path ends in one of exts, case-insensitively.
// An empty list matches everything except hidden files.
func MatchExtension(path string, exts []string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
