package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/config"
)

// AudioSource abstracts where audio payloads are read from.
type AudioSource interface {
	// Open returns a reader for the audio object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if the audio object exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// ErrS3Disabled is returned for s3:// references when no S3 store is configured.
var ErrS3Disabled = errors.New("s3 input requested but S3_BUCKET is not configured")

// Sources resolves audio references to a backend. Plain paths are read from
// the local filesystem; s3://bucket/key references go to S3.
type Sources struct {
	Local *LocalStore
	S3    *S3Store // nil when S3 is not configured
}

// New builds the audio sources from config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, log zerolog.Logger) (*Sources, error) {
	src := &Sources{Local: NewLocalStore("")}
	if !cfg.Enabled() {
		return src, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	src.S3 = s3store
	return src, nil
}

// Ref is a parsed audio reference.
type Ref struct {
	Scheme string // "local" or "s3"
	Bucket string // s3 only; "" means the configured bucket
	Key    string
}

// Name returns the base file name for the reference.
func (r Ref) Name() string {
	if r.Scheme == "s3" {
		return path.Base(r.Key)
	}
	return filepath.Base(r.Key)
}

// ParseRef splits an input argument into a backend and key.
func ParseRef(ref string) Ref {
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found {
			return Ref{Scheme: "s3", Key: bucket}
		}
		return Ref{Scheme: "s3", Bucket: bucket, Key: key}
	}
	return Ref{Scheme: "local", Key: ref}
}

// source returns the backend for r. An s3 reference naming a bucket other
// than the configured one has no AudioSource and is opened with OpenIn.
func (s *Sources) source(r Ref) (AudioSource, error) {
	if r.Scheme != "s3" {
		return s.Local, nil
	}
	if s.S3 == nil {
		return nil, ErrS3Disabled
	}
	return s.S3, nil
}

// Open resolves ref and opens it. The returned name is suitable as an
// upload file name.
func (s *Sources) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	r := ParseRef(ref)
	src, err := s.source(r)
	if err != nil {
		return nil, "", err
	}

	var rc io.ReadCloser
	if r.Scheme == "s3" && r.Bucket != "" {
		rc, err = s.S3.OpenIn(ctx, r.Bucket, r.Key)
	} else {
		rc, err = src.Open(ctx, r.Key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s (%s): %w", ref, src.Type(), err)
	}
	return rc, r.Name(), nil
}

// Exists reports whether ref names a readable audio object.
func (s *Sources) Exists(ctx context.Context, ref string) bool {
	r := ParseRef(ref)
	src, err := s.source(r)
	if err != nil {
		return false
	}
	if r.Scheme == "s3" && r.Bucket != "" {
		return s.S3.ExistsIn(ctx, r.Bucket, r.Key)
	}
	return src.Exists(ctx, r.Key)
}
