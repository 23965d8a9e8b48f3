package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultFieldName = "audio_file"
	maxLineSize      = 4 << 20
)

// Payload is the audio to upload.
type Payload struct {
	Name string // file name reported in the multipart part
	Body io.Reader
}

// VADOptions are the voice-activity-detection parameters forwarded to the
// server. Zero values are omitted.
type VADOptions struct {
	Filter               bool
	Threshold            float64
	MinSpeechDurationMs  int
	MaxSpeechDurationS   float64
	MinSilenceDurationMs int
}

// RequestOptions are the form fields sent alongside the audio.
// Zero-value fields are omitted so servers that ignore them keep working.
type RequestOptions struct {
	Task           string // "transcribe" or "translate"
	Language       string
	WordTimestamps bool
	VAD            VADOptions
}

// Connector uploads audio to the remote transcription server and exposes
// the streamed response body as lines.
type Connector struct {
	url       string
	fieldName string
	client    *http.Client
}

// ConnectorOption customizes a Connector.
type ConnectorOption func(*Connector)

// WithTimeout bounds the whole request, including reading the body.
// Zero leaves the request unbounded.
func WithTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.client.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ConnectorOption {
	return func(c *Connector) { c.client = hc }
}

// WithFieldName sets the multipart field carrying the audio.
func WithFieldName(name string) ConnectorOption {
	return func(c *Connector) {
		if name != "" {
			c.fieldName = name
		}
	}
}

// NewConnector creates a Connector for the given server URL.
func NewConnector(url string, opts ...ConnectorOption) *Connector {
	c := &Connector{
		url:       url,
		fieldName: defaultFieldName,
		client:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL returns the destination address.
func (c *Connector) URL() string { return c.url }

// Open issues the upload and returns the response body as a LineStream.
// Transport failures, including a non-2xx status, are a *ConnectionError;
// failing to read the payload itself is returned as a plain error.
func (c *Connector) Open(ctx context.Context, p Payload, opts RequestOptions) (*LineStream, error) {
	body, contentType, err := c.encode(p, opts)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ConnectionError{
			URL: c.url,
			Err: fmt.Errorf("remote error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	return newLineStream(c.url, resp.Body), nil
}

func (c *Connector) encode(p Payload, opts RequestOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := p.Name
	if name == "" {
		name = "audio"
	}
	part, err := w.CreateFormFile(c.fieldName, name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, p.Body); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}

	fields := formFields(opts)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// formFields lists the non-default request options as name/value pairs.
func formFields(opts RequestOptions) [][2]string {
	var fields [][2]string
	add := func(k, v string) { fields = append(fields, [2]string{k, v}) }

	if opts.Task != "" {
		add("task", opts.Task)
	}
	if opts.Language != "" {
		add("language", opts.Language)
	}
	if opts.WordTimestamps {
		add("word_timestamps", "true")
	}

	vad := opts.VAD
	if vad.Filter {
		add("vad_filter", "true")
	}
	if vad.Threshold > 0 {
		add("vad_threshold", strconv.FormatFloat(vad.Threshold, 'f', -1, 64))
	}
	if vad.MinSpeechDurationMs > 0 {
		add("vad_min_speech_duration_ms", strconv.Itoa(vad.MinSpeechDurationMs))
	}
	if vad.MaxSpeechDurationS > 0 {
		add("vad_max_speech_duration_s", strconv.FormatFloat(vad.MaxSpeechDurationS, 'f', -1, 64))
	}
	if vad.MinSilenceDurationMs > 0 {
		add("vad_min_silence_duration_ms", strconv.Itoa(vad.MinSilenceDurationMs))
	}
	return fields
}

// LineStream iterates over the non-empty lines of a response body. Each
// call to Next blocks until a full line is available or the body ends.
// A line longer than maxLineSize is discarded up to its newline and
// reported through Malformed; the stream keeps going after it.
type LineStream struct {
	url       string
	body      io.ReadCloser
	r         *bufio.Reader
	buf       []byte
	cur       []byte
	malformed error
	line      int
	done      bool
	err       error
}

func newLineStream(url string, body io.ReadCloser) *LineStream {
	return &LineStream{url: url, body: body, r: bufio.NewReaderSize(body, 64*1024)}
}

// Next advances to the next non-empty line. It returns false at the end of
// the body or on a transport error; check Err afterwards.
func (s *LineStream) Next() bool {
	for !s.done && s.err == nil {
		size, err := s.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			s.err = &ConnectionError{URL: s.url, Err: fmt.Errorf("read response: %w", err)}
			return false
		}
		if err != nil {
			s.done = true
			if size == 0 {
				return false
			}
		} else {
			size-- // newline
		}
		s.line++

		if size > maxLineSize {
			s.cur = nil
			s.malformed = &MalformedRecordError{
				Line:   s.line,
				Reason: fmt.Sprintf("line of %d bytes exceeds the %d byte limit", size, maxLineSize),
			}
			return true
		}
		s.malformed = nil
		s.cur = bytes.TrimRight(s.buf, "\r\n")
		if len(bytes.TrimSpace(s.cur)) > 0 {
			return true
		}
	}
	return false
}

// readLine reads up to and including the next newline into s.buf and
// returns the full line size. Bytes past maxLineSize are counted but not
// kept.
func (s *LineStream) readLine() (int, error) {
	s.buf = s.buf[:0]
	size := 0
	for {
		chunk, err := s.r.ReadSlice('\n')
		size += len(chunk)
		if size <= maxLineSize+1 {
			s.buf = append(s.buf, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return size, err
	}
}

// Bytes returns the current line. The slice is only valid until the next
// call to Next.
func (s *LineStream) Bytes() []byte { return s.cur }

// Malformed returns a *MalformedRecordError when the current line could not
// be read whole, nil otherwise.
func (s *LineStream) Malformed() error { return s.malformed }

// Line returns the 1-based line number of the current line.
func (s *LineStream) Line() int { return s.line }

// Err returns the *ConnectionError that ended the stream, if any.
func (s *LineStream) Err() error { return s.err }

// Close releases the response body.
func (s *LineStream) Close() error { return s.body.Close() }
