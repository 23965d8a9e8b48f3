package transcribe

import "fmt"

// ConnectionError is a transport-level failure talking to the remote
// server: refused, reset, timed out, or a non-2xx response. It is fatal to
// the whole call and no result is returned alongside it.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error connecting to the remote URL %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedRecordError reports a single stream line that could not be
// decoded. The line is skipped and the stream continues.
type MalformedRecordError struct {
	Line   int // 1-based position in the stream, 0 if unknown
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := "malformed record"
	if e.Line > 0 {
		msg = fmt.Sprintf("malformed record at line %d", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// UnknownLanguageError reports a language code missing from the lookup
// table. The raw code is kept as the display label.
type UnknownLanguageError struct {
	Code string
}

func (e *UnknownLanguageError) Error() string {
	return fmt.Sprintf("unknown language code %q", e.Code)
}
