package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whisper_remote"

// HTTP metrics, incremented by InstrumentHandler.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Stream counters (incremented directly by the transcription client).
var (
	StreamLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_lines_total",
		Help:      "Total non-empty lines read from remote response streams.",
	})

	MalformedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_records_total",
		Help:      "Stream lines skipped because they could not be decoded.",
	})

	SegmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_total",
		Help:      "Total segments received.",
	})

	UnknownLanguagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_languages_total",
		Help:      "Language codes missing from the lookup table.",
	})

	ConnectionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_errors_total",
		Help:      "Transcriptions aborted by a transport failure.",
	})

	TranscriptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Transcription calls by outcome.",
	}, []string{"outcome"})

	TranscriptionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Wall time of successful transcription calls.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s → ~17m
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamLinesTotal,
		MalformedRecordsTotal,
		SegmentsTotal,
		UnknownLanguagesTotal,
		ConnectionErrorsTotal,
		TranscriptionsTotal,
		TranscriptionDuration,
	)
}

// InstrumentHandler returns middleware that records HTTP request metrics.
// It uses chi's route pattern as the path label to avoid cardinality explosion.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		pattern := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			pattern = rc.RoutePattern()
		}
		if pattern == "" {
			pattern = "unknown"
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap supports http.ResponseController and middleware that check for
// wrapped writers.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
