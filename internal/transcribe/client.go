package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/metrics"
)

// Options control a single Transcribe call.
type Options struct {
	JobID       string // generated when empty
	Verbose     bool   // print every segment
	Live        bool   // suppress per-segment printing and the progress sink
	PrintColors bool   // color words by confidence; forces word timestamps
	Request     RequestOptions
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Display   *Display     // nil disables printing
	Progress  ProgressSink // nil means NopProgress
	Observers []Observer
	Log       zerolog.Logger
}

// Client drives one response stream at a time through the decoder, the
// progress tracker, the colorizer and the aggregator. A Client may be shared;
// each Transcribe call owns its own stream state.
type Client struct {
	connector *Connector
	display   *Display
	progress  ProgressSink
	observers Observers
	log       zerolog.Logger
}

// NewClient creates a Client on top of a Connector.
func NewClient(connector *Connector, opts ClientOptions) *Client {
	progress := opts.Progress
	if progress == nil {
		progress = NopProgress
	}
	return &Client{
		connector: connector,
		display:   opts.Display,
		progress:  progress,
		observers: Observers(opts.Observers),
		log:       opts.Log,
	}
}

// URL returns the remote server address.
func (c *Client) URL() string { return c.connector.URL() }

// Transcribe uploads the payload and folds the streamed response into a
// Result. Malformed lines and unknown language codes are logged and skipped.
// A *ConnectionError discards everything accumulated so far and is returned
// with a nil Result.
func (c *Client) Transcribe(ctx context.Context, p Payload, opts Options) (*Result, error) {
	start := time.Now()
	job := opts.JobID
	if job == "" {
		job = uuid.NewString()
	}
	log := c.log.With().Str("job", job).Str("file", p.Name).Logger()

	req := opts.Request
	if opts.PrintColors {
		req.WordTimestamps = true
	}

	stream, err := c.connector.Open(ctx, p, req)
	if err != nil {
		return c.fail(log, job, err)
	}
	defer stream.Close()

	var (
		agg          = NewAggregator()
		tracker      ProgressTracker
		showProgress = !opts.Verbose && !opts.Live
		printLines   = (opts.Verbose || opts.PrintColors) && !opts.Live
		progressOn   bool
	)

	for stream.Next() {
		metrics.StreamLinesTotal.Inc()

		var ev Event
		err := stream.Malformed()
		if err == nil {
			ev, err = DecodeLine(stream.Bytes())
		}
		if err == nil {
			err = agg.Apply(ev)
		}

		var malformed *MalformedRecordError
		var unknown *UnknownLanguageError
		switch {
		case errors.As(err, &malformed):
			malformed.Line = stream.Line()
			metrics.MalformedRecordsTotal.Inc()
			log.Warn().Err(malformed).Msg("skipping malformed record")
			continue
		case errors.As(err, &unknown):
			metrics.UnknownLanguagesTotal.Inc()
			log.Warn().Str("language", unknown.Code).Msg("unknown language code, using raw code as label")
		}

		switch ev.Kind {
		case EventInfo:
			tracker.Observe(*ev.Info)
			if c.display != nil && !opts.Live {
				c.display.Language(TitleCase(agg.Language()), ev.Info.LanguageProbability)
			}
			if showProgress {
				c.progress.Start(ev.Info.Duration)
				progressOn = true
			}
			log.Debug().
				Str("language", ev.Info.Language).
				Float64("probability", ev.Info.LanguageProbability).
				Float64("duration", ev.Info.Duration).
				Msg("transcription info received")
			c.observers.OnInfo(job, *ev.Info, agg.Language())

		case EventSegment:
			seg := *ev.Segment
			metrics.SegmentsTotal.Inc()
			if c.display != nil && printLines {
				text := seg.Text
				if opts.PrintColors && len(seg.Words) > 0 {
					text = Colorize(seg.Words)
				}
				c.display.Segment(seg.Start, seg.End, text)
			}
			if inc, ok := tracker.Advance(seg.End); ok && progressOn {
				c.progress.Add(inc)
			}
			c.observers.OnSegment(job, agg.SegmentCount()-1, seg)
		}
	}

	if err := stream.Err(); err != nil {
		if progressOn {
			c.progress.Finish()
		}
		return c.fail(log, job, err)
	}
	if progressOn {
		c.progress.Finish()
	}

	if agg.Info() == nil {
		log.Warn().Msg("stream carried no TranscriptionInfo; language and progress unavailable")
	}

	res := agg.Result()
	elapsed := time.Since(start)
	metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()
	metrics.TranscriptionDuration.Observe(elapsed.Seconds())
	log.Info().
		Int("segments", len(res.Segments)).
		Str("language", res.Language).
		Dur("elapsed", elapsed).
		Msg("transcription complete")

	c.observers.OnDone(job, res, nil)
	return res, nil
}

func (c *Client) fail(log zerolog.Logger, job string, err error) (*Result, error) {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		metrics.ConnectionErrorsTotal.Inc()
		metrics.TranscriptionsTotal.WithLabelValues("connection_error").Inc()
		log.Error().Err(err).Str("url", connErr.URL).Msg("error connecting to the remote URL")
	} else {
		metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("transcription failed")
	}
	c.observers.OnDone(job, nil, err)
	return nil, err
}
