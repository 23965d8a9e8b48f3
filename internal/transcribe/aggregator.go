package transcribe

import (
	"errors"
	"strings"
)

// errLateInfo rejects an Info record that is not the first record.
var errLateInfo = errors.New("TranscriptionInfo must be the first record and appear once")

// Aggregator folds the event stream into a Result. It is not safe for
// concurrent use; one Aggregator serves one response stream.
type Aggregator struct {
	info     *Info
	language string
	text     strings.Builder
	segments []Segment
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{segments: []Segment{}}
}

// Apply consumes one event. A misplaced Info yields a *MalformedRecordError
// and leaves the aggregator unchanged. An unknown language yields an
// *UnknownLanguageError after the Info has been recorded with the raw code
// as its label. Neither error invalidates the aggregator.
func (a *Aggregator) Apply(ev Event) error {
	switch ev.Kind {
	case EventInfo:
		if a.info != nil || len(a.segments) > 0 {
			return &MalformedRecordError{Reason: "unexpected TranscriptionInfo", Err: errLateInfo}
		}
		info := *ev.Info
		a.info = &info
		name, err := LanguageName(info.Language)
		a.language = name
		return err
	case EventSegment:
		seg := *ev.Segment
		if len(seg.Words) > 0 {
			seg.Words = append([]Word(nil), seg.Words...)
		}
		a.segments = append(a.segments, seg)
		a.text.WriteString(seg.Text)
		return nil
	default:
		return &MalformedRecordError{Reason: "unknown event kind " + ev.Kind.String()}
	}
}

// Info returns the recorded stream header, or nil if none arrived.
func (a *Aggregator) Info() *Info { return a.info }

// Language returns the language label, "" before any Info.
func (a *Aggregator) Language() string { return a.language }

// SegmentCount returns the number of segments consumed so far.
func (a *Aggregator) SegmentCount() int { return len(a.segments) }

// Result returns the aggregate built so far. Callers take it once the
// stream is exhausted.
func (a *Aggregator) Result() *Result {
	return &Result{
		Text:     a.text.String(),
		Segments: a.segments,
		Language: a.language,
	}
}
