package transcribe

// Info is the stream header describing the detected language and the total
// audio duration. The server sends it once, before any segment.
type Info struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"` // seconds
}

// Word is a single recognized token with its own timing and confidence.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Segment is a contiguous span of transcribed audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"` // nil when the server sent no word detail
}

// EventKind tags an Event.
type EventKind int

const (
	EventInfo EventKind = iota + 1
	EventSegment
)

func (k EventKind) String() string {
	switch k {
	case EventInfo:
		return "info"
	case EventSegment:
		return "segment"
	default:
		return "unknown"
	}
}

// Event is one decoded record of the response stream. Exactly one of Info
// and Segment is set, matching Kind.
type Event struct {
	Kind    EventKind
	Info    *Info
	Segment *Segment
}

// Result is the aggregate transcription returned once the stream closes.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}
