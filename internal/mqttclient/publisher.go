package mqttclient

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

// Sender is the publish half of a broker connection.
type Sender interface {
	Publish(topic string, payload []byte) error
}

// Publisher forwards transcription events to the broker as JSON under
// <prefix>/<job>/{info,segment,result,error}. It implements
// transcribe.Observer; publish failures are logged and never interrupt
// the stream.
type Publisher struct {
	sender Sender
	prefix string
	log    zerolog.Logger
}

// NewPublisher creates a Publisher on top of sender.
func NewPublisher(sender Sender, prefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		sender: sender,
		prefix: prefix,
		log:    log.With().Str("component", "mqtt-publisher").Logger(),
	}
}

func (p *Publisher) OnInfo(job string, info transcribe.Info, language string) {
	p.publish(job, "info", map[string]any{
		"language":             info.Language,
		"language_name":        language,
		"language_probability": info.LanguageProbability,
		"duration":             info.Duration,
	})
}

func (p *Publisher) OnSegment(job string, index int, seg transcribe.Segment) {
	p.publish(job, "segment", map[string]any{
		"index": index,
		"start": seg.Start,
		"end":   seg.End,
		"text":  seg.Text,
		"words": seg.Words,
	})
}

func (p *Publisher) OnDone(job string, res *transcribe.Result, err error) {
	if err != nil {
		p.publish(job, "error", map[string]string{"error": err.Error()})
		return
	}
	p.publish(job, "result", res)
}

func (p *Publisher) publish(job, kind string, v any) {
	topic := Topic(p.prefix, job, kind)
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("marshal mqtt payload")
		return
	}
	if err := p.sender.Publish(topic, payload); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
	}
}
