package mqttclient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

type sent struct {
	topic   string
	payload []byte
}

type fakeSender struct {
	msgs []sent
	err  error
}

func (f *fakeSender) Publish(topic string, payload []byte) error {
	f.msgs = append(f.msgs, sent{topic, payload})
	return f.err
}

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"whisper-remote", []string{"abc", "segment"}, "whisper-remote/abc/segment"},
		{"/site/asr/", []string{"abc", "info"}, "site/asr/abc/info"},
		{"", []string{"abc", "result"}, "abc/result"},
		{"p", []string{"", "x"}, "p/x"},
	}
	for _, tt := range tests {
		if got := Topic(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("Topic(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestPublisher(t *testing.T) {
	t.Run("publishes_each_event", func(t *testing.T) {
		fs := &fakeSender{}
		p := NewPublisher(fs, "asr", zerolog.Nop())

		p.OnInfo("j1", transcribe.Info{Language: "de", LanguageProbability: 0.7, Duration: 12}, "german")
		p.OnSegment("j1", 0, transcribe.Segment{Start: 0, End: 2, Text: "hallo"})
		p.OnDone("j1", &transcribe.Result{Text: "hallo", Segments: []transcribe.Segment{}, Language: "german"}, nil)

		wantTopics := []string{"asr/j1/info", "asr/j1/segment", "asr/j1/result"}
		if len(fs.msgs) != len(wantTopics) {
			t.Fatalf("published %d messages, want %d", len(fs.msgs), len(wantTopics))
		}
		for i, want := range wantTopics {
			if fs.msgs[i].topic != want {
				t.Errorf("msg %d topic = %q, want %q", i, fs.msgs[i].topic, want)
			}
		}

		var seg map[string]any
		if err := json.Unmarshal(fs.msgs[1].payload, &seg); err != nil {
			t.Fatalf("segment payload: %v", err)
		}
		if seg["text"] != "hallo" || seg["index"] != float64(0) {
			t.Errorf("segment payload = %v", seg)
		}

		var res transcribe.Result
		if err := json.Unmarshal(fs.msgs[2].payload, &res); err != nil {
			t.Fatalf("result payload: %v", err)
		}
		if res.Language != "german" || res.Text != "hallo" {
			t.Errorf("result payload = %+v", res)
		}
	})

	t.Run("failure_publishes_error", func(t *testing.T) {
		fs := &fakeSender{}
		NewPublisher(fs, "asr", zerolog.Nop()).OnDone("j2", nil, errors.New("refused"))
		if len(fs.msgs) != 1 || fs.msgs[0].topic != "asr/j2/error" {
			t.Fatalf("msgs = %+v", fs.msgs)
		}
	})

	t.Run("send_errors_are_swallowed", func(t *testing.T) {
		fs := &fakeSender{err: errors.New("broker down")}
		p := NewPublisher(fs, "asr", zerolog.Nop())
		p.OnSegment("j3", 4, transcribe.Segment{Text: "x"})
		if len(fs.msgs) != 1 {
			t.Errorf("msgs = %d, want 1 attempt", len(fs.msgs))
		}
	})
}
