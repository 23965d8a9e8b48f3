package transcribe

import (
	"errors"
	"testing"
)

func TestDecodeLine(t *testing.T) {
	t.Run("info_record", func(t *testing.T) {
		ev, err := DecodeLine([]byte(`{"TranscriptionInfo": {"language": "en", "language_probability": 0.98, "duration": 10.0, "all_language_probs": null}}`))
		if err != nil {
			t.Fatalf("DecodeLine: %v", err)
		}
		if ev.Kind != EventInfo {
			t.Fatalf("Kind = %v, want info", ev.Kind)
		}
		if ev.Info.Language != "en" || ev.Info.LanguageProbability != 0.98 || ev.Info.Duration != 10.0 {
			t.Errorf("Info = %+v", *ev.Info)
		}
		if ev.Segment != nil {
			t.Error("Segment should be nil for an info event")
		}
	})

	t.Run("segment_without_words", func(t *testing.T) {
		ev, err := DecodeLine([]byte(`{"Segment": {"id": 1, "seek": 0, "start": 0.0, "end": 4.0, "text": "hello ", "tokens": [1, 2]}}`))
		if err != nil {
			t.Fatalf("DecodeLine: %v", err)
		}
		if ev.Kind != EventSegment {
			t.Fatalf("Kind = %v, want segment", ev.Kind)
		}
		if ev.Segment.Text != "hello " || ev.Segment.Start != 0 || ev.Segment.End != 4.0 {
			t.Errorf("Segment = %+v", *ev.Segment)
		}
		if ev.Segment.Words != nil {
			t.Errorf("Words = %v, want nil", ev.Segment.Words)
		}
	})

	t.Run("segment_with_null_words", func(t *testing.T) {
		ev, err := DecodeLine([]byte(`{"Segment": {"start": 1, "end": 2, "text": "x", "words": null}}`))
		if err != nil {
			t.Fatalf("DecodeLine: %v", err)
		}
		if ev.Segment.Words != nil {
			t.Errorf("Words = %v, want nil", ev.Segment.Words)
		}
	})

	t.Run("segment_with_words", func(t *testing.T) {
		ev, err := DecodeLine([]byte(`{"Segment": {"start": 0, "end": 1.5, "text": " hi there", "words": [` +
			`{"word": " hi", "start": 0, "end": 0.5, "probability": 0.9},` +
			`{"word": " there", "start": 0.5, "end": 1.5, "probability": 0.4}]}}`))
		if err != nil {
			t.Fatalf("DecodeLine: %v", err)
		}
		words := ev.Segment.Words
		if len(words) != 2 {
			t.Fatalf("len(Words) = %d, want 2", len(words))
		}
		if words[1].Word != " there" || words[1].Probability != 0.4 || words[1].End != 1.5 {
			t.Errorf("Words[1] = %+v", words[1])
		}
	})

	malformed := []struct {
		name string
		line string
	}{
		{"not_json", `{"Segment": {"start": 0,`},
		{"json_array", `[1, 2, 3]`},
		{"unknown_key", `{"Progress": {"pct": 10}}`},
		{"empty_object", `{}`},
		{"blank_line", `   `},
		{"info_missing_duration", `{"TranscriptionInfo": {"language": "en", "language_probability": 0.9}}`},
		{"info_null", `{"TranscriptionInfo": null}`},
		{"info_not_object", `{"TranscriptionInfo": "en"}`},
		{"segment_missing_text", `{"Segment": {"start": 0, "end": 1}}`},
		{"segment_null_end", `{"Segment": {"start": 0, "end": null, "text": "x"}}`},
		{"segment_wrong_type", `{"Segment": {"start": "zero", "end": 1, "text": "x"}}`},
		{"words_not_array", `{"Segment": {"start": 0, "end": 1, "text": "x", "words": {}}}`},
		{"word_missing_probability", `{"Segment": {"start": 0, "end": 1, "text": "x", "words": [{"word": "x", "start": 0, "end": 1}]}}`},
	}
	for _, tt := range malformed {
		t.Run("malformed_"+tt.name, func(t *testing.T) {
			_, err := DecodeLine([]byte(tt.line))
			var mre *MalformedRecordError
			if !errors.As(err, &mre) {
				t.Fatalf("err = %v, want *MalformedRecordError", err)
			}
		})
	}
}

func TestMalformedRecordErrorMessage(t *testing.T) {
	err := &MalformedRecordError{Line: 3, Reason: `Segment missing required field "text"`}
	want := `malformed record at line 3: Segment missing required field "text"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
