package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Top-level record keys in the response stream.
const (
	infoKey    = "TranscriptionInfo"
	segmentKey = "Segment"
)

// DecodeLine decodes one line of the response stream into an Event.
// Any line that is not a JSON object carrying a known record, or whose
// record lacks a required field, yields a *MalformedRecordError.
func DecodeLine(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, &MalformedRecordError{Reason: "empty line"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(line, &top); err != nil {
		return Event{}, &MalformedRecordError{Reason: "invalid json", Err: err}
	}

	if raw, ok := top[infoKey]; ok {
		info, err := decodeInfo(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventInfo, Info: info}, nil
	}
	if raw, ok := top[segmentKey]; ok {
		seg, err := decodeSegment(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventSegment, Segment: seg}, nil
	}

	return Event{}, &MalformedRecordError{Reason: "no TranscriptionInfo or Segment key"}
}

func decodeInfo(raw json.RawMessage) (*Info, error) {
	fields, err := object(raw, infoKey)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := required(fields, infoKey, "language", &info.Language); err != nil {
		return nil, err
	}
	if err := required(fields, infoKey, "language_probability", &info.LanguageProbability); err != nil {
		return nil, err
	}
	if err := required(fields, infoKey, "duration", &info.Duration); err != nil {
		return nil, err
	}
	return &info, nil
}

func decodeSegment(raw json.RawMessage) (*Segment, error) {
	fields, err := object(raw, segmentKey)
	if err != nil {
		return nil, err
	}
	var seg Segment
	if err := required(fields, segmentKey, "start", &seg.Start); err != nil {
		return nil, err
	}
	if err := required(fields, segmentKey, "end", &seg.End); err != nil {
		return nil, err
	}
	if err := required(fields, segmentKey, "text", &seg.Text); err != nil {
		return nil, err
	}

	rawWords, ok := fields["words"]
	if !ok || isNull(rawWords) {
		return &seg, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawWords, &items); err != nil {
		return nil, &MalformedRecordError{Reason: "Segment.words is not an array", Err: err}
	}
	if len(items) > 0 {
		seg.Words = make([]Word, 0, len(items))
	}
	for i, item := range items {
		w, err := decodeWord(item, i)
		if err != nil {
			return nil, err
		}
		seg.Words = append(seg.Words, w)
	}
	return &seg, nil
}

func decodeWord(raw json.RawMessage, idx int) (Word, error) {
	where := fmt.Sprintf("Segment.words[%d]", idx)
	fields, err := object(raw, where)
	if err != nil {
		return Word{}, err
	}
	var w Word
	if err := required(fields, where, "word", &w.Word); err != nil {
		return Word{}, err
	}
	if err := required(fields, where, "start", &w.Start); err != nil {
		return Word{}, err
	}
	if err := required(fields, where, "end", &w.End); err != nil {
		return Word{}, err
	}
	if err := required(fields, where, "probability", &w.Probability); err != nil {
		return Word{}, err
	}
	return w, nil
}

// object decodes raw as a JSON object keyed by field name.
func object(raw json.RawMessage, where string) (map[string]json.RawMessage, error) {
	if isNull(raw) {
		return nil, &MalformedRecordError{Reason: where + " is null"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &MalformedRecordError{Reason: where + " is not an object", Err: err}
	}
	return fields, nil
}

// required decodes fields[key] into dst, failing when the key is absent,
// null, or of the wrong type.
func required(fields map[string]json.RawMessage, where, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return &MalformedRecordError{Reason: fmt.Sprintf("%s missing required field %q", where, key)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &MalformedRecordError{Reason: fmt.Sprintf("%s field %q has wrong type", where, key), Err: err}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
