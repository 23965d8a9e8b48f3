package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

// ResultRow is the input for persisting one finished transcription.
type ResultRow struct {
	JobID               string
	Source              string // file name or object reference
	RemoteURL           string
	Language            string // display label, e.g. "english"
	LanguageCode        string // raw code from the stream, e.g. "en"
	LanguageProbability *float64
	Duration            *float64
	Text                string
	Segments            []transcribe.Segment
}

// ResultStore persists finished transcriptions.
type ResultStore interface {
	InsertResult(ctx context.Context, row *ResultRow) (int64, error)
}

// InsertResult writes the transcription and all of its segments in one
// transaction and returns the new transcription id.
func (db *DB) InsertResult(ctx context.Context, row *ResultRow) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO transcriptions (
			job_id, source, remote_url, language, language_code,
			language_probability, duration, text, segment_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		row.JobID, row.Source, row.RemoteURL, row.Language, row.LanguageCode,
		row.LanguageProbability, row.Duration, row.Text, len(row.Segments),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transcription: %w", err)
	}

	if len(row.Segments) > 0 {
		rows, err := segmentRows(id, row.Segments)
		if err != nil {
			return 0, err
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"segments"},
			[]string{"transcription_id", "idx", "start_s", "end_s", "text", "words"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return 0, fmt.Errorf("copy segments: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

// segmentRows builds COPY rows for the segments table. Segments without
// word timings store NULL words.
func segmentRows(id int64, segs []transcribe.Segment) ([][]any, error) {
	rows := make([][]any, 0, len(segs))
	for i, s := range segs {
		var words []byte
		if len(s.Words) > 0 {
			b, err := json.Marshal(s.Words)
			if err != nil {
				return nil, fmt.Errorf("marshal words for segment %d: %w", i, err)
			}
			words = b
		}
		rows = append(rows, []any{id, i, s.Start, s.End, s.Text, words})
	}
	return rows, nil
}
