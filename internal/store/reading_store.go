// Package store persists completed readings in PostgreSQL. Structured
// stage outputs (analysis, cards, pattern, significator) are kept as jsonb
// so the full session can be replayed to the reading detail view.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
	"github.com/arcanastream/reading-orchestrator/internal/orchestration"
	"github.com/arcanastream/reading-orchestrator/internal/stream"
)

// ErrNotFound is returned when a reading id has no persisted record.
var ErrNotFound = errors.New("reading not found")

// ReadingStore reads and writes reading records over a pgx pool.
type ReadingStore struct {
	pool *pgxpool.Pool
}

// NewReadingStore creates a store on an existing pool.
func NewReadingStore(pool *pgxpool.Pool) *ReadingStore {
	return &ReadingStore{pool: pool}
}

// ReadingSummary is one row of a user's reading history.
type ReadingSummary struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	SpreadType  string    `json:"spread_type"`
	Summary     string    `json:"summary"`
	SourcePage  string    `json:"source_page,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// SaveReading inserts a completed reading. Records are write-once; sessions
// that fail never reach this call.
func (s *ReadingStore) SaveReading(ctx context.Context, rec orchestration.ReadingRecord) error {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	cardsJSON, err := json.Marshal(rec.Cards)
	if err != nil {
		return fmt.Errorf("failed to marshal cards: %w", err)
	}
	patternJSON, err := json.Marshal(rec.Pattern)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern: %w", err)
	}
	var significatorJSON []byte
	if rec.Significator != nil {
		significatorJSON, err = json.Marshal(rec.Significator)
		if err != nil {
			return fmt.Errorf("failed to marshal significator: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO readings (
			id, user_id, question, question_analysis, spread_type,
			cards, pattern_analysis, significator,
			imagery_description, interpretation, interpretation_summary,
			source_page, total_time_ms, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.UserID, rec.Question, analysisJSON, rec.SpreadType,
		cardsJSON, patternJSON, significatorJSON,
		rec.Imagery, rec.Interpretation, rec.Summary,
		nullable(rec.SourcePage), rec.TotalTimeMS, rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// GetReading loads one reading with its full stage outputs.
func (s *ReadingStore) GetReading(ctx context.Context, id string) (orchestration.ReadingRecord, error) {
	var (
		rec              orchestration.ReadingRecord
		userID           *string
		sourcePage       *string
		analysisJSON     []byte
		cardsJSON        []byte
		patternJSON      []byte
		significatorJSON []byte
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, question, question_analysis, spread_type,
			cards, pattern_analysis, significator,
			imagery_description, interpretation, interpretation_summary,
			source_page, total_time_ms, created_at, completed_at
		 FROM readings WHERE id = $1`,
		id,
	).Scan(
		&rec.ID, &userID, &rec.Question, &analysisJSON, &rec.SpreadType,
		&cardsJSON, &patternJSON, &significatorJSON,
		&rec.Imagery, &rec.Interpretation, &rec.Summary,
		&sourcePage, &rec.TotalTimeMS, &rec.CreatedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchestration.ReadingRecord{}, ErrNotFound
	}
	if err != nil {
		return orchestration.ReadingRecord{}, fmt.Errorf("failed to query reading: %w", err)
	}

	if userID != nil {
		rec.UserID = *userID
	}
	if sourcePage != nil {
		rec.SourcePage = *sourcePage
	}
	if err := json.Unmarshal(analysisJSON, &rec.Analysis); err != nil {
		return orchestration.ReadingRecord{}, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	if err := json.Unmarshal(cardsJSON, &rec.Cards); err != nil {
		return orchestration.ReadingRecord{}, fmt.Errorf("failed to unmarshal cards: %w", err)
	}
	if err := json.Unmarshal(patternJSON, &rec.Pattern); err != nil {
		return orchestration.ReadingRecord{}, fmt.Errorf("failed to unmarshal pattern: %w", err)
	}
	if len(significatorJSON) > 0 {
		rec.Significator = &stream.SignificatorInfo{}
		if err := json.Unmarshal(significatorJSON, rec.Significator); err != nil {
			return orchestration.ReadingRecord{}, fmt.Errorf("failed to unmarshal significator: %w", err)
		}
	}

	if err := domain.ValidateSelection(rec.Cards, domain.SpreadType(rec.SpreadType)); err != nil {
		return orchestration.ReadingRecord{}, fmt.Errorf("stored reading %s is inconsistent: %w", id, err)
	}

	return rec, nil
}

// ListReadings returns a user's reading history, newest first.
func (s *ReadingStore) ListReadings(ctx context.Context, userID string, limit, offset int) ([]ReadingSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question, spread_type, interpretation_summary,
			COALESCE(source_page, ''), created_at, completed_at
		 FROM readings
		 WHERE user_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	summaries := []ReadingSummary{}
	for rows.Next() {
		var sum ReadingSummary
		if err := rows.Scan(&sum.ID, &sum.Question, &sum.SpreadType, &sum.Summary,
			&sum.SourcePage, &sum.CreatedAt, &sum.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return summaries, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
