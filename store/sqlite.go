package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pyq-server/models"
)

// SQLiteStore is a single-file document store for offline and small
// deployments. Filtering happens in Go on the decoded summaries.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a connection opened with db.InitSQLite.
func NewSQLiteStore(conn *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: conn}
}

func (s *SQLiteStore) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	query := `SELECT doc, views, attempts, average_score FROM papers`
	if !f.IncludeUnpublished {
		query += ` WHERE is_published = 1`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	var all []models.PaperSummary
	for rows.Next() {
		var (
			doc string
			st  models.PaperStats
			ps  models.PaperSummary
		)
		if err := rows.Scan(&doc, &st.Views, &st.Attempts, &st.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan paper row: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &ps); err != nil {
			return nil, fmt.Errorf("failed to decode paper document: %w", err)
		}
		ps.Views, ps.Attempts, ps.AverageScore = st.Views, st.Attempts, st.AverageScore
		all = append(all, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper rows: %w", err)
	}
	return models.FilterSummaries(all, f), nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Paper, error) {
	return s.get(ctx, id)
}

func (s *SQLiteStore) RecordView(ctx context.Context, id string) (*models.Paper, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE papers SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to record view: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.get(ctx, id)
}

func (s *SQLiteStore) Create(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, uuid.NewString)
	doc, err := json.Marshal(contentOnly(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode paper: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO papers (id, doc, is_published, views, attempts, average_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, string(doc), c.IsPublished, c.Views, c.Attempts, c.AverageScore, c.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, uuid.NewString)
	c.Revision = p.Revision + 1
	doc, err := json.Marshal(contentOnly(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode paper: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE papers
		SET doc = json_set($2, '$.createdAt', json_extract(doc, '$.createdAt')), is_published = $3
		WHERE id = $1 AND coalesce(json_extract(doc, '$.revision'), 0) = $4`,
		c.ID, string(doc), c.IsPublished, p.Revision)
	if err != nil {
		return nil, fmt.Errorf("failed to update paper: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.replaceMiss(ctx, c.ID)
	}
	return s.get(ctx, c.ID)
}

// replaceMiss tells a missing paper from a stale revision.
func (s *SQLiteStore) replaceMiss(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers WHERE id = $1`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check paper: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, id string, percentage float64) (models.PaperStats, error) {
	var st models.PaperStats
	err := s.db.QueryRowContext(ctx, `
		UPDATE papers
		SET attempts = attempts + 1,
		    average_score = (average_score * attempts + $2) / (attempts + 1)
		WHERE id = $1
		RETURNING views, attempts, average_score`, id, percentage).
		Scan(&st.Views, &st.Attempts, &st.AverageScore)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PaperStats{}, ErrNotFound
	}
	if err != nil {
		return models.PaperStats{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, id string) (*models.Paper, error) {
	var (
		doc string
		st  models.PaperStats
	)
	err := s.db.QueryRowContext(ctx, `SELECT doc, views, attempts, average_score FROM papers WHERE id = $1`, id).
		Scan(&doc, &st.Views, &st.Attempts, &st.AverageScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load paper: %w", err)
	}
	var p models.Paper
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("failed to decode paper document: %w", err)
	}
	p.Views, p.Attempts, p.AverageScore = st.Views, st.Attempts, st.AverageScore
	return &p, nil
}
