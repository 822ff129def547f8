package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pyq-server/models"
)

// PostgresStore keeps each paper as a JSONB document in the papers table.
// The usage counters live in their own columns so they can be incremented
// in place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgPaperColumns = `doc, views, attempts, average_score`

func (s *PostgresStore) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.IncludeUnpublished {
		where = append(where, "is_published")
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.Exam != "" {
		where = append(where, "exam = "+arg(string(f.Exam)))
	}
	if f.Year != 0 {
		where = append(where, "year = "+arg(f.Year))
	}
	if f.Subject != "" {
		where = append(where, "strpos(lower(doc->>'subject'), lower("+arg(f.Subject)+")) > 0")
	}
	if f.Search != "" {
		n := arg(f.Search)
		where = append(where, `(strpos(lower(title), lower(`+n+`)) > 0
			OR strpos(lower(coalesce(doc->>'titleHindi', '')), lower(`+n+`)) > 0
			OR strpos(lower(coalesce(doc->>'description', '')), lower(`+n+`)) > 0
			OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(coalesce(doc->'tags', '[]'::jsonb)) AS t(tag)
				WHERE strpos(lower(t.tag), lower(`+n+`)) > 0))`)
	}

	query := `SELECT doc - 'questions', views, attempts, average_score FROM papers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY year DESC, created_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	list := []models.PaperSummary{}
	for rows.Next() {
		var (
			doc []byte
			ps  models.PaperSummary
		)
		if err := rows.Scan(&doc, &ps.Views, &ps.Attempts, &ps.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan paper row: %w", err)
		}
		stats := models.PaperStats{Views: ps.Views, Attempts: ps.Attempts, AverageScore: ps.AverageScore}
		if err := json.Unmarshal(doc, &ps); err != nil {
			return nil, fmt.Errorf("failed to decode paper document: %w", err)
		}
		ps.Views, ps.Attempts, ps.AverageScore = stats.Views, stats.Attempts, stats.AverageScore
		list = append(list, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper rows: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Paper, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgPaperColumns+` FROM papers WHERE id = $1`, id)
	return scanPaper(row)
}

func (s *PostgresStore) RecordView(ctx context.Context, id string) (*models.Paper, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE papers SET views = views + 1
		WHERE id = $1
		RETURNING `+pgPaperColumns, id)
	return scanPaper(row)
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, uuid.NewString)
	doc, err := json.Marshal(contentOnly(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode paper: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO papers (id, doc, exam, year, category, title, is_published, views, attempts, average_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, doc, string(c.Exam), c.Year, c.Category, c.Title, c.IsPublished,
		c.Views, c.Attempts, c.AverageScore, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Replace(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, uuid.NewString)
	c.Revision = p.Revision + 1
	doc, err := json.Marshal(contentOnly(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode paper: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE papers
		SET doc = jsonb_set($2::jsonb, '{createdAt}', doc->'createdAt'), exam = $3, year = $4, category = $5, title = $6, is_published = $7, updated_at = $8
		WHERE id = $1 AND coalesce((doc->>'revision')::int, 0) = $9
		RETURNING `+pgPaperColumns,
		c.ID, doc, string(c.Exam), c.Year, c.Category, c.Title, c.IsPublished, c.UpdatedAt, p.Revision)
	out, err := scanPaper(row)
	if errors.Is(err, ErrNotFound) {
		return nil, s.replaceMiss(ctx, c.ID)
	}
	return out, err
}

// replaceMiss tells a missing paper from a stale revision.
func (s *PostgresStore) replaceMiss(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM papers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check paper: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt relies on every right-hand side of SET seeing the row as it
// was before the update.
func (s *PostgresStore) RecordAttempt(ctx context.Context, id string, percentage float64) (models.PaperStats, error) {
	var st models.PaperStats
	err := s.pool.QueryRow(ctx, `
		UPDATE papers
		SET attempts = attempts + 1,
		    average_score = (average_score * attempts + $2) / (attempts + 1)
		WHERE id = $1
		RETURNING views, attempts, average_score`, id, percentage).
		Scan(&st.Views, &st.Attempts, &st.AverageScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PaperStats{}, ErrNotFound
	}
	if err != nil {
		return models.PaperStats{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPaper(row pgx.Row) (*models.Paper, error) {
	var (
		doc []byte
		st  models.PaperStats
	)
	if err := row.Scan(&doc, &st.Views, &st.Attempts, &st.AverageScore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan paper: %w", err)
	}
	var p models.Paper
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("failed to decode paper document: %w", err)
	}
	p.Views, p.Attempts, p.AverageScore = st.Views, st.Attempts, st.AverageScore
	return &p, nil
}
