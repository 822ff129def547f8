// Package store persists papers. Every backend keeps the paper aggregate as
// one document and updates its usage counters atomically, so concurrent
// views and submissions never lose increments.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pyq-server/models"
)

// ErrNotFound is returned when no paper has the requested id.
var ErrNotFound = errors.New("paper not found")

// ErrConflict is returned by Replace when the stored paper was edited after
// the caller read it.
var ErrConflict = errors.New("paper was modified concurrently")

// Store is implemented by every paper backend.
type Store interface {
	// List returns matching papers without their questions, ordered by year
	// desc, creation time desc and id asc.
	List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error)
	// Get returns the full paper. It has no side effects.
	Get(ctx context.Context, id string) (*models.Paper, error)
	// RecordView increments views by one and returns the updated paper.
	RecordView(ctx context.Context, id string) (*models.Paper, error)
	// Create assigns identities and persists a new paper.
	Create(ctx context.Context, p *models.Paper) (*models.Paper, error)
	// Replace overwrites the authored content of an existing paper if its
	// stored revision still equals p.Revision, and bumps the revision.
	// Usage counters and the creation time are kept from the stored copy.
	Replace(ctx context.Context, p *models.Paper) (*models.Paper, error)
	Delete(ctx context.Context, id string) error
	// RecordAttempt folds one submission percentage into the running average
	// and returns the counters after the update.
	RecordAttempt(ctx context.Context, id string, percentage float64) (models.PaperStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepare gives the paper and its questions ids where missing and refreshes
// the derived fields. newID is used for the paper id when it is empty.
func prepare(p *models.Paper, newID func() string) {
	if p.ID == "" {
		p.ID = newID()
	}
	for i := range p.Questions {
		if p.Questions[i].ID == "" {
			p.Questions[i].ID = uuid.NewString()
		}
	}
	p.Recompute()
}

// contentOnly returns a copy of p with usage counters zeroed, for backends
// that store counters outside the document.
func contentOnly(p *models.Paper) *models.Paper {
	c := p.Clone()
	c.Views, c.Attempts, c.AverageScore = 0, 0, 0
	return c
}

// nextAverage is the running mean after one more attempt scoring pct.
func nextAverage(avg float64, attempts int, pct float64) float64 {
	return (avg*float64(attempts) + pct) / float64(attempts+1)
}
