package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pyq-server/event"
	"pyq-server/metrics"
	"pyq-server/models"
	"pyq-server/store"
	"pyq-server/utils"
)

// Service is the paper store and scoring engine as the HTTP layer sees it.
// It validates drafts, keeps derived fields current and publishes events.
type Service struct {
	store  store.Store
	events event.Publisher
	now    func() time.Time
}

func NewService(s store.Store, pub event.Publisher) *Service {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &Service{store: s, events: pub, now: time.Now}
}

// List returns published papers only.
func (s *Service) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	f.IncludeUnpublished = false
	return s.store.List(ctx, f)
}

// ListAll returns papers regardless of publication state.
func (s *Service) ListAll(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	f.IncludeUnpublished = true
	return s.store.List(ctx, f)
}

// View returns the full paper and counts one view.
func (s *Service) View(ctx context.Context, id string) (*models.Paper, error) {
	return s.store.RecordView(ctx, id)
}

// Get returns the full paper without counting a view.
func (s *Service) Get(ctx context.Context, id string) (*models.Paper, error) {
	return s.store.Get(ctx, id)
}

// Create validates the draft and stores a new paper. The returned warnings
// come from Paper.Lint and do not block saving.
func (s *Service) Create(ctx context.Context, d models.PaperDraft, actor string) (*models.Paper, []string, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	p, err := s.store.Create(ctx, d.NewPaper(s.now().UTC()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create paper: %w", err)
	}
	warnings := p.Lint()
	logWarnings(p, warnings)
	log.Printf("Admin event: paper %s (%s) created by %s", p.ID, p.Title, actor)
	metrics.ObservePaperWrite("created")
	s.publish(ctx, event.PaperCreated, paperEvent(p, actor))
	return p, warnings, nil
}

// updateAttempts bounds how often Update re-reads a paper that another
// writer changed underneath it.
const updateAttempts = 5

// Update merges the patch into the stored paper. Usage counters are never
// touched by an edit. A concurrent edit makes the store reject the write;
// the patch is then applied again to the fresh copy, so fields changed by
// the other writer survive.
func (s *Service) Update(ctx context.Context, id string, patch models.PaperPatch, actor string) (*models.Paper, []string, error) {
	if err := patch.Validate(); err != nil {
		return nil, nil, err
	}
	var (
		p   *models.Paper
		err error
	)
	for attempt := 1; ; attempt++ {
		var current *models.Paper
		current, err = s.store.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		patch.ApplyTo(current, s.now().UTC())
		p, err = s.store.Replace(ctx, current)
		if !errors.Is(err, store.ErrConflict) || attempt == updateAttempts {
			break
		}
		log.Printf("Paper %s changed during update by %s, retrying", id, actor)
	}
	if err != nil {
		return nil, nil, err
	}
	warnings := p.Lint()
	logWarnings(p, warnings)
	log.Printf("Admin event: paper %s (%s) updated by %s", p.ID, p.Title, actor)
	metrics.ObservePaperWrite("updated")
	s.publish(ctx, event.PaperUpdated, paperEvent(p, actor))
	return p, warnings, nil
}

func (s *Service) Delete(ctx context.Context, id, actor string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("Admin event: paper %s deleted by %s", id, actor)
	metrics.ObservePaperWrite("deleted")
	s.publish(ctx, event.PaperDeleted, event.PaperEvent{PaperID: id, Actor: actor})
	return nil
}

// Submit scores the answers and folds the attempt into the paper's
// statistics. The only failure that leaves no trace is a missing paper.
// Submissions are accepted whether or not the paper is published.
func (s *Service) Submit(ctx context.Context, id string, answers map[string]*int) (*models.ScoreReport, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report, pct := Grade(p, answers)
	stats, err := s.store.RecordAttempt(ctx, id, pct)
	if err != nil {
		return nil, err
	}
	report.Statistics = models.StatsSnapshot{
		Attempts:     stats.Attempts,
		AverageScore: utils.Round(stats.AverageScore, 2),
	}

	metrics.ObserveSubmission(string(p.Exam), pct)
	s.publish(ctx, event.PaperSubmitted, event.SubmissionEvent{
		PaperID:      id,
		Score:        report.Score,
		TotalMarks:   report.TotalMarks,
		Percentage:   report.Percentage,
		Attempts:     stats.Attempts,
		AverageScore: stats.AverageScore,
	})
	return &report, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		log.Printf("WARN: failed to publish %s: %v", routingKey, err)
	}
}

func paperEvent(p *models.Paper, actor string) event.PaperEvent {
	return event.PaperEvent{
		PaperID:     p.ID,
		Title:       p.Title,
		Exam:        string(p.Exam),
		Year:        p.Year,
		IsPublished: p.IsPublished,
		Actor:       actor,
	}
}

func logWarnings(p *models.Paper, warnings []string) {
	for _, w := range warnings {
		log.Printf("WARN: paper %s: %s", p.ID, w)
	}
}
