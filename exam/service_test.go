package exam

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"pyq-server/event"
	"pyq-server/models"
	"pyq-server/store"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func newTestService() (*Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewService(store.NewMemoryStore(), pub), pub
}

func draft(n int) models.PaperDraft {
	d := models.PaperDraft{
		Title:       "UPSC Prelims 2023",
		Description: "GS paper I",
		Subject:     "General Studies",
		Exam:        models.ExamUPSC,
		Year:        2023,
		Category:    "Prelims",
		IsPublished: true,
	}
	for i := 0; i < n; i++ {
		d.Questions = append(d.Questions, models.Question{Question: "Q", Options: fourOptions(i % 4)})
	}
	return d
}

func TestCreateDerivesTotals(t *testing.T) {
	svc, pub := newTestService()
	d := draft(3)
	d.Questions[1].Marks = 4
	p, warnings, err := svc.Create(context.Background(), d, "author@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if p.TotalQuestions != len(p.Questions) || p.TotalMarks != 6 {
		t.Errorf("totals = %d/%d, want 3/6", p.TotalQuestions, p.TotalMarks)
	}
	if got := pub.published(); !reflect.DeepEqual(got, []string{event.PaperCreated}) {
		t.Errorf("events = %v", got)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	svc, pub := newTestService()
	_, _, err := svc.Create(context.Background(), models.PaperDraft{Title: "only a title"}, "a")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	list, _ := svc.ListAll(context.Background(), models.PaperFilter{})
	if len(list) != 0 || len(pub.published()) != 0 {
		t.Error("invalid draft left state behind")
	}
}

func TestCreateWarnsOnMissingCorrectOption(t *testing.T) {
	svc, _ := newTestService()
	d := draft(2)
	d.Questions[0].Options = fourOptions(-1)
	_, warnings, err := svc.Create(context.Background(), d, "a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}

func TestViewCountsEveryCall(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(1), "a")

	first, err := svc.View(ctx, p.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	second, _ := svc.View(ctx, p.ID)
	if second.Views != first.Views+1 {
		t.Errorf("views went %d -> %d", first.Views, second.Views)
	}
	if _, err := svc.View(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMergesAndReplacesQuestions(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(4), "a")
	if _, err := svc.Submit(ctx, p.ID, map[string]*int{}); err != nil {
		t.Fatal(err)
	}

	desc := "Revised"
	qs := []models.Question{{Question: "new", Options: fourOptions(1), Marks: 3}}
	updated, _, err := svc.Update(ctx, p.ID, models.PaperPatch{Description: &desc, Questions: &qs}, "b")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != p.Title || updated.Description != "Revised" {
		t.Errorf("shallow merge broken: %q / %q", updated.Title, updated.Description)
	}
	if updated.TotalQuestions != 1 || updated.TotalMarks != 3 {
		t.Errorf("totals = %d/%d, want 1/3", updated.TotalQuestions, updated.TotalMarks)
	}
	if updated.Attempts != 1 {
		t.Errorf("attempts = %d, edit must not reset counters", updated.Attempts)
	}
	if !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("createdAt changed by edit")
	}

	if _, _, err := svc.Update(ctx, "missing", models.PaperPatch{Description: &desc}, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	keys := pub.published()
	if keys[len(keys)-1] != event.PaperUpdated {
		t.Errorf("last event = %s", keys[len(keys)-1])
	}
}

// racingStore lets another writer edit the paper just before the first
// Replace it sees.
type racingStore struct {
	store.Store
	once  sync.Once
	other func()
}

func (r *racingStore) Replace(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	r.once.Do(r.other)
	return r.Store.Replace(ctx, p)
}

func TestUpdateKeepsConcurrentEdits(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryStore()
	rs := &racingStore{Store: inner}
	svc := NewService(rs, nil)
	p, _, err := svc.Create(ctx, draft(2), "a")
	if err != nil {
		t.Fatal(err)
	}

	subject := "Polity"
	rs.other = func() {
		other := NewService(inner, nil)
		if _, _, err := other.Update(ctx, p.ID, models.PaperPatch{Subject: &subject}, "b"); err != nil {
			t.Errorf("competing Update: %v", err)
		}
	}

	desc := "Revised"
	updated, _, err := svc.Update(ctx, p.ID, models.PaperPatch{Description: &desc}, "a")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != "Revised" || updated.Subject != "Polity" {
		t.Errorf("lost an edit: description=%q subject=%q", updated.Description, updated.Subject)
	}
	if updated.Revision != 2 {
		t.Errorf("revision = %d, want 2", updated.Revision)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(1), "a")
	if err := svc.Delete(ctx, p.ID, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, p.ID, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestListHidesDraftsAndIsRepeatable(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d := draft(1)
		d.Year = 2019 + i
		svc.Create(ctx, d, "a")
	}
	hidden := draft(1)
	hidden.IsPublished = false
	svc.Create(ctx, hidden, "a")

	f := models.PaperFilter{Exam: models.ExamUPSC}
	first, _ := svc.List(ctx, f)
	second, _ := svc.List(ctx, f)
	if len(first) != 5 {
		t.Fatalf("List returned %d papers, want 5", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated List calls differ")
	}
	all, _ := svc.ListAll(ctx, f)
	if len(all) != 6 {
		t.Errorf("ListAll returned %d papers, want 6", len(all))
	}
}

func TestSubmitNoAnswers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(5), "a")

	report, err := svc.Submit(ctx, p.ID, map[string]*int{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.Score != 0 || report.TotalMarks != 5 || report.Percentage != 0 {
		t.Errorf("report = %d/%d %v%%", report.Score, report.TotalMarks, report.Percentage)
	}
	for _, r := range report.Results {
		if r.IsCorrect || r.Answered {
			t.Errorf("result marked answered/correct: %+v", r)
		}
	}
	if report.Statistics.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", report.Statistics.Attempts)
	}
}

func TestSubmitFiveMarkQuestion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(0)
	d.Questions = []models.Question{{Question: "Q", Options: fourOptions(2), Marks: 5}}
	p, _, _ := svc.Create(ctx, d, "a")

	report, err := svc.Submit(ctx, p.ID, map[string]*int{p.Questions[0].ID: intp(2)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.Score != 5 || report.TotalMarks != 5 || report.Percentage != 100 {
		t.Errorf("report = %d/%d %v%%", report.Score, report.TotalMarks, report.Percentage)
	}
	stored, _ := svc.Get(ctx, p.ID)
	if stored.Attempts != 1 || stored.AverageScore != 100 {
		t.Errorf("stored stats = %+v", stored.Stats())
	}
}

func TestSubmitEmptyPaperCountsZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(0), "a")
	withQuestions, _, _ := svc.Create(ctx, draft(2), "a")

	for i := 0; i < 3; i++ {
		report, err := svc.Submit(ctx, p.ID, nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if report.Percentage != 0 || math.IsNaN(report.Statistics.AverageScore) {
			t.Fatalf("report = %+v", report)
		}
	}
	stored, _ := svc.Get(ctx, p.ID)
	if stored.Attempts != 3 || stored.AverageScore != 0 {
		t.Errorf("stats = %+v, want 3 attempts at 0", stored.Stats())
	}

	// A zero contribution still counts toward the mean.
	right := map[string]*int{withQuestions.Questions[0].ID: intp(0), withQuestions.Questions[1].ID: intp(1)}
	svc.Submit(ctx, withQuestions.ID, right)
	svc.Submit(ctx, withQuestions.ID, nil)
	stored, _ = svc.Get(ctx, withQuestions.ID)
	if stored.AverageScore != 50 {
		t.Errorf("average = %v, want 50", stored.AverageScore)
	}
}

func TestSubmitMissingPaper(t *testing.T) {
	svc, pub := newTestService()
	if _, err := svc.Submit(context.Background(), "nope", nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if len(pub.published()) != 0 {
		t.Error("event published for a failed submission")
	}
}

func TestSubmitRunningAverageProperty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	const questions = 8
	p, _, _ := svc.Create(ctx, draft(questions), "a")

	r := rand.New(rand.NewSource(42))
	var pcts []float64
	for k := 0; k < 50; k++ {
		answers := map[string]*int{}
		correct := 0
		for i, q := range p.Questions {
			if r.Intn(2) == 0 {
				answers[q.ID] = intp(i % 4)
				correct++
			}
		}
		if _, err := svc.Submit(ctx, p.ID, answers); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		pcts = append(pcts, float64(correct)/questions*100)

		sum := 0.0
		for _, v := range pcts {
			sum += v
		}
		stored, _ := svc.Get(ctx, p.ID)
		if math.Abs(stored.AverageScore-sum/float64(len(pcts))) > 1e-9 {
			t.Fatalf("after %d submissions average = %v, mean = %v", len(pcts), stored.AverageScore, sum/float64(len(pcts)))
		}
		if stored.Attempts != len(pcts) {
			t.Fatalf("attempts = %d, want %d", stored.Attempts, len(pcts))
		}
	}
}

func TestConcurrentSubmissionsKeepEveryAttempt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _, _ := svc.Create(ctx, draft(1), "a")
	qid := p.Questions[0].ID

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers := map[string]*int{}
			if i%4 == 0 {
				answers[qid] = intp(0)
			}
			if _, err := svc.Submit(ctx, p.ID, answers); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, _ := svc.Get(ctx, p.ID)
	if stored.Attempts != n {
		t.Errorf("attempts = %d, want %d", stored.Attempts, n)
	}
	if math.Abs(stored.AverageScore-25) > 1e-9 {
		t.Errorf("average = %v, want 25", stored.AverageScore)
	}
}
