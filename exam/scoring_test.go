package exam

import (
	"math"
	"math/rand"
	"testing"

	"pyq-server/models"
)

func intp(i int) *int { return &i }

func fourOptions(correct int) []models.Option {
	out := make([]models.Option, 4)
	for i := range out {
		out[i] = models.Option{Text: string(rune('A' + i)), IsCorrect: i == correct}
	}
	return out
}

func TestGrade(t *testing.T) {
	paper := &models.Paper{ID: "p1", Questions: []models.Question{
		{ID: "q1", QuestionNumber: 1, Question: "Capital of Bihar?", Options: fourOptions(2), Marks: 2, Explanation: "Patna"},
		{ID: "q2", QuestionNumber: 2, Question: "No key", Options: fourOptions(-1)},
		{ID: "q3", QuestionNumber: 3, Question: "Zero marks", Options: fourOptions(0), Marks: 0},
		{ID: "q4", QuestionNumber: 4, QuestionHindi: "केवल हिंदी", Options: nil},
	}}

	tests := []struct {
		name      string
		answers   map[string]*int
		wantScore int
		wantPct   float64
		correct   []bool
	}{
		{"no answers", map[string]*int{}, 0, 0, []bool{false, false, false, false}},
		{"all right where possible", map[string]*int{"q1": intp(2), "q3": intp(0)}, 3, 60, []bool{true, false, true, false}},
		{"wrong option", map[string]*int{"q1": intp(1)}, 0, 0, []bool{false, false, false, false}},
		{"out of range", map[string]*int{"q1": intp(9), "q3": intp(-1), "q4": intp(0)}, 0, 0, []bool{false, false, false, false}},
		{"no correct option marked", map[string]*int{"q2": intp(0)}, 0, 0, []bool{false, false, false, false}},
		{"null answer", map[string]*int{"q1": nil}, 0, 0, []bool{false, false, false, false}},
		{"unknown question id ignored", map[string]*int{"zz": intp(0), "q1": intp(2)}, 2, 40, []bool{true, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, pct := Grade(paper, tt.answers)
			if report.TotalMarks != 5 {
				t.Errorf("TotalMarks = %d, want 5", report.TotalMarks)
			}
			if report.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", report.Score, tt.wantScore)
			}
			if math.Abs(pct-tt.wantPct) > 1e-9 || report.Percentage != tt.wantPct {
				t.Errorf("percentage = %v (report %v), want %v", pct, report.Percentage, tt.wantPct)
			}
			if len(report.Results) != 4 {
				t.Fatalf("got %d results, want 4", len(report.Results))
			}
			for i, res := range report.Results {
				if res.IsCorrect != tt.correct[i] {
					t.Errorf("result %d IsCorrect = %v, want %v", i, res.IsCorrect, tt.correct[i])
				}
			}
		})
	}
}

func TestGradeResultDetails(t *testing.T) {
	paper := &models.Paper{Questions: []models.Question{
		{ID: "q1", QuestionNumber: 1, Question: "Q", Options: fourOptions(3), Explanation: "because"},
		{ID: "q2", QuestionNumber: 2, Question: "Q2", Options: fourOptions(-1)},
	}}
	report, _ := Grade(paper, map[string]*int{"q1": intp(0)})

	first := report.Results[0]
	if !first.Answered || first.SelectedAnswer == nil || *first.SelectedAnswer != 0 {
		t.Errorf("answer with option 0 not recorded: %+v", first)
	}
	if first.CorrectAnswer == nil || *first.CorrectAnswer != 3 {
		t.Errorf("CorrectAnswer = %v, want 3", first.CorrectAnswer)
	}
	if first.Explanation != "because" || first.Marks != 1 {
		t.Errorf("explanation/marks wrong: %+v", first)
	}

	second := report.Results[1]
	if second.Answered || second.SelectedAnswer != nil {
		t.Errorf("unanswered question reported as answered: %+v", second)
	}
	if second.CorrectAnswer != nil {
		t.Errorf("CorrectAnswer = %d, want nil when no option is correct", *second.CorrectAnswer)
	}
}

func TestGradePrefersHindiText(t *testing.T) {
	paper := &models.Paper{Questions: []models.Question{
		{ID: "q1", Question: "Capital of Bihar?", QuestionHindi: "बिहार की राजधानी?", Explanation: "Patna", ExplanationHindi: "पटना", Options: fourOptions(0)},
		{ID: "q2", Question: "English only", QuestionHindi: "  ", Explanation: "why", Options: fourOptions(0)},
	}}
	report, _ := Grade(paper, nil)

	if got := report.Results[0]; got.Question != "बिहार की राजधानी?" || got.Explanation != "पटना" {
		t.Errorf("bilingual question = %q / %q, want the Hindi text", got.Question, got.Explanation)
	}
	if got := report.Results[1]; got.Question != "English only" || got.Explanation != "why" {
		t.Errorf("blank Hindi should fall back to English: %q / %q", got.Question, got.Explanation)
	}
}

func TestGradeSingleFiveMarkQuestion(t *testing.T) {
	paper := &models.Paper{Questions: []models.Question{
		{ID: "only", Options: fourOptions(2), Marks: 5},
	}}
	report, pct := Grade(paper, map[string]*int{"only": intp(2)})
	if report.Score != 5 || report.TotalMarks != 5 || report.Percentage != 100 || pct != 100 {
		t.Errorf("got score=%d total=%d pct=%v", report.Score, report.TotalMarks, report.Percentage)
	}
}

func TestGradeEmptyPaper(t *testing.T) {
	report, pct := Grade(&models.Paper{}, nil)
	if report.TotalMarks != 0 || report.Score != 0 || pct != 0 || report.Percentage != 0 {
		t.Errorf("empty paper report = %+v pct=%v", report, pct)
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		t.Error("percentage is not finite")
	}
	if report.Results == nil {
		t.Error("Results should be an empty slice, not nil")
	}
}

func TestGradeRoundsReportOnly(t *testing.T) {
	paper := &models.Paper{Questions: []models.Question{
		{ID: "a", Options: fourOptions(0)},
		{ID: "b", Options: fourOptions(0)},
		{ID: "c", Options: fourOptions(0)},
	}}
	report, pct := Grade(paper, map[string]*int{"a": intp(0)})
	if report.Percentage != 33.33 {
		t.Errorf("report percentage = %v, want 33.33", report.Percentage)
	}
	if math.Abs(pct-100.0/3) > 1e-12 {
		t.Errorf("raw percentage = %v, want 33.333...", pct)
	}
}

func TestRunningAverageMatchesMean(t *testing.T) {
	r := rand.New(rand.NewSource(20240601))
	for trial := 0; trial < 200; trial++ {
		k := 1 + r.Intn(60)
		pcts := make([]float64, k)
		sum := 0.0
		for i := range pcts {
			pcts[i] = r.Float64() * 100
			sum += pcts[i]
		}
		want := sum / float64(k)
		if got := RunningAverage(pcts); math.Abs(got-want) > 1e-9 {
			t.Fatalf("trial %d: running average %v, mean %v", trial, got, want)
		}
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total int
		want         float64
	}{
		{0, 0, 0},
		{5, 5, 100},
		{1, 4, 25},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tt.score, tt.total, got, tt.want)
		}
	}
}
