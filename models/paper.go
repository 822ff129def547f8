package models

import (
	"fmt"
	"sort"
	"strings"

	"pyq-server/utils"
)

// Localized picks the Hindi text when present and falls back to English.
func Localized(en, hi string) string {
	if strings.TrimSpace(hi) != "" {
		return hi
	}
	return en
}

// EffectiveMarks is the question's marks with unset or non-positive values
// counted as DefaultMarks.
func (q Question) EffectiveMarks() int {
	if q.Marks <= 0 {
		return DefaultMarks
	}
	return q.Marks
}

// CorrectOption returns the index of the first option flagged correct.
// ok is false when no option is flagged.
func (q Question) CorrectOption() (index int, ok bool) {
	for i, opt := range q.Options {
		if opt.IsCorrect {
			return i, true
		}
	}
	return 0, false
}

// Recompute renumbers the questions and refreshes the cached aggregates.
// Every write path calls it before persisting.
func (p *Paper) Recompute() {
	total := 0
	for i := range p.Questions {
		p.Questions[i].QuestionNumber = i + 1
		total += p.Questions[i].EffectiveMarks()
	}
	p.TotalQuestions = len(p.Questions)
	p.TotalMarks = total
}

// Clone returns a deep copy of p.
func (p *Paper) Clone() *Paper {
	c := *p
	c.Tags = cloneStrings(p.Tags)
	if p.Questions != nil {
		c.Questions = make([]Question, len(p.Questions))
		for i, q := range p.Questions {
			if q.Options != nil {
				q.Options = append(make([]Option, 0, len(q.Options)), q.Options...)
			}
			q.Tags = cloneStrings(q.Tags)
			c.Questions[i] = q
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// Stats returns the paper's usage counters.
func (p *Paper) Stats() PaperStats {
	return PaperStats{Views: p.Views, Attempts: p.Attempts, AverageScore: p.AverageScore}
}

// Summary projects the paper without its questions.
func (p *Paper) Summary() PaperSummary {
	return PaperSummary{
		ID:               p.ID,
		Title:            p.Title,
		TitleHindi:       p.TitleHindi,
		Description:      p.Description,
		DescriptionHindi: p.DescriptionHindi,
		Subject:          p.Subject,
		SubjectHindi:     p.SubjectHindi,
		Exam:             p.Exam,
		Year:             p.Year,
		Category:         p.Category,
		Tags:             cloneStrings(p.Tags),
		TotalQuestions:   p.TotalQuestions,
		TotalMarks:       p.TotalMarks,
		TimeLimit:        p.TimeLimit,
		IsPublished:      p.IsPublished,
		Views:            p.Views,
		Attempts:         p.Attempts,
		AverageScore:     p.AverageScore,
		CreatedAt:        p.CreatedAt,
	}
}

// DisplayTitle is the title shown to readers.
func (s PaperSummary) DisplayTitle() string {
	return Localized(s.Title, s.TitleHindi)
}

// Lint lists authoring problems that do not block saving, such as a question
// without exactly one correct option.
func (p *Paper) Lint() []string {
	var warnings []string
	for i, q := range p.Questions {
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		switch {
		case len(q.Options) == 0:
			warnings = append(warnings, fmt.Sprintf("question %d has no options", i+1))
		case correct == 0:
			warnings = append(warnings, fmt.Sprintf("question %d has no correct option", i+1))
		case correct > 1:
			warnings = append(warnings, fmt.Sprintf("question %d has %d correct options, only the first counts", i+1, correct))
		}
	}
	return warnings
}

// Matches reports whether s passes every set field of the filter. Limit is
// not considered here.
func (f PaperFilter) Matches(s PaperSummary) bool {
	if !f.IncludeUnpublished && !s.IsPublished {
		return false
	}
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Exam != "" && s.Exam != f.Exam {
		return false
	}
	if f.Year != 0 && s.Year != f.Year {
		return false
	}
	if f.Subject != "" && !utils.ContainsFold(s.Subject, f.Subject) {
		return false
	}
	if f.Search != "" {
		hit := utils.ContainsFold(s.Title, f.Search) ||
			utils.ContainsFold(s.TitleHindi, f.Search) ||
			utils.ContainsFold(s.Description, f.Search)
		for _, tag := range s.Tags {
			if hit {
				break
			}
			hit = utils.ContainsFold(tag, f.Search)
		}
		if !hit {
			return false
		}
	}
	return true
}

// SortSummaries orders papers newest year first, then newest created first.
// ID breaks remaining ties so the order is stable between calls.
func SortSummaries(list []PaperSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// FilterSummaries applies f to list, sorts the survivors and truncates them
// to f.Limit.
func FilterSummaries(list []PaperSummary, f PaperFilter) []PaperSummary {
	out := make([]PaperSummary, 0, len(list))
	for _, s := range list {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	SortSummaries(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
