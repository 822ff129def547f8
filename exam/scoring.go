package exam

import (
	"pyq-server/models"
	"pyq-server/utils"
)

// Grade scores answers against the paper's questions. It never fails: an
// unanswered question, an out-of-range index or a question with no correct
// option all count as incorrect.
//
// The returned report has Percentage rounded for display and no Statistics;
// the unrounded percentage is returned separately for the running average.
func Grade(p *models.Paper, answers map[string]*int) (models.ScoreReport, float64) {
	report := models.ScoreReport{
		PaperID: p.ID,
		Results: make([]models.QuestionResult, 0, len(p.Questions)),
	}

	for i, q := range p.Questions {
		marks := q.EffectiveMarks()
		report.TotalMarks += marks

		res := models.QuestionResult{
			QuestionID:     q.ID,
			QuestionNumber: q.QuestionNumber,
			Question:       models.Localized(q.Question, q.QuestionHindi),
			Marks:          marks,
			Explanation:    models.Localized(q.Explanation, q.ExplanationHindi),
		}
		if res.QuestionNumber == 0 {
			res.QuestionNumber = i + 1
		}
		if idx, ok := q.CorrectOption(); ok {
			res.CorrectAnswer = utils.IntPtr(idx)
		}
		if sel, ok := answers[q.ID]; ok && sel != nil {
			res.SelectedAnswer = utils.IntPtr(*sel)
			res.Answered = true
			res.IsCorrect = optionIsCorrect(q, *sel)
		}
		if res.IsCorrect {
			report.Score += marks
		}
		report.Results = append(report.Results, res)
	}

	pct := Percentage(report.Score, report.TotalMarks)
	report.Percentage = utils.Round(pct, 2)
	return report, pct
}

// Percentage is score/total*100, or 0 when total is 0.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// RunningAverage folds percentages into a mean the same way the stores do,
// one attempt at a time.
func RunningAverage(percentages []float64) float64 {
	avg := 0.0
	for n, pct := range percentages {
		avg = (avg*float64(n) + pct) / float64(n+1)
	}
	return avg
}

func optionIsCorrect(q models.Question, index int) bool {
	if index < 0 || index >= len(q.Options) {
		return false
	}
	return q.Options[index].IsCorrect
}
