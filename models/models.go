package models

import (
	"time"
)

// ExamType is the examination a paper was set for.
type ExamType string

const (
	ExamUPSC  ExamType = "UPSC"
	ExamBPSC  ExamType = "BPSC"
	ExamUPPSC ExamType = "UPPSC"
	ExamMPPSC ExamType = "MPPSC"
	ExamRAS   ExamType = "RAS"
	ExamOther ExamType = "Other"
)

// ExamTypes lists every accepted exam type, in display order.
var ExamTypes = []ExamType{ExamUPSC, ExamBPSC, ExamUPPSC, ExamMPPSC, ExamRAS, ExamOther}

// Valid reports whether e is one of ExamTypes.
func (e ExamType) Valid() bool {
	for _, t := range ExamTypes {
		if t == e {
			return true
		}
	}
	return false
}

// Difficulty of a single question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is Easy, Medium or Hard.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

const (
	DefaultTimeLimit = 180 // minutes
	DefaultMarks     = 1
)

// Option is one answer choice of a question. Nothing enforces that exactly
// one option of a question is correct.
type Option struct {
	Text      string `json:"text" bson:"text" yaml:"text"`
	TextHindi string `json:"textHindi,omitempty" bson:"text_hindi,omitempty" yaml:"textHindi"`
	IsCorrect bool   `json:"isCorrect" bson:"is_correct" yaml:"isCorrect"`
}

// Question is embedded in a Paper and has no identity outside of it.
// QuestionNumber is positional and changes whenever the sequence changes;
// ID is the stable key used by submitted answers.
type Question struct {
	ID               string     `json:"id" bson:"id" yaml:"id"`
	QuestionNumber   int        `json:"questionNumber" bson:"question_number" yaml:"-"`
	Question         string     `json:"question" bson:"question" yaml:"question"`
	QuestionHindi    string     `json:"questionHindi,omitempty" bson:"question_hindi,omitempty" yaml:"questionHindi"`
	Answer           string     `json:"answer,omitempty" bson:"answer,omitempty" yaml:"answer"`
	AnswerHindi      string     `json:"answerHindi,omitempty" bson:"answer_hindi,omitempty" yaml:"answerHindi"`
	Explanation      string     `json:"explanation,omitempty" bson:"explanation,omitempty" yaml:"explanation"`
	ExplanationHindi string     `json:"explanationHindi,omitempty" bson:"explanation_hindi,omitempty" yaml:"explanationHindi"`
	Options          []Option   `json:"options" bson:"options" yaml:"options"`
	Difficulty       Difficulty `json:"difficulty" bson:"difficulty" yaml:"difficulty"`
	Marks            int        `json:"marks" bson:"marks" yaml:"marks"`
	Tags             []string   `json:"tags,omitempty" bson:"tags,omitempty" yaml:"tags"`
	Category         string     `json:"category,omitempty" bson:"category,omitempty" yaml:"category"`
}

// Paper is a previous-year question paper with its embedded question bank.
type Paper struct {
	ID                string     `json:"id" bson:"_id"`
	Title             string     `json:"title" bson:"title"`
	TitleHindi        string     `json:"titleHindi,omitempty" bson:"title_hindi,omitempty"`
	Description       string     `json:"description" bson:"description"`
	DescriptionHindi  string     `json:"descriptionHindi,omitempty" bson:"description_hindi,omitempty"`
	Subject           string     `json:"subject" bson:"subject"`
	SubjectHindi      string     `json:"subjectHindi,omitempty" bson:"subject_hindi,omitempty"`
	Instructions      string     `json:"instructions,omitempty" bson:"instructions,omitempty"`
	InstructionsHindi string     `json:"instructionsHindi,omitempty" bson:"instructions_hindi,omitempty"`
	Exam              ExamType   `json:"exam" bson:"exam"`
	Year              int        `json:"year" bson:"year"`
	Category          string     `json:"category" bson:"category"`
	Tags              []string   `json:"tags" bson:"tags"`
	Questions         []Question `json:"questions" bson:"questions"`
	TotalQuestions    int        `json:"totalQuestions" bson:"total_questions"`
	TotalMarks        int        `json:"totalMarks" bson:"total_marks"`
	TimeLimit         int        `json:"timeLimit" bson:"time_limit"`
	IsPublished       bool       `json:"isPublished" bson:"is_published"`
	Views             int        `json:"views" bson:"views"`
	Attempts          int        `json:"attempts" bson:"attempts"`
	AverageScore      float64    `json:"averageScore" bson:"average_score"`
	CreatedAt         time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updated_at"`
	// Revision counts edits; Replace only succeeds against the revision it read.
	Revision int `json:"revision" bson:"revision"`
}

// PaperSummary is the list-view projection of a Paper: everything except
// the question sequence.
type PaperSummary struct {
	ID               string    `json:"id" bson:"_id"`
	Title            string    `json:"title" bson:"title"`
	TitleHindi       string    `json:"titleHindi,omitempty" bson:"title_hindi,omitempty"`
	Description      string    `json:"description" bson:"description"`
	DescriptionHindi string    `json:"descriptionHindi,omitempty" bson:"description_hindi,omitempty"`
	Subject          string    `json:"subject" bson:"subject"`
	SubjectHindi     string    `json:"subjectHindi,omitempty" bson:"subject_hindi,omitempty"`
	Exam             ExamType  `json:"exam" bson:"exam"`
	Year             int       `json:"year" bson:"year"`
	Category         string    `json:"category" bson:"category"`
	Tags             []string  `json:"tags" bson:"tags"`
	TotalQuestions   int       `json:"totalQuestions" bson:"total_questions"`
	TotalMarks       int       `json:"totalMarks" bson:"total_marks"`
	TimeLimit        int       `json:"timeLimit" bson:"time_limit"`
	IsPublished      bool      `json:"isPublished" bson:"is_published"`
	Views            int       `json:"views" bson:"views"`
	Attempts         int       `json:"attempts" bson:"attempts"`
	AverageScore     float64   `json:"averageScore" bson:"average_score"`
	CreatedAt        time.Time `json:"createdAt" bson:"created_at"`
}

// PaperStats are the usage counters of a paper. They are only ever changed
// by RecordView and RecordAttempt, never by authoring edits.
type PaperStats struct {
	Views        int     `json:"views"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
}

// PaperFilter selects papers for listing. All set fields must match.
type PaperFilter struct {
	Category           string
	Exam               ExamType
	Year               int
	Subject            string // case-insensitive substring
	Search             string // title, title (Hindi), description or any tag
	Limit              int    // 0 means no limit
	IncludeUnpublished bool
}

// SubmitRequest is the wrapped form of a submission body. A bare mapping of
// question ID to option index is accepted as well; see DecodeAnswers.
type SubmitRequest struct {
	Answers map[string]*int `json:"answers"`
}

// QuestionResult is the per-question line of a ScoreReport.
type QuestionResult struct {
	QuestionID     string `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"`
	Question       string `json:"question"`
	SelectedAnswer *int   `json:"selectedAnswer"` // nil: not answered
	Answered       bool   `json:"answered"`
	CorrectAnswer  *int   `json:"correctAnswer"` // nil: no option is marked correct
	IsCorrect      bool   `json:"isCorrect"`
	Marks          int    `json:"marks"`
	Explanation    string `json:"explanation"`
}

// StatsSnapshot is the paper's statistics right after a submission.
type StatsSnapshot struct {
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
}

// ScoreReport is returned from a test submission.
type ScoreReport struct {
	PaperID    string           `json:"paperId"`
	Score      int              `json:"score"`
	TotalMarks int              `json:"totalMarks"`
	Percentage float64          `json:"percentage"`
	Results    []QuestionResult `json:"results"`
	Statistics StatsSnapshot    `json:"statistics"`
}
