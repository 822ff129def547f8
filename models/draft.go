package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pyq-server/utils"
)

// ErrMalformedQuestions is returned when the question list of an authoring
// payload cannot be decoded.
var ErrMalformedQuestions = errors.New("malformed question data")

// ErrMalformedAnswers is returned when a submission body is neither a
// mapping of question ID to option index nor that mapping under "answers".
var ErrMalformedAnswers = errors.New("malformed answers")

// ValidationError lists the fields of a draft that are missing or invalid.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.FieldNames()
	return "validation failed: " + strings.Join(names, ", ")
}

// FieldNames returns the offending field names in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

const (
	minYear = 1950
	maxYear = 2100
)

// PaperDraft holds everything an author may supply when creating a paper.
// Unset optional fields get their defaults in NewPaper.
type PaperDraft struct {
	Title             string     `yaml:"title"`
	TitleHindi        string     `yaml:"titleHindi"`
	Description       string     `yaml:"description"`
	DescriptionHindi  string     `yaml:"descriptionHindi"`
	Subject           string     `yaml:"subject"`
	SubjectHindi      string     `yaml:"subjectHindi"`
	Instructions      string     `yaml:"instructions"`
	InstructionsHindi string     `yaml:"instructionsHindi"`
	Exam              ExamType   `yaml:"exam"`
	Year              int        `yaml:"year"`
	Category          string     `yaml:"category"`
	Tags              []string   `yaml:"tags"`
	TimeLimit         *int       `yaml:"timeLimit"`
	IsPublished       bool       `yaml:"isPublished"`
	Questions         []Question `yaml:"questions"`
}

// Validate checks required fields and the shape of every question.
func (d PaperDraft) Validate() error {
	verr := &ValidationError{}
	required := map[string]string{
		"title":       d.Title,
		"description": d.Description,
		"subject":     d.Subject,
		"category":    d.Category,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			verr.add(field, "is required")
		}
	}
	if d.Exam == "" {
		verr.add("exam", "is required")
	} else if !d.Exam.Valid() {
		verr.add("exam", fmt.Sprintf("must be one of %v", ExamTypes))
	}
	if d.Year == 0 {
		verr.add("year", "is required")
	} else {
		validateYear(verr, d.Year)
	}
	if d.TimeLimit != nil && *d.TimeLimit <= 0 {
		verr.add("timeLimit", "must be a positive number of minutes")
	}
	validateQuestions(verr, d.Questions)
	return verr.orNil()
}

// NewPaper builds an unsaved paper from the draft with defaults applied and
// aggregates computed. ID assignment is left to the store.
func (d PaperDraft) NewPaper(now time.Time) *Paper {
	p := &Paper{
		Title:             strings.TrimSpace(d.Title),
		TitleHindi:        strings.TrimSpace(d.TitleHindi),
		Description:       d.Description,
		DescriptionHindi:  d.DescriptionHindi,
		Subject:           strings.TrimSpace(d.Subject),
		SubjectHindi:      strings.TrimSpace(d.SubjectHindi),
		Instructions:      d.Instructions,
		InstructionsHindi: d.InstructionsHindi,
		Exam:              d.Exam,
		Year:              d.Year,
		Category:          strings.TrimSpace(d.Category),
		Tags:              utils.SplitTags(d.Tags),
		TimeLimit:         DefaultTimeLimit,
		IsPublished:       d.IsPublished,
		Questions:         NormalizeQuestions(d.Questions),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if d.TimeLimit != nil {
		p.TimeLimit = *d.TimeLimit
	}
	p.Recompute()
	return p
}

// PaperPatch is a partial update. Nil fields are left untouched; a non-nil
// Questions replaces the whole sequence.
type PaperPatch struct {
	Title             *string
	TitleHindi        *string
	Description       *string
	DescriptionHindi  *string
	Subject           *string
	SubjectHindi      *string
	Instructions      *string
	InstructionsHindi *string
	Exam              *ExamType
	Year              *int
	Category          *string
	Tags              []string
	TagsSet           bool
	TimeLimit         *int
	IsPublished       *bool
	Questions         *[]Question
}

// Validate checks only the fields the patch sets.
func (pp PaperPatch) Validate() error {
	verr := &ValidationError{}
	blank := map[string]*string{
		"title":       pp.Title,
		"description": pp.Description,
		"subject":     pp.Subject,
		"category":    pp.Category,
	}
	for field, v := range blank {
		if v != nil && strings.TrimSpace(*v) == "" {
			verr.add(field, "must not be empty")
		}
	}
	if pp.Exam != nil && !pp.Exam.Valid() {
		verr.add("exam", fmt.Sprintf("must be one of %v", ExamTypes))
	}
	if pp.Year != nil {
		validateYear(verr, *pp.Year)
	}
	if pp.TimeLimit != nil && *pp.TimeLimit <= 0 {
		verr.add("timeLimit", "must be a positive number of minutes")
	}
	if pp.Questions != nil {
		validateQuestions(verr, *pp.Questions)
	}
	return verr.orNil()
}

// ApplyTo merges the patch into p and recomputes the aggregates. Usage
// counters are never touched.
func (pp PaperPatch) ApplyTo(p *Paper, now time.Time) {
	setString(&p.Title, pp.Title)
	setString(&p.TitleHindi, pp.TitleHindi)
	setString(&p.Description, pp.Description)
	setString(&p.DescriptionHindi, pp.DescriptionHindi)
	setString(&p.Subject, pp.Subject)
	setString(&p.SubjectHindi, pp.SubjectHindi)
	setString(&p.Instructions, pp.Instructions)
	setString(&p.InstructionsHindi, pp.InstructionsHindi)
	setString(&p.Category, pp.Category)
	if pp.Exam != nil {
		p.Exam = *pp.Exam
	}
	if pp.Year != nil {
		p.Year = *pp.Year
	}
	if pp.TagsSet {
		p.Tags = utils.SplitTags(pp.Tags)
	}
	if pp.TimeLimit != nil {
		p.TimeLimit = *pp.TimeLimit
	}
	if pp.IsPublished != nil {
		p.IsPublished = *pp.IsPublished
	}
	if pp.Questions != nil {
		p.Questions = NormalizeQuestions(*pp.Questions)
	}
	p.UpdatedAt = now
	p.Recompute()
}

// NormalizeQuestions fills per-question defaults. IDs are kept as given so
// that an edited paper keeps answering to the same keys.
func NormalizeQuestions(in []Question) []Question {
	out := make([]Question, len(in))
	for i, q := range in {
		if q.Difficulty == "" {
			q.Difficulty = DifficultyMedium
		}
		if q.Marks <= 0 {
			q.Marks = DefaultMarks
		}
		q.Tags = utils.SplitTags(q.Tags)
		q.ID = strings.TrimSpace(q.ID)
		out[i] = q
	}
	return out
}

// DecodeQuestions parses the question list of an authoring payload. The list
// normally arrives as a JSON string holding a JSON array (multipart forms
// can only carry strings); a bare JSON array is accepted too. Empty input and
// JSON null yield (nil, nil).
func DecodeQuestions(raw []byte) ([]Question, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedQuestions, err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
		if len(raw) == 0 {
			return []Question{}, nil
		}
	}
	var questions []Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuestions, err)
	}
	if questions == nil {
		questions = []Question{}
	}
	return questions, nil
}

func validateYear(verr *ValidationError, year int) {
	if year < minYear || year > maxYear {
		verr.add("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
}

func validateQuestions(verr *ValidationError, questions []Question) {
	seen := make(map[string]bool)
	for i, q := range questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(q.Question) == "" && strings.TrimSpace(q.QuestionHindi) == "" {
			verr.add(prefix+".question", "is required")
		}
		if q.Difficulty != "" && !q.Difficulty.Valid() {
			verr.add(prefix+".difficulty", "must be Easy, Medium or Hard")
		}
		if q.Marks < 0 {
			verr.add(prefix+".marks", "must not be negative")
		}
		if id := strings.TrimSpace(q.ID); id != "" {
			if seen[id] {
				verr.add(prefix+".id", "duplicates an earlier question")
			}
			seen[id] = true
		}
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// DecodeAnswers parses a submission body. The body is a JSON object mapping
// question ID to the selected option index, or that object wrapped as
// {"answers": {...}}. A null index is the same as leaving the question out.
func DecodeAnswers(raw []byte) (map[string]*int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnswers, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrMalformedAnswers)
	}
	if wrapped, ok := fields["answers"]; ok && len(fields) == 1 {
		var req SubmitRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnswers, err)
		}
		if req.Answers == nil && !bytes.Equal(bytes.TrimSpace(wrapped), []byte("null")) {
			return nil, fmt.Errorf("%w: answers must be an object", ErrMalformedAnswers)
		}
		if req.Answers == nil {
			req.Answers = map[string]*int{}
		}
		return req.Answers, nil
	}
	answers := make(map[string]*int, len(fields))
	for id, v := range fields {
		var idx *int
		if err := json.Unmarshal(v, &idx); err != nil {
			return nil, fmt.Errorf("%w: answer for question %q must be an option index or null", ErrMalformedAnswers, id)
		}
		answers[id] = idx
	}
	return answers, nil
}
