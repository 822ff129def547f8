package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pyq-server/models"
	"pyq-server/store"
)

// PaperRequest is the authoring payload for create and update, bound from
// JSON or from a form. The questions field is a JSON-encoded array; in JSON
// bodies it may be that encoded string or the array itself.
type PaperRequest struct {
	Title             *string         `json:"title" form:"title"`
	TitleHindi        *string         `json:"titleHindi" form:"titleHindi"`
	Description       *string         `json:"description" form:"description"`
	DescriptionHindi  *string         `json:"descriptionHindi" form:"descriptionHindi"`
	Subject           *string         `json:"subject" form:"subject"`
	SubjectHindi      *string         `json:"subjectHindi" form:"subjectHindi"`
	Instructions      *string         `json:"instructions" form:"instructions"`
	InstructionsHindi *string         `json:"instructionsHindi" form:"instructionsHindi"`
	Exam              *string         `json:"exam" form:"exam"`
	Year              *int            `json:"year" form:"year"`
	Category          *string         `json:"category" form:"category"`
	Tags              []string        `json:"tags" form:"tags"`
	TimeLimit         *int            `json:"timeLimit" form:"timeLimit"`
	IsPublished       *bool           `json:"isPublished" form:"isPublished"`
	QuestionsJSON     json.RawMessage `json:"questions" form:"-"`
	QuestionsForm     *string         `json:"-" form:"questions"`
}

// questions decodes the question list. A nil result means the field was
// not sent.
func (r *PaperRequest) questions() (*[]models.Question, error) {
	var raw []byte
	switch {
	case r.QuestionsForm != nil:
		raw = []byte(*r.QuestionsForm)
	case len(r.QuestionsJSON) > 0:
		raw = r.QuestionsJSON
	default:
		return nil, nil
	}
	qs, err := models.DecodeQuestions(raw)
	if err != nil {
		return nil, err
	}
	if qs == nil {
		return nil, nil
	}
	return &qs, nil
}

// Draft converts the request into a create draft.
func (r *PaperRequest) Draft() (models.PaperDraft, error) {
	d := models.PaperDraft{
		Title:             deref(r.Title),
		TitleHindi:        deref(r.TitleHindi),
		Description:       deref(r.Description),
		DescriptionHindi:  deref(r.DescriptionHindi),
		Subject:           deref(r.Subject),
		SubjectHindi:      deref(r.SubjectHindi),
		Instructions:      deref(r.Instructions),
		InstructionsHindi: deref(r.InstructionsHindi),
		Exam:              models.ExamType(deref(r.Exam)),
		Category:          deref(r.Category),
		Tags:              r.Tags,
		TimeLimit:         r.TimeLimit,
	}
	if r.Year != nil {
		d.Year = *r.Year
	}
	if r.IsPublished != nil {
		d.IsPublished = *r.IsPublished
	}
	qs, err := r.questions()
	if err != nil {
		return models.PaperDraft{}, err
	}
	if qs != nil {
		d.Questions = *qs
	}
	return d, nil
}

// Patch converts the request into a partial update.
func (r *PaperRequest) Patch() (models.PaperPatch, error) {
	p := models.PaperPatch{
		Title:             r.Title,
		TitleHindi:        r.TitleHindi,
		Description:       r.Description,
		DescriptionHindi:  r.DescriptionHindi,
		Subject:           r.Subject,
		SubjectHindi:      r.SubjectHindi,
		Instructions:      r.Instructions,
		InstructionsHindi: r.InstructionsHindi,
		Year:              r.Year,
		Category:          r.Category,
		Tags:              r.Tags,
		TagsSet:           r.Tags != nil,
		TimeLimit:         r.TimeLimit,
		IsPublished:       r.IsPublished,
	}
	if r.Exam != nil {
		exam := models.ExamType(*r.Exam)
		p.Exam = &exam
	}
	qs, err := r.questions()
	if err != nil {
		return models.PaperPatch{}, err
	}
	p.Questions = qs
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// filterFromQuery reads the list filters from the query string.
func filterFromQuery(c *gin.Context) (models.PaperFilter, error) {
	f := models.PaperFilter{
		Category: c.Query("category"),
		Exam:     models.ExamType(c.Query("exam")),
		Subject:  c.Query("subject"),
		Search:   c.Query("search"),
	}
	if v := c.Query("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid year %q", v)
		}
		f.Year = year
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = limit
	}
	return f, nil
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error, action string) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Paper not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Paper was modified by another request, please retry"})
	case errors.Is(err, models.ErrMalformedQuestions):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Question data could not be parsed",
			"code":  "MALFORMED_QUESTION_DATA",
		})
	case errors.Is(err, models.ErrMalformedAnswers):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "MALFORMED_ANSWERS",
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"code":   "VALIDATION_ERROR",
			"fields": verr.Fields,
		})
	default:
		log.Printf("Error trying to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to %s", action)})
	}
}
