package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyq-server/exam"
	"pyq-server/models"
)

// ListPapers lists published papers without their questions.
// GET /api/v1/papers
func ListPapers(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		papers, err := svc.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, err, "retrieve papers")
			return
		}
		if papers == nil {
			papers = []models.PaperSummary{}
		}
		c.JSON(http.StatusOK, gin.H{"papers": papers, "count": len(papers)})
	}
}

// GetPaper returns one paper with its questions and counts a view.
// GET /api/v1/papers/:id
func GetPaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		paper, err := svc.View(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "retrieve paper")
			return
		}
		c.JSON(http.StatusOK, paper)
	}
}

// SubmitPaper scores a set of answers against a paper. The body maps
// question ID to option index, optionally wrapped under "answers".
// POST /api/v1/papers/:id/submit
func SubmitPaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}
		answers, err := models.DecodeAnswers(body)
		if err != nil {
			respondError(c, err, "submit answers")
			return
		}
		report, err := svc.Submit(c.Request.Context(), c.Param("id"), answers)
		if err != nil {
			respondError(c, err, "submit answers")
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ListExamTypes returns the accepted exam categories.
// GET /api/v1/meta/exams
func ListExamTypes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"exams": models.ExamTypes})
	}
}

// Healthz reports whether the backing store answers.
// GET /healthz
func Healthz(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
