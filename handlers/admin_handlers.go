package handlers

import (
	"bytes"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"pyq-server/exam"
	"pyq-server/ingestion"
	"pyq-server/middleware"
	"pyq-server/models"
)

// maxImportBytes bounds the body of an import request.
const maxImportBytes = 8 << 20

// AdminListPapers lists every paper, drafts included.
// GET /api/v1/papers/admin
func AdminListPapers(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		papers, err := svc.ListAll(c.Request.Context(), f)
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

// AdminGetPaper returns a paper for editing without counting a view.
// GET /api/v1/papers/admin/:id
func AdminGetPaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		paper, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "retrieve paper")
			return
		}
		c.JSON(http.StatusOK, paper)
	}
}

// CreatePaper handles creating a new paper from JSON or form data.
// POST /api/v1/papers
func CreatePaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaperRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		draft, err := req.Draft()
		if err != nil {
			respondError(c, err, "create paper")
			return
		}
		paper, warnings, err := svc.Create(c.Request.Context(), draft, c.GetString(middleware.ContextUserEmail))
		if err != nil {
			respondError(c, err, "create paper")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"paper": paper, "warnings": nonNil(warnings)})
	}
}

// UpdatePaper merges the supplied fields into an existing paper.
// PUT /api/v1/papers/:id
func UpdatePaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaperRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch, err := req.Patch()
		if err != nil {
			respondError(c, err, "update paper")
			return
		}
		paper, warnings, err := svc.Update(c.Request.Context(), c.Param("id"), patch, c.GetString(middleware.ContextUserEmail))
		if err != nil {
			respondError(c, err, "update paper")
			return
		}
		c.JSON(http.StatusOK, gin.H{"paper": paper, "warnings": nonNil(warnings)})
	}
}

// DeletePaper removes a paper.
// DELETE /api/v1/papers/:id
func DeletePaper(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := svc.Delete(c.Request.Context(), id, c.GetString(middleware.ContextUserEmail)); err != nil {
			respondError(c, err, "delete paper")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Paper deleted successfully", "id": id})
	}
}

// ImportPapers creates papers from a multi-document YAML body.
// POST /api/v1/papers/import
func ImportPapers(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}
		if len(body) > maxImportBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Import body too large"})
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Import body is empty"})
			return
		}
		result, err := ingestion.ImportYAML(c.Request.Context(), svc, bytes.NewReader(body), "upload", c.GetString(middleware.ContextUserEmail))
		if err != nil {
			respondError(c, err, "import papers")
			return
		}
		status := http.StatusOK
		if len(result.Created) > 0 {
			status = http.StatusCreated
		}
		c.JSON(status, result)
	}
}

// AdminDashboard renders usage totals and the most attempted papers.
// GET /admin/dashboard
func AdminDashboard(svc *exam.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		papers, err := svc.ListAll(c.Request.Context(), models.PaperFilter{})
		if err != nil {
			c.HTML(http.StatusInternalServerError, "admin_dashboard", gin.H{"error": "Failed to retrieve papers"})
			return
		}

		var published, attempts, views, questions int
		for _, p := range papers {
			if p.IsPublished {
				published++
			}
			attempts += p.Attempts
			views += p.Views
			questions += p.TotalQuestions
		}

		popular := append([]models.PaperSummary(nil), papers...)
		sort.SliceStable(popular, func(i, j int) bool { return popular[i].Attempts > popular[j].Attempts })
		if len(popular) > 5 {
			popular = popular[:5]
		}
		latest := papers
		if len(latest) > 5 {
			latest = latest[:5]
		}

		c.HTML(http.StatusOK, "admin_dashboard", gin.H{
			"Title":           "PYQ Admin Dashboard",
			"TotalPapers":     len(papers),
			"PublishedPapers": published,
			"DraftPapers":     len(papers) - published,
			"TotalQuestions":  questions,
			"TotalAttempts":   attempts,
			"TotalViews":      views,
			"PopularPapers":   popular,
			"LatestPapers":    latest,
			"UserEmail":       c.GetString(middleware.ContextUserEmail),
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
