package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pyq-server/exam"
	"pyq-server/models"
)

// SystemActor is recorded as the author of papers imported from disk.
const SystemActor = "ingestion"

// Failure describes one document that could not be imported.
type Failure struct {
	Source   string `json:"source"`
	Document int    `json:"document"`
	Title    string `json:"title,omitempty"`
	Error    string `json:"error"`
}

// Result summarises an import run.
type Result struct {
	Created  []string  `json:"created"`
	Skipped  []string  `json:"skipped"`
	Failed   []Failure `json:"failed"`
	Warnings []string  `json:"warnings"`
}

func newResult() *Result {
	return &Result{Created: []string{}, Skipped: []string{}, Failed: []Failure{}, Warnings: []string{}}
}

// ParseDrafts reads a stream of YAML documents, one paper per document.
// Empty documents are skipped.
func ParseDrafts(r io.Reader) ([]models.PaperDraft, error) {
	dec := yaml.NewDecoder(r)
	var drafts []models.PaperDraft
	for n := 1; ; n++ {
		var d models.PaperDraft
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			return drafts, nil
		}
		if err != nil {
			return drafts, fmt.Errorf("document %d: %w", n, err)
		}
		if d.Title == "" && d.Exam == "" && len(d.Questions) == 0 {
			continue
		}
		drafts = append(drafts, d)
	}
}

// dedupeKey identifies a paper for import purposes.
func dedupeKey(examType models.ExamType, year int, title string) string {
	return fmt.Sprintf("%s|%d|%s", examType, year, strings.ToLower(strings.TrimSpace(title)))
}

// importer carries the dedupe set across the files of one run.
type importer struct {
	svc    *exam.Service
	actor  string
	seen   map[string]bool
	result *Result
}

func newImporter(ctx context.Context, svc *exam.Service, actor string) (*importer, error) {
	existing, err := svc.ListAll(ctx, models.PaperFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list existing papers: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[dedupeKey(p.Exam, p.Year, p.Title)] = true
	}
	return &importer{svc: svc, actor: actor, seen: seen, result: newResult()}, nil
}

func (im *importer) importStream(ctx context.Context, source string, r io.Reader) {
	drafts, parseErr := ParseDrafts(r)
	for i, d := range drafts {
		key := dedupeKey(d.Exam, d.Year, d.Title)
		if im.seen[key] {
			im.result.Skipped = append(im.result.Skipped, d.Title)
			continue
		}
		p, warnings, err := im.svc.Create(ctx, d, im.actor)
		if err != nil {
			log.Printf("Import of %s document %d (%s) failed: %v", source, i+1, d.Title, err)
			im.result.Failed = append(im.result.Failed, Failure{Source: source, Document: i + 1, Title: d.Title, Error: err.Error()})
			continue
		}
		im.seen[key] = true
		im.result.Created = append(im.result.Created, p.ID)
		for _, w := range warnings {
			im.result.Warnings = append(im.result.Warnings, fmt.Sprintf("%s: %s", p.Title, w))
		}
	}
	if parseErr != nil {
		log.Printf("Import of %s stopped: %v", source, parseErr)
		im.result.Failed = append(im.result.Failed, Failure{Source: source, Document: len(drafts) + 1, Error: parseErr.Error()})
	}
}

// ImportYAML creates a paper for every document in r. Papers matching an
// existing exam, year and title are skipped; invalid documents are reported
// in the result and do not stop the import.
func ImportYAML(ctx context.Context, svc *exam.Service, r io.Reader, source, actor string) (*Result, error) {
	im, err := newImporter(ctx, svc, actor)
	if err != nil {
		return nil, err
	}
	im.importStream(ctx, source, r)
	return im.result, nil
}

// ImportDir imports every .yaml and .yml file in dir in name order.
func ImportDir(ctx context.Context, svc *exam.Service, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	im, err := newImporter(ctx, svc, SystemActor)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return im.result, err
		}
		f, err := os.Open(path)
		if err != nil {
			log.Printf("Error opening %s: %v", path, err)
			im.result.Failed = append(im.result.Failed, Failure{Source: path, Error: err.Error()})
			continue
		}
		im.importStream(ctx, path, f)
		f.Close()
	}
	log.Printf("Import of %s finished: %d created, %d skipped, %d failed",
		dir, len(im.result.Created), len(im.result.Skipped), len(im.result.Failed))
	return im.result, nil
}
