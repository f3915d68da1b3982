// internal/processor/pdf.go
package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ng12-risk-assessor/internal/models"

	"github.com/ledongthuc/pdf"
)

var (
	// NICE guideline page furniture
	footerRe = regexp.MustCompile(`(?i)^\s*(©\s*NICE.*|.*Subject to Notice of\s*rights.*|Page\s+\d+\s+of\s+\d+)\s*$`)
)

// PDFProcessor extracts guideline pages and turns them into evidence chunks
type PDFProcessor struct {
	ChunkSize    int
	ChunkOverlap int
	// StripFooters drops NICE copyright and "Page x of y" lines before chunking
	StripFooters bool
}

// NewPDFProcessor creates a new PDF processor
func NewPDFProcessor(chunkSize, chunkOverlap int) (*PDFProcessor, error) {
	if err := ValidateChunking(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &PDFProcessor{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}, nil
}

// ExtractPages extracts the plain text of every page, numbered from 1
func (p *PDFProcessor) ExtractPages(filePath string) ([]models.PageText, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]models.PageText, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.PageText{Page: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		if p.StripFooters {
			text = removeFooters(text)
		}
		pages = append(pages, models.PageText{Page: i, Text: text})
	}

	return pages, nil
}

// ProcessPDF extracts and chunks a PDF file
func (p *PDFProcessor) ProcessPDF(ctx context.Context, filePath string) ([]models.EvidenceChunk, error) {
	pages, err := p.ExtractPages(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return BuildPageChunks(pages, p.ChunkSize, p.ChunkOverlap)
}

// removeFooters removes footer lines from a page
func removeFooters(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if footerRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
