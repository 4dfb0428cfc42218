// Package pdf renders the printable transcript document.
package pdf

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/go-pdf/fpdf"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/textutil"
)

// Document carries everything that goes on the page.
type Document struct {
	Title       string
	SourceURL   string
	Duration    string
	GeneratedAt string
	SponsorText string
	Body        string
}

// Writer renders a Document to a file on disk.
type Writer interface {
	Write(doc Document, outputPath string) error
}

var spaceIDRe = regexp.MustCompile(`/i/spaces/([A-Za-z0-9]+)`)

// SpaceID extracts the space identifier from a source URL, or "" when the
// URL is not a space link.
func SpaceID(sourceURL string) string {
	m := spaceIDRe.FindStringSubmatch(sourceURL)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

// FPDF renders transcripts with the fpdf library using core Helvetica
// fonts. Text is reduced to printable ASCII before layout so the core
// fonts can always render it.
type FPDF struct{}

// NewFPDF creates the default Writer.
func NewFPDF() *FPDF {
	return &FPDF{}
}

const (
	pageMargin = 18.0
	bodySize   = 11.0
	lineHeight = 5.5
)

// Write implements Writer.
func (f *FPDF) Write(doc Document, outputPath string) error {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(pageMargin, pageMargin, pageMargin)
	p.SetAutoPageBreak(true, pageMargin)
	p.AddPage()

	width, _ := p.GetPageSize()
	usable := width - 2*pageMargin

	p.SetFont("Helvetica", "B", 16)
	p.MultiCell(usable, 8, ascii(doc.Title), "", "L", false)
	p.Ln(2)

	p.SetFont("Helvetica", "", 10)
	if id := SpaceID(doc.SourceURL); id != "" {
		p.MultiCell(usable, 5, fmt.Sprintf("Space ID: %s", id), "", "L", false)
	}
	if doc.SourceURL != "" {
		p.MultiCell(usable, 5, ascii("Source URL: "+doc.SourceURL), "", "L", false)
	}
	if doc.Duration != "" {
		p.MultiCell(usable, 5, ascii("Duration: "+doc.Duration), "", "L", false)
	}
	if doc.GeneratedAt != "" {
		p.MultiCell(usable, 5, ascii("Generated: "+doc.GeneratedAt), "", "L", false)
	}
	p.Ln(2)

	y := p.GetY()
	p.SetDrawColor(120, 120, 120)
	p.Line(pageMargin, y, width-pageMargin, y)
	p.Ln(4)

	if doc.SponsorText != "" {
		p.SetFont("Helvetica", "I", 10)
		p.MultiCell(usable, 5, ascii(doc.SponsorText), "", "L", false)
		p.Ln(3)
	}

	p.SetFont("Helvetica", "", bodySize)
	body := ascii(doc.Body)
	if body == "" {
		body = "(no transcript text)"
	}
	p.MultiCell(usable, lineHeight, body, "", "L", false)

	if err := fsutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("create pdf directory: %w", err)
	}
	if err := p.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func ascii(s string) string {
	return textutil.RemoveDiacriticsToASCII(s)
}

var _ Writer = (*FPDF)(nil)
