package utils

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// TextExtractor pulls plain text out of supported document formats.
// Plain text and HTML are handled in-process; PDF and office formats
// shell out to pdftotext and libreoffice when available.
type TextExtractor struct {
	pdfTimeout    time.Duration
	officeTimeout time.Duration
}

// NewTextExtractor creates a text extractor with default tool timeouts
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{
		pdfTimeout:    30 * time.Second,
		officeTimeout: 60 * time.Second,
	}
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Extract returns the plain text content of a file. Unsupported formats
// and extraction failures yield an empty string and a nil error; callers
// treat missing text as a degraded document, not a failed one.
func (e *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md", ".csv", ".log":
		return e.extractPlain(path)
	case ".html", ".htm":
		return e.extractHTML(path)
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".rtf", ".odt", ".hwp":
		return e.extractOffice(ctx, path)
	default:
		return "", nil
	}
}

func (e *TextExtractor) extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (e *TextExtractor) extractHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	text := scriptStyleRe.ReplaceAllString(string(data), " ")
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

func (e *TextExtractor) extractPDF(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.pdfTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *TextExtractor) extractOffice(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("libreoffice"); err != nil {
		return "", nil
	}

	outDir, err := os.MkdirTemp("", "docsearch-extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, e.officeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "libreoffice", "--headless",
		"--convert-to", "txt:Text", "--outdir", outDir, path)
	if err := cmd.Run(); err != nil {
		return "", nil
	}

	base := filepath.Base(path)
	converted := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
	data, err := os.ReadFile(converted)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}
