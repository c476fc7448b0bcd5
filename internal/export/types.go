// Package export renders posts to PDF via headless Chrome.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	PostID          string
	Format          Format
	IncludeComments bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// PostInfo holds post metadata for export
type PostInfo struct {
	ID        string
	Title     string
	BodyHTML  string
	BrandID   string
	AuthorID  string
	Status    string
	UpdatedAt time.Time
}

// CommentInfo holds comment data for export
type CommentInfo struct {
	Author        string
	Body          string
	IsAIGenerated bool
	CreatedAt     time.Time
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
