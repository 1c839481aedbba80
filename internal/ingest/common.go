// Package ingest bulk-loads filing documents into the local corpus.
//
// Filing metadata comes from a manifest (YAML, JSON or CSV) listing one
// entry per document, or, for files no manifest mentions, from the file name
// convention <identifier>_<form>_<YYYY-MM-DD>[_<accession>].<ext> where
// spaces in the form are written as '+', e.g. 320193_DEF+14A_2025-01-10.htm.
package ingest

import (
	"context"

	"github.com/hurttlocker/filingintel/internal/provider/local"
)

// Entry describes one filing document to import.
type Entry struct {
	Path        string `yaml:"path" json:"path"`
	ID          string `yaml:"id" json:"id"`
	Identifier  string `yaml:"identifier" json:"identifier"`
	Form        string `yaml:"form" json:"form"`
	Date        string `yaml:"date" json:"date"`
	Accession   string `yaml:"accession" json:"accession"`
	URL         string `yaml:"url" json:"url"`
	ContentType string `yaml:"content_type" json:"content_type"`
}

// ManifestReader parses one manifest format.
type ManifestReader interface {
	// CanHandle returns true if this reader supports the given path.
	CanHandle(path string) bool

	// Read parses the manifest. Relative entry paths are resolved against
	// the manifest's directory.
	Read(ctx context.Context, path string) ([]Entry, error)
}

// Sink stores imported filings. *local.Store implements it.
type Sink interface {
	Import(ctx context.Context, f *local.Filing) (string, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned  int
	FilesImported int
	FilesSkipped  int
	IDs           []string
	Errors        []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.IDs = append(r.IDs, other.IDs...)
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string
	Message string
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 25MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize is 25MB; full 10-K submissions rarely exceed it.
const DefaultMaxFileSize = 25 * 1024 * 1024
