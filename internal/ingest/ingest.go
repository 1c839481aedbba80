package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/provider/local"
)

const dateLayout = "2006-01-02"

// Engine imports filing documents into a Sink.
type Engine struct {
	sink    Sink
	readers []ManifestReader
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an import engine writing to sink.
func NewEngine(sink Sink, opts ...Option) *Engine {
	e := &Engine{
		sink:    sink,
		readers: []ManifestReader{YAMLManifest{}, JSONManifest{}, CSVManifest{}},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ImportPath imports a document, a manifest, or a directory of either.
// Problems with individual files are collected in the result; only an
// unreadable root path is returned as an error.
func (e *Engine) ImportPath(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}

	result := &ImportResult{}
	var entries []Entry
	if info.IsDir() {
		entries = e.collectDir(ctx, path, opts, result)
	} else if isManifest(path) {
		entries = e.readManifest(ctx, path, result)
	} else {
		result.FilesScanned++
		ent, err := ParseFileName(path)
		if err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
		} else {
			entries = append(entries, ent)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	for i, ent := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(entries), ent.Path)
		}
		id, err := e.importEntry(ctx, ent, opts)
		if err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, ImportError{File: ent.Path, Message: err.Error()})
			continue
		}
		result.FilesImported++
		result.IDs = append(result.IDs, id)
	}
	return result, nil
}

func (e *Engine) collectDir(ctx context.Context, root string, opts ImportOptions, result *ImportResult) []Entry {
	var manifests, docs []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, ImportError{File: p, Message: err.Error()})
			return nil
		}
		if d.IsDir() {
			if p != root && (!opts.Recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case isManifest(p) && e.reader(p) != nil:
			manifests = append(manifests, p)
		case documentExts[strings.ToLower(filepath.Ext(p))]:
			docs = append(docs, p)
		}
		return nil
	})

	var entries []Entry
	covered := make(map[string]bool)
	for _, m := range manifests {
		for _, ent := range e.readManifest(ctx, m, result) {
			covered[filepath.Clean(ent.Path)] = true
			entries = append(entries, ent)
		}
	}
	for _, p := range docs {
		if covered[filepath.Clean(p)] {
			continue
		}
		result.FilesScanned++
		ent, err := ParseFileName(p)
		if err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, ImportError{File: p, Message: err.Error()})
			continue
		}
		entries = append(entries, ent)
	}
	return entries
}

func (e *Engine) reader(path string) ManifestReader {
	for _, r := range e.readers {
		if r.CanHandle(path) {
			return r
		}
	}
	return nil
}

func (e *Engine) readManifest(ctx context.Context, path string, result *ImportResult) []Entry {
	r := e.reader(path)
	if r == nil {
		result.Errors = append(result.Errors, ImportError{File: path, Message: "unsupported manifest format"})
		return nil
	}
	entries, err := r.Read(ctx, path)
	if err != nil {
		result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
		return nil
	}
	result.FilesScanned += len(entries)
	e.logger.Debug("ingest: manifest read", zap.String("manifest", path), zap.Int("entries", len(entries)))
	return entries
}

func (e *Engine) importEntry(ctx context.Context, ent Entry, opts ImportOptions) (string, error) {
	if ent.Path == "" {
		return "", fmt.Errorf("manifest entry has no path")
	}
	if ent.Identifier == "" || ent.Form == "" {
		return "", fmt.Errorf("identifier and form are required")
	}
	if ent.ID == "" {
		ent.ID = fileStem(ent.Path)
	}
	day, err := time.Parse(dateLayout, ent.Date)
	if err != nil {
		return "", fmt.Errorf("date %q is not YYYY-MM-DD", ent.Date)
	}
	info, err := os.Stat(ent.Path)
	if err != nil {
		return "", err
	}
	if info.Size() > opts.MaxFileSize {
		return "", fmt.Errorf("file is %d bytes, above the %d byte limit", info.Size(), opts.MaxFileSize)
	}
	if opts.DryRun {
		return ent.ID, nil
	}
	data, err := os.ReadFile(ent.Path)
	if err != nil {
		return "", err
	}

	f := &local.Filing{
		ID:          ent.ID,
		Identifier:  ent.Identifier,
		Form:        ent.Form,
		FilingDate:  day,
		URL:         ent.URL,
		Accession:   ent.Accession,
		ContentType: ent.ContentType,
		Content:     string(data),
	}
	if f.URL == "" {
		if abs, err := filepath.Abs(ent.Path); err == nil {
			f.URL = "file://" + abs
		}
	}
	id, err := e.sink.Import(ctx, f)
	if err != nil {
		return "", err
	}
	e.logger.Debug("ingest: imported", zap.String("document_id", id), zap.String("form", f.Form), zap.String("path", ent.Path))
	return id, nil
}

// ParseFileName derives an entry from the file name convention
// <identifier>_<form>_<YYYY-MM-DD>[_<accession>].<ext>.
func ParseFileName(path string) (Entry, error) {
	base := filepath.Base(path)
	stem := fileStem(path)
	parts := strings.Split(stem, "_")
	if len(parts) < 3 || len(parts) > 4 {
		return Entry{}, fmt.Errorf("%s does not follow <identifier>_<form>_<date>[_<accession>]", base)
	}
	if _, err := time.Parse(dateLayout, parts[2]); err != nil {
		return Entry{}, fmt.Errorf("%s: %q is not YYYY-MM-DD", base, parts[2])
	}
	ent := Entry{
		Path:       path,
		ID:         stem,
		Identifier: parts[0],
		Form:       strings.ReplaceAll(parts[1], "+", " "),
		Date:       parts[2],
	}
	if ent.Identifier == "" || ent.Form == "" {
		return Entry{}, fmt.Errorf("%s: identifier and form must not be empty", base)
	}
	if len(parts) == 4 {
		ent.Accession = parts[3]
	}
	return ent, nil
}

// fileStem is the default document id: the file name without extension, so
// importing the same file twice replaces the first copy.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FormatImportResult renders a human-readable summary.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files scanned:  %d\n", r.FilesScanned)
	fmt.Fprintf(&b, "Files imported: %d\n", r.FilesImported)
	fmt.Fprintf(&b, "Files skipped:  %d\n", r.FilesSkipped)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
		}
	}
	return b.String()
}
