package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestBase is the file name (without extension) that marks a manifest
// inside an import directory.
const manifestBase = "manifest"

// document extensions picked up when walking a directory.
var documentExts = map[string]bool{".htm": true, ".html": true, ".txt": true}

// manifestList accepts both a bare list and a {filings: [...]} document.
type manifestList struct {
	Filings []Entry `yaml:"filings" json:"filings"`
}

// YAMLManifest reads .yaml and .yml manifests.
type YAMLManifest struct{}

// CanHandle returns true for YAML file extensions.
func (YAMLManifest) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Read parses a YAML manifest.
func (YAMLManifest) Read(ctx context.Context, path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Entry
	if err := yaml.Unmarshal(data, &list); err != nil {
		var wrapped manifestList
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("invalid YAML manifest %s: %w", path, err)
		}
		list = wrapped.Filings
	}
	return resolvePaths(path, list), nil
}

// JSONManifest reads .json manifests.
type JSONManifest struct{}

// CanHandle returns true for .json files.
func (JSONManifest) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

// Read parses a JSON manifest.
func (JSONManifest) Read(ctx context.Context, path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	var list []Entry
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("invalid JSON manifest %s: %w", path, err)
		}
	} else {
		var wrapped manifestList
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid JSON manifest %s: %w", path, err)
		}
		list = wrapped.Filings
	}
	return resolvePaths(path, list), nil
}

// CSVManifest reads .csv and .tsv manifests. The first row names the
// columns; unknown columns are ignored.
type CSVManifest struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (CSVManifest) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Read parses a CSV manifest.
func (CSVManifest) Read(ctx context.Context, path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV manifest %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["path"]; !ok {
		return nil, fmt.Errorf("CSV manifest %s has no path column", path)
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, row := range records[1:] {
		entries = append(entries, Entry{
			Path:        get(row, "path"),
			ID:          get(row, "id"),
			Identifier:  get(row, "identifier"),
			Form:        get(row, "form"),
			Date:        get(row, "date"),
			Accession:   get(row, "accession"),
			URL:         get(row, "url"),
			ContentType: get(row, "content_type"),
		})
	}
	return resolvePaths(path, entries), nil
}

func resolvePaths(manifest string, entries []Entry) []Entry {
	dir := filepath.Dir(manifest)
	for i := range entries {
		if p := entries[i].Path; p != "" && !filepath.IsAbs(p) {
			entries[i].Path = filepath.Join(dir, p)
		}
	}
	return entries
}

// isManifest reports whether path is named manifest.<ext>.
func isManifest(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.TrimSuffix(base, filepath.Ext(base)) == manifestBase
}
