package app

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/smsbackup/internal/media"
)

const (
	manifestName = "manifest.json"
	sumsName     = "SHA256SUMS"
)

// manifestEntry is a compact record of a single output file. Existing marks
// files kept from an earlier run.
type manifestEntry struct {
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
	SHA256   string `json:"sha256"`
	Existing bool   `json:"existing,omitempty"`
}

// manifestMeta captures run details that aid reproducibility.
type manifestMeta struct {
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	Type        string    `json:"type"`
	Input       string    `json:"input"`
	FileCount   int       `json:"file_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// buildManifestEntries turns writer artifacts into entries with paths
// relative to outDir, sorted by path.
func buildManifestEntries(outDir string, artifacts []media.Artifact) []manifestEntry {
	out := make([]manifestEntry, 0, len(artifacts))
	for _, a := range artifacts {
		rel, err := filepath.Rel(outDir, a.Path)
		if err != nil {
			rel = a.Path
		}
		out = append(out, manifestEntry{Path: filepath.ToSlash(rel), Bytes: a.Bytes, SHA256: a.SHA256, Existing: a.Existing})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// marshalManifestJSON encodes the machine-readable manifest.
func marshalManifestJSON(meta manifestMeta, entries []manifestEntry) ([]byte, error) {
	payload := struct {
		Meta  manifestMeta    `json:"meta"`
		Files []manifestEntry `json:"files"`
	}{Meta: meta, Files: entries}
	return json.MarshalIndent(payload, "", "  ")
}

// formatSHA256SUMS renders entries in sha256sum(1) format.
func formatSHA256SUMS(entries []manifestEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.SHA256)
		b.WriteString("  ")
		b.WriteString(e.Path)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// writeManifest records every artifact of the run into outDir, including
// write-once targets that an earlier run already left there.
func writeManifest(cfg Config, outDir string, w *media.Writer) error {
	entries := buildManifestEntries(outDir, w.Artifacts())
	meta := manifestMeta{
		Version:     BuildVersion,
		Commit:      BuildCommit,
		Type:        cfg.Type,
		Input:       cfg.InputPath,
		FileCount:   len(entries),
		GeneratedAt: time.Now().UTC(),
	}
	data, err := marshalManifestJSON(meta, entries)
	if err != nil {
		return err
	}
	if _, err := w.ReplaceFile(outDir, sumsName, formatSHA256SUMS(entries)); err != nil {
		return err
	}
	_, err = w.ReplaceFile(outDir, manifestName, data)
	return err
}
