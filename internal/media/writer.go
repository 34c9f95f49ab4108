package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrExists is returned when the target of a write-once file is already on
// disk. Existing files are never replaced.
var ErrExists = errors.New("file already exists")

// Artifact describes one output file of a run. Existing marks a write-once
// target that was already on disk and left untouched.
type Artifact struct {
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
	SHA256   string `json:"sha256"`
	Existing bool   `json:"existing,omitempty"`
}

// Writer creates output files. Data is written to a temp file next to the
// target and then linked into place, so a target either holds the full
// payload or does not exist. Writer is safe for concurrent use.
type Writer struct {
	// FileMode applies to created files; zero means 0o644.
	FileMode fs.FileMode

	mu        sync.Mutex
	artifacts []Artifact
}

// WriteFile creates dir/name with data. It fails with ErrExists when the
// target is already present; a regular file found there is still recorded
// as an artifact, hashed from disk.
func (w *Writer) WriteFile(dir, name string, data []byte) (string, error) {
	target := filepath.Join(dir, name)
	if _, err := os.Lstat(target); err == nil {
		w.recordExisting(target)
		return target, fmt.Errorf("%s: %w", target, ErrExists)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return target, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return target, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return target, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, w.mode()); err != nil {
		return target, fmt.Errorf("chmod %s: %w", name, err)
	}
	// Link refuses to replace an existing target, unlike Rename.
	if err := os.Link(tmpPath, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			w.recordExisting(target)
			return target, fmt.Errorf("%s: %w", target, ErrExists)
		}
		return target, fmt.Errorf("link %s: %w", name, err)
	}
	w.record(target, data)
	return target, nil
}

// ReplaceFile writes dir/name with data, replacing any previous file via
// rename. Used for per-run reports such as the call log.
func (w *Writer) ReplaceFile(dir, name string, data []byte) (string, error) {
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return target, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return target, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return target, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, w.mode()); err != nil {
		os.Remove(tmpPath)
		return target, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return target, fmt.Errorf("rename %s: %w", name, err)
	}
	w.record(target, data)
	return target, nil
}

// Artifacts returns a copy of everything written so far, in write order.
func (w *Writer) Artifacts() []Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Artifact(nil), w.artifacts...)
}

func (w *Writer) record(path string, data []byte) {
	sum := sha256.Sum256(data)
	w.mu.Lock()
	w.artifacts = append(w.artifacts, Artifact{Path: path, Bytes: len(data), SHA256: hex.EncodeToString(sum[:])})
	w.mu.Unlock()
}

// recordExisting hashes a regular file already at path. Anything it cannot
// read is left out of the artifacts.
func (w *Writer) recordExisting(path string) {
	st, err := os.Lstat(path)
	if err != nil || !st.Mode().IsRegular() {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.artifacts = append(w.artifacts, Artifact{Path: path, Bytes: int(n), SHA256: hex.EncodeToString(h.Sum(nil)), Existing: true})
	w.mu.Unlock()
}

func (w *Writer) mode() fs.FileMode {
	if w.FileMode == 0 {
		return 0o644
	}
	return w.FileMode
}
