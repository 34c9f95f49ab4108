package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInputs is returned when an input directory holds no backup of the
// requested type.
var ErrNoInputs = errors.New("no input files")

// inputPatterns are matched case-insensitively against file names when the
// input is a directory.
var inputPatterns = map[string]string{
	TypeSMS:   "sms*.xml",
	TypeCalls: "calls*.xml",
	TypeVCF:   "*.vcf",
}

// NormalizePath expands a leading ~, cleans the path and makes it absolute.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", p, err)
		}
		p = filepath.Join(home, p[1:])
	}
	return filepath.Abs(filepath.Clean(p))
}

// DiscoverInputs resolves input into the backup files for typ. A file is
// returned as is; a directory is scanned (not recursively) for matching
// names, in sorted order.
func DiscoverInputs(input, typ string) ([]string, error) {
	pattern, ok := inputPatterns[typ]
	if !ok {
		return nil, fmt.Errorf("%w: no input pattern for type %q", ErrInvalidConfig, typ)
	}
	st, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if !st.IsDir() {
		return []string{input}, nil
	}
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, strings.ToLower(e.Name())); ok {
			out = append(out, filepath.Join(input, e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no %s in %s", ErrNoInputs, pattern, input)
	}
	sort.Strings(out)
	return out, nil
}
