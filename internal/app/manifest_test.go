package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/smsbackup/internal/media"
)

func TestBuildManifestEntries_RelativeAndSorted(t *testing.T) {
	out := filepath.Join(string(filepath.Separator), "tmp", "out")
	arts := []media.Artifact{
		{Path: filepath.Join(out, "vcf", "b.jpg"), Bytes: 3, SHA256: "bb"},
		{Path: filepath.Join(out, "a.csv"), Bytes: 5, SHA256: "aa"},
	}
	entries := buildManifestEntries(out, arts)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries; got %d", len(entries))
	}
	if entries[0].Path != "a.csv" || entries[1].Path != "vcf/b.jpg" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestMarshalManifestJSON_AndSums(t *testing.T) {
	meta := manifestMeta{
		Version:     "1.2.3",
		Type:        TypeSMS,
		FileCount:   1,
		GeneratedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	entries := []manifestEntry{{Path: "x.jpg", Bytes: 5, SHA256: "abcd"}}
	b, err := marshalManifestJSON(meta, entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"version": "1.2.3"`, `"generated_at": "2024-01-01T12:00:00Z"`, `"path": "x.jpg"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("manifest missing %s:\n%s", want, s)
		}
	}
	if got := string(formatSHA256SUMS(entries)); got != "abcd  x.jpg\n" {
		t.Fatalf("sums = %q", got)
	}
}
