package calls

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/smsbackup/internal/backup"
)

func writeCalls(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

const sampleCalls = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<calls count="5">
  <call number="+15550003" duration="12" date="1609459500000" type="1" contact_name="C" />
  <call number="+15550001" duration="45" date="1609459200000" type="2" contact_name="A" />
  <call number="+15550002" date="1609459300000" type="3" />
  <call number="+15550004" duration="7" type="1" />
  <call number="+15550005" duration="abc" date="1609459400500" type="42" />
</calls>`

func TestGenerate_RowsInDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	doc := writeCalls(t, dir, "calls-1.xml", sampleCalls)

	res, err := New(Options{}, nil).Generate(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Calls != 4 || res.Omitted != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	rows := readCSV(t, res.CSVPath)
	want := [][]string{
		{"number", "type", "timestamp", "duration"},
		{"+15550003", "incoming", "2021-01-01T00:05:00Z", "12"},
		{"+15550001", "outgoing", "2021-01-01T00:00:00Z", "45"},
		{"+15550002", "missed", "2021-01-01T00:01:40Z", "0"},
		{"+15550005", "unknown", "2021-01-01T00:03:20.5Z", "0"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if strings.Join(rows[i], ",") != strings.Join(want[i], ",") {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestGenerate_OutgoingRowFormat(t *testing.T) {
	dir := t.TempDir()
	doc := writeCalls(t, dir, "calls.xml", `<calls><call number="5551234" duration="45" date="1609459200000" type="2" /></calls>`)
	res, err := New(Options{}, nil).Generate(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := os.ReadFile(res.CSVPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "number,type,timestamp,duration\r\n5551234,outgoing,2021-01-01T00:00:00Z,45\r\n"
	if string(b) != want {
		t.Fatalf("csv = %q, want %q", b, want)
	}
}

func TestGenerate_OverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CSVName), []byte("stale,data\r\nmore,stale\r\nand,more\r\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	doc := writeCalls(t, dir, "calls.xml", `<calls></calls>`)
	res, err := New(Options{}, nil).Generate(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	rows := readCSV(t, res.CSVPath)
	if len(rows) != 1 || rows[0][0] != "number" {
		t.Fatalf("expected header only, got %v", rows)
	}
}

func TestGenerate_DedupAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeCalls(t, dir, "calls-a.xml", `<calls><call number="1" duration="1" date="1000" type="1" /><call number="2" duration="1" date="2000" type="1" /></calls>`)
	b := writeCalls(t, dir, "calls-b.xml", `<calls><call number="2" duration="1" date="2000" type="1" /><call number="3" duration="1" date="3000" type="2" /></calls>`)

	res, err := New(Options{Dedup: true}, nil).Generate(context.Background(), []string{a, b}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Calls != 3 || res.Dupes != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = New(Options{}, nil).Generate(context.Background(), []string{a, b}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Calls != 4 {
		t.Fatalf("without dedup expected 4 calls, got %d", res.Calls)
	}
}

func TestGenerate_MalformedAbortsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	doc := writeCalls(t, dir, "calls.xml", `<calls><call number="1" date="1000" type="1"></calls>`)
	_, err := New(Options{}, nil).Generate(context.Background(), []string{doc}, dir)
	var pe *backup.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, CSVName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("call log should not exist, stat err = %v", err)
	}
}

func TestGenerate_PDF(t *testing.T) {
	dir := t.TempDir()
	doc := writeCalls(t, dir, "calls.xml", sampleCalls)
	res, err := New(Options{PDF: true}, nil).Generate(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := os.ReadFile(res.PDFPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}

func TestCollect_KeepsContactNameForPDF(t *testing.T) {
	dir := t.TempDir()
	doc := writeCalls(t, dir, "calls.xml", sampleCalls)
	got, _, err := New(Options{}, nil).Collect(context.Background(), doc)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 4 || got[0].ContactName != "C" || got[1].ContactName != "A" || got[2].ContactName != "" {
		t.Fatalf("calls = %+v", got)
	}
	// The CSV layout stays fixed.
	if row := got[0].Row(); len(row) != len(Header) {
		t.Fatalf("row = %v", row)
	}
}

func TestFit_CutsLongNames(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 9)
	const width = 45
	if got := fit(pdf, "Jane Roe", width); got != "Jane Roe" {
		t.Fatalf("short name changed: %q", got)
	}
	long := strings.Repeat("Bartholomew ", 10)
	got := fit(pdf, long, width)
	if !strings.HasSuffix(got, "..") || len(got) >= len(long) {
		t.Fatalf("long name not cut: %q", got)
	}
	if w := pdf.GetStringWidth(got); w > width {
		t.Fatalf("cut name still %.1fmm wide", w)
	}
}

func TestTypeLabel(t *testing.T) {
	cases := map[string]string{
		"1": "incoming", "2": "outgoing", "3": "missed", "4": "voicemail",
		"5": "rejected", "6": "blocked", "7": "answered_externally",
		"0": UnknownType, "": UnknownType, "x": UnknownType,
	}
	for in, want := range cases {
		if got := TypeLabel(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestCollect_MissingDateIsMissingField(t *testing.T) {
	_, err := toCall(callElement{Number: "1"})
	var mf *backup.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != "date" {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if _, err := toCall(callElement{Number: "1", Date: "yesterday"}); err == nil {
		t.Fatalf("expected invalid date error")
	}
}
