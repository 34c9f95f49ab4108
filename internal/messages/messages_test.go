package messages

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/smsbackup/internal/backup"
	"github.com/hyperifyio/smsbackup/internal/media"
)

func writeBackup(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	return p
}

func readRows(t *testing.T, path string) [][]string {
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

const mixed = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<smses count="4">
  <sms address="+1234567890" date="1609545600000" type="2" body="This is a reply message" read="1" status="-1" locked="0" readable_date="Jan 2, 2021 12:00:00 AM" contact_name="John Doe" sub_id="-1" />
  <mms address="+1234567890" date="1609502400000" msg_box="1" read="1" st="" locked="1" contact_name="John Doe" sub_id="1">
    <parts>
      <part seq="-1" ct="application/smil" text="&lt;smil/&gt;" />
      <part seq="0" ct="text/plain" text="This is an MMS text body" />
      <part seq="1" ct="image/jpeg" data="AAAA" />
      <part seq="2" ct="Text/Plain; charset=utf-8" text="second line" />
    </parts>
  </mms>
  <sms address="+1234567890" date="1609459200000" type="1" body="Hello, this is a test message" read="0" status="-1" locked="1" contact_name="John Doe" sub_id="1" />
  <sms address="+1999" date="1609459200001" type="1" body="" />
</smses>`

func TestExport_SortsSMSAndMMSByTime(t *testing.T) {
	dir := t.TempDir()
	doc := writeBackup(t, dir, "sms-20210101.xml", mixed)

	e := New(&media.Writer{})
	res, err := e.Export(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.SMS != 2 || res.MMS != 1 || res.Empty != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CSVPath != filepath.Join(dir, CSVName) {
		t.Fatalf("csv path = %q", res.CSVPath)
	}

	rows := readRows(t, res.CSVPath)
	if len(rows) != 4 || strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Fatalf("unexpected rows: %v", rows)
	}
	want := [][]string{
		{"SMS", "1", "2021-01-01T00:00:00Z", "", "+1234567890", "John Doe", "incoming", "Hello, this is a test message", "0", "-1", "1", "1"},
		{"MMS", "0", "2021-01-01T12:00:00Z", "", "+1234567890", "John Doe", "incoming", "This is an MMS text body\nsecond line", "1", "", "1", "1"},
		{"SMS", "0", "2021-01-02T00:00:00Z", "Jan 2, 2021 12:00:00 AM", "+1234567890", "John Doe", "outgoing", "This is a reply message", "1", "-1", "0", "-1"},
	}
	for i, w := range want {
		if got := strings.Join(rows[i+1], "|"); got != strings.Join(w, "|") {
			t.Fatalf("row %d:\n got %q\nwant %q", i+1, got, strings.Join(w, "|"))
		}
	}
}

func TestExport_UsesCRLF(t *testing.T) {
	dir := t.TempDir()
	doc := writeBackup(t, dir, "sms-1.xml", `<smses><sms date="1" type="1" body="hi" /></smses>`)
	res, err := New(nil).Export(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(res.CSVPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(b), strings.Join(Header, ",")+"\r\n") || !strings.HasSuffix(string(b), "\r\n") {
		t.Fatalf("expected CRLF rows, got %q", b)
	}
}

func TestExport_NoTextWritesNothing(t *testing.T) {
	dir := t.TempDir()
	doc := writeBackup(t, dir, "sms-empty.xml", `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<smses count="1"><mms date="1"><parts><part ct="image/png" data="AAAA" /></parts></mms></smses>`)
	res, err := New(nil).Export(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.CSVPath != "" || res.Empty != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, CSVName)); !os.IsNotExist(err) {
		t.Fatalf("expected no csv, stat err=%v", err)
	}
}

func TestExport_UndatedMessagesKeepOrderAtEnd(t *testing.T) {
	dir := t.TempDir()
	doc := writeBackup(t, dir, "sms-1.xml", `<smses>
<sms date="bogus" type="9" body="first undated" />
<sms date="2000" type="1" body="dated" />
<sms type="2" body="second undated" />
</smses>`)
	res, err := New(nil).Export(context.Background(), []string{doc}, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := readRows(t, res.CSVPath)
	var bodies []string
	for _, r := range rows[1:] {
		bodies = append(bodies, r[7])
	}
	if strings.Join(bodies, ",") != "dated,first undated,second undated" {
		t.Fatalf("order = %v", bodies)
	}
	if rows[2][2] != "" || rows[2][6] != UnknownDirection {
		t.Fatalf("undated row = %v", rows[2])
	}
}

func TestExport_IDsContinueAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeBackup(t, dir, "sms-a.xml", `<smses><sms date="1" body="a" /></smses>`)
	b := writeBackup(t, dir, "sms-b.xml", `<smses><sms date="2" body="b" /></smses>`)
	res, err := New(nil).Export(context.Background(), []string{a, b}, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := readRows(t, res.CSVPath)
	if rows[1][1] != "0" || rows[2][1] != "1" {
		t.Fatalf("ids = %q, %q", rows[1][1], rows[2][1])
	}
}

func TestExport_MalformedIsParseError(t *testing.T) {
	dir := t.TempDir()
	doc := writeBackup(t, dir, "sms-bad.xml", "<smses>\n<sms body=\"x\">\n</smses>")
	_, err := New(nil).Export(context.Background(), []string{doc}, dir)
	var pe *backup.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, CSVName)); !os.IsNotExist(err) {
		t.Fatalf("csv written despite parse error")
	}
}

func TestDirectionLabel(t *testing.T) {
	cases := map[string]string{"1": "incoming", " 2 ": "outgoing", "5": "failed", "132": UnknownDirection, "": UnknownDirection}
	for in, want := range cases {
		if got := DirectionLabel(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}
