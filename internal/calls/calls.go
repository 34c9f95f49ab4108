// Package calls turns SMS Backup & Restore call log backups (calls-*.xml)
// into a CSV call log.
package calls

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/smsbackup/internal/backup"
	"github.com/hyperifyio/smsbackup/internal/media"
)

// CSVName is the file written into the output directory.
const CSVName = "call_log.csv"

// Header is the fixed CSV header row.
var Header = []string{"number", "type", "timestamp", "duration"}

// Android CallLog.Calls type codes.
var typeLabels = map[string]string{
	"1": "incoming",
	"2": "outgoing",
	"3": "missed",
	"4": "voicemail",
	"5": "rejected",
	"6": "blocked",
	"7": "answered_externally",
}

// UnknownType labels codes outside the table.
const UnknownType = "unknown"

// TypeLabel maps a numeric call type code to its label.
func TypeLabel(code string) string {
	if l, ok := typeLabels[strings.TrimSpace(code)]; ok {
		return l
	}
	return UnknownType
}

// callElement mirrors the attributes of a <call> element.
type callElement struct {
	Number      string  `xml:"number,attr"`
	Duration    *string `xml:"duration,attr"`
	Date        string  `xml:"date,attr"`
	Type        string  `xml:"type,attr"`
	ContactName string  `xml:"contact_name,attr"`
}

// Call is one row of the call log. ContactName only appears in the PDF.
type Call struct {
	Number      string
	Type        string
	Time        time.Time
	Duration    int
	ContactName string
}

// Timestamp renders Time as RFC 3339 in UTC, with milliseconds only when the
// source carried them.
func (c Call) Timestamp() string {
	return c.Time.UTC().Format("2006-01-02T15:04:05.999Z07:00")
}

// Row returns the CSV fields in Header order.
func (c Call) Row() []string {
	return []string{c.Number, c.Type, c.Timestamp(), strconv.Itoa(c.Duration)}
}

type Options struct {
	// Dedup drops calls whose timestamp was already seen in this run.
	Dedup bool
	// PDF additionally renders the call log as call_log.pdf.
	PDF bool
}

// Result summarizes a Generate call.
type Result struct {
	Calls   int
	Omitted int
	Dupes   int
	CSVPath string
	PDFPath string
}

// Generator collects calls from one or more backups and writes the call log.
type Generator struct {
	opts   Options
	writer *media.Writer
}

func New(opts Options, w *media.Writer) *Generator {
	if w == nil {
		w = &media.Writer{}
	}
	return &Generator{opts: opts, writer: w}
}

// Collect reads every <call> element of docPath in document order. Calls
// without a usable date are omitted; the second return value counts them.
func (g *Generator) Collect(ctx context.Context, docPath string) ([]Call, int, error) {
	doc, err := backup.OpenXML(docPath)
	if err != nil {
		return nil, 0, err
	}
	defer doc.Close()

	var out []Call
	omitted := 0
	for {
		if err := ctx.Err(); err != nil {
			return out, omitted, err
		}
		start, err := doc.Next("call")
		if errors.Is(err, io.EOF) {
			return out, omitted, nil
		}
		if err != nil {
			return out, omitted, err
		}
		var el callElement
		if err := doc.Decode(&el, start); err != nil {
			return out, omitted, err
		}
		c, err := toCall(el)
		if err != nil {
			omitted++
			log.Warn().Err(err).Str("path", docPath).Msg("call omitted")
			continue
		}
		out = append(out, c)
	}
}

func toCall(el callElement) (Call, error) {
	record := "call " + el.Number
	ms, err := strconv.ParseInt(strings.TrimSpace(el.Date), 10, 64)
	if err != nil {
		if strings.TrimSpace(el.Date) == "" {
			return Call{}, &backup.MissingFieldError{Record: record, Field: "date"}
		}
		return Call{}, fmt.Errorf("%s: invalid date %q", record, el.Date)
	}
	c := Call{
		Number:      el.Number,
		Type:        TypeLabel(el.Type),
		Time:        time.UnixMilli(ms).UTC(),
		ContactName: el.ContactName,
	}
	if el.Duration != nil {
		d, err := strconv.Atoi(strings.TrimSpace(*el.Duration))
		if err != nil || d < 0 {
			log.Warn().Str("number", el.Number).Str("duration", *el.Duration).Msg("invalid call duration, using 0")
		} else {
			c.Duration = d
		}
	}
	return c, nil
}

// Generate collects calls from docPaths in order and writes call_log.csv into
// outDir, replacing any previous call log. A malformed document aborts the
// run before anything is written.
func (g *Generator) Generate(ctx context.Context, docPaths []string, outDir string) (Result, error) {
	var res Result
	var all []Call
	seen := make(map[int64]bool)
	for _, p := range docPaths {
		calls, omitted, err := g.Collect(ctx, p)
		if err != nil {
			return res, err
		}
		res.Omitted += omitted
		for _, c := range calls {
			if g.opts.Dedup {
				key := c.Time.UnixMilli()
				if seen[key] {
					res.Dupes++
					continue
				}
				seen[key] = true
			}
			all = append(all, c)
		}
		log.Debug().Str("path", p).Int("calls", len(all)).Msg("call backup processed")
	}
	res.Calls = len(all)

	data, err := EncodeCSV(all)
	if err != nil {
		return res, err
	}
	path, err := g.writer.ReplaceFile(outDir, CSVName, data)
	if err != nil {
		return res, err
	}
	res.CSVPath = path

	if g.opts.PDF {
		pdfPath, err := writePDF(all, outDir, g.writer)
		if err != nil {
			return res, fmt.Errorf("call log pdf: %w", err)
		}
		res.PDFPath = pdfPath
	}
	return res, nil
}

// EncodeCSV renders the header and one row per call with CRLF line endings.
func EncodeCSV(calls []Call) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, c := range calls {
		if err := w.Write(c.Row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
