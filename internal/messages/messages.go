// Package messages exports the text of SMS Backup & Restore message backups
// (sms-*.xml) to a CSV file: SMS bodies and the text/plain parts of MMS.
package messages

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/smsbackup/internal/backup"
	"github.com/hyperifyio/smsbackup/internal/media"
)

// CSVName is the file written into the output directory.
const CSVName = "sms_messages.csv"

// Header is the fixed CSV header row.
var Header = []string{
	"kind", "id", "timestamp", "readable_date", "address", "contact_name",
	"direction", "body", "read", "status", "locked", "sub_id",
}

const (
	KindSMS = "SMS"
	KindMMS = "MMS"
)

// Telephony message box codes, shared by the sms type and mms msg_box
// attributes.
var directionLabels = map[string]string{
	"1": "incoming",
	"2": "outgoing",
	"3": "draft",
	"4": "outbox",
	"5": "failed",
	"6": "queued",
}

// UnknownDirection labels codes outside the table.
const UnknownDirection = "unknown"

// DirectionLabel maps a message box code to its label.
func DirectionLabel(code string) string {
	if l, ok := directionLabels[strings.TrimSpace(code)]; ok {
		return l
	}
	return UnknownDirection
}

type smsElement struct {
	Date         string `xml:"date,attr"`
	ReadableDate string `xml:"readable_date,attr"`
	Address      string `xml:"address,attr"`
	ContactName  string `xml:"contact_name,attr"`
	Type         string `xml:"type,attr"`
	Body         string `xml:"body,attr"`
	Read         string `xml:"read,attr"`
	Status       string `xml:"status,attr"`
	Locked       string `xml:"locked,attr"`
	SubID        string `xml:"sub_id,attr"`
}

type mmsElement struct {
	Date         string `xml:"date,attr"`
	ReadableDate string `xml:"readable_date,attr"`
	Address      string `xml:"address,attr"`
	ContactName  string `xml:"contact_name,attr"`
	MsgBox       string `xml:"msg_box,attr"`
	Read         string `xml:"read,attr"`
	Status       string `xml:"st,attr"`
	Locked       string `xml:"locked,attr"`
	SubID        string `xml:"sub_id,attr"`
	Parts        []struct {
		ContentType string `xml:"ct,attr"`
		Text        string `xml:"text,attr"`
	} `xml:"parts>part"`
}

// Message is one row of the export.
type Message struct {
	Kind string
	// ID numbers messages of the same kind in the order they were read.
	ID           int
	Time         time.Time
	ReadableDate string
	Address      string
	ContactName  string
	Direction    string
	Body         string
	Read         string
	Status       string
	Locked       string
	SubID        string
}

// Timestamp renders Time as RFC 3339 in UTC, or "" when the source date did
// not parse.
func (m Message) Timestamp() string {
	if m.Time.IsZero() {
		return ""
	}
	return m.Time.UTC().Format("2006-01-02T15:04:05.999Z07:00")
}

// Row returns the CSV fields in Header order.
func (m Message) Row() []string {
	return []string{
		m.Kind, strconv.Itoa(m.ID), m.Timestamp(), m.ReadableDate, m.Address,
		m.ContactName, m.Direction, m.Body, m.Read, m.Status, m.Locked, m.SubID,
	}
}

// Result summarizes an Export call.
type Result struct {
	SMS int
	MMS int
	// Empty counts messages without any text.
	Empty   int
	CSVPath string
}

// Exporter collects message text from one or more backups.
type Exporter struct {
	writer *media.Writer
	nsms   int
	nmms   int
	empty  int
}

func New(w *media.Writer) *Exporter {
	if w == nil {
		w = &media.Writer{}
	}
	return &Exporter{writer: w}
}

// Collect reads every <sms> and <mms> element of docPath in document order
// and returns the ones that carry text. MMS text is the text/plain parts
// joined by newlines.
func (e *Exporter) Collect(ctx context.Context, docPath string) ([]Message, error) {
	doc, err := backup.OpenXML(docPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var out []Message
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		start, err := doc.Next("sms", "mms")
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		var m Message
		if start.Name.Local == "sms" {
			var el smsElement
			if err := doc.Decode(&el, start); err != nil {
				return out, err
			}
			m = fromSMS(el)
		} else {
			var el mmsElement
			if err := doc.Decode(&el, start); err != nil {
				return out, err
			}
			m = fromMMS(el)
		}
		if m.Body == "" {
			e.empty++
			continue
		}
		if m.Kind == KindSMS {
			m.ID = e.nsms
			e.nsms++
		} else {
			m.ID = e.nmms
			e.nmms++
		}
		out = append(out, m)
	}
}

func fromSMS(el smsElement) Message {
	return Message{
		Kind:         KindSMS,
		Time:         parseDate(el.Date),
		ReadableDate: el.ReadableDate,
		Address:      el.Address,
		ContactName:  el.ContactName,
		Direction:    DirectionLabel(el.Type),
		Body:         el.Body,
		Read:         el.Read,
		Status:       el.Status,
		Locked:       el.Locked,
		SubID:        el.SubID,
	}
}

func fromMMS(el mmsElement) Message {
	var texts []string
	for _, p := range el.Parts {
		ct, _, _ := strings.Cut(p.ContentType, ";")
		if !strings.EqualFold(strings.TrimSpace(ct), "text/plain") || p.Text == "" {
			continue
		}
		texts = append(texts, p.Text)
	}
	return Message{
		Kind:         KindMMS,
		Time:         parseDate(el.Date),
		ReadableDate: el.ReadableDate,
		Address:      el.Address,
		ContactName:  el.ContactName,
		Direction:    DirectionLabel(el.MsgBox),
		Body:         strings.Join(texts, "\n"),
		Read:         el.Read,
		Status:       el.Status,
		Locked:       el.Locked,
		SubID:        el.SubID,
	}
}

func parseDate(s string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Export collects messages from docPaths and writes sms_messages.csv into
// outDir, ordered by time. Messages without a usable date keep their read
// order after the dated ones. Nothing is written when no message has text.
func (e *Exporter) Export(ctx context.Context, docPaths []string, outDir string) (Result, error) {
	var res Result
	var all []Message
	for _, p := range docPaths {
		msgs, err := e.Collect(ctx, p)
		if err != nil {
			return res, err
		}
		all = append(all, msgs...)
		log.Debug().Str("path", p).Int("messages", len(msgs)).Msg("message text collected")
	}
	res.SMS, res.MMS, res.Empty = e.nsms, e.nmms, e.empty
	if len(all) == 0 {
		log.Info().Str("dir", outDir).Msg("no message text found, nothing exported")
		return res, nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Time, all[j].Time
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})

	data, err := EncodeCSV(all)
	if err != nil {
		return res, err
	}
	path, err := e.writer.ReplaceFile(outDir, CSVName, data)
	if err != nil {
		return res, err
	}
	res.CSVPath = path
	return res, nil
}

// EncodeCSV renders the header and one row per message with CRLF line
// endings.
func EncodeCSV(msgs []Message) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if err := w.Write(m.Row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
