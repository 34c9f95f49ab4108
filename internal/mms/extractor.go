// Package mms extracts media attachments from SMS Backup & Restore message
// backups (sms-*.xml).
package mms

import (
	"context"
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

// Message is one <mms> element. Only the fields used for naming and media
// extraction are decoded.
type Message struct {
	Date    string `xml:"date,attr"`
	Address string `xml:"address,attr"`
	Parts   []Part `xml:"parts>part"`
}

// Part is one <part> of an MMS. Data holds the base64 payload.
type Part struct {
	ContentType string `xml:"ct,attr"`
	Data        string `xml:"data,attr"`
}

// Filter selects which media kinds are extracted. The zero value extracts
// nothing; use AllMedia for the default.
type Filter struct {
	Images   bool
	Videos   bool
	Audio    bool
	PDFs     bool
	Contacts bool
}

// AllMedia extracts every media kind.
var AllMedia = Filter{Images: true, Videos: true, Audio: true, PDFs: true, Contacts: true}

func (f Filter) allows(k media.Kind) bool {
	switch k {
	case media.KindImage:
		return f.Images
	case media.KindVideo:
		return f.Videos
	case media.KindAudio:
		return f.Audio
	case media.KindPDF:
		return f.PDFs
	case media.KindContact:
		return f.Contacts
	}
	return false
}

type Options struct {
	Filter Filter
	// Strict turns per-part decode errors into a failed run.
	Strict bool
}

// Result summarizes one or more Extract calls on the same Extractor.
type Result struct {
	Messages   int
	MediaParts int
	Written    []string
	// Skipped counts media parts that were not written: missing payload,
	// decode failure, name collision or an existing file.
	Skipped int
	Errors  []error
}

// Extractor writes MMS media into a directory. File names are unique per
// Extractor; use one Extractor per run.
type Extractor struct {
	opts   Options
	writer *media.Writer
	namer  *media.Namer
	res    Result
}

func New(opts Options, w *media.Writer) *Extractor {
	if w == nil {
		w = &media.Writer{}
	}
	return &Extractor{opts: opts, writer: w, namer: media.NewNamer()}
}

// Result returns the totals accumulated so far.
func (e *Extractor) Result() Result { return e.res }

// Extract walks every <mms> element of the backup at docPath and writes its
// media parts into outDir. Malformed XML aborts with a *backup.ParseError;
// files written before the error stay on disk.
func (e *Extractor) Extract(ctx context.Context, docPath, outDir string) (Result, error) {
	doc, err := backup.OpenXML(docPath)
	if err != nil {
		return e.res, err
	}
	defer doc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return e.res, err
		}
		start, err := doc.Next("mms")
		if errors.Is(err, io.EOF) {
			return e.res, nil
		}
		if err != nil {
			return e.res, err
		}
		var msg Message
		if err := doc.Decode(&msg, start); err != nil {
			return e.res, err
		}
		e.res.Messages++
		if err := e.extractMessage(docPath, outDir, msg); err != nil {
			return e.res, err
		}
	}
}

func (e *Extractor) extractMessage(docPath, outDir string, msg Message) error {
	var parts []Part
	for _, p := range msg.Parts {
		k := media.KindOf(p.ContentType)
		if k == media.KindNone {
			continue
		}
		if !e.opts.Filter.allows(k) {
			log.Debug().Str("ct", p.ContentType).Str("date", msg.Date).Msg("media kind filtered")
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return nil
	}

	base := timestampName(msg.Date) + "_" + media.SanitizeName(msg.Address)
	for i, p := range parts {
		e.res.MediaParts++
		record := fmt.Sprintf("mms %s part %d", msg.Date, i+1)

		if strings.TrimSpace(p.Data) == "" {
			e.skip(&backup.MissingFieldError{Record: record, Field: "data"})
			continue
		}
		data, err := backup.DecodeBase64(p.Data)
		if err != nil {
			de := &backup.DecodeError{Path: docPath, Record: record, Err: err}
			if e.opts.Strict {
				return de
			}
			e.skip(de)
			continue
		}

		ext, known := media.ExtensionForMIME(p.ContentType)
		if !known {
			log.Debug().Str("ct", p.ContentType).Msg("unmapped content type, using generic extension")
		}
		name := base
		if len(parts) > 1 {
			name += "_" + strconv.Itoa(i+1)
		}
		name += "." + ext
		if !e.namer.Claim(name) {
			e.skip(fmt.Errorf("%s: name collision on %s", record, name))
			continue
		}

		path, err := e.writer.WriteFile(outDir, name, data)
		if errors.Is(err, media.ErrExists) {
			e.skip(err)
			continue
		}
		if err != nil {
			return err
		}
		e.res.Written = append(e.res.Written, path)
		log.Debug().Str("file", path).Int("bytes", len(data)).Msg("mms media written")
	}
	return nil
}

func (e *Extractor) skip(err error) {
	e.res.Skipped++
	e.res.Errors = append(e.res.Errors, err)
	log.Warn().Err(err).Msg("mms part skipped")
}

// timestampName renders an epoch-millisecond date as 20060102-150405-000 in
// UTC. Values that do not parse are sanitized and used as they are.
func timestampName(date string) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(date), 10, 64)
	if err != nil {
		return media.SanitizeName(date)
	}
	t := time.UnixMilli(ms).UTC()
	return t.Format("20060102-150405") + fmt.Sprintf("-%03d", t.Nanosecond()/int(time.Millisecond))
}
