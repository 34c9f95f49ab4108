package vcard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/smsbackup/internal/backup"
	"github.com/hyperifyio/smsbackup/internal/media"
)

type Options struct {
	// Strict turns corrupt payloads into a failed run.
	Strict bool
}

// Result summarizes one or more Extract calls on the same Extractor.
type Result struct {
	Contacts    int
	MediaFields int
	Written     []string
	Skipped     int
	Errors      []error
}

// Extractor writes contact media into a directory. Names are de-duplicated
// per Extractor; use one Extractor per run.
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

// Extract parses the VCF file at vcfPath and writes the media of every
// complete contact into outDir. Structural errors come back as
// *backup.ParseError; media of contacts before the error stay on disk.
func (e *Extractor) Extract(ctx context.Context, vcfPath, outDir string) (Result, error) {
	f, err := os.Open(vcfPath)
	if err != nil {
		return e.res, err
	}
	defer f.Close()

	err = Parse(f, func(c Contact) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.res.Contacts++
		return e.extractContact(vcfPath, outDir, c)
	})
	var pe *backup.ParseError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = vcfPath
	}
	return e.res, err
}

func (e *Extractor) extractContact(vcfPath, outDir string, c Contact) error {
	if len(c.Media) == 0 {
		return nil
	}
	id := media.SanitizeName(c.Identifier())
	for _, m := range c.Media {
		e.res.MediaFields++
		record := fmt.Sprintf("%s line %d", m.Property, m.Line)

		if m.URL != "" {
			e.skip(fmt.Errorf("%s: remote media %q not downloaded", record, m.URL))
			continue
		}
		if strings.TrimSpace(m.Data) == "" {
			e.skip(&backup.MissingFieldError{Record: record, Field: "data"})
			continue
		}
		data, err := m.Bytes()
		if err != nil {
			de := &backup.DecodeError{Path: vcfPath, Record: record, Contact: c.Index, Err: err}
			if e.opts.Strict {
				return de
			}
			e.skip(de)
			continue
		}

		ext := m.Extension()
		if ext == media.GenericExtension {
			ext, _ = media.ExtensionForMIME(http.DetectContentType(data))
		}
		base := id
		if m.Property != "PHOTO" {
			base += "_" + strings.ToLower(m.Property)
		}
		name := e.namer.Reserve(base, ext)

		path, err := e.writer.WriteFile(outDir, name, data)
		if errors.Is(err, media.ErrExists) {
			e.skip(err)
			continue
		}
		if err != nil {
			return err
		}
		e.res.Written = append(e.res.Written, path)
		log.Debug().Str("file", path).Int("contact", c.Index).Int("bytes", len(data)).Msg("contact media written")
	}
	return nil
}

func (e *Extractor) skip(err error) {
	e.res.Skipped++
	e.res.Errors = append(e.res.Errors, err)
	log.Warn().Err(err).Msg("contact media skipped")
}
