package backup

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

// Document is an open XML backup file positioned at its first token.
type Document struct {
	Path    string
	Decoder *xml.Decoder
	f       *os.File
}

// OpenXML opens an XML backup for streaming. Non-UTF-8 encodings declared
// in the prolog are converted on the fly.
func OpenXML(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return &Document{Path: path, Decoder: NewDecoder(f), f: f}, nil
}

// NewDecoder returns a strict decoder with charset support.
func NewDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func (d *Document) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	return d.f.Close()
}

// Next returns the next start element whose local name is one of names,
// skipping everything else. It returns io.EOF at the end of a well-formed
// document and a *ParseError for anything the decoder rejects.
func (d *Document) Next(names ...string) (*xml.StartElement, error) {
	for {
		tok, err := d.Decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, d.parseError(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, name := range names {
			if se.Name.Local == name {
				return &se, nil
			}
		}
	}
}

// Decode decodes the element started by start into v.
func (d *Document) Decode(v any, start *xml.StartElement) error {
	if err := d.Decoder.DecodeElement(v, start); err != nil {
		return d.parseError(err)
	}
	return nil
}

func (d *Document) parseError(err error) error {
	pe := &ParseError{Path: d.Path, Err: err}
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		pe.Line = se.Line
	} else {
		pe.Line, _ = d.Decoder.InputPos()
	}
	return pe
}

// DecodeBase64 decodes an embedded payload. Backups wrap long payloads across
// lines and some writers drop the trailing padding.
func DecodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return nil, errors.New("empty payload")
	}
	if b, err := base64.StdEncoding.DecodeString(clean); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
	if err != nil {
		return nil, err
	}
	return b, nil
}
