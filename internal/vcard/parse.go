// Package vcard parses VCF/vCard files (2.1, 3.0 and 4.0) and extracts the
// media embedded in contacts.
package vcard

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperifyio/smsbackup/internal/backup"
)

const (
	beginVCard = "BEGIN:VCARD"
	endVCard   = "END:VCARD"
)

// Contact is one BEGIN:VCARD ... END:VCARD block.
type Contact struct {
	// Index is the 1-based position of the block in the file.
	Index int
	// Line is where BEGIN:VCARD appeared.
	Line          int
	Version       string
	FormattedName string
	// Name holds the structured N components: family, given, additional,
	// prefixes, suffixes.
	Name  []string
	UID   string
	Media []Media

	digest uuid.UUID
}

// Identifier names the contact for output files: the N components, then FN,
// then UID, then a UUID derived from the block contents so reruns pick the
// same name.
func (c Contact) Identifier() string {
	var parts []string
	for _, n := range c.Name {
		if s := strings.TrimSpace(n); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if s := strings.TrimSpace(c.FormattedName); s != "" {
		return s
	}
	if s := strings.TrimSpace(strings.TrimPrefix(c.UID, "urn:uuid:")); s != "" {
		return s
	}
	return c.digest.String()
}

// Property is one unfolded content line: [group.]NAME[;params]:value.
type Property struct {
	Name   string
	Params map[string][]string
	Value  string
	Line   int
}

// Param returns the first value of a parameter, or "".
func (p Property) Param(key string) string {
	if v := p.Params[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Parse reads VCF data and calls fn for every complete contact, in file
// order. A block without END:VCARD stops parsing with a *backup.ParseError
// naming the block; contacts handed to fn before that are unaffected. An
// error returned by fn stops parsing and is returned as is.
func Parse(r io.Reader, fn func(Contact) error) error {
	p := &parser{fn: fn}
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		raw, err := br.ReadString('\n')
		if raw == "" && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read: %w", err)
		}
		lineNo++
		line := strings.TrimRight(raw, "\r\n")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if err := p.feed(line, lineNo); err != nil {
			return err
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read: %w", err)
		}
	}
	if err := p.flush(); err != nil {
		return err
	}
	if p.inBlock {
		return &backup.ParseError{Line: p.cur.Line, Contact: p.cur.Index, Err: backup.ErrUnterminatedBlock}
	}
	return nil
}

type parser struct {
	fn func(Contact) error

	// pending logical line being unfolded
	pending     strings.Builder
	pendingLine int
	hasPending  bool
	inBase64    bool
	inQP        bool
	qpSoft      bool

	inBlock bool
	count   int
	cur     Contact
	h       hash.Hash
}

// feed handles one physical line. Continuation lines (leading space or tab)
// are appended to the pending logical line. Inside a vCard 2.1 base64 value,
// lines without a colon also continue it until a blank line, and a
// quoted-printable value ending in '=' continues on the next line.
func (p *parser) feed(line string, lineNo int) error {
	if p.hasPending && p.inQP && p.qpSoft {
		// keep the soft break for the quoted-printable decoder
		p.pending.WriteString("\r\n")
		p.pending.WriteString(line)
		p.qpSoft = strings.HasSuffix(line, "=")
		return nil
	}
	if p.hasPending && line != "" && (line[0] == ' ' || line[0] == '\t') {
		if p.inBase64 {
			p.pending.WriteString(strings.TrimSpace(line))
		} else {
			p.pending.WriteString(line[1:])
		}
		return nil
	}
	if p.hasPending && p.inBase64 && strings.TrimSpace(line) != "" && !strings.Contains(line, ":") {
		p.pending.WriteString(strings.TrimSpace(line))
		return nil
	}
	if err := p.flush(); err != nil {
		return err
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}
	p.pending.WriteString(line)
	p.pendingLine = lineNo
	p.hasPending = true
	p.inBase64 = headerHas(line, "BASE64", "ENCODING=B")
	p.inQP = headerHas(line, "QUOTED-PRINTABLE")
	p.qpSoft = p.inQP && strings.HasSuffix(line, "=")
	return nil
}

// headerHas reports whether the part of line before the first colon contains
// any of the markers.
func headerHas(line string, markers ...string) bool {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return false
	}
	head := strings.ToUpper(line[:i])
	for _, m := range markers {
		if strings.Contains(head, m) {
			return true
		}
	}
	return false
}

func (p *parser) flush() error {
	if !p.hasPending {
		return nil
	}
	line := p.pending.String()
	lineNo := p.pendingLine
	p.pending.Reset()
	p.hasPending = false
	p.inBase64 = false
	p.inQP = false
	p.qpSoft = false
	return p.logical(line, lineNo)
}

func (p *parser) logical(line string, lineNo int) error {
	marker := strings.ToUpper(strings.TrimSpace(line))
	switch marker {
	case beginVCard:
		if p.inBlock {
			return &backup.ParseError{Line: p.cur.Line, Contact: p.cur.Index, Err: backup.ErrUnterminatedBlock}
		}
		p.count++
		p.inBlock = true
		p.cur = Contact{Index: p.count, Line: lineNo}
		p.h = sha256.New()
		return nil
	case endVCard:
		if !p.inBlock {
			return &backup.ParseError{
				Line: lineNo,
				Err:  &backup.MissingFieldError{Record: fmt.Sprintf("END:VCARD at line %d", lineNo), Field: beginVCard},
			}
		}
		p.inBlock = false
		p.cur.digest = uuid.NewSHA1(uuid.NameSpaceOID, p.h.Sum(nil))
		return p.fn(p.cur)
	}
	if !p.inBlock {
		return nil
	}
	p.h.Write([]byte(line))
	p.h.Write([]byte{'\n'})

	prop, ok := parseProperty(line, lineNo)
	if !ok {
		return nil
	}
	if h, found := handlers[prop.Name]; found {
		h(&p.cur, prop)
	}
	return nil
}

// parseProperty splits a content line into name, parameters and value.
// Lines without a colon are not properties and report ok=false.
func parseProperty(line string, lineNo int) (Property, bool) {
	colon := indexUnquoted(line, ':')
	if colon <= 0 {
		return Property{}, false
	}
	head, value := line[:colon], line[colon+1:]
	segs := splitUnquoted(head, ';')
	name := strings.ToUpper(strings.TrimSpace(segs[0]))
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	prop := Property{Name: name, Params: make(map[string][]string), Value: value, Line: lineNo}
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, val, hasEq := strings.Cut(seg, "=")
		if !hasEq {
			// vCard 2.1 bare parameters: JPEG, BASE64, HOME.
			val = seg
			key = "TYPE"
			switch strings.ToUpper(seg) {
			case "BASE64", "B", "QUOTED-PRINTABLE", "8BIT", "7BIT":
				key = "ENCODING"
			}
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		for _, v := range splitUnquoted(val, ',') {
			v = strings.Trim(strings.TrimSpace(v), `"`)
			if v != "" {
				prop.Params[key] = append(prop.Params[key], v)
			}
		}
	}
	return prop, true
}

func indexUnquoted(s string, sep byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				return i
			}
		}
	}
	return -1
}

func splitUnquoted(s string, sep byte) []string {
	var out []string
	for {
		i := indexUnquoted(s, sep)
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i+1:]
	}
}
