package backup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedBlock marks a vCard block that never reached END:VCARD.
var ErrUnterminatedBlock = errors.New("missing END:VCARD")

// ParseError reports a malformed document structure. It aborts the run of
// the pipeline that returned it; output written before it stays on disk.
type ParseError struct {
	Path string
	// Line is 1-based; zero when the decoder could not tell.
	Line int
	// Contact is the 1-based vCard block index; zero for XML documents.
	Contact int
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Contact > 0 {
		fmt.Fprintf(&b, " contact %d", e.Contact)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeError reports an invalid base64 payload on a single record.
type DecodeError struct {
	Path string
	// Record describes the offending record, e.g. "mms 1609459200000 part 2".
	Record  string
	Contact int
	Err     error
}

func (e *DecodeError) Error() string {
	where := e.Record
	if e.Contact > 0 {
		where = fmt.Sprintf("contact %d %s", e.Contact, e.Record)
	}
	return fmt.Sprintf("decode %s %s: %v", e.Path, strings.TrimSpace(where), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MissingFieldError reports a required attribute or delimiter that is absent.
type MissingFieldError struct {
	Record string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Record, e.Field)
}
