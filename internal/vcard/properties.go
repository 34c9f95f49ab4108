package vcard

import (
	"io"
	"mime/quotedprintable"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/smsbackup/internal/backup"
	"github.com/hyperifyio/smsbackup/internal/media"
)

// Media is an embedded or referenced PHOTO, LOGO, SOUND or KEY value.
type Media struct {
	Property string
	// Type is the TYPE parameter, e.g. JPEG or image/png.
	Type string
	// MIME comes from MEDIATYPE or a data: URI.
	MIME string
	Data string
	URL  string
	Line int

	base64  bool
	dataURI bool
}

// Extension picks a file extension from Type, then MIME. It returns
// media.GenericExtension when neither says anything useful.
func (m Media) Extension() string {
	if m.Type != "" {
		if ext := media.ExtensionForType(m.Type); ext != media.GenericExtension {
			return ext
		}
	}
	if m.MIME != "" {
		ext, _ := media.ExtensionForMIME(m.MIME)
		return ext
	}
	return media.GenericExtension
}

// Bytes decodes the inline payload.
func (m Media) Bytes() ([]byte, error) {
	switch {
	case m.base64:
		return backup.DecodeBase64(m.Data)
	case m.dataURI:
		s, err := url.PathUnescape(m.Data)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return []byte(m.Data), nil
}

type propertyHandler func(c *Contact, p Property)

var handlers = map[string]propertyHandler{
	"VERSION": func(c *Contact, p Property) { c.Version = strings.TrimSpace(p.Value) },
	"FN":      func(c *Contact, p Property) { c.FormattedName = unescapeText(textValue(p)) },
	"N":       parseName,
	"UID":     func(c *Contact, p Property) { c.UID = strings.TrimSpace(p.Value) },
	"PHOTO":   parseMedia,
	"LOGO":    parseMedia,
	"SOUND":   parseMedia,
	"KEY":     parseMedia,
}

// parseName fills the structured name: family;given;additional;prefix;suffix.
func parseName(c *Contact, p Property) {
	c.Name = c.Name[:0]
	for _, comp := range splitEscaped(textValue(p), ';') {
		c.Name = append(c.Name, unescapeText(comp))
	}
}

func parseMedia(c *Contact, p Property) {
	v := strings.TrimSpace(p.Value)
	m := Media{Property: p.Name, Type: p.Param("TYPE"), MIME: p.Param("MEDIATYPE"), Line: p.Line}
	enc := strings.ToUpper(p.Param("ENCODING"))

	switch {
	case strings.HasPrefix(strings.ToLower(v), "data:"):
		meta, payload, _ := strings.Cut(v[len("data:"):], ",")
		params := strings.Split(meta, ";")
		if params[0] != "" {
			m.MIME = params[0]
		}
		m.dataURI = true
		for _, prm := range params[1:] {
			if strings.EqualFold(prm, "base64") {
				m.base64 = true
			}
		}
		m.Data = payload
	case enc == "B" || enc == "BASE64":
		m.base64 = true
		m.Data = v
	case strings.EqualFold(p.Param("VALUE"), "uri") || strings.EqualFold(p.Param("VALUE"), "url") || strings.Contains(v, "://"):
		m.URL = v
	case p.Name == "KEY" && strings.EqualFold(p.Param("VALUE"), "text"):
		m.Data = v
	default:
		// Some exporters drop the ENCODING parameter on base64 photos.
		m.base64 = true
		m.Data = v
	}
	c.Media = append(c.Media, m)
}

// textValue undoes vCard 2.1 QUOTED-PRINTABLE and CHARSET parameters.
// Values that fail to decode are returned unchanged.
func textValue(p Property) string {
	v := p.Value
	if strings.EqualFold(p.Param("ENCODING"), "QUOTED-PRINTABLE") {
		b, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(v)))
		if err != nil {
			log.Debug().Err(err).Int("line", p.Line).Str("property", p.Name).Msg("quoted-printable value kept as is")
		} else {
			v = string(b)
		}
	}
	if cs := p.Param("CHARSET"); cs != "" && !strings.EqualFold(cs, "utf-8") {
		enc, name := charset.Lookup(cs)
		if enc == nil {
			log.Debug().Str("charset", cs).Int("line", p.Line).Msg("unknown charset")
			return v
		}
		s, err := enc.NewDecoder().String(v)
		if err != nil {
			log.Debug().Err(err).Str("charset", name).Int("line", p.Line).Msg("charset decode failed")
			return v
		}
		v = s
	}
	return v
}

// splitEscaped splits on sep unless it is preceded by a backslash. Escapes
// are kept for unescapeText.
func splitEscaped(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
