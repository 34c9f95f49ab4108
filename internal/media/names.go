package media

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxNameBytes = 100

// FallbackName is used when nothing usable survives sanitization.
const FallbackName = "unknown"

var latinFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeName turns contact names and phone numbers into a filesystem safe
// base name. Letters and digits of any script are kept. Latin accents are
// folded ("José" -> "Jose") while other scripts keep their marks ("Иван",
// "李雷"). Everything else becomes '_', dots and separators included, so the
// result never hides a file or fakes an extension.
func SanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	// Marks are kept only after a kept non-Latin letter.
	afterScript := false
	for _, r := range norm.NFC.String(s) {
		keep := ""
		switch {
		case r < utf8.RuneSelf:
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '-' {
				keep = string(r)
			}
			afterScript = false
		case unicode.Is(unicode.Latin, r):
			keep = foldLatin(r)
			afterScript = false
		case unicode.In(r, unicode.Mn, unicode.Mc):
			if !afterScript {
				continue
			}
			keep = string(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			keep = string(r)
			afterScript = true
		default:
			afterScript = false
		}
		if keep == "" {
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if b.Len()+len(keep) > maxNameBytes {
			break
		}
		b.WriteString(keep)
		lastUnderscore = false
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return FallbackName
	}
	return out
}

// foldLatin strips the accents of a Latin letter. Compatibility forms such as
// fullwidth letters fold to ASCII; letters without a decomposition stay.
func foldLatin(r rune) string {
	folded, _, err := transform.String(latinFold, string(r))
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, f := range folded {
		if unicode.IsLetter(f) || unicode.IsDigit(f) {
			b.WriteRune(f)
		}
	}
	return b.String()
}

// Namer hands out filenames that are unique within one run. It is not safe
// for concurrent use; every pipeline run owns its own Namer.
type Namer struct {
	used map[string]bool
}

func NewNamer() *Namer {
	return &Namer{used: make(map[string]bool)}
}

// Reserve returns base.ext, or base_1.ext, base_2.ext... when earlier calls in
// this run already took the name. Comparison ignores case so that results do
// not depend on the filesystem.
func (n *Namer) Reserve(base, ext string) string {
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = base + "_" + strconv.Itoa(i)
		}
		name := join(candidate, ext)
		key := strings.ToLower(name)
		if !n.used[key] {
			n.used[key] = true
			return name
		}
	}
}

// Claim records name as taken and reports whether it was free.
func (n *Namer) Claim(name string) bool {
	key := strings.ToLower(name)
	if n.used[key] {
		return false
	}
	n.used[key] = true
	return true
}

func join(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}
