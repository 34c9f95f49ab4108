package media

import "strings"

// Kind groups MIME types the way the media filter flags do.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindVideo
	KindAudio
	KindPDF
	KindContact
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindPDF:
		return "pdf"
	case KindContact:
		return "contact"
	}
	return "none"
}

// GenericExtension is used for media whose subtype is not in the table.
const GenericExtension = "bin"

var mimeExtensions = map[string]string{
	"image/jpeg":           "jpg",
	"image/jpg":            "jpg",
	"image/pjpeg":          "jpg",
	"image/png":            "png",
	"image/gif":            "gif",
	"image/bmp":            "bmp",
	"image/x-ms-bmp":       "bmp",
	"image/webp":           "webp",
	"image/heic":           "heic",
	"image/heif":           "heif",
	"image/tiff":           "tif",
	"image/svg+xml":        "svg",
	"video/mp4":            "mp4",
	"video/3gpp":           "3gp",
	"video/3gpp2":          "3g2",
	"video/quicktime":      "mov",
	"video/webm":           "webm",
	"video/x-matroska":     "mkv",
	"video/mpeg":           "mpg",
	"audio/amr":            "amr",
	"audio/amr-wb":         "awb",
	"audio/mpeg":           "mp3",
	"audio/mp3":            "mp3",
	"audio/mp4":            "m4a",
	"audio/x-m4a":          "m4a",
	"audio/aac":            "aac",
	"audio/ogg":            "ogg",
	"audio/opus":           "opus",
	"audio/wav":            "wav",
	"audio/x-wav":          "wav",
	"audio/3gpp":           "3gp",
	"application/pdf":      "pdf",
	"text/x-vcard":         "vcf",
	"text/vcard":           "vcf",
	"application/pgp-keys": "pgp",
}

// vCard TYPE parameters that do not map one to one onto an extension.
var typeAliases = map[string]string{
	"jpeg":  "jpg",
	"tiff":  "tif",
	"mpeg":  "mpg",
	"x509":  "cer",
	"basic": "au",
	"wave":  "wav",
}

// NormalizeMIME lowercases a content type and drops its parameters.
func NormalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// KindOf classifies a content type. Parts that are not media, such as
// text/plain bodies or SMIL layouts, report KindNone.
func KindOf(mime string) Kind {
	m := NormalizeMIME(mime)
	switch {
	case strings.HasPrefix(m, "image/"):
		return KindImage
	case strings.HasPrefix(m, "video/"):
		return KindVideo
	case strings.HasPrefix(m, "audio/"):
		return KindAudio
	case m == "application/pdf":
		return KindPDF
	case m == "text/x-vcard" || m == "text/vcard":
		return KindContact
	}
	return KindNone
}

// ExtensionForMIME maps a content type to a file extension without the dot.
// ok is false when the type is not in the table; ext is then GenericExtension.
func ExtensionForMIME(mime string) (ext string, ok bool) {
	if e, found := mimeExtensions[NormalizeMIME(mime)]; found {
		return e, true
	}
	return GenericExtension, false
}

// ExtensionForType maps a vCard type parameter (JPEG, image/png, GIF) to an
// extension.
func ExtensionForType(t string) string {
	t = strings.TrimSpace(t)
	if strings.Contains(t, "/") {
		ext, _ := ExtensionForMIME(t)
		return ext
	}
	t = strings.ToLower(t)
	if a, ok := typeAliases[t]; ok {
		return a
	}
	if t == "" || strings.IndexFunc(t, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) >= 0 {
		return GenericExtension
	}
	return t
}
