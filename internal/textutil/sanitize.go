package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTitle is used when a media title cannot be determined or sanitizes
// to nothing.
const DefaultTitle = "audio_download"

// titleReplacer drops characters that are unsafe in file names on any
// common filesystem.
var titleReplacer = strings.NewReplacer(
	"\\", "",
	"/", "",
	":", "",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeTitle turns a media title into a file name stem by removing
// filesystem-unsafe characters. Empty results fall back to DefaultTitle.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(titleReplacer.Replace(title))
	title = strings.Trim(title, ".")
	if title == "" {
		return DefaultTitle
	}
	return title
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// TitleCase capitalizes each word of a user-supplied theme for display.
func TitleCase(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return ""
	}
	return cases.Title(language.English).String(value)
}
