package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
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
	out := collapseUnderscores(strings.Trim(b.String(), "_-"))
	if out == "" {
		return "unknown"
	}
	return out
}

// FileStem turns a free-form label such as a print job's file name into a
// short ASCII stem for artifact names: the extension is dropped, accents are
// folded ("Bénchy" becomes "benchy"), and the result goes through
// SanitizeToken. Empty labels yield "".
func FileStem(label string, maxLen int) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if dot := strings.LastIndex(label, "."); dot > 0 && len(label)-dot <= 7 {
		label = label[:dot]
	}
	folded, _, err := transform.String(accentFolder(), label)
	if err != nil {
		folded = label
	}
	stem := SanitizeToken(cases.Lower(language.Und).String(folded))
	if stem == "unknown" {
		return ""
	}
	if maxLen > 0 && len(stem) > maxLen {
		stem = strings.TrimRight(stem[:maxLen], "_-")
	}
	return stem
}

func accentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func collapseUnderscores(value string) string {
	for strings.Contains(value, "__") {
		value = strings.ReplaceAll(value, "__", "_")
	}
	return value
}
