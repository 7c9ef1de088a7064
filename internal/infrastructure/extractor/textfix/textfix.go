package textfix

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var (
	escapeRun    = regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2})+`)
	nonASCIIRun  = regexp.MustCompile(`[^\x00-\x7F]+`)
	mojibakeHint = regexp.MustCompile(`[ÃÂ][\x{0080}-\x{00BF}\x{0152}\x{0153}\x{0160}\x{0161}\x{0178}\x{017D}\x{017E}\x{0192}\x{02C6}\x{02DC}\x{2013}-\x{203A}\x{20AC}\x{2122}]`)
)

// Fix repairs literal \xHH escapes and UTF-8 text that was decoded as
// Latin-1 or Windows-1252. Fix(Fix(s)) == Fix(s).
func Fix(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, `\x`) {
		s = escapeRun.ReplaceAllStringFunc(s, decodeEscapes)
	}
	if mojibakeHint.MatchString(s) {
		s = nonASCIIRun.ReplaceAllStringFunc(s, reencode)
	}
	return s
}

// DecodeBytes returns UTF-8 text, falling back to Latin-1 for invalid input.
func DecodeBytes(b []byte) string {
	b = trimBOM(b)
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// Repairer exposes Fix to callers that take a repair port.
type Repairer struct{}

func (Repairer) Repair(s string) string {
	return Fix(s)
}

func decodeEscapes(run string) string {
	raw, err := hex.DecodeString(strings.ReplaceAll(run, `\x`, ""))
	if err != nil {
		return run
	}
	return DecodeBytes(raw)
}

func reencode(run string) string {
	for _, enc := range []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1} {
		raw, err := enc.NewEncoder().String(run)
		if err != nil {
			continue
		}
		if utf8.ValidString(raw) && raw != run {
			return raw
		}
	}
	return run
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
