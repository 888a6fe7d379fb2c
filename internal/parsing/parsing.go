package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Boilerplate stripped from decree numbers before building a join key.
var numberStopwords = []string{
	"skkni",
	"nomor",
	"no",
	"no.",
	"thn",
	"tahun",
	"kepmen",
	"keputusan",
	"menteri",
	"tenaga",
	"kerja",
	"kemnaker",
	"kementerian",
}

// Program-name phrases stripped from titles before building a join key.
// Ordered longest-first so partial phrases do not survive a longer match.
var titlePhrases = []string{
	"standar kompetensi kerja nasional indonesia",
	"standar kompetensi kerja",
	"skkni",
}

// Status annotations that listing cells append to codes and numbers.
var statusTokens = []string{
	"TIDAK BERLAKU",
	"BERLAKU",
	"DICABUT",
	"DIUBAH",
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9]+`)
	documentIDRe = regexp.MustCompile(`(?i)/documents/([^/]+)/download`)
	yearTokenRe  = regexp.MustCompile(`\d{4}`)
)

// Norm collapses all whitespace runs (including newlines) to single spaces
// and trims the result, preserving the original case.
func Norm(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Slug lowercases and reduces the value to alphanumeric runs joined by "_".
func Slug(s string) string {
	out := strings.ToLower(strings.TrimSpace(s))
	out = nonAlnumRe.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}

// CanonicalDocumentID extracts the document identifier embedded in a download
// URL of the form .../documents/<id>/download. The result is lowercased so
// repeated scrapes of the same document always yield the same key. Returns
// an empty string when the URL does not match the expected pattern.
func CanonicalDocumentID(downloadURL string) string {
	m := documentIDRe.FindStringSubmatch(strings.TrimSpace(downloadURL))
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// JoinKeyByNumber normalizes a decree number into a medium-confidence join
// key: lowercase, boilerplate stopwords removed, everything non-alphanumeric
// stripped.
func JoinKeyByNumber(text string) string {
	s := strings.ToLower(text)
	for _, w := range numberStopwords {
		s = strings.ReplaceAll(s, w, "")
	}
	return nonAlnumRe.ReplaceAllString(s, "")
}

// JoinKeyByTitle normalizes a title into the lowest-confidence join key by
// removing the standard program-name phrases and all non-alphanumerics.
func JoinKeyByTitle(text string) string {
	s := strings.ToLower(text)
	for _, p := range titlePhrases {
		s = strings.ReplaceAll(s, p, "")
	}
	return nonAlnumRe.ReplaceAllString(s, "")
}

// StripStatusTokens removes status annotations such as "BERLAKU" or
// "DICABUT" wherever they appear, matching on word boundaries
// case-insensitively while keeping the case of the surrounding text.
func StripStatusTokens(text string) string {
	out := text
	for _, tok := range statusTokens {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(tok) + `\b`)
		out = re.ReplaceAllString(out, "")
	}
	return Norm(out)
}

// StableUnitID builds a deterministic identifier for a competency unit from
// its slugified components, bounded in length. Used as an idempotent export
// key, not as the primary join key.
func StableUnitID(code, title, number string) string {
	base := strings.Trim(strings.Join([]string{Slug(code), Slug(title), Slug(number)}, "_"), "_")
	if len(base) > 120 {
		base = base[:120]
	}
	if base == "" {
		base = "row"
	}
	return "__export__.skkni_unit_" + base
}

// CleanPlaceholder maps form placeholders ("-", "Pilih ..." prompts, blanks)
// to the empty string so they never masquerade as real taxonomy values.
func CleanPlaceholder(v string) string {
	vv := strings.TrimSpace(v)
	if vv == "" || vv == "-" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(vv), "pilih ") {
		return ""
	}
	return vv
}

// ExtractYear derives a publication year from free text: the last plausible
// 4-digit token in range 1990-2100 wins, so a revision year trailing the
// decree year takes precedence. Texts are tried in order and the first one
// that yields a year decides.
func ExtractYear(texts ...string) string {
	for _, t := range texts {
		if t == "" {
			continue
		}
		tokens := yearTokenRe.FindAllString(t, -1)
		for i := len(tokens) - 1; i >= 0; i-- {
			if y, err := strconv.Atoi(tokens[i]); err == nil && y >= 1990 && y <= 2100 {
				return tokens[i]
			}
		}
	}
	return ""
}

// CoerceTime parses the loosely formatted timestamps the upstream source
// emits (ISO 8601, "YYYY-MM-DD HH:MM:SS", and friends) into UTC. Returns nil
// when the value is blank or unparseable.
func CoerceTime(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	ts, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
