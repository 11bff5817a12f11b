// Package normalize derives the canonical comparison keys used to
// deduplicate race listings across sources. All functions are total:
// empty or malformed input yields an empty (or best-effort) key, never
// an error.
package normalize

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords lists filler tokens dropped from normalized names so that
// "The Boston Annual 10K" and "Boston 10K" collide.
var stopWords = map[string]bool{
	"the": true, "annual": true, "and": true, "of": true, "a": true,
	"an": true, "for": true, "in": true, "at": true, "by": true,
}

var (
	quoteChars  = strings.NewReplacer("'", "", "‘", "", "’", "", "\"", "", "“", "", "”", "")
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace  = regexp.MustCompile(`\s+`)
	schemeRe    = regexp.MustCompile(`(?i)^https?://`)
	wwwPrefixRe = regexp.MustCompile(`(?i)^www\.`)
)

// foldDiacritics decomposes to NFD and strips combining marks so that
// accented and unaccented spellings of the same city or event collide.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// Name normalizes a race name for matching: lowercase, quotes removed,
// punctuation replaced with spaces, whitespace collapsed, stop words
// dropped. Idempotent; empty input yields empty output.
func Name(name string) string {
	n := strings.ToLower(fold(name))
	n = quoteChars.Replace(n)
	n = nonAlnumRe.ReplaceAllString(n, " ")
	n = multiSpace.ReplaceAllString(n, " ")
	n = strings.TrimSpace(n)
	if n == "" {
		return ""
	}

	tokens := strings.Split(n, " ")
	kept := tokens[:0]
	for _, tok := range tokens {
		if !stopWords[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// LocationKey builds the pipe-delimited location key. Coordinates are
// included only when both are present, each rounded to 3 decimal places
// (~111m); a keyed record with coordinates is never string-comparable to
// one without.
func LocationKey(city, state string, lat, lng *float64) string {
	c := strings.ToLower(fold(city))
	c = nonAlnumRe.ReplaceAllString(c, "")
	c = multiSpace.ReplaceAllString(c, " ")
	c = strings.TrimSpace(c)
	s := strings.ToLower(strings.TrimSpace(state))

	if lat != nil && lng != nil {
		return c + "|" + s + "|" + roundCoord(*lat) + "|" + roundCoord(*lng)
	}
	return c + "|" + s
}

// roundCoord rounds half away from zero at the 3rd decimal and always
// renders 3 decimals, so 41.0 keys as "41.000" rather than "41".
func roundCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', 3, 64)
}

// URL reduces a URL to hostname (without leading www) plus path
// (without trailing slash), lowercased. Unparsable input falls back to
// a best-effort prefix/suffix strip. Empty input yields empty output.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		host := strings.TrimPrefix(u.Hostname(), "www.")
		path := strings.TrimSuffix(u.Path, "/")
		return strings.ToLower(host + path)
	}

	// Best effort for inputs the parser rejects or that lack a scheme.
	s := schemeRe.ReplaceAllString(raw, "")
	s = wwwPrefixRe.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "/")
	return strings.ToLower(s)
}

// HashKey joins the normalized name, location key, and raw date into a
// fast exact-duplicate lookup key. Pipe is safe as a delimiter because
// normalized names and location components never contain it.
func HashKey(normalizedName, locationKey, date string) string {
	return normalizedName + "|" + locationKey + "|" + date
}
