package geo

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 80

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	asciiFolder  = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// foldASCII strips accents and diacritics the way Python's
// unicodedata.normalize("NFKD", s).encode("ascii", "ignore") does, via
// Unicode NFKD decomposition followed by removal of combining marks.
func foldASCII(s string) string {
	folded, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// GenerateSlug builds a URL-safe slug from a location name, suffixing
// non-Zimbabwe locations with their country code to avoid cross-country
// collisions (e.g. "gaborone" vs "gaborone-bw").
func GenerateSlug(name, country string) string {
	slug := slugify(name)
	if country != "" && strings.ToUpper(country) != "ZW" {
		slug = slug + "-" + strings.ToLower(country)
	}
	return capLen(slug, maxSlugLen)
}

// GenerateProvinceSlug builds a URL-safe slug for a province, always
// suffixed with its country code since province names are not unique
// across countries.
func GenerateProvinceSlug(province, country string) string {
	slug := slugify(province) + "-" + strings.ToLower(country)
	return capLen(slug, maxSlugLen)
}

func slugify(s string) string {
	folded := strings.ToLower(foldASCII(s))
	dashed := nonSlugChars.ReplaceAllString(folded, "-")
	return strings.Trim(dashed, "-")
}

func capLen(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
