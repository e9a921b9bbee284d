// Package normalize canonicalizes raw patient field values into comparable
// forms. Every normalizer is total and idempotent: re-applying it to its own
// output is a no-op, and a value that cannot be parsed becomes absent rather
// than failing the record.
package normalize

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Normalizer is a function that normalizes a string value. An empty result
// marks the field as absent.
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("digits_only", DigitsOnly)
	Register("alnum_upper", AlnumUpper)
	Register("nname", NormalizeName)
	Register("nemail", NormalizeEmail)
	Register("ndate", NormalizeDate)
	Register("nphone", NormalizePhone)
	Register("npostcode", NormalizePostcode)
	Register("nstate", NormalizeState)
	Register("naddress", NormalizeAddress)
	Register("nblood", NormalizeBloodType)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Apply applies a named normalizer to a value. Unknown names pass the value
// through unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// DigitsOnly keeps only digit characters. Used for Medicare numbers, phone
// numbers and health fund membership numbers.
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// AlnumUpper keeps only alphanumeric characters, uppercased. Used for
// medical record numbers.
func AlnumUpper(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToUpper(r))
		}
	}
	return result.String()
}

// NormalizePhone keeps only digits of a phone number.
func NormalizePhone(s string) string {
	return DigitsOnly(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName normalizes a person's name for matching:
// lowercase, common suffixes removed, punctuation stripped,
// whitespace collapsed.
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	suffixes := []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md", " dds"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// dateLayouts are tried in order. ISO first so already-normalized values
// round-trip; the rest are day-first Australian formats.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
	"02.01.2006",
}

// NormalizeDate parses a date in any supported layout and renders it as ISO
// 2006-01-02. Unparseable values become absent.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// NormalizePostcode normalizes an Australian postcode (4 digits).
func NormalizePostcode(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 4 {
		return digits
	}
	return ""
}

// australianStates maps full state names to their abbreviations.
var australianStates = map[string]string{
	"new south wales":              "NSW",
	"victoria":                     "VIC",
	"queensland":                   "QLD",
	"south australia":              "SA",
	"western australia":            "WA",
	"tasmania":                     "TAS",
	"northern territory":           "NT",
	"australian capital territory": "ACT",
}

// NormalizeState canonicalizes an Australian state to its abbreviation.
func NormalizeState(s string) string {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if abbr, ok := australianStates[trimmed]; ok {
		return abbr
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

var addressSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeAddress normalizes an address or suburb string.
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)

	replacements := map[string]string{
		" street":    " st",
		" avenue":    " ave",
		" boulevard": " blvd",
		" drive":     " dr",
		" road":      " rd",
		" lane":      " ln",
		" court":     " ct",
		" circuit":   " cct",
		" place":     " pl",
		" parade":    " pde",
		" crescent":  " cres",
		" highway":   " hwy",
		" terrace":   " tce",
		" unit":      " u",
		" apartment": " apt",
	}

	for full, abbr := range replacements {
		s = strings.ReplaceAll(s, full, abbr)
	}

	s = addressSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeBloodType uppercases and strips whitespace, e.g. "o +" -> "O+".
func NormalizeBloodType(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(unicode.ToUpper(r))
		}
	}
	return result.String()
}
