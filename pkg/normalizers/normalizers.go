// Package normalizers provides field normalization functions for bibliographic matching
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("nidentifier", NormalizeIdentifier)
	Register("nplace", NormalizePlace)
	Register("npublisher", NormalizePublisher)
	Register("nname", NormalizeName)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
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

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var (
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	allZeroRe       = regexp.MustCompile(`^0+$`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// NormalizeIdentifier normalizes an external identifier value for lookup.
// Trailing parenthetical annotations such as "(print)" or "(ebook)" are
// stripped. Returns "" for placeholder values (empty, all-zero) so callers
// can drop them.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	for parentheticalRe.MatchString(s) {
		s = parentheticalRe.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(strings.Trim(s, ".,;:"))
	if s == "" {
		return ""
	}
	bare := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if bare == "" || allZeroRe.MatchString(bare) {
		return ""
	}
	return strings.ToLower(s)
}

// placeBoilerplate are cataloging phrases that carry no geographic signal.
var placeBoilerplate = []string{
	"place of publication not identified",
	"publisher not identified",
	"no place",
}

// placeAbbreviations are whole-value cataloging stand-ins ("s.l." = sine loco).
var placeAbbreviations = map[string]struct{}{
	"sl": {},
	"sn": {},
}

// NormalizePlace lower-cases a publication place and removes punctuation and
// cataloging boilerplate.
func NormalizePlace(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, phrase := range placeBoilerplate {
		s = strings.ReplaceAll(s, phrase, "")
	}
	s = RemovePunctuation(s)
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if _, ok := placeAbbreviations[s]; ok {
		return ""
	}
	return s
}

// NormalizePublisher lower-cases a publisher name and removes punctuation.
func NormalizePublisher(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = RemovePunctuation(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// NormalizeName normalizes a contributor name for fuzzy comparison
// - Lowercase
// - Remove extra whitespace
// - Remove punctuation
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) || r == ',' {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
