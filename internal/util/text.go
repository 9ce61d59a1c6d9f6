package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	wordRun    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// DefaultStopWords are bio words that say nothing about a person's interests.
var DefaultStopWords = []string{
	"i", "am", "a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could", "should",
	"and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"love", "loves", "like", "likes", "enjoy", "enjoys",
	"who", "what", "where", "when", "why", "how",
}

// minKeywordLen drops tokens of this length or shorter.
const minKeywordLen = 2

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// StopSet builds a lookup set from a stop-word list.
func StopSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return out
}

// NormalizeInterests splits a comma list into lowercase, trimmed, non-empty tags.
// "Photography, Travel, " -> {photography, travel}
func NormalizeInterests(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" {
			continue
		}
		out[tag] = struct{}{}
	}
	return out
}

// ExtractBioKeywords lowercases text, takes maximal runs of word characters and
// keeps those longer than two characters that are not in stop.
func ExtractBioKeywords(raw string, stop map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range Tokenize(raw) {
		if utf8.RuneCountInString(tok) <= minKeywordLen {
			continue
		}
		if _, skip := stop[tok]; skip {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Tokenize lowercases s and returns its word-character runs in order.
func Tokenize(s string) []string {
	return wordRun.FindAllString(strings.ToLower(s), -1)
}
