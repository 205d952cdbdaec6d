// internal/matcher/matcher.go

// Package matcher implements keyword matching of job postings against a
// device's subscription list. Matching is pure and safe for concurrent use.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"jobalert-workers/internal/models"
)

// MinSubstringLen is the minimum keyword length eligible for the plain
// substring fallback. Shorter keywords require a word-boundary match so
// that e.g. "ai" does not match "maintain". Policy knob, not a law.
var MinSubstringLen = 3

// Match returns the subset of keywords that occur in the posting,
// preserving the input order. Blank keywords are ignored; duplicates in
// the input produce at most one entry in the output.
func Match(job models.JobPosting, keywords []string) []string {
	haystack := buildHaystack(job)

	var matched []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" || seen[needle] {
			continue
		}
		if matches(haystack, needle) {
			matched = append(matched, kw)
			seen[needle] = true
		}
	}
	return matched
}

func buildHaystack(job models.JobPosting) string {
	parts := []string{job.Title, job.Company, job.Source}
	if job.Description != "" {
		parts = append(parts, job.Description)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func matches(haystack, needle string) bool {
	if containsWord(haystack, needle) {
		return true
	}
	// Substring fallback only for keywords long enough to make false
	// positives unlikely.
	if len([]rune(needle)) >= MinSubstringLen {
		return strings.Contains(haystack, needle)
	}
	return false
}

// containsWord reports whether needle occurs in haystack delimited by
// non-alphanumeric runes (or the string edges) on both sides.
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		if boundaryBefore(haystack, idx) && boundaryAfter(haystack, idx+len(needle)) {
			return true
		}
		start = idx + 1
		if start >= len(haystack) {
			return false
		}
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
