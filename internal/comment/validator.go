package comment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMinLength is the minimum rune count for a sanitized comment.
	DefaultMinLength = 1

	// DefaultMaxLength is the hard truncation limit applied by Sanitize and
	// the maximum rune count accepted by Validate.
	DefaultMaxLength = 200

	// maxConsecutiveChars is the repeated-character flood threshold: a single
	// rune repeated this many times in a row marks the comment as spam.
	maxConsecutiveChars = 15

	// maxWordRepeats is how many times a word (longer than 2 runes) may
	// appear in one comment before it is treated as spam.
	maxWordRepeats = 3

	// upperRatioLimit rejects shouty messages: comments longer than 10 runes
	// where more than 70% of the letters are uppercase.
	upperRatioLimit = 0.7

	// foreignRatioLimit rejects messages where more than half the runes fall
	// outside the allow-list (ASCII alphanumerics, whitespace, CJK, Hangul).
	foreignRatioLimit = 0.5
)

var (
	// htmlTagPattern matches HTML-tag-like substrings so markup never reaches
	// the overlay renderer.
	htmlTagPattern = regexp.MustCompile(`<[^<>]*>`)

	// whitespaceRunPattern matches runs of 3 or more whitespace characters,
	// which Sanitize collapses to a single space.
	whitespaceRunPattern = regexp.MustCompile(`\s{3,}`)
)

// ValidationResult carries the outcome of Validate with every violated rule,
// so a client can correct its input in one round trip.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validator sanitizes and structurally validates comment text. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	minLength   int
	maxLength   int
	bannedWords []string // lowercased
}

// NewValidator creates a Validator with the default length limits and the
// given banned-word list. Words are matched case-insensitively as substrings.
func NewValidator(bannedWords []string) *Validator {
	lowered := make([]string, 0, len(bannedWords))
	for _, w := range bannedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Validator{
		minLength:   DefaultMinLength,
		maxLength:   DefaultMaxLength,
		bannedWords: lowered,
	}
}

// Sanitize normalizes raw comment text: HTML-tag-like substrings are
// stripped, runs of 3+ whitespace collapse to one space, the result is
// trimmed and hard-truncated to the maximum length. Sanitize is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x).
func (v *Validator) Sanitize(text string) string {
	// Stripping a tag can expose a new one (e.g. "<<b>>" leaves "<>"), so
	// repeat until the text stops changing.
	for {
		stripped := htmlTagPattern.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}
	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > v.maxLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:v.maxLength]))
	}
	return text
}

// Validate checks sanitized text against the content rules. Every violated
// rule contributes one entry to Errors; the checks do not short-circuit.
func (v *Validator) Validate(text string) ValidationResult {
	var errs []string

	if strings.TrimSpace(text) == "" {
		return ValidationResult{Valid: false, Errors: []string{"comment is empty"}}
	}

	length := utf8.RuneCountInString(text)
	if length < v.minLength {
		errs = append(errs, fmt.Sprintf("comment shorter than %d characters", v.minLength))
	}
	if length > v.maxLength {
		errs = append(errs, fmt.Sprintf("comment exceeds %d characters", v.maxLength))
	}

	lower := strings.ToLower(text)
	for _, w := range v.bannedWords {
		if strings.Contains(lower, w) {
			errs = append(errs, fmt.Sprintf("contains banned word %q", w))
			break
		}
	}

	errs = append(errs, spamHeuristics(text)...)

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// spamHeuristics applies the structural spam rules to text and returns one
// message per triggered rule.
func spamHeuristics(text string) []string {
	var errs []string

	if hasConsecutiveRun(text, maxConsecutiveChars) {
		errs = append(errs, "repeated character flood")
	}
	if hasRepeatedWord(text, maxWordRepeats) {
		errs = append(errs, "repeated word flood")
	}
	if isMostlyUppercase(text) {
		errs = append(errs, "excessive uppercase")
	}
	if isMostlyForeign(text) {
		errs = append(errs, "too many unsupported characters")
	}
	return errs
}

// hasConsecutiveRun reports whether any rune repeats at least threshold times
// in a row. RE2 has no backreferences, so this is a linear scan.
func hasConsecutiveRun(text string, threshold int) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasRepeatedWord reports whether any word longer than 2 runes appears more
// than maxRepeats times anywhere in the text (case-insensitive, not
// necessarily consecutively).
func hasRepeatedWord(text string, maxRepeats int) bool {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		counts[w]++
		if counts[w] > maxRepeats {
			return true
		}
	}
	return false
}

// isMostlyUppercase reports whether more than 70% of the letters are
// uppercase, on messages longer than 10 runes. Short exclamations are left
// alone.
func isMostlyUppercase(text string) bool {
	if utf8.RuneCountInString(text) <= 10 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > upperRatioLimit
}

// isMostlyForeign reports whether more than half of the runes fall outside
// the allow-list of ASCII alphanumerics, whitespace, and the CJK/Hangul
// blocks used by the platform's audience.
func isMostlyForeign(text string) bool {
	total, outside := 0, 0
	for _, r := range text {
		total++
		if !isAllowedRune(r) {
			outside++
		}
	}
	if total == 0 {
		return false
	}
	return float64(outside)/float64(total) > foreignRatioLimit
}

// isAllowedRune reports whether r belongs to the display allow-list.
func isAllowedRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case unicode.IsSpace(r):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0x3040 && r <= 0x309F: // hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // katakana
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // halfwidth/fullwidth forms
		return true
	}
	return false
}
