package moderation

import "regexp"

// Compiled once at package init and reused for every call, so the checks are
// safe and cheap under concurrent moderation traffic.
var (
	// urlPattern matches http/https URLs, www. URLs, and bare domains with a
	// path. The bare-domain variant requires a trailing "/" to avoid false
	// positives on version strings like "v2.0".
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|tv|gg|ru|cn|tk|ml)/\S*)`)

	// invitePattern matches chat-invite link formats even without a scheme.
	invitePattern = regexp.MustCompile(`(?i)(discord\.(gg|com/invite)/\S+|t\.me/\S+|chat\.whatsapp\.com/\S+|line\.me/\S+)`)

	// emailPattern matches bare email addresses.
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// capsRunPattern matches 20+ consecutive uppercase letters.
	capsRunPattern = regexp.MustCompile(`[A-Z]{20,}`)

	// digitRunPattern matches 10+ consecutive digits (phone numbers, QQ ids).
	digitRunPattern = regexp.MustCompile(`\d{10,}`)
)

// repeatedCharThreshold is the consecutive identical character count that
// marks a message as flooding. Stricter than the validator's structural
// limit; moderation catches it first and records a violation.
const repeatedCharThreshold = 11

// spamCheck pairs a detection function with the name reported on a match.
type spamCheck struct {
	name  string
	match func(string) bool
}

// spamChecks is the ordered check list; the first match wins. Invite links
// are tested before the generic URL pattern so they report their own name.
var spamChecks = []spamCheck{
	{name: "invite_link", match: invitePattern.MatchString},
	{name: "url", match: urlPattern.MatchString},
	{name: "email", match: emailPattern.MatchString},
	{name: "char_flood", match: hasRepeatedChars},
	{name: "caps_run", match: capsRunPattern.MatchString},
	{name: "digit_run", match: digitRunPattern.MatchString},
}

// hasRepeatedChars reports whether any rune repeats repeatedCharThreshold or
// more times consecutively. RE2 has no backreferences, so this is a linear
// scan.
func hasRepeatedChars(text string) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= repeatedCharThreshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// checkSpamPatterns runs every spam check against text and returns the name
// of the first matching pattern, or "" when the text is clean.
func checkSpamPatterns(text string) string {
	for _, sc := range spamChecks {
		if sc.match(text) {
			return sc.name
		}
	}
	return ""
}
