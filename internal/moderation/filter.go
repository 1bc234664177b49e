// Package moderation screens incoming comments before they reach the
// overlay: banned-word containment, structural spam patterns, and
// near-duplicate detection against each user's recent messages.
package moderation

import "strings"

// defaultBannedTerms seeds the filter when no custom list is configured.
// Deployments replace this with their own list via NewFilterWithTerms.
var defaultBannedTerms = []string{
	"kill yourself",
	"kys",
	"go die",
	"doxx",
}

// FilterResult reports a banned-term match.
type FilterResult struct {
	Blocked bool
	Term    string // the matched term, lowercased
}

// Filter performs case-insensitive substring matching against a configured
// term set. It is immutable after construction and safe for concurrent use.
type Filter struct {
	terms []string // lowercased
}

// NewFilter creates a Filter with the default term list.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultBannedTerms)
}

// NewFilterWithTerms creates a Filter from an explicit term list. Empty
// terms are dropped; the rest are lowercased.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.terms = append(f.terms, t)
		}
	}
	return f
}

// Check scans text for any configured term. Matching is plain substring
// containment: "badword" inside "xbadwordx" still blocks, which is the
// deliberate trade-off for evasion resistance on a fast chat path.
func (f *Filter) Check(text string) FilterResult {
	lower := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			return FilterResult{Blocked: true, Term: term}
		}
	}
	return FilterResult{}
}
