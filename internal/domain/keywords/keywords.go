// Package keywords turns free-text entity descriptions into comparable term sets.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

const (
	minFragmentLen    = 3 // fragments shorter than this are noise
	minSignificantLen = 6 // words must be longer than 5 characters to count on their own
)

// vocabulary is the curated list of domain terms. A term matches when it
// occurs anywhere in the normalized text, so terms must be long enough not
// to hit unrelated words.
var vocabulary = []string{
	// finance / defi
	"defi", "lending", "borrowing", "staking", "yield", "liquidity", "trading",
	"exchange", "swap", "payments", "stablecoin", "custody", "wallet",
	"tokenization", "settlement", "treasury", "collateral", "derivatives",
	// infrastructure
	"infrastructure", "validator", "node", "oracle", "bridge",
	"interoperability", "scalability", "privacy", "security",
	// compliance
	"identity", "compliance", "kyc", "regulatory", "audit", "governance",
	// data / analytics
	"data", "analytics", "indexing", "monitoring", "reporting",
}

var stopwords = map[string]struct{}{
	"about": {}, "their": {}, "there": {}, "these": {}, "those": {},
	"which": {}, "would": {}, "could": {}, "should": {}, "other": {},
	"being": {}, "where": {}, "while": {}, "after": {}, "before": {},
	"through": {}, "between": {}, "because": {}, "within": {}, "without": {},
	"across": {}, "around": {}, "always": {}, "anyone": {}, "everyone": {},
	"provide": {}, "provides": {}, "providing": {}, "platform": {},
	"company": {}, "service": {}, "services": {}, "solution": {},
	"solutions": {}, "including": {}, "people": {}, "canton": {}, "network": {},
}

var nonWord = regexp.MustCompile(`\W+`)

// Set is a set of extracted terms.
type Set map[string]struct{}

// Has reports whether term is in the set.
func (s Set) Has(term string) bool {
	_, ok := s[term]
	return ok
}

// Overlap returns the number of terms present in both sets.
func (s Set) Overlap(other Set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for term := range small {
		if large.Has(term) {
			n++
		}
	}
	return n
}

// Sorted returns the terms in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for term := range s {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Extract returns the vocabulary terms found in text together with every
// other significant word (longer than 5 characters, not a stopword).
// Empty text yields an empty set.
func Extract(text string) Set {
	out := make(Set)
	normalized := strings.ToLower(text)
	if strings.TrimSpace(normalized) == "" {
		return out
	}

	for _, term := range vocabulary {
		if strings.Contains(normalized, term) {
			out[term] = struct{}{}
		}
	}

	for _, word := range nonWord.Split(normalized, -1) {
		if len(word) < minFragmentLen {
			continue
		}
		if len(word) < minSignificantLen {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		out[word] = struct{}{}
	}
	return out
}
