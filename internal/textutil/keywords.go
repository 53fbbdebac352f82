package textutil

import "sort"

// keywordStopwords holds common English function words that carry no search
// value. Tokenize already drops tokens shorter than three characters, so only
// longer function words need listing.
var keywordStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"was": {}, "were": {}, "has": {}, "have": {}, "had": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "with": {}, "from": {}, "into": {},
	"onto": {}, "over": {}, "under": {}, "your": {}, "you": {}, "our": {},
	"their": {}, "they": {}, "them": {}, "its": {}, "his": {}, "her": {},
	"she": {}, "him": {}, "who": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "can": {}, "may": {}, "might": {}, "been": {}, "being": {},
	"how": {}, "why": {}, "all": {}, "each": {}, "every": {}, "some": {},
	"any": {}, "also": {}, "just": {}, "than": {}, "then": {}, "there": {},
	"here": {}, "out": {}, "about": {}, "above": {}, "below": {},
	"between": {}, "through": {}, "during": {}, "before": {}, "after": {},
	"again": {}, "once": {}, "very": {}, "too": {}, "most": {}, "more": {},
	"other": {}, "such": {}, "only": {}, "own": {}, "same": {}, "now": {},
	"like": {}, "one": {}, "two": {},
}

// Keywords extracts up to limit search keywords from text, most frequent
// first. Ties break toward earlier first appearance so identical input always
// yields the same result.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	firstSeen := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for i, token := range tokens {
		if _, skip := keywordStopwords[token]; skip {
			continue
		}
		if _, seen := counts[token]; !seen {
			firstSeen[token] = i
			order = append(order, token)
		}
		counts[token]++
	}
	if len(order) == 0 {
		return nil
	}
	sort.SliceStable(order, func(a, b int) bool {
		if counts[order[a]] != counts[order[b]] {
			return counts[order[a]] > counts[order[b]]
		}
		return firstSeen[order[a]] < firstSeen[order[b]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
