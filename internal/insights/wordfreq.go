package insights

import (
	"sort"
	"strings"
	"unicode"
)

// TopWords is the number of terms returned by [WordFrequencies].
const TopWords = 20

// minTokenLength filters out short function words ("a", "to", "is") that
// survive the stop-word list.
const minTokenLength = 3

// stopWords are common English words excluded from the word cloud. The set is
// fixed so the computation stays deterministic across releases.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "have": {}, "for": {}, "not": {},
	"with": {}, "you": {}, "this": {}, "but": {}, "his": {}, "her": {},
	"they": {}, "she": {}, "him": {}, "from": {}, "say": {}, "said": {},
	"will": {}, "one": {}, "all": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "out": {}, "about": {}, "who": {}, "get": {}, "which": {},
	"when": {}, "can": {}, "like": {}, "just": {}, "know": {}, "take": {},
	"into": {}, "your": {}, "some": {}, "could": {}, "them": {}, "than": {},
	"then": {}, "now": {}, "only": {}, "its": {}, "also": {}, "well": {},
	"because": {}, "very": {}, "been": {}, "had": {}, "has": {}, "was": {},
	"were": {}, "are": {}, "yeah": {}, "okay": {}, "really": {}, "think": {},
	"going": {}, "dont": {}, "thats": {}, "youre": {},
}

// WordFrequencies computes the word cloud for a transcript: lowercase,
// punctuation stripped, stop words and tokens shorter than three characters
// removed, remaining tokens counted, sorted by descending frequency with ties
// broken by first occurrence, truncated to [TopWords].
//
// The computation is local and fully deterministic — identical input always
// yields an identical list, independent of when or how often it runs.
func WordFrequencies(text string) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	order := 0
	for _, raw := range strings.Fields(text) {
		word := normalizeToken(raw)
		if len(word) < minTokenLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, seen := counts[word]; !seen {
			firstSeen[word] = order
			order++
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if len(words) > TopWords {
		words = words[:TopWords]
	}
	return words
}

// normalizeToken lowercases a raw token and strips every non-letter rune.
// Apostrophes vanish too, so "don't" and "dont" count as the same word.
func normalizeToken(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
