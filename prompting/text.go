package prompting

import (
	"sort"
	"strings"
)

// Stop words to filter out when counting keywords
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "your": true, "our": true, "we": true, "or": true,
	"more": true, "about": true, "what": true, "how": true, "can": true,
	"will": true, "all": true, "they": true, "their": true, "into": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}|/&*"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// Keywords returns the n most frequent words of text longer than three
// letters, ties broken alphabetically.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range tokenizeAndFilter(text) {
		if len([]rune(w)) > 3 {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] == counts[words[j]] {
			return words[i] < words[j]
		}
		return counts[words[i]] > counts[words[j]]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}
