package searchindex

import "strings"

// snippet window on each side of the first matched term, in runes
const snippetContext = 60

// Snippet builds a short excerpt of text around the first query term, with
// matched terms wrapped in square brackets. An empty string means no term
// matched; callers fall back to a plain prefix.
func Snippet(text, query string) string {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))

	start, end := -1, -1
	for _, term := range terms {
		if s := indexRunes(lower, []rune(term)); s >= 0 {
			start, end = s, s+len([]rune(term))
			break
		}
	}
	if start < 0 {
		return ""
	}

	lo := start - snippetContext
	if lo < 0 {
		lo = 0
	}
	hi := end + snippetContext
	if hi > len(runes) {
		hi = len(runes)
	}

	var b strings.Builder
	if lo > 0 {
		b.WriteString("…")
	}
	b.WriteString(bracketTerms(string(runes[lo:hi]), terms))
	if hi < len(runes) {
		b.WriteString("…")
	}
	return b.String()
}

// bracketTerms wraps every case-insensitive occurrence of each term in
// square brackets, preserving the original casing of the window.
func bracketTerms(window string, terms []string) string {
	runes := []rune(window)
	lower := []rune(strings.ToLower(window))

	type span struct{ from, to int }
	var spans []span
	for _, term := range terms {
		t := []rune(term)
		for at := 0; at+len(t) <= len(lower); {
			s := indexRunes(lower[at:], t)
			if s < 0 {
				break
			}
			spans = append(spans, span{at + s, at + s + len(t)})
			at += s + len(t)
		}
	}
	if len(spans) == 0 {
		return window
	}
	opens := make([]bool, len(runes)+1)
	closes := make([]bool, len(runes)+1)
	for _, sp := range spans {
		opens[sp.from] = true
		closes[sp.to] = true
	}

	var b strings.Builder
	for i := 0; i <= len(runes); i++ {
		if closes[i] {
			b.WriteRune(']')
		}
		if opens[i] {
			b.WriteRune('[')
		}
		if i < len(runes) {
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
