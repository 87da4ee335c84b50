// Package concepts extracts short keyword and phrase concepts from note text.
//
// Extraction is pure and deterministic. Latin/alphanumeric words and
// ideographic n-grams are scored into a single weight table, ranked, and
// pruned so that longer phrases win over the fragments they contain.
package concepts

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxConcepts caps the number of concepts returned by Extract.
	MaxConcepts = 40
	// SharedLimit is the display cap for shared concepts between two notes.
	SharedLimit = 6

	termWeight     = 6
	minTermLen     = 3
	ideographCap   = 900
	minPhraseRunes = 2
	maxPhraseRunes = 6
)

// phraseWeight maps phrase length (in runes) to its weight.
var phraseWeight = [maxPhraseRunes + 1]int{0, 0, 1, 3, 5, 7, 8}

// weights accumulates candidate weights while remembering first-seen order.
type weights struct {
	score map[string]int
	order []string
}

func newWeights() *weights {
	return &weights{score: make(map[string]int)}
}

func (w *weights) add(term string, n int) {
	if _, ok := w.score[term]; !ok {
		w.order = append(w.order, term)
	}
	w.score[term] += n
}

// Extract returns the ranked concepts of text. Ties in weight keep the order
// in which candidates were first seen: words before ideographic phrases, and
// text order within each group.
func Extract(text string) []string {
	out := []string{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	w := newWeights()
	for _, term := range latinTerms(text) {
		w.add(term, termWeight)
	}
	for _, phrase := range ideographPhrases(text) {
		w.add(phrase, phraseWeight[utf8.RuneCountInString(phrase)])
	}

	ranked := make([]string, len(w.order))
	copy(ranked, w.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return w.score[ranked[i]] > w.score[ranked[j]]
	})

	for _, cand := range ranked {
		if len(out) == MaxConcepts {
			break
		}
		if containedIn(cand, out) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// containedIn reports whether cand is a substring of a kept concept at least as long.
func containedIn(cand string, kept []string) bool {
	n := utf8.RuneCountInString(cand)
	for _, k := range kept {
		if utf8.RuneCountInString(k) >= n && strings.Contains(k, cand) {
			return true
		}
	}
	return false
}

func latinTerms(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case isDash(r):
			b.WriteRune('-')
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '-':
			b.WriteRune(r)
		}
	}

	fields := strings.FieldsFunc(b.String(), func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})

	var out []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTermLen {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		if allRunes(f, unicode.IsDigit) || allRunes(f, isIdeograph) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func ideographPhrases(text string) []string {
	runes := make([]rune, 0, len(text)/3)
	for _, r := range text {
		if isIdeograph(r) {
			runes = append(runes, r)
			if len(runes) == ideographCap {
				break
			}
		}
	}

	var out []string
	for i := range runes {
		for n := minPhraseRunes; n <= maxPhraseRunes && i+n <= len(runes); n++ {
			gram := runes[i : i+n]
			if keepPhrase(gram) {
				out = append(out, string(gram))
			}
		}
	}
	return out
}

func keepPhrase(gram []rune) bool {
	if gram[0] == commonFunctionChar || gram[len(gram)-1] == commonFunctionChar {
		return false
	}
	repeated := true
	for _, r := range gram {
		if _, stop := ideographStopChars[r]; stop {
			return false
		}
		if r != gram[0] {
			repeated = false
		}
	}
	if repeated {
		return false
	}
	_, stop := ideographStopPhrases[string(gram)]
	return !stop
}

func isIdeograph(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func isDash(r rune) bool {
	switch r {
	case '‐', '‑', '‒', '–', '—', '―', '−', '﹘', '﹣', '－':
		return true
	}
	return false
}

func allRunes(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return s != ""
}

// Shared returns the concepts of related that also appear in source, in
// related's order, capped to limit.
func Shared(source, related []string, limit int) []string {
	out := []string{}
	if limit <= 0 || len(source) == 0 {
		return out
	}
	set := make(map[string]struct{}, len(source))
	for _, c := range source {
		set[c] = struct{}{}
	}
	for _, c := range related {
		if _, ok := set[c]; !ok {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
