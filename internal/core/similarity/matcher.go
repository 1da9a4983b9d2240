package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/agenthands/examina/internal/core/common"
)

// Tokens shorter than this never match fuzzily.
const minFuzzyLen = 6

type phrase []string

type compiledPair struct {
	a, b phrase
}

func compilePairs(pairs []TermPair) []compiledPair {
	out := make([]compiledPair, 0, len(pairs))
	for _, p := range pairs {
		a, b := common.Tokens(p.A), common.Tokens(p.B)
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		out = append(out, compiledPair{a: a, b: b})
	}
	return out
}

// containsPhrase reports whether p occurs as a contiguous run of whole tokens.
// With fuzzy set, long tokens may differ by one edit (plural forms, missing accents).
func containsPhrase(tokens []string, p phrase, fuzzy bool) bool {
	if len(p) == 0 || len(p) > len(tokens) {
		return false
	}
	for i := 0; i+len(p) <= len(tokens); i++ {
		matched := true
		for k, w := range p {
			if !tokenEqual(tokens[i+k], w, fuzzy) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func tokenEqual(t, w string, fuzzy bool) bool {
	if t == w {
		return true
	}
	if !fuzzy || utf8.RuneCountInString(t) < minFuzzyLen || utf8.RuneCountInString(w) < minFuzzyLen {
		return false
	}
	return levenshtein.ComputeDistance(t, w) <= 1
}

// oppositeHit fires when one side names p.a and the other names p.b, unless
// both sides name both terms in the same arrangement.
func oppositeHit(ta, tb []string, p compiledPair) bool {
	ax, ay := containsPhrase(ta, p.a, false), containsPhrase(ta, p.b, false)
	bx, by := containsPhrase(tb, p.a, false), containsPhrase(tb, p.b, false)
	return (ax && by && !(ay && bx)) || (ay && bx && !(ax && by))
}

// translationHit fires when one side holds the English term and the other the
// Italian one. A side that already holds the other side's term verbatim is not
// a translation of it ("Base Conversion" vs "Unit Conversion").
func translationHit(ta, tb []string, p compiledPair) bool {
	forward := containsPhrase(ta, p.a, true) && containsPhrase(tb, p.b, true) &&
		!containsPhrase(tb, p.a, false) && !containsPhrase(ta, p.b, false)
	if forward {
		return true
	}
	return containsPhrase(tb, p.a, true) && containsPhrase(ta, p.b, true) &&
		!containsPhrase(ta, p.a, false) && !containsPhrase(tb, p.b, false)
}
