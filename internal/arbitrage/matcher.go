// Package arbitrage matches outcomes quoted on different venues and turns
// matched quote pairs into scored cross-venue opportunities.
package arbitrage

import (
	"strings"
	"unicode"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// MatchThreshold is the minimum token similarity for two outcome labels to be
// treated as the same outcome.
const MatchThreshold = 0.8

// Normalize lower-cases label, replaces every rune that is neither a letter
// nor a number with a space and collapses runs of whitespace. Numbers include
// superscripts, fractions and Roman numerals, not only decimal digits.
func Normalize(label string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, label)
	return strings.Join(strings.Fields(mapped), " ")
}

func tokenSet(label string) map[string]struct{} {
	fields := strings.Fields(Normalize(label))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Similarity returns the Jaccard index of the token sets of a and b.
// Two empty labels are identical (1.0); an empty label against a non-empty
// one scores 0.0.
func Similarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// OutcomesMatch reports whether two labels denote the same outcome.
func OutcomesMatch(a, b string) bool {
	if Normalize(a) == Normalize(b) {
		return true
	}
	return Similarity(a, b) >= MatchThreshold
}

// FindBestMatch returns the candidate whose outcome matches target's with the
// highest similarity. Ties keep the earliest candidate.
func FindBestMatch(target domain.Quote, candidates []domain.Quote) (domain.Quote, bool) {
	var (
		best      domain.Quote
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if !OutcomesMatch(target.Outcome, c.Outcome) {
			continue
		}
		score := Similarity(target.Outcome, c.Outcome)
		if score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

// MatchMarket pairs target with the candidate market asking the most similar
// question. Candidates scoring below MatchThreshold are ignored.
func MatchMarket(target domain.Market, candidates []domain.Market) (domain.Market, bool) {
	var (
		best      domain.Market
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		score := Similarity(target.Question, c.Question)
		if score < MatchThreshold {
			continue
		}
		if score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}
