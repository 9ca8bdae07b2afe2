// Package grouping clusters transactions by normalised description
// similarity for ad-hoc spend categorisation. It is a pure function
// over the combined transaction stream; nothing is persisted.
package grouping

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/rumor-ml/finledger/internal/ledger"
)

// maxEditDistance is the Levenshtein threshold for merging a
// normalised description into an existing group.
const maxEditDistance = 5

// Alias maps any description containing one of the given fragments
// straight to a canonical group key. Aliases are checked before
// generic normalisation and short-circuit it.
type Alias struct {
	Contains []string
	Key      string
}

// CategoryGroup is one cluster of similar transactions: the normalised
// key, every raw description that fed it, and the signed total.
type CategoryGroup struct {
	Key        string
	Variations []string
	Total      decimal.Decimal
	Count      int
}

var (
	timeRe     = regexp.MustCompile(`\d{2}(?::\d{2})?(?::\d{2})?`)
	dateRe     = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	numberRe   = regexp.MustCompile(`\b\d+\b`)
	punctRe    = regexp.MustCompile(`[^\w\s]`)
	suffixRe   = regexp.MustCompile(`\b(LTD|LIMITED|UK|GB|INT|INTL|INTERNATIONAL)\b`)
	stopWordRe = regexp.MustCompile(`\b(THE|AND|OF|IN|AT|TO|FROM)\b`)
	cityRe     = regexp.MustCompile(`(LONDON|MANCHESTER|BIRMINGHAM|LEEDS|BRISTOL)`)
)

// Normalise reduces a raw description to its grouping form. Alias
// rules win outright; otherwise the description is uppercased and
// stripped of times, dates, standalone numbers, punctuation, company
// suffixes, stop words and city names. An empty result means the
// description carried no usable merchant text.
func Normalise(desc string, aliases []Alias) string {
	upper := strings.ToUpper(desc)

	for _, alias := range aliases {
		for _, fragment := range alias.Contains {
			if strings.Contains(upper, fragment) {
				return alias.Key
			}
		}
	}

	upper = timeRe.ReplaceAllString(upper, "")
	upper = dateRe.ReplaceAllString(upper, "")
	upper = numberRe.ReplaceAllString(upper, "")
	upper = punctRe.ReplaceAllString(upper, "")
	upper = suffixRe.ReplaceAllString(upper, "")
	upper = stopWordRe.ReplaceAllString(upper, "")
	upper = cityRe.ReplaceAllString(upper, "")

	return strings.Join(strings.Fields(upper), " ")
}

// Group clusters the transactions. Each normalised description merges
// into the first existing group key within the edit-distance
// threshold, in key insertion order, or opens a new group. The result
// keeps that insertion order, which makes grouping dependent on input
// order; callers wanting stable output sort the input first.
func Group(txns []*ledger.Transaction, aliases []Alias) []*CategoryGroup {
	var groups []*CategoryGroup
	index := make(map[string]*CategoryGroup)

	for _, t := range txns {
		key := Normalise(t.Description, aliases)
		if key == "" {
			continue
		}

		g := index[key]
		if g == nil {
			for _, existing := range groups {
				if editDistance(key, existing.Key) <= maxEditDistance {
					g = existing
					break
				}
			}
		}
		if g == nil {
			g = &CategoryGroup{Key: key}
			groups = append(groups, g)
			index[key] = g
		}

		g.Variations = append(g.Variations, t.Description)
		g.Total = g.Total.Add(t.Amount)
		g.Count++
	}

	return groups
}

func editDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}
