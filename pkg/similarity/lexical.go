// Package similarity decides whether a freshly extracted element duplicates
// an existing graph node, using a cheap lexical tier and a batched LLM tier.
package similarity

import (
	"regexp"
	"strings"

	"github.com/meansend/ladder/pkg/tree"
)

const shortTextLimit = 30

var wordRe = regexp.MustCompile(`\b\w{3,}\b`)

type threshold struct {
	jaccard   float64
	minCommon int
}

// Per-label thresholds: values merge most eagerly, attributes least.
var thresholds = map[tree.Label]threshold{
	tree.LabelValue:       {jaccard: 0.25, minCommon: 1},
	tree.LabelConsequence: {jaccard: 0.30, minCommon: 2},
	tree.LabelAttribute:   {jaccard: 0.35, minCommon: 2},
}

var defaultThreshold = threshold{jaccard: 0.35, minCommon: 2}

// ExactMatch reports whether two conclusions are equal after normalization.
func ExactMatch(a, b string) bool {
	return normalize(a) == normalize(b)
}

// Lexical reports whether two conclusions are similar enough to warrant a
// contextual check. Short texts match by substring; longer texts by word
// overlap with length-banded Jaccard thresholds.
func Lexical(a, b string, label tree.Label) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) <= shortTextLimit || len(nb) <= shortTextLimit {
		if strings.Contains(na, nb) || strings.Contains(nb, na) {
			return true
		}
	}

	wa := wordSet(na)
	wb := wordSet(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	common := 0
	union := len(wb)
	for w := range wa {
		if wb[w] {
			common++
		} else {
			union++
		}
	}
	jaccard := float64(common) / float64(union)

	th, ok := thresholds[label]
	if !ok {
		th = defaultThreshold
	}
	la, lb := len(wa), len(wb)
	switch {
	case la <= 3 && lb <= 3:
		return common >= th.minCommon || jaccard >= th.jaccard-0.1
	case la <= 6 && lb <= 6:
		return common >= th.minCommon || jaccard >= th.jaccard
	default:
		return common >= th.minCommon+1 || jaccard >= th.jaccard+0.05
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range wordRe.FindAllString(s, -1) {
		set[w] = true
	}
	return set
}
