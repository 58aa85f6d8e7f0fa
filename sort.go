package odm

import (
	"sort"
	"strings"
)

// sortWeights resolves the ordering weight of each member per the By
// pattern. "*" in the pattern is replaced with the member; a "->field"
// suffix reads a hash field of the resolved key; an empty pattern weighs
// each member by itself.
func sortWeights(stx SubstrateTx, members []string, opt SortOptions) []string {
	weights := make([]string, len(members))
	if opt.By == "" {
		copy(weights, members)
		return weights
	}
	pat, hashField, viaHash := strings.Cut(opt.By, "->")
	for i, m := range members {
		key := strings.Replace(pat, "*", m, 1)
		if viaHash {
			weights[i], _ = stx.HGet(key, hashField)
		} else {
			weights[i], _ = stx.Get(key)
		}
	}
	return weights
}

// applySort orders members by their weights (numeric unless Alpha, missing
// or unparsable weights sorting as zero) and applies pagination.
func applySort(members, weights []string, opt SortOptions) []string {
	idx := make([]int, len(members))
	for i := range idx {
		idx[i] = i
	}
	less := func(a, b int) bool {
		if opt.Alpha {
			return weights[a] < weights[b]
		}
		na, _ := parseFloat(weights[a])
		nb, _ := parseFloat(weights[b])
		return na < nb
	}
	if opt.Desc {
		sort.SliceStable(idx, func(i, j int) bool { return less(idx[j], idx[i]) })
	} else {
		sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	}

	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, members[i])
	}
	if opt.Offset > 0 {
		if opt.Offset >= len(out) {
			return nil
		}
		out = out[opt.Offset:]
	}
	if opt.Count > 0 && opt.Count < len(out) {
		out = out[:opt.Count]
	}
	return out
}
