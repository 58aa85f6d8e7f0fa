package odm

import (
	"fmt"
	"strings"
)

// CondKind is a closed enumeration of query condition types. Set and Value
// conditions resolve through the idset or an index; the range kinds compare
// each candidate's field value.
type CondKind int

const (
	// CondSet names a key holding an already-materialized set of values to
	// filter/map through the index.
	CondSet CondKind = iota
	// CondValue is an exact match on a scalar.
	CondValue
	CondGE
	CondGT
	CondLE
	CondLT
	CondStartsWith
	CondEndsWith
	CondContains
)

func (k CondKind) isRange() bool {
	return k >= CondGE
}

func (k CondKind) String() string {
	switch k {
	case CondSet:
		return "set"
	case CondValue:
		return "value"
	case CondGE:
		return "ge"
	case CondGT:
		return "gt"
	case CondLE:
		return "le"
	case CondLT:
		return "lt"
	case CondStartsWith:
		return "startswith"
	case CondEndsWith:
		return "endswith"
	case CondContains:
		return "contains"
	default:
		return fmt.Sprintf("CondKind(%d)", int(k))
	}
}

// matches evaluates one range condition against a candidate's field value.
// Ordering comparisons are numeric when both sides parse as numbers and
// lexicographic otherwise.
func (k CondKind) matches(value, bound string) bool {
	cmp := func() int {
		if a, ok := parseFloat(value); ok {
			if b, ok := parseFloat(bound); ok {
				switch {
				case a < b:
					return -1
				case a > b:
					return 1
				default:
					return 0
				}
			}
		}
		return strings.Compare(value, bound)
	}
	switch k {
	case CondGE:
		return cmp() >= 0
	case CondGT:
		return cmp() > 0
	case CondLE:
		return cmp() <= 0
	case CondLT:
		return cmp() < 0
	case CondStartsWith:
		return strings.HasPrefix(value, bound)
	case CondEndsWith:
		return strings.HasSuffix(value, bound)
	case CondContains:
		return strings.Contains(value, bound)
	default:
		panic(fmt.Errorf("odm: %v is not a range condition", k))
	}
}

// Cond is one step of a query program. All conditions of one Query call
// apply to the same field.
type Cond struct {
	Kind  CondKind
	Value string
}

// Query builds the set of matching ids at destKey from a program of
// conditions on field, returning the resulting size.
//
// Set/Value conditions resolve immediately: against the idset when field is
// the identifier, through the unique map for a unique field, by set union
// for a non-unique indexed field. Range conditions are collected and
// evaluated together at the end, ANDed, against each candidate already
// selected (or against every live id when the program has no Set/Value
// conditions and the destination is still empty). A Set/Value condition on
// an unindexed non-identifier field fails the whole call.
func Query(tx *Tx, m *Model, field, destKey string, program []Cond) (int, error) {
	if destKey == "" {
		return 0, keyErr("query")
	}
	stx := tx.stx
	col := collection{stx, m}

	var ranges []Cond
	var lookups []Cond
	for _, cond := range program {
		switch {
		case cond.Kind.isRange():
			ranges = append(ranges, cond)
		case cond.Kind == CondSet || cond.Kind == CondValue:
			lookups = append(lookups, cond)
		default:
			panic(fmt.Errorf("odm: %s: unrecognized condition kind %d", m.Namespace, int(cond.Kind)))
		}
	}

	spec, indexed := m.indexed(field)
	isID := field == m.IDField
	if len(lookups) > 0 && !isID && !indexed {
		return 0, queryErrf(m.Namespace, field, "not an indexed field, cannot query")
	}

	for _, cond := range lookups {
		values := []string{cond.Value}
		if cond.Kind == CondSet {
			values = col.members(cond.Value, false)
		}
		switch {
		case isID:
			for _, v := range values {
				if score, ok := col.score(m.idsetKey(), v); ok {
					col.addAt(destKey, score, v)
				}
			}
		case spec.Unique:
			uni := m.uniqueKey(field)
			for _, v := range values {
				if id, ok := stx.HGet(uni, v); ok {
					score, _ := col.score(m.idsetKey(), id)
					col.addAt(destKey, score, id)
				}
			}
		default:
			srcs := []string{destKey}
			for _, v := range values {
				srcs = append(srcs, m.indexKey(field, v))
			}
			col.unionInto(destKey, srcs...)
		}
	}

	if len(ranges) > 0 {
		// Ranges filter whatever the destination holds by now; a range-only
		// program on an empty destination starts from every live id.
		candidates := col.members(destKey, false)
		if len(candidates) == 0 && len(lookups) == 0 {
			candidates = col.members(m.idsetKey(), false)
		}
		for _, id := range candidates {
			value := id
			if !isID {
				value, _ = stx.HGet(m.objectKey(id), field)
			}
			keep := true
			for _, cond := range ranges {
				if !cond.Kind.matches(value, cond.Value) {
					keep = false
					break
				}
			}
			if keep {
				score, _ := col.score(m.idsetKey(), id)
				col.addAt(destKey, score, id)
			} else {
				col.remove(destKey, id)
			}
		}
	}

	n := col.size(destKey)
	tx.logf("odm: QUERY %s.%s -> %s (%d)", m.Namespace, field, destKey, n)
	return n, nil
}

// Aggregate flattens the secondary-index graph rooted at the ids in key:
// a depth-first walk that, for every visited id, descends into that id's
// own secondary index set for field, accumulating every visited id into
// destKey. Without recursive, only the roots and their direct index
// members are visited. The visited set makes the walk terminate on cyclic
// index data.
func Aggregate(tx *Tx, m *Model, key, field, destKey string, recursive bool) (int, error) {
	if key == "" || destKey == "" {
		return 0, keyErr("aggregate")
	}
	col := collection{tx.stx, m}

	visited := make(map[string]bool)
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		score, _ := col.score(m.idsetKey(), id)
		col.addAt(destKey, score, id)
		if depth > 0 && !recursive {
			return
		}
		for _, child := range col.members(m.indexKey(field, id), false) {
			walk(child, depth+1)
		}
	}
	for _, id := range col.members(key, false) {
		walk(id, 0)
	}

	n := col.size(destKey)
	tx.logf("odm: AGGREGATE %s.%s -> %s (%d)", m.Namespace, field, destKey, n)
	return n, nil
}
