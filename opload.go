package odm

import "fmt"

// Ordering selects how Load orders the ids found at its source key.
type Ordering int

const (
	OrderNone Ordering = iota
	OrderASC           // ascending score, score-ordered collections only
	OrderDESC          // descending score, score-ordered collections only
	OrderExplicit
)

// Hop is one step of a nested ordering chain: follow the foreign-key field
// into the given namespace.
type Hop struct {
	Field     string
	Namespace string
}

// Order configures explicit ordering.
type Order struct {
	Field  string
	Desc   bool
	Alpha  bool // lexicographic instead of numeric comparison
	Nested []Hop
}

// LoadOptions is the already-decoded option set of one Load call.
type LoadOptions struct {
	// Get short-circuits to returning the raw id membership of the key.
	Get      bool
	Ordering Ordering
	// Start/Stop are inclusive rank bounds for OrderASC/OrderDESC (Stop -1
	// meaning the last rank), and offset/max-count for OrderExplicit
	// (Stop <= 0 meaning no limit).
	Start int
	Stop  int
	Order Order // for OrderExplicit
	// Fields projects rows to the named fields; exactly the identifier
	// field yields bare ids without row materialization.
	Fields []string
	// Related names relations to load alongside the rows.
	Related []string
}

// Row is one materialized result row.
type Row struct {
	ID     string
	Fields map[string]string
}

// LoadResult carries either bare ids (Get or id-only projection) or
// materialized rows, plus any loaded relations.
type LoadResult struct {
	IDs  []string
	Rows []Row
	// Structures maps relation field -> row id -> sub-collection members.
	Structures map[string]map[string][]string
	// References maps relation field -> foreign id -> foreign row, fetched
	// at most once per distinct foreign id.
	References map[string]map[string]Row
}

// Load materializes the result rows for the ids at key.
func Load(tx *Tx, m *Model, key string, opt LoadOptions) (*LoadResult, error) {
	if key == "" {
		return nil, keyErr("load")
	}
	stx := tx.stx
	col := collection{stx, m}

	if opt.Get {
		return &LoadResult{IDs: col.members(key, false)}, nil
	}

	var ids []string
	switch opt.Ordering {
	case OrderNone:
		ids = col.members(key, false)
	case OrderASC, OrderDESC:
		if m.Kind != Ordered {
			return nil, queryErrf(m.Namespace, "", "score ordering requires a score-ordered collection")
		}
		for _, sm := range stx.ZRange(key, opt.Start, opt.Stop, opt.Ordering == OrderDESC) {
			ids = append(ids, sm.Member)
		}
	case OrderExplicit:
		var err error
		ids, err = sortExplicit(tx, m, key, opt.Order, opt.Start, opt.Stop)
		if err != nil {
			return nil, err
		}
	default:
		panic(fmt.Errorf("odm: %s: unrecognized ordering %d", m.Namespace, int(opt.Ordering)))
	}

	if len(opt.Fields) == 1 && opt.Fields[0] == m.IDField {
		return &LoadResult{IDs: ids}, nil
	}

	res := &LoadResult{Rows: make([]Row, 0, len(ids))}
	for _, id := range ids {
		var fields map[string]string
		if len(opt.Fields) > 0 {
			values := stx.HMGet(m.objectKey(id), opt.Fields)
			fields = make(map[string]string, len(opt.Fields))
			for i, f := range opt.Fields {
				fields[f] = values[i]
			}
		} else {
			fields = stx.HGetAll(m.objectKey(id))
		}
		res.Rows = append(res.Rows, Row{ID: id, Fields: fields})
	}

	if len(opt.Related) > 0 {
		if err := loadRelated(tx, m, res, opt.Related); err != nil {
			return nil, err
		}
	}
	tx.logf("odm: LOAD %s/%s (%d rows)", m.Namespace, key, len(res.Rows))
	return res, nil
}

// sortExplicit orders the ids at key by a field value. When the sortable
// value sits behind foreign-key hops, each id's final value is staged into
// a scratch key and the sort runs over those; the scratch keys are deleted
// on every exit path.
func sortExplicit(tx *Tx, m *Model, key string, o Order, offset, count int) ([]string, error) {
	stx := tx.stx
	sopt := SortOptions{Offset: offset, Alpha: o.Alpha, Desc: o.Desc}
	if count > 0 {
		sopt.Count = count
	}

	if len(o.Nested) == 0 {
		sopt.By = m.Namespace + ":obj:*->" + o.Field
		return stx.Sort(key, sopt), nil
	}

	scratch, err := scratchKey(stx, m.Namespace)
	if err != nil {
		return nil, err
	}
	var staged []string
	defer func() {
		for _, k := range staged {
			stx.Del(k)
		}
	}()

	col := collection{stx, m}
	for _, id := range col.members(key, false) {
		k := scratch + ":" + id
		stx.Set(k, resolveNested(tx, m, id, o))
		staged = append(staged, k)
	}
	sopt.By = scratch + ":*"
	return stx.Sort(key, sopt), nil
}

// resolveNested walks the hop chain from id and reads the sort field off
// the record it lands on. A broken link sorts as the empty value.
func resolveNested(tx *Tx, m *Model, id string, o Order) string {
	cur, curModel := id, m
	for _, hop := range o.Nested {
		fid, ok := tx.stx.HGet(curModel.objectKey(cur), hop.Field)
		if !ok {
			return ""
		}
		cur = fid
		curModel = tx.Schema().ModelNamed(hop.Namespace)
	}
	v, _ := tx.stx.HGet(curModel.objectKey(cur), o.Field)
	return v
}

// loadRelated loads the named relations for the result rows. Structure
// relations are read per row; reference relations fetch each distinct
// foreign id once.
func loadRelated(tx *Tx, m *Model, res *LoadResult, names []string) error {
	stx := tx.stx
	for _, name := range names {
		rel, ok := m.Relations[name]
		if !ok {
			return queryErrf(m.Namespace, name, "no such relation")
		}
		switch rel.Kind {
		case RelStructure:
			if res.Structures == nil {
				res.Structures = make(map[string]map[string][]string)
			}
			st := make(map[string][]string, len(res.Rows))
			for _, row := range res.Rows {
				st[row.ID] = stx.SMembers(m.subKey(row.ID, name))
			}
			res.Structures[name] = st
		case RelReference:
			if res.References == nil {
				res.References = make(map[string]map[string]Row)
			}
			target := tx.Schema().ModelNamed(rel.Namespace)
			fetched := make(map[string]Row)
			for _, row := range res.Rows {
				fid, ok := row.Fields[name]
				if !ok {
					fid, _ = stx.HGet(m.objectKey(row.ID), name)
				}
				if fid == "" {
					continue
				}
				if _, done := fetched[fid]; done {
					continue
				}
				var fields map[string]string
				if len(rel.Fields) > 0 {
					values := stx.HMGet(target.objectKey(fid), rel.Fields)
					fields = make(map[string]string, len(rel.Fields))
					for i, f := range rel.Fields {
						fields[f] = values[i]
					}
				} else {
					fields = stx.HGetAll(target.objectKey(fid))
				}
				fetched[fid] = Row{ID: fid, Fields: fields}
			}
			res.References[name] = fetched
		}
	}
	return nil
}
