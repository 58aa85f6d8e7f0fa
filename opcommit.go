package odm

import (
	"fmt"
	"strings"
)

// Action selects what a commit batch entry does to its instance.
type Action int

const (
	ActionAdd Action = iota
	ActionChange
	// ActionOverride replaces the whole field map instead of merging.
	ActionOverride
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionChange:
		return "change"
	case ActionOverride:
		return "override"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Instance is one entry of a commit batch.
type Instance struct {
	Action Action
	ID     string // empty requests a generated id in auto mode
	Score  float64
	Fields map[string]string
}

// Result reports the outcome of one batch entry. A unique-index conflict
// or an unusable identifier fails the entry, never the batch.
type Result struct {
	ID    string
	OK    bool
	Score float64
	Err   error
}

// Commit applies a batch of instance writes. Each entry resolves its
// identifier, captures prior state, writes its field data, and applies
// index entries; a unique conflict rolls that entry's effects back and
// restores the prior instance. Entries are independent of each other.
func Commit(tx *Tx, m *Model, batch []Instance) []Result {
	results := make([]Result, len(batch))
	for i, inst := range batch {
		switch inst.Action {
		case ActionAdd, ActionChange, ActionOverride:
		default:
			panic(fmt.Errorf("odm: %s: unrecognized action %d", m.Namespace, int(inst.Action)))
		}
		results[i] = commitInstance(tx, m, inst)
	}
	return results
}

func commitInstance(tx *Tx, m *Model, inst Instance) Result {
	stx := tx.stx
	col := collection{stx, m}
	idset := m.idsetKey()

	// Identifier resolution.
	id := inst.ID
	var created bool
	switch m.IDMode {
	case IDAuto:
		if id == "" {
			id = formatInt(stx.IncrBy(m.counterKey(), 1))
			created = true
		} else if n, ok := parseInt(id); ok && n > stx.GetInt(m.counterKey()) {
			// Externally supplied numeric ids advance the high-water mark so
			// generated ids never collide with them.
			stx.Set(m.counterKey(), formatInt(n))
		}
	case IDCustom:
	case IDComposite:
		// Computed below, after merging old and new field data.
	}
	if m.IDMode != IDComposite && id == "" {
		return Result{Err: idErrf(m.Namespace, "empty identifier in %v id mode", m.IDMode)}
	}

	// Prior-state capture and index retraction for change/override.
	prevID := id
	var prev map[string]string
	var prevScore float64
	if inst.Action != ActionAdd && prevID != "" {
		prev = stx.HGetAll(m.objectKey(prevID))
		if len(prev) == 0 {
			prev = nil
		} else {
			prevScore, _ = col.score(idset, prevID)
			updateIndices(tx, m, indexRetract, prevID, 0)
			if inst.Action == ActionOverride {
				stx.Del(m.objectKey(prevID))
			}
		}
	}

	restorePrev := func() {
		if prev == nil {
			return
		}
		objPrev := m.objectKey(prevID)
		for k, v := range prev {
			stx.HSet(objPrev, k, v)
		}
		col.addAt(idset, prevScore, prevID)
		updateIndices(tx, m, indexApply, prevID, prevScore)
	}

	// Composite id recomputation over the merged field map. The merged map
	// is also what gets written: a changed composite id moves the record to
	// a new object key, which must carry the untouched prior fields along.
	writeFields := inst.Fields
	if m.IDMode == IDComposite {
		merged := make(map[string]string, len(prev)+len(inst.Fields))
		for k, v := range prev {
			merged[k] = v
		}
		for k, v := range inst.Fields {
			merged[k] = v
		}
		cid, err := compositeID(m, merged)
		if err != nil {
			restorePrev()
			return Result{Err: err}
		}
		if prev != nil && cid != prevID {
			col.remove(idset, prevID)
			stx.Del(m.objectKey(prevID))
		}
		id = cid
		writeFields = merged
	}

	// Write.
	obj := m.objectKey(id)
	wasMember := col.contains(idset, id)
	oldScore, _ := col.score(idset, id)
	score := col.add(idset, inst.Score, id)
	for k, v := range writeFields {
		stx.HSet(obj, k, v)
	}

	conflicts := updateIndices(tx, m, indexApply, id, score)
	if len(conflicts) == 0 {
		tx.logf("odm: COMMIT.%s %s/%s", strings.ToUpper(inst.Action.String()), m.Namespace, id)
		return Result{ID: id, OK: true, Score: score}
	}

	// Unique conflict: unwind this entry's effects.
	updateIndices(tx, m, indexRetract, id, 0)
	stx.Del(obj)
	if !(id == prevID && prev != nil) {
		if !wasMember {
			col.remove(idset, id)
		} else if m.Kind == Ordered {
			stx.ZAdd(idset, oldScore, id)
		}
	}
	if created {
		stx.IncrBy(m.counterKey(), -1)
		tx.logf("odm: COMMIT.CONFLICT %s/%s (id released)", m.Namespace, id)
		return Result{Err: conflicts[0]}
	}
	restorePrev()
	tx.logf("odm: COMMIT.CONFLICT %s/%s", m.Namespace, id)
	return Result{ID: id, Err: conflicts[0]}
}

// compositeID derives the identifier from the declared id fields, in
// declared order. The same field values always produce the same id.
func compositeID(m *Model, fields map[string]string) (string, error) {
	var buf strings.Builder
	for i, f := range m.IDFields {
		v, ok := fields[f]
		if !ok {
			return "", idErrf(m.Namespace, "composite id field %s has no value", f)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(f)
		buf.WriteByte(':')
		buf.WriteString(v)
	}
	return buf.String(), nil
}

// Delete removes every instance whose id is in the set at setKey: index
// entries, field map, multi-valued sub-collections, and idset membership.
// Only ids whose field map actually existed are reported.
func Delete(tx *Tx, m *Model, setKey string) ([]string, error) {
	if setKey == "" {
		return nil, keyErr("delete")
	}
	stx := tx.stx
	col := collection{stx, m}

	var deleted []string
	for _, id := range col.members(setKey, false) {
		updateIndices(tx, m, indexRetract, id, 0)
		obj := m.objectKey(id)
		existed := stx.Exists(obj)
		stx.Del(obj)
		for _, f := range m.MultiFields {
			stx.Del(m.subKey(id, f))
		}
		col.remove(m.idsetKey(), id)
		if existed {
			deleted = append(deleted, id)
			tx.logf("odm: DELETE %s/%s", m.Namespace, id)
		}
	}
	return deleted, nil
}

// Flush removes every key in the model's namespace. Returns the number of
// keys removed.
func Flush(tx *Tx, m *Model) int {
	keys := tx.stx.KeysWithPrefix(m.Namespace + ":")
	for _, k := range keys {
		tx.stx.Del(k)
	}
	tx.logf("odm: FLUSH %s (%d keys)", m.Namespace, len(keys))
	return len(keys)
}

// Size returns the number of live instances.
func Size(tx *Tx, m *Model) int {
	return collection{tx.stx, m}.size(m.idsetKey())
}

// Contains reports whether id is live.
func Contains(tx *Tx, m *Model, id string) bool {
	return collection{tx.stx, m}.contains(m.idsetKey(), id)
}

// InstanceKeys lists the substrate keys occupied by one instance: its
// field-map record and any existing multi-valued sub-collections.
func InstanceKeys(tx *Tx, m *Model, id string) []string {
	keys := []string{m.objectKey(id)}
	for _, f := range m.MultiFields {
		if k := m.subKey(id, f); tx.stx.Exists(k) {
			keys = append(keys, k)
		}
	}
	return keys
}
