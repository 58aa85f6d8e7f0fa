package odm

// indexMode selects the direction of index maintenance.
type indexMode int

const (
	indexApply indexMode = iota
	indexRetract
)

// updateIndices applies or retracts every index entry for id, reading the
// instance's current stored field values. Unique conflicts are returned as
// values for the commit engine to act on; they never abort maintenance of
// the remaining fields.
func updateIndices(tx *Tx, m *Model, mode indexMode, id string, score float64) []*ConstraintError {
	stx := tx.stx
	col := collection{stx, m}
	obj := m.objectKey(id)

	var conflicts []*ConstraintError
	for field, spec := range m.Indexes {
		value, ok := stx.HGet(obj, field)
		if !ok {
			continue
		}
		if spec.Unique {
			uni := m.uniqueKey(field)
			switch mode {
			case indexApply:
				if !stx.HSetNX(uni, value, id) {
					owner, _ := stx.HGet(uni, value)
					if owner != id {
						conflicts = append(conflicts, constraintErr(m.Namespace, field, value, owner))
					}
				}
			case indexRetract:
				// Only the holder may release the value; a retract that is
				// part of a conflict rollback must not clobber the owner's
				// entry.
				if owner, held := stx.HGet(uni, value); held && owner == id {
					stx.HDel(uni, value)
				}
			}
		} else {
			idx := m.indexKey(field, value)
			switch mode {
			case indexApply:
				col.addAt(idx, score, id)
			case indexRetract:
				col.remove(idx, id)
			}
		}
	}
	return conflicts
}
