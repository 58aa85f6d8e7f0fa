package odm

// Tx scopes engine operations to one substrate transaction. Every public
// operation runs its whole read/write sequence inside a single Tx, which is
// what makes the per-operation apply/rollback sequences atomic with respect
// to other callers.
type Tx struct {
	db  *DB
	stx SubstrateTx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

// Substrate exposes the underlying transaction for callers that stage
// their own keys (query destinations, id sets for Delete).
func (tx *Tx) Substrate() SubstrateTx {
	return tx.stx
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

func (tx *Tx) Commit() error {
	return tx.stx.Commit()
}

// Close rolls back the transaction unless it was committed. Safe to call
// multiple times.
func (tx *Tx) Close() {
	ensure(tx.stx.Rollback())
}

func (tx *Tx) logf(format string, args ...any) {
	if tx.db.isVerboseLoggingEnabled() {
		tx.db.logf(format, args...)
	}
}
