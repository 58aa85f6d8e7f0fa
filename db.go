package odm

import "fmt"

// DB binds a schema to a substrate and hands out transactions.
type DB struct {
	sub     Substrate
	schema  *Schema
	logf    func(format string, args ...any)
	verbose bool
}

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
}

func Open(sub Substrate, schema *Schema, opt Options) *DB {
	return &DB{
		sub:     sub,
		schema:  schema,
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}
}

func (db *DB) Schema() *Schema {
	return db.schema
}

func (db *DB) Close() {
	err := db.sub.Close()
	if err != nil {
		panic(fmt.Errorf("odm: closing: %w", err))
	}
}

func (db *DB) BeginRead() *Tx {
	stx, err := db.sub.Begin(false)
	if err != nil {
		panic(fmt.Errorf("odm: failed to start reading: %w", err))
	}
	return &Tx{db: db, stx: stx}
}

func (db *DB) BeginUpdate() *Tx {
	stx, err := db.sub.Begin(true)
	if err != nil {
		panic(fmt.Errorf("odm: failed to start writing: %w", err))
	}
	return &Tx{db: db, stx: stx}
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("odm: commit: %w", err))
	}
}

func (db *DB) WriteErr(f func(tx *Tx) error) error {
	tx := db.BeginUpdate()
	defer tx.Close()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) isVerboseLoggingEnabled() bool {
	return db.verbose && db.logf != nil
}
