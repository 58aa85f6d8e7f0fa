package odm

import (
	"errors"
	"reflect"
	"testing"
)

var testSchema = NewSchema()

var (
	usersModel = AddModel(testSchema, Model{
		Namespace: "users",
		IDMode:    IDAuto,
		Indexes: map[string]IndexSpec{
			"email":  {Unique: true},
			"status": {},
		},
		MultiFields: []string{"tags"},
		Relations: map[string]Relation{
			"tags":  {Kind: RelStructure},
			"group": {Kind: RelReference, Namespace: "groups", Fields: []string{"name"}},
		},
	})
	groupsModel = AddModel(testSchema, Model{
		Namespace: "groups",
		IDMode:    IDAuto,
	})
	ordersModel = AddModel(testSchema, Model{
		Namespace: "orders",
		IDMode:    IDAuto,
		Indexes: map[string]IndexSpec{
			"customer_id": {Unique: true},
			"status":      {},
		},
	})
	booksModel = AddModel(testSchema, Model{
		Namespace: "books",
		IDMode:    IDAuto,
		Kind:      Ordered,
		Indexes: map[string]IndexSpec{
			"author_id": {},
		},
	})
	authorsModel = AddModel(testSchema, Model{
		Namespace: "authors",
		IDMode:    IDAuto,
	})
	pointsModel = AddModel(testSchema, Model{
		Namespace: "points",
		IDMode:    IDCustom,
		Kind:      Ordered,
		AutoScore: true,
	})
	pairsModel = AddModel(testSchema, Model{
		Namespace: "pairs",
		IDMode:    IDComposite,
		IDFields:  []string{"region", "slot"},
	})
	nodesModel = AddModel(testSchema, Model{
		Namespace: "nodes",
		IDMode:    IDCustom,
		Indexes: map[string]IndexSpec{
			"parent": {},
		},
	})
)

func setup(t *testing.T) *DB {
	t.Helper()
	db := Open(NewMemSubstrate(), testSchema, Options{Logf: t.Logf, Verbose: testing.Verbose()})
	t.Cleanup(db.Close)
	return db
}

func eq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("** got %v, wanted %v", got, want)
	}
}

func deepEqual(t *testing.T, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("** got %v, wanted %v", got, want)
	}
}

func succeeds[T any](t *testing.T, v T, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("** failed: %v", err)
	}
	return v
}

func noErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("** failed: %v", err)
	}
}

func commitOne(t *testing.T, tx *Tx, m *Model, inst Instance) Result {
	t.Helper()
	r := Commit(tx, m, []Instance{inst})[0]
	if !r.OK {
		t.Fatalf("** commit failed: %v", r.Err)
	}
	return r
}

func addFields(t *testing.T, tx *Tx, m *Model, fields map[string]string) string {
	t.Helper()
	return commitOne(t, tx, m, Instance{Action: ActionAdd, Fields: fields}).ID
}

func isConstraintErr(t *testing.T, err error, field string) {
	t.Helper()
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("** got %v, wanted a ConstraintError", err)
	}
	eq(t, ce.Field, field)
}
