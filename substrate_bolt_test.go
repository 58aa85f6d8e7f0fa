package odm

import (
	"path/filepath"
	"testing"
)

func TestBoltSubstrateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odm.db")

	sub := must(OpenBoltSubstrate(path))
	stx := must(sub.Begin(true))
	stx.Set("s", "hello")
	stx.IncrBy("n", 7)
	stx.HSet("h", "a", "1")
	stx.SAdd("set", "x", "y")
	stx.ZAdd("z", 2, "b")
	stx.ZAdd("z", 1, "a")
	ensure(stx.Commit())
	ensure(sub.Close())

	// Everything survives a close and reopen.
	sub = must(OpenBoltSubstrate(path))
	defer sub.Close()
	stx = must(sub.Begin(false))
	v, _ := stx.Get("s")
	eq(t, v, "hello")
	eq(t, stx.GetInt("n"), int64(7))
	a, _ := stx.HGet("h", "a")
	eq(t, a, "1")
	deepEqual(t, stx.SMembers("set"), []string{"x", "y"})
	deepEqual(t, stx.ZRange("z", 0, -1, false), []ScoredMember{{"a", 1}, {"b", 2}})
	ensure(stx.Rollback())
}

func TestBoltSubstrateDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odm.db")

	sub := must(OpenBoltSubstrate(path))
	stx := must(sub.Begin(true))
	stx.Set("keep", "1")
	stx.Set("drop", "2")
	ensure(stx.Commit())

	stx = must(sub.Begin(true))
	stx.Del("drop")
	stx.SAdd("s", "only")
	stx.SRem("s", "only") // emptied structures must not be written back
	ensure(stx.Commit())
	ensure(sub.Close())

	sub = must(OpenBoltSubstrate(path))
	defer sub.Close()
	stx = must(sub.Begin(false))
	eq(t, stx.Exists("keep"), true)
	eq(t, stx.Exists("drop"), false)
	eq(t, stx.Exists("s"), false)
	ensure(stx.Rollback())
}

func TestBoltSubstrateRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odm.db")

	sub := must(OpenBoltSubstrate(path))
	defer sub.Close()

	stx := must(sub.Begin(true))
	stx.Set("k", "v")
	ensure(stx.Rollback())

	stx = must(sub.Begin(false))
	eq(t, stx.Exists("k"), false)
	ensure(stx.Rollback())
}

func TestEngineOnBoltSubstrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odm.db")
	sub := must(OpenBoltSubstrate(path))
	db := Open(sub, testSchema, Options{Logf: t.Logf, Verbose: testing.Verbose()})
	defer db.Close()

	db.Write(func(tx *Tx) {
		addFields(t, tx, usersModel, map[string]string{"email": "a@x.com", "status": "open"})
		addFields(t, tx, usersModel, map[string]string{"email": "b@x.com", "status": "open"})
	})
	db.Read(func(tx *Tx) {
		eq(t, Size(tx, usersModel), 2)
	})
	db.Write(func(tx *Tx) {
		n, err := Query(tx, usersModel, "status", "q:dest", []Cond{{CondValue, "open"}})
		noErr(t, err)
		eq(t, n, 2)
	})
}
