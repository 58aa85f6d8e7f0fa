package odm

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var boltDataBucket = []byte("data")

type boltSubstrate struct {
	bdb *bbolt.DB
}

// OpenBoltSubstrate opens (creating if needed) a persistent Substrate
// stored in a single Bolt file. Structures are encoded with msgpack, one
// Bolt key per substrate key.
func OpenBoltSubstrate(path string) (Substrate, error) {
	bopt := &bbolt.Options{Timeout: 10 * time.Second}
	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("odm: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltDataBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("odm: %w", err)
	}
	return &boltSubstrate{bdb: bdb}, nil
}

// NewBoltSubstrate wraps an already-open Bolt database.
func NewBoltSubstrate(bdb *bbolt.DB) (Substrate, error) {
	err := bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltDataBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("odm: %w", err)
	}
	return &boltSubstrate{bdb: bdb}, nil
}

func (s *boltSubstrate) Begin(writable bool) (SubstrateTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}

	// Materialize the whole store into memory for the duration of the
	// transaction (the memory backend makes the same simplicity tradeoff
	// with its snapshots); the commit writes back only what changed.
	inner := &memSubstrate{values: make(map[string]*memValue)}
	inner.cond = sync.NewCond(&inner.mu)
	orig := make(map[string][]byte)
	buck := nonNil(btx.Bucket(boltDataBucket))
	c := buck.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var bv boltValue
		if err := msgpack.Unmarshal(v, &bv); err != nil {
			btx.Rollback()
			return nil, fmt.Errorf("odm: decoding %q: %w", k, err)
		}
		inner.values[string(k)] = bv.structValue()
		orig[string(k)] = append([]byte(nil), v...)
	}

	mtx, err := inner.Begin(writable)
	if err != nil {
		btx.Rollback()
		return nil, err
	}
	return &boltTx{btx: btx, mem: mtx.(*memTx), orig: orig}, nil
}

func (s *boltSubstrate) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx  *bbolt.Tx
	mem  *memTx
	orig map[string][]byte
}

func (tx *boltTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltTx) Commit() error {
	if !tx.btx.Writable() {
		return fmt.Errorf("tx not writable")
	}
	buck := nonNil(tx.btx.Bucket(boltDataBucket))
	for key := range tx.orig {
		if tx.mem.values[key] == nil {
			if err := buck.Delete([]byte(key)); err != nil {
				tx.btx.Rollback()
				return err
			}
		}
	}
	for key, v := range tx.mem.values {
		enc := must(msgpack.Marshal(makeBoltValue(v)))
		if bytes.Equal(enc, tx.orig[key]) {
			continue
		}
		if err := buck.Put([]byte(key), enc); err != nil {
			tx.btx.Rollback()
			return err
		}
	}
	tx.mem.Commit()
	return tx.btx.Commit()
}

func (tx *boltTx) Rollback() error {
	tx.mem.Rollback()
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

func (tx *boltTx) Exists(key string) bool                  { return tx.mem.Exists(key) }
func (tx *boltTx) Del(key string) bool                     { return tx.mem.Del(key) }
func (tx *boltTx) KeysWithPrefix(prefix string) []string   { return tx.mem.KeysWithPrefix(prefix) }
func (tx *boltTx) Get(key string) (string, bool)           { return tx.mem.Get(key) }
func (tx *boltTx) Set(key, value string)                   { tx.mem.Set(key, value) }
func (tx *boltTx) IncrBy(key string, delta int64) int64    { return tx.mem.IncrBy(key, delta) }
func (tx *boltTx) GetInt(key string) int64                 { return tx.mem.GetInt(key) }
func (tx *boltTx) HGet(key, field string) (string, bool)   { return tx.mem.HGet(key, field) }
func (tx *boltTx) HSet(key, field, value string)           { tx.mem.HSet(key, field, value) }
func (tx *boltTx) HSetNX(key, field, value string) bool    { return tx.mem.HSetNX(key, field, value) }
func (tx *boltTx) HDel(key string, fields ...string)       { tx.mem.HDel(key, fields...) }
func (tx *boltTx) HGetAll(key string) map[string]string    { return tx.mem.HGetAll(key) }
func (tx *boltTx) HMGet(key string, ff []string) []string  { return tx.mem.HMGet(key, ff) }
func (tx *boltTx) HLen(key string) int                     { return tx.mem.HLen(key) }
func (tx *boltTx) SAdd(key string, mm ...string) int       { return tx.mem.SAdd(key, mm...) }
func (tx *boltTx) SRem(key string, mm ...string) int       { return tx.mem.SRem(key, mm...) }
func (tx *boltTx) SIsMember(key, member string) bool       { return tx.mem.SIsMember(key, member) }
func (tx *boltTx) SMembers(key string) []string            { return tx.mem.SMembers(key) }
func (tx *boltTx) SCard(key string) int                    { return tx.mem.SCard(key) }
func (tx *boltTx) SUnionStore(d string, ss ...string) int  { return tx.mem.SUnionStore(d, ss...) }
func (tx *boltTx) ZAdd(key string, sc float64, m string)   { tx.mem.ZAdd(key, sc, m) }
func (tx *boltTx) ZIncrBy(k string, d float64, m string) float64 { return tx.mem.ZIncrBy(k, d, m) }
func (tx *boltTx) ZRem(key string, mm ...string) int       { return tx.mem.ZRem(key, mm...) }
func (tx *boltTx) ZScore(key, m string) (float64, bool)    { return tx.mem.ZScore(key, m) }
func (tx *boltTx) ZCard(key string) int                    { return tx.mem.ZCard(key) }
func (tx *boltTx) ZRange(key string, start, stop int, rev bool) []ScoredMember {
	return tx.mem.ZRange(key, start, stop, rev)
}
func (tx *boltTx) ZUnionStore(d string, ss ...string) int { return tx.mem.ZUnionStore(d, ss...) }
func (tx *boltTx) Sort(key string, opt SortOptions) []string {
	return tx.mem.Sort(key, opt)
}

// boltValue is the msgpack wire form of one structure.
type boltValue struct {
	Kind int               `msgpack:"k"`
	Str  string            `msgpack:"v,omitempty"`
	Hash map[string]string `msgpack:"h,omitempty"`
	Set  []string          `msgpack:"s,omitempty"`
	ZSet []boltZItem       `msgpack:"z,omitempty"`
}

type boltZItem struct {
	Member string  `msgpack:"m"`
	Score  float64 `msgpack:"s"`
}

func makeBoltValue(v *memValue) boltValue {
	bv := boltValue{Kind: int(v.kind)}
	switch v.kind {
	case memStr:
		bv.Str = v.str
	case memHash:
		bv.Hash = v.hash
	case memSet:
		bv.Set = make([]string, 0, len(v.set))
		for m := range v.set {
			bv.Set = append(bv.Set, m)
		}
		sort.Strings(bv.Set)
	case memZSet:
		v.zset.tree.Ascend(func(it zitem) bool {
			bv.ZSet = append(bv.ZSet, boltZItem{it.member, it.score})
			return true
		})
	}
	return bv
}

func (bv boltValue) structValue() *memValue {
	v := &memValue{kind: memKind(bv.Kind)}
	switch v.kind {
	case memStr:
		v.str = bv.Str
	case memHash:
		v.hash = bv.Hash
		if v.hash == nil {
			v.hash = make(map[string]string)
		}
	case memSet:
		v.set = make(map[string]struct{}, len(bv.Set))
		for _, m := range bv.Set {
			v.set[m] = struct{}{}
		}
	case memZSet:
		v.zset = newMemZSet()
		for _, it := range bv.ZSet {
			v.zset.add(it.Member, it.Score)
		}
	}
	return v
}
