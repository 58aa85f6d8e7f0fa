package odm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"
)

type memKind int

const (
	memStr memKind = iota
	memHash
	memSet
	memZSet
)

func (k memKind) String() string {
	switch k {
	case memStr:
		return "string"
	case memHash:
		return "hash"
	case memSet:
		return "set"
	case memZSet:
		return "zset"
	default:
		return fmt.Sprintf("memKind(%d)", int(k))
	}
}

type memSubstrate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	values map[string]*memValue
	closed bool
	writer bool
}

// NewMemSubstrate returns a transient in-memory Substrate implementation
// intended for tests and embedding.
func NewMemSubstrate() Substrate {
	s := &memSubstrate{values: make(map[string]*memValue)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memSubstrate) Begin(writable bool) (SubstrateTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("substrate closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("substrate closed")
		}
		s.writer = true
	}

	// Snapshot everything for transactional isolation (simplicity over
	// efficiency; zset trees are copy-on-write).
	snap := make(map[string]*memValue, len(s.values))
	for k, v := range s.values {
		snap[k] = v.clone()
	}

	return &memTx{base: s, writable: writable, values: snap}, nil
}

func (s *memSubstrate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.values = nil
	if s.cond != nil {
		s.cond.Broadcast()
	}
	return nil
}

type memValue struct {
	kind memKind
	str  string
	hash map[string]string
	set  map[string]struct{}
	zset *memZSetData
}

func (v *memValue) clone() *memValue {
	out := &memValue{kind: v.kind, str: v.str}
	switch v.kind {
	case memHash:
		out.hash = make(map[string]string, len(v.hash))
		for k, s := range v.hash {
			out.hash[k] = s
		}
	case memSet:
		out.set = make(map[string]struct{}, len(v.set))
		for k := range v.set {
			out.set[k] = struct{}{}
		}
	case memZSet:
		out.zset = v.zset.clone()
	}
	return out
}

func (v *memValue) empty() bool {
	switch v.kind {
	case memHash:
		return len(v.hash) == 0
	case memSet:
		return len(v.set) == 0
	case memZSet:
		return v.zset.tree.Len() == 0
	default:
		return false
	}
}

type zitem struct {
	member string
	score  float64
}

func zitemLess(a, b zitem) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

type memZSetData struct {
	tree   *btree.BTreeG[zitem]
	scores map[string]float64
}

func newMemZSet() *memZSetData {
	return &memZSetData{
		tree:   btree.NewG[zitem](8, zitemLess),
		scores: make(map[string]float64),
	}
}

func (z *memZSetData) clone() *memZSetData {
	out := &memZSetData{
		tree:   z.tree.Clone(),
		scores: make(map[string]float64, len(z.scores)),
	}
	for k, v := range z.scores {
		out.scores[k] = v
	}
	return out
}

func (z *memZSetData) add(member string, score float64) {
	if old, ok := z.scores[member]; ok {
		z.tree.Delete(zitem{member, old})
	}
	z.scores[member] = score
	z.tree.ReplaceOrInsert(zitem{member, score})
}

func (z *memZSetData) remove(member string) bool {
	old, ok := z.scores[member]
	if !ok {
		return false
	}
	z.tree.Delete(zitem{member, old})
	delete(z.scores, member)
	return true
}

type memTx struct {
	base     *memSubstrate
	writable bool
	values   map[string]*memValue
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("substrate closed")
	}
	tx.base.values = tx.values
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) value(key string, kind memKind) *memValue {
	if tx.closed {
		panic("tx is closed")
	}
	v := tx.values[key]
	if v == nil {
		return nil
	}
	if v.kind != kind {
		panic(fmt.Errorf("key %q holds a %v, not a %v", key, v.kind, kind))
	}
	return v
}

func (tx *memTx) mutable(key string, kind memKind) *memValue {
	if !tx.writable {
		panic("tx not writable")
	}
	v := tx.value(key, kind)
	if v == nil {
		v = &memValue{kind: kind}
		switch kind {
		case memHash:
			v.hash = make(map[string]string)
		case memSet:
			v.set = make(map[string]struct{})
		case memZSet:
			v.zset = newMemZSet()
		}
		tx.values[key] = v
	}
	return v
}

// dropIfEmpty removes structures that lost their last element, so that
// Exists and KeysWithPrefix never observe empty leftovers.
func (tx *memTx) dropIfEmpty(key string, v *memValue) {
	if v.empty() {
		delete(tx.values, key)
	}
}

func (tx *memTx) Exists(key string) bool {
	if tx.closed {
		panic("tx is closed")
	}
	return tx.values[key] != nil
}

func (tx *memTx) Del(key string) bool {
	if !tx.writable {
		panic("tx not writable")
	}
	if tx.values[key] == nil {
		return false
	}
	delete(tx.values, key)
	return true
}

func (tx *memTx) KeysWithPrefix(prefix string) []string {
	if tx.closed {
		panic("tx is closed")
	}
	var keys []string
	for k := range tx.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (tx *memTx) Get(key string) (string, bool) {
	v := tx.value(key, memStr)
	if v == nil {
		return "", false
	}
	return v.str, true
}

func (tx *memTx) Set(key, value string) {
	tx.mutable(key, memStr).str = value
}

func (tx *memTx) IncrBy(key string, delta int64) int64 {
	v := tx.mutable(key, memStr)
	var cur int64
	if v.str != "" {
		n, ok := parseInt(v.str)
		if !ok {
			panic(fmt.Errorf("key %q holds a non-integer value", key))
		}
		cur = n
	}
	cur += delta
	v.str = formatInt(cur)
	return cur
}

func (tx *memTx) GetInt(key string) int64 {
	s, ok := tx.Get(key)
	if !ok || s == "" {
		return 0
	}
	n, ok := parseInt(s)
	if !ok {
		panic(fmt.Errorf("key %q holds a non-integer value", key))
	}
	return n
}

func (tx *memTx) HGet(key, field string) (string, bool) {
	v := tx.value(key, memHash)
	if v == nil {
		return "", false
	}
	s, ok := v.hash[field]
	return s, ok
}

func (tx *memTx) HSet(key, field, value string) {
	tx.mutable(key, memHash).hash[field] = value
}

func (tx *memTx) HSetNX(key, field, value string) bool {
	v := tx.mutable(key, memHash)
	if _, ok := v.hash[field]; ok {
		return false
	}
	v.hash[field] = value
	return true
}

func (tx *memTx) HDel(key string, fields ...string) {
	v := tx.value(key, memHash)
	if v == nil {
		return
	}
	if !tx.writable {
		panic("tx not writable")
	}
	for _, f := range fields {
		delete(v.hash, f)
	}
	tx.dropIfEmpty(key, v)
}

func (tx *memTx) HGetAll(key string) map[string]string {
	v := tx.value(key, memHash)
	out := make(map[string]string)
	if v != nil {
		for k, s := range v.hash {
			out[k] = s
		}
	}
	return out
}

func (tx *memTx) HMGet(key string, fields []string) []string {
	out := make([]string, len(fields))
	v := tx.value(key, memHash)
	if v != nil {
		for i, f := range fields {
			out[i] = v.hash[f]
		}
	}
	return out
}

func (tx *memTx) HLen(key string) int {
	v := tx.value(key, memHash)
	if v == nil {
		return 0
	}
	return len(v.hash)
}

func (tx *memTx) SAdd(key string, members ...string) int {
	v := tx.mutable(key, memSet)
	var added int
	for _, m := range members {
		if _, ok := v.set[m]; !ok {
			v.set[m] = struct{}{}
			added++
		}
	}
	return added
}

func (tx *memTx) SRem(key string, members ...string) int {
	v := tx.value(key, memSet)
	if v == nil {
		return 0
	}
	if !tx.writable {
		panic("tx not writable")
	}
	var removed int
	for _, m := range members {
		if _, ok := v.set[m]; ok {
			delete(v.set, m)
			removed++
		}
	}
	tx.dropIfEmpty(key, v)
	return removed
}

func (tx *memTx) SIsMember(key, member string) bool {
	v := tx.value(key, memSet)
	if v == nil {
		return false
	}
	_, ok := v.set[member]
	return ok
}

func (tx *memTx) SMembers(key string) []string {
	v := tx.value(key, memSet)
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.set))
	for m := range v.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (tx *memTx) SCard(key string) int {
	v := tx.value(key, memSet)
	if v == nil {
		return 0
	}
	return len(v.set)
}

func (tx *memTx) SUnionStore(dest string, srcs ...string) int {
	union := make(map[string]struct{})
	for _, src := range srcs {
		for _, m := range tx.SMembers(src) {
			union[m] = struct{}{}
		}
	}
	tx.Del(dest)
	if len(union) == 0 {
		return 0
	}
	v := tx.mutable(dest, memSet)
	v.set = union
	return len(union)
}

func (tx *memTx) ZAdd(key string, score float64, member string) {
	tx.mutable(key, memZSet).zset.add(member, score)
}

func (tx *memTx) ZIncrBy(key string, delta float64, member string) float64 {
	z := tx.mutable(key, memZSet).zset
	score := z.scores[member] + delta
	z.add(member, score)
	return score
}

func (tx *memTx) ZRem(key string, members ...string) int {
	v := tx.value(key, memZSet)
	if v == nil {
		return 0
	}
	if !tx.writable {
		panic("tx not writable")
	}
	var removed int
	for _, m := range members {
		if v.zset.remove(m) {
			removed++
		}
	}
	tx.dropIfEmpty(key, v)
	return removed
}

func (tx *memTx) ZScore(key, member string) (float64, bool) {
	v := tx.value(key, memZSet)
	if v == nil {
		return 0, false
	}
	score, ok := v.zset.scores[member]
	return score, ok
}

func (tx *memTx) ZCard(key string) int {
	v := tx.value(key, memZSet)
	if v == nil {
		return 0
	}
	return v.zset.tree.Len()
}

func (tx *memTx) ZRange(key string, start, stop int, rev bool) []ScoredMember {
	v := tx.value(key, memZSet)
	if v == nil {
		return nil
	}
	all := make([]ScoredMember, 0, v.zset.tree.Len())
	v.zset.tree.Ascend(func(it zitem) bool {
		all = append(all, ScoredMember{it.member, it.score})
		return true
	})
	if rev {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	return sliceRankRange(all, start, stop)
}

func (tx *memTx) ZUnionStore(dest string, srcs ...string) int {
	union := make(map[string]float64)
	for _, src := range srcs {
		for _, sm := range tx.ZRange(src, 0, -1, false) {
			union[sm.Member] += sm.Score
		}
	}
	tx.Del(dest)
	if len(union) == 0 {
		return 0
	}
	z := tx.mutable(dest, memZSet).zset
	for m, score := range union {
		z.add(m, score)
	}
	return len(union)
}

func (tx *memTx) Sort(key string, opt SortOptions) []string {
	if tx.closed {
		panic("tx is closed")
	}
	var members []string
	switch v := tx.values[key]; {
	case v == nil:
		return nil
	case v.kind == memSet:
		members = tx.SMembers(key)
	case v.kind == memZSet:
		for _, sm := range tx.ZRange(key, 0, -1, false) {
			members = append(members, sm.Member)
		}
	default:
		panic(fmt.Errorf("key %q holds a %v, not a sortable collection", key, v.kind))
	}
	return applySort(members, sortWeights(tx, members, opt), opt)
}

// sliceRankRange applies redis-style inclusive rank bounds, -1 meaning the
// last rank.
func sliceRankRange[T any](all []T, start, stop int) []T {
	n := len(all)
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	return all[start : stop+1]
}
