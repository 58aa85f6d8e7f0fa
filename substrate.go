package odm

// Substrate is the key-value storage backend the engine maps objects onto
// (in-memory, Bolt, or any server exposing the same structures).
//
// Every public engine operation runs inside exactly one substrate
// transaction; the substrate must guarantee that a writable transaction
// excludes all other access for its duration. That guarantee is what makes
// the engine's per-operation apply/rollback sequences atomic.
type Substrate interface {
	// Begin starts a transaction. Writable transactions are exclusive.
	Begin(writable bool) (SubstrateTx, error)
	// Close closes the substrate.
	Close() error
}

// ScoredMember is one member of a score-ordered set.
type ScoredMember struct {
	Member string
	Score  float64
}

// SortOptions configures the generic sort primitive.
type SortOptions struct {
	// By names an external weight per member: a key pattern whose "*" is
	// replaced with the member, optionally with a "->field" suffix to read
	// a hash field of the resolved key. Empty sorts by the member itself.
	By     string
	Offset int
	Count  int // 0 means all remaining
	Alpha  bool
	Desc   bool
}

// SubstrateTx is the structure API scoped to one transaction.
//
// Mutating calls on a read-only transaction, and storage-level failures in
// a backend, are programming/environment errors: implementations panic
// rather than return errors, mirroring how the engine treats them.
type SubstrateTx interface {
	Writable() bool
	Commit() error
	// Rollback aborts the transaction. Safe to call multiple times.
	Rollback() error

	// Keys of any kind.
	Exists(key string) bool
	Del(key string) bool
	KeysWithPrefix(prefix string) []string

	// Plain string cells. IncrBy treats a missing cell as zero and panics
	// on a non-integer cell.
	Get(key string) (string, bool)
	Set(key, value string)
	IncrBy(key string, delta int64) int64
	GetInt(key string) int64

	// Hash-map records.
	HGet(key, field string) (string, bool)
	HSet(key, field, value string)
	// HSetNX sets the field only if unset, reporting whether it did.
	HSetNX(key, field, value string) bool
	HDel(key string, fields ...string)
	HGetAll(key string) map[string]string
	HMGet(key string, fields []string) []string
	HLen(key string) int

	// Unordered sets.
	SAdd(key string, members ...string) int
	SRem(key string, members ...string) int
	SIsMember(key, member string) bool
	SMembers(key string) []string
	SCard(key string) int
	SUnionStore(dest string, srcs ...string) int

	// Score-ordered sets. Rank ranges use -1 for "through the last rank".
	ZAdd(key string, score float64, member string)
	ZIncrBy(key string, delta float64, member string) float64
	ZRem(key string, members ...string) int
	ZScore(key, member string) (float64, bool)
	ZCard(key string) int
	ZRange(key string, start, stop int, rev bool) []ScoredMember
	ZUnionStore(dest string, srcs ...string) int

	// Sort returns the members of the set or score-ordered set at key,
	// ordered per opt, with pagination applied.
	Sort(key string, opt SortOptions) []string
}
