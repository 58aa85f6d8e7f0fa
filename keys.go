package odm

import (
	"strings"

	"github.com/google/uuid"
)

// Key-space addressing: every storage key a collection touches is a pure
// function of its namespace and the field/id involved.
//
//	ns:obj:<id>          field map of one instance
//	ns:obj:<id>:<field>  multi-valued sub-collection
//	ns:uni:<field>       unique value→id map
//	ns:idx:<field>:<val> secondary index id set
//	ns:id                idset (membership authority)
//	ns:ids               auto-id counter
//	ns:tmp:<random>      scratch
func (m *Model) objectKey(id string) string {
	return m.Namespace + ":obj:" + id
}

func (m *Model) subKey(id, field string) string {
	return m.Namespace + ":obj:" + id + ":" + field
}

func (m *Model) uniqueKey(field string) string {
	return m.Namespace + ":uni:" + field
}

func (m *Model) indexKey(field, value string) string {
	return m.indexKeyPrefix(field) + value
}

func (m *Model) indexKeyPrefix(field string) string {
	return m.Namespace + ":idx:" + field + ":"
}

func (m *Model) idsetKey() string {
	return m.Namespace + ":id"
}

func (m *Model) counterKey() string {
	return m.Namespace + ":ids"
}

const scratchAttempts = 64

// scratchKey allocates a disposable key name not currently present in the
// substrate. Allocation probes random names; the attempt cap turns a
// misbehaving substrate into an error instead of an unbounded loop.
func scratchKey(stx SubstrateTx, ns string) (string, error) {
	for i := 0; i < scratchAttempts; i++ {
		key := ns + ":tmp:" + randomSuffix()
		if !stx.Exists(key) {
			return key, nil
		}
	}
	return "", ErrScratchExhausted
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
