/*
Package odm implements an object-data mapping engine on top of a generic
key-value substrate (in-memory or Bolt; any server exposing the same
structures works).

We implement:

1. Models, collections of identified instances holding flat string field
maps, configured with a namespace, an identifier mode (auto-incrementing,
custom, or composite-of-fields), and a collection kind (unordered or
score-ordered).

2. Commit, an atomic per-instance write path that resolves identifiers,
maintains unique and non-unique secondary indexes, and rolls back an
instance's effects on a unique-constraint conflict.

3. Queries, building a destination id set from membership, equality, and
range conditions resolved through the indexes.

4. Load, materializing result rows with score or explicit ordering
(including sort keys reached through foreign-key hops) and related-object
loading.

# Technical Details

**Key space.**
All storage keys of a collection derive from its namespace:
"ns:obj:<id>" holds an instance's field map, "ns:obj:<id>:<field>" a
multi-valued sub-collection, "ns:uni:<field>" a unique value→id map,
"ns:idx:<field>:<value>" a secondary index set, "ns:id" the idset,
"ns:ids" the auto-id counter, and "ns:tmp:<random>" scratch space.

**Idset.**
The idset is the membership authority: an id is live iff present there.
Index entries for an id are removed before, or in the same operation as,
its removal from the idset.

**Atomicity.**
The engine has no internal concurrency. Every public operation runs inside
one substrate transaction, and writable transactions are exclusive; a
failed commit rolls back its own partial effects before returning, so no
later operation observes them.

**Scores.**
Score-ordered collections attach a float score to every idset and index
entry; with additive scoring configured, committing an instance increments
its stored score instead of overwriting it.
*/
package odm
