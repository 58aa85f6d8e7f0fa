package odm

import (
	"errors"
	"sort"
	"testing"
)

func addBook(t *testing.T, tx *Tx, title, price, authorID string, score float64) string {
	t.Helper()
	fields := map[string]string{"title": title, "price": price}
	if authorID != "" {
		fields["author_id"] = authorID
	}
	return commitOne(t, tx, booksModel, Instance{Action: ActionAdd, Score: score, Fields: fields}).ID
}

func TestLoadGet(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		addFields(t, tx, usersModel, map[string]string{"email": "a@x"})
		addFields(t, tx, usersModel, map[string]string{"email": "b@x"})

		res, err := Load(tx, usersModel, "users:id", LoadOptions{Get: true})
		noErr(t, err)
		ids := append([]string(nil), res.IDs...)
		sort.Strings(ids)
		deepEqual(t, ids, []string{"1", "2"})
		eq(t, len(res.Rows), 0)
	})
}

func TestLoadRows(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		addFields(t, tx, usersModel, map[string]string{"email": "a@x", "name": "ann"})

		res, err := Load(tx, usersModel, "users:id", LoadOptions{})
		noErr(t, err)
		eq(t, len(res.Rows), 1)
		eq(t, res.Rows[0].ID, "1")
		deepEqual(t, res.Rows[0].Fields, map[string]string{"email": "a@x", "name": "ann"})

		res, err = Load(tx, usersModel, "users:id", LoadOptions{Fields: []string{"name"}})
		noErr(t, err)
		deepEqual(t, res.Rows[0].Fields, map[string]string{"name": "ann"})

		// Projecting exactly the id field yields bare ids.
		res, err = Load(tx, usersModel, "users:id", LoadOptions{Fields: []string{"id"}})
		noErr(t, err)
		deepEqual(t, res.IDs, []string{"1"})
		eq(t, len(res.Rows), 0)
	})
}

func TestLoadRequiresKey(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		_, err := Load(tx, usersModel, "", LoadOptions{})
		var ke *KeyError
		if !errors.As(err, &ke) {
			t.Fatalf("** got %v, wanted a KeyError", err)
		}
	})
}

func TestLoadScoreOrdering(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		b1 := addBook(t, tx, "one", "10", "", 3)
		b2 := addBook(t, tx, "two", "5", "", 1)
		b3 := addBook(t, tx, "three", "20", "", 2)

		res, err := Load(tx, booksModel, "books:id", LoadOptions{Ordering: OrderASC, Start: 0, Stop: -1})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b2, b3, b1})

		res, err = Load(tx, booksModel, "books:id", LoadOptions{Ordering: OrderDESC, Start: 0, Stop: -1})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b1, b3, b2})

		res, err = Load(tx, booksModel, "books:id", LoadOptions{Ordering: OrderASC, Start: 1, Stop: 1})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b3})
	})
}

func TestLoadScoreOrderingRequiresOrderedKind(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		addFields(t, tx, usersModel, map[string]string{"email": "a@x"})
		_, err := Load(tx, usersModel, "users:id", LoadOptions{Ordering: OrderASC, Stop: -1})
		var qe *QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("** got %v, wanted a QueryError", err)
		}
	})
}

func TestExplicitOrderingByField(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		b1 := addBook(t, tx, "one", "10", "", 0)
		b2 := addBook(t, tx, "two", "5", "", 0)
		b3 := addBook(t, tx, "three", "20", "", 0)

		res, err := Load(tx, booksModel, "books:id", LoadOptions{
			Ordering: OrderExplicit,
			Order:    Order{Field: "price"},
		})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b2, b1, b3})

		res, err = Load(tx, booksModel, "books:id", LoadOptions{
			Ordering: OrderExplicit,
			Order:    Order{Field: "price", Desc: true},
		})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b3, b1, b2})
	})
}

func TestExplicitOrderingAlphaAndPagination(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		addBook(t, tx, "cherry", "1", "", 0)
		addBook(t, tx, "apple", "2", "", 0)
		addBook(t, tx, "banana", "3", "", 0)

		res, err := Load(tx, booksModel, "books:id", LoadOptions{
			Ordering: OrderExplicit,
			Order:    Order{Field: "title", Alpha: true},
			Fields:   []string{"title"},
		})
		noErr(t, err)
		deepEqual(t, rowTitles(res), []string{"apple", "banana", "cherry"})

		res, err = Load(tx, booksModel, "books:id", LoadOptions{
			Ordering: OrderExplicit,
			Order:    Order{Field: "title", Alpha: true},
			Start:    1,
			Stop:     1,
			Fields:   []string{"title"},
		})
		noErr(t, err)
		deepEqual(t, rowTitles(res), []string{"banana"})
	})
}

func TestExplicitOrderingNested(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		a1 := addFields(t, tx, authorsModel, map[string]string{"name": "zola"})
		a2 := addFields(t, tx, authorsModel, map[string]string{"name": "adams"})
		b1 := addBook(t, tx, "one", "10", a1, 0)
		b2 := addBook(t, tx, "two", "5", a2, 0)

		res, err := Load(tx, booksModel, "books:id", LoadOptions{
			Ordering: OrderExplicit,
			Order: Order{
				Field:  "name",
				Alpha:  true,
				Nested: []Hop{{Field: "author_id", Namespace: "authors"}},
			},
		})
		noErr(t, err)
		deepEqual(t, rowIDs(res), []string{b2, b1})

		// Scratch staging must not leak into the namespace.
		deepEqual(t, tx.Substrate().KeysWithPrefix("books:tmp:"), []string(nil))
	})
}

func TestLoadRelated(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		g := addFields(t, tx, groupsModel, map[string]string{"name": "staff", "note": "x"})
		u1 := addFields(t, tx, usersModel, map[string]string{"email": "a@x", "group": g})
		u2 := addFields(t, tx, usersModel, map[string]string{"email": "b@x", "group": g})
		tx.Substrate().SAdd(usersModel.subKey(u1, "tags"), "red", "blue")

		res, err := Load(tx, usersModel, "users:id", LoadOptions{Related: []string{"tags", "group"}})
		noErr(t, err)

		tags := res.Structures["tags"]
		deepEqual(t, tags[u1], []string{"blue", "red"})
		deepEqual(t, tags[u2], []string(nil))

		// One fetch per distinct foreign id, projected to declared fields.
		groups := res.References["group"]
		eq(t, len(groups), 1)
		deepEqual(t, groups[g].Fields, map[string]string{"name": "staff"})
	})
}

func TestLoadRelatedUnknownRelation(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		addFields(t, tx, usersModel, map[string]string{"email": "a@x"})
		_, err := Load(tx, usersModel, "users:id", LoadOptions{Related: []string{"bogus"}})
		var qe *QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("** got %v, wanted a QueryError", err)
		}
	})
}

func rowIDs(res *LoadResult) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, row.ID)
	}
	return out
}

func rowTitles(res *LoadResult) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, row.Fields["title"])
	}
	return out
}
