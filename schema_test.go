package odm

import "testing"

func TestModelDefaults(t *testing.T) {
	scm := NewSchema()
	m := AddModel(scm, Model{Namespace: "things"})
	eq(t, m.IDField, "id")
	eq(t, m.IDMode, IDAuto)
	eq(t, m.Kind, Unordered)
	eq(t, scm.ModelNamed("things"), m)
}

func TestModelValidation(t *testing.T) {
	cases := []struct {
		name  string
		model Model
	}{
		{"empty namespace", Model{}},
		{"composite without id fields", Model{Namespace: "x", IDMode: IDComposite}},
		{"id fields outside composite", Model{Namespace: "x", IDMode: IDAuto, IDFields: []string{"a"}}},
		{"additive score unordered", Model{Namespace: "x", AutoScore: true}},
		{"bad id mode", Model{Namespace: "x", IDMode: IDMode(99)}},
		{"bad kind", Model{Namespace: "x", Kind: CollectionKind(99)}},
		{"reference without namespace", Model{Namespace: "x", Relations: map[string]Relation{"r": {Kind: RelReference}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("** expected AddModel to panic")
				}
			}()
			AddModel(NewSchema(), c.model)
		})
	}
}

func TestDuplicateNamespacePanics(t *testing.T) {
	scm := NewSchema()
	AddModel(scm, Model{Namespace: "dup"})
	defer func() {
		if recover() == nil {
			t.Errorf("** expected AddModel to panic")
		}
	}()
	AddModel(scm, Model{Namespace: "dup"})
}
