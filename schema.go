package odm

import (
	"fmt"
	"slices"
)

// IDMode selects how instance identifiers are produced.
type IDMode int

const (
	// IDAuto issues identifiers from the per-collection counter when the
	// caller supplies none; supplied numeric ids advance the counter's
	// high-water mark.
	IDAuto IDMode = iota
	// IDCustom uses the caller-supplied identifier as-is.
	IDCustom
	// IDComposite derives the identifier deterministically from the values
	// of the declared id fields.
	IDComposite
)

func (m IDMode) String() string {
	switch m {
	case IDAuto:
		return "auto"
	case IDCustom:
		return "custom"
	case IDComposite:
		return "composite"
	default:
		return fmt.Sprintf("IDMode(%d)", int(m))
	}
}

// CollectionKind selects the shape of every id set a collection uses.
type CollectionKind int

const (
	Unordered CollectionKind = iota
	Ordered                  // score-ordered
)

// IndexSpec declares an index on one field.
type IndexSpec struct {
	Unique bool
}

// RelationKind distinguishes the two ways a field can point at other data.
type RelationKind int

const (
	// RelStructure is an embedded per-id sub-collection stored under
	// "<ns>:obj:<id>:<field>".
	RelStructure RelationKind = iota
	// RelReference is a foreign-key field holding an id in another namespace.
	RelReference
)

// Relation declares a loadable relation on a field.
type Relation struct {
	Kind      RelationKind
	Namespace string   // target namespace, for RelReference
	Fields    []string // optional projection when fetching referenced rows
}

// Model is the immutable configuration of one collection. It is passed
// explicitly into every engine operation; the engine holds no global state.
type Model struct {
	Namespace   string
	IDMode      IDMode
	IDField     string   // defaults to "id"
	IDFields    []string // composite id fields, in declared order
	MultiFields []string // fields stored as per-id sub-collections
	Kind        CollectionKind
	AutoScore   bool // Ordered only: idset adds increment the stored score
	Indexes     map[string]IndexSpec
	Relations   map[string]Relation
}

func (m *Model) indexed(field string) (IndexSpec, bool) {
	spec, ok := m.Indexes[field]
	return spec, ok
}

func (m *Model) isMulti(field string) bool {
	return slices.Contains(m.MultiFields, field)
}

// Schema is a registry of models, keyed by namespace.
type Schema struct {
	models  map[string]*Model
	ordered []*Model
}

func NewSchema() *Schema {
	return &Schema{models: make(map[string]*Model)}
}

// AddModel validates the model configuration and registers it. Invalid
// configuration is a programming error and panics; unrecognized enum values
// are rejected here, at the boundary, not deep inside the engine.
func AddModel(scm *Schema, m Model) *Model {
	if m.Namespace == "" {
		panic("odm: model namespace must not be empty")
	}
	if scm.models[m.Namespace] != nil {
		panic(fmt.Errorf("odm: duplicate model namespace %q", m.Namespace))
	}
	switch m.IDMode {
	case IDAuto, IDCustom:
		if len(m.IDFields) > 0 {
			panic(fmt.Errorf("odm: %s: id fields are only valid in composite mode", m.Namespace))
		}
	case IDComposite:
		if len(m.IDFields) == 0 {
			panic(fmt.Errorf("odm: %s: composite mode requires id fields", m.Namespace))
		}
	default:
		panic(fmt.Errorf("odm: %s: unrecognized id mode %d", m.Namespace, int(m.IDMode)))
	}
	switch m.Kind {
	case Unordered:
		if m.AutoScore {
			panic(fmt.Errorf("odm: %s: additive scores require a score-ordered collection", m.Namespace))
		}
	case Ordered:
	default:
		panic(fmt.Errorf("odm: %s: unrecognized collection kind %d", m.Namespace, int(m.Kind)))
	}
	for field, rel := range m.Relations {
		switch rel.Kind {
		case RelStructure:
		case RelReference:
			if rel.Namespace == "" {
				panic(fmt.Errorf("odm: %s.%s: reference relation requires a target namespace", m.Namespace, field))
			}
		default:
			panic(fmt.Errorf("odm: %s.%s: unrecognized relation kind %d", m.Namespace, field, int(rel.Kind)))
		}
	}
	if m.IDField == "" {
		m.IDField = "id"
	}
	stored := m
	scm.models[stored.Namespace] = &stored
	scm.ordered = append(scm.ordered, &stored)
	return &stored
}

func (scm *Schema) Models() []*Model {
	return append([]*Model(nil), scm.ordered...)
}

func (scm *Schema) ModelNamed(ns string) *Model {
	m := scm.models[ns]
	if m == nil {
		panic(fmt.Errorf("odm: no model defined for namespace %q", ns))
	}
	return m
}
