package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PrimitiveKind is a canonical scalar kind.
type PrimitiveKind string

const (
	PrimitiveString    PrimitiveKind = "string"
	PrimitiveBoolean   PrimitiveKind = "boolean"
	PrimitiveNumber    PrimitiveKind = "number"
	PrimitiveDate      PrimitiveKind = "date"
	PrimitiveJSON      PrimitiveKind = "json"
	PrimitiveUndefined PrimitiveKind = "undefined"
)

// ValueType is a canonical value type. Implementations: Primitive, Named,
// ListOf, MapOf and UnionOf. Each serializes as a single-key object, e.g.
// {"listOf":{"primitive":"string"}}.
type ValueType interface {
	fmt.Stringer
	json.Marshaler

	// Equals reports structural equality
	Equals(other ValueType) bool

	valueType()
}

// Primitive is a scalar value type.
type Primitive struct {
	Kind PrimitiveKind
}

// Named refers to a structured type by qualified name.
type Named struct {
	Name string
}

// ListOf is a list of Element.
type ListOf struct {
	Element ValueType
}

// MapOf is a string-keyed map of Element.
type MapOf struct {
	Element ValueType
}

// UnionOf is one of Types, in declaration order.
type UnionOf struct {
	Types []ValueType
}

func (Primitive) valueType() {}
func (Named) valueType() {}
func (ListOf) valueType() {}
func (MapOf) valueType() {}
func (UnionOf) valueType() {}

func (p Primitive) String() string { return string(p.Kind) }
func (n Named) String() string { return n.Name }
func (l ListOf) String() string { return "List<" + l.Element.String() + ">" }
func (m MapOf) String() string { return "Map<" + m.Element.String() + ">" }

func (u UnionOf) String() string {
	parts := make([]string, len(u.Types))
	for i, t := range u.Types {
		parts[i] = t.String()
	}
	return strings.Join(parts, " | ")
}

func (p Primitive) Equals(other ValueType) bool {
	o, ok := other.(Primitive)
	return ok && o.Kind == p.Kind
}

func (n Named) Equals(other ValueType) bool {
	o, ok := other.(Named)
	return ok && o.Name == n.Name
}

func (l ListOf) Equals(other ValueType) bool {
	o, ok := other.(ListOf)
	return ok && l.Element.Equals(o.Element)
}

func (m MapOf) Equals(other ValueType) bool {
	o, ok := other.(MapOf)
	return ok && m.Element.Equals(o.Element)
}

func (u UnionOf) Equals(other ValueType) bool {
	o, ok := other.(UnionOf)
	if !ok || len(o.Types) != len(u.Types) {
		return false
	}
	for i := range u.Types {
		if !u.Types[i].Equals(o.Types[i]) {
			return false
		}
	}
	return true
}

func (p Primitive) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Primitive PrimitiveKind `json:"primitive"`
	}{p.Kind})
}

func (n Named) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Named string `json:"named"`
	}{n.Name})
}

func (l ListOf) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ListOf ValueType `json:"listOf"`
	}{l.Element})
}

func (m MapOf) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MapOf ValueType `json:"mapOf"`
	}{m.Element})
}

func (u UnionOf) MarshalJSON() ([]byte, error) {
	types := u.Types
	if types == nil {
		types = []ValueType{}
	}
	return json.Marshal(struct {
		UnionOf []ValueType `json:"unionOf"`
	}{types})
}
