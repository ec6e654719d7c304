package specdb

import (
	"encoding/json"
	"fmt"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
)

// TypeKind is the tag of a property type descriptor as it appears in the database.
type TypeKind string

const (
	KindString   TypeKind = "string"
	KindBoolean  TypeKind = "boolean"
	KindNumber   TypeKind = "number"
	KindInteger  TypeKind = "integer"
	KindDateTime TypeKind = "date-time"
	KindJSON     TypeKind = "json"
	KindNull     TypeKind = "null"
	KindTag      TypeKind = "tag"
	KindRef      TypeKind = "ref"
	KindArray    TypeKind = "array"
	KindMap      TypeKind = "map"
	KindUnion    TypeKind = "union"
)

// PropertyType is a property type descriptor. The set of implementations is
// closed: PrimitiveType, TagType, RefType, ArrayType, MapType and UnionType.
type PropertyType interface {
	// Kind returns the descriptor tag
	Kind() TypeKind

	// String returns a compact human-readable form, e.g. "array<ref:abc>"
	String() string

	sealed()
}

// PrimitiveType is a scalar property type (string, boolean, number, integer,
// date-time, json or null).
type PrimitiveType struct {
	Name TypeKind
}

// TagType is the well-known key/value tag structure.
type TagType struct{}

// RefType points at a type definition by id.
type RefType struct {
	Ref string
}

// ArrayType is a list of Element.
type ArrayType struct {
	Element PropertyType
}

// MapType is a string-keyed map of Element.
type MapType struct {
	Element PropertyType
}

// UnionType is one of Types, in declaration order.
type UnionType struct {
	Types []PropertyType
}

func (p *PrimitiveType) Kind() TypeKind { return p.Name }
func (*TagType) Kind() TypeKind { return KindTag }
func (*RefType) Kind() TypeKind { return KindRef }
func (*ArrayType) Kind() TypeKind { return KindArray }
func (*MapType) Kind() TypeKind { return KindMap }
func (*UnionType) Kind() TypeKind { return KindUnion }

func (p *PrimitiveType) String() string { return string(p.Name) }
func (*TagType) String() string { return string(KindTag) }
func (r *RefType) String() string { return "ref:" + r.Ref }
func (a *ArrayType) String() string { return fmt.Sprintf("array<%s>", a.Element) }
func (m *MapType) String() string { return fmt.Sprintf("map<%s>", m.Element) }

func (u *UnionType) String() string {
	s := "union<"
	for i, t := range u.Types {
		if i > 0 {
			s += " | "
		}
		s += t.String()
	}
	return s + ">"
}

func (*PrimitiveType) sealed() {}
func (*TagType) sealed() {}
func (*RefType) sealed() {}
func (*ArrayType) sealed() {}
func (*MapType) sealed() {}
func (*UnionType) sealed() {}

// Convenience constructors, mostly used by tests and fixtures.

func String() PropertyType { return &PrimitiveType{Name: KindString} }
func Boolean() PropertyType { return &PrimitiveType{Name: KindBoolean} }
func Number() PropertyType { return &PrimitiveType{Name: KindNumber} }
func Integer() PropertyType { return &PrimitiveType{Name: KindInteger} }
func DateTime() PropertyType { return &PrimitiveType{Name: KindDateTime} }
func JSON() PropertyType { return &PrimitiveType{Name: KindJSON} }
func Null() PropertyType { return &PrimitiveType{Name: KindNull} }
func Tag() PropertyType { return &TagType{} }
func Ref(id string) PropertyType { return &RefType{Ref: id} }
func ArrayOf(el PropertyType) PropertyType { return &ArrayType{Element: el} }
func MapOf(el PropertyType) PropertyType { return &MapType{Element: el} }
func UnionOf(ts ...PropertyType) PropertyType { return &UnionType{Types: ts} }

// wirePropertyType is the JSON shape of a descriptor:
//
//	{"type":"string"}
//	{"type":"ref","reference":{"$ref":"<id>"}}
//	{"type":"array","element":{...}}
//	{"type":"union","types":[{...},{...}]}
type wirePropertyType struct {
	Type      TypeKind          `json:"type"`
	Reference *wireReference    `json:"reference,omitempty"`
	Element   json.RawMessage   `json:"element,omitempty"`
	Types     []json.RawMessage `json:"types,omitempty"`
}

type wireReference struct {
	Ref string `json:"$ref"`
}

// DecodePropertyType decodes a descriptor. subject names the field for error
// reporting. Unknown tags are rejected with a TYP101 error.
func DecodePropertyType(data []byte, subject string) (PropertyType, error) {
	var w wirePropertyType
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", subject, err)
	}

	switch w.Type {
	case KindString, KindBoolean, KindNumber, KindInteger, KindDateTime, KindJSON, KindNull:
		return &PrimitiveType{Name: w.Type}, nil
	case KindTag:
		return &TagType{}, nil
	case KindRef:
		if w.Reference == nil || w.Reference.Ref == "" {
			return nil, fmt.Errorf("%s: ref type without reference", subject)
		}
		return &RefType{Ref: w.Reference.Ref}, nil
	case KindArray, KindMap:
		if len(w.Element) == 0 {
			return nil, fmt.Errorf("%s: %s type without element", subject, w.Type)
		}
		el, err := DecodePropertyType(w.Element, subject+"[]")
		if err != nil {
			return nil, err
		}
		if w.Type == KindArray {
			return &ArrayType{Element: el}, nil
		}
		return &MapType{Element: el}, nil
	case KindUnion:
		types := make([]PropertyType, 0, len(w.Types))
		for i, raw := range w.Types {
			t, err := DecodePropertyType(raw, fmt.Sprintf("%s|%d", subject, i))
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
		return &UnionType{Types: types}, nil
	default:
		return nil, cerrors.NewUnknownPropertyType(subject, string(w.Type))
	}
}

// EncodePropertyType is the inverse of DecodePropertyType.
func EncodePropertyType(t PropertyType) ([]byte, error) {
	w, err := toWire(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

type wireOut struct {
	Type      TypeKind       `json:"type"`
	Reference *wireReference `json:"reference,omitempty"`
	Element   *wireOut       `json:"element,omitempty"`
	Types     []*wireOut     `json:"types,omitempty"`
}

func toWire(t PropertyType) (*wireOut, error) {
	switch v := t.(type) {
	case *PrimitiveType:
		return &wireOut{Type: v.Name}, nil
	case *TagType:
		return &wireOut{Type: KindTag}, nil
	case *RefType:
		return &wireOut{Type: KindRef, Reference: &wireReference{Ref: v.Ref}}, nil
	case *ArrayType:
		el, err := toWire(v.Element)
		if err != nil {
			return nil, err
		}
		return &wireOut{Type: KindArray, Element: el}, nil
	case *MapType:
		el, err := toWire(v.Element)
		if err != nil {
			return nil, err
		}
		return &wireOut{Type: KindMap, Element: el}, nil
	case *UnionType:
		out := &wireOut{Type: KindUnion, Types: make([]*wireOut, 0, len(v.Types))}
		for _, member := range v.Types {
			m, err := toWire(member)
			if err != nil {
				return nil, err
			}
			out.Types = append(out.Types, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported property type %T", t)
	}
}
