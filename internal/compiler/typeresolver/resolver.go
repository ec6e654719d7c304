// Package typeresolver converts property type descriptors from the
// specification database into canonical value types.
package typeresolver

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// DefaultTagType is the named type tags resolve to.
const DefaultTagType = "aws-cdk-lib.CfnTag"

// Lookup gets type definitions by id. specdb.Database satisfies it.
type Lookup interface {
	TypeDefinition(id string) (*specdb.TypeDefinition, error)
}

// References maps each referenced type definition id to its short name, in
// the order the references were first seen.
type References = orderedmap.OrderedMap[string, string]

// NewReferences creates an empty reference map.
func NewReferences() *References {
	return orderedmap.New[string, string]()
}

// Options configures a Resolver.
type Options struct {
	// TagType is the qualified name tags resolve to. Defaults to DefaultTagType.
	TagType string
}

// Resolver resolves property types. It holds no mutable state and is safe
// for concurrent use.
type Resolver struct {
	lookup  Lookup
	tagType string
}

// New creates a resolver reading type definitions from lookup.
func New(lookup Lookup, opts Options) *Resolver {
	tagType := opts.TagType
	if tagType == "" {
		tagType = DefaultTagType
	}
	return &Resolver{lookup: lookup, tagType: tagType}
}

// Resolve converts t into a value type. References to type definitions
// become named types "<owner>.<ShortName>" and are collected into the
// returned map.
func (r *Resolver) Resolve(t specdb.PropertyType, owner string) (schema.ValueType, *References, error) {
	refs := NewReferences()
	vt, err := r.resolve(t, owner, refs)
	if err != nil {
		return nil, nil, err
	}
	return vt, refs, nil
}

// ResolveField resolves a field's effective value type.
//
// The current type and every previous type are resolved. When previous types
// are declared the last one is the effective type. The returned references cover all resolved shapes, current type first.
func (r *Resolver) ResolveField(f *specdb.Field, owner string) (schema.ValueType, *References, error) {
	if f == nil {
		return nil, nil, fmt.Errorf("field cannot be nil")
	}

	refs := NewReferences()
	effective, err := r.resolve(f.Type, owner, refs)
	if err != nil {
		return nil, nil, err
	}

	for _, prev := range f.PreviousTypes {
		vt, err := r.resolve(prev, owner, refs)
		if err != nil {
			return nil, nil, err
		}
		effective = vt
	}

	return effective, refs, nil
}

func (r *Resolver) resolve(t specdb.PropertyType, owner string, refs *References) (schema.ValueType, error) {
	switch t := t.(type) {
	case *specdb.PrimitiveType:
		kind, ok := primitiveKind(t.Name)
		if !ok {
			return nil, cerrors.NewUnknownPropertyType(owner, string(t.Name))
		}
		return schema.Primitive{Kind: kind}, nil

	case *specdb.TagType:
		return schema.Named{Name: r.tagType}, nil

	case *specdb.RefType:
		td, err := r.lookup.TypeDefinition(t.Ref)
		if err != nil {
			return nil, cerrors.NewDanglingReference(owner, t.Ref).WithCause(err)
		}
		if _, seen := refs.Get(t.Ref); !seen {
			refs.Set(t.Ref, td.Name)
		}
		return schema.Named{Name: owner + "." + td.Name}, nil

	case *specdb.ArrayType:
		el, err := r.resolve(t.Element, owner, refs)
		if err != nil {
			return nil, err
		}
		return schema.ListOf{Element: el}, nil

	case *specdb.MapType:
		el, err := r.resolve(t.Element, owner, refs)
		if err != nil {
			return nil, err
		}
		return schema.MapOf{Element: el}, nil

	case *specdb.UnionType:
		types := make([]schema.ValueType, 0, len(t.Types))
		for _, member := range t.Types {
			vt, err := r.resolve(member, owner, refs)
			if err != nil {
				return nil, err
			}
			types = append(types, vt)
		}
		return schema.UnionOf{Types: types}, nil

	default:
		return nil, cerrors.NewUnknownPropertyType(owner, fmt.Sprintf("%T", t))
	}
}

func primitiveKind(kind specdb.TypeKind) (schema.PrimitiveKind, bool) {
	switch kind {
	case specdb.KindString:
		return schema.PrimitiveString, true
	case specdb.KindBoolean:
		return schema.PrimitiveBoolean, true
	case specdb.KindNumber, specdb.KindInteger:
		return schema.PrimitiveNumber, true
	case specdb.KindDateTime:
		return schema.PrimitiveDate, true
	case specdb.KindJSON:
		return schema.PrimitiveJSON, true
	case specdb.KindNull:
		return schema.PrimitiveUndefined, true
	default:
		return "", false
	}
}
