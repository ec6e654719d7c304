package specdb

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fields is an ordered mapping of field id to field, in database order.
type Fields = orderedmap.OrderedMap[string, *Field]

// NewFields creates an empty field map.
func NewFields() *Fields {
	return orderedmap.New[string, *Field]()
}

// Service is a cloud service, e.g. name "aws-s3" with namespace "AWS::S3".
type Service struct {
	ID                      string `json:"$id"`
	Name                    string `json:"name"`
	ShortName               string `json:"shortName"`
	CloudFormationNamespace string `json:"cloudFormationNamespace"`
}

// Resource is a resource type, e.g. "AWS::S3::Bucket".
type Resource struct {
	ID                 string
	Name               string
	CloudFormationType string
	Documentation      string
	Attributes         *Fields
	Properties         *Fields
}

// TypeDefinition is a nested structured type used by resource properties.
type TypeDefinition struct {
	ID            string
	Name          string
	Documentation string
	Properties    *Fields
}

// Field is an attribute or property. PreviousTypes holds superseded type
// shapes in declaration order.
type Field struct {
	Type          PropertyType
	PreviousTypes []PropertyType
	Required      bool
	Documentation string
}

// Relation links two records by id.
type Relation struct {
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
}

const (
	// RelationHasResource links a service to a resource it contains
	RelationHasResource = "hasResource"
	// RelationUsesType links a resource to a type definition it references
	RelationUsesType = "usesType"
)

// Namespace returns the service namespace of the resource type name, e.g.
// "AWS::S3" for "AWS::S3::Bucket". ok is false for names with fewer than
// three segments.
func Namespace(typeName string) (string, bool) {
	i := strings.LastIndex(typeName, "::")
	if i <= 0 {
		return "", false
	}
	ns := typeName[:i]
	if !strings.Contains(ns, "::") {
		return "", false
	}
	return ns, true
}

// AttributeList returns attributes as a slice, in order.
func (r *Resource) AttributeList() []NamedField {
	return fieldList(r.Attributes)
}

// PropertyList returns properties as a slice, in order.
func (r *Resource) PropertyList() []NamedField {
	return fieldList(r.Properties)
}

// PropertyList returns properties as a slice, in order.
func (t *TypeDefinition) PropertyList() []NamedField {
	return fieldList(t.Properties)
}

// NamedField pairs a field with its id.
type NamedField struct {
	Name string
	*Field
}

func fieldList(fields *Fields) []NamedField {
	if fields == nil {
		return nil
	}
	out := make([]NamedField, 0, fields.Len())
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, NamedField{Name: pair.Key, Field: pair.Value})
	}
	return out
}

type wireResource struct {
	ID                 string          `json:"$id"`
	Name               string          `json:"name"`
	CloudFormationType string          `json:"cloudFormationType"`
	Documentation      string          `json:"documentation,omitempty"`
	Attributes         json.RawMessage `json:"attributes,omitempty"`
	Properties         json.RawMessage `json:"properties,omitempty"`
}

type wireTypeDefinition struct {
	ID            string          `json:"$id"`
	Name          string          `json:"name"`
	Documentation string          `json:"documentation,omitempty"`
	Properties    json.RawMessage `json:"properties,omitempty"`
}

type wireField struct {
	Type          json.RawMessage   `json:"type"`
	PreviousTypes []json.RawMessage `json:"previousTypes,omitempty"`
	Required      bool              `json:"required,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
}

// UnmarshalJSON decodes a resource keeping attribute and property order.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var w wireResource
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	attrs, err := decodeFields(w.Attributes, w.CloudFormationType+".attributes")
	if err != nil {
		return err
	}
	props, err := decodeFields(w.Properties, w.CloudFormationType+".properties")
	if err != nil {
		return err
	}
	*r = Resource{
		ID:                 w.ID,
		Name:               w.Name,
		CloudFormationType: w.CloudFormationType,
		Documentation:      w.Documentation,
		Attributes:         attrs,
		Properties:         props,
	}
	return nil
}

// MarshalJSON encodes a resource in the database wire format.
func (r *Resource) MarshalJSON() ([]byte, error) {
	attrs, err := encodeFields(r.Attributes)
	if err != nil {
		return nil, err
	}
	props, err := encodeFields(r.Properties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireResource{
		ID:                 r.ID,
		Name:               r.Name,
		CloudFormationType: r.CloudFormationType,
		Documentation:      r.Documentation,
		Attributes:         attrs,
		Properties:         props,
	})
}

// UnmarshalJSON decodes a type definition keeping property order.
func (t *TypeDefinition) UnmarshalJSON(data []byte) error {
	var w wireTypeDefinition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	props, err := decodeFields(w.Properties, w.ID+"("+w.Name+").properties")
	if err != nil {
		return err
	}
	*t = TypeDefinition{
		ID:            w.ID,
		Name:          w.Name,
		Documentation: w.Documentation,
		Properties:    props,
	}
	return nil
}

// MarshalJSON encodes a type definition in the database wire format.
func (t *TypeDefinition) MarshalJSON() ([]byte, error) {
	props, err := encodeFields(t.Properties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTypeDefinition{
		ID:            t.ID,
		Name:          t.Name,
		Documentation: t.Documentation,
		Properties:    props,
	})
}

func decodeFields(data json.RawMessage, subject string) (*Fields, error) {
	fields := NewFields()
	if len(data) == 0 || string(data) == "null" {
		return fields, nil
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", subject, err)
	}

	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		f, err := decodeField(pair.Value, subject+"."+pair.Key)
		if err != nil {
			return nil, err
		}
		fields.Set(pair.Key, f)
	}
	return fields, nil
}

func decodeField(data json.RawMessage, subject string) (*Field, error) {
	var w wireField
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", subject, err)
	}
	if len(w.Type) == 0 {
		return nil, fmt.Errorf("%s: field without type", subject)
	}

	t, err := DecodePropertyType(w.Type, subject)
	if err != nil {
		return nil, err
	}

	f := &Field{Type: t, Required: w.Required, Documentation: w.Documentation}
	for i, raw := range w.PreviousTypes {
		pt, err := DecodePropertyType(raw, fmt.Sprintf("%s.previousTypes[%d]", subject, i))
		if err != nil {
			return nil, err
		}
		f.PreviousTypes = append(f.PreviousTypes, pt)
	}
	return f, nil
}

func encodeFields(fields *Fields) (json.RawMessage, error) {
	out := orderedmap.New[string, json.RawMessage]()
	if fields != nil {
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			data, err := encodeField(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair.Key, err)
			}
			out.Set(pair.Key, data)
		}
	}
	return json.Marshal(out)
}

func encodeField(f *Field) (json.RawMessage, error) {
	t, err := EncodePropertyType(f.Type)
	if err != nil {
		return nil, err
	}
	w := wireField{Type: t, Required: f.Required, Documentation: f.Documentation}
	for _, pt := range f.PreviousTypes {
		data, err := EncodePropertyType(pt)
		if err != nil {
			return nil, err
		}
		w.PreviousTypes = append(w.PreviousTypes, data)
	}
	return json.Marshal(w)
}
