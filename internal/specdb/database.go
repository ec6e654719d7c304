// Package specdb provides the normalized cloud-resource specification
// database consumed by the schema compiler: a typed record model, property
// type descriptors, an immutable in-memory snapshot with lookup, traversal
// and get-by-id queries, and loaders for files, object storage and SQL.
package specdb

import (
	"fmt"
	"strings"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
)

// Database is the read-only query surface of a specification database.
// All sequence-returning methods return records in the database's stable order.
type Database interface {
	Services() []*Service
	Resources() []*Resource
	TypeDefinitions() []*TypeDefinition

	// LookupServices returns the services whose field matches value under op
	LookupServices(field ServiceField, op Operator, value string) *Result[*Service]

	// ServiceResources follows the hasResource relation
	ServiceResources(svc *Service) []*Resource
	// ResourceTypes follows the usesType relation
	ResourceTypes(res *Resource) []*TypeDefinition

	Service(id string) (*Service, error)
	Resource(id string) (*Resource, error)
	TypeDefinition(id string) (*TypeDefinition, error)
}

// ServiceField names a queryable service field.
type ServiceField string

const (
	ServiceName      ServiceField = "name"
	ServiceShortName ServiceField = "shortName"
	ServiceNamespace ServiceField = "cloudFormationNamespace"
)

// Operator is a lookup comparison.
type Operator string

const (
	OpEquals Operator = "equals"
	OpPrefix Operator = "prefix"
)

func (op Operator) match(have, want string) bool {
	switch op {
	case OpEquals:
		return have == want
	case OpPrefix:
		return strings.HasPrefix(have, want)
	default:
		return false
	}
}

// Result is the result set of a lookup.
type Result[T any] struct {
	field   ServiceField
	value   string
	matches []T
	names   func(T) string
}

// All returns every match in database order.
func (r *Result[T]) All() []T {
	return r.matches
}

// Len returns the number of matches.
func (r *Result[T]) Len() int {
	return len(r.matches)
}

// Only returns the single match. It fails with SVC201 when nothing matched
// and SVC202 when more than one record matched.
func (r *Result[T]) Only() (T, error) {
	var zero T
	switch len(r.matches) {
	case 1:
		return r.matches[0], nil
	case 0:
		return zero, cerrors.NewServiceNotFound(string(r.field), r.value)
	default:
		names := make([]string, 0, len(r.matches))
		for _, m := range r.matches {
			names = append(names, r.names(m))
		}
		return zero, cerrors.NewAmbiguousService(string(r.field), r.value, names)
	}
}

// Snapshot is an immutable in-memory Database. Build one with NewSnapshot or
// any of the loaders; it must not be modified after construction.
type Snapshot struct {
	services        []*Service
	resources       []*Resource
	typeDefinitions []*TypeDefinition
	relations       []Relation

	servicesByID  map[string]*Service
	resourcesByID map[string]*Resource
	typesByID     map[string]*TypeDefinition
	outgoing      map[string][]Relation
}

var _ Database = (*Snapshot)(nil)

// NewSnapshot indexes the given records. Duplicate ids are rejected.
func NewSnapshot(services []*Service, resources []*Resource, types []*TypeDefinition, relations []Relation) (*Snapshot, error) {
	s := &Snapshot{
		services:        services,
		resources:       resources,
		typeDefinitions: types,
		relations:       relations,
		servicesByID:    make(map[string]*Service, len(services)),
		resourcesByID:   make(map[string]*Resource, len(resources)),
		typesByID:       make(map[string]*TypeDefinition, len(types)),
		outgoing:        make(map[string][]Relation),
	}

	for _, svc := range services {
		if _, dup := s.servicesByID[svc.ID]; dup {
			return nil, fmt.Errorf("duplicate service id %q", svc.ID)
		}
		s.servicesByID[svc.ID] = svc
	}
	for _, res := range resources {
		if _, dup := s.resourcesByID[res.ID]; dup {
			return nil, fmt.Errorf("duplicate resource id %q", res.ID)
		}
		if res.Attributes == nil {
			res.Attributes = NewFields()
		}
		if res.Properties == nil {
			res.Properties = NewFields()
		}
		s.resourcesByID[res.ID] = res
	}
	for _, td := range types {
		if _, dup := s.typesByID[td.ID]; dup {
			return nil, fmt.Errorf("duplicate type definition id %q", td.ID)
		}
		if td.Properties == nil {
			td.Properties = NewFields()
		}
		s.typesByID[td.ID] = td
	}
	for _, rel := range relations {
		s.outgoing[rel.From] = append(s.outgoing[rel.From], rel)
	}

	return s, nil
}

// Services returns all services.
func (s *Snapshot) Services() []*Service { return s.services }

// Resources returns all resources.
func (s *Snapshot) Resources() []*Resource { return s.resources }

// TypeDefinitions returns all type definitions.
func (s *Snapshot) TypeDefinitions() []*TypeDefinition { return s.typeDefinitions }

// Relations returns all relations.
func (s *Snapshot) Relations() []Relation { return s.relations }

// LookupServices filters services by field.
func (s *Snapshot) LookupServices(field ServiceField, op Operator, value string) *Result[*Service] {
	res := &Result[*Service]{
		field: field,
		value: value,
		names: func(svc *Service) string { return svc.Name },
	}
	for _, svc := range s.services {
		var have string
		switch field {
		case ServiceName:
			have = svc.Name
		case ServiceShortName:
			have = svc.ShortName
		case ServiceNamespace:
			have = svc.CloudFormationNamespace
		}
		if op.match(have, value) {
			res.matches = append(res.matches, svc)
		}
	}
	return res
}

// ServiceResources returns the resources a service contains.
func (s *Snapshot) ServiceResources(svc *Service) []*Resource {
	var out []*Resource
	for _, rel := range s.outgoing[svc.ID] {
		if rel.Kind != RelationHasResource {
			continue
		}
		if res, ok := s.resourcesByID[rel.To]; ok {
			out = append(out, res)
		}
	}
	return out
}

// ResourceTypes returns the type definitions a resource uses.
func (s *Snapshot) ResourceTypes(res *Resource) []*TypeDefinition {
	var out []*TypeDefinition
	for _, rel := range s.outgoing[res.ID] {
		if rel.Kind != RelationUsesType {
			continue
		}
		if td, ok := s.typesByID[rel.To]; ok {
			out = append(out, td)
		}
	}
	return out
}

// Service returns the service with the given id.
func (s *Snapshot) Service(id string) (*Service, error) {
	if svc, ok := s.servicesByID[id]; ok {
		return svc, nil
	}
	return nil, cerrors.NewUnknownRecord("service", id)
}

// Resource returns the resource with the given id.
func (s *Snapshot) Resource(id string) (*Resource, error) {
	if res, ok := s.resourcesByID[id]; ok {
		return res, nil
	}
	return nil, cerrors.NewUnknownRecord("resource", id)
}

// TypeDefinition returns the type definition with the given id.
func (s *Snapshot) TypeDefinition(id string) (*TypeDefinition, error) {
	if td, ok := s.typesByID[id]; ok {
		return td, nil
	}
	return nil, cerrors.NewUnknownRecord("type definition", id)
}

// ServiceForType resolves the owning service of a resource type name by
// matching its namespace against service namespaces. Exactly one service
// must match.
func ServiceForType(db Database, typeName string) (*Service, error) {
	ns, ok := Namespace(typeName)
	if !ok {
		return nil, cerrors.NewInvalidTypeName(typeName)
	}
	svc, err := db.LookupServices(ServiceNamespace, OpEquals, ns).Only()
	if err != nil {
		if ce, ok := cerrors.AsCompilerError(err); ok {
			ce.WithSubject(typeName)
		}
		return nil, err
	}
	return svc, nil
}
