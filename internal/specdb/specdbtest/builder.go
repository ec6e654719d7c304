// Package specdbtest builds small specification databases for tests.
package specdbtest

import (
	"testing"

	"github.com/cfnschema/cfnschema/internal/specdb"
)

// Builder accumulates records in insertion order.
type Builder struct {
	services  []*specdb.Service
	resources []*specdb.Resource
	types     []*specdb.TypeDefinition
	relations []specdb.Relation
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{}
}

// Service adds a service, e.g. Service("aws-s3", "AWS::S3").
func (b *Builder) Service(name, namespace string) *specdb.Service {
	svc := &specdb.Service{
		ID:                      "svc:" + name,
		Name:                    name,
		ShortName:               shortName(name),
		CloudFormationNamespace: namespace,
	}
	b.services = append(b.services, svc)
	return svc
}

// Resource adds a resource owned by svc, e.g. Resource(svc, "AWS::S3::Bucket", "Bucket").
func (b *Builder) Resource(svc *specdb.Service, typeName, name string) *ResourceBuilder {
	res := &specdb.Resource{
		ID:                 "res:" + typeName,
		Name:               name,
		CloudFormationType: typeName,
		Attributes:         specdb.NewFields(),
		Properties:         specdb.NewFields(),
	}
	b.resources = append(b.resources, res)
	if svc != nil {
		b.relations = append(b.relations, specdb.Relation{Kind: specdb.RelationHasResource, From: svc.ID, To: res.ID})
	}
	return &ResourceBuilder{b: b, res: res}
}

// TypeDefinition adds a type definition with the given id.
func (b *Builder) TypeDefinition(id, name string) *TypeBuilder {
	td := &specdb.TypeDefinition{
		ID:         id,
		Name:       name,
		Properties: specdb.NewFields(),
	}
	b.types = append(b.types, td)
	return &TypeBuilder{td: td}
}

// Snapshot builds the database, failing the test on error.
func (b *Builder) Snapshot(t testing.TB) *specdb.Snapshot {
	t.Helper()
	snap, err := specdb.NewSnapshot(b.services, b.resources, b.types, b.relations)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return snap
}

// ResourceBuilder adds fields to a resource.
type ResourceBuilder struct {
	b   *Builder
	res *specdb.Resource
}

// Attribute adds an attribute.
func (rb *ResourceBuilder) Attribute(name string, t specdb.PropertyType, previous ...specdb.PropertyType) *ResourceBuilder {
	rb.res.Attributes.Set(name, &specdb.Field{Type: t, PreviousTypes: previous})
	return rb
}

// Property adds a property.
func (rb *ResourceBuilder) Property(name string, t specdb.PropertyType, required bool, previous ...specdb.PropertyType) *ResourceBuilder {
	rb.res.Properties.Set(name, &specdb.Field{Type: t, Required: required, PreviousTypes: previous})
	return rb
}

// Uses records a usesType relation to a type definition id.
func (rb *ResourceBuilder) Uses(typeID string) *ResourceBuilder {
	rb.b.relations = append(rb.b.relations, specdb.Relation{Kind: specdb.RelationUsesType, From: rb.res.ID, To: typeID})
	return rb
}

// Record returns the resource being built.
func (rb *ResourceBuilder) Record() *specdb.Resource {
	return rb.res
}

// TypeBuilder adds fields to a type definition.
type TypeBuilder struct {
	td *specdb.TypeDefinition
}

// Property adds a property.
func (tb *TypeBuilder) Property(name string, t specdb.PropertyType, required bool, previous ...specdb.PropertyType) *TypeBuilder {
	tb.td.Properties.Set(name, &specdb.Field{Type: t, Required: required, PreviousTypes: previous})
	return tb
}

// Record returns the type definition being built.
func (tb *TypeBuilder) Record() *specdb.TypeDefinition {
	return tb.td
}

func shortName(serviceName string) string {
	for i := 0; i < len(serviceName); i++ {
		if serviceName[i] == '-' {
			return serviceName[i+1:]
		}
	}
	return serviceName
}
