// Package collector implements the resource pass of the schema compiler.
//
// Every resource gets its construct naming and resolved fields, and every
// type definition a resource references is recorded in a ReferenceTable
// that the nested type pass uses to attribute definitions to owners.
package collector

import (
	"fmt"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/compiler/typeresolver"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// Result is the output of the resource pass.
type Result struct {
	// Resources maps resource FQN to its schema, in database order
	Resources *schema.ResourceDocument

	// References is frozen
	References *ReferenceTable

	Attributes int
	Properties int
}

// Collector runs the resource pass.
type Collector struct {
	db       specdb.Database
	resolver *typeresolver.Resolver
	names    *naming.Builder
}

// New creates a collector.
func New(db specdb.Database, resolver *typeresolver.Resolver, names *naming.Builder) *Collector {
	return &Collector{db: db, resolver: resolver, names: names}
}

// Collect processes every resource in database order. It returns no partial
// result on error.
func (c *Collector) Collect() (*Result, error) {
	result := &Result{
		Resources:  schema.NewResourceDocument(),
		References: NewReferenceTable(),
	}

	for _, res := range c.db.Resources() {
		entry, err := c.collectResource(res, result)
		if err != nil {
			return nil, err
		}
		result.Resources.Set(res.CloudFormationType, entry)
	}

	result.References.Freeze()
	return result, nil
}

func (c *Collector) collectResource(res *specdb.Resource, result *Result) (*schema.Resource, error) {
	fqn := res.CloudFormationType

	svc, err := specdb.ServiceForType(c.db, fqn)
	if err != nil {
		return nil, err
	}

	entry := &schema.Resource{
		Construct:  c.names.ForResource(svc, res.Name),
		Attributes: schema.NewAttributes(),
		Properties: schema.NewProperties(),
	}

	for _, f := range res.AttributeList() {
		vt, err := c.resolveField(f, fqn, "attributes", result.References)
		if err != nil {
			return nil, err
		}
		entry.Attributes.Set(f.Name, &schema.Attribute{Name: f.Name, ValueType: vt})
		result.Attributes++
	}

	for _, f := range res.PropertyList() {
		vt, err := c.resolveField(f, fqn, "properties", result.References)
		if err != nil {
			return nil, err
		}
		entry.Properties.Set(f.Name, &schema.Property{Name: f.Name, ValueType: vt, Required: f.Required})
		result.Properties++
	}

	return entry, nil
}

func (c *Collector) resolveField(f specdb.NamedField, owner, section string, table *ReferenceTable) (schema.ValueType, error) {
	vt, refs, err := c.resolver.ResolveField(f.Field, owner)
	if err != nil {
		if ce, ok := cerrors.AsCompilerError(err); ok {
			ce.WithSubject(fmt.Sprintf("%s.%s.%s", owner, section, f.Name))
		}
		return nil, err
	}

	for pair := refs.Oldest(); pair != nil; pair = pair.Next() {
		table.Record(pair.Key, Qualify(owner, pair.Value))
	}
	return vt, nil
}
