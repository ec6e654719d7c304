// Package proptypes implements the nested type pass of the schema compiler.
//
// Type definitions are processed as an ordered fold. The owner of each
// definition comes from the reference table built by the resource pass;
// a definition no resource references directly inherits the owner of the
// definition before it. That fallback is positional and only holds because
// the database lists a resource's nested types contiguously.
package proptypes

import (
	"fmt"
	"strings"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/collector"
	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/compiler/typeresolver"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// OwnerState is the accumulator threaded through the fold.
type OwnerState struct {
	// LastResolvedOwner is the owner FQN of the most recent definition
	// found in the reference table, or "" before the first one.
	LastResolvedOwner string
}

// Owner is the outcome of one fold step.
type Owner struct {
	FQN string
	// CarriedForward is set when the owner came from the accumulator
	// instead of the reference table.
	CarriedForward bool
}

// OwnerStep resolves the owner of def and returns the next state. A
// definition absent from the table with no previous owner is an orphan.
func OwnerStep(state OwnerState, def *specdb.TypeDefinition, table *collector.ReferenceTable) (Owner, OwnerState, error) {
	if owner, ok := table.Owner(def.ID); ok {
		return Owner{FQN: owner}, OwnerState{LastResolvedOwner: owner}, nil
	}
	if state.LastResolvedOwner == "" {
		return Owner{}, state, cerrors.NewOrphanTypeDefinition(def.ID, def.Name)
	}
	return Owner{FQN: state.LastResolvedOwner, CarriedForward: true}, state, nil
}

// QualifiedName returns the nested type document key,
// e.g. "AWS::S3::Bucket.CorsRuleProperty".
func QualifiedName(owner, shortName string) string {
	return owner + "." + shortName + "Property"
}

// Result is the output of the nested type pass.
type Result struct {
	PropertyTypes *schema.PropertyTypeDocument

	// Index maps type definition id to its qualified name
	Index *schema.TypeIndex

	Properties     int
	CarriedForward int
}

// Resolver runs the nested type pass.
type Resolver struct {
	db       specdb.Database
	resolver *typeresolver.Resolver
	names    *naming.Builder

	// resource FQN to resource short name
	shortNames map[string]string
}

// New creates a nested type resolver.
func New(db specdb.Database, resolver *typeresolver.Resolver, names *naming.Builder) *Resolver {
	shortNames := make(map[string]string, len(db.Resources()))
	for _, res := range db.Resources() {
		shortNames[res.CloudFormationType] = res.Name
	}
	return &Resolver{db: db, resolver: resolver, names: names, shortNames: shortNames}
}

// Resolve folds over every type definition in database order. The
// reference table must be frozen, which guarantees the resource pass is
// complete.
func (r *Resolver) Resolve(pass1 *collector.Result) (*Result, error) {
	if pass1 == nil || pass1.References == nil {
		return nil, fmt.Errorf("resource pass result cannot be nil")
	}
	if !pass1.References.Frozen() {
		return nil, fmt.Errorf("reference table must be frozen before resolving nested types")
	}

	result := &Result{
		PropertyTypes: schema.NewPropertyTypeDocument(),
		Index:         schema.NewTypeIndex(),
	}

	var state OwnerState
	for _, def := range r.db.TypeDefinitions() {
		owner, next, err := OwnerStep(state, def, pass1.References)
		if err != nil {
			return nil, err
		}
		state = next

		qualified := QualifiedName(owner.FQN, def.Name)
		entry, err := r.resolveDefinition(def, owner.FQN, qualified)
		if err != nil {
			return nil, err
		}

		result.PropertyTypes.Set(qualified, entry)
		result.Index.Set(def.ID, qualified)
		if owner.CarriedForward {
			result.CarriedForward++
		}
		result.Properties += entry.Properties.Len()
	}

	return result, nil
}

func (r *Resolver) resolveDefinition(def *specdb.TypeDefinition, owner, qualified string) (*schema.PropertyType, error) {
	svc, err := specdb.ServiceForType(r.db, owner)
	if err != nil {
		if ce, ok := cerrors.AsCompilerError(err); ok {
			ce.WithSubject(qualified)
		}
		return nil, err
	}

	resourceShortName, ok := r.shortNames[owner]
	if !ok {
		resourceShortName = owner[strings.LastIndex(owner, "::")+2:]
	}

	entry := &schema.PropertyType{
		Name:       r.names.ForPropertyType(svc, resourceShortName, def.Name),
		Properties: schema.NewProperties(),
	}

	for _, f := range def.PropertyList() {
		vt, _, err := r.resolver.ResolveField(f.Field, owner)
		if err != nil {
			if ce, ok := cerrors.AsCompilerError(err); ok {
				ce.WithSubject(fmt.Sprintf("%s.properties.%s", qualified, f.Name))
			}
			return nil, err
		}
		entry.Properties.Set(f.Name, &schema.Property{Name: f.Name, ValueType: vt, Required: f.Required})
	}

	return entry, nil
}
