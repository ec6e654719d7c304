// Package pipeline runs the two compiler passes over a specification
// database and assembles the output document.
//
// The resource pass produces a collector.Result whose reference table is
// frozen; that result is the only input the nested type pass accepts, so
// the nested type pass cannot start before the resource pass is complete.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cfnschema/cfnschema/internal/compiler/collector"
	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/proptypes"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/compiler/typeresolver"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// Options configures Build.
type Options struct {
	Roots   naming.Roots
	TagType string
	Logger  *zap.Logger
}

// Build runs both passes. It returns no partial document on error.
func Build(ctx context.Context, db specdb.Database, opts Options) (*schema.Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	resolver := typeresolver.New(db, typeresolver.Options{TagType: opts.TagType})
	names := naming.NewBuilder(opts.Roots)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("resource pass started", zap.Int("resources", len(db.Resources())))
	passStart := time.Now()
	pass1, err := collector.New(db, resolver, names).Collect()
	if err != nil {
		logger.Debug("resource pass failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("resource pass finished",
		zap.Int("resources", pass1.Resources.Len()),
		zap.Int("references", pass1.References.Len()),
		zap.Duration("elapsed", time.Since(passStart)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("nested type pass started", zap.Int("type_definitions", len(db.TypeDefinitions())))
	passStart = time.Now()
	pass2, err := proptypes.New(db, resolver, names).Resolve(pass1)
	if err != nil {
		logger.Debug("nested type pass failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("nested type pass finished",
		zap.Int("property_types", pass2.PropertyTypes.Len()),
		zap.Int("carried_forward", pass2.CarriedForward),
		zap.Duration("elapsed", time.Since(passStart)))

	doc := &schema.Document{
		Resources:     pass1.Resources,
		PropertyTypes: pass2.PropertyTypes,
		TypeIndex:     pass2.Index,
		Stats: schema.Stats{
			Resources:      pass1.Resources.Len(),
			Attributes:     pass1.Attributes,
			Properties:     pass1.Properties + pass2.Properties,
			PropertyTypes:  pass2.PropertyTypes.Len(),
			References:     pass1.References.Len(),
			CarriedForward: pass2.CarriedForward,
		},
	}

	logger.Info("schema built",
		zap.Int("resources", doc.Stats.Resources),
		zap.Int("property_types", doc.Stats.PropertyTypes),
		zap.Duration("elapsed", time.Since(start)))

	return doc, nil
}

// Collect runs only the resource pass. It backs the inspect command, which
// can show references before nested types are resolved.
func Collect(db specdb.Database, opts Options) (*collector.Result, error) {
	resolver := typeresolver.New(db, typeresolver.Options{TagType: opts.TagType})
	return collector.New(db, resolver, naming.NewBuilder(opts.Roots)).Collect()
}
