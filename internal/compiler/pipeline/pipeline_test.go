package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/specdb"
	"github.com/cfnschema/cfnschema/internal/specdb/specdbtest"
)

func TestBuild_BucketWithoutNestedTypes(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").
		Attribute("Arn", specdb.String()).
		Property("BucketName", specdb.String(), true)

	doc, err := Build(context.Background(), b.Snapshot(t), Options{})
	require.NoError(t, err)

	enc, err := schema.Encode(doc, schema.FormatJSON)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"AWS::S3::Bucket": {
			"construct": {
				"typescript": {"module": "aws-cdk-lib/aws-s3", "name": "CfnBucket"},
				"dotnet": {"namespace": "Amazon.CDK.AWS.S3", "name": "CfnBucket"},
				"go": {"package": "github.com/aws/aws-cdk-go/awscdk/v2/awss3", "name": "CfnBucket"},
				"java": {"package": "software.amazon.awscdk.services.s3", "name": "CfnBucket"},
				"python": {"module": "aws_cdk.aws_s3", "name": "CfnBucket"}
			},
			"attributes": {
				"Arn": {"name": "Arn", "valueType": {"primitive": "string"}}
			},
			"properties": {
				"BucketName": {"name": "BucketName", "valueType": {"primitive": "string"}, "required": true}
			}
		}
	}`, string(enc.Resources))
	assert.JSONEq(t, `{}`, string(enc.PropertyTypes))

	assert.Equal(t, schema.Stats{Resources: 1, Attributes: 1, Properties: 1}, doc.Stats)
}

func TestBuild_Fixture(t *testing.T) {
	db, err := specdb.Open(context.Background(), filepath.Join("..", "..", "specdb", "testdata", "s3.json"), specdb.OpenOptions{})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	doc, err := Build(context.Background(), db, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	bucket, ok := doc.Resources.Get("AWS::S3::Bucket")
	require.True(t, ok)

	cors, _ := bucket.Properties.Get("CorsConfiguration")
	assert.Equal(t, schema.Named{Name: "AWS::S3::Bucket.CorsConfiguration"}, cors.ValueType)

	tags, _ := bucket.Properties.Get("Tags")
	assert.Equal(t, schema.ListOf{Element: schema.Named{Name: "aws-cdk-lib.CfnTag"}}, tags.ValueType)

	lock, _ := bucket.Properties.Get("ObjectLockEnabled")
	assert.Equal(t, schema.Primitive{Kind: schema.PrimitiveString}, lock.ValueType, "previous type wins")

	enc, err := schema.Encode(doc, schema.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"AWS::S3::Bucket.CorsConfigurationProperty": {
			"name": {
				"typescript": {"module": "aws-cdk-lib/aws-s3", "name": "CfnBucket.CorsConfigurationProperty"},
				"dotnet": {"namespace": "Amazon.CDK.AWS.S3", "name": "CfnBucket.CorsConfigurationProperty"},
				"go": {"package": "github.com/aws/aws-cdk-go/awscdk/v2/awss3", "name": "CfnBucket_CorsConfigurationProperty"},
				"java": {"package": "software.amazon.awscdk.services.s3", "name": "CfnBucket.CorsConfigurationProperty"},
				"python": {"module": "aws_cdk.aws_s3", "name": "CfnBucket.CorsConfigurationProperty"}
			},
			"properties": {
				"CorsRules": {"name": "CorsRules", "valueType": {"listOf": {"named": "AWS::S3::Bucket.CorsRule"}}, "required": true}
			}
		},
		"AWS::S3::Bucket.CorsRuleProperty": {
			"name": {
				"typescript": {"module": "aws-cdk-lib/aws-s3", "name": "CfnBucket.CorsRuleProperty"},
				"dotnet": {"namespace": "Amazon.CDK.AWS.S3", "name": "CfnBucket.CorsRuleProperty"},
				"go": {"package": "github.com/aws/aws-cdk-go/awscdk/v2/awss3", "name": "CfnBucket_CorsRuleProperty"},
				"java": {"package": "software.amazon.awscdk.services.s3", "name": "CfnBucket.CorsRuleProperty"},
				"python": {"module": "aws_cdk.aws_s3", "name": "CfnBucket.CorsRuleProperty"}
			},
			"properties": {
				"AllowedMethods": {"name": "AllowedMethods", "valueType": {"listOf": {"primitive": "string"}}, "required": true},
				"MaxAge": {"name": "MaxAge", "valueType": {"primitive": "number"}, "required": false},
				"ExposedHeaders": {"name": "ExposedHeaders", "valueType": {"mapOf": {"primitive": "string"}}, "required": false}
			}
		}
	}`, string(enc.PropertyTypes))

	assert.Equal(t, schema.Stats{
		Resources:      1,
		Attributes:     2,
		Properties:     8,
		PropertyTypes:  2,
		References:     1,
		CarriedForward: 1,
	}, doc.Stats)

	rule, ok := doc.TypeIndex.Get("td-rule")
	require.True(t, ok)
	assert.Equal(t, "AWS::S3::Bucket.CorsRuleProperty", rule)

	built := logs.FilterMessage("schema built").All()
	require.Len(t, built, 1)
	assert.Equal(t, int64(2), built[0].ContextMap()["property_types"])
	assert.NotEmpty(t, built[0].ContextMap()["run_id"])
	assert.Equal(t, 1, logs.FilterMessage("nested type pass finished").Len())
}

func TestBuild_Deterministic(t *testing.T) {
	db, err := specdb.Open(context.Background(), filepath.Join("..", "..", "specdb", "testdata", "s3.json"), specdb.OpenOptions{})
	require.NoError(t, err)

	var outputs []string
	for i := 0; i < 3; i++ {
		doc, err := Build(context.Background(), db, Options{})
		require.NoError(t, err)
		enc, err := schema.Encode(doc, schema.FormatYAML)
		require.NoError(t, err)
		outputs = append(outputs, string(enc.Resources)+string(enc.PropertyTypes))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestBuild_Errors(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		doc, err := Build(ctx, specdbtest.New().Snapshot(t), Options{})
		assert.Nil(t, doc)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ambiguous service aborts the run", func(t *testing.T) {
		b := specdbtest.New()
		s3 := b.Service("aws-s3", "AWS::S3")
		b.Service("aws-s3-copy", "AWS::S3")
		b.Resource(s3, "AWS::S3::Bucket", "Bucket")

		doc, err := Build(context.Background(), b.Snapshot(t), Options{})
		assert.Nil(t, doc)
		assert.True(t, cerrors.HasCode(err, cerrors.ErrAmbiguousService))
	})

	t.Run("orphan type definition", func(t *testing.T) {
		b := specdbtest.New()
		b.Service("aws-s3", "AWS::S3")
		b.TypeDefinition("td-x", "X")

		doc, err := Build(context.Background(), b.Snapshot(t), Options{})
		assert.Nil(t, doc)
		assert.True(t, cerrors.HasCode(err, cerrors.ErrOrphanTypeDefinition))
	})
}

func TestBuild_CustomNaming(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").Property("Tags", specdb.ArrayOf(specdb.Tag()), false)

	opts := Options{TagType: "monocdk.CfnTag"}
	opts.Roots.TypeScript = "monocdk"

	doc, err := Build(context.Background(), b.Snapshot(t), opts)
	require.NoError(t, err)

	bucket, _ := doc.Resources.Get("AWS::S3::Bucket")
	assert.Equal(t, "monocdk/aws-s3", bucket.Construct.TypeScript.Module)
	tags, _ := bucket.Properties.Get("Tags")
	assert.Equal(t, "List<monocdk.CfnTag>", tags.ValueType.String())
}

func TestCollect(t *testing.T) {
	db, err := specdb.Open(context.Background(), filepath.Join("..", "..", "specdb", "testdata", "s3.json"), specdb.OpenOptions{})
	require.NoError(t, err)

	result, err := Collect(db, Options{})
	require.NoError(t, err)
	owner, ok := result.References.Owner("td-cors")
	require.True(t, ok)
	assert.Equal(t, "AWS::S3::Bucket", owner)
}
