package proptypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/collector"
	"github.com/cfnschema/cfnschema/internal/compiler/naming"
	"github.com/cfnschema/cfnschema/internal/compiler/typeresolver"
	"github.com/cfnschema/cfnschema/internal/specdb"
	"github.com/cfnschema/cfnschema/internal/specdb/specdbtest"
)

func run(t *testing.T, db *specdb.Snapshot) (*Result, error) {
	t.Helper()
	resolver := typeresolver.New(db, typeresolver.Options{})
	names := naming.NewBuilder(naming.Roots{})

	pass1, err := collector.New(db, resolver, names).Collect()
	require.NoError(t, err)

	return New(db, resolver, names).Resolve(pass1)
}

func bucketDB(t *testing.T) *specdb.Snapshot {
	t.Helper()
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").
		Property("CorsConfiguration", specdb.Ref("td-cors"), false).
		Uses("td-cors")
	b.TypeDefinition("td-cors", "CorsConfiguration").
		Property("CorsRules", specdb.ArrayOf(specdb.Ref("td-rule")), true)
	b.TypeDefinition("td-rule", "CorsRule").
		Property("AllowedMethods", specdb.ArrayOf(specdb.String()), true).
		Property("MaxAge", specdb.Integer(), false)
	return b.Snapshot(t)
}

func TestResolve_CarriesOwnerForward(t *testing.T) {
	result, err := run(t, bucketDB(t))
	require.NoError(t, err)

	assert.Equal(t, 2, result.PropertyTypes.Len())
	assert.Equal(t, 1, result.CarriedForward)

	rule, ok := result.PropertyTypes.Get("AWS::S3::Bucket.CorsRuleProperty")
	require.True(t, ok, "td-rule is owned by the bucket")
	assert.Equal(t, "CfnBucket.CorsRuleProperty", rule.Name.TypeScript.Name)
	assert.Equal(t, "CfnBucket_CorsRuleProperty", rule.Name.Go.Name)
	assert.Equal(t, "aws-cdk-lib/aws-s3", rule.Name.TypeScript.Module)

	data, err := json.Marshal(rule.Properties)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"AllowedMethods":{"name":"AllowedMethods","valueType":{"listOf":{"primitive":"string"}},"required":true},
		"MaxAge":{"name":"MaxAge","valueType":{"primitive":"number"},"required":false}
	}`, string(data))

	cors, ok := result.PropertyTypes.Get("AWS::S3::Bucket.CorsConfigurationProperty")
	require.True(t, ok)
	prop, _ := cors.Properties.Get("CorsRules")
	assert.Equal(t, "List<AWS::S3::Bucket.CorsRule>", prop.ValueType.String())

	id, ok := result.Index.Get("td-rule")
	require.True(t, ok)
	assert.Equal(t, "AWS::S3::Bucket.CorsRuleProperty", id)
	assert.Equal(t, "td-cors", result.Index.Oldest().Key)
	assert.Equal(t, 3, result.Properties)
}

func TestResolve_OwnerSwitchesWithTable(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").Property("A", specdb.Ref("td-a"), false)
	b.Resource(s3, "AWS::S3::AccessPoint", "AccessPoint").Property("C", specdb.Ref("td-c"), false)
	b.TypeDefinition("td-a", "A")
	b.TypeDefinition("td-b", "B")
	b.TypeDefinition("td-c", "C")
	b.TypeDefinition("td-d", "D")

	result, err := run(t, b.Snapshot(t))
	require.NoError(t, err)

	var keys []string
	for pair := result.PropertyTypes.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{
		"AWS::S3::Bucket.AProperty",
		"AWS::S3::Bucket.BProperty",
		"AWS::S3::AccessPoint.CProperty",
		"AWS::S3::AccessPoint.DProperty",
	}, keys)

	d, _ := result.PropertyTypes.Get("AWS::S3::AccessPoint.DProperty")
	assert.Equal(t, "CfnAccessPoint.DProperty", d.Name.Java.Name)
	assert.Equal(t, 2, result.CarriedForward)
}

func TestResolve_Empty(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").Property("BucketName", specdb.String(), true)

	result, err := run(t, b.Snapshot(t))
	require.NoError(t, err)
	assert.Equal(t, 0, result.PropertyTypes.Len())
	assert.Equal(t, 0, result.Index.Len())
}

func TestResolve_Orphan(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").Property("B", specdb.Ref("td-b"), false)
	b.TypeDefinition("td-a", "A")
	b.TypeDefinition("td-b", "B")

	result, err := run(t, b.Snapshot(t))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrOrphanTypeDefinition))
}

func TestResolve_RequiresFrozenTable(t *testing.T) {
	db := bucketDB(t)
	r := New(db, typeresolver.New(db, typeresolver.Options{}), naming.NewBuilder(naming.Roots{}))

	_, err := r.Resolve(&collector.Result{References: collector.NewReferenceTable()})
	assert.ErrorContains(t, err, "must be frozen")

	_, err = r.Resolve(nil)
	assert.Error(t, err)
}

func TestResolve_FieldErrorSubject(t *testing.T) {
	b := specdbtest.New()
	s3 := b.Service("aws-s3", "AWS::S3")
	b.Resource(s3, "AWS::S3::Bucket", "Bucket").Property("A", specdb.Ref("td-a"), false)
	b.TypeDefinition("td-a", "A").Property("Broken", specdb.Ref("td-gone"), false)

	_, err := run(t, b.Snapshot(t))
	ce, ok := cerrors.AsCompilerError(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrDanglingReference, ce.Code)
	assert.Equal(t, "AWS::S3::Bucket.AProperty.properties.Broken", ce.Subject)
}

func TestOwnerStep(t *testing.T) {
	table := collector.NewReferenceTable()
	table.Record("d1", "AWS::S3::Bucket.D1")
	table.Freeze()

	d1 := &specdb.TypeDefinition{ID: "d1", Name: "D1"}
	d2 := &specdb.TypeDefinition{ID: "d2", Name: "D2"}

	_, _, err := OwnerStep(OwnerState{}, d2, table)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrOrphanTypeDefinition))

	owner, state, err := OwnerStep(OwnerState{}, d1, table)
	require.NoError(t, err)
	assert.Equal(t, Owner{FQN: "AWS::S3::Bucket"}, owner)
	assert.Equal(t, "AWS::S3::Bucket", state.LastResolvedOwner)

	owner, next, err := OwnerStep(state, d2, table)
	require.NoError(t, err)
	assert.Equal(t, Owner{FQN: "AWS::S3::Bucket", CarriedForward: true}, owner)
	assert.Equal(t, state, next)

	owner, _, err = OwnerStep(OwnerState{LastResolvedOwner: "AWS::SQS::Queue"}, d1, table)
	require.NoError(t, err)
	assert.Equal(t, "AWS::S3::Bucket", owner.FQN, "table entries beat the accumulator")
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "AWS::S3::Bucket.CorsRuleProperty", QualifiedName("AWS::S3::Bucket", "CorsRule"))
}
