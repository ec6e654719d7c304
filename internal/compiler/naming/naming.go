// Package naming derives the per-language module and symbol names of
// generated constructs for the five supported target ecosystems.
//
// Service name rewrites replace the first occurrence only, matching the
// published construct libraries.
package naming

import (
	"strings"

	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// Default module roots.
const (
	DefaultTypeScriptRoot = "aws-cdk-lib"
	DefaultDotNetRoot     = "Amazon.CDK"
	DefaultGoRoot         = "github.com/aws/aws-cdk-go/awscdk/v2"
	DefaultJavaRoot       = "software.amazon.awscdk"
	DefaultPythonRoot     = "aws_cdk"
)

// Roots are the module roots each language's names are built under.
type Roots struct {
	TypeScript string `mapstructure:"typescript" yaml:"typescript"`
	DotNet     string `mapstructure:"dotnet" yaml:"dotnet"`
	Go         string `mapstructure:"go" yaml:"go"`
	Java       string `mapstructure:"java" yaml:"java"`
	Python     string `mapstructure:"python" yaml:"python"`
}

// DefaultRoots returns the roots of the published construct libraries.
func DefaultRoots() Roots {
	return Roots{
		TypeScript: DefaultTypeScriptRoot,
		DotNet:     DefaultDotNetRoot,
		Go:         DefaultGoRoot,
		Java:       DefaultJavaRoot,
		Python:     DefaultPythonRoot,
	}
}

// Builder builds Naming records. The zero value uses DefaultRoots.
type Builder struct {
	roots Roots
}

// NewBuilder creates a builder. Empty roots fall back to their defaults.
func NewBuilder(roots Roots) *Builder {
	def := DefaultRoots()
	if roots.TypeScript == "" {
		roots.TypeScript = def.TypeScript
	}
	if roots.DotNet == "" {
		roots.DotNet = def.DotNet
	}
	if roots.Go == "" {
		roots.Go = def.Go
	}
	if roots.Java == "" {
		roots.Java = def.Java
	}
	if roots.Python == "" {
		roots.Python = def.Python
	}
	return &Builder{roots: roots}
}

// Roots returns the effective roots.
func (b *Builder) Roots() Roots {
	if b == nil || b.roots == (Roots{}) {
		return DefaultRoots()
	}
	return b.roots
}

// ConstructName returns the symbol of a resource construct, e.g. "CfnBucket".
func ConstructName(resourceShortName string) string {
	return "Cfn" + resourceShortName
}

// PropertyTypeName returns the symbol of a nested type, e.g.
// "CfnBucket.CorsRuleProperty".
func PropertyTypeName(resourceShortName, typeShortName string) string {
	return ConstructName(resourceShortName) + "." + typeShortName + "Property"
}

// ForResource returns the naming of the construct for a resource.
func (b *Builder) ForResource(svc *specdb.Service, resourceShortName string) schema.Naming {
	return b.build(svc, ConstructName(resourceShortName))
}

// ForPropertyType returns the naming of a nested type owned by a resource.
func (b *Builder) ForPropertyType(svc *specdb.Service, resourceShortName, typeShortName string) schema.Naming {
	return b.build(svc, PropertyTypeName(resourceShortName, typeShortName))
}

func (b *Builder) build(svc *specdb.Service, symbol string) schema.Naming {
	roots := b.Roots()
	return schema.Naming{
		TypeScript: schema.ModuleNaming{
			Module: roots.TypeScript + "/" + svc.Name,
			Name:   symbol,
		},
		DotNet: schema.NamespaceNaming{
			Namespace: roots.DotNet + "." + strings.Replace(svc.CloudFormationNamespace, "::", ".", 1),
			Name:      symbol,
		},
		Go: schema.PackageNaming{
			Package: roots.Go + "/" + goPackage(svc.Name),
			Name:    strings.Replace(symbol, ".", "_", 1),
		},
		Java: schema.PackageNaming{
			Package: roots.Java + "." + javaPackage(svc.Name),
			Name:    symbol,
		},
		Python: schema.ModuleNaming{
			Module: roots.Python + "." + strings.Replace(svc.Name, "-", "_", 1),
			Name:   symbol,
		},
	}
}

// goPackage drops the first hyphen: "aws-s3" becomes "awss3".
func goPackage(serviceName string) string {
	return strings.Replace(serviceName, "-", "", 1)
}

// javaPackage maps "aws-s3" to "services.s3".
func javaPackage(serviceName string) string {
	return strings.Replace(strings.Replace(serviceName, "-", ".", 1), "aws", "services", 1)
}
