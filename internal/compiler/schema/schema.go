// Package schema defines the consolidated cross-language schema produced by
// the compiler, and its serialization.
package schema

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Naming holds the per-language module and symbol name of a resource
// construct or nested type. It always carries all five targets.
type Naming struct {
	TypeScript ModuleNaming    `json:"typescript"`
	DotNet     NamespaceNaming `json:"dotnet"`
	Go         PackageNaming   `json:"go"`
	Java       PackageNaming   `json:"java"`
	Python     ModuleNaming    `json:"python"`
}

// ModuleNaming is used by module-based ecosystems (TypeScript, Python).
type ModuleNaming struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

// NamespaceNaming is used by .NET.
type NamespaceNaming struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// PackageNaming is used by package-based ecosystems (Go, Java).
type PackageNaming struct {
	Package string `json:"package"`
	Name    string `json:"name"`
}

// Languages lists the naming targets in serialization order.
var Languages = []string{"typescript", "dotnet", "go", "java", "python"}

// Entries returns (language, module, symbol) triples in Languages order.
func (n Naming) Entries() [][3]string {
	return [][3]string{
		{"typescript", n.TypeScript.Module, n.TypeScript.Name},
		{"dotnet", n.DotNet.Namespace, n.DotNet.Name},
		{"go", n.Go.Package, n.Go.Name},
		{"java", n.Java.Package, n.Java.Name},
		{"python", n.Python.Module, n.Python.Name},
	}
}

// Attribute is a read-only resource attribute.
type Attribute struct {
	Name      string    `json:"name"`
	ValueType ValueType `json:"valueType"`
}

// Property is a configurable resource or nested type property.
type Property struct {
	Name      string    `json:"name"`
	ValueType ValueType `json:"valueType"`
	Required  bool      `json:"required"`
}

// Attributes maps attribute name to attribute, in database order.
type Attributes = orderedmap.OrderedMap[string, *Attribute]

// Properties maps property name to property, in database order.
type Properties = orderedmap.OrderedMap[string, *Property]

// NewAttributes creates an empty attribute map.
func NewAttributes() *Attributes { return orderedmap.New[string, *Attribute]() }

// NewProperties creates an empty property map.
func NewProperties() *Properties { return orderedmap.New[string, *Property]() }

// Resource is one entry of the resource document.
type Resource struct {
	Construct  Naming      `json:"construct"`
	Attributes *Attributes `json:"attributes"`
	Properties *Properties `json:"properties"`
}

// PropertyType is one entry of the nested type document.
type PropertyType struct {
	Name       Naming      `json:"name"`
	Properties *Properties `json:"properties"`
}

// ResourceDocument maps qualified resource type name to entry.
type ResourceDocument = orderedmap.OrderedMap[string, *Resource]

// PropertyTypeDocument maps "<Resource>.<Name>Property" to entry.
type PropertyTypeDocument = orderedmap.OrderedMap[string, *PropertyType]

// TypeIndex maps type definition id to qualified nested type name.
type TypeIndex = orderedmap.OrderedMap[string, string]

// NewResourceDocument creates an empty resource document.
func NewResourceDocument() *ResourceDocument { return orderedmap.New[string, *Resource]() }

// NewPropertyTypeDocument creates an empty nested type document.
func NewPropertyTypeDocument() *PropertyTypeDocument {
	return orderedmap.New[string, *PropertyType]()
}

// NewTypeIndex creates an empty type index.
func NewTypeIndex() *TypeIndex { return orderedmap.New[string, string]() }

// Document is the complete output of one compiler run. Only Resources and
// PropertyTypes are written out; TypeIndex and Stats are kept for
// inspection and downstream cross-referencing.
type Document struct {
	Resources     *ResourceDocument
	PropertyTypes *PropertyTypeDocument
	TypeIndex     *TypeIndex
	Stats         Stats
}

// Stats summarizes a run.
type Stats struct {
	Resources      int `json:"resources"`
	Attributes     int `json:"attributes"`
	Properties     int `json:"properties"`
	PropertyTypes  int `json:"property_types"`
	References     int `json:"references"`
	CarriedForward int `json:"carried_forward"`
}
