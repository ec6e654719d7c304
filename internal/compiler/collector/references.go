package collector

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ReferenceTable maps type definition ids to "<OwnerFQN>.<ShortName>".
//
// It is filled during the resource pass and frozen before the nested type
// pass reads it. Each id is written at most once: the first resource that
// references a type definition owns it.
type ReferenceTable struct {
	entries *orderedmap.OrderedMap[string, string]
	frozen  bool
}

// NewReferenceTable creates an empty, writable table.
func NewReferenceTable() *ReferenceTable {
	return &ReferenceTable{entries: orderedmap.New[string, string]()}
}

// Record stores the qualified name for id unless id is already present.
// It reports whether the entry was written. Record panics on a frozen table.
func (t *ReferenceTable) Record(id, qualifiedName string) bool {
	if t.frozen {
		panic(fmt.Sprintf("collector: write of %q to frozen reference table", id))
	}
	if _, ok := t.entries.Get(id); ok {
		return false
	}
	t.entries.Set(id, qualifiedName)
	return true
}

// Freeze makes the table read-only.
func (t *ReferenceTable) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze was called.
func (t *ReferenceTable) Frozen() bool {
	return t.frozen
}

// Lookup returns the qualified name recorded for id.
func (t *ReferenceTable) Lookup(id string) (string, bool) {
	return t.entries.Get(id)
}

// Owner returns the owning resource FQN recorded for id.
func (t *ReferenceTable) Owner(id string) (string, bool) {
	qualified, ok := t.entries.Get(id)
	if !ok {
		return "", false
	}
	owner, _ := SplitQualified(qualified)
	return owner, true
}

// Len returns the number of entries.
func (t *ReferenceTable) Len() int {
	return t.entries.Len()
}

// Each calls fn for every entry in insertion order.
func (t *ReferenceTable) Each(fn func(id, qualifiedName string)) {
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Qualify joins an owner FQN and a short name.
func Qualify(owner, shortName string) string {
	return owner + "." + shortName
}

// SplitQualified splits "<Owner>.<ShortName>" at the last dot.
func SplitQualified(qualified string) (owner, shortName string) {
	i := strings.LastIndex(qualified, ".")
	if i < 0 {
		return qualified, ""
	}
	return qualified[:i], qualified[i+1:]
}
