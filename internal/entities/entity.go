// Package entities classifies the writable fields of data entities as
// sensitive and decides whether each sensitive field is protected.
//
// Entities are read statically: Go structs through go/ast and YAML schema
// files. No entity code is executed.
package entities

import (
	"slices"
	"strings"
)

// Entity is the introspected shape of one data entity.
type Entity struct {
	Name   string
	Source string
	// Fillable lists the fields callers may write, in declaration order.
	Fillable []string
	// Casts maps a field to its declared type coercion.
	Casts map[string]string
	// Hidden lists fields redacted from serialized output.
	Hidden []string
	// Accessors maps a field to the source text of its custom accessor
	// and mutator bodies.
	Accessors map[string]string
	// Identifiers maps a field to the identifier declaring it in source when
	// the two differ (credit_card -> CreditCard).
	Identifiers map[string]string
	// SourceText is the entity's own declaration: for Go, the struct type
	// and the bodies of its methods. Empty when the entity is declared
	// without source, as in schema files.
	SourceText string
}

func (e Entity) IsHidden(field string) bool {
	return slices.ContainsFunc(e.Hidden, func(h string) bool {
		return strings.EqualFold(h, field)
	})
}

func (e Entity) Cast(field string) string {
	for k, v := range e.Casts {
		if strings.EqualFold(k, field) {
			return v
		}
	}
	return ""
}

// sourceNames returns the spellings of field to look for in SourceText.
func (e Entity) sourceNames(field string) []string {
	names := []string{strings.ToLower(field)}
	for k, v := range e.Identifiers {
		if strings.EqualFold(k, field) && !strings.EqualFold(v, field) {
			names = append(names, strings.ToLower(v))
		}
	}
	return names
}

func (e Entity) Accessor(field string) string {
	for k, v := range e.Accessors {
		if strings.EqualFold(k, field) {
			return v
		}
	}
	return ""
}
