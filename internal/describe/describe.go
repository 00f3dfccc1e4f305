// Package describe models the coarse schema information fetched from an org:
// entity-level metadata and per-field descriptors.
package describe

import (
	"context"
	"strings"

	"github.com/lomashregmi/sfdmu/internal/org"
)

// Field describes one field of an entity on one org.
type Field struct {
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Label                string `json:"label"`
	Creatable            bool   `json:"createable"`
	Updateable           bool   `json:"updateable"`
	IsReference          bool   `json:"isReference"`
	ReferencedObjectType string `json:"referencedObjectType"`
	CascadeDelete        bool   `json:"cascadeDelete"`
	AutoNumber           bool   `json:"autoNumber"`
	Calculated           bool   `json:"calculated"`
}

// ReadOnly reports whether the field cannot be written by the transfer
// engine: not creatable, a formula, or auto-generated.
func (f Field) ReadOnly() bool {
	return !f.Creatable || f.Calculated || f.AutoNumber
}

// IsMasterDetail reports whether the field is a master-detail style
// reference: a reference that is either not updateable or cascade-deletes.
func (f Field) IsMasterDetail() bool {
	return f.IsReference && (!f.Updateable || f.CascadeDelete)
}

// Entity is the entity-level describe result used for org compatibility
// checks before per-field reconciliation.
type Entity struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Creatable  bool   `json:"createable"`
	Updateable bool   `json:"updateable"`
	Custom     bool   `json:"custom"`
}

// FieldMap maps field name to descriptor. Lookups are case-insensitive, the
// way the query language treats field names.
type FieldMap map[string]Field

// Get returns the descriptor for name, matching case-insensitively.
func (m FieldMap) Get(name string) (Field, bool) {
	if f, ok := m[name]; ok {
		return f, true
	}
	for k, f := range m {
		if strings.EqualFold(k, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Describer fetches schema descriptions from an org. Implementations own the
// wire protocol; the compiler only consumes the result.
type Describer interface {
	Describe(ctx context.Context, o *org.Org, entity string) (Entity, FieldMap, error)
}
