package plan

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/lomashregmi/sfdmu/internal/describe"
	"github.com/lomashregmi/sfdmu/internal/org"
	"github.com/lomashregmi/sfdmu/internal/script"
	"github.com/lomashregmi/sfdmu/internal/soql"
)

// IDField is the record identifier field present on every entity.
const IDField = "Id"

// ComplexExternalIDPrefix marks an external-id value carrying a query-style
// expression instead of a field reference.
const ComplexExternalIDPrefix = "$$"

// RecordTypeField is the reference field whose presence in any query implies
// the RecordType dependency object.
const RecordTypeField = "RecordTypeId"

// personAccountField filters out person-account records on delete when the
// source org schema has them enabled.
const personAccountField = "IsPersonAccount"

// specialObjects need bespoke handling by the execution engine.
var specialObjects = []string{"Group", "User", "RecordType"}

// ObjectPlan is the compiled, execution-ready description of how one entity
// is queried and operated upon. It is built once by compileObject and
// read-only afterwards.
type ObjectPlan struct {
	Name string

	Query       string
	ParsedQuery *soql.Query

	DeleteQuery       string
	ParsedDeleteQuery *soql.Query

	Operation  script.Operation
	ExternalID string

	Source *org.Org
	Target *org.Org

	SourceEntity describe.Entity
	TargetEntity describe.Entity
	SourceFields describe.FieldMap
	TargetFields describe.FieldMap

	Excluded            bool
	AllRecords          bool
	IsExtraObject       bool
	DeleteOldData       bool
	UseCSVValuesMapping bool
	UpdateWithMockData  bool
}

// compileObject compiles one raw object entry against already-resolved orgs.
// It is a pure function of its inputs; registration into the plan set is the
// caller's single explicit step.
func compileObject(raw *script.Object, source, target *org.Org) (*ObjectPlan, error) {
	op := raw.Operation
	if op == script.OperationUnknown {
		return nil, errors.Errorf("object %s: operation is not set", raw.Name)
	}

	externalID := raw.ExternalID
	if op == script.Insert {
		// Insert matches nothing on the target; the identifier is the only
		// sensible external id regardless of user input.
		externalID = IDField
	}

	q, err := soql.Parse(raw.Query)
	if err != nil {
		return nil, malformedQueryError(raw.Name, raw.Query, err)
	}
	q.DedupeFields()

	deleteOldData := raw.DeleteOldData
	if op == script.Delete {
		q.ReplaceFields(IDField)
		deleteOldData = true
	} else {
		q.EnsureField(IDField)
	}

	p := &ObjectPlan{
		Name:                q.Entity(),
		Query:               q.String(),
		ParsedQuery:         q,
		Operation:           op,
		ExternalID:          externalID,
		Source:              source,
		Target:              target,
		Excluded:            raw.Excluded,
		AllRecords:          raw.AllRecords,
		DeleteOldData:       deleteOldData,
		UseCSVValuesMapping: raw.UseCSVValuesMapping,
		UpdateWithMockData:  raw.UpdateWithMockData,
	}

	if deleteOldData {
		if err := p.compileDeleteQuery(raw.DeleteQuery); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// compileDeleteQuery derives the delete query: the explicit one when
// supplied, otherwise the normalized primary query. Its field list is always
// identifier-only, and Contact deletes exclude person accounts when the
// source org supports them.
func (p *ObjectPlan) compileDeleteQuery(explicit string) error {
	base := explicit
	if base == "" {
		base = p.Query
	}
	dq, err := soql.Parse(base)
	if err != nil {
		return malformedDeleteQueryError(p.Name, base, err)
	}
	dq.ReplaceFields(IDField)

	if p.Source != nil && p.Source.IsPersonAccountEnabled && strings.EqualFold(p.Name, "Contact") {
		if err := dq.AndWhere(personAccountField, "=", []string{"false"}, soql.BoolValue); err != nil {
			return malformedDeleteQueryError(p.Name, base, err)
		}
	}

	p.DeleteQuery = dq.String()
	p.ParsedDeleteQuery = dq
	return nil
}

// LoadDescribe populates the per-org describe maps. File-media orgs have no
// schema to describe and are skipped.
func (p *ObjectPlan) LoadDescribe(ctx context.Context, d describe.Describer) error {
	if !p.Source.IsFileMedia() {
		entity, fields, err := d.Describe(ctx, p.Source, p.Name)
		if err != nil {
			return errors.Wrapf(err, "describe %s on source org %s", p.Name, p.Source.Name)
		}
		p.SourceEntity = entity
		p.SourceFields = fields
	}
	if !p.Target.IsFileMedia() {
		entity, fields, err := d.Describe(ctx, p.Target, p.Name)
		if err != nil {
			return errors.Wrapf(err, "describe %s on target org %s", p.Name, p.Target.Name)
		}
		p.TargetEntity = entity
		p.TargetFields = fields
	}
	return nil
}

// Fields returns the primary query's field list.
func (p *ObjectPlan) Fields() []string { return p.ParsedQuery.Fields() }

// FieldsToUpdate returns the queried fields writable on both orgs. Empty for
// readonly operations and until both describe maps are populated.
func (p *ObjectPlan) FieldsToUpdate() []string {
	if p.Operation == script.Readonly || len(p.SourceFields) == 0 || len(p.TargetFields) == 0 {
		return nil
	}
	var fields []string
	for _, name := range p.Fields() {
		sf, ok := p.SourceFields.Get(name)
		if !ok || sf.ReadOnly() {
			continue
		}
		tf, ok := p.TargetFields.Get(name)
		if !ok || tf.ReadOnly() {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}

// HasRecordTypeField reports whether the query selects the record-type
// reference field.
func (p *ObjectPlan) HasRecordTypeField() bool {
	return p.ParsedQuery.HasField(RecordTypeField)
}

// IsComplexExternalID reports whether the external id is a dotted reference
// or a query-style expression.
func (p *ObjectPlan) IsComplexExternalID() bool {
	return strings.Contains(p.ExternalID, ".") ||
		strings.HasPrefix(p.ExternalID, ComplexExternalIDPrefix)
}

// IsLimitedQuery reports whether the query has a row cap or a filter clause,
// which makes downstream completeness checks relevant.
func (p *ObjectPlan) IsLimitedQuery() bool {
	return p.ParsedQuery.HasLimit() || p.ParsedQuery.HasWhere()
}

// IsSpecialObject reports membership in the fixed set of entities requiring
// bespoke downstream handling.
func (p *ObjectPlan) IsSpecialObject() bool {
	for _, name := range specialObjects {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}
