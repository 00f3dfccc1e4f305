// Package plan compiles a migration script into a validated, ordered set of
// per-entity object plans ready for the execution engine.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lomashregmi/sfdmu/internal/crypto"
	"github.com/lomashregmi/sfdmu/internal/describe"
	"github.com/lomashregmi/sfdmu/internal/org"
	"github.com/lomashregmi/sfdmu/internal/script"
	"github.com/lomashregmi/sfdmu/internal/soql"
)

// recordTypeBaseQuery is the fixed readonly query compiled for the
// synthesized RecordType dependency object.
const recordTypeBaseQuery = "SELECT Id, DeveloperName, NamespacePrefix, SobjectType FROM RecordType"

// sobjectTypeField is RecordType's entity-name field, used both for the
// injected filter and for ordering.
const sobjectTypeField = "SobjectType"

// unsupportedObjects are never part of a compiled plan; describe-only system
// entities the transfer engine cannot write.
var unsupportedObjects = []string{"Profile", "DandBCompany"}

// SkippedObject records a per-entity compile failure tolerated under the
// script's partial-success policy.
type SkippedObject struct {
	Name string
	Err  error
}

// Report collects non-fatal compilation outcomes.
type Report struct {
	Dropped     []string // entries removed by the exclusion filter
	Unsupported []string // entities removed by the denylist
	Skipped     []SkippedObject
	Warnings    []string
}

// Migration is the compiled handoff artifact: both orgs set up, plans keyed
// by entity name in dependency-relevant order. Immutable after Compile.
type Migration struct {
	RunID  string
	Script *script.Script
	Source *org.Org
	Target *org.Org
	Plans  *PlanSet
	Report Report

	// Codec is non-nil when the script asks for encrypted data files and a
	// passphrase was supplied.
	Codec *crypto.Codec
}

// LoadDescribes populates describe maps for every plan, source org first.
func (m *Migration) LoadDescribes(ctx context.Context, d describe.Describer) error {
	for _, p := range m.Plans.Plans() {
		if err := p.LoadDescribe(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Compiler compiles migration scripts. Collaborators own all network I/O;
// compilation itself is synchronous and single-threaded.
type Compiler struct {
	Creds  org.CredentialProvider
	Runner org.QueryRunner

	// Passphrase enables the encrypt-at-rest codec when the script requests
	// encrypted data files.
	Passphrase string

	Logger zerolog.Logger
}

// NewCompiler wires a compiler with its collaborators.
func NewCompiler(creds org.CredentialProvider, runner org.QueryRunner, logger zerolog.Logger) *Compiler {
	return &Compiler{Creds: creds, Runner: runner, Logger: logger}
}

// Compile builds the whole migration plan: resolves and validates both orgs,
// filters and compiles object entries, and injects implied dependency
// objects. Org setup runs source before target to keep diagnostics
// deterministic. The no-objects check happens before any org setup.
func (c *Compiler) Compile(ctx context.Context, s *script.Script, sourceName, targetName string) (*Migration, error) {
	runID := uuid.NewString()
	log := c.Logger.With().Str("run_id", runID).Logger()

	m := &Migration{
		RunID:  runID,
		Script: s,
		Source: c.resolveOrg(s, sourceName, org.RoleSource, log),
		Target: c.resolveOrg(s, targetName, org.RoleTarget, log),
		Plans:  NewPlanSet(),
	}

	surviving := make([]*script.Object, 0, len(s.Objects))
	for _, raw := range s.Objects {
		if raw.Excluded && raw.Operation != script.Readonly {
			label := objectLabel(raw)
			m.Report.Dropped = append(m.Report.Dropped, label)
			log.Info().Str("object", label).Msg("dropped by exclusion filter")
			continue
		}
		surviving = append(surviving, raw)
	}
	if len(surviving) == 0 {
		return nil, &InitializationError{Reason: ReasonNoObjectsDefined}
	}

	if err := c.setupOrg(ctx, m.Source, log); err != nil {
		return nil, err
	}
	if err := c.setupOrg(ctx, m.Target, log); err != nil {
		return nil, err
	}

	for _, raw := range surviving {
		p, err := compileObject(raw, m.Source, m.Target)
		if err != nil {
			if s.AllowPartialSuccess {
				label := objectLabel(raw)
				m.Report.Skipped = append(m.Report.Skipped, SkippedObject{Name: label, Err: err})
				log.Warn().Err(err).Str("object", label).Msg("object skipped, partial success allowed")
				continue
			}
			return nil, err
		}
		if isUnsupported(p.Name) {
			m.Report.Unsupported = append(m.Report.Unsupported, p.Name)
			log.Info().Str("object", p.Name).Msg("unsupported entity dropped")
			continue
		}
		if m.Plans.Add(p) {
			warning := fmt.Sprintf("duplicate object %s: the later entry replaces the earlier one", p.Name)
			m.Report.Warnings = append(m.Report.Warnings, warning)
			log.Warn().Str("object", p.Name).Msg("duplicate object entry, last one wins")
		}
		log.Debug().
			Str("object", p.Name).
			Str("operation", p.Operation.String()).
			Str("query", p.Query).
			Msg("object compiled")
	}

	if err := c.injectRecordType(m, log); err != nil {
		return nil, err
	}

	if s.EncryptDataFiles && c.Passphrase != "" {
		m.Codec = crypto.New(c.Passphrase)
	}

	log.Info().Int("objects", m.Plans.Len()).Msg("migration plan compiled")
	return m, nil
}

// resolveOrg finds the named org entry in the script, falling back to an
// empty placeholder. Real reachability is validated during setup.
func (c *Compiler) resolveOrg(s *script.Script, name string, role org.Role, log zerolog.Logger) *org.Org {
	entry := s.Org(name)
	if entry == nil {
		log.Debug().Str("org", name).Msg("org not in script, using placeholder")
		return org.New(name, "", "", role, log)
	}
	return org.New(entry.Name, entry.InstanceURL, entry.AccessToken, role, log)
}

func (c *Compiler) setupOrg(ctx context.Context, o *org.Org, log zerolog.Logger) error {
	err := o.Setup(ctx, c.Creds, c.Runner)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, org.ErrAccessExpired):
		return orgAuthError(ReasonAccessTokenExpired, o.Name, err)
	default:
		return orgAuthError(ReasonOrgNotConnected, o.Name, err)
	}
}

// injectRecordType synthesizes the single extra RecordType plan when any
// compiled object references the record-type field. Runs once regardless of
// how many objects trigger it; an explicitly requested RecordType plan
// suppresses injection.
func (c *Compiler) injectRecordType(m *Migration, log zerolog.Logger) error {
	var refs []string
	for _, p := range m.Plans.Plans() {
		if p.HasRecordTypeField() {
			refs = append(refs, p.Name)
		}
	}
	if len(refs) == 0 || m.Plans.Has("RecordType") {
		return nil
	}

	query, err := buildRecordTypeQuery(refs)
	if err != nil {
		return err
	}
	raw := &script.Object{
		Query:      query,
		Operation:  script.Readonly,
		AllRecords: true,
	}
	p, err := compileObject(raw, m.Source, m.Target)
	if err != nil {
		return err
	}
	p.IsExtraObject = true
	p.AllRecords = true
	m.Plans.Add(p)

	log.Info().Strs("referenced_by", refs).Msg("RecordType object injected")
	return nil
}

func buildRecordTypeQuery(refs []string) (string, error) {
	q, err := soql.Parse(recordTypeBaseQuery)
	if err != nil {
		return "", errors.Wrap(err, "parse RecordType base query")
	}
	if err := q.AndWhere(sobjectTypeField, "IN", refs, soql.StringValue); err != nil {
		return "", errors.Wrap(err, "build RecordType filter")
	}
	q.SetOrderBy(sobjectTypeField, "asc")
	return q.String(), nil
}

func isUnsupported(name string) bool {
	for _, u := range unsupportedObjects {
		if strings.EqualFold(name, u) {
			return true
		}
	}
	return false
}

func objectLabel(raw *script.Object) string {
	if raw.Name != "" {
		return raw.Name
	}
	return raw.Query
}
