package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomashregmi/sfdmu/internal/org"
	"github.com/lomashregmi/sfdmu/internal/script"
)

type fakeCreds struct {
	calls []string
	info  map[string]org.ConnectionInfo
	err   error
}

func (f *fakeCreds) DisplayConnection(_ context.Context, orgName string) (org.ConnectionInfo, error) {
	f.calls = append(f.calls, orgName)
	if f.err != nil {
		return org.ConnectionInfo{}, f.err
	}
	info, ok := f.info[orgName]
	if !ok {
		return org.ConnectionInfo{}, errors.New("no such org")
	}
	return info, nil
}

type fakeRunner struct {
	failConnectivity map[string]bool
	failPersonProbe  map[string]bool
	queried          []string
}

func (f *fakeRunner) Query(_ context.Context, o *org.Org, soql string, _ bool) ([]map[string]any, error) {
	f.queried = append(f.queried, o.Name+": "+soql)
	if strings.Contains(soql, "IsPersonAccount") {
		if f.failPersonProbe[o.Name] {
			return nil, errors.New("No such column 'IsPersonAccount'")
		}
		return []map[string]any{{"IsPersonAccount": false}}, nil
	}
	if f.failConnectivity[o.Name] {
		return nil, errors.New("INVALID_SESSION_ID")
	}
	return []map[string]any{{"Id": "001000000000001"}}, nil
}

func testScript(objects ...*script.Object) *script.Script {
	return &script.Script{
		Orgs: []script.OrgEntry{
			{Name: "src", InstanceURL: "https://src.example.com", AccessToken: "tok-src"},
			{Name: "dst", InstanceURL: "https://dst.example.com", AccessToken: "tok-dst"},
		},
		Objects: objects,
	}
}

func newTestCompiler(creds *fakeCreds, runner *fakeRunner) *Compiler {
	if creds == nil {
		creds = &fakeCreds{}
	}
	if runner == nil {
		runner = &fakeRunner{}
	}
	return NewCompiler(creds, runner, zerolog.Nop())
}

func TestCompileNoObjectsDefined(t *testing.T) {
	creds := &fakeCreds{}
	runner := &fakeRunner{failConnectivity: map[string]bool{"src": true, "dst": true}}
	c := newTestCompiler(creds, runner)

	t.Run("empty script", func(t *testing.T) {
		_, err := c.Compile(context.Background(), testScript(), "src", "dst")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoObjectsDefined))
	})

	t.Run("all entries excluded", func(t *testing.T) {
		s := testScript(
			&script.Object{Query: "SELECT Id FROM Account", Operation: script.Upsert, Excluded: true},
			&script.Object{Query: "SELECT Id FROM Contact", Operation: script.Update, Excluded: true},
		)
		_, err := c.Compile(context.Background(), s, "src", "dst")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoObjectsDefined))
	})

	// The check happens before any org traffic; a broken runner and an empty
	// credential store must not have been touched.
	assert.Empty(t, creds.calls)
	assert.Empty(t, runner.queried)
}

func TestCompileExcludedReadonlySurvives(t *testing.T) {
	c := newTestCompiler(nil, nil)
	s := testScript(
		&script.Object{Query: "SELECT Id FROM Account", Operation: script.Readonly, Excluded: true},
		&script.Object{Query: "SELECT Id FROM Contact", Operation: script.Update, Excluded: true},
	)
	m, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)

	assert.Equal(t, []string{"Account"}, m.Plans.Names())
	assert.Equal(t, []string{"SELECT Id FROM Contact"}, m.Report.Dropped)
}

func TestCompileRecordTypeInjection(t *testing.T) {
	c := newTestCompiler(nil, nil)
	s := testScript(
		&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"},
		&script.Object{Query: "SELECT Id, RecordTypeId FROM Contact", Operation: script.Update},
		&script.Object{Query: "SELECT Id, RecordTypeId FROM Lead", Operation: script.Update},
	)
	m, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)

	require.Equal(t, []string{"Account", "Contact", "Lead", "RecordType"}, m.Plans.Names())

	rt := m.Plans.Get("RecordType")
	require.NotNil(t, rt)
	assert.True(t, rt.IsExtraObject)
	assert.True(t, rt.AllRecords)
	assert.Equal(t, script.Readonly, rt.Operation)
	assert.Contains(t, rt.Query, "SobjectType in ('Contact', 'Lead')")
	assert.Contains(t, rt.Query, "order by SobjectType asc")
	assert.ElementsMatch(t, []string{"Id", "DeveloperName", "NamespacePrefix", "SobjectType"}, rt.Fields())
}

func TestCompileRecordTypeInjectionSkipped(t *testing.T) {
	t.Run("no references", func(t *testing.T) {
		c := newTestCompiler(nil, nil)
		s := testScript(&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"})
		m, err := c.Compile(context.Background(), s, "src", "dst")
		require.NoError(t, err)
		assert.False(t, m.Plans.Has("RecordType"))
	})

	t.Run("explicit entry wins", func(t *testing.T) {
		c := newTestCompiler(nil, nil)
		s := testScript(
			&script.Object{Query: "SELECT Id, RecordTypeId FROM Contact", Operation: script.Update},
			&script.Object{Query: "SELECT Id, DeveloperName, SobjectType FROM RecordType WHERE SobjectType = 'Contact'", Operation: script.Readonly},
		)
		m, err := c.Compile(context.Background(), s, "src", "dst")
		require.NoError(t, err)

		rt := m.Plans.Get("RecordType")
		require.NotNil(t, rt)
		assert.False(t, rt.IsExtraObject)
		assert.Contains(t, rt.Query, "SobjectType = 'Contact'")
	})
}

func TestCompileUnsupportedDropped(t *testing.T) {
	c := newTestCompiler(nil, nil)
	s := testScript(
		&script.Object{Query: "SELECT Id, Name FROM Profile", Operation: script.Readonly},
		&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"},
	)
	m, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)

	assert.Equal(t, []string{"Account"}, m.Plans.Names())
	assert.Equal(t, []string{"Profile"}, m.Report.Unsupported)
}

func TestCompileDuplicateLastWins(t *testing.T) {
	c := newTestCompiler(nil, nil)
	s := testScript(
		&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"},
		&script.Object{Query: "SELECT Id FROM Contact", Operation: script.Update},
		&script.Object{Query: "SELECT Id, Name, Phone FROM Account", Operation: script.Update},
	)
	m, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)

	// The later entry replaces the earlier one but keeps its position.
	assert.Equal(t, []string{"Account", "Contact"}, m.Plans.Names())
	p := m.Plans.Get("Account")
	require.NotNil(t, p)
	assert.Equal(t, []string{"Id", "Name", "Phone"}, p.Fields())
	require.Len(t, m.Report.Warnings, 1)
	assert.Contains(t, m.Report.Warnings[0], "duplicate object Account")
}

func TestCompileOrgSetupFailures(t *testing.T) {
	objects := func() []*script.Object {
		return []*script.Object{{Query: "SELECT Id FROM Account", Operation: script.Upsert, ExternalID: "Id"}}
	}

	t.Run("unknown org cannot authenticate", func(t *testing.T) {
		creds := &fakeCreds{}
		c := newTestCompiler(creds, nil)
		s := &script.Script{Objects: objects()}

		_, err := c.Compile(context.Background(), s, "nobody@example.com", "dst")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOrgNotConnected))

		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "nobody@example.com", initErr.Org)
		assert.Equal(t, []string{"nobody@example.com"}, creds.calls)
	})

	t.Run("expired token on source", func(t *testing.T) {
		runner := &fakeRunner{failConnectivity: map[string]bool{"src": true}}
		c := newTestCompiler(nil, runner)

		_, err := c.Compile(context.Background(), testScript(objects()...), "src", "dst")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAccessTokenExpired))

		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "src", initErr.Org)
	})

	t.Run("expired token on target after source succeeds", func(t *testing.T) {
		runner := &fakeRunner{failConnectivity: map[string]bool{"dst": true}}
		c := newTestCompiler(nil, runner)

		_, err := c.Compile(context.Background(), testScript(objects()...), "src", "dst")
		require.Error(t, err)

		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "dst", initErr.Org)
	})
}

func TestCompileFileMediaSkipsSetup(t *testing.T) {
	creds := &fakeCreds{}
	runner := &fakeRunner{}
	c := newTestCompiler(creds, runner)
	s := testScript(&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"})

	m, err := c.Compile(context.Background(), s, "csvfile", "dst")
	require.NoError(t, err)

	assert.True(t, m.Source.IsFileMedia())
	assert.Empty(t, creds.calls)
	for _, q := range runner.queried {
		assert.NotContains(t, q, "csvfile:")
	}
}

func TestCompilePersonAccountProbe(t *testing.T) {
	t.Run("enabled flows into contact delete query", func(t *testing.T) {
		c := newTestCompiler(nil, nil)
		s := testScript(&script.Object{Query: "SELECT Id, RecordTypeId FROM Contact", Operation: script.Update, DeleteOldData: true})

		m, err := c.Compile(context.Background(), s, "src", "dst")
		require.NoError(t, err)

		assert.True(t, m.Source.IsPersonAccountEnabled)
		p := m.Plans.Get("Contact")
		require.NotNil(t, p)
		assert.Contains(t, p.DeleteQuery, "IsPersonAccount = false")

		rt := m.Plans.Get("RecordType")
		require.NotNil(t, rt)
		assert.Contains(t, rt.Query, "SobjectType in ('Contact')")
	})

	t.Run("probe failure only clears the flag", func(t *testing.T) {
		runner := &fakeRunner{failPersonProbe: map[string]bool{"src": true, "dst": true}}
		c := newTestCompiler(nil, runner)
		s := testScript(&script.Object{Query: "SELECT Id FROM Contact", Operation: script.Update, DeleteOldData: true})

		m, err := c.Compile(context.Background(), s, "src", "dst")
		require.NoError(t, err)

		assert.False(t, m.Source.IsPersonAccountEnabled)
		p := m.Plans.Get("Contact")
		require.NotNil(t, p)
		assert.NotContains(t, p.DeleteQuery, "IsPersonAccount")
	})
}

func TestCompilePartialSuccess(t *testing.T) {
	objects := func() []*script.Object {
		return []*script.Object{
			{Name: "Broken", Query: "SELECT FROM WHERE", Operation: script.Update},
			{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"},
		}
	}

	t.Run("disallowed fails the compile", func(t *testing.T) {
		c := newTestCompiler(nil, nil)
		_, err := c.Compile(context.Background(), testScript(objects()...), "src", "dst")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedQuery))
	})

	t.Run("allowed skips the entry", func(t *testing.T) {
		c := newTestCompiler(nil, nil)
		s := testScript(objects()...)
		s.AllowPartialSuccess = true

		m, err := c.Compile(context.Background(), s, "src", "dst")
		require.NoError(t, err)

		assert.Equal(t, []string{"Account"}, m.Plans.Names())
		require.Len(t, m.Report.Skipped, 1)
		assert.Equal(t, "Broken", m.Report.Skipped[0].Name)
		assert.True(t, errors.Is(m.Report.Skipped[0].Err, ErrMalformedQuery))
	})
}

func TestCompileCodec(t *testing.T) {
	s := testScript(&script.Object{Query: "SELECT Id, Name FROM Account", Operation: script.Upsert, ExternalID: "Name"})
	s.EncryptDataFiles = true

	c := newTestCompiler(nil, nil)
	c.Passphrase = "hunter2"
	m, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)
	assert.NotNil(t, m.Codec)

	c = newTestCompiler(nil, nil)
	m, err = c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)
	assert.Nil(t, m.Codec)
}

func TestCompileAssignsRunID(t *testing.T) {
	c := newTestCompiler(nil, nil)
	s := testScript(&script.Object{Query: "SELECT Id FROM Account", Operation: script.Readonly})

	m1, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)
	m2, err := c.Compile(context.Background(), s, "src", "dst")
	require.NoError(t, err)

	assert.NotEmpty(t, m1.RunID)
	assert.NotEqual(t, m1.RunID, m2.RunID)
}
