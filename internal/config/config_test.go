package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomashregmi/sfdmu/internal/script"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ScriptFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeScript(t, `{
		"orgs": [
			{"name": "src", "instanceUrl": "https://src.example.com", "accessToken": "tok"}
		],
		"objects": [
			{
				"query": "SELECT Id, Name FROM Account",
				"operation": "Upsert",
				"externalId": "Name",
				"deleteOldData": true
			},
			{
				"query": "SELECT Id FROM Contact",
				"operation": "readonly",
				"excluded": true
			}
		],
		"pollingIntervalMs": 2000,
		"apiVersion": "60.0",
		"allowPartialSuccess": true
	}`)

	s, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, s.Orgs, 1)
	assert.Equal(t, "src", s.Orgs[0].Name)
	assert.Equal(t, "tok", s.Orgs[0].AccessToken)

	require.Len(t, s.Objects, 2)
	assert.Equal(t, script.Upsert, s.Objects[0].Operation)
	assert.Equal(t, "Name", s.Objects[0].ExternalID)
	assert.True(t, s.Objects[0].DeleteOldData)
	assert.Equal(t, script.Readonly, s.Objects[1].Operation)
	assert.True(t, s.Objects[1].Excluded)

	assert.Equal(t, 2000, s.PollingIntervalMs)
	assert.Equal(t, "60.0", s.APIVersion)
	assert.True(t, s.AllowPartialSuccess)
}

func TestLoadDefaults(t *testing.T) {
	dir := writeScript(t, `{
		"objects": [{"query": "SELECT Id FROM Account", "operation": "Insert"}]
	}`)

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultPollingIntervalMs, s.PollingIntervalMs)
	assert.Equal(t, DefaultBulkThreshold, s.BulkThreshold)
	assert.Equal(t, DefaultAPIVersion, s.APIVersion)
	assert.Equal(t, s.APIVersion, s.BulkAPIVersion)
}

func TestLoadBulkAPIVersionFollowsAPIVersion(t *testing.T) {
	dir := writeScript(t, `{
		"objects": [{"query": "SELECT Id FROM Account", "operation": "Insert"}],
		"apiVersion": "58.0"
	}`)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "58.0", s.BulkAPIVersion)
}

func TestLoadExplicitFilePath(t *testing.T) {
	dir := writeScript(t, `{"objects": []}`)

	s, err := Load(filepath.Join(dir, ScriptFileName))
	require.NoError(t, err)
	assert.Empty(t, s.Objects)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := writeScript(t, `{not json`)
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("unknown operation", func(t *testing.T) {
		dir := writeScript(t, `{
			"objects": [{"query": "SELECT Id FROM Account", "operation": "Destroy"}]
		}`)
		_, err := Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Destroy")
	})
}
