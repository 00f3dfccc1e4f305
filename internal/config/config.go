// Package config loads the migration script document (export.json) into the
// raw script model.
package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/lomashregmi/sfdmu/internal/script"
)

// ScriptFileName is the default script document name inside a working
// directory.
const ScriptFileName = "export.json"

// Defaults applied when the script omits scalar options.
const (
	DefaultPollingIntervalMs = 5000
	DefaultBulkThreshold     = 200
	DefaultAPIVersion        = "59.0"
)

// Load reads the script document at path. A directory path is resolved to
// its export.json. Textual operation values are decoded to the enum here,
// at the deserialization boundary; unknown values fail the load.
func Load(path string) (*script.Script, error) {
	v := viper.New()
	if filepath.Ext(path) == "" {
		path = filepath.Join(path, ScriptFileName)
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read script %s", path)
	}

	var s script.Script
	if err := v.Unmarshal(&s, viper.DecodeHook(script.OperationDecodeHook())); err != nil {
		return nil, errors.Wrapf(err, "unmarshal script %s", path)
	}

	// Fallback defaults
	if s.PollingIntervalMs <= 0 {
		s.PollingIntervalMs = DefaultPollingIntervalMs
	}
	if s.BulkThreshold <= 0 {
		s.BulkThreshold = DefaultBulkThreshold
	}
	if s.APIVersion == "" {
		s.APIVersion = DefaultAPIVersion
	}
	if s.BulkAPIVersion == "" {
		s.BulkAPIVersion = s.APIVersion
	}

	return &s, nil
}
