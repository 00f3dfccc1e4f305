// Package org models one side of a migration: a live org connection or a
// local file set, with its authentication state and capability flags.
package org

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FileSentinel is the reserved org name that marks an endpoint as a local
// file set instead of a live connection. Matched case-insensitively.
const FileSentinel = "csvfile"

// Probe queries issued during Setup. They fetch no business data.
const (
	connectivityProbeSOQL  = "SELECT Id FROM Account LIMIT 1"
	personAccountProbeSOQL = "SELECT IsPersonAccount FROM Account LIMIT 1"
)

// Sentinel errors for Setup failures. The plan compiler wraps these into its
// initialization error taxonomy.
var (
	ErrNotConnected  = errors.New("org is not connected")
	ErrAccessExpired = errors.New("access token expired or invalid")
)

// Media distinguishes a live org from a local file set.
type Media int

const (
	MediaOrg Media = iota
	MediaFile
)

func (m Media) String() string {
	if m == MediaFile {
		return "File"
	}
	return "Org"
}

// Role marks which side of the migration the org is on.
type Role int

const (
	RoleSource Role = iota
	RoleTarget
)

func (r Role) String() string {
	if r == RoleTarget {
		return "Target"
	}
	return "Source"
}

// ConnectionInfo is the credential collaborator's answer for one org.
type ConnectionInfo struct {
	AccessToken string
	InstanceURL string
	Connected   bool
}

// CredentialProvider obtains connection credentials for a named org.
type CredentialProvider interface {
	DisplayConnection(ctx context.Context, orgName string) (ConnectionInfo, error)
}

// QueryRunner executes a query against a live org. Setup uses it only for
// the two validation probes.
type QueryRunner interface {
	Query(ctx context.Context, o *Org, soql string, useBulk bool) ([]map[string]any, error)
}

// Org is one endpoint of the migration. Constructed fully initialized,
// mutated in place only by Setup, immutable afterwards.
type Org struct {
	Name        string
	InstanceURL string
	AccessToken string
	Media       Media
	Role        Role

	// IsPersonAccountEnabled records whether the org's schema supports
	// person accounts. Populated by Setup for live orgs only.
	IsPersonAccountEnabled bool

	log zerolog.Logger
}

// New builds a fully-initialized org descriptor. The file-set sentinel name
// forces file media regardless of the media argument.
func New(name, instanceURL, accessToken string, role Role, logger zerolog.Logger) *Org {
	media := MediaOrg
	if strings.EqualFold(name, FileSentinel) {
		media = MediaFile
	}
	return &Org{
		Name:        name,
		InstanceURL: instanceURL,
		AccessToken: accessToken,
		Media:       media,
		Role:        role,
		log:         logger.With().Str("org", name).Logger(),
	}
}

// IsConnected reports whether the org holds an access token.
func (o *Org) IsConnected() bool { return o.AccessToken != "" }

// IsFileMedia reports whether the org is a local file set.
func (o *Org) IsFileMedia() bool { return o.Media == MediaFile }

// Setup authenticates and validates the org. For file media it is a no-op.
// For live orgs it acquires credentials if missing, validates the token with
// a minimal read-only probe, then probes person-account schema support.
// Failure of the capability probe only clears the flag; it never fails Setup.
func (o *Org) Setup(ctx context.Context, creds CredentialProvider, runner QueryRunner) error {
	if o.IsFileMedia() {
		o.log.Debug().Msg("file media, skipping org setup")
		return nil
	}

	if !o.IsConnected() {
		info, err := creds.DisplayConnection(ctx, o.Name)
		if err != nil {
			return errors.Wrapf(ErrNotConnected, "org %s: %v", o.Name, err)
		}
		if !info.Connected || info.AccessToken == "" {
			return errors.Wrapf(ErrNotConnected, "org %s", o.Name)
		}
		o.AccessToken = info.AccessToken
		o.InstanceURL = info.InstanceURL
		o.log.Info().Str("instance_url", o.InstanceURL).Msg("credentials acquired")
	}

	if _, err := runner.Query(ctx, o, connectivityProbeSOQL, false); err != nil {
		return errors.Wrapf(ErrAccessExpired, "org %s: %v", o.Name, err)
	}
	o.log.Debug().Msg("connectivity probe succeeded")

	if _, err := runner.Query(ctx, o, personAccountProbeSOQL, false); err != nil {
		o.IsPersonAccountEnabled = false
		o.log.Debug().Msg("person accounts not enabled")
		return nil
	}
	o.IsPersonAccountEnabled = true
	o.log.Debug().Msg("person accounts enabled")
	return nil
}
