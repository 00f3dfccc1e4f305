package sfdx

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lomashregmi/sfdmu/internal/org"
)

// CLIProvider obtains org credentials by invoking the sfdx CLI and parsing
// its force:org:display output.
type CLIProvider struct {
	Bin string

	log zerolog.Logger
}

// NewCLIProvider builds a provider that shells out to the sfdx binary on PATH.
func NewCLIProvider(logger zerolog.Logger) *CLIProvider {
	return &CLIProvider{
		Bin: "sfdx",
		log: logger.With().Str("component", "sfdx-cli").Logger(),
	}
}

// DisplayConnection runs force:org:display for the named org.
func (p *CLIProvider) DisplayConnection(ctx context.Context, orgName string) (org.ConnectionInfo, error) {
	cmd := exec.CommandContext(ctx, p.Bin, "force:org:display", "--targetusername", orgName)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return org.ConnectionInfo{}, errors.Wrapf(err, "%s force:org:display %s: %s", p.Bin, orgName, string(out))
	}

	info := ParseDisplayOutput(string(out))
	p.log.Debug().
		Str("org", orgName).
		Str("instance_url", info.InstanceURL).
		Bool("connected", info.Connected()).
		Msg("org display parsed")

	return org.ConnectionInfo{
		AccessToken: info.AccessToken,
		InstanceURL: info.InstanceURL,
		Connected:   info.Connected(),
	}, nil
}
