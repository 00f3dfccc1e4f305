// Package sfdx implements the credential collaborator: it obtains connection
// details for a named org, either by shelling out to the sfdx CLI or through
// the JWT bearer flow.
package sfdx

import (
	"bufio"
	"strings"
)

// DisplayInfo is the parsed result of a force:org:display invocation.
type DisplayInfo struct {
	AccessToken     string
	ClientID        string
	ConnectedStatus string
	Status          string
	OrgID           string
	InstanceURL     string
	Username        string
}

// Connected reports whether the output carried a recognized connected
// indicator. Absence of one means not connected.
func (i DisplayInfo) Connected() bool {
	return strings.EqualFold(i.ConnectedStatus, "Connected") ||
		strings.EqualFold(i.Status, "Active")
}

// displayKeys in longest-first order so "Client Id" never matches as "Id".
var displayKeys = []string{
	"Connected Status",
	"Instance Url",
	"Access Token",
	"Client Id",
	"Username",
	"Status",
	"Id",
}

// ParseDisplayOutput parses the line-oriented key/value output of
// force:org:display. The last whitespace-delimited token on each recognized
// line is the value.
func ParseDisplayOutput(out string) DisplayInfo {
	var info DisplayInfo
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, key := range displayKeys {
			if !strings.HasPrefix(line, key+" ") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			value := fields[len(fields)-1]
			switch key {
			case "Access Token":
				info.AccessToken = value
			case "Client Id":
				info.ClientID = value
			case "Connected Status":
				info.ConnectedStatus = value
			case "Status":
				info.Status = value
			case "Id":
				info.OrgID = value
			case "Instance Url":
				info.InstanceURL = value
			case "Username":
				info.Username = value
			}
			break
		}
	}
	return info
}
