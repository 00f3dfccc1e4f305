// Package sf is the live-org collaborator: a thin REST client implementing
// the query-runner and describer interfaces the compiler consumes. Transfer
// transport (bulk batches, CSV) lives elsewhere.
package sf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lomashregmi/sfdmu/internal/describe"
	"github.com/lomashregmi/sfdmu/internal/org"
)

// Client talks to an org's REST API using the access token carried by the
// org descriptor.
type Client struct {
	APIVersion string
	HTTPClient *http.Client

	log zerolog.Logger
}

// NewClient builds a REST client for the given API version (e.g. "59.0").
func NewClient(apiVersion string, logger zerolog.Logger) *Client {
	return &Client{
		APIVersion: apiVersion,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		log:        logger.With().Str("component", "sf-rest").Logger(),
	}
}

type queryResponse struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

// Query executes a query and returns its rows. The bulk flag is accepted for
// interface compatibility; the REST endpoint serves both probe and small
// result sets.
func (c *Client) Query(ctx context.Context, o *org.Org, soql string, useBulk bool) ([]map[string]any, error) {
	endpoint := fmt.Sprintf("%s/services/data/v%s/query?q=%s",
		o.InstanceURL, c.APIVersion, url.QueryEscape(soql))

	body, err := c.get(ctx, o, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "query org %s", o.Name)
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode query response from org %s", o.Name)
	}
	c.log.Debug().Str("org", o.Name).Int("rows", len(resp.Records)).Msg("query executed")
	return resp.Records, nil
}

type describeResponse struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Createable bool   `json:"createable"`
	Updateable bool   `json:"updateable"`
	Custom     bool   `json:"custom"`
	Fields     []struct {
		Name          string   `json:"name"`
		Type          string   `json:"type"`
		Label         string   `json:"label"`
		Createable    bool     `json:"createable"`
		Updateable    bool     `json:"updateable"`
		Calculated    bool     `json:"calculated"`
		AutoNumber    bool     `json:"autoNumber"`
		CascadeDelete bool     `json:"cascadeDelete"`
		ReferenceTo   []string `json:"referenceTo"`
	} `json:"fields"`
}

// Describe fetches entity and field metadata from an org.
func (c *Client) Describe(ctx context.Context, o *org.Org, entity string) (describe.Entity, describe.FieldMap, error) {
	endpoint := fmt.Sprintf("%s/services/data/v%s/sobjects/%s/describe",
		o.InstanceURL, c.APIVersion, url.PathEscape(entity))

	body, err := c.get(ctx, o, endpoint)
	if err != nil {
		return describe.Entity{}, nil, errors.Wrapf(err, "describe %s on org %s", entity, o.Name)
	}

	var resp describeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return describe.Entity{}, nil, errors.Wrapf(err, "decode describe response for %s", entity)
	}

	fields := make(describe.FieldMap, len(resp.Fields))
	for _, f := range resp.Fields {
		field := describe.Field{
			Name:          f.Name,
			Type:          f.Type,
			Label:         f.Label,
			Creatable:     f.Createable,
			Updateable:    f.Updateable,
			IsReference:   f.Type == "reference",
			CascadeDelete: f.CascadeDelete,
			AutoNumber:    f.AutoNumber,
			Calculated:    f.Calculated,
		}
		if len(f.ReferenceTo) > 0 {
			field.ReferencedObjectType = f.ReferenceTo[0]
		}
		fields[f.Name] = field
	}

	return describe.Entity{
		Name:       resp.Name,
		Label:      resp.Label,
		Creatable:  resp.Createable,
		Updateable: resp.Updateable,
		Custom:     resp.Custom,
	}, fields, nil
}

func (c *Client) get(ctx context.Context, o *org.Org, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+o.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
