package sfdx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lomashregmi/sfdmu/internal/org"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// JWTProvider obtains org credentials through the OAuth JWT bearer flow:
// it signs an RS256 assertion with a connected-app key and exchanges it at
// the org token endpoint.
type JWTProvider struct {
	ClientID   string
	Username   string
	LoginURL   string // e.g. https://login.salesforce.com
	PrivateKey []byte // PEM-encoded RSA key
	HTTPClient *http.Client

	log zerolog.Logger
}

// NewJWTProvider builds a bearer-flow provider for one connected app.
func NewJWTProvider(clientID, username, loginURL string, privateKey []byte, logger zerolog.Logger) *JWTProvider {
	return &JWTProvider{
		ClientID:   clientID,
		Username:   username,
		LoginURL:   strings.TrimRight(loginURL, "/"),
		PrivateKey: privateKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With().Str("component", "sfdx-jwt").Logger(),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// DisplayConnection exchanges a signed assertion for an access token. The
// orgName argument is informational; the flow authenticates the configured
// username.
func (p *JWTProvider) DisplayConnection(ctx context.Context, orgName string) (org.ConnectionInfo, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(p.PrivateKey)
	if err != nil {
		return org.ConnectionInfo{}, errors.Wrap(err, "parse private key")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.ClientID,
		"sub": p.Username,
		"aud": p.LoginURL,
		"exp": now.Add(3 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return org.ConnectionInfo{}, errors.Wrap(err, "sign assertion")
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.LoginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return org.ConnectionInfo{}, errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return org.ConnectionInfo{}, errors.Wrapf(err, "token exchange for %s", orgName)
	}
	defer resp.Body.Close()

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return org.ConnectionInfo{}, errors.Wrap(err, "decode token response")
	}
	if resp.StatusCode != http.StatusOK || tok.AccessToken == "" {
		return org.ConnectionInfo{}, errors.Errorf("token exchange for %s failed (%d): %s %s",
			orgName, resp.StatusCode, tok.Error, tok.ErrorDesc)
	}

	p.log.Debug().Str("org", orgName).Str("instance_url", tok.InstanceURL).Msg("bearer token acquired")

	return org.ConnectionInfo{
		AccessToken: tok.AccessToken,
		InstanceURL: tok.InstanceURL,
		Connected:   true,
	}, nil
}
