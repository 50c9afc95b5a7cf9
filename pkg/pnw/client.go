package pnw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the Politics & War GraphQL endpoint.
const DefaultBaseURL = "https://api.politicsandwar.com/graphql"

// Client fetches authoritative nation and alliance data. Implementations may
// fail (network, API error) or return an empty slice for unknown ids.
type Client interface {
	QueryNations(ctx context.Context, ids []int) ([]RawNation, error)
	QueryAlliances(ctx context.Context, ids []int) ([]RawAlliance, error)
}

// GraphQLClient talks to the PnW GraphQL API over HTTP with retry/backoff.
// The API is rate limited, so transient 429/5xx responses are retried by the
// underlying retryablehttp client.
type GraphQLClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// NewGraphQLClient builds a client for the given API key. baseURL may be
// empty to use the production endpoint.
func NewGraphQLClient(apiKey, baseURL string) *GraphQLClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &GraphQLClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    rc,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data struct {
		Nations *struct {
			Data []RawNation `json:"data"`
		} `json:"nations"`
		Alliances *struct {
			Data []RawAlliance `json:"data"`
		} `json:"alliances"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// QueryNations fetches raw nation records for the given ids.
func (c *GraphQLClient) QueryNations(ctx context.Context, ids []int) ([]RawNation, error) {
	env, err := c.execute(ctx, nationQuery, ids)
	if err != nil {
		return nil, err
	}
	if env.Data.Nations == nil {
		return nil, nil
	}
	return env.Data.Nations.Data, nil
}

// QueryAlliances fetches raw alliance records for the given ids.
func (c *GraphQLClient) QueryAlliances(ctx context.Context, ids []int) ([]RawAlliance, error) {
	env, err := c.execute(ctx, allianceQuery, ids)
	if err != nil {
		return nil, err
	}
	if env.Data.Alliances == nil {
		return nil, nil
	}
	return env.Data.Alliances.Data, nil
}

func (c *GraphQLClient) execute(ctx context.Context, query string, ids []int) (*gqlEnvelope, error) {
	body, err := json.Marshal(gqlRequest{
		Query: query,
		Variables: map[string]any{
			"ids":   ids,
			"first": len(ids),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	// The PnW API authenticates via an api_key query parameter.
	endpoint := c.baseURL + "?" + url.Values{"api_key": {c.apiKey}}.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pnw api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pnw api status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env gqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode pnw response: %w", err)
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("pnw api error: %s", env.Errors[0].Message)
	}
	return &env, nil
}
