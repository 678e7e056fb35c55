// Package sparql is a minimal SPARQL 1.1 protocol client: SELECT/ASK queries
// against the query endpoint, DELETE/INSERT updates against the update
// endpoint. It is the only place that touches the store's wire protocol.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Term is one bound RDF term in a SELECT result.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Int parses an xsd:integer-typed term.
func (t Term) Int() (int, error) {
	return strconv.Atoi(t.Value)
}

// Binding maps variable names to terms for a single solution.
type Binding map[string]Term

// Config holds the endpoint addresses.
type Config struct {
	QueryEndpoint  string
	UpdateEndpoint string
	Timeout        time.Duration
}

// Client issues protocol requests. Mutations are not retried here; the store
// is trusted for read-after-write within this process, so a failed request
// is surfaced to the caller as is.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// New builds a client. The update endpoint defaults to the query endpoint
// when unset, which is how mu-semtech exposes its database proxy.
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.UpdateEndpoint == "" {
		cfg.UpdateEndpoint = cfg.QueryEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("component", "sparql"),
	}
}

type selectResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

// Query runs a SELECT and returns its solutions.
func (c *Client) Query(ctx context.Context, q string) ([]Binding, error) {
	body, err := c.post(ctx, c.cfg.QueryEndpoint, url.Values{"query": {q}})
	if err != nil {
		return nil, err
	}
	var res selectResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}
	return res.Results.Bindings, nil
}

// Ask runs an ASK query.
func (c *Client) Ask(ctx context.Context, q string) (bool, error) {
	body, err := c.post(ctx, c.cfg.QueryEndpoint, url.Values{"query": {q}})
	if err != nil {
		return false, err
	}
	var res selectResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return false, fmt.Errorf("decode ask result: %w", err)
	}
	if res.Boolean == nil {
		return false, fmt.Errorf("ask result missing boolean")
	}
	return *res.Boolean, nil
}

// Update runs a SPARQL update. A guarded update whose WHERE no longer
// matches is a silent no-op at the store; only transport or store errors
// surface here.
func (c *Client) Update(ctx context.Context, q string) error {
	_, err := c.post(ctx, c.cfg.UpdateEndpoint, url.Values{"update": {q}})
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sparql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read sparql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("sparql request rejected", "status", resp.StatusCode, "body", truncate(string(body), 512))
		return nil, fmt.Errorf("sparql endpoint returned %d", resp.StatusCode)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
