package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"billtrack/internal/log"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// maxParallel bounds concurrent batch requests; the API allows five per second per base.
const maxParallel = 4

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("airtable: status %d %s", e.Status, e.Type)
	}
	return fmt.Sprintf("airtable: status %d %s: %s", e.Status, e.Type, e.Message)
}

// Client is the REST connector factory. Dial binds it to one base and key.
type Client struct {
	baseURL string
	table   string
	http    *http.Client
	logger  *log.Logger
}

func NewClient(baseURL, table string, httpClient *http.Client, logger *log.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(table) == "" {
		table = "Bills"
	}
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		table:   table,
		http:    httpClient,
		logger:  logger.WithComponent(log.ComponentAirtable),
	}
}

// Dial checks the key can read the table with a one-record probe.
func (c *Client) Dial(ctx context.Context, baseID, apiKey string) (Table, error) {
	t := &restTable{
		c:        c,
		endpoint: c.baseURL + "/" + url.PathEscape(baseID) + "/" + url.PathEscape(c.table),
		apiKey:   apiKey,
	}
	var page listPage
	if err := t.do(ctx, http.MethodGet, t.endpoint+"?maxRecords=1", nil, &page); err != nil {
		return nil, fmt.Errorf("probe %s: %w", c.table, err)
	}
	return t, nil
}

// newHTTPClientWithPooling keeps connections to the API warm between calls.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

type restTable struct {
	c        *Client
	endpoint string
	apiKey   string
}

type listPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// List follows offsets until the table is exhausted.
func (t *restTable) List(ctx context.Context) ([]Record, error) {
	var out []Record
	offset := ""
	for {
		q := url.Values{"pageSize": {"100"}}
		if offset != "" {
			q.Set("offset", offset)
		}
		var page listPage
		if err := t.do(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

// Create writes fields in batches of MaxBatch. Records come back in input
// order. On error the records of the batches that did succeed are returned
// with it.
func (t *restTable) Create(ctx context.Context, fields []Fields) ([]Record, error) {
	batches := chunks(fields, MaxBatch)
	results := make([][]Record, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, batch := range batches {
		g.Go(func() error {
			body := struct {
				Records  []Record `json:"records"`
				Typecast bool     `json:"typecast"`
			}{Typecast: true}
			for _, f := range batch {
				body.Records = append(body.Records, Record{Fields: f})
			}
			var page listPage
			if err := t.do(gctx, http.MethodPost, t.endpoint, body, &page); err != nil {
				return err
			}
			results[i] = page.Records
			return nil
		})
	}
	err := g.Wait()
	out := make([]Record, 0, len(fields))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, err
}

func (t *restTable) Update(ctx context.Context, recordID string, fields Fields) (Record, error) {
	var rec Record
	body := Record{Fields: fields}
	err := t.do(ctx, http.MethodPatch, t.endpoint+"/"+url.PathEscape(recordID), body, &rec)
	return rec, err
}

// Delete removes records in batches of MaxBatch.
func (t *restTable) Delete(ctx context.Context, recordIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, batch := range chunks(recordIDs, MaxBatch) {
		g.Go(func() error {
			q := url.Values{"records[]": batch}
			return t.do(gctx, http.MethodDelete, t.endpoint+"?"+q.Encode(), nil, nil)
		})
	}
	return g.Wait()
}

func (t *restTable) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, t.c.table, err)
	}
	defer resp.Body.Close()

	t.c.logger.DebugContext(ctx, "Airtable request",
		log.FieldMethod, method,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	// The error member is either an object or a bare string.
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && len(env.Error) > 0 {
		if json.Unmarshal(env.Error, apiErr) != nil {
			_ = json.Unmarshal(env.Error, &apiErr.Type)
		}
	}
	if apiErr.Type == "" {
		apiErr.Type = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsAuthError reports whether err is a rejected api key.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}
