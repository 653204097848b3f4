// Package bubble talks to the Bubble.io Data API.
package bubble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"go.uber.org/zap"
)

const (
	metaPath  = "/version-test/api/1.1/meta"
	objPath   = "/version-test/api/1.1/obj/"
	pageLimit = 100
)

// Meta is the discovery response: the data types the API key can read.
type Meta struct {
	AppName string   `json:"app_name"`
	Get     []string `json:"get"`
}

// Export is one full data dump, marshaled as the backup artifact.
type Export struct {
	ExportedAt time.Time                    `json:"exported_at"`
	AppURL     string                       `json:"app_url"`
	Types      map[string][]json.RawMessage `json:"types"`
}

// RecordCount sums records across all exported types.
func (e *Export) RecordCount() int64 {
	var n int64
	for _, records := range e.Types {
		n += int64(len(records))
	}
	return n
}

// Client is the Data API surface the backup engine needs.
type Client interface {
	// FetchMeta probes the app and returns its readable data types.
	FetchMeta(ctx context.Context, appURL, apiKey string) (*Meta, error)
	// ExportAll pages through every listed type and returns the dump.
	ExportAll(ctx context.Context, appURL, apiKey string, dataTypes []string) (*Export, error)
}

type client struct {
	http   *http.Client
	logger *zap.Logger
}

type Option func(*client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *client) { c.logger = l }
}

func NewClient(options ...Option) Client {
	c := &client{
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *client) FetchMeta(ctx context.Context, appURL, apiKey string) (*Meta, error) {
	body, err := c.get(ctx, strings.TrimSuffix(appURL, "/")+metaPath, apiKey)
	if err != nil {
		return nil, err
	}

	var meta Meta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, code.ErrorUnreachable.WithDetails("malformed meta response: " + err.Error())
	}
	return &meta, nil
}

func (c *client) ExportAll(ctx context.Context, appURL, apiKey string, dataTypes []string) (*Export, error) {
	export := &Export{
		ExportedAt: time.Now().UTC(),
		AppURL:     appURL,
		Types:      make(map[string][]json.RawMessage, len(dataTypes)),
	}

	base := strings.TrimSuffix(appURL, "/")
	for _, dataType := range dataTypes {
		records, err := c.exportType(ctx, base, apiKey, dataType)
		if err != nil {
			return nil, err
		}
		export.Types[dataType] = records

		c.logger.Debug("exported data type",
			zap.String("dataType", dataType),
			zap.Int("records", len(records)))
	}
	return export, nil
}

// objPage is one page of /obj/{type}. Remaining counts rows past this page.
type objPage struct {
	Response struct {
		Results   []json.RawMessage `json:"results"`
		Cursor    int               `json:"cursor"`
		Count     int               `json:"count"`
		Remaining int               `json:"remaining"`
	} `json:"response"`
}

func (c *client) exportType(ctx context.Context, base, apiKey, dataType string) ([]json.RawMessage, error) {
	records := []json.RawMessage{}

	cursor := 0
	for {
		endpoint := fmt.Sprintf("%s%s%s?cursor=%d&limit=%d",
			base, objPath, url.PathEscape(dataType), cursor, pageLimit)

		body, err := c.get(ctx, endpoint, apiKey)
		if err != nil {
			return nil, err
		}

		var page objPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, code.ErrorExportFailed.WithDetails(
				fmt.Sprintf("malformed page for type %q: %s", dataType, err))
		}

		records = append(records, page.Response.Results...)
		if page.Response.Remaining <= 0 || len(page.Response.Results) == 0 {
			return records, nil
		}
		cursor += len(page.Response.Results)
	}
}

// get issues one authenticated request and maps transport and HTTP failures
// onto the error taxonomy: 401/403 mean bad credentials, anything else that
// keeps us from reading data means the app is unreachable.
func (c *client) get(ctx context.Context, endpoint, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, code.ErrorUnreachable.WithDetails(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, code.ErrorUnreachable.WithDetails(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, code.ErrorInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, code.ErrorUnreachable.WithDetails(
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, endpoint))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, code.ErrorUnreachable.WithDetails(err.Error())
	}
	return body, nil
}
