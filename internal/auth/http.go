package auth

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"
)

//go:embed directory_response.schema.json
var responseSchema []byte

// maxResponseBytes bounds how much of a directory reply is read.
const maxResponseBytes = 64 << 10

// HTTPDirectory posts the PIN to a remote authentication endpoint.
type HTTPDirectory struct {
	url    string
	client *http.Client
	schema *jsonschema.Schema
}

// NewHTTPDirectory creates a directory backed by url. client may be nil.
func NewHTTPDirectory(url string, client *http.Client) (*HTTPDirectory, error) {
	if url == "" {
		return nil, fmt.Errorf("auth: directory url is empty")
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(responseSchema)
	if err != nil {
		return nil, fmt.Errorf("auth: compile response schema: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDirectory{url: url, client: client, schema: schema}, nil
}

type pinRequest struct {
	Pin string `json:"pin"`
}

// Lookup sends {"pin": pin} and decodes the account from the reply.
func (d *HTTPDirectory) Lookup(ctx context.Context, pin string) (DirectoryRecord, error) {
	body, err := json.Marshal(pinRequest{Pin: pin})
	if err != nil {
		return DirectoryRecord{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return DirectoryRecord{}, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return DirectoryRecord{}, fmt.Errorf("auth: post %s: %w", d.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return DirectoryRecord{}, fmt.Errorf("auth: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return DirectoryRecord{}, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return DirectoryRecord{}, ErrRateLimited
	case resp.StatusCode >= 500:
		return DirectoryRecord{}, fmt.Errorf("auth: directory returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return DirectoryRecord{}, fmt.Errorf("%w: status %s", ErrMalformed, resp.Status)
	}

	result := d.schema.ValidateJSON(data)
	if !result.IsValid() {
		return DirectoryRecord{}, fmt.Errorf("%w: %v", ErrMalformed, result.Errors)
	}
	var rec DirectoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DirectoryRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rec, nil
}
