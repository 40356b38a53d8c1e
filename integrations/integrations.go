// Package integrations executes API-bound tools against external HTTP
// services. The runtime treats it as an opaque collaborator: the executor
// hands over an integration id, method, path and arguments, and receives the
// decoded response.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Integration describes one upstream API endpoint group.
type Integration struct {
	ID       string
	Name     string
	BaseURL  string
	AuthType string // "none", "bearer", or "apiKey"
	AuthVal  string
}

// Invoker executes an API-bound tool call.
type Invoker interface {
	Invoke(ctx context.Context, integrationID, method, path string, args map[string]any) (any, error)
}

// HTTPInvoker is the production Invoker: it resolves integrations from an
// in-memory registry and performs plain JSON-over-HTTP calls.
type HTTPInvoker struct {
	mu     sync.RWMutex
	byID   map[string]Integration
	client *http.Client
	log    *slog.Logger
}

// NewHTTPInvoker constructs an invoker over the given integrations. A nil
// client gets a 30s-timeout default.
func NewHTTPInvoker(configs []Integration, client *http.Client, log *slog.Logger) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	inv := &HTTPInvoker{
		byID:   make(map[string]Integration, len(configs)),
		client: client,
		log:    log.With(slog.String("component", "integrations")),
	}
	for _, c := range configs {
		inv.byID[c.ID] = c
	}
	return inv
}

// Add registers or replaces an integration.
func (inv *HTTPInvoker) Add(integration Integration) {
	inv.mu.Lock()
	inv.byID[integration.ID] = integration
	inv.mu.Unlock()
}

// Invoke implements Invoker. GET and DELETE requests encode arguments as
// query parameters; other methods send a JSON body.
func (inv *HTTPInvoker) Invoke(ctx context.Context, integrationID, method, path string, args map[string]any) (any, error) {
	inv.mu.RLock()
	integration, ok := inv.byID[integrationID]
	inv.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown API integration: %s", integrationID)
	}

	endpoint := strings.TrimRight(integration.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	method = strings.ToUpper(method)
	if method == http.MethodGet || method == http.MethodDelete {
		if len(args) > 0 {
			q := url.Values{}
			for k, v := range args {
				q.Set(k, fmt.Sprint(v))
			}
			endpoint += "?" + q.Encode()
		}
	} else {
		payload, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encoding arguments: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	switch integration.AuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+integration.AuthVal)
	case "apiKey":
		req.Header.Set("X-API-Key", integration.AuthVal)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", integration.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", integration.ID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		inv.log.Warn("API integration call failed",
			slog.String("integration", integration.ID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%s responded with status %d", integration.ID, resp.StatusCode)
	}

	if len(data) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		// Upstreams are not obliged to speak JSON; pass text through.
		return string(data), nil
	}
	return decoded, nil
}
