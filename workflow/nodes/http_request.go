package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/flowmesh/workflow"
)

// HTTPRequestDefinition performs an HTTP call against an external service.
// The response is surfaced verbatim; interpretation belongs downstream.
type HTTPRequestDefinition struct {
	client *http.Client
}

// NewHTTPRequestDefinition creates the definition. client may be nil to use
// a default with a 30s outer timeout; the engine's node timeout still
// applies through the request context.
func NewHTTPRequestDefinition(client *http.Client) HTTPRequestDefinition {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return HTTPRequestDefinition{client: client}
}

func (HTTPRequestDefinition) Type() string        { return "http_request" }
func (HTTPRequestDefinition) DisplayName() string { return "HTTP Request" }
func (HTTPRequestDefinition) Description() string {
	return "Performs an HTTP request and returns status, headers and body"
}

func (d HTTPRequestDefinition) CreateInstance() (workflow.Instance, error) {
	return &httpRequestInstance{client: d.client}, nil
}

type httpRequestParams struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

type httpRequestInstance struct {
	client *http.Client
	params httpRequestParams
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
	http.MethodHead:   {},
}

func (h *httpRequestInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "http_request", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &h.params); err != nil {
		return &workflow.ConfigError{Field: "http_request", Reason: err.Error()}
	}
	if h.params.URL == "" {
		return &workflow.ConfigError{Field: "http_request.url", Reason: "url required"}
	}
	if h.params.Method == "" {
		h.params.Method = http.MethodGet
	}
	if _, ok := allowedMethods[h.params.Method]; !ok {
		return &workflow.ConfigError{Field: "http_request.method", Reason: "unsupported method: " + h.params.Method}
	}
	return nil
}

func (h *httpRequestInstance) Execute(ctx context.Context, _ *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	var body io.Reader
	if len(h.params.Body) > 0 {
		body = bytes.NewReader(h.params.Body)
	}
	req, err := http.NewRequestWithContext(ctx, h.params.Method, h.params.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range h.params.Headers {
		req.Header.Set(key, value)
	}
	if len(h.params.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}
	out, err := json.Marshal(map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    string(respBody),
	})
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: out}, nil
}
