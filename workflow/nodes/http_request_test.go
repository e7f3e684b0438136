package nodes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowmesh/workflow"
)

func TestHTTPRequest_ConfigureValidation(t *testing.T) {
	t.Parallel()
	def := NewHTTPRequestDefinition(nil)

	tests := []struct {
		name   string
		params string
	}{
		{"empty", ``},
		{"missing url", `{"method":"GET"}`},
		{"bad method", `{"url":"http://example.com","method":"BREW"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := def.CreateInstance()
			require.NoError(t, err)
			err = inst.Configure(json.RawMessage(tt.params))
			require.Error(t, err)
			var cfgErr *workflow.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestHTTPRequest_Get(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "token", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	def := NewHTTPRequestDefinition(srv.Client())
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(
		`{"url":"`+srv.URL+`","headers":{"X-Api-Key":"token"}}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var resp struct {
		Status  int               `json:"status"`
		Headers map[string]string `json:"headers"`
		Body    string            `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"ok":true}`, resp.Body)
}

func TestHTTPRequest_PostBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"hello"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	def := NewHTTPRequestDefinition(srv.Client())
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(
		`{"url":"`+srv.URL+`","method":"POST","body":{"q":"hello"}}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestHTTPRequest_NonOKStatusIsNotAnError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	def := NewHTTPRequestDefinition(srv.Client())
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"url":"`+srv.URL+`"}`)))

	// 响应原样交给下游判断，状态码不是节点错误
	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.Equal(t, http.StatusBadGateway, resp.Status)
}

func TestHTTPRequest_UnreachableHostFails(t *testing.T) {
	t.Parallel()
	def := NewHTTPRequestDefinition(nil)
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"url":"http://127.0.0.1:1"}`)))

	_, err = inst.Execute(context.Background(), testContext(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request")
}

func TestHTTPRequest_HonorsContextCancellation(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	def := NewHTTPRequestDefinition(srv.Client())
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"url":"`+srv.URL+`"}`)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = inst.Execute(ctx, testContext(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
