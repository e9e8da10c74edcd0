package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobmcallan/translation-helps-proxy/internal/models"
	"github.com/bobmcallan/translation-helps-proxy/internal/normalize"
	"github.com/bobmcallan/translation-helps-proxy/internal/router"
)

func postMCP(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_UnexposedToolGetsErrorResult(t *testing.T) {
	rt := &fakeRouter{fn: func(ctx context.Context, req models.ToolCallRequest) (normalize.Result, error) {
		return nil, &router.Error{Kind: router.ErrToolNotFound, Tool: req.Name, Msg: "Tool '" + req.Name + "' not found"}
	}}
	h := NewHandler(newTestServer(t, rt), testLogger())

	w := postMCP(t, h, `{"jsonrpc":"2.0","id":"c-9","method":"tools/call","params":{"name":"get_context","arguments":{}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID     string          `json:"id"`
		Error  json.RawMessage `json:"error"`
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v: %s", err, w.Body.String())
	}
	if resp.ID != "c-9" {
		t.Errorf("expected id c-9, got %q", resp.ID)
	}
	if len(resp.Error) > 0 {
		t.Fatalf("expected a tool result, got protocol error %s", resp.Error)
	}
	if !resp.Result.IsError || len(resp.Result.Content) != 1 {
		t.Fatalf("expected one isError block, got %s", w.Body.String())
	}
	if got := resp.Result.Content[0].Text; got != "ToolNotFound: Tool 'get_context' not found" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestHandler_ExposedToolGoesThroughMCPServer(t *testing.T) {
	rt := &fakeRouter{}
	h := NewHandler(newTestServer(t, rt), testLogger())

	w := postMCP(t, h, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fetch_scripture","arguments":{"reference":"John 3:16"}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if rt.callCount() != 1 {
		t.Fatalf("expected one routed call, got %d", rt.callCount())
	}
	if !strings.Contains(w.Body.String(), "ok fetch_scripture") {
		t.Errorf("expected tool output in response, got %s", w.Body.String())
	}
}

func TestHandler_NonCallRequestsPassThrough(t *testing.T) {
	h := NewHandler(newTestServer(t, &fakeRouter{}), testLogger())

	w := postMCP(t, h, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "fetch_scripture") {
		t.Errorf("expected tool listing, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "get_context") {
		t.Errorf("unexposed tool listed: %s", w.Body.String())
	}
}
