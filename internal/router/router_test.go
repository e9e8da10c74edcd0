package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/translation-helps-proxy/internal/catalog"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
	"github.com/bobmcallan/translation-helps-proxy/internal/upstream"
)

// recorded is one request seen by the fake upstream.
type recorded struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   map[string]any
}

type fakeUpstream struct {
	srv  *httptest.Server
	mu   sync.Mutex
	seen []recorded
}

func newFakeUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &rec.Body)
			}
		}
		f.mu.Lock()
		f.seen = append(f.seen, rec)
		f.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.seen, "upstream was not called")
	return f.seen[len(f.seen)-1]
}

func (f *fakeUpstream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func descriptor(t *testing.T, name, schema string) models.ToolDescriptor {
	t.Helper()
	var s models.InputSchema
	require.NoError(t, json.Unmarshal([]byte(schema), &s))
	return models.ToolDescriptor{Name: name, Description: name, InputSchema: s}
}

const refSchema = `{"type":"object","properties":{"reference":{"type":"string"},"language":{"type":"string"},"organization":{"type":"string"}},"required":["reference"]}`

func testCatalog(t *testing.T, fc *config.FilterConfig) *catalog.Catalog {
	t.Helper()
	var tools []models.ToolDescriptor
	for _, n := range []string{"fetch_scripture", "fetch_translation_notes", "get_context", "search_resources", "browse_translation_words"} {
		td := descriptor(t, n, refSchema)
		td.InputSchema = td.InputSchema.Without(fc.IsHidden)
		if fc.Allows(n) {
			tools = append(tools, td)
		}
	}
	return catalog.New(tools)
}

func newTestRouter(t *testing.T, fu *fakeUpstream, fc *config.FilterConfig, opts Options, timeout time.Duration) *Router {
	t.Helper()
	client := upstream.NewClient(fu.srv.URL+"/api/mcp", upstream.Options{Timeout: timeout}, common.NewSilentLogger())
	t.Cleanup(client.Close)
	return New(testCatalog(t, fc), fc, client, common.NewSilentLogger(), opts)
}

func args(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestRoute_FetchScriptureUsesDedicatedEndpoint(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"scripture":[{"translation":"ULT","text":"For God so loved..."}]}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 2*time.Second)

	res, err := r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_scripture", Arguments: args(t, `{"reference":"John 3:16","unknown":"x"}`)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].Value, "ULT")
	assert.Contains(t, res[0].Value, "For God so loved...")

	got := fu.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/fetch-scripture", got.Path)
	assert.Equal(t, []string{"John 3:16"}, got.Query["reference"])
	assert.NotContains(t, got.Query, "unknown", "only whitelisted params are forwarded")
}

func TestRoute_GenericToolPostsToolsCall(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"content":[{"type":"text","text":"found 3 resources"}]}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 2*time.Second)

	res, err := r.Route(t.Context(), models.ToolCallRequest{Name: "search_resources", Arguments: args(t, `{"reference":"Titus 1"}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"found 3 resources"}, res.Texts())

	got := fu.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/mcp", got.Path)
	assert.Equal(t, "tools/call", got.Body["method"])
	params := got.Body["params"].(map[string]any)
	assert.Equal(t, "search_resources", params["name"])
	assert.Equal(t, map[string]any{"reference": "Titus 1"}, params["arguments"])
}

func TestRoute_NilArgumentsSendsEmptyObject(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"result":"ok"}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "search_resources"})
	require.NoError(t, err)
	params := fu.last(t).Body["params"].(map[string]any)
	assert.Equal(t, map[string]any{}, params["arguments"])
}

func TestRoute_StripsHiddenParams(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"result":"ok"}`)
	})
	fc := config.NewFilterConfig(nil, []string{"language", "organization"}, false)
	r := newTestRouter(t, fu, fc, Options{}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{
		Name:      "get_context",
		Arguments: args(t, `{"reference":"John 3:16","language":"fr","organization":"other"}`),
	})
	require.NoError(t, err)
	got := fu.last(t)
	assert.Equal(t, "/api/get-context", got.Path)
	assert.NotContains(t, got.Query, "language")
	assert.NotContains(t, got.Query, "organization")

	_, err = r.Route(t.Context(), models.ToolCallRequest{
		Name:      "search_resources",
		Arguments: args(t, `{"reference":"John 3:16","language":"fr"}`),
	})
	require.NoError(t, err)
	params := fu.last(t).Body["params"].(map[string]any)
	assert.Equal(t, map[string]any{"reference": "John 3:16"}, params["arguments"])
}

func TestRoute_QueryValueFormatting(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"result":"ok"}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{
		Name:      "browse_translation_words",
		Arguments: args(t, `{"limit":10,"category":null,"search":"","language":"en"}`),
	})
	require.NoError(t, err)
	got := fu.last(t)
	assert.Equal(t, "/api/browse-translation-words", got.Path)
	assert.Equal(t, []string{"10"}, got.Query["limit"])
	assert.Equal(t, []string{"en"}, got.Query["language"])
	assert.NotContains(t, got.Query, "category")
	assert.NotContains(t, got.Query, "search")
}

func TestRoute_ToolNotFound(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{}`)
	})
	fc := config.NewFilterConfig([]string{"fetch_scripture"}, nil, false)
	r := newTestRouter(t, fu, fc, Options{}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "get_context"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Equal(t, "ToolNotFound: Tool 'get_context' not found", ErrorText(err))

	_, err = r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_scriptur"})
	assert.Equal(t, "ToolNotFound: Tool 'fetch_scriptur' not found. Did you mean: fetch_scripture?", ErrorText(err))

	assert.Equal(t, 0, fu.count(), "unknown tools never reach upstream")
}

func TestRoute_UpstreamErrors(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fetch-scripture":
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, `{"error":"book not found"}`)
		default:
			_, _ = io.WriteString(w, "<html>oops</html>")
		}
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_scripture", Arguments: args(t, `{"reference":"Foo 1:1"}`)})
	require.Error(t, err)
	assert.Equal(t, "UpstreamRejected: GET /api/fetch-scripture: status 500: book not found", ErrorText(err))

	_, err = r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrMalformed))
	assert.True(t, strings.HasPrefix(ErrorText(err), "UpstreamMalformed: "))
}

// Scenario D: a timed-out call fails alone and the next call succeeds.
func TestRoute_TimeoutThenSuccess(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/fetch-scripture" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		writeJSON(w, `{"result":"context ok"}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{}, 100*time.Millisecond)

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_scripture", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrUnreachable))
	assert.True(t, strings.HasPrefix(ErrorText(err), "UpstreamUnreachable: "), ErrorText(err))
	assert.Contains(t, ErrorText(err), "timed out")

	res, err := r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"context ok"}, res.Texts())
}

// Scenario C: the notes tool result is pruned when enabled.
func TestRoute_NotesArePruned(t *testing.T) {
	body := `{"items":[
		{"Reference":"front:intro","Note":"book"},
		{"Reference":"3:intro","Note":"chapter"},
		{"Reference":"3:16","Note":"a"},
		{"Reference":"3:16","Note":"b"}
	],"metadata":{"totalCount":4}}`
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, body)
	})

	for _, enabled := range []bool{true, false} {
		r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, enabled), Options{}, 2*time.Second)
		res, err := r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_translation_notes", Arguments: args(t, `{"reference":"John 3:16"}`)})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "/api/translation-notes", fu.last(t).Path)

		var doc struct {
			Items    []map[string]any `json:"items"`
			Metadata struct {
				TotalCount int `json:"totalCount"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal([]byte(res[0].Value), &doc))
		if enabled {
			assert.Len(t, doc.Items, 2)
			assert.Equal(t, 2, doc.Metadata.TotalCount)
		} else {
			assert.Len(t, doc.Items, 4)
			assert.Equal(t, 4, doc.Metadata.TotalCount)
		}
	}
}

func TestRoute_PruneOnlyAppliesToNotesTool(t *testing.T) {
	body := `{"items":[{"Reference":"front:intro"}],"metadata":{"totalCount":1}}`
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, body)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, true), Options{}, 2*time.Second)

	res, err := r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.NoError(t, err)
	assert.Contains(t, res[0].Value, "front:intro")
}

func TestRoute_ArgumentValidation(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"result":"ok"}`)
	})
	r := newTestRouter(t, fu, config.NewFilterConfig(nil, nil, false), Options{ValidateArguments: true}, 2*time.Second)

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"language":"en"}`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArguments))
	assert.True(t, strings.HasPrefix(ErrorText(err), "InvalidArguments: get_context at /"), ErrorText(err))

	_, err = r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":3}`)})
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	assert.Equal(t, 0, fu.count())

	_, err = r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.NoError(t, err)
}

func TestRoute_ValidationRunsAfterHiding(t *testing.T) {
	fu := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"result":"ok"}`)
	})
	fc := config.NewFilterConfig(nil, []string{"reference"}, false)
	r := newTestRouter(t, fu, fc, Options{ValidateArguments: true}, 2*time.Second)

	// reference is hidden, so the exposed schema no longer requires it
	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "get_context", Arguments: args(t, `{"reference":42}`)})
	require.NoError(t, err)
	assert.NotContains(t, fu.last(t).Query, "reference")
}

func TestRoutingError(t *testing.T) {
	client := upstream.NewClient("relative/api/mcp", upstream.Options{}, common.NewSilentLogger())
	fc := config.NewFilterConfig(nil, nil, false)
	r := New(testCatalog(t, fc), fc, client, common.NewSilentLogger(), Options{})

	_, err := r.Route(t.Context(), models.ToolCallRequest{Name: "fetch_scripture", Arguments: args(t, `{"reference":"John 3:16"}`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRouting))
	assert.True(t, strings.HasPrefix(ErrorText(err), "RoutingError: "))
}

func TestRoutes_AreValid(t *testing.T) {
	for name, route := range routes {
		assert.Equal(t, name, route.Tool)
		assert.NoError(t, route.Validate(), name)
	}
	assert.Error(t, Route{Tool: "x", Path: "/other/x"}.Validate())
	assert.Error(t, Route{Tool: "x", Path: "/api/../x"}.Validate())
	assert.Error(t, Route{Tool: "x", Path: "/api/x?y=1"}.Validate())
}

func TestErrorText_Fallbacks(t *testing.T) {
	assert.Equal(t, "InternalError: boom", ErrorText(errors.New("boom")))
	assert.Equal(t, "Cancelled: context canceled", ErrorText(context.Canceled))
}
