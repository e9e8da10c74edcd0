// Package router executes tool calls against the upstream: it checks the
// call against the exposed catalog, picks the generic or a dedicated
// endpoint, and returns the normalized, post-filtered result.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bobmcallan/translation-helps-proxy/internal/catalog"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
	"github.com/bobmcallan/translation-helps-proxy/internal/normalize"
	"github.com/bobmcallan/translation-helps-proxy/internal/notes"
	"github.com/bobmcallan/translation-helps-proxy/internal/upstream"
)

// Upstream is the part of the upstream client the router needs.
type Upstream interface {
	Do(ctx context.Context, r upstream.Request) (json.RawMessage, error)
	Endpoint() string
	EndpointURL(path string) (string, error)
}

// Options configures a Router.
type Options struct {
	// ValidateArguments checks arguments against the tool's exposed schema
	// before calling upstream.
	ValidateArguments bool
}

// Router routes tool calls. It holds no per-call state and is safe for
// concurrent use.
type Router struct {
	catalog  *catalog.Catalog
	filter   *config.FilterConfig
	upstream Upstream
	logger   *common.Logger
	schemas  map[string]*jsonschema.Schema
}

// New creates a Router over the resolved catalog. When argument validation
// is on, every exposed schema is compiled up front; a schema that does not
// compile disables validation for that tool only.
func New(cat *catalog.Catalog, fc *config.FilterConfig, up Upstream, logger *common.Logger, opts Options) *Router {
	r := &Router{
		catalog:  cat,
		filter:   fc,
		upstream: up,
		logger:   logger,
	}
	if opts.ValidateArguments {
		r.schemas = compileSchemas(cat, logger)
	}
	return r
}

// Route executes one tool call. Every failure is returned as an error
// whose kind ErrorText can render; none of them is fatal to the session.
func (r *Router) Route(ctx context.Context, req models.ToolCallRequest) (normalize.Result, error) {
	correlationID := common.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	log := r.logger.WithCorrelationId(correlationID)
	start := time.Now()

	tool, ok := r.catalog.Lookup(req.Name)
	if !ok {
		log.Warn().Str("tool", req.Name).Msg("tool not in catalog")
		return nil, r.notFound(req.Name)
	}

	args, stripped := r.stripHidden(req.Arguments)
	if len(stripped) > 0 {
		log.Debug().Str("tool", tool.Name).Strs("stripped", stripped).Msg("removed hidden parameters from call")
	}

	if err := r.validate(tool.Name, args); err != nil {
		log.Warn().Str("tool", tool.Name).Str("error", err.Error()).Msg("argument validation failed")
		return nil, err
	}

	upReq, err := r.buildRequest(tool.Name, args)
	if err != nil {
		log.Error().Str("tool", tool.Name).Str("error", err.Error()).Msg("routing failed")
		return nil, err
	}

	log.Info().Str("tool", tool.Name).Str("method", upReq.Method).Str("url", upReq.URL).Msg("tool call")

	body, err := r.upstream.Do(ctx, upReq)
	if err != nil {
		log.Error().Str("tool", tool.Name).Int64("duration_ms", time.Since(start).Milliseconds()).Str("error", err.Error()).Msg("tool call failed")
		return nil, err
	}

	shape, _ := normalize.Classify(body)
	result := normalize.Normalize(body)
	if tool.Name == NotesTool {
		result = notes.Prune(result, r.filter.FilterBookChapterNotes())
	}

	log.Info().
		Str("tool", tool.Name).
		Str("shape", shape.String()).
		Int("blocks", len(result)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("tool call complete")

	return result, nil
}

func (r *Router) notFound(name string) error {
	msg := fmt.Sprintf("Tool '%s' not found", name)
	if s := r.catalog.Suggest(name); len(s) > 0 {
		msg += ". Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return &Error{Kind: ErrToolNotFound, Tool: name, Msg: msg}
}

// stripHidden copies args without hidden parameters. Values are never
// substituted; the upstream applies its own defaults.
func (r *Router) stripHidden(args map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(args))
	var stripped []string
	for k, v := range args {
		if r.filter.IsHidden(k) {
			stripped = append(stripped, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(stripped)
	return out, stripped
}

func (r *Router) buildRequest(tool string, args map[string]any) (upstream.Request, error) {
	route, ok := RouteFor(tool)
	if !ok {
		return upstream.Request{
			Method: http.MethodPost,
			URL:    r.upstream.Endpoint(),
			Body: map[string]any{
				"method": "tools/call",
				"params": map[string]any{
					"name":      tool,
					"arguments": args,
				},
			},
		}, nil
	}

	if err := route.Validate(); err != nil {
		return upstream.Request{}, &Error{Kind: ErrRouting, Tool: tool, Err: err}
	}
	target, err := r.upstream.EndpointURL(route.Path)
	if err != nil {
		return upstream.Request{}, &Error{Kind: ErrRouting, Tool: tool, Err: err}
	}

	query := url.Values{}
	for _, name := range route.QueryParams {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		if s := queryValue(v); s != "" {
			query.Set(name, s)
		}
	}
	return upstream.Request{Method: http.MethodGet, URL: target, Query: query}, nil
}

// queryValue formats an argument for a query string. Scalars use their
// plain form; arrays and objects are sent as JSON.
func queryValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
