package router

import (
	"fmt"
	"strings"
)

// Route sends a tool to a dedicated GET endpoint instead of the generic
// tools/call endpoint. Only QueryParams are forwarded.
type Route struct {
	Tool        string
	Path        string
	QueryParams []string
}

var (
	refParams  = []string{"reference", "language", "organization"}
	wordParams = []string{"reference", "wordId", "language", "organization"}
)

// routes lists the tools the generic endpoint does not serve correctly.
var routes = map[string]Route{
	"fetch_scripture":             {Tool: "fetch_scripture", Path: "/api/fetch-scripture", QueryParams: refParams},
	"fetch_translation_notes":     {Tool: "fetch_translation_notes", Path: "/api/translation-notes", QueryParams: refParams},
	"fetch_translation_questions": {Tool: "fetch_translation_questions", Path: "/api/translation-questions", QueryParams: refParams},
	"get_translation_word":        {Tool: "get_translation_word", Path: "/api/fetch-translation-words", QueryParams: wordParams},
	"fetch_translation_words":     {Tool: "fetch_translation_words", Path: "/api/fetch-translation-words", QueryParams: wordParams},
	"browse_translation_words": {
		Tool:        "browse_translation_words",
		Path:        "/api/browse-translation-words",
		QueryParams: []string{"language", "organization", "category", "search", "limit"},
	},
	"get_context":        {Tool: "get_context", Path: "/api/get-context", QueryParams: refParams},
	"extract_references": {Tool: "extract_references", Path: "/api/extract-references", QueryParams: []string{"text", "includeContext"}},
}

// NotesTool is the tool whose result is subject to note pruning.
const NotesTool = "fetch_translation_notes"

// RouteFor returns the dedicated route for a tool, if it has one.
func RouteFor(tool string) (Route, bool) {
	r, ok := routes[tool]
	return r, ok
}

// Validate checks the route's path is a plain absolute /api/ path.
func (r Route) Validate() error {
	if !strings.HasPrefix(r.Path, "/api/") {
		return fmt.Errorf("route for %q has invalid path %q (must start with /api/)", r.Tool, r.Path)
	}
	if strings.Contains(r.Path, "..") || strings.ContainsAny(r.Path, "?#") {
		return fmt.Errorf("route for %q has invalid path %q", r.Tool, r.Path)
	}
	return nil
}
