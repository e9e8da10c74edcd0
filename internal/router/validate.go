package router

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bobmcallan/translation-helps-proxy/internal/catalog"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

func compileSchemas(cat *catalog.Catalog, logger *common.Logger) map[string]*jsonschema.Schema {
	schemas := make(map[string]*jsonschema.Schema, cat.Len())
	for _, t := range cat.Tools() {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			logger.Warn().Str("tool", t.Name).Str("error", err.Error()).Msg("cannot encode input schema, skipping validation")
			continue
		}
		s, err := jsonschema.CompileString(t.Name+".json", string(raw))
		if err != nil {
			logger.Warn().Str("tool", t.Name).Str("error", err.Error()).Msg("cannot compile input schema, skipping validation")
			continue
		}
		schemas[t.Name] = s
	}
	return schemas
}

func (r *Router) validate(tool string, args map[string]any) error {
	s, ok := r.schemas[tool]
	if !ok {
		return nil
	}
	// Round-trip so numbers reach the validator as JSON numbers.
	raw, err := json.Marshal(args)
	if err != nil {
		return &Error{Kind: ErrInvalidArguments, Tool: tool, Err: err}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &Error{Kind: ErrInvalidArguments, Tool: tool, Err: err}
	}

	if err := s.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := firstLeafValidationError(ve)
			loc := leaf.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msg := leaf.Message
			if msg == "" {
				msg = leaf.Error()
			}
			return &Error{Kind: ErrInvalidArguments, Tool: tool, Msg: fmt.Sprintf("%s at %s: %s", tool, loc, msg), Err: err}
		}
		return &Error{Kind: ErrInvalidArguments, Tool: tool, Err: err}
	}
	return nil
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}
