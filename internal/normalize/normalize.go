// Package normalize converts any upstream response body into the ordered
// text blocks returned to clients.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// KindText is the only block kind produced.
const KindText = "text"

// Fallback texts.
const (
	NoScriptureText = "No scripture text found"
	EmptyResponse   = "Empty response"
)

// Block is one text block of a result.
type Block struct {
	Kind  string
	Value string
}

// Result is an ordered, never empty, sequence of blocks.
type Result []Block

// Text returns a single-block result.
func Text(s string) Result {
	return Result{{Kind: KindText, Value: s}}
}

// Texts returns the block values in order.
func (r Result) Texts() []string {
	out := make([]string, len(r))
	for i, b := range r {
		out[i] = b.Value
	}
	return out
}

// Shape identifies which top-level field of an upstream body drives
// normalization.
type Shape int

const (
	ShapeRaw Shape = iota
	ShapeScripture
	ShapeContent
	ShapeResult
)

func (s Shape) String() string {
	switch s {
	case ShapeScripture:
		return "scripture"
	case ShapeContent:
		return "content"
	case ShapeResult:
		return "result"
	default:
		return "raw"
	}
}

// Classify picks the body's shape, first match wins: scripture, content,
// result, raw. A field whose value has the wrong JSON type for its shape
// does not match. The returned payload is the matched field's value, or the
// whole body for ShapeRaw.
func Classify(raw json.RawMessage) (Shape, json.RawMessage) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return ShapeRaw, raw
	}
	if v, ok := obj["scripture"]; ok && isArray(v) {
		return ShapeScripture, v
	}
	if v, ok := obj["content"]; ok && isArray(v) {
		return ShapeContent, v
	}
	if v, ok := obj["result"]; ok {
		return ShapeResult, v
	}
	return ShapeRaw, raw
}

// Normalize converts an upstream body to a Result. It never fails and
// never returns an empty Result.
func Normalize(raw json.RawMessage) Result {
	shape, payload := Classify(raw)
	switch shape {
	case ShapeScripture:
		return scripture(payload)
	case ShapeContent:
		return content(payload)
	case ShapeResult:
		return result(payload)
	default:
		return Text(pretty(payload))
	}
}

type scriptureEntry struct {
	Translation string `json:"translation"`
	Text        string `json:"text"`
}

// scripture joins entries in supplied order, each prefixed with its
// translation, separated by a blank line.
func scripture(payload json.RawMessage) Result {
	var items []json.RawMessage
	_ = json.Unmarshal(payload, &items)
	if len(items) == 0 {
		return Text(NoScriptureText)
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		if isNull(item) {
			continue
		}
		var e scriptureEntry
		if err := json.Unmarshal(item, &e); err != nil {
			parts = append(parts, pretty(item))
			continue
		}
		if e.Translation == "" {
			parts = append(parts, e.Text)
			continue
		}
		parts = append(parts, e.Translation+": "+e.Text)
	}
	if len(parts) == 0 {
		return Text(NoScriptureText)
	}
	return Text(strings.Join(parts, "\n\n"))
}

// content passes blocks through, accepting type/kind and text/value
// spellings. Structured values are serialized. Blocks with no value are
// dropped.
func content(payload json.RawMessage) Result {
	var items []json.RawMessage
	_ = json.Unmarshal(payload, &items)

	var out Result
	for _, item := range items {
		if s, ok := asString(item); ok {
			out = append(out, Block{Kind: KindText, Value: s})
			continue
		}
		var block map[string]json.RawMessage
		if err := json.Unmarshal(item, &block); err != nil || block == nil {
			continue
		}
		val, ok := block["text"]
		if !ok {
			val, ok = block["value"]
		}
		if !ok || isNull(val) {
			continue
		}
		if s, ok := asString(val); ok {
			out = append(out, Block{Kind: KindText, Value: s})
			continue
		}
		out = append(out, Block{Kind: KindText, Value: pretty(val)})
	}
	if len(out) == 0 {
		return Text(EmptyResponse)
	}
	return out
}

func result(payload json.RawMessage) Result {
	if s, ok := asString(payload); ok {
		if s == "" {
			return Text(EmptyResponse)
		}
		return Text(s)
	}
	return Text(pretty(payload))
}

// pretty indents JSON with two spaces, keeping upstream key order.
func pretty(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return EmptyResponse
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
