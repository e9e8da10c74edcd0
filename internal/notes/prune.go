// Package notes prunes book and chapter introduction notes from the
// note-fetch tool's result.
package notes

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"

	"github.com/bobmcallan/translation-helps-proxy/internal/normalize"
)

// introRef matches book ("front:intro") and chapter ("3:intro") references.
var introRef = regexp.MustCompile(`^(front|\d+):intro$`)

// IsIntroReference reports whether a note reference is a book or chapter
// introduction rather than a verse.
func IsIntroReference(ref string) bool {
	return introRef.MatchString(ref)
}

// Prune drops intro items from every block holding a JSON object with an
// items array and a metadata object, and sets metadata.totalCount to the
// number kept. Other blocks are returned unchanged. Prune is a no-op when
// enabled is false and is idempotent.
func Prune(result normalize.Result, enabled bool) normalize.Result {
	if !enabled {
		return result
	}
	out := make(normalize.Result, len(result))
	for i, b := range result {
		if v, ok := pruneBlock(b.Value); ok {
			b.Value = v
		}
		out[i] = b
	}
	return out
}

func pruneBlock(text string) (string, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &doc); err != nil || doc == nil {
		return "", false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc["items"], &items); err != nil || items == nil {
		return "", false
	}
	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(doc["metadata"], &metadata); err != nil || metadata == nil {
		return "", false
	}

	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if IsIntroReference(reference(item)) {
			continue
		}
		kept = append(kept, item)
	}

	var count int
	countMatches := json.Unmarshal(metadata["totalCount"], &count) == nil && count == len(kept)
	if len(kept) == len(items) && countMatches {
		return "", false
	}

	total, _ := json.Marshal(len(kept))
	metadata["totalCount"] = total
	doc["metadata"] = mustRaw(metadata)
	doc["items"] = mustRaw(kept)

	encoded, err := encode(doc)
	if err != nil {
		return "", false
	}
	return encoded, true
}

// reference reads an item's reference, accepting either capitalization.
// Keys are looked up exactly; struct decoding would fold case. A key whose
// value is null or not a string is skipped.
func reference(item json.RawMessage) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(item, &m); err != nil {
		return ""
	}
	for _, key := range []string{"reference", "Reference"} {
		var ref *string
		if json.Unmarshal(m[key], &ref) == nil && ref != nil {
			return *ref
		}
	}
	return ""
}

func mustRaw(v any) json.RawMessage {
	b, err := encodeCompact(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

func encodeCompact(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encode writes doc with sorted keys and two-space indentation.
func encode(doc map[string]json.RawMessage) (string, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := encodeCompact(k)
		if err != nil {
			return "", err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(doc[k])
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}
