package config

import "sort"

// FilterConfig is the process-wide catalog and result filter. It is built
// once at startup and only read afterwards, so it is safe to share across
// concurrent tool calls without locking.
type FilterConfig struct {
	enabled    map[string]struct{} // nil means every tool
	hidden     map[string]struct{}
	pruneNotes bool
}

// NewFilterConfig builds a FilterConfig. A nil enabled list, or one holding
// only "all", exposes every tool; a non-nil empty list exposes none.
func NewFilterConfig(enabled, hidden []string, filterBookChapterNotes bool) *FilterConfig {
	fc := &FilterConfig{
		hidden:     toSet(hidden),
		pruneNotes: filterBookChapterNotes,
	}
	if enabled != nil && !(len(enabled) == 1 && enabled[0] == allTools) {
		fc.enabled = toSet(enabled)
	}
	return fc
}

// AllTools reports whether the allow-list is "all".
func (f *FilterConfig) AllTools() bool {
	return f.enabled == nil
}

// Allows reports whether a tool name passes the allow-list. Matching is exact.
func (f *FilterConfig) Allows(name string) bool {
	if f.enabled == nil {
		return true
	}
	_, ok := f.enabled[name]
	return ok
}

// EnabledTools returns the allow-list sorted, or nil for "all".
func (f *FilterConfig) EnabledTools() []string {
	if f.enabled == nil {
		return nil
	}
	return sortedKeys(f.enabled)
}

// IsHidden reports whether a parameter is hidden from every schema.
func (f *FilterConfig) IsHidden(param string) bool {
	_, ok := f.hidden[param]
	return ok
}

// HiddenParams returns the hidden parameter names sorted.
func (f *FilterConfig) HiddenParams() []string {
	return sortedKeys(f.hidden)
}

// FilterBookChapterNotes reports whether note pruning is on.
func (f *FilterConfig) FilterBookChapterNotes() bool {
	return f.pruneNotes
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
