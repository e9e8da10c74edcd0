// Package catalog resolves the tool list exposed to clients from the
// upstream's raw list and the process FilterConfig.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
)

// ErrConfig is matched by every *ConfigError.
var ErrConfig = errors.New("invalid tool configuration")

// ConfigError reports enabled tool names the upstream does not offer.
type ConfigError struct {
	Unknown   []string // sorted
	Available []string // sorted
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Unknown tools specified: %s. Available tools: %s",
		strings.Join(e.Unknown, ", "), strings.Join(e.Available, ", "))
}

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Lister is the part of the upstream client the resolver needs.
type Lister interface {
	ListTools(ctx context.Context) ([]models.ToolDescriptor, error)
}

// maxSuggestions bounds the names offered for an unknown tool.
const maxSuggestions = 3

// Catalog is the filtered tool list. It is read-only after Resolve.
type Catalog struct {
	tools  []models.ToolDescriptor
	byName map[string]int
}

// Resolve fetches the upstream tool list, checks the allow-list against it,
// keeps only allowed tools and removes hidden parameters from every schema.
func Resolve(ctx context.Context, lister Lister, fc *config.FilterConfig, logger *common.Logger) (*Catalog, error) {
	raw, err := lister.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool list: %w", err)
	}

	valid := validateTools(raw, logger)

	if !fc.AllTools() {
		available := make(map[string]struct{}, len(valid))
		names := make([]string, 0, len(valid))
		for _, t := range valid {
			available[t.Name] = struct{}{}
			names = append(names, t.Name)
		}
		var unknown []string
		for _, name := range fc.EnabledTools() {
			if _, ok := available[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(names)
			return nil, &ConfigError{Unknown: unknown, Available: names}
		}
	}

	c := &Catalog{byName: make(map[string]int)}
	for _, t := range valid {
		if !fc.Allows(t.Name) {
			continue
		}
		t.InputSchema = t.InputSchema.Without(fc.IsHidden)
		c.byName[t.Name] = len(c.tools)
		c.tools = append(c.tools, t)
	}

	logger.Info().
		Int("upstream_tools", len(raw)).
		Int("exposed_tools", len(c.tools)).
		Strs("hidden_params", fc.HiddenParams()).
		Msg("tool catalog resolved")

	return c, nil
}

// New builds a Catalog from already-filtered descriptors.
func New(tools []models.ToolDescriptor) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(tools))}
	for _, t := range tools {
		if _, dup := c.byName[t.Name]; dup || t.Name == "" {
			continue
		}
		c.byName[t.Name] = len(c.tools)
		c.tools = append(c.tools, t)
	}
	return c
}

// validateTools drops empty-name and duplicate entries, keeping upstream order.
func validateTools(raw []models.ToolDescriptor, logger *common.Logger) []models.ToolDescriptor {
	seen := make(map[string]bool, len(raw))
	valid := make([]models.ToolDescriptor, 0, len(raw))
	for _, t := range raw {
		if t.Name == "" {
			logger.Warn().Msg("skipping upstream tool with empty name")
			continue
		}
		if seen[t.Name] {
			logger.Warn().Str("name", t.Name).Msg("skipping duplicate upstream tool")
			continue
		}
		seen[t.Name] = true
		valid = append(valid, t)
	}
	return valid
}

// Tools returns the exposed tools in upstream order. The slice is a copy.
func (c *Catalog) Tools() []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// Len returns the number of exposed tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Names returns the exposed tool names in upstream order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the exposed descriptor for name. Matching is exact.
func (c *Catalog) Lookup(name string) (models.ToolDescriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return models.ToolDescriptor{}, false
	}
	return c.tools[i], true
}

// Suggest returns up to three exposed names close to name, best first.
// Tools removed by the allow-list are never candidates.
func (c *Catalog) Suggest(name string) []string {
	if name == "" || len(c.tools) == 0 {
		return nil
	}
	names := c.Names()

	type candidate struct {
		name     string
		distance int
	}
	var found []candidate
	seen := make(map[string]bool)
	add := func(n string, d int) {
		if seen[n] {
			return
		}
		seen[n] = true
		found = append(found, candidate{n, d})
	}

	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)
	for _, r := range ranks {
		add(r.Target, r.Distance)
	}
	for _, n := range names {
		// catches typos and extra characters, which subsequence matching misses
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(n)); d <= 3 {
			add(n, d)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].distance < found[j].distance })
	if len(found) > maxSuggestions {
		found = found[:maxSuggestions]
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}
