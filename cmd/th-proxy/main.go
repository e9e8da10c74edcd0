// th-proxy bridges an MCP client on stdin/stdout to the translation-helps
// HTTP upstream.
//
// Usage:
//
//	th-proxy serve              # stdio MCP session
//	th-proxy serve --http       # streamable HTTP on /mcp
//	th-proxy list-tools         # print the upstream catalog
//	th-proxy version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/translation-helps-proxy/internal/config"
)

func main() {
	config.LoadVersionFromFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configFiles []string
	upstreamURL string
	debug       bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "th-proxy",
		Short:         "MCP bridge to the translation-helps API",
		Long:          "th-proxy serves the translation-helps tools to an MCP client over stdio (or HTTP), filtering the catalog and normalizing upstream responses.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&opts.configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	flags.StringVar(&opts.upstreamURL, "upstream-url", "", "Upstream MCP endpoint URL (overrides config)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(listToolsCmd(opts))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "th-proxy %s\n", config.GetFullVersion())
		},
	}
}

// loadConfig reads the config files (auto-discovered when none are given)
// and applies flag overrides last.
func loadConfig(opts *globalOptions, o config.Overrides) (*config.Config, error) {
	files := opts.configFiles
	if len(files) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				files = append(files, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, err
	}

	o.UpstreamURL = opts.upstreamURL
	o.Debug = opts.debug
	config.ApplyFlagOverrides(cfg, o)
	return cfg, nil
}

// configSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried first.
func configSearchPaths() []string {
	candidates := []string{
		"th-proxy.toml",
		filepath.Join("config", "th-proxy.toml"),
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)

	paths := []string{
		filepath.Join(binDir, "th-proxy.toml"),
		filepath.Join(binDir, "config", "th-proxy.toml"),
	}
	paths = append(paths, candidates...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
