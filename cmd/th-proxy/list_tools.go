package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
	"github.com/bobmcallan/translation-helps-proxy/internal/upstream"
)

const descriptionWidth = 60

func listToolsCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list-tools",
		Short: "Print the upstream tool catalog",
		Long:  "Fetch tools/list from the upstream and print it unfiltered. Useful for choosing enabled_tools and hidden_params.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger := common.NewLoggerFromConfig(cfg.LoggingConfig())
			client := upstream.NewClient(cfg.Upstream.URL, upstream.Options{
				Timeout:            cfg.Upstream.GetTimeout(),
				InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
			}, logger)
			defer client.Close()

			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), tools, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json or yaml")
	return cmd
}

func printTools(w io.Writer, tools []models.ToolDescriptor, format string) error {
	switch format {
	case "table":
		return printTable(w, tools)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(map[string]any{"tools": tools})
	case "yaml":
		// Round-trip through JSON so the schema's custom marshaling applies.
		data, err := json.Marshal(map[string]any{"tools": tools})
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func printTable(w io.Writer, tools []models.ToolDescriptor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, t := range tools {
		params := make([]string, 0, len(t.InputSchema.Properties))
		for name := range t.InputSchema.Properties {
			if t.InputSchema.IsRequired(name) {
				name += "*"
			}
			params = append(params, name)
		}
		sort.Strings(params)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, strings.Join(params, ","), summary(t.Description))
	}
	return tw.Flush()
}

// summary returns the first line of a description, cut to the column width.
func summary(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	if r := []rune(line); len(r) > descriptionWidth {
		return string(r[:descriptionWidth-3]) + "..."
	}
	return line
}
