package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/translation-helps-proxy/internal/app"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *globalOptions) *cobra.Command {
	var (
		o        config.Overrides
		httpMode bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filtered tool catalog over MCP",
		Long:  "Resolve the upstream catalog once, then run an MCP session on stdin/stdout. With --http, serve streamable HTTP on /mcp instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, o)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServe(cmd, cfg, httpMode)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.EnabledTools, "enabled-tools", "", "Comma-separated tools to expose (default all)")
	f.StringVar(&o.HiddenParams, "hidden-params", "", "Comma-separated parameters to hide from every tool")
	f.BoolVar(&o.FilterBookChapterNotes, "filter-book-chapter-notes", false, "Drop book and chapter intro notes from fetch_translation_notes")
	f.BoolVar(&httpMode, "http", false, "Serve streamable HTTP instead of stdio")
	f.IntVarP(&o.HTTPPort, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, httpMode bool) error {
	ctx := cmd.Context()
	logger := common.NewLoggerFromConfig(cfg.LoggingConfig())

	logger.Info().
		Str("version", config.GetVersion()).
		Str("upstream", cfg.Upstream.URL).
		Strs("enabled_tools", cfg.Filter.EnabledTools).
		Strs("hidden_params", cfg.Filter.HiddenParams).
		Bool("http", httpMode).
		Msg("configuration loaded")

	// Catalog resolution happens here, before any client message is read.
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("failed to initialize application")
		return err
	}
	defer application.Close()

	go application.CheckUpstream(ctx)

	if !httpMode {
		err := application.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("shutdown signal received")
			return nil
		}
		return err
	}

	srv := server.New(application)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
