package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bobmcallan/translation-helps-proxy/internal/catalog"
	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/config"
	"github.com/bobmcallan/translation-helps-proxy/internal/handlers"
	"github.com/bobmcallan/translation-helps-proxy/internal/mcp"
	"github.com/bobmcallan/translation-helps-proxy/internal/router"
	"github.com/bobmcallan/translation-helps-proxy/internal/upstream"
)

// pingTimeout bounds the startup connectivity check.
const pingTimeout = 10 * time.Second

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Filter    *config.FilterConfig
	Upstream  *upstream.Client
	Catalog   *catalog.Catalog
	Router    *router.Router
	MCPServer *mcp.Server

	// HTTP handlers
	MCPHandler            *mcp.Handler
	HealthHandler         *handlers.HealthHandler
	VersionHandler        *handlers.VersionHandler
	UpstreamHealthHandler *handlers.UpstreamHealthHandler
	ToolsHandler          *handlers.ToolsHandler
}

// New builds the application. It resolves the tool catalog once; an
// unknown enabled tool or an unreachable upstream is returned as an error
// and nothing is served.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Filter: cfg.FilterConfig(),
	}

	if cfg.Upstream.InsecureSkipVerify {
		logger.Warn().Str("url", cfg.Upstream.URL).Msg("upstream TLS certificate verification disabled")
	}
	a.Upstream = upstream.NewClient(cfg.Upstream.URL, upstream.Options{
		Timeout:            cfg.Upstream.GetTimeout(),
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
	}, logger)

	cat, err := catalog.Resolve(ctx, a.Upstream, a.Filter, logger)
	if err != nil {
		a.Upstream.Close()
		return nil, err
	}
	a.Catalog = cat

	a.Router = router.New(cat, a.Filter, a.Upstream, logger, router.Options{
		ValidateArguments: cfg.Session.ValidateArguments,
	})
	a.MCPServer = mcp.NewServer(cat, a.Router, mcp.Info{
		Name:    cfg.Server.Name,
		Version: config.GetVersion(),
	}, logger)

	a.initHandlers()

	logger.Info().
		Str("upstream", cfg.Upstream.URL).
		Int("tools", cat.Len()).
		Bool("filter_book_chapter_notes", a.Filter.FilterBookChapterNotes()).
		Msg("application initialization complete")

	return a, nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.MCPHandler = mcp.NewHandler(a.MCPServer, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler(a.Logger)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger)
	a.UpstreamHealthHandler = handlers.NewUpstreamHealthHandler(a.Logger, a.Upstream)
	a.ToolsHandler = handlers.NewToolsHandler(a.Logger, a.Catalog.Tools)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// CheckUpstream pings the upstream and logs the outcome. It never fails.
func (a *App) CheckUpstream(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.Upstream.Ping(ctx); err != nil {
		a.Logger.Warn().Str("error", err.Error()).Msg("upstream ping failed")
		return
	}
	a.Logger.Info().Str("upstream", a.Config.Upstream.URL).Msg("upstream reachable")
}

// ServeStdio runs one MCP session over in and out.
func (a *App) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	sess := mcp.NewSession(a.MCPServer, in, out, a.Config.Session.MaxInFlight, a.Logger)
	if err := sess.Serve(ctx); err != nil {
		return fmt.Errorf("stdio session: %w", err)
	}
	return nil
}

// Close releases the upstream connection pool.
func (a *App) Close() error {
	a.Upstream.Close()
	return nil
}
