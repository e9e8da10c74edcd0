package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// Pinger checks upstream connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// upstreamHealthTimeout bounds one health probe.
const upstreamHealthTimeout = 5 * time.Second

// UpstreamHealthHandler reports whether the translation-helps service answers.
type UpstreamHealthHandler struct {
	logger   *common.Logger
	upstream Pinger
}

// NewUpstreamHealthHandler creates a new upstream health handler.
func NewUpstreamHealthHandler(logger *common.Logger, upstream Pinger) *UpstreamHealthHandler {
	return &UpstreamHealthHandler{logger: logger, upstream: upstream}
}

// ServeHTTP handles GET /api/upstream-health.
func (h *UpstreamHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamHealthTimeout)
	defer cancel()

	if err := h.upstream.Ping(ctx); err != nil {
		h.logger.Warn().Str("error", err.Error()).Msg("upstream health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
