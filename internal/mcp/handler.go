package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	streamable *mcpserver.StreamableHTTPServer
	server     *Server
	logger     *common.Logger
}

// NewHandler creates the streamable HTTP handler for srv. Sessions are
// stateless; every request carries its own context.
func NewHandler(srv *Server, logger *common.Logger) *Handler {
	streamable := mcpserver.NewStreamableHTTPServer(srv.mcp,
		mcpserver.WithStateLess(true),
	)
	return &Handler{
		streamable: streamable,
		server:     srv,
		logger:     logger,
	}
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer. A tools/call for
// a tool outside the catalog is answered here with the same error result
// the stdio session returns.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if h.answerUnexposed(w, r, body) {
			return
		}
	}
	h.streamable.ServeHTTP(w, r)
}

// answerUnexposed reports whether body was a single tools/call request for
// an unexposed tool, writing its response if so.
func (h *Handler) answerUnexposed(w http.ResponseWriter, r *http.Request, body []byte) bool {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	if env.JSONRPC != jsonrpcVersion || env.Method != "tools/call" || env.isNotification() || !validID(env.ID) {
		return false
	}
	result, handled, err := h.server.callUnexposed(r.Context(), env.Params)
	if err != nil || !handled {
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(newResponse(env.ID, result)); err != nil {
		h.logger.Error().Str("error", err.Error()).Msg("failed to write tool result")
	}
	return true
}
