package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
	"github.com/bobmcallan/translation-helps-proxy/internal/models"
)

// ToolsHandler lists the exposed tool catalog.
type ToolsHandler struct {
	logger *common.Logger
	tools  func() []models.ToolDescriptor
}

// NewToolsHandler creates a handler listing the tools returned by tools.
func NewToolsHandler(logger *common.Logger, tools func() []models.ToolDescriptor) *ToolsHandler {
	return &ToolsHandler{logger: logger, tools: tools}
}

// toolSummary is one entry of GET /api/tools.
type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ServeHTTP handles GET /api/tools.
func (h *ToolsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	tools := h.tools()
	out := make([]toolSummary, 0, len(tools))
	for _, td := range tools {
		schema, err := json.Marshal(td.InputSchema)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode tool schema")
			return
		}
		out = append(out, toolSummary{Name: td.Name, Description: td.Description, InputSchema: schema})
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"tools": out,
		"count": len(out),
	})
}
