package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/middleware"
	"github.com/cp-path-builder/backend/internal/tools"
)

const maxToolArgsBytes = 64 << 10

// ToolExecutor lists and runs coaching tools
type ToolExecutor interface {
	Declarations() []tools.Declaration
	Execute(ctx context.Context, userID uuid.UUID, name string, args json.RawMessage) (any, error)
}

// ToolHandler exposes the tool registry over HTTP
type ToolHandler struct {
	tools ToolExecutor
}

// NewToolHandler creates a new tool handler
func NewToolHandler(tools ToolExecutor) *ToolHandler {
	return &ToolHandler{
		tools: tools,
	}
}

// ListTools returns every tool declaration
// GET /api/tools
func (h *ToolHandler) ListTools(c *gin.Context) {
	decls := h.tools.Declarations()
	c.JSON(http.StatusOK, gin.H{
		"tools": decls,
		"count": len(decls),
	})
}

// InvokeTool runs a tool with the JSON request body as its arguments
// POST /api/tools/:name
func (h *ToolHandler) InvokeTool(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxToolArgsBytes+1))
	if err != nil {
		bindError(c, err)
		return
	}
	if len(body) > maxToolArgsBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "Tool arguments too large",
		})
		return
	}

	name := c.Param("name")
	result, err := h.tools.Execute(c.Request.Context(), userID, name, json.RawMessage(body))
	if err != nil {
		respondError(c, err, "Tool execution failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tool":   name,
		"result": result,
	})
}
