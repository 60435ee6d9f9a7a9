// MCP transport handler using the official MCP Go SDK.
// Exposes the same cart operations as the REST API as MCP tools so agents
// can drive a shopper's cart.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sidecart-proxy/internal/model"
)

// === MCP Tool Input/Output Types ===

// AddToCartInput is the input schema for the add_to_cart tool.
type AddToCartInput struct {
	MerchandiseID string            `json:"merchandise_id" jsonschema:"variant to add,required"`
	Quantity      int               `json:"quantity,omitempty" jsonschema:"quantity to add (default 1)"`
	Attributes    []model.Attribute `json:"attributes,omitempty" jsonschema:"custom line attributes"`
}

// GetCartInput is the input schema for the get_cart tool.
type GetCartInput struct{}

// ChangeLineQuantityInput is the input schema for the change_line_quantity tool.
type ChangeLineQuantityInput struct {
	LineID string `json:"line_id" jsonschema:"cart line to adjust,required"`
	Delta  int    `json:"delta" jsonschema:"signed quantity change,required"`
}

// GetSuggestionsInput is the input schema for the get_suggestions tool.
type GetSuggestionsInput struct{}

// SuggestionsOutput wraps the suggestion list for the get_suggestions tool.
type SuggestionsOutput struct {
	Suggestions []model.Suggestion `json:"suggestions"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "sidecart-proxy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Sidecart - shopping cart operations against the storefront. " +
				"Use these tools to add items, adjust quantities, and read cart state.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product variant to the cart. Creates the cart on first use.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Fetch the authoritative cart state: lines, subtotal, shipping progress, and suggestions.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_line_quantity",
		Description: "Adjust a cart line's quantity by a signed delta. Reaching zero removes the line.",
	}, h.mcpChangeLineQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_suggestions",
		Description: "Get product suggestions drawn from the categories already in the cart.",
	}, h.mcpGetSuggestions)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *model.CartSnapshot, error) {
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	snap, err := h.controller.AddToCart(ctx, input.MerchandiseID, quantity, input.Attributes)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, snap, nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *model.CartSnapshot, error) {
	snap, err := h.controller.Refresh(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, snap, nil
}

func (h *Handler) mcpChangeLineQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ChangeLineQuantityInput,
) (*mcp.CallToolResult, *model.CartSnapshot, error) {
	if input.LineID == "" {
		return nil, nil, fmt.Errorf("line_id is required")
	}

	snap, err := h.controller.ChangeLineQuantity(ctx, input.LineID, input.Delta)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, snap, nil
}

func (h *Handler) mcpGetSuggestions(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSuggestionsInput,
) (*mcp.CallToolResult, *SuggestionsOutput, error) {
	snap := h.controller.Snapshot()
	if snap == nil {
		var err error
		snap, err = h.controller.Refresh(ctx)
		if err != nil {
			return nil, nil, h.mcpError(err)
		}
	}

	return nil, &SuggestionsOutput{Suggestions: snap.Suggestions}, nil
}

// mcpError converts domain errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
