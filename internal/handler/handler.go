// Package handler provides the HTTP and MCP surface consumed by the widget
// layer and by cartctl.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/sidecart"
)

// WidgetProduct is one entry of the host-page product registry: which
// product widget to mount into which container. Consumed by the buy-box
// layer only; the core never interprets it beyond serving it back.
type WidgetProduct struct {
	ProductID   string       `json:"product_id"`
	ContainerID string       `json:"container_id"`
	Promo       *WidgetPromo `json:"promo,omitempty"`
}

// WidgetPromo is an optional per-product promotion shown by the buy box.
type WidgetPromo struct {
	PromoProductID string `json:"promo_product_id"`
	ImageURL       string `json:"image_url,omitempty"`
	Text           string `json:"text,omitempty"`
	Disclaimer     string `json:"disclaimer,omitempty"`
}

// WidgetConfig is the bootstrap payload served to the host page.
type WidgetConfig struct {
	FreeShippingThreshold int64           `json:"free_shipping_threshold"` // minor units
	Products              []WidgetProduct `json:"products"`
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	controller *sidecart.Controller
	widget     WidgetConfig
	logger     *slog.Logger
}

// New creates a Handler over the reconciliation controller.
func New(controller *sidecart.Controller, widget WidgetConfig, logger *slog.Logger) *Handler {
	if widget.Products == nil {
		widget.Products = []WidgetProduct{}
	}
	return &Handler{
		controller: controller,
		widget:     widget,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Widget bootstrap
	mux.HandleFunc("GET /widget/config", h.handleWidgetConfig)

	// Cart operations
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/lines", h.handleAddLine)
	mux.HandleFunc("PATCH /cart/lines/{id}", h.handleChangeQuantity)

	// Suggestions for the rotation view
	mux.HandleFunc("GET /suggestions", h.handleSuggestions)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleWidgetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.widget)
}

// handleGetCart refreshes and returns the current snapshot. A fetch failure
// yields the degraded snapshot with the error's status: the body is always a
// renderable snapshot, never a bare error envelope.
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.Refresh(r.Context())
	if err != nil {
		h.writeSnapshotError(w, snap, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// addLineRequest is the add-to-cart entry point's payload.
type addLineRequest struct {
	MerchandiseID string            `json:"merchandise_id"`
	Quantity      int               `json:"quantity"`
	Attributes    []model.Attribute `json:"attributes,omitempty"`
}

// addLineResponse tells the widget whether to open/expand after the add.
type addLineResponse struct {
	Open     bool                `json:"open"`
	Snapshot *model.CartSnapshot `json:"snapshot"`
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	snap, err := h.controller.AddToCart(r.Context(), req.MerchandiseID, req.Quantity, req.Attributes)
	if err != nil {
		if errors.Is(err, model.ErrInvalidRequest) {
			h.writeError(w, err)
			return
		}
		h.writeSnapshotError(w, snap, err)
		return
	}

	h.writeJSON(w, http.StatusOK, addLineResponse{Open: true, Snapshot: snap})
}

// changeQuantityRequest carries the delta applied to a rendered line.
type changeQuantityRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) handleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	lineID := r.PathValue("id")

	var req changeQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Delta == 0 {
		h.writeError(w, model.NewValidationError("delta", "must be non-zero"))
		return
	}

	snap, err := h.controller.ChangeLineQuantity(r.Context(), lineID, req.Delta)
	if err != nil {
		if errors.Is(err, model.ErrInvalidRequest) {
			h.writeError(w, err)
			return
		}
		h.writeSnapshotError(w, snap, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	snap := h.controller.Snapshot()
	if snap == nil {
		var err error
		snap, err = h.controller.Refresh(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": snap.Suggestions})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if
// present. Uses errors.As() to unwrap error chains.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.asAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// writeSnapshotError sends a degraded snapshot under the error's status.
// Cart endpoints always answer with a renderable snapshot so the widget can
// show true remote state (or the degraded view) alongside the notice.
func (h *Handler) writeSnapshotError(w http.ResponseWriter, snap *model.CartSnapshot, err error) {
	apiErr := h.asAPIError(err)
	if snap == nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, apiErr.StatusCode, snap)
}

func (h *Handler) asAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return &model.APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON decodes a request body with a size cap and strict EOF handling.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("body", "request body is required")
		}
		return model.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	return nil
}
