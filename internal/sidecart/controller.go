// Package sidecart implements the reconciliation controller: the state
// machine that orders mutations against authoritative re-fetches and builds
// the deterministic snapshot handed to the view layer.
package sidecart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sidecart-proxy/internal/cart"
	"sidecart-proxy/internal/model"
)

// State is the controller's lifecycle state. Error is always recoverable:
// a failed load or mutation returns to Ready with a degraded snapshot rather
// than sticking.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateMutating      State = "mutating"
	StateError         State = "error"
)

// MutationPort is the cart protocol the controller depends on. The concrete
// implementation is cart.Repository; widget code talks to this interface
// rather than resolving functions from shared scope.
type MutationPort interface {
	EnsureCart(ctx context.Context, line model.CartLineInput) error
	UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error
	FetchAuthoritative(ctx context.Context) (*cart.Cart, error)
}

// Suggester derives the recommended-product list for a cart.
type Suggester interface {
	ForCart(ctx context.Context, categories, excludeProductIDs []string) ([]model.Suggestion, error)
}

// ChangeListener is the single outward hook the core exposes: invoked with
// the fresh snapshot after every refresh. The view layer only reads it.
type ChangeListener interface {
	OnCartChanged(snapshot *model.CartSnapshot)
}

// Shipping progress messages. Binary: threshold met or amount remaining.
const (
	msgShippingUnlocked  = "You've unlocked Free Shipping"
	msgShippingRemaining = "Add $%s for Free Shipping"
)

// Controller orchestrates mutations and refreshes for a single cart widget.
//
// Every mutation is followed by an unconditional full refresh, and the
// snapshot is rebuilt from scratch each time, so the rendered view can never
// diverge from the backend's bookkeeping (server-applied discounts, stock
// changes) regardless of which mutation triggered it.
//
// Overlapping mutation→refresh chains are neither coalesced nor cancelled:
// each chain is internally ordered (the refresh never starts before its
// mutation settles), but the last refresh to complete determines the
// rendered state. Known consistency gap, preserved deliberately; fixing it
// would need request sequencing tokens that discard stale responses.
type Controller struct {
	port      MutationPort
	suggester Suggester
	listener  ChangeListener
	threshold int64 // free-shipping threshold, minor units
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	snapshot *model.CartSnapshot
}

// New creates a controller. listener may be nil.
func New(port MutationPort, suggester Suggester, listener ChangeListener, thresholdMinorUnits int64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		port:      port,
		suggester: suggester,
		listener:  listener,
		threshold: thresholdMinorUnits,
		state:     StateUninitialized,
		logger:    logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the last built snapshot, or nil before the first refresh.
func (c *Controller) Snapshot() *model.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Refresh fetches authoritative cart state and rebuilds the snapshot from
// scratch. Invoked on load and after every mutation, successful or not.
// A fetch failure produces a degraded error snapshot and still returns the
// controller to Ready.
func (c *Controller) Refresh(ctx context.Context) (*model.CartSnapshot, error) {
	c.setState(StateLoading)

	authoritative, err := c.port.FetchAuthoritative(ctx)
	if err != nil {
		c.logger.Error("authoritative fetch failed", slog.String("error", err.Error()))
		c.setState(StateError)
		snap := c.errorSnapshot()
		c.publish(snap)
		c.setState(StateReady)
		return snap, err
	}

	snap := c.buildSnapshot(ctx, authoritative, nil)
	c.publish(snap)
	c.setState(StateReady)
	return snap, nil
}

// AddToCart ensures the line is in the remote cart, then refreshes. On
// mutation failure the snapshot still reflects true remote state (the
// refresh runs regardless) and carries a transient notice; the error is
// returned alongside it.
func (c *Controller) AddToCart(ctx context.Context, merchandiseID string, quantity int, attributes []model.Attribute) (*model.CartSnapshot, error) {
	c.setState(StateMutating)

	mutErr := c.port.EnsureCart(ctx, model.CartLineInput{
		MerchandiseID: merchandiseID,
		Quantity:      quantity,
		Attributes:    attributes,
	})
	if mutErr != nil {
		c.logger.Error("add to cart failed",
			slog.String("merchandise_id", merchandiseID),
			slog.String("error", mutErr.Error()),
		)
	}

	snap, _ := c.Refresh(ctx)
	if mutErr != nil && snap != nil && snap.Notice == nil {
		snap.Notice = model.NewNotice("Failed to add item to cart. Please try again.")
		c.publish(snap)
	}
	return snap, mutErr
}

// ChangeLineQuantity applies a quantity delta to a rendered line. The new
// quantity is computed from the currently rendered value; a negative result
// is a no-op. Zero routes to removal inside the repository. The refresh runs
// unconditionally, including on mutation failure, to self-correct any drift.
func (c *Controller) ChangeLineQuantity(ctx context.Context, lineID string, delta int) (*model.CartSnapshot, error) {
	current := c.Snapshot()
	if current == nil {
		return nil, model.NewValidationError("cart", "not loaded")
	}

	line := findLine(current, lineID)
	if line == nil {
		return current, model.NewValidationError("line_id", fmt.Sprintf("no rendered line %s", lineID))
	}

	newQty := line.Quantity + delta
	if newQty < 0 {
		return current, nil
	}

	c.setState(StateMutating)
	mutErr := c.port.UpdateLineQuantity(ctx, lineID, newQty)
	if mutErr != nil {
		c.logger.Error("quantity change failed",
			slog.String("line_id", lineID),
			slog.Int("quantity", newQty),
			slog.String("error", mutErr.Error()),
		)
	}

	snap, _ := c.Refresh(ctx)
	if mutErr != nil && snap != nil && snap.Notice == nil {
		snap.Notice = model.NewNotice("Error updating cart.")
		c.publish(snap)
	}
	return snap, mutErr
}

// buildSnapshot assembles the snapshot in fixed order: header (identifier,
// item count) → shipping progress → line list (server order) → subtotal →
// suggestions. The order is part of the contract; tests rely on it being
// reproduced exactly.
func (c *Controller) buildSnapshot(ctx context.Context, authoritative *cart.Cart, notice *model.Notice) *model.CartSnapshot {
	if authoritative == nil {
		// No cart yet. Matches the widget's empty view: no suggestions are
		// computed until a cart exists.
		return &model.CartSnapshot{
			Empty:       true,
			Lines:       []model.CartLine{},
			Suggestions: []model.Suggestion{},
			Notice:      notice,
		}
	}

	snap := &model.CartSnapshot{
		CartID:      authoritative.ID,
		Empty:       len(authoritative.Lines) == 0,
		ItemCount:   authoritative.ItemCount(),
		Progress:    computeProgress(authoritative.Subtotal, c.threshold),
		Lines:       authoritative.Lines,
		Subtotal:    authoritative.Subtotal,
		CheckoutURL: authoritative.CheckoutURL,
		Suggestions: []model.Suggestion{},
		Notice:      notice,
	}
	if snap.Lines == nil {
		snap.Lines = []model.CartLine{}
	}

	// Suggestion failures never block the cart render; the rotation view is
	// simply hidden for this snapshot.
	suggestions, err := c.suggester.ForCart(ctx, authoritative.Categories, authoritative.ProductIDs)
	if err != nil {
		c.logger.Warn("suggestions unavailable", slog.String("error", err.Error()))
	} else if suggestions != nil {
		snap.Suggestions = suggestions
	}

	return snap
}

// errorSnapshot is the degraded view shown when authoritative state cannot
// be fetched. It preserves nothing from prior snapshots: an assumed state is
// worse than an explicit error.
func (c *Controller) errorSnapshot() *model.CartSnapshot {
	return &model.CartSnapshot{
		Empty:       true,
		Lines:       []model.CartLine{},
		Suggestions: []model.Suggestion{},
		Notice:      model.NewNotice("Error loading cart. Please try again."),
	}
}

// computeProgress derives progress toward the free-shipping threshold.
// progressPercent = min(subtotal/threshold*100, 100); the message is a
// binary choice between unlocked and amount remaining.
func computeProgress(subtotal, threshold int64) model.ShippingProgress {
	if threshold <= 0 {
		return model.ShippingProgress{}
	}

	percent := float64(subtotal) / float64(threshold) * 100
	if percent > 100 {
		percent = 100
	}

	if subtotal >= threshold {
		return model.ShippingProgress{
			Percent:  percent,
			Unlocked: true,
			Message:  msgShippingUnlocked,
		}
	}

	remaining := threshold - subtotal
	return model.ShippingProgress{
		Percent:   percent,
		Remaining: remaining,
		Message:   fmt.Sprintf(msgShippingRemaining, model.FormatCents(remaining)),
	}
}

func findLine(snap *model.CartSnapshot, lineID string) *model.CartLine {
	for i := range snap.Lines {
		if snap.Lines[i].LineID == lineID {
			return &snap.Lines[i]
		}
	}
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) publish(snap *model.CartSnapshot) {
	c.mu.Lock()
	c.snapshot = snap
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.OnCartChanged(snap)
	}
}
