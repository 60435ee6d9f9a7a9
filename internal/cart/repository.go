// Package cart implements cart operations over the storefront executor and
// the identity store: ensure/add, quantity updates, and the authoritative
// fetch with its single self-healing retry.
package cart

import (
	"context"

	"sidecart-proxy/internal/identity"
	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/storefront"
)

// Cart is the authoritative cart state in domain form, converted from one
// fetch of the backend. Lines keep server order.
type Cart struct {
	ID          string
	CheckoutURL string
	Subtotal    int64 // minor units
	Lines       []model.CartLine

	// Categories holds the distinct product categories across lines, in
	// order of first appearance. ProductIDs holds the distinct product
	// identifiers. Both feed the suggestion engine.
	Categories []string
	ProductIDs []string
}

// ItemCount is the total quantity across lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Repository implements the cart protocol over the remote API. It is the
// only component that interprets the identity store's contents; callers
// re-fetch for state rather than reading mutation responses.
type Repository struct {
	client *storefront.Client
	ids    identity.Store
}

// NewRepository creates a repository over the given executor and identity store.
func NewRepository(client *storefront.Client, ids identity.Store) *Repository {
	return &Repository{client: client, ids: ids}
}

// EnsureCart adds line to the active cart, creating the remote cart first if
// no identifier is persisted. Branching on identifier presence first is what
// makes repeated calls idempotent with respect to cart creation: a second
// add never creates a second cart.
//
// Returns nothing beyond success/failure; callers must re-fetch for state.
func (r *Repository) EnsureCart(ctx context.Context, line model.CartLineInput) error {
	if line.MerchandiseID == "" {
		return model.NewValidationError("merchandise_id", "required")
	}
	if line.Quantity < 1 {
		return model.NewValidationError("quantity", "must be at least 1")
	}

	cartID, ok, err := r.ids.Get(ctx)
	if err != nil {
		return err
	}

	if !ok {
		newID, err := r.client.CreateCart(ctx, []model.CartLineInput{line})
		if err != nil {
			return err
		}
		return r.ids.Set(ctx, newID)
	}

	return r.client.AddLines(ctx, cartID, []model.CartLineInput{line})
}

// UpdateLineQuantity changes one line's quantity. Quantity 0 means pending
// removal and routes to the remove operation: a zero-quantity line is never
// persisted as a visible line. Negative quantities are rejected.
func (r *Repository) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if lineID == "" {
		return model.NewValidationError("line_id", "required")
	}
	if quantity < 0 {
		return model.NewValidationError("quantity", "must not be negative")
	}

	cartID, ok, err := r.ids.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewCartNotFoundError("(none)")
	}

	if quantity == 0 {
		return r.client.RemoveLines(ctx, cartID, []string{lineID})
	}
	return r.client.UpdateLine(ctx, cartID, lineID, quantity)
}

// FetchAuthoritative reads the full cart by the persisted identifier.
//
// An absent identifier returns (nil, nil): "no cart" is a normal state, not
// an error. A null cart for a present identifier means the pointer is stale
// (expired or deleted server side); the store is cleared and the read retried
// exactly once. A second miss is a hard CartNotFound — this is the only
// automatic self-healing retry outside the executor's transport retry, and
// it must not loop.
func (r *Repository) FetchAuthoritative(ctx context.Context) (*Cart, error) {
	return r.fetch(ctx, true)
}

func (r *Repository) fetch(ctx context.Context, healStale bool) (*Cart, error) {
	cartID, ok, err := r.ids.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	payload, err := r.client.FetchCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		if !healStale {
			return nil, model.NewCartNotFoundError(cartID)
		}
		if err := r.ids.Clear(ctx); err != nil {
			return nil, err
		}
		return r.fetch(ctx, false)
	}

	return fromPayload(payload), nil
}

// fromPayload converts the wire cart into domain form.
func fromPayload(p *storefront.CartPayload) *Cart {
	c := &Cart{
		ID:          p.ID,
		CheckoutURL: p.CheckoutURL,
		Subtotal:    model.ParseCents(p.Cost.TotalAmount.Amount),
	}

	seenCategory := make(map[string]bool)
	seenProduct := make(map[string]bool)

	for _, edge := range p.Lines.Edges {
		node := edge.Node
		line := model.CartLine{
			LineID:        node.ID,
			MerchandiseID: node.Merchandise.ID,
			ProductID:     node.Merchandise.Product.ID,
			ProductTitle:  node.Merchandise.Product.Title,
			Quantity:      node.Quantity,
			UnitPrice:     model.ParseCents(node.Merchandise.Price.Amount),
			LineTotal:     model.ParseCents(node.Cost.TotalAmount.Amount),
			ImageURL:      node.Merchandise.ImageURL(),
		}

		// "Default Title" is the placeholder option of single-variant
		// products; it carries no information and is suppressed.
		for _, opt := range node.Merchandise.SelectedOptions {
			if opt.Value == "Default Title" {
				continue
			}
			line.SelectedOptions = append(line.SelectedOptions, model.SelectedOption{
				Name:  opt.Name,
				Value: opt.Value,
			})
		}

		for _, attr := range node.Attributes {
			line.Attributes = append(line.Attributes, model.Attribute{
				Key:   attr.Key,
				Value: attr.Value,
			})
		}

		c.Lines = append(c.Lines, line)

		if id := node.Merchandise.Product.ID; id != "" && !seenProduct[id] {
			seenProduct[id] = true
			c.ProductIDs = append(c.ProductIDs, id)
		}
		if cat := node.Merchandise.Product.Category; cat != nil && cat.Name != "" && !seenCategory[cat.Name] {
			seenCategory[cat.Name] = true
			c.Categories = append(c.Categories, cat.Name)
		}
	}

	return c
}
