// Package suggest derives a recommended-product list from the current cart.
// The selection logic (category partitioning, proportional allocation,
// backfill) is deterministic given a seeded random source; production seeds
// from the clock, tests inject a fixed seed.
package suggest

import (
	"context"
	"math/rand"
	"time"

	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/storefront"
)

const (
	// TargetCount is the fixed suggestion count fed to the rotation view.
	TargetCount = 8

	// catalogSample bounds the catalog fetch when the cart has categories.
	catalogSample = 50

	// fallbackSample bounds the best-seller fetch for empty/uncategorized carts.
	fallbackSample = 20
)

// Catalog is the slice of the executor the engine needs.
type Catalog interface {
	ListProducts(ctx context.Context, first int) ([]storefront.ProductNode, error)
}

// Engine computes suggestions. Stateless per call apart from the random
// source; intended for use from a single reconciliation flow.
type Engine struct {
	catalog Catalog
	rnd     *rand.Rand
}

// New creates an engine with a clock-seeded random source.
func New(catalog Catalog) *Engine {
	return NewWithSource(catalog, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates an engine with the given random source. Tests pass a
// fixed seed to make the draw reproducible.
func NewWithSource(catalog Catalog, src rand.Source) *Engine {
	return &Engine{catalog: catalog, rnd: rand.New(src)}
}

// ForCart derives suggestions for a cart described by its distinct line
// categories and product ids. Products already in the cart are never
// suggested. A cart with no resolvable categories falls back to a random
// sample of best sellers.
func (e *Engine) ForCart(ctx context.Context, categories, excludeProductIDs []string) ([]model.Suggestion, error) {
	if len(categories) == 0 {
		return e.fallback(ctx, excludeProductIDs)
	}

	products, err := e.catalog.ListProducts(ctx, catalogSample)
	if err != nil {
		return nil, err
	}

	excluded := toSet(excludeProductIDs)
	chosen := make(map[string]bool)
	var picks []storefront.ProductNode

	// Draw proportionally per matching category: each of the cart's
	// categories contributes up to ceil(target / categoryCount) products.
	perCategory := ceilDiv(TargetCount, len(categories))
	for _, category := range categories {
		var pool []storefront.ProductNode
		for _, p := range products {
			if excluded[p.ID] || chosen[p.ID] {
				continue
			}
			if p.Category == nil || p.Category.Name != category {
				continue
			}
			pool = append(pool, p)
		}
		e.shuffle(pool)
		for _, p := range pool[:min(perCategory, len(pool))] {
			chosen[p.ID] = true
			picks = append(picks, p)
		}
	}

	// Backfill remaining slots from the rest of the sample, non-matching
	// and uncategorized candidates included.
	if len(picks) < TargetCount {
		var pool []storefront.ProductNode
		for _, p := range products {
			if excluded[p.ID] || chosen[p.ID] {
				continue
			}
			pool = append(pool, p)
		}
		e.shuffle(pool)
		for _, p := range pool[:min(TargetCount-len(picks), len(pool))] {
			chosen[p.ID] = true
			picks = append(picks, p)
		}
	}

	// Final shuffle so category groups don't render as blocks.
	e.shuffle(picks)
	if len(picks) > TargetCount {
		picks = picks[:TargetCount]
	}

	return toSuggestions(picks), nil
}

// fallback returns a random sample of best sellers. The exclusion set still
// applies, though it is normally empty here (the cart is empty).
func (e *Engine) fallback(ctx context.Context, excludeProductIDs []string) ([]model.Suggestion, error) {
	products, err := e.catalog.ListProducts(ctx, fallbackSample)
	if err != nil {
		return nil, err
	}

	excluded := toSet(excludeProductIDs)
	var pool []storefront.ProductNode
	for _, p := range products {
		if excluded[p.ID] {
			continue
		}
		pool = append(pool, p)
	}

	e.shuffle(pool)
	if len(pool) > TargetCount {
		pool = pool[:TargetCount]
	}
	return toSuggestions(pool), nil
}

func (e *Engine) shuffle(products []storefront.ProductNode) {
	e.rnd.Shuffle(len(products), func(i, j int) {
		products[i], products[j] = products[j], products[i]
	})
}

func toSuggestions(products []storefront.ProductNode) []model.Suggestion {
	out := make([]model.Suggestion, 0, len(products))
	for _, p := range products {
		s := model.Suggestion{
			ProductID: p.ID,
			Title:     p.Title,
			Handle:    p.Handle,
			MinPrice:  model.ParseCents(p.PriceRange.MinVariantPrice.Amount),
			ImageURL:  p.Images.FirstURL(),
		}
		if p.Category != nil {
			s.Category = p.Category.Name
		}
		out = append(out, s)
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
