package storefront

import "encoding/json"

// GraphQL wire envelope. A non-empty Errors collection on a 2xx response is a
// protocol failure, not a transport one.

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is one entry of the response errors collection.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// === Shared payload fragments ===

// Money is an amount in major currency units as a decimal string.
type Money struct {
	Amount string `json:"amount"`
}

// Image is a single image node.
type Image struct {
	URL string `json:"url"`
}

// ImageConnection is the images(first: N) edge list.
type ImageConnection struct {
	Edges []struct {
		Node Image `json:"node"`
	} `json:"edges"`
}

// FirstURL returns the first image URL or "".
func (c ImageConnection) FirstURL() string {
	if len(c.Edges) == 0 {
		return ""
	}
	return c.Edges[0].Node.URL
}

// Category is a product taxonomy node.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SelectedOption mirrors the variant selectedOptions field.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LineAttribute mirrors the cart line attributes field.
type LineAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// === Cart payloads ===

// CartPayload is the cart object returned by cart queries and mutations.
// A null cart for a known identifier means the cart expired or was deleted.
type CartPayload struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Cost        struct {
		TotalAmount Money `json:"totalAmount"`
	} `json:"cost"`
	Lines CartLineConnection `json:"lines"`
}

// CartLineConnection is the lines(first: N) edge list.
type CartLineConnection struct {
	Edges []struct {
		Node CartLineNode `json:"node"`
	} `json:"edges"`
}

// CartLineNode is one cart line with its merchandise.
type CartLineNode struct {
	ID         string          `json:"id"`
	Quantity   int             `json:"quantity"`
	Attributes []LineAttribute `json:"attributes"`
	Cost       struct {
		TotalAmount Money `json:"totalAmount"`
	} `json:"cost"`
	Merchandise MerchandiseNode `json:"merchandise"`
}

// MerchandiseNode is the ProductVariant fragment of a cart line.
type MerchandiseNode struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Image           *Image           `json:"image"`
	Price           Money            `json:"price"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
	Product         struct {
		ID       string          `json:"id"`
		Title    string          `json:"title"`
		Images   ImageConnection `json:"images"`
		Category *Category       `json:"category"`
	} `json:"product"`
}

// ImageURL returns the variant image, falling back to the product's first image.
func (m MerchandiseNode) ImageURL() string {
	if m.Image != nil && m.Image.URL != "" {
		return m.Image.URL
	}
	return m.Product.Images.FirstURL()
}

// cartData wraps query { cart(id:) } responses.
type cartData struct {
	Cart *CartPayload `json:"cart"`
}

// cartCreateData wraps mutation { cartCreate } responses.
type cartCreateData struct {
	CartCreate struct {
		Cart *CartPayload `json:"cart"`
	} `json:"cartCreate"`
}

type cartLinesAddData struct {
	CartLinesAdd struct {
		Cart *CartPayload `json:"cart"`
	} `json:"cartLinesAdd"`
}

type cartLinesUpdateData struct {
	CartLinesUpdate struct {
		Cart *CartPayload `json:"cart"`
	} `json:"cartLinesUpdate"`
}

type cartLinesRemoveData struct {
	CartLinesRemove struct {
		Cart *CartPayload `json:"cart"`
	} `json:"cartLinesRemove"`
}

// === Product payloads ===

// ProductNode is one catalog product as returned by the products query.
type ProductNode struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Handle     string          `json:"handle"`
	Category   *Category       `json:"category"`
	PriceRange struct {
		MinVariantPrice Money `json:"minVariantPrice"`
	} `json:"priceRange"`
	Images ImageConnection `json:"images"`
}

// ProductConnection is the products(first: N) edge list.
type ProductConnection struct {
	Edges []struct {
		Node ProductNode `json:"node"`
	} `json:"edges"`
}

// Nodes flattens the connection into product nodes.
func (c ProductConnection) Nodes() []ProductNode {
	out := make([]ProductNode, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

// productsData wraps query { products } responses.
type productsData struct {
	Products ProductConnection `json:"products"`
}
