// Package model defines the domain types shared across the sidecart service:
// cart snapshots, suggestions, the error taxonomy, and money helpers.
package model

// SelectedOption is one name/value pair of a variant's selected options.
// Order is significant and preserved as the backend returns it.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attribute is a custom key/value attribute attached to a cart line.
// Keys starting with an underscore are internal and hidden from display.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Hidden reports whether the attribute is internal-only.
func (a Attribute) Hidden() bool {
	return len(a.Key) > 0 && a.Key[0] == '_'
}

// CartLine is one merchandise entry within a cart.
// Quantity is always >= 1 in a snapshot: a quantity of zero means pending
// removal and is expressed as a remove mutation, never as a visible line.
type CartLine struct {
	LineID        string `json:"line_id"`
	MerchandiseID string `json:"merchandise_id"`
	ProductID     string `json:"product_id"`
	ProductTitle  string `json:"product_title"`
	Quantity      int    `json:"quantity"`

	// Prices in minor units. LineTotal is the server-computed cost including
	// any applied discounts; UnitPrice*Quantity may be higher.
	UnitPrice int64 `json:"unit_price"`
	LineTotal int64 `json:"line_total"`

	ImageURL        string           `json:"image_url,omitempty"`
	SelectedOptions []SelectedOption `json:"selected_options"`
	Attributes      []Attribute      `json:"attributes"`
}

// Discounted reports whether the server applied a discount to this line.
func (l CartLine) Discounted() bool {
	return l.LineTotal < l.UnitPrice*int64(l.Quantity)
}

// VisibleAttributes returns the line's attributes with internal keys removed.
func (l CartLine) VisibleAttributes() []Attribute {
	out := make([]Attribute, 0, len(l.Attributes))
	for _, a := range l.Attributes {
		if !a.Hidden() {
			out = append(out, a)
		}
	}
	return out
}

// ShippingProgress is the derived progress toward the free-shipping threshold.
// The message is a binary choice: threshold met, or amount remaining.
type ShippingProgress struct {
	Percent   float64 `json:"percent"`
	Unlocked  bool    `json:"unlocked"`
	Remaining int64   `json:"remaining"` // minor units, 0 when unlocked
	Message   string  `json:"message"`
}

// CartSnapshot is the authoritative, fully derived view of the cart at a
// point in time. It is rebuilt from scratch on every authoritative fetch and
// never mutated in place.
type CartSnapshot struct {
	CartID      string           `json:"cart_id"`
	Empty       bool             `json:"empty"`
	Lines       []CartLine       `json:"lines"` // server order
	ItemCount   int              `json:"item_count"`
	Subtotal    int64            `json:"subtotal"` // minor units
	CheckoutURL string           `json:"checkout_url,omitempty"`
	Progress    ShippingProgress `json:"progress"`
	Suggestions []Suggestion     `json:"suggestions"`
	Notice      *Notice          `json:"notice,omitempty"`
}

// Suggestion is a recommended product derived from the current cart.
// Recomputed per snapshot, never persisted.
type Suggestion struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Handle    string `json:"handle"`
	MinPrice  int64  `json:"min_price"` // minor units
	ImageURL  string `json:"image_url,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Notice is a transient user-facing message. It never blocks interaction and
// auto-dismisses after DismissAfterSeconds.
type Notice struct {
	Message             string `json:"message"`
	ActionLabel         string `json:"action_label,omitempty"`
	ActionURL           string `json:"action_url,omitempty"`
	DismissAfterSeconds int    `json:"dismiss_after_seconds"`
}

// NoticeDismissSeconds is the fixed auto-dismiss duration for notices.
const NoticeDismissSeconds = 10

// NewNotice creates a plain transient notice.
func NewNotice(message string) *Notice {
	return &Notice{Message: message, DismissAfterSeconds: NoticeDismissSeconds}
}

// NewNoticeWithAction creates a transient notice with a call-to-action link.
func NewNoticeWithAction(message, label, url string) *Notice {
	return &Notice{
		Message:             message,
		ActionLabel:         label,
		ActionURL:           url,
		DismissAfterSeconds: NoticeDismissSeconds,
	}
}

// CartLineInput describes a line to add to the cart.
type CartLineInput struct {
	MerchandiseID string      `json:"merchandise_id"`
	Quantity      int         `json:"quantity"`
	Attributes    []Attribute `json:"attributes,omitempty"`
}
