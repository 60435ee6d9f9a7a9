package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sidecart-proxy/internal/cart"
	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/sidecart"
)

// fakePort backs the controller with scripted cart state.
type fakePort struct {
	cart      *cart.Cart
	ensureErr error
	fetchErr  error
	ensured   []model.CartLineInput
	updated   map[string]int
}

func (p *fakePort) EnsureCart(ctx context.Context, line model.CartLineInput) error {
	if p.ensureErr != nil {
		return p.ensureErr
	}
	p.ensured = append(p.ensured, line)
	return nil
}

func (p *fakePort) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if p.updated == nil {
		p.updated = map[string]int{}
	}
	p.updated[lineID] = quantity
	return nil
}

func (p *fakePort) FetchAuthoritative(ctx context.Context) (*cart.Cart, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.cart, nil
}

type fakeSuggester struct {
	suggestions []model.Suggestion
}

func (s *fakeSuggester) ForCart(ctx context.Context, categories, exclude []string) ([]model.Suggestion, error) {
	return s.suggestions, nil
}

func testCart() *cart.Cart {
	return &cart.Cart{
		ID:       "gid://cart/1",
		Subtotal: 4500,
		Lines: []model.CartLine{
			{LineID: "line1", ProductID: "p1", ProductTitle: "Mug", Quantity: 3, UnitPrice: 1500, LineTotal: 4500},
		},
		Categories: []string{"Kitchen"},
		ProductIDs: []string{"p1"},
	}
}

func newTestMux(t *testing.T, port *fakePort, widget WidgetConfig) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	controller := sidecart.New(port, &fakeSuggester{suggestions: []model.Suggestion{{ProductID: "p7", Title: "Bowl"}}}, nil, 15000, logger)
	h := New(controller, widget, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestWidgetConfigEndpoint(t *testing.T) {
	widget := WidgetConfig{
		FreeShippingThreshold: 15000,
		Products: []WidgetProduct{
			{ProductID: "p1", ContainerID: "buy-box-1", Promo: &WidgetPromo{PromoProductID: "p2", Text: "Free bowl"}},
		},
	}
	mux := newTestMux(t, &fakePort{cart: testCart()}, widget)

	rec, resp := doJSON(t, mux, http.MethodGet, "/widget/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["free_shipping_threshold"] != float64(15000) {
		t.Errorf("threshold = %v", resp["free_shipping_threshold"])
	}
	products, _ := resp["products"].([]any)
	if len(products) != 1 {
		t.Fatalf("products = %v", resp["products"])
	}
	p := products[0].(map[string]any)
	if p["container_id"] != "buy-box-1" {
		t.Errorf("container_id = %v", p["container_id"])
	}
	if promo, ok := p["promo"].(map[string]any); !ok || promo["text"] != "Free bowl" {
		t.Errorf("promo = %v", p["promo"])
	}
}

func TestGetCart(t *testing.T) {
	mux := newTestMux(t, &fakePort{cart: testCart()}, WidgetConfig{})

	rec, resp := doJSON(t, mux, http.MethodGet, "/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp["cart_id"] != "gid://cart/1" {
		t.Errorf("cart_id = %v", resp["cart_id"])
	}
	if resp["item_count"] != float64(3) {
		t.Errorf("item_count = %v", resp["item_count"])
	}
	suggestions, _ := resp["suggestions"].([]any)
	if len(suggestions) != 1 {
		t.Errorf("suggestions = %v", resp["suggestions"])
	}
}

func TestGetCartFetchFailure(t *testing.T) {
	port := &fakePort{fetchErr: model.NewNetworkError(errors.New("down"))}
	mux := newTestMux(t, port, WidgetConfig{})

	rec, resp := doJSON(t, mux, http.MethodGet, "/cart", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	// The body is still a renderable snapshot carrying the notice.
	if resp["empty"] != true {
		t.Errorf("degraded body = %v", resp)
	}
	notice, _ := resp["notice"].(map[string]any)
	if notice == nil || notice["message"] == "" {
		t.Errorf("notice = %v", resp["notice"])
	}
}

func TestAddLine(t *testing.T) {
	port := &fakePort{cart: testCart()}
	mux := newTestMux(t, port, WidgetConfig{})

	rec, resp := doJSON(t, mux, http.MethodPost, "/cart/lines",
		`{"merchandise_id": "gid://variant/9", "quantity": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp["open"] != true {
		t.Error("response does not tell the widget to open")
	}
	if _, ok := resp["snapshot"].(map[string]any); !ok {
		t.Errorf("snapshot missing: %v", resp)
	}
	if len(port.ensured) != 1 || port.ensured[0].Quantity != 2 {
		t.Errorf("ensured = %+v", port.ensured)
	}
}

func TestAddLineDefaultsQuantity(t *testing.T) {
	port := &fakePort{cart: testCart()}
	mux := newTestMux(t, port, WidgetConfig{})

	rec, _ := doJSON(t, mux, http.MethodPost, "/cart/lines", `{"merchandise_id": "v1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(port.ensured) != 1 || port.ensured[0].Quantity != 1 {
		t.Errorf("ensured = %+v, want quantity defaulted to 1", port.ensured)
	}
}

func TestAddLineValidation(t *testing.T) {
	mux := newTestMux(t, &fakePort{cart: testCart()}, WidgetConfig{})

	t.Run("missing body", func(t *testing.T) {
		rec, resp := doJSON(t, mux, http.MethodPost, "/cart/lines", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		errBody, _ := resp["error"].(map[string]any)
		if errBody["code"] != "VALIDATION_ERROR" {
			t.Errorf("code = %v", errBody["code"])
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rec, _ := doJSON(t, mux, http.MethodPost, "/cart/lines", `{"merchandise_id":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("missing merchandise id", func(t *testing.T) {
		rec, resp := doJSON(t, mux, http.MethodPost, "/cart/lines", `{"quantity": 2}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		errBody, _ := resp["error"].(map[string]any)
		if errBody["code"] != "VALIDATION_ERROR" {
			t.Errorf("code = %v", errBody["code"])
		}
	})
}

func TestChangeQuantity(t *testing.T) {
	port := &fakePort{cart: testCart()}
	mux := newTestMux(t, port, WidgetConfig{})

	// The controller needs a rendered snapshot before quantities can change.
	doJSON(t, mux, http.MethodGet, "/cart", "")

	rec, resp := doJSON(t, mux, http.MethodPatch, "/cart/lines/line1", `{"delta": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if port.updated["line1"] != 4 {
		t.Errorf("updated = %v, want line1 -> 4 (3+1)", port.updated)
	}
	if resp["cart_id"] != "gid://cart/1" {
		t.Errorf("response is not a snapshot: %v", resp)
	}
}

func TestChangeQuantityValidation(t *testing.T) {
	mux := newTestMux(t, &fakePort{cart: testCart()}, WidgetConfig{})
	doJSON(t, mux, http.MethodGet, "/cart", "")

	t.Run("zero delta", func(t *testing.T) {
		rec, _ := doJSON(t, mux, http.MethodPatch, "/cart/lines/line1", `{"delta": 0}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unknown line", func(t *testing.T) {
		rec, _ := doJSON(t, mux, http.MethodPatch, "/cart/lines/ghost", `{"delta": 1}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestSuggestionsEndpoint(t *testing.T) {
	mux := newTestMux(t, &fakePort{cart: testCart()}, WidgetConfig{})

	rec, resp := doJSON(t, mux, http.MethodGet, "/suggestions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	suggestions, _ := resp["suggestions"].([]any)
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %v", resp["suggestions"])
	}
	s := suggestions[0].(map[string]any)
	if s["product_id"] != "p7" {
		t.Errorf("suggestion = %v", s)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux := newTestMux(t, &fakePort{}, WidgetConfig{})

	for _, path := range []string{"/health", "/healthz"} {
		rec, resp := doJSON(t, mux, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || resp["status"] != "ok" {
			t.Errorf("%s: status = %d body = %v", path, rec.Code, resp)
		}
	}
}
