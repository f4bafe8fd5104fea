package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// Handler wires the cart repository to HTTP.
type Handler struct {
	Repo       *Repository
	Catalog    catalog.Service
	Calculator *pricing.Calculator
	Logger     zerolog.Logger
}

// View is the JSON representation of a cart with its pricing preview.
type View struct {
	Items     []LineItem        `json:"items"`
	Promotion *promo.Descriptor `json:"promotion"`
	IsOpen    bool              `json:"isOpen"`
	Pricing   pricing.Totals    `json:"pricing"`
	Display   map[string]string `json:"display"`
}

// NewView prices cart with calc.
func NewView(cart *Aggregate, calc *pricing.Calculator) View {
	totals := cart.Totals(calc)
	return View{
		Items:     cart.Items(),
		Promotion: cart.Promotion(),
		IsOpen:    cart.IsOpen(),
		Pricing:   totals,
		Display: map[string]string{
			"subtotal": pricing.FormatPrice(totals.Subtotal),
			"discount": pricing.FormatPrice(totals.Discount),
			"total":    pricing.FormatPrice(totals.Total),
		},
	}
}

// Get returns cart contents and pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	cart, err := h.Repo.Load(r.Context(), session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, cart)
}

// AddItem adds a product by slug or numeric id, incrementing a matching line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	var payload struct {
		Slug             string   `json:"slug"`
		ProductID        int64    `json:"productId"`
		TesterSelections []string `json:"testerSelections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	var (
		product *catalog.Product
		err     error
	)
	switch {
	case payload.ProductID > 0:
		product, err = h.Catalog.LookupByNumericID(r.Context(), payload.ProductID)
	case strings.TrimSpace(payload.Slug) != "":
		product, err = h.Catalog.LookupBySlug(r.Context(), payload.Slug)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "slug or productId is required", nil)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if product == nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	if !product.InStock() {
		h.writeError(w, common.NewValidationError("productId", common.ErrSelectionUnavailable))
		return
	}
	selections := make([]string, 0, len(payload.TesterSelections))
	for _, s := range payload.TesterSelections {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			selections = append(selections, trimmed)
		}
	}
	cart, err := h.Repo.Mutate(r.Context(), session, func(c *Aggregate) error {
		c.AddItem(*product, selections...)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusCreated, cart)
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	key, ok := lineKeyParam(w, r)
	if !ok {
		return
	}
	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Quantity == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity is required", nil)
		return
	}
	cart, err := h.Repo.Mutate(r.Context(), session, func(c *Aggregate) error {
		return c.UpdateQuantity(key, *payload.Quantity)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, cart)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	key, ok := lineKeyParam(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, session, func(c *Aggregate) error {
		c.RemoveItem(key)
		return nil
	})
}

// Clear empties lines and promotion.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, session, func(c *Aggregate) error {
		c.Clear()
		return nil
	})
}

// ClearPromotion detaches the promotion.
func (h *Handler) ClearPromotion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, session, func(c *Aggregate) error {
		c.ClearPromotion()
		return nil
	})
}

// SetOpen toggles the cart drawer, or sets it when "open" is provided.
func (h *Handler) SetOpen(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Open *bool `json:"open"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	h.mutate(w, r, session, func(c *Aggregate) error {
		if payload.Open != nil {
			c.SetOpen(*payload.Open)
		} else {
			c.Toggle()
		}
		return nil
	})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, session string, fn func(*Aggregate) error) {
	cart, err := h.Repo.Mutate(r.Context(), session, fn)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, cart)
}

func (h *Handler) render(w http.ResponseWriter, status int, cart *Aggregate) {
	calc := h.Calculator
	if calc == nil {
		calc = pricing.NewCalculator(nil)
	}
	common.Data(w, status, NewView(cart, calc))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	session, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
		return "", false
	}
	return session, true
}

func lineKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "key")
	key, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(key) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line key", nil)
		return "", false
	}
	return key, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart line not found", nil)
		return
	}
	if !common.IsValidation(err) {
		h.Logger.Error().Err(err).Msg("cart_request_failed")
	}
	common.WriteError(w, err)
}
