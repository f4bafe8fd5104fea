package configurator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// Handler exposes the offer configurator over HTTP.
type Handler struct {
	Registry   *Registry
	Carts      *cart.Repository
	Calculator *pricing.Calculator
	Logger     zerolog.Logger
}

// ListOffers returns the offer table.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, promo.Definitions())
}

// SelectOffer activates the offer in the path, or deactivates it when it is
// already active.
func (h *Handler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	code, err := promo.ParseCode(chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := cfg.SelectOffer(code); err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cfg.State())
}

// Active returns the configurator state.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, cfg.State())
}

// StepOptions lists the selectable products for a step.
func (h *Handler) StepOptions(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	options, err := cfg.Options(r.Context(), stepParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, options)
}

// Choose records a product for a step.
func (h *Handler) Choose(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID int64 `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ProductID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if err := cfg.Choose(r.Context(), stepParam(r), payload.ProductID); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cfg.State())
}

// Focus reopens a step for editing.
func (h *Handler) Focus(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	if err := cfg.Focus(stepParam(r)); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cfg.State())
}

// Commit adds the finished set to the session cart.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configurator(w, r)
	if !ok {
		return
	}
	if h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	session, _ := common.SessionID(r.Context())
	var result Result
	updated, err := h.Carts.Mutate(r.Context(), session, func(c *cart.Aggregate) error {
		var err error
		result, err = cfg.AddConfiguredSetToCart(r.Context(), c)
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	cfg.Reset()
	calc := h.Calculator
	if calc == nil {
		calc = pricing.NewCalculator(nil)
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"result": result,
			"cart":   cart.NewView(updated, calc),
		},
	})
}

func (h *Handler) configurator(w http.ResponseWriter, r *http.Request) (*Configurator, bool) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator not configured", nil)
		return nil, false
	}
	session, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
		return nil, false
	}
	return h.Registry.Get(session), true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if !common.IsValidation(err) {
		h.Logger.Error().Err(err).Msg("configurator_request_failed")
	}
	common.WriteError(w, err)
}

func stepParam(r *http.Request) int {
	n, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "index")))
	if err != nil {
		return -1
	}
	return n
}
