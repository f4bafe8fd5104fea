// Package configurator walks a shopper through the selection steps of a
// gift-set offer and commits the finished set to a cart.
package configurator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/obs"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// Mode reports how a committed set was represented in the cart.
type Mode string

const (
	// ModeBundle adds a single bundle SKU carrying the chosen names.
	ModeBundle Mode = "bundle"
	// ModeItems adds every chosen product as its own line.
	ModeItems Mode = "items"
)

// Step is one selection slot of the active offer.
type Step struct {
	Key      string     `json:"key"`
	Pool     promo.Pool `json:"pool"`
	Label    string     `json:"label"`
	ChosenID int64      `json:"chosenId,omitempty"`
}

// Chosen reports whether the step has a selection.
func (s Step) Chosen() bool { return s.ChosenID > 0 }

// Options toggles configurator behaviour.
type Options struct {
	// PreferBundleSKU commits fixed-price offers as a single bundle product
	// when the catalog carries one.
	PreferBundleSKU bool
}

// State is a read-only view of a configurator.
type State struct {
	Offer    promo.Code `json:"offer,omitempty"`
	Label    string     `json:"label,omitempty"`
	Steps    []Step     `json:"steps"`
	Focus    int        `json:"focus"`
	Complete bool       `json:"complete"`
}

// Result describes a successful commit.
type Result struct {
	Descriptor promo.Descriptor `json:"promotion"`
	Mode       Mode             `json:"mode"`
}

// Configurator is the per-session offer state machine.
type Configurator struct {
	mu     sync.Mutex
	pools  PoolSource
	opts   Options
	logger zerolog.Logger

	offer promo.Code
	steps []Step
	focus int
}

// New constructs a configurator with no active offer.
func New(pools PoolSource, opts Options, logger zerolog.Logger) *Configurator {
	return &Configurator{pools: pools, opts: opts, logger: logger}
}

// SelectOffer activates code, discarding earlier selections. Selecting the
// active offer again deactivates it.
func (c *Configurator) SelectOffer(code promo.Code) error {
	def, ok := promo.Lookup(code)
	if !ok {
		return common.NewValidationError("offer", common.ErrUnknownOffer)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offer == code {
		c.resetLocked()
		return nil
	}
	c.offer = code
	c.focus = 0
	c.steps = make([]Step, 0, len(def.Steps))
	for _, s := range def.Steps {
		c.steps = append(c.steps, Step{Key: s.Key, Pool: s.Pool, Label: s.Label})
	}
	return nil
}

// Reset returns to the initial state.
func (c *Configurator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Active returns the active offer code, empty when none.
func (c *Configurator) Active() promo.Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offer
}

// Steps returns the ordered steps of the active offer.
func (c *Configurator) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Step(nil), c.steps...)
}

// State returns a snapshot for rendering.
func (c *Configurator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Offer: c.offer, Steps: append([]Step{}, c.steps...), Focus: c.focus, Complete: c.completeLocked()}
	if def, ok := promo.Lookup(c.offer); ok {
		st.Label = def.Label
	}
	return st
}

// Complete reports whether every step has a choice.
func (c *Configurator) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completeLocked()
}

// Focus reopens step for editing; other selections are kept.
func (c *Configurator) Focus(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkStepLocked(step); err != nil {
		return err
	}
	c.focus = step
	return nil
}

// Options lists the products selectable for step: its pool minus products
// chosen in any other step. The step's own choice stays selectable.
func (c *Configurator) Options(ctx context.Context, step int) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.optionsLocked(ctx, step)
}

// Choose records productID for step and advances focus to the next step.
func (c *Configurator) Choose(ctx context.Context, step int, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	options, err := c.optionsLocked(ctx, step)
	if err != nil {
		return err
	}
	if _, ok := catalog.Index(options)[productID]; !ok {
		return common.NewValidationError(c.steps[step].Key, common.ErrSelectionUnavailable)
	}
	c.steps[step].ChosenID = productID
	if step+1 < len(c.steps) {
		c.focus = step + 1
	} else {
		c.focus = step
	}
	return nil
}

// AddConfiguredSetToCart validates the finished selection against fresh
// catalog data and adds it to dst with the matching promotion. dst is left
// untouched when validation fails. The selection is kept so a failed save can
// be retried; call Reset once dst is persisted.
func (c *Configurator) AddConfiguredSetToCart(ctx context.Context, dst *cart.Aggregate) (Result, error) {
	if dst == nil {
		return Result{}, errors.New("configurator: cart required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pools == nil {
		return Result{}, errors.New("configurator: pool source not configured")
	}

	def, ok := promo.Lookup(c.offer)
	if !ok {
		return Result{}, common.NewValidationError("offer", common.ErrIncompleteSelection)
	}
	if !c.completeLocked() {
		return Result{}, common.NewValidationError("offer", common.ErrIncompleteSelection)
	}
	seen := make(map[int64]struct{}, len(c.steps))
	for _, s := range c.steps {
		if _, dup := seen[s.ChosenID]; dup {
			return Result{}, common.NewValidationError(s.Key, common.ErrSelectionUnavailable)
		}
		seen[s.ChosenID] = struct{}{}
	}

	chosen, err := c.resolveLocked(ctx)
	if err != nil {
		return Result{}, err
	}

	plan, err := c.planLocked(ctx, def, chosen)
	if err != nil {
		return Result{}, err
	}
	quantities := dst.Quantities()
	for _, line := range plan.lines {
		quantities[line.product.DatabaseID]++
	}
	if !plan.descriptor.ResolvesTo(quantities) {
		return Result{}, common.NewValidationError("offer", common.ErrSelectionUnavailable)
	}
	for _, line := range plan.lines {
		dst.AddItem(line.product, line.selections...)
	}
	if err := dst.SetPromotion(plan.descriptor); err != nil {
		return Result{}, err
	}
	dst.SetOpen(true)

	obs.IncCounter(obs.GiftsetCommitTotal, string(def.Code), string(plan.mode))
	c.logger.Info().
		Str("offer", string(def.Code)).
		Str("mode", string(plan.mode)).
		Ints64("selections", plan.descriptor.Selections).
		Msg("giftset_committed")
	return Result{Descriptor: plan.descriptor.Clone(), Mode: plan.mode}, nil
}

type plannedLine struct {
	product    catalog.Product
	selections []string
}

type commitPlan struct {
	lines      []plannedLine
	descriptor promo.Descriptor
	mode       Mode
}

// planLocked decides the cart lines for a resolved selection. All catalog
// reads happen here so the cart is only touched once everything resolved.
func (c *Configurator) planLocked(ctx context.Context, def promo.Definition, chosen []catalog.Product) (commitPlan, error) {
	names := func(products []catalog.Product) []string {
		out := make([]string, 0, len(products))
		for _, p := range products {
			out = append(out, p.Name)
		}
		return out
	}

	switch def.Code {
	case promo.ProHalfTesters:
		pack, err := c.pools.TestersPack(ctx)
		if err != nil {
			return commitPlan{}, err
		}
		if pack == nil {
			return commitPlan{}, common.NewValidationError("testersPack", common.ErrSelectionUnavailable)
		}
		pro := chosen[0]
		return commitPlan{
			lines: []plannedLine{
				{product: pro},
				{product: *pack, selections: names(chosen[1:])},
			},
			descriptor: promo.NewDescriptor(def.Code, pro.DatabaseID, pack.DatabaseID),
			mode:       ModeItems,
		}, nil
	}

	if def.IsBundle() && c.opts.PreferBundleSKU {
		bundle, err := c.pools.BundleProduct(ctx, def.Code)
		if err != nil {
			return commitPlan{}, err
		}
		if bundle != nil {
			return commitPlan{
				lines:      []plannedLine{{product: *bundle, selections: names(chosen)}},
				descriptor: promo.NewDescriptor(def.Code, bundle.DatabaseID),
				mode:       ModeBundle,
			}, nil
		}
		c.logger.Warn().Str("offer", string(def.Code)).Msg("giftset_bundle_missing")
	}

	plan := commitPlan{mode: ModeItems}
	ids := make([]int64, 0, len(chosen))
	for _, p := range chosen {
		plan.lines = append(plan.lines, plannedLine{product: p})
		ids = append(ids, p.DatabaseID)
	}
	plan.descriptor = promo.NewDescriptor(def.Code, ids...)
	return plan, nil
}

// resolveLocked reloads every pool and maps each step's choice to a current
// product, in step order.
func (c *Configurator) resolveLocked(ctx context.Context) ([]catalog.Product, error) {
	indexes := make(map[promo.Pool]map[int64]catalog.Product)
	out := make([]catalog.Product, 0, len(c.steps))
	for _, s := range c.steps {
		index, ok := indexes[s.Pool]
		if !ok {
			products, err := c.pools.Pool(ctx, s.Pool)
			if err != nil {
				return nil, err
			}
			index = catalog.Index(products)
			indexes[s.Pool] = index
		}
		p, ok := index[s.ChosenID]
		if !ok {
			return nil, common.NewValidationError(s.Key, common.ErrSelectionUnavailable)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Configurator) optionsLocked(ctx context.Context, step int) ([]catalog.Product, error) {
	if err := c.checkStepLocked(step); err != nil {
		return nil, err
	}
	if c.pools == nil {
		return nil, errors.New("configurator: pool source not configured")
	}
	products, err := c.pools.Pool(ctx, c.steps[step].Pool)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]struct{}, len(c.steps))
	for i, s := range c.steps {
		if i != step && s.Chosen() {
			taken[s.ChosenID] = struct{}{}
		}
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if _, skip := taken[p.DatabaseID]; !skip {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Configurator) checkStepLocked(step int) error {
	if len(c.steps) == 0 {
		return common.NewValidationError("offer", common.ErrIncompleteSelection)
	}
	if step < 0 || step >= len(c.steps) {
		return common.NewValidationError("step", common.ErrInvalidField)
	}
	return nil
}

func (c *Configurator) completeLocked() bool {
	if len(c.steps) == 0 {
		return false
	}
	for _, s := range c.steps {
		if !s.Chosen() {
			return false
		}
	}
	return true
}

func (c *Configurator) resetLocked() {
	c.offer = ""
	c.steps = nil
	c.focus = 0
}
