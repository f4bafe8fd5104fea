package cart_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

func product(id int64, price string) catalog.Product {
	return catalog.Product{DatabaseID: id, Slug: "p", Name: "Product", Price: price}
}

func TestAddItemMergesByKey(t *testing.T) {
	c := cart.New()
	require.False(t, c.IsOpen())

	k1 := c.AddItem(product(7, "1000"))
	k2 := c.AddItem(product(7, "1000"))
	require.Equal(t, "7", k1)
	require.Equal(t, k1, k2)
	require.True(t, c.IsOpen())

	items := c.Items()
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Quantity)

	k3 := c.AddItem(product(7, "1000"), "Oud", "Amber")
	require.Equal(t, "7::Oud|Amber", k3)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 3, c.Quantities()[7])
}

func TestLineKeySeparatesSelectionsContainingPipe(t *testing.T) {
	require.NotEqual(t, cart.LineKey(3, []string{"a|b"}), cart.LineKey(3, []string{"a", "b"}))
	require.NotEqual(t, cart.LineKey(3, []string{`a\`, "b"}), cart.LineKey(3, []string{`a\|b`}))
	require.Equal(t, "3::Oud|Amber", cart.LineKey(3, []string{"Oud", "Amber"}))

	c := cart.New()
	c.AddItem(product(3, "100"), "a|b")
	c.AddItem(product(3, "100"), "a", "b")
	require.Equal(t, 2, c.Len())
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	c := cart.New()
	c.AddItem(product(1, "100"))
	c.AddItem(product(2, "200"))
	c.AddItem(product(3, "300"))

	require.NoError(t, c.UpdateQuantity("2", 5))
	require.Equal(t, 5, c.Items()[1].Quantity)

	require.NoError(t, c.UpdateQuantity("2", 0))
	items := c.Items()
	require.Len(t, items, 2)
	require.Equal(t, []string{"1", "3"}, []string{items[0].Key, items[1].Key})

	require.ErrorIs(t, c.UpdateQuantity("99", 1), cart.ErrNotFound)

	c.RemoveItem("1")
	c.RemoveItem("unknown")
	require.Equal(t, 1, c.Len())
}

func TestSetPromotionRequiresLines(t *testing.T) {
	c := cart.New()
	c.AddItem(product(1, "2000"))
	c.AddItem(product(2, "1800"))

	err := c.SetPromotion(promo.NewDescriptor(promo.Gift3Eco, 1, 2, 3))
	require.ErrorIs(t, err, common.ErrSelectionUnavailable)
	require.Nil(t, c.Promotion())

	c.AddItem(product(3, "1200"))
	c.SetOpen(false)
	require.NoError(t, c.SetPromotion(promo.Descriptor{Code: promo.Gift3Eco, Selections: []int64{1, 2, 3}}))
	require.True(t, c.IsOpen())
	require.Equal(t, "Gift Set: 3 ECO for Rs 4500", c.Promotion().Label)

	got := c.Promotion()
	got.Selections[0] = 42
	require.Equal(t, int64(1), c.Promotion().Selections[0])

	totals := c.Totals(pricing.NewCalculator(nil))
	require.Equal(t, "500", totals.Discount.String())

	c.ClearPromotion()
	require.Nil(t, c.Promotion())
	require.Equal(t, 3, c.Len())
}

func TestClearDropsPromotion(t *testing.T) {
	c := cart.New()
	c.AddItem(product(1, "100"))
	require.NoError(t, c.SetPromotion(promo.NewDescriptor(promo.Gift3Eco, 1)))
	c.Clear()
	require.Zero(t, c.Len())
	require.Nil(t, c.Promotion())
}

func TestToggle(t *testing.T) {
	c := cart.New()
	require.True(t, c.Toggle())
	require.False(t, c.Toggle())
}

func TestRestoreRecomputesLegacyKeys(t *testing.T) {
	state := cart.State{Items: []cart.LineItem{
		{Product: product(5, "100"), Quantity: 1},
		{Product: product(5, "100"), Quantity: 2, Key: "5"},
		{Product: product(6, "100"), Quantity: 1, TesterSelections: []string{"A"}},
		{Product: product(8, "100"), Quantity: 0, Key: "8"},
	}}
	c := cart.Restore(state)
	items := c.Items()
	require.Len(t, items, 2)
	require.Equal(t, "5", items[0].Key)
	require.Equal(t, 3, items[0].Quantity)
	require.Equal(t, "6::A", items[1].Key)
}

func TestConcurrentMutations(t *testing.T) {
	c := cart.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.AddItem(product(1, "100"))
		}()
		go func() {
			defer wg.Done()
			_ = c.Items()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, c.Items()[0].Quantity)
}
