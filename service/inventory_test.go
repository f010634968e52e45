package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "shop-inventory/model"
	"shop-inventory/store"
)

func newMemoryCoordinator(t *testing.T, opts ...Option) (*Coordinator, *store.MemoryStore) {
	t.Helper()
	ms, err := store.NewMemoryStore()
	require.NoError(t, err)
	return NewService(ms, opts...), ms
}

func seedProduct(t *testing.T, svc *Coordinator, stock int) models.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), models.ProductInput{
		Title:     strPtr("Space Game"),
		Type:      strPtr("game"),
		Stock:     intPtr(stock),
		Price:     floatPtr(59.99),
		Platforms: []string{"pc"},
	})
	require.NoError(t, err)
	return p
}

func seedCart(t *testing.T, svc *Coordinator) models.Cart {
	t.Helper()
	c, err := svc.CreateCart(context.Background(), models.CartInput{Session: strPtr("session-1")})
	require.NoError(t, err)
	return c
}

func stockOf(t *testing.T, svc *Coordinator, id models.ID) int {
	t.Helper()
	p, err := svc.GetProduct(context.Background(), id.String())
	require.NoError(t, err)
	return p.Stock
}

func add(svc *Coordinator, cart models.Cart, product models.Product, qty int) error {
	_, err := svc.AddProductToCart(context.Background(), cart.ID.String(), models.LineItem{ProductID: product.ID, Quantity: qty})
	return err
}

func TestStockIsConservedAcrossAddAndRemove(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 10)
	c := seedCart(t, svc)

	require.NoError(t, add(svc, c, p, 3))
	require.NoError(t, add(svc, c, p, 2))
	assert.Equal(t, 5, stockOf(t, svc, p.ID))

	cart, err := svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, svc, p.ID)+models.SumQuantity(cart.Products))

	// removal pulls both items and restores their sum
	require.NoError(t, svc.RemoveLineItemFromCart(ctx, c.ID.String(), p.ID.String()))
	assert.Equal(t, 10, stockOf(t, svc, p.ID))

	cart, err = svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Empty(t, cart.Products)

	// removing again restores nothing
	require.NoError(t, svc.RemoveLineItemFromCart(ctx, c.ID.String(), p.ID.String()))
	assert.Equal(t, 10, stockOf(t, svc, p.ID))
}

func TestReservationBoundary(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	p := seedProduct(t, svc, 4)
	c := seedCart(t, svc)

	err := add(svc, c, p, 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 4, stockOf(t, svc, p.ID))

	require.NoError(t, add(svc, c, p, 4))
	assert.Equal(t, 0, stockOf(t, svc, p.ID))

	assert.ErrorIs(t, add(svc, c, p, 1), ErrInsufficientStock)
}

func TestAddToMissingCartReservesNothing(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	p := seedProduct(t, svc, 4)

	err := add(svc, models.Cart{ID: models.NewID()}, p, 1)
	assert.ErrorIs(t, err, NewNotFoundError(EntityCart))
	assert.Equal(t, 4, stockOf(t, svc, p.ID))
}

func TestAddMissingProduct(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	c := seedCart(t, svc)

	err := add(svc, c, models.Product{ID: models.NewID()}, 1)
	assert.ErrorIs(t, err, NewNotFoundError(EntityProduct))
}

func TestLineItemAttributesSurvive(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 4)
	c := seedCart(t, svc)

	item := models.LineItem{ProductID: p.ID, Quantity: 1, Attributes: map[string]any{"gift_wrap": true}}
	got, err := svc.AddProductToCart(ctx, c.ID.String(), item)
	require.NoError(t, err)
	assert.Equal(t, true, got.Attributes["gift_wrap"])

	cart, err := svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	require.Len(t, cart.Products, 1)
	assert.Equal(t, true, cart.Products[0].Attributes["gift_wrap"])
}

func TestDeleteCartRestoresEveryItem(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	a := seedProduct(t, svc, 5)
	b := seedProduct(t, svc, 7)
	c := seedCart(t, svc)

	require.NoError(t, add(svc, c, a, 2))
	require.NoError(t, add(svc, c, b, 7))
	require.NoError(t, add(svc, c, a, 1))

	require.NoError(t, svc.DeleteCart(ctx, c.ID.String()))
	assert.Equal(t, 5, stockOf(t, svc, a.ID))
	assert.Equal(t, 7, stockOf(t, svc, b.ID))

	_, err := svc.GetCart(ctx, c.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCart(ctx, c.ID.String()), ErrNotFound)
}

func TestDeleteCartSkipsDeletedProducts(t *testing.T) {
	svc, ms := newMemoryCoordinator(t)
	ctx := context.Background()
	a := seedProduct(t, svc, 5)
	b := seedProduct(t, svc, 5)
	c := seedCart(t, svc)
	require.NoError(t, add(svc, c, a, 1))
	require.NoError(t, add(svc, c, b, 2))

	// remove a behind the coordinator's back so the cart still references it
	_, err := ms.DeleteProduct(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCart(ctx, c.ID.String()))
	assert.Equal(t, 5, stockOf(t, svc, b.ID))
}

func TestDeleteProductCascadesWithoutRestoring(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 10)
	keep := seedProduct(t, svc, 10)
	c1 := seedCart(t, svc)
	c2 := seedCart(t, svc)
	require.NoError(t, add(svc, c1, p, 2))
	require.NoError(t, add(svc, c1, keep, 1))
	require.NoError(t, add(svc, c2, p, 3))

	require.NoError(t, svc.DeleteProduct(ctx, p.ID.String()))

	for _, id := range []models.ID{c1.ID, c2.ID} {
		cart, err := svc.GetCart(ctx, id.String())
		require.NoError(t, err)
		for _, it := range cart.Products {
			assert.NotEqual(t, p.ID, it.ProductID)
		}
	}
	cart, err := svc.GetCart(ctx, c1.ID.String())
	require.NoError(t, err)
	assert.Len(t, cart.Products, 1)

	_, err = svc.GetProduct(ctx, p.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID.String()), ErrNotFound)
}

func TestReplaceProductDropsReservationsByDefault(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 10)
	c := seedCart(t, svc)
	require.NoError(t, add(svc, c, p, 4))

	replaced, err := svc.ReplaceProduct(ctx, p.ID.String(), models.ProductInput{
		Title: strPtr("Space Game GOTY"), Type: strPtr("game"), Stock: intPtr(20), Price: floatPtr(39.99),
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, replaced.ID)
	assert.Equal(t, 20, replaced.Stock)
	assert.Equal(t, 20, stockOf(t, svc, p.ID))

	cart, err := svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Empty(t, cart.Products)
}

func TestReplaceProductRestoresReservationsWhenConfigured(t *testing.T) {
	svc, _ := newMemoryCoordinator(t, WithCascadePolicy(CascadeRestoreReservations))
	ctx := context.Background()
	p := seedProduct(t, svc, 10)
	c1 := seedCart(t, svc)
	c2 := seedCart(t, svc)
	require.NoError(t, add(svc, c1, p, 4))
	require.NoError(t, add(svc, c1, p, 1))
	require.NoError(t, add(svc, c2, p, 2))

	replaced, err := svc.ReplaceProduct(ctx, p.ID.String(), models.ProductInput{
		Title: strPtr("Space Game"), Type: strPtr("game"), Stock: intPtr(20), Price: floatPtr(59.99),
	})
	require.NoError(t, err)
	assert.Equal(t, 27, replaced.Stock)
	assert.Equal(t, 27, stockOf(t, svc, p.ID))

	for _, id := range []models.ID{c1.ID, c2.ID} {
		cart, err := svc.GetCart(ctx, id.String())
		require.NoError(t, err)
		assert.Empty(t, cart.Products)
	}
}

func TestReplaceMissingProduct(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	_, err := svc.ReplaceProduct(context.Background(), models.NewID().String(), models.ProductInput{
		Title: strPtr("t"), Type: strPtr("game"), Stock: intPtr(1), Price: floatPtr(1),
	})
	assert.ErrorIs(t, err, NewNotFoundError(EntityProduct))
}

func TestReplaceCartKeepsProductsAndStatus(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 3)
	c := seedCart(t, svc)
	require.NoError(t, add(svc, c, p, 2))

	replaced, err := svc.ReplaceCart(ctx, c.ID.String(), models.CartInput{Session: strPtr("session-2")})
	require.NoError(t, err)
	assert.Equal(t, "session-2", replaced.Session)
	assert.Equal(t, models.CartStatusActive, replaced.Status)
	require.Len(t, replaced.Products, 1)
	assert.Equal(t, 2, replaced.Products[0].Quantity)
	assert.Equal(t, 1, stockOf(t, svc, p.ID))
}

func TestEndToEnd(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()

	p := seedProduct(t, svc, 10)
	c := seedCart(t, svc)
	require.NoError(t, add(svc, c, p, 3))
	assert.Equal(t, 7, stockOf(t, svc, p.ID))

	require.NoError(t, svc.RemoveLineItemFromCart(ctx, c.ID.String(), p.ID.String()))
	assert.Equal(t, 10, stockOf(t, svc, p.ID))

	require.NoError(t, add(svc, c, p, 5))
	require.NoError(t, svc.DeleteCart(ctx, c.ID.String()))
	assert.Equal(t, 10, stockOf(t, svc, p.ID))

	summaries, err := svc.ListProducts(ctx, "game")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 10, summaries[0].Stock)

	platforms, err := svc.Platforms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PlatformCount{{Platform: "pc", Total: 1}}, platforms)
}

func TestConcurrentAddsReserveAtMostTheStock(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	p := seedProduct(t, svc, 1)

	const workers = 32
	carts := make([]models.Cart, workers)
	for i := range carts {
		carts[i] = seedCart(t, svc)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(c models.Cart) {
			defer wg.Done()
			err := add(svc, c, p, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case KindOf(err) == KindInsufficientStock:
				rejected++
			}
		}(carts[i])
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 0, stockOf(t, svc, p.ID))
}

func TestDeletingMissingCartIsNotFoundEveryTime(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	p := seedProduct(t, svc, 3)
	id := models.NewID().String()

	assert.ErrorIs(t, svc.DeleteCart(context.Background(), id), ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCart(context.Background(), id), ErrNotFound)
	assert.Equal(t, 3, stockOf(t, svc, p.ID))
}

func TestSessionScenario(t *testing.T) {
	svc, _ := newMemoryCoordinator(t)
	ctx := context.Background()

	c, err := svc.CreateCart(ctx, models.CartInput{Session: strPtr("abc")})
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{}, c.Products)
	assert.Equal(t, models.CartStatusActive, c.Status)

	p, err := svc.CreateProduct(ctx, models.ProductInput{
		Title: strPtr("Game"), Type: strPtr("game"), Stock: intPtr(5), Price: floatPtr(10),
	})
	require.NoError(t, err)
	got, err := svc.GetProduct(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, add(svc, c, p, 2))
	assert.Equal(t, 3, stockOf(t, svc, p.ID))
	cart, err := svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{{ProductID: p.ID, Quantity: 2}}, cart.Products)

	require.NoError(t, svc.RemoveLineItemFromCart(ctx, c.ID.String(), p.ID.String()))
	assert.Equal(t, 5, stockOf(t, svc, p.ID))
	cart, err = svc.GetCart(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Empty(t, cart.Products)
}
