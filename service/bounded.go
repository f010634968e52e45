package service

import (
	"context"
	"time"

	models "shop-inventory/model"
	"shop-inventory/store"
)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// boundedCatalog gives every catalog call its own deadline.
type boundedCatalog struct {
	next    store.CatalogStore
	timeout time.Duration
}

func (b boundedCatalog) GetProduct(ctx context.Context, id models.ID) (models.Product, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.GetProduct(ctx, id)
}

func (b boundedCatalog) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.CreateProduct(ctx, p)
}

func (b boundedCatalog) ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ListProducts(ctx, productType)
}

func (b boundedCatalog) ReplaceProduct(ctx context.Context, id models.ID, p models.Product) (models.Product, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ReplaceProduct(ctx, id, p)
}

func (b boundedCatalog) DeleteProduct(ctx context.Context, id models.ID) (models.Product, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.DeleteProduct(ctx, id)
}

func (b boundedCatalog) AdjustStock(ctx context.Context, id models.ID, delta int) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.AdjustStock(ctx, id, delta)
}

func (b boundedCatalog) ReserveStock(ctx context.Context, id models.ID, qty int) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ReserveStock(ctx, id, qty)
}

func (b boundedCatalog) AggregatePlatforms(ctx context.Context) ([]models.PlatformCount, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.AggregatePlatforms(ctx)
}

// boundedCarts gives every cart call its own deadline.
type boundedCarts struct {
	next    store.CartStore
	timeout time.Duration
}

func (b boundedCarts) GetCart(ctx context.Context, id models.ID) (models.Cart, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.GetCart(ctx, id)
}

func (b boundedCarts) CreateCart(ctx context.Context, c models.Cart) (models.Cart, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.CreateCart(ctx, c)
}

func (b boundedCarts) ListCarts(ctx context.Context) ([]models.Cart, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ListCarts(ctx)
}

func (b boundedCarts) ReplaceCart(ctx context.Context, id models.ID, c models.Cart) (models.Cart, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ReplaceCart(ctx, id, c)
}

func (b boundedCarts) DeleteCart(ctx context.Context, id models.ID) (models.Cart, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.DeleteCart(ctx, id)
}

func (b boundedCarts) AppendLineItem(ctx context.Context, cartID models.ID, item models.LineItem) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.AppendLineItem(ctx, cartID, item)
}

func (b boundedCarts) RemoveLineItem(ctx context.Context, cartID, productID models.ID) ([]models.LineItem, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.RemoveLineItem(ctx, cartID, productID)
}

func (b boundedCarts) PullFromAllCarts(ctx context.Context, productID models.ID) (int64, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.PullFromAllCarts(ctx, productID)
}

func (b boundedCarts) CartsWithProduct(ctx context.Context, productID models.ID) ([]models.ID, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.CartsWithProduct(ctx, productID)
}
