package store

import (
	"context"

	models "shop-inventory/model"
)

// Every method is a single atomic operation against one document, except PullFromAllCarts,
// which is atomic per cart. Backends report ErrNotFound and ErrInsufficientStock as documented
// and return any other failure unchanged.

// CatalogStore holds products.
type CatalogStore interface {
	GetProduct(ctx context.Context, id models.ID) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	// ListProducts filters by type unless productType is empty.
	ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error)
	ReplaceProduct(ctx context.Context, id models.ID, p models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, id models.ID) (models.Product, error)

	// AdjustStock adds delta to the stock without any bound check.
	AdjustStock(ctx context.Context, id models.ID, delta int) error
	// ReserveStock subtracts qty only if the stock covers it; ErrInsufficientStock otherwise.
	ReserveStock(ctx context.Context, id models.ID, qty int) error

	AggregatePlatforms(ctx context.Context) ([]models.PlatformCount, error)
}

// CartStore holds carts and their embedded line items.
type CartStore interface {
	GetCart(ctx context.Context, id models.ID) (models.Cart, error)
	// CreateCart stores c with an empty product list and the active status.
	CreateCart(ctx context.Context, c models.Cart) (models.Cart, error)
	ListCarts(ctx context.Context) ([]models.Cart, error)
	// ReplaceCart overwrites the client owned fields; the stored products and status are kept.
	ReplaceCart(ctx context.Context, id models.ID, c models.Cart) (models.Cart, error)
	DeleteCart(ctx context.Context, id models.ID) (models.Cart, error)

	AppendLineItem(ctx context.Context, cartID models.ID, item models.LineItem) error
	// RemoveLineItem pulls every item referencing productID and returns what was pulled.
	RemoveLineItem(ctx context.Context, cartID, productID models.ID) ([]models.LineItem, error)
	// PullFromAllCarts removes productID from every cart and returns the number of carts changed.
	PullFromAllCarts(ctx context.Context, productID models.ID) (int64, error)
	CartsWithProduct(ctx context.Context, productID models.ID) ([]models.ID, error)
}

// Store is a backend serving both collections.
type Store interface {
	CatalogStore
	CartStore
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
