package service

import (
	"context"

	models "shop-inventory/model"
)

// ServiceInterface is what the HTTP layer needs from the Coordinator. Ids arrive as raw strings.
type ServiceInterface interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error)
	ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error)
	ReplaceProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Platforms(ctx context.Context) ([]models.PlatformCount, error)

	GetCart(ctx context.Context, id string) (models.Cart, error)
	CreateCart(ctx context.Context, in models.CartInput) (models.Cart, error)
	ListCarts(ctx context.Context) ([]models.Cart, error)
	ReplaceCart(ctx context.Context, id string, in models.CartInput) (models.Cart, error)
	DeleteCart(ctx context.Context, id string) error

	AddProductToCart(ctx context.Context, cartID string, item models.LineItem) (models.LineItem, error)
	RemoveLineItemFromCart(ctx context.Context, cartID, productID string) error
}

var _ ServiceInterface = (*Coordinator)(nil)
