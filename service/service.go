package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"shop-inventory/events"
	models "shop-inventory/model"
	"shop-inventory/store"
)

const (
	// DefaultCallTimeout bounds each individual store call.
	DefaultCallTimeout = 5 * time.Second

	tracerName = "shop-inventory/service"
)

// CascadePolicy decides what happens to reservations held on a product that is replaced.
type CascadePolicy int

const (
	// CascadeDropReservations pulls the line items and gives nothing back to the catalog.
	CascadeDropReservations CascadePolicy = iota
	// CascadeRestoreReservations adds the pulled quantities to the replacement document.
	CascadeRestoreReservations
)

func (p CascadePolicy) String() string {
	if p == CascadeRestoreReservations {
		return "restore"
	}
	return "drop"
}

// ParseCascadePolicy accepts "drop" and "restore".
func ParseCascadePolicy(s string) (CascadePolicy, error) {
	switch s {
	case "drop", "":
		return CascadeDropReservations, nil
	case "restore":
		return CascadeRestoreReservations, nil
	}
	return 0, fmt.Errorf("unknown cascade policy %q", s)
}

// Coordinator keeps catalog stock and cart reservations consistent. It holds no locks of its
// own; every step is a single atomic store operation.
type Coordinator struct {
	catalog   store.CatalogStore
	carts     store.CartStore
	logger    *zap.Logger
	tracer    trace.Tracer
	publisher events.Publisher
	timeout   time.Duration
	cascade   CascadePolicy
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithCallTimeout sets the per store call deadline. Zero or less disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func WithCascadePolicy(p CascadePolicy) Option {
	return func(c *Coordinator) { c.cascade = p }
}

func NewCoordinator(catalog store.CatalogStore, carts store.CartStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		publisher: events.NopPublisher{},
		timeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.catalog = boundedCatalog{next: catalog, timeout: c.timeout}
	c.carts = boundedCarts{next: carts, timeout: c.timeout}
	return c
}

// NewService builds a Coordinator over a backend that serves both collections.
func NewService(s store.Store, opts ...Option) *Coordinator {
	return NewCoordinator(s, s, opts...)
}

func parseID(raw string) (models.ID, error) {
	id, err := models.ParseID(raw)
	if err != nil {
		return "", NewInvalidIDError(raw)
	}
	return id, nil
}

// storeError maps a store failure for entity to the Coordinator's error kinds.
func (c *Coordinator) storeError(op, entity string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return NewNotFoundError(entity)
	}
	c.logger.Error("Store call failed", zap.String("op", op), zap.Error(err))
	return NewInternalError(fmt.Errorf("%s: %w", op, err))
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.logger.Warn("Inventory event not delivered", zap.String("event_type", string(e.Type)), zap.Error(err))
	}
}

func (c *Coordinator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Describe(err))
	}
	span.End()
}

func validateProduct(in models.ProductInput) error {
	if missing := in.Missing(); len(missing) > 0 {
		return NewValidationError(missing...)
	}
	if *in.Stock < 0 {
		return NewInvalidFieldError("stock", "The stock field must not be negative.")
	}
	if *in.Price < 0 {
		return NewInvalidFieldError("price", "The price field must not be negative.")
	}
	return nil
}

func (c *Coordinator) GetProduct(ctx context.Context, id string) (models.Product, error) {
	pid, err := parseID(id)
	if err != nil {
		return models.Product{}, err
	}
	p, err := c.catalog.GetProduct(ctx, pid)
	if err != nil {
		return models.Product{}, c.storeError("get_product", EntityProduct, err)
	}
	return p, nil
}

func (c *Coordinator) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	if err := validateProduct(in); err != nil {
		return models.Product{}, err
	}
	p, err := c.catalog.CreateProduct(ctx, in.Product())
	if err != nil {
		return models.Product{}, c.storeError("create_product", EntityProduct, err)
	}
	c.logger.Info("Product created", zap.String("product_id", p.ID.String()), zap.Int("stock", p.Stock))
	return p, nil
}

func (c *Coordinator) ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error) {
	out, err := c.catalog.ListProducts(ctx, productType)
	if err != nil {
		return nil, c.storeError("list_products", EntityProduct, err)
	}
	return out, nil
}

func (c *Coordinator) Platforms(ctx context.Context) ([]models.PlatformCount, error) {
	out, err := c.catalog.AggregatePlatforms(ctx)
	if err != nil {
		return nil, c.storeError("aggregate_platforms", EntityProduct, err)
	}
	return out, nil
}

func (c *Coordinator) GetCart(ctx context.Context, id string) (models.Cart, error) {
	cid, err := parseID(id)
	if err != nil {
		return models.Cart{}, err
	}
	cart, err := c.carts.GetCart(ctx, cid)
	if err != nil {
		return models.Cart{}, c.storeError("get_cart", EntityCart, err)
	}
	return cart, nil
}

func (c *Coordinator) CreateCart(ctx context.Context, in models.CartInput) (models.Cart, error) {
	if in.Session == nil {
		return models.Cart{}, NewValidationError("session")
	}
	cart, err := c.carts.CreateCart(ctx, models.Cart{Session: *in.Session})
	if err != nil {
		return models.Cart{}, c.storeError("create_cart", EntityCart, err)
	}
	c.logger.Info("Cart created", zap.String("cart_id", cart.ID.String()))
	return cart, nil
}

func (c *Coordinator) ListCarts(ctx context.Context) ([]models.Cart, error) {
	out, err := c.carts.ListCarts(ctx)
	if err != nil {
		return nil, c.storeError("list_carts", EntityCart, err)
	}
	return out, nil
}

// ReplaceCart overwrites the session only; reserved line items and the status stay as stored.
func (c *Coordinator) ReplaceCart(ctx context.Context, id string, in models.CartInput) (models.Cart, error) {
	if in.Session == nil {
		return models.Cart{}, NewValidationError("session")
	}
	cid, err := parseID(id)
	if err != nil {
		return models.Cart{}, err
	}
	cart, err := c.carts.ReplaceCart(ctx, cid, models.Cart{Session: *in.Session})
	if err != nil {
		return models.Cart{}, c.storeError("replace_cart", EntityCart, err)
	}
	return cart, nil
}
