package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-inventory/events"
	models "shop-inventory/model"
	"shop-inventory/store"
)

// AddProductToCart reserves item.Quantity units of the referenced product and appends the item
// to the cart. Stock never goes negative: the decrement is conditional on the stock covering it.
func (c *Coordinator) AddProductToCart(ctx context.Context, cartID string, item models.LineItem) (_ models.LineItem, err error) {
	ctx, span := c.startSpan(ctx, "inventory.add_product_to_cart")
	defer func() { endSpan(span, err) }()

	if item.ProductID == "" {
		return models.LineItem{}, NewValidationError("_id")
	}
	cid, err := parseID(cartID)
	if err != nil {
		return models.LineItem{}, err
	}
	pid, err := parseID(string(item.ProductID))
	if err != nil {
		return models.LineItem{}, err
	}
	switch {
	case item.Quantity == 0:
		return models.LineItem{}, NewValidationError("quantity")
	case item.Quantity < 0:
		return models.LineItem{}, NewInvalidFieldError("quantity", "The quantity field must be a positive integer.")
	}
	item.ProductID = pid
	span.SetAttributes(
		attribute.String("cart.id", cid.String()),
		attribute.String("product.id", pid.String()),
		attribute.Int("inventory.quantity", item.Quantity),
	)

	product, err := c.catalog.GetProduct(ctx, pid)
	if err != nil {
		return models.LineItem{}, c.storeError("get_product", EntityProduct, err)
	}
	if item.Quantity > product.Stock {
		return models.LineItem{}, NewInsufficientStockError()
	}
	if _, err := c.carts.GetCart(ctx, cid); err != nil {
		return models.LineItem{}, c.storeError("get_cart", EntityCart, err)
	}

	if err := c.catalog.ReserveStock(ctx, pid, item.Quantity); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			return models.LineItem{}, NewInsufficientStockError()
		}
		return models.LineItem{}, c.storeError("reserve_stock", EntityProduct, err)
	}
	if err := c.carts.AppendLineItem(ctx, cid, item); err != nil {
		c.revertReservation(ctx, cid, pid, item.Quantity)
		return models.LineItem{}, c.storeError("append_line_item", EntityCart, err)
	}

	c.logger.Info("Stock reserved",
		zap.String("cart_id", cid.String()),
		zap.String("product_id", pid.String()),
		zap.Int("quantity", item.Quantity),
	)
	e := events.New(events.StockReserved)
	e.CartID, e.ProductID, e.Quantity = cid.String(), pid.String(), -item.Quantity
	c.publish(ctx, e)
	return item, nil
}

// revertReservation gives back a reservation whose line item never made it into the cart.
// It runs even when ctx is already done.
func (c *Coordinator) revertReservation(ctx context.Context, cartID, productID models.ID, qty int) {
	ctx = context.WithoutCancel(ctx)
	if err := c.catalog.AdjustStock(ctx, productID, qty); err != nil {
		c.logger.Error("Reservation could not be reverted",
			zap.String("cart_id", cartID.String()),
			zap.String("product_id", productID.String()),
			zap.Int("quantity", qty),
			zap.Error(err),
		)
		return
	}
	c.logger.Warn("Reservation reverted",
		zap.String("cart_id", cartID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", qty),
	)
	e := events.New(events.ReservationReverted)
	e.CartID, e.ProductID, e.Quantity = cartID.String(), productID.String(), qty
	c.publish(ctx, e)
}

// restore returns qty units to productID. A product that no longer exists is skipped.
func (c *Coordinator) restore(ctx context.Context, cartID, productID models.ID, qty int) error {
	if qty == 0 {
		return nil
	}
	err := c.catalog.AdjustStock(ctx, productID, qty)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.logger.Warn("Restoration skipped, product is gone",
			zap.String("cart_id", cartID.String()),
			zap.String("product_id", productID.String()),
			zap.Int("quantity", qty),
		)
		return nil
	case err != nil:
		return c.storeError("adjust_stock", EntityProduct, err)
	}
	e := events.New(events.StockRestored)
	e.CartID, e.ProductID, e.Quantity = cartID.String(), productID.String(), qty
	c.publish(ctx, e)
	return nil
}

// RemoveLineItemFromCart pulls every item for productID out of the cart and restores the sum of
// their quantities.
func (c *Coordinator) RemoveLineItemFromCart(ctx context.Context, cartID, productID string) (err error) {
	ctx, span := c.startSpan(ctx, "inventory.remove_line_item")
	defer func() { endSpan(span, err) }()

	cid, err := parseID(cartID)
	if err != nil {
		return err
	}
	pid, err := parseID(productID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("cart.id", cid.String()), attribute.String("product.id", pid.String()))

	removed, err := c.carts.RemoveLineItem(ctx, cid, pid)
	if err != nil {
		return c.storeError("remove_line_item", EntityCart, err)
	}
	qty := models.SumQuantity(removed)
	span.SetAttributes(attribute.Int("inventory.quantity", qty))
	c.logger.Info("Line items removed",
		zap.String("cart_id", cid.String()),
		zap.String("product_id", pid.String()),
		zap.Int("items", len(removed)),
		zap.Int("quantity", qty),
	)
	return c.restore(ctx, cid, pid, qty)
}

// DeleteCart removes the cart and restores each of its line items independently. A failed
// restoration does not stop the others; the first failure is returned once all were tried.
func (c *Coordinator) DeleteCart(ctx context.Context, id string) (err error) {
	ctx, span := c.startSpan(ctx, "inventory.delete_cart")
	defer func() { endSpan(span, err) }()

	cid, err := parseID(id)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("cart.id", cid.String()))

	cart, err := c.carts.DeleteCart(ctx, cid)
	if err != nil {
		return c.storeError("delete_cart", EntityCart, err)
	}

	var first error
	for _, it := range cart.Products {
		if rerr := c.restore(ctx, cid, it.ProductID, it.Quantity); rerr != nil && first == nil {
			first = rerr
		}
	}
	c.logger.Info("Cart deleted", zap.String("cart_id", cid.String()), zap.Int("items", len(cart.Products)))
	e := events.New(events.CartDeleted)
	e.CartID, e.Quantity = cid.String(), models.SumQuantity(cart.Products)
	c.publish(ctx, e)
	return first
}

// DeleteProduct removes the product and pulls it out of every cart. Nothing is restored since
// there is no document left to restore into.
func (c *Coordinator) DeleteProduct(ctx context.Context, id string) (err error) {
	ctx, span := c.startSpan(ctx, "inventory.delete_product")
	defer func() { endSpan(span, err) }()

	pid, err := parseID(id)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("product.id", pid.String()))

	if _, err := c.catalog.DeleteProduct(ctx, pid); err != nil {
		return c.storeError("delete_product", EntityProduct, err)
	}
	n, err := c.carts.PullFromAllCarts(ctx, pid)
	if err != nil {
		return c.storeError("pull_from_all_carts", EntityCart, err)
	}
	span.SetAttributes(attribute.Int64("inventory.carts", n))
	c.logger.Info("Product deleted", zap.String("product_id", pid.String()), zap.Int64("carts", n))
	c.cascaded(ctx, pid, n)
	return nil
}

// ReplaceProduct overwrites the product and removes every reservation held on it. Under
// CascadeRestoreReservations the pulled quantities are added to the new document's stock.
func (c *Coordinator) ReplaceProduct(ctx context.Context, id string, in models.ProductInput) (_ models.Product, err error) {
	ctx, span := c.startSpan(ctx, "inventory.replace_product")
	defer func() { endSpan(span, err) }()

	if err := validateProduct(in); err != nil {
		return models.Product{}, err
	}
	pid, err := parseID(id)
	if err != nil {
		return models.Product{}, err
	}
	span.SetAttributes(
		attribute.String("product.id", pid.String()),
		attribute.String("inventory.cascade_policy", c.cascade.String()),
	)

	replaced, err := c.catalog.ReplaceProduct(ctx, pid, in.Product())
	if err != nil {
		return models.Product{}, c.storeError("replace_product", EntityProduct, err)
	}

	var restored int
	var n int64
	if c.cascade == CascadeRestoreReservations {
		restored, n, err = c.releaseReservations(ctx, pid)
		if err != nil {
			return models.Product{}, err
		}
		replaced.Stock += restored
	}
	swept, err := c.carts.PullFromAllCarts(ctx, pid)
	if err != nil {
		return models.Product{}, c.storeError("pull_from_all_carts", EntityCart, err)
	}
	n += swept

	span.SetAttributes(attribute.Int64("inventory.carts", n), attribute.Int("inventory.restored", restored))
	c.logger.Info("Product replaced",
		zap.String("product_id", pid.String()),
		zap.Int64("carts", n),
		zap.Int("restored", restored),
	)
	c.cascaded(ctx, pid, n)
	return replaced, nil
}

// releaseReservations pulls productID out of each cart holding it, one cart at a time, and adds
// what was pulled back to the stock. Carts deleted in the meantime are skipped since their own
// deletion restored them.
func (c *Coordinator) releaseReservations(ctx context.Context, productID models.ID) (int, int64, error) {
	ids, err := c.carts.CartsWithProduct(ctx, productID)
	if err != nil {
		return 0, 0, c.storeError("carts_with_product", EntityCart, err)
	}
	var restored int
	var carts int64
	for _, cid := range ids {
		removed, err := c.carts.RemoveLineItem(ctx, cid, productID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, 0, c.storeError("remove_line_item", EntityCart, err)
		}
		if len(removed) > 0 {
			carts++
		}
		restored += models.SumQuantity(removed)
	}
	if restored == 0 {
		return 0, carts, nil
	}
	err = c.catalog.AdjustStock(ctx, productID, restored)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.logger.Warn("Restoration skipped, product is gone", zap.String("product_id", productID.String()), zap.Int("quantity", restored))
		return 0, carts, nil
	case err != nil:
		return 0, 0, c.storeError("adjust_stock", EntityProduct, err)
	}
	e := events.New(events.StockRestored)
	e.ProductID, e.Quantity, e.Carts = productID.String(), restored, carts
	c.publish(ctx, e)
	return restored, carts, nil
}

func (c *Coordinator) cascaded(ctx context.Context, productID models.ID, carts int64) {
	e := events.New(events.ProductCascaded)
	e.ProductID, e.Carts = productID.String(), carts
	c.publish(ctx, e)
}
