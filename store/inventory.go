package store

import (
	"context"
	"errors"

	models "shop-inventory/model"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock returned when requested qty exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	queryAdjustStock  = `UPDATE catalog SET stock = stock + $1 WHERE id = $2`
	queryReserveStock = `UPDATE catalog SET stock = stock - $1 WHERE id = $2 AND stock >= $1`
)

// AdjustStock adds delta (possibly negative) to the stock of a product.
func (s *PostgresStore) AdjustStock(ctx context.Context, id models.ID, delta int) error {
	res, err := s.DB.ExecContext(ctx, queryAdjustStock, delta, string(id))
	if err != nil {
		return err
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveStock takes qty out of the stock in one conditional statement. A row that does not
// match, whether missing or short on stock, is reported as ErrInsufficientStock.
func (s *PostgresStore) ReserveStock(ctx context.Context, id models.ID, qty int) error {
	res, err := s.DB.ExecContext(ctx, queryReserveStock, qty, string(id))
	if err != nil {
		return err
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrInsufficientStock
	}
	return nil
}
