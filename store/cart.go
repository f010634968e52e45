package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	models "shop-inventory/model"
)

const (
	queryGetCart        = `SELECT id, session, status, products FROM carts WHERE id = $1`
	queryInsertCart     = `INSERT INTO carts (id, session, status, products) VALUES ($1, $2, $3, '[]'::jsonb)`
	queryListCarts      = `SELECT id, session, status, products FROM carts ORDER BY id`
	queryReplaceCart    = `UPDATE carts SET session = $2 WHERE id = $1 RETURNING id, session, status, products`
	queryDeleteCart     = `DELETE FROM carts WHERE id = $1 RETURNING id, session, status, products`
	queryAppendLineItem = `UPDATE carts SET products = products || $2::jsonb WHERE id = $1`

	// The sub-select locks the cart and yields the products as they were before the pull,
	// which is what RETURNING hands back.
	queryRemoveLineItem = `
		UPDATE carts AS c
		SET products = COALESCE((
			SELECT jsonb_agg(e.item ORDER BY e.pos)
			FROM jsonb_array_elements(prior.products) WITH ORDINALITY AS e(item, pos)
			WHERE e.item->>'_id' <> $2
		), '[]'::jsonb)
		FROM (SELECT id, products FROM carts WHERE id = $1 FOR UPDATE) AS prior
		WHERE c.id = prior.id
		RETURNING prior.products`

	queryPullFromAllCarts = `
		UPDATE carts
		SET products = COALESCE((
			SELECT jsonb_agg(e.item ORDER BY e.pos)
			FROM jsonb_array_elements(products) WITH ORDINALITY AS e(item, pos)
			WHERE e.item->>'_id' <> $1
		), '[]'::jsonb)
		WHERE products @> jsonb_build_array(jsonb_build_object('_id', $1::text))`

	queryCartsWithProduct = `SELECT id FROM carts WHERE products @> jsonb_build_array(jsonb_build_object('_id', $1::text)) ORDER BY id`
)

func decodeLineItems(raw []byte) ([]models.LineItem, error) {
	items := []models.LineItem{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding cart products: %w", err)
	}
	return items, nil
}

func scanCart(row rowScanner) (models.Cart, error) {
	var c models.Cart
	var products []byte
	err := row.Scan((*string)(&c.ID), &c.Session, (*string)(&c.Status), &products)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cart{}, ErrNotFound
	}
	if err != nil {
		return models.Cart{}, err
	}
	if c.Products, err = decodeLineItems(products); err != nil {
		return models.Cart{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetCart(ctx context.Context, id models.ID) (models.Cart, error) {
	return scanCart(s.DB.QueryRowContext(ctx, queryGetCart, string(id)))
}

func (s *PostgresStore) CreateCart(ctx context.Context, c models.Cart) (models.Cart, error) {
	c.ID = models.NewID()
	c.Status = models.CartStatusActive
	c.Products = []models.LineItem{}
	if _, err := s.DB.ExecContext(ctx, queryInsertCart, string(c.ID), c.Session, string(c.Status)); err != nil {
		return models.Cart{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCarts(ctx context.Context) ([]models.Cart, error) {
	rows, err := s.DB.QueryContext(ctx, queryListCarts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Cart{}
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceCart only ever writes the session column, so the products a concurrent add or
// remove just wrote cannot be clobbered.
func (s *PostgresStore) ReplaceCart(ctx context.Context, id models.ID, c models.Cart) (models.Cart, error) {
	return scanCart(s.DB.QueryRowContext(ctx, queryReplaceCart, string(id), c.Session))
}

func (s *PostgresStore) DeleteCart(ctx context.Context, id models.ID) (models.Cart, error) {
	return scanCart(s.DB.QueryRowContext(ctx, queryDeleteCart, string(id)))
}

func (s *PostgresStore) AppendLineItem(ctx context.Context, cartID models.ID, item models.LineItem) error {
	payload, err := json.Marshal([]models.LineItem{item})
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, queryAppendLineItem, string(cartID), string(payload))
	if err != nil {
		return err
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveLineItem(ctx context.Context, cartID, productID models.ID) ([]models.LineItem, error) {
	var prior []byte
	err := s.DB.QueryRowContext(ctx, queryRemoveLineItem, string(cartID), string(productID)).Scan(&prior)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := decodeLineItems(prior)
	if err != nil {
		return nil, err
	}
	return matchingItems(items, productID), nil
}

func (s *PostgresStore) PullFromAllCarts(ctx context.Context, productID models.ID) (int64, error) {
	res, err := s.DB.ExecContext(ctx, queryPullFromAllCarts, string(productID))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) CartsWithProduct(ctx context.Context, productID models.ID) ([]models.ID, error) {
	rows, err := s.DB.QueryContext(ctx, queryCartsWithProduct, string(productID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []models.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, models.ID(id))
	}
	return ids, rows.Err()
}

// matchingItems returns the items of a cart that reference productID.
func matchingItems(items []models.LineItem, productID models.ID) []models.LineItem {
	out := []models.LineItem{}
	for _, it := range items {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}
	return out
}
