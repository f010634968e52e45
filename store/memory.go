package store

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"

	models "shop-inventory/model"
)

const (
	tableCatalog = "catalog"
	tableCarts   = "carts"
)

func memorySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableCatalog: {
				Name: tableCatalog,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"type": {
						Name:         "type",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Type"},
					},
				},
			},
			tableCarts: {
				Name: tableCarts,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}

// MemoryStore keeps both collections in process. Every method runs inside a single memdb
// transaction; memdb admits one writer at a time, which gives each method the same
// per-document atomicity the database backends provide. Stored objects are never mutated,
// updates insert a modified copy.
type MemoryStore struct {
	db *memdb.MemDB
}

func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		return nil, err
	}
	return &MemoryStore{db: db}, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneProduct(p *models.Product) models.Product {
	out := *p
	if p.Platforms != nil {
		out.Platforms = append([]string(nil), p.Platforms...)
	}
	return out
}

func cloneCart(c *models.Cart) models.Cart {
	out := *c
	out.Products = make([]models.LineItem, 0, len(c.Products))
	for _, it := range c.Products {
		out.Products = append(out.Products, it.Clone())
	}
	return out
}

func firstProduct(txn *memdb.Txn, id models.ID) (*models.Product, error) {
	raw, err := txn.First(tableCatalog, "id", string(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*models.Product), nil
}

func firstCart(txn *memdb.Txn, id models.ID) (*models.Cart, error) {
	raw, err := txn.First(tableCarts, "id", string(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*models.Cart), nil
}

// update runs fn in a write transaction and commits only when fn succeeds.
func (s *MemoryStore) update(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) view(ctx context.Context) (*memdb.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.db.Txn(false), nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id models.ID) (models.Product, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return models.Product{}, err
	}
	p, err := firstProduct(txn, id)
	if err != nil {
		return models.Product{}, err
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.ID = models.NewID()
	stored := cloneProduct(&p)
	err := s.update(ctx, func(txn *memdb.Txn) error {
		return txn.Insert(tableCatalog, &stored)
	})
	if err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	var it memdb.ResultIterator
	if productType == "" {
		it, err = txn.Get(tableCatalog, "id")
	} else {
		it, err = txn.Get(tableCatalog, "type", productType)
	}
	if err != nil {
		return nil, err
	}
	out := []models.ProductSummary{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		p := raw.(*models.Product)
		out = append(out, models.ProductSummary{ID: p.ID, Title: p.Title, Price: p.Price, Stock: p.Stock})
	}
	return out, nil
}

func (s *MemoryStore) ReplaceProduct(ctx context.Context, id models.ID, p models.Product) (models.Product, error) {
	p.ID = id
	stored := cloneProduct(&p)
	err := s.update(ctx, func(txn *memdb.Txn) error {
		if _, err := firstProduct(txn, id); err != nil {
			return err
		}
		return txn.Insert(tableCatalog, &stored)
	})
	if err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id models.ID) (models.Product, error) {
	var removed models.Product
	err := s.update(ctx, func(txn *memdb.Txn) error {
		p, err := firstProduct(txn, id)
		if err != nil {
			return err
		}
		removed = cloneProduct(p)
		return txn.Delete(tableCatalog, p)
	})
	return removed, err
}

func (s *MemoryStore) AdjustStock(ctx context.Context, id models.ID, delta int) error {
	return s.update(ctx, func(txn *memdb.Txn) error {
		p, err := firstProduct(txn, id)
		if err != nil {
			return err
		}
		next := cloneProduct(p)
		next.Stock += delta
		return txn.Insert(tableCatalog, &next)
	})
}

func (s *MemoryStore) ReserveStock(ctx context.Context, id models.ID, qty int) error {
	return s.update(ctx, func(txn *memdb.Txn) error {
		p, err := firstProduct(txn, id)
		if err == ErrNotFound || (err == nil && p.Stock < qty) {
			return ErrInsufficientStock
		}
		if err != nil {
			return err
		}
		next := cloneProduct(p)
		next.Stock -= qty
		return txn.Insert(tableCatalog, &next)
	})
}

func (s *MemoryStore) AggregatePlatforms(ctx context.Context) ([]models.PlatformCount, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	it, err := txn.Get(tableCatalog, "id")
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		for _, platform := range raw.(*models.Product).Platforms {
			counts[platform]++
		}
	}
	out := make([]models.PlatformCount, 0, len(counts))
	for platform, total := range counts {
		out = append(out, models.PlatformCount{Platform: platform, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (s *MemoryStore) GetCart(ctx context.Context, id models.ID) (models.Cart, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return models.Cart{}, err
	}
	c, err := firstCart(txn, id)
	if err != nil {
		return models.Cart{}, err
	}
	return cloneCart(c), nil
}

func (s *MemoryStore) CreateCart(ctx context.Context, c models.Cart) (models.Cart, error) {
	c.ID = models.NewID()
	c.Status = models.CartStatusActive
	c.Products = []models.LineItem{}
	stored := cloneCart(&c)
	err := s.update(ctx, func(txn *memdb.Txn) error {
		return txn.Insert(tableCarts, &stored)
	})
	if err != nil {
		return models.Cart{}, err
	}
	return c, nil
}

func (s *MemoryStore) ListCarts(ctx context.Context) ([]models.Cart, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	it, err := txn.Get(tableCarts, "id")
	if err != nil {
		return nil, err
	}
	out := []models.Cart{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, cloneCart(raw.(*models.Cart)))
	}
	return out, nil
}

func (s *MemoryStore) ReplaceCart(ctx context.Context, id models.ID, c models.Cart) (models.Cart, error) {
	var replaced models.Cart
	err := s.update(ctx, func(txn *memdb.Txn) error {
		cur, err := firstCart(txn, id)
		if err != nil {
			return err
		}
		replaced = cloneCart(cur)
		replaced.Session = c.Session
		next := cloneCart(&replaced)
		return txn.Insert(tableCarts, &next)
	})
	if err != nil {
		return models.Cart{}, err
	}
	return replaced, nil
}

func (s *MemoryStore) DeleteCart(ctx context.Context, id models.ID) (models.Cart, error) {
	var removed models.Cart
	err := s.update(ctx, func(txn *memdb.Txn) error {
		c, err := firstCart(txn, id)
		if err != nil {
			return err
		}
		removed = cloneCart(c)
		return txn.Delete(tableCarts, c)
	})
	return removed, err
}

func (s *MemoryStore) AppendLineItem(ctx context.Context, cartID models.ID, item models.LineItem) error {
	return s.update(ctx, func(txn *memdb.Txn) error {
		c, err := firstCart(txn, cartID)
		if err != nil {
			return err
		}
		next := cloneCart(c)
		next.Products = append(next.Products, item.Clone())
		return txn.Insert(tableCarts, &next)
	})
}

// pull returns a copy of c without the items referencing productID, and the pulled items.
func pull(c *models.Cart, productID models.ID) (models.Cart, []models.LineItem) {
	next := cloneCart(c)
	kept := next.Products[:0]
	removed := []models.LineItem{}
	for _, it := range next.Products {
		if it.ProductID == productID {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	next.Products = kept
	return next, removed
}

func (s *MemoryStore) RemoveLineItem(ctx context.Context, cartID, productID models.ID) ([]models.LineItem, error) {
	var removed []models.LineItem
	err := s.update(ctx, func(txn *memdb.Txn) error {
		c, err := firstCart(txn, cartID)
		if err != nil {
			return err
		}
		var next models.Cart
		next, removed = pull(c, productID)
		return txn.Insert(tableCarts, &next)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *MemoryStore) PullFromAllCarts(ctx context.Context, productID models.ID) (int64, error) {
	var modified int64
	err := s.update(ctx, func(txn *memdb.Txn) error {
		it, err := txn.Get(tableCarts, "id")
		if err != nil {
			return err
		}
		// Collect before writing, memdb iterators must not observe their own transaction's inserts.
		var changed []models.Cart
		for raw := it.Next(); raw != nil; raw = it.Next() {
			next, removed := pull(raw.(*models.Cart), productID)
			if len(removed) > 0 {
				changed = append(changed, next)
			}
		}
		for i := range changed {
			if err := txn.Insert(tableCarts, &changed[i]); err != nil {
				return err
			}
		}
		modified = int64(len(changed))
		return nil
	})
	return modified, err
}

func (s *MemoryStore) CartsWithProduct(ctx context.Context, productID models.ID) ([]models.ID, error) {
	txn, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	it, err := txn.Get(tableCarts, "id")
	if err != nil {
		return nil, err
	}
	var ids []models.ID
	for raw := it.Next(); raw != nil; raw = it.Next() {
		c := raw.(*models.Cart)
		for _, li := range c.Products {
			if li.ProductID == productID {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	return ids, nil
}
