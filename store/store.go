package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	models "shop-inventory/model"
)

//go:embed migrations.sql
var migrationSQL string

// PostgresStore is a Store backed by Postgres. Each method is a single statement, so
// per-row atomicity comes from Postgres itself and no transaction spans two rows.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	DB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := DB.Ping(); err != nil {
		_ = DB.Close()
		return nil, err
	}
	return &PostgresStore{DB: DB}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate creates the tables and indexes when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const (
	queryGetProduct         = `SELECT id, title, type, stock, price, platforms FROM catalog WHERE id = $1`
	queryInsertProduct      = `INSERT INTO catalog (id, title, type, stock, price, platforms) VALUES ($1, $2, $3, $4, $5, $6)`
	queryListProducts       = `SELECT id, title, price, stock FROM catalog ORDER BY id`
	queryListProductsByType = `SELECT id, title, price, stock FROM catalog WHERE type = $1 ORDER BY id`
	queryReplaceProduct     = `UPDATE catalog SET title = $2, type = $3, stock = $4, price = $5, platforms = $6 WHERE id = $1`
	queryDeleteProduct      = `DELETE FROM catalog WHERE id = $1 RETURNING id, title, type, stock, price, platforms`
	queryPlatforms          = `SELECT p, COUNT(*) FROM catalog, unnest(platforms) AS p GROUP BY p ORDER BY p`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var platforms []string
	err := row.Scan((*string)(&p.ID), &p.Title, &p.Type, &p.Stock, &p.Price, pq.Array(&platforms))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	if len(platforms) > 0 {
		p.Platforms = platforms
	}
	return p, nil
}

// platformsArg never hands a nil slice to pq, which would be written as NULL.
func platformsArg(platforms []string) any {
	if platforms == nil {
		platforms = []string{}
	}
	return pq.Array(platforms)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id models.ID) (models.Product, error) {
	return scanProduct(s.DB.QueryRowContext(ctx, queryGetProduct, string(id)))
}

// CreateProduct inserts a product under a new id and returns it
func (s *PostgresStore) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.ID = models.NewID()
	_, err := s.DB.ExecContext(ctx, queryInsertProduct,
		string(p.ID), p.Title, p.Type, p.Stock, p.Price, platformsArg(p.Platforms))
	if err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if productType == "" {
		rows, err = s.DB.QueryContext(ctx, queryListProducts)
	} else {
		rows, err = s.DB.QueryContext(ctx, queryListProductsByType, productType)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ProductSummary{}
	for rows.Next() {
		var p models.ProductSummary
		if err := rows.Scan((*string)(&p.ID), &p.Title, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceProduct(ctx context.Context, id models.ID, p models.Product) (models.Product, error) {
	res, err := s.DB.ExecContext(ctx, queryReplaceProduct,
		string(id), p.Title, p.Type, p.Stock, p.Price, platformsArg(p.Platforms))
	if err != nil {
		return models.Product{}, err
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return models.Product{}, ErrNotFound
	}
	p.ID = id
	return p, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id models.ID) (models.Product, error) {
	return scanProduct(s.DB.QueryRowContext(ctx, queryDeleteProduct, string(id)))
}

func (s *PostgresStore) AggregatePlatforms(ctx context.Context) ([]models.PlatformCount, error) {
	rows, err := s.DB.QueryContext(ctx, queryPlatforms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.PlatformCount{}
	for rows.Next() {
		var pc models.PlatformCount
		if err := rows.Scan(&pc.Platform, &pc.Total); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}
