package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	models "shop-inventory/model"
)

const (
	testProductID = "64b7f0c2a1b2c3d4e5f60718"
	testCartID    = "64b7f0c2a1b2c3d4e5f60719"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{DB: db}, mock
}

func TestGetProduct_FoundAndMissing(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "title", "type", "stock", "price", "platforms"}).
		AddRow(testProductID, "Game", "game", int64(5), 10.0, "{ps4,pc}")
	mock.ExpectQuery(regexp.QuoteMeta(queryGetProduct)).
		WithArgs(testProductID).
		WillReturnRows(rows)

	p, err := s.GetProduct(ctx, testProductID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p.ID != testProductID || p.Title != "Game" || p.Stock != 5 || p.Price != 10 {
		t.Fatalf("unexpected product: %+v", p)
	}
	if len(p.Platforms) != 2 || p.Platforms[0] != "ps4" || p.Platforms[1] != "pc" {
		t.Fatalf("unexpected platforms: %v", p.Platforms)
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryGetProduct)).
		WithArgs(testProductID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "type", "stock", "price", "platforms"}))

	if _, err := s.GetProduct(ctx, testProductID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateProduct_AssignsID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(queryInsertProduct)).
		WithArgs(sqlmock.AnyArg(), "Game", "game", int64(5), 10.0, pq.Array([]string{})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := s.CreateProduct(context.Background(), models.Product{Title: "Game", Type: "game", Stock: 5, Price: 10})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if _, err := models.ParseID(string(p.ID)); err != nil {
		t.Fatalf("expected a valid generated id, got %q", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListProducts_WithAndWithoutType(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(queryListProducts)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "stock"}).
			AddRow(testProductID, "Game", 10.0, int64(3)))

	all, err := s.ListProducts(ctx, "")
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(all) != 1 || all[0].Stock != 3 {
		t.Fatalf("unexpected listing: %+v", all)
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryListProductsByType)).
		WithArgs("book").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "stock"}))

	books, err := s.ListProducts(ctx, "book")
	if err != nil {
		t.Fatalf("ListProducts by type failed: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("expected no books, got %+v", books)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceProduct_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(queryReplaceProduct)).
		WithArgs(testProductID, "Game", "game", int64(1), 2.5, pq.Array([]string{"pc"})).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.ReplaceProduct(context.Background(), testProductID,
		models.Product{Title: "Game", Type: "game", Stock: 1, Price: 2.5, Platforms: []string{"pc"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteProduct_ReturnsPriorDocument(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryDeleteProduct)).
		WithArgs(testProductID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "type", "stock", "price", "platforms"}).
			AddRow(testProductID, "Game", "game", int64(7), 10.0, "{}"))

	p, err := s.DeleteProduct(context.Background(), testProductID)
	if err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if p.Stock != 7 || p.Platforms != nil {
		t.Fatalf("unexpected product: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdjustStock_MissingProduct(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(queryAdjustStock)).
		WithArgs(int64(4), testProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.AdjustStock(ctx, testProductID, 4); err != nil {
		t.Fatalf("AdjustStock failed: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(queryAdjustStock)).
		WithArgs(int64(-2), testProductID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.AdjustStock(ctx, testProductID, -2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveStock_ConditionalUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(queryReserveStock)).
		WithArgs(int64(2), testProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.ReserveStock(ctx, testProductID, 2); err != nil {
		t.Fatalf("ReserveStock failed: %v", err)
	}

	// no row matched stock >= qty
	mock.ExpectExec(regexp.QuoteMeta(queryReserveStock)).
		WithArgs(int64(9), testProductID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.ReserveStock(ctx, testProductID, 9); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAggregatePlatforms(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryPlatforms)).
		WillReturnRows(sqlmock.NewRows([]string{"p", "count"}).
			AddRow("pc", int64(2)).
			AddRow("ps4", int64(1)))

	got, err := s.AggregatePlatforms(context.Background())
	if err != nil {
		t.Fatalf("AggregatePlatforms failed: %v", err)
	}
	if len(got) != 2 || got[0].Platform != "pc" || got[0].Total != 2 {
		t.Fatalf("unexpected platforms: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateCart_ForcesEmptyActive(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(queryInsertCart)).
		WithArgs(sqlmock.AnyArg(), "abc", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := s.CreateCart(context.Background(), models.Cart{
		Session:  "abc",
		Status:   models.CartStatusAbandoned,
		Products: []models.LineItem{{ProductID: testProductID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateCart failed: %v", err)
	}
	if c.Status != models.CartStatusActive || len(c.Products) != 0 || c.Products == nil {
		t.Fatalf("unexpected cart: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCart_DecodesLineItems(t *testing.T) {
	s, mock := newMockStore(t)

	products := []byte(`[{"_id":"` + testProductID + `","quantity":2,"title":"Game"}]`)
	mock.ExpectQuery(regexp.QuoteMeta(queryGetCart)).
		WithArgs(testCartID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session", "status", "products"}).
			AddRow(testCartID, "abc", "active", products))

	c, err := s.GetCart(context.Background(), testCartID)
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if len(c.Products) != 1 || c.Products[0].Quantity != 2 || c.Products[0].Attributes["title"] != "Game" {
		t.Fatalf("unexpected products: %+v", c.Products)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceCart_OnlyWritesSession(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryReplaceCart)).
		WithArgs(testCartID, "xyz").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session", "status", "products"}).
			AddRow(testCartID, "xyz", "active", []byte(`[{"_id":"`+testProductID+`","quantity":1}]`)))

	c, err := s.ReplaceCart(context.Background(), testCartID, models.Cart{Session: "xyz"})
	if err != nil {
		t.Fatalf("ReplaceCart failed: %v", err)
	}
	if c.Session != "xyz" || len(c.Products) != 1 {
		t.Fatalf("unexpected cart: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendLineItem_MissingCart(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(queryAppendLineItem)).
		WithArgs(testCartID, `[{"_id":"`+testProductID+`","quantity":2}]`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.AppendLineItem(context.Background(), testCartID, models.LineItem{ProductID: testProductID, Quantity: 2})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveLineItem_ReturnsPulledItems(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	prior := []byte(`[{"_id":"` + testProductID + `","quantity":2},{"_id":"other","quantity":1},{"_id":"` + testProductID + `","quantity":3}]`)
	mock.ExpectQuery(regexp.QuoteMeta(queryRemoveLineItem)).
		WithArgs(testCartID, testProductID).
		WillReturnRows(sqlmock.NewRows([]string{"products"}).AddRow(prior))

	removed, err := s.RemoveLineItem(ctx, testCartID, testProductID)
	if err != nil {
		t.Fatalf("RemoveLineItem failed: %v", err)
	}
	if len(removed) != 2 || models.SumQuantity(removed) != 5 {
		t.Fatalf("unexpected removed items: %+v", removed)
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryRemoveLineItem)).
		WithArgs(testCartID, testProductID).
		WillReturnRows(sqlmock.NewRows([]string{"products"}))
	if _, err := s.RemoveLineItem(ctx, testCartID, testProductID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPullFromAllCarts_CountsCarts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(queryPullFromAllCarts)).
		WithArgs(testProductID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.PullFromAllCarts(context.Background(), testProductID)
	if err != nil {
		t.Fatalf("PullFromAllCarts failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 carts, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteCart_DBError(t *testing.T) {
	s, mock := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(queryDeleteCart)).
		WithArgs(testCartID).
		WillReturnError(boom)

	if _, err := s.DeleteCart(context.Background(), testCartID); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
