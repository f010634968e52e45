package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "shop-inventory/model"
)

const (
	catalogCollection = "catalog"
	cartsCollection   = "carts"
)

// MongoStore keeps products and carts as documents. Line items are embedded in the cart
// and reference products by the hex id string under "_id".
type MongoStore struct {
	client  *mongo.Client
	catalog *mongo.Collection
	carts   *mongo.Collection
}

type productDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Type      string             `bson:"type"`
	Stock     int                `bson:"stock"`
	Price     float64            `bson:"price"`
	Platforms []string           `bson:"platforms,omitempty"`
}

type summaryDoc struct {
	ID    primitive.ObjectID `bson:"_id"`
	Title string             `bson:"title"`
	Price float64            `bson:"price"`
	Stock int                `bson:"stock"`
}

type cartDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Session  string             `bson:"session"`
	Status   string             `bson:"status"`
	Products []models.LineItem  `bson:"products"`
}

type platformDoc struct {
	Platform string `bson:"_id"`
	Total    int    `bson:"total"`
}

func newProductDoc(id models.ID, p models.Product) productDoc {
	return productDoc{
		ID:        id.ObjectID(),
		Title:     p.Title,
		Type:      p.Type,
		Stock:     p.Stock,
		Price:     p.Price,
		Platforms: p.Platforms,
	}
}

func (d productDoc) product() models.Product {
	return models.Product{
		ID:        models.ID(d.ID.Hex()),
		Title:     d.Title,
		Type:      d.Type,
		Stock:     d.Stock,
		Price:     d.Price,
		Platforms: d.Platforms,
	}
}

func (d cartDoc) cart() models.Cart {
	products := d.Products
	if products == nil {
		products = []models.LineItem{}
	}
	return models.Cart{
		ID:       models.ID(d.ID.Hex()),
		Session:  d.Session,
		Status:   models.CartStatus(d.Status),
		Products: products,
	}
}

// NewMongoStore connects, pings and makes sure the indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		catalog: db.Collection(catalogCollection),
		carts:   db.Collection(cartsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.catalog.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: typeIndex}); err != nil {
		return fmt.Errorf("creating catalog type index: %w", err)
	}
	if _, err := s.carts.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "products._id", Value: 1}}}); err != nil {
		return fmt.Errorf("creating cart products index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var (
	typeIndex         = bson.D{{Key: "type", Value: 1}}
	summaryProjection = bson.D{{Key: "_id", Value: 1}, {Key: "title", Value: 1}, {Key: "price", Value: 1}, {Key: "stock", Value: 1}}
)

func byID(id models.ID) bson.M {
	return bson.M{"_id": id.ObjectID()}
}

func byType(productType string) bson.M {
	if productType == "" {
		return bson.M{}
	}
	return bson.M{"type": productType}
}

// reserveFilter only matches the product while it still holds at least qty units.
func reserveFilter(id models.ID, qty int) bson.M {
	return bson.M{"_id": id.ObjectID(), "stock": bson.M{"$gte": qty}}
}

func incStock(delta int) bson.M {
	return bson.M{"$inc": bson.M{"stock": delta}}
}

func pushLineItem(item models.LineItem) bson.M {
	return bson.M{"$push": bson.M{"products": item}}
}

func pullProduct(productID models.ID) bson.M {
	return bson.M{"$pull": bson.M{"products": bson.M{"_id": string(productID)}}}
}

func holdingProduct(productID models.ID) bson.M {
	return bson.M{"products._id": string(productID)}
}

func platformsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$platforms"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$platforms"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) GetProduct(ctx context.Context, id models.ID) (models.Product, error) {
	var doc productDoc
	if err := s.catalog.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		return models.Product{}, notFound(err)
	}
	return doc.product(), nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.ID = models.NewID()
	if _, err := s.catalog.InsertOne(ctx, newProductDoc(p.ID, p)); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *MongoStore) ListProducts(ctx context.Context, productType string) ([]models.ProductSummary, error) {
	opts := options.Find().SetProjection(summaryProjection).SetHint(typeIndex)
	cur, err := s.catalog.Find(ctx, byType(productType), opts)
	if err != nil {
		return nil, err
	}
	var docs []summaryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.ProductSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.ProductSummary{ID: models.ID(d.ID.Hex()), Title: d.Title, Price: d.Price, Stock: d.Stock})
	}
	return out, nil
}

func (s *MongoStore) ReplaceProduct(ctx context.Context, id models.ID, p models.Product) (models.Product, error) {
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	var doc productDoc
	if err := s.catalog.FindOneAndReplace(ctx, byID(id), newProductDoc(id, p), opts).Decode(&doc); err != nil {
		return models.Product{}, notFound(err)
	}
	return doc.product(), nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id models.ID) (models.Product, error) {
	var doc productDoc
	if err := s.catalog.FindOneAndDelete(ctx, byID(id)).Decode(&doc); err != nil {
		return models.Product{}, notFound(err)
	}
	return doc.product(), nil
}

func (s *MongoStore) AdjustStock(ctx context.Context, id models.ID, delta int) error {
	res, err := s.catalog.UpdateOne(ctx, byID(id), incStock(delta))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ReserveStock(ctx context.Context, id models.ID, qty int) error {
	res, err := s.catalog.UpdateOne(ctx, reserveFilter(id, qty), incStock(-qty))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (s *MongoStore) AggregatePlatforms(ctx context.Context) ([]models.PlatformCount, error) {
	cur, err := s.catalog.Aggregate(ctx, platformsPipeline())
	if err != nil {
		return nil, err
	}
	var docs []platformDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.PlatformCount, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.PlatformCount{Platform: d.Platform, Total: d.Total})
	}
	return out, nil
}

func (s *MongoStore) GetCart(ctx context.Context, id models.ID) (models.Cart, error) {
	var doc cartDoc
	if err := s.carts.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		return models.Cart{}, notFound(err)
	}
	return doc.cart(), nil
}

func (s *MongoStore) CreateCart(ctx context.Context, c models.Cart) (models.Cart, error) {
	doc := cartDoc{
		ID:       primitive.NewObjectID(),
		Session:  c.Session,
		Status:   string(models.CartStatusActive),
		Products: []models.LineItem{},
	}
	if _, err := s.carts.InsertOne(ctx, doc); err != nil {
		return models.Cart{}, err
	}
	return doc.cart(), nil
}

func (s *MongoStore) ListCarts(ctx context.Context) ([]models.Cart, error) {
	cur, err := s.carts.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []cartDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Cart, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.cart())
	}
	return out, nil
}

// ReplaceCart sets the session with $set instead of replacing the document, so products
// are never rewritten from a stale read.
func (s *MongoStore) ReplaceCart(ctx context.Context, id models.ID, c models.Cart) (models.Cart, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"session": c.Session}}
	var doc cartDoc
	if err := s.carts.FindOneAndUpdate(ctx, byID(id), update, opts).Decode(&doc); err != nil {
		return models.Cart{}, notFound(err)
	}
	return doc.cart(), nil
}

func (s *MongoStore) DeleteCart(ctx context.Context, id models.ID) (models.Cart, error) {
	var doc cartDoc
	if err := s.carts.FindOneAndDelete(ctx, byID(id)).Decode(&doc); err != nil {
		return models.Cart{}, notFound(err)
	}
	return doc.cart(), nil
}

func (s *MongoStore) AppendLineItem(ctx context.Context, cartID models.ID, item models.LineItem) error {
	res, err := s.carts.UpdateOne(ctx, byID(cartID), pushLineItem(item))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveLineItem relies on FindOneAndUpdate returning the document as it was before the
// $pull, which is the driver default.
func (s *MongoStore) RemoveLineItem(ctx context.Context, cartID, productID models.ID) ([]models.LineItem, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var doc cartDoc
	if err := s.carts.FindOneAndUpdate(ctx, byID(cartID), pullProduct(productID), opts).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return matchingItems(doc.Products, productID), nil
}

func (s *MongoStore) PullFromAllCarts(ctx context.Context, productID models.ID) (int64, error) {
	res, err := s.carts.UpdateMany(ctx, holdingProduct(productID), pullProduct(productID))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) CartsWithProduct(ctx context.Context, productID models.ID) ([]models.ID, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.carts.Find(ctx, holdingProduct(productID), opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]models.ID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, models.ID(d.ID.Hex()))
	}
	return ids, nil
}
