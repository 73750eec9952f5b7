package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go_trial/ordertaking/models"
	"go_trial/ordertaking/utils"
)

// MongoStore keeps each entity in its own collection. Order lines live in order_items and are
// joined back onto their order, and each line onto its menu item, at read time.
type MongoStore struct {
	client              *mongo.Client
	UserCollection      *mongo.Collection
	MenuItemCollection  *mongo.Collection
	OrdersCollection    *mongo.Collection
	OrderItemCollection *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := utils.InitMongoClient(ctx, uri)
	if err != nil {
		return nil, err
	}
	s := &MongoStore{
		client:              client,
		UserCollection:      utils.GetCollection(client, dbName, "users"),
		MenuItemCollection:  utils.GetCollection(client, dbName, "menu_items"),
		OrdersCollection:    utils.GetCollection(client, dbName, "orders"),
		OrderItemCollection: utils.GetCollection(client, dbName, "order_items"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.UserCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.OrderItemCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "orderId", Value: 1}},
	})
	return err
}

// nameCollation sorts names case-insensitively, matching the other stores.
var nameCollation = &options.Collation{Locale: "en", Strength: 2}

func (s *MongoStore) ListMenuItems(ctx context.Context, by MenuSort) ([]models.MenuItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if by == SortByName {
		opts = options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetCollation(nameCollation)
	}
	cursor, err := s.MenuItemCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.MenuItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoStore) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.MenuItemCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &item, nil
}

func (s *MongoStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	stampMenuItem(item)
	_, err := s.MenuItemCollection.InsertOne(ctx, item)
	return mongoErr(err)
}

func (s *MongoStore) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	item.Price = models.RoundCents(item.Price)
	result, err := s.MenuItemCollection.ReplaceOne(ctx, bson.M{"_id": item.ID}, item)
	if err != nil {
		return mongoErr(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteMenuItem(ctx context.Context, id string) error {
	result, err := s.MenuItemCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateOrder(ctx context.Context, order *models.Order) error {
	ids := productIDs(order)
	count, err := s.MenuItemCollection.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	if int(count) != len(ids) {
		return ErrUnknownProduct
	}

	stampOrder(order)
	header := *order
	header.Items = nil
	if _, err := s.OrdersCollection.InsertOne(ctx, header); err != nil {
		return mongoErr(err)
	}

	docs := make([]interface{}, len(order.Items))
	for i, item := range order.Items {
		item.Product = nil
		docs[i] = orderItemDoc{OrderItem: item, Position: i}
	}
	if len(docs) > 0 {
		if _, err := s.OrderItemCollection.InsertMany(ctx, docs); err != nil {
			// no multi-document transaction on standalone servers; undo the header by hand
			_, _ = s.OrdersCollection.DeleteOne(context.Background(), bson.M{"_id": order.ID})
			_, _ = s.OrderItemCollection.DeleteMany(context.Background(), bson.M{"orderId": order.ID})
			return err
		}
	}

	joined, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	*order = *joined
	return nil
}

type orderItemDoc struct {
	models.OrderItem `bson:",inline"`
	Position         int `bson:"position"`
}

// orderPipeline joins order_items (in submission order) and each item's menu item.
func orderPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "order_items",
			"let":  bson.M{"oid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$orderId", "$$oid"}}}},
				bson.M{"$sort": bson.M{"position": 1}},
				bson.M{"$lookup": bson.M{
					"from":         "menu_items",
					"localField":   "productId",
					"foreignField": "_id",
					"as":           "product",
				}},
				bson.M{"$unwind": bson.M{"path": "$product", "preserveNullAndEmptyArrays": true}},
				bson.M{"$project": bson.M{"position": 0}},
			},
			"as": "items",
		}}},
	}
}

func (s *MongoStore) aggregateOrders(ctx context.Context, match bson.M) ([]models.Order, error) {
	cursor, err := s.OrdersCollection.Aggregate(ctx, orderPipeline(match))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.aggregateOrders(ctx, bson.M{})
}

func (s *MongoStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	orders, err := s.aggregateOrders(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	result, err := s.OrdersCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

func (s *MongoStore) DeleteOrder(ctx context.Context, id string) error {
	result, err := s.OrdersCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.OrderItemCollection.DeleteMany(ctx, bson.M{"orderId": id})
	return err
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	stampUser(user)
	_, err := s.UserCollection.InsertOne(ctx, user)
	return mongoErr(err)
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.UserCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.UserCollection.FindOne(ctx, bson.M{"username": username}).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.UserCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.UserCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}
