// Package store persists users, menu items and orders.
//
// Three backends implement Store: InMemoryStore for development and tests, MongoStore (orders and
// order items in separate collections, joined with $lookup) and MySQLStore (relational schema with
// cascade delete). Lookups of unknown ids return ErrNotFound; unique username clashes return
// ErrDuplicate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"go_trial/ordertaking/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrUnknownProduct = errors.New("unknown product")
)

// MenuSort picks the listing order for menu items.
type MenuSort int

const (
	SortNewest MenuSort = iota
	SortByName
)

type Store interface {
	ListMenuItems(ctx context.Context, sort MenuSort) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error

	// CreateOrder inserts the order and its items as one unit and fills in ids and joined products.
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

func stampMenuItem(item *models.MenuItem) {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	item.Price = models.RoundCents(item.Price)
}

func stampOrder(order *models.Order) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	if order.PaymentType == "" {
		order.PaymentType = models.PaymentCash
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].OrderID = order.ID
	}
}

func stampUser(user *models.User) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
}

func productIDs(order *models.Order) []string {
	seen := make(map[string]struct{}, len(order.Items))
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
