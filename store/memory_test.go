package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trial/ordertaking/models"
)

func seedMenu(t *testing.T, s Store, names ...string) []models.MenuItem {
	t.Helper()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	items := make([]models.MenuItem, 0, len(names))
	for i, name := range names {
		item := models.MenuItem{Name: name, Price: 2.5, Available: true, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateMenuItem(context.Background(), &item))
		items = append(items, item)
	}
	return items
}

func TestInMemoryStore_MenuOrdering(t *testing.T) {
	s := NewInMemoryStore()
	seedMenu(t, s, "Soup", "bread", "Apple Pie")

	newest, err := s.ListMenuItems(context.Background(), SortNewest)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, "Apple Pie", newest[0].Name)
	assert.Equal(t, "Soup", newest[2].Name)

	byName, err := s.ListMenuItems(context.Background(), SortByName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple Pie", "bread", "Soup"}, []string{byName[0].Name, byName[1].Name, byName[2].Name})
}

func TestInMemoryStore_MenuNotFound(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.GetMenuItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateMenuItem(ctx, &models.MenuItem{ID: "missing"}), ErrNotFound)
	assert.ErrorIs(t, s.DeleteMenuItem(ctx, "missing"), ErrNotFound)
}

func TestInMemoryStore_CreateOrderJoinsProducts(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	menu := seedMenu(t, s, "Latte", "Bagel")

	order := &models.Order{
		CustomerName: "Ada",
		Subtotal:     7.5,
		Items: []models.OrderItem{
			{ProductID: menu[0].ID, Quantity: 2},
			{ProductID: menu[1].ID, Quantity: 1},
		},
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentCash, order.PaymentType)
	require.Len(t, order.Items, 2)
	for _, item := range order.Items {
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, order.ID, item.OrderID)
		require.NotNil(t, item.Product)
		assert.Equal(t, item.ProductID, item.Product.ID)
	}
	assert.Equal(t, "Latte", order.Items[0].Product.Name)
}

func TestInMemoryStore_CreateOrderUnknownProduct(t *testing.T) {
	s := NewInMemoryStore()
	order := &models.Order{CustomerName: "Ada", Items: []models.OrderItem{{ProductID: "nope", Quantity: 1}}}

	assert.ErrorIs(t, s.CreateOrder(context.Background(), order), ErrUnknownProduct)
	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestInMemoryStore_OrdersNewestFirstAndStatus(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	menu := seedMenu(t, s, "Tea")

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		o := &models.Order{
			CustomerName: "c",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Items:        []models.OrderItem{{ProductID: menu[0].ID, Quantity: 1}},
		}
		require.NoError(t, s.CreateOrder(ctx, o))
		ids = append(ids, o.ID)
	}

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[0], orders[2].ID)

	updated, err := s.UpdateOrderStatus(ctx, ids[1], models.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)

	_, err = s.UpdateOrderStatus(ctx, "missing", models.StatusDelivered)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteOrder(ctx, ids[1]))
	_, err = s.GetOrder(ctx, ids[1])
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, ids[1]), ErrNotFound)
}

func TestInMemoryStore_DeletedProductLeavesOrderReadable(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	menu := seedMenu(t, s, "Scone")

	o := &models.Order{CustomerName: "c", Items: []models.OrderItem{{ProductID: menu[0].ID, Quantity: 3}}}
	require.NoError(t, s.CreateOrder(ctx, o))
	require.NoError(t, s.DeleteMenuItem(ctx, menu[0].ID))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].Product)
	assert.Equal(t, 3, got.TotalItems())
}

func TestInMemoryStore_Users(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	u := &models.User{Username: "kitchen", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, models.RoleUser, u.Role)
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Username: "kitchen"}), ErrDuplicate)

	got, err := s.GetUserByUsername(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestInMemoryStore_UsernamesAreCaseSensitive(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "Sam", PasswordHash: "x"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "sam", PasswordHash: "y"}))

	got, err := s.GetUserByUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, "y", got.PasswordHash)

	_, err = s.GetUserByUsername(ctx, "SAM")
	assert.ErrorIs(t, err, ErrNotFound)
}
