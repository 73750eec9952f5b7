package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
)

func newMockMySQL(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &MySQLStore{db: db, log: logger.Discard()}, mock
}

var orderColumns = []string{
	"o.id", "o.customer_name", "o.payment_type", "o.seating", "o.subtotal", "o.status", "o.created_at",
	"i.id", "i.product_id", "i.quantity",
	"m.id", "m.name", "m.description", "m.price", "m.available", "m.created_at", "m.updated_at",
}

func q(query string) string { return regexp.QuoteMeta(query) }

func TestMySQLStore_InitTablesMakesUsernamesExact(t *testing.T) {
	s, mock := newMockMySQL(t)
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS users") + ".*" + q("username VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("ALTER TABLE users MODIFY username") + ".*utf8mb4_bin").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS menu_items")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS orders")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS order_items")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.initTables(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_CreateOrderCommits(t *testing.T) {
	s, mock := newMockMySQL(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID: "o1", CustomerName: "Ada", PaymentType: models.PaymentCard, Subtotal: 7.5, CreatedAt: created,
		Items: []models.OrderItem{
			{ID: "i1", ProductID: "p1", Quantity: 2},
			{ID: "i2", ProductID: "p2", Quantity: 1},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT 1 FROM menu_items WHERE id = ?")).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(q("SELECT 1 FROM menu_items WHERE id = ?")).WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO orders")).
		WithArgs("o1", "Ada", "CARD", nil, 7.5, "PENDING", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_items")).WithArgs("i1", "o1", "p1", 2, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_items")).WithArgs("i2", "o1", "p2", 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(q("WHERE o.id = ?")).WithArgs("o1").WillReturnRows(sqlmock.NewRows(orderColumns).
		AddRow("o1", "Ada", "CARD", nil, 7.5, "PENDING", created,
			"i1", "p1", 2, "p1", "Tea", nil, 2.5, true, created, created).
		AddRow("o1", "Ada", "CARD", nil, 7.5, "PENDING", created,
			"i2", "p2", 1, "p2", "Cake", "lemon", 2.5, true, created, created))

	require.NoError(t, s.CreateOrder(context.Background(), order))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Tea", order.Items[0].Product.Name)
	assert.Equal(t, "lemon", *order.Items[1].Product.Description)
	assert.Equal(t, models.StatusPending, order.Status)
}

func TestMySQLStore_CreateOrderRollsBackOnItemFailure(t *testing.T) {
	s, mock := newMockMySQL(t)
	order := &models.Order{ID: "o1", CustomerName: "Ada", Items: []models.OrderItem{{ID: "i1", ProductID: "p1", Quantity: 1}}}

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT 1 FROM menu_items WHERE id = ?")).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_items")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.CreateOrder(context.Background(), order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order item")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_CreateOrderUnknownProduct(t *testing.T) {
	s, mock := newMockMySQL(t)
	order := &models.Order{CustomerName: "Ada", Items: []models.OrderItem{{ProductID: "gone", Quantity: 1}}}

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT 1 FROM menu_items WHERE id = ?")).WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, s.CreateOrder(context.Background(), order), ErrUnknownProduct)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ListOrdersGroupsJoinedRows(t *testing.T) {
	s, mock := newMockMySQL(t)
	newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(q("LEFT JOIN order_items i ON i.order_id = o.id") + ".*" + q("ORDER BY o.created_at DESC, o.id, i.position")).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("o2", "Bo", "CASH", "T3", 4.0, "PENDING", newer,
				"i1", "p1", 1, "p1", "Tea", nil, 2.0, true, newer, newer).
			AddRow("o2", "Bo", "CASH", "T3", 4.0, "PENDING", newer,
				"i2", "deleted", 1, nil, nil, nil, nil, nil, nil, nil).
			AddRow("o1", "Cy", "CARD", nil, 0.0, "DELIVERED", older,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, orders, 2)

	assert.Equal(t, "o2", orders[0].ID)
	require.NotNil(t, orders[0].Seating)
	assert.Equal(t, "T3", *orders[0].Seating)
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, "Tea", orders[0].Items[0].Product.Name)
	assert.Equal(t, "deleted", orders[0].Items[1].ProductID)
	assert.Nil(t, orders[0].Items[1].Product)

	assert.Equal(t, "o1", orders[1].ID)
	assert.Nil(t, orders[1].Seating)
	assert.NotNil(t, orders[1].Items)
	assert.Empty(t, orders[1].Items)
}

func TestMySQLStore_GetOrderNotFound(t *testing.T) {
	s, mock := newMockMySQL(t)
	mock.ExpectQuery(q("WHERE o.id = ?")).WithArgs("nope").WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := s.GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ZeroRowUpdates(t *testing.T) {
	t.Run("missing order", func(t *testing.T) {
		s, mock := newMockMySQL(t)
		mock.ExpectExec(q("UPDATE orders SET status = ? WHERE id = ?")).WithArgs("DELIVERED", "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM orders WHERE id = ?")).WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"1"}))

		_, err := s.UpdateOrderStatus(context.Background(), "nope", models.StatusDelivered)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged menu item", func(t *testing.T) {
		s, mock := newMockMySQL(t)
		item := &models.MenuItem{ID: "m1", Name: "Tea", Price: 2.5, Available: true}
		mock.ExpectExec(q("UPDATE menu_items SET")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM menu_items WHERE id = ?")).WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, s.UpdateMenuItem(context.Background(), item))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete missing user", func(t *testing.T) {
		s, mock := newMockMySQL(t)
		mock.ExpectExec(q("DELETE FROM users WHERE id = ?")).WithArgs("u9").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.DeleteUser(context.Background(), "u9"), ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLStore_CreateUserDuplicate(t *testing.T) {
	s, mock := newMockMySQL(t)
	mock.ExpectExec(q("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'sam' for key 'username'"})

	err := s.CreateUser(context.Background(), &models.User{Username: "sam", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLErr(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), ErrNotFound},
		{"duplicate key", &mysql.MySQLError{Number: 1062}, ErrDuplicate},
		{"other mysql error", &mysql.MySQLError{Number: 1213}, nil},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sqlErr(tt.in)
			switch {
			case tt.in == nil:
				assert.NoError(t, got)
			case tt.want == nil:
				assert.Equal(t, tt.in, got)
			default:
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}
