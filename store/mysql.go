package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(ctx context.Context, dsn string, log *logger.Logger) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MYSQL_DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s", cfg.Addr))

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQLStore{db: db, log: log}
	if err := s.initTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		username VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		name VARCHAR(255) NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'USER',
		created_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	// usernames compare exactly, like the other stores; older tables were created case-insensitive
	`ALTER TABLE users MODIFY username VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NULL,
		price DECIMAL(10,2) NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		INDEX idx_menu_created (created_at),
		INDEX idx_menu_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		customer_name VARCHAR(255) NOT NULL,
		payment_type VARCHAR(16) NOT NULL DEFAULT 'CASH',
		seating VARCHAR(255) NULL,
		subtotal DECIMAL(10,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		created_at DATETIME(3) NOT NULL,
		INDEX idx_orders_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(36) PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		quantity INT NOT NULL,
		position INT NOT NULL,
		INDEX idx_items_order (order_id),
		CONSTRAINT fk_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

func (s *MySQLStore) initTables(ctx context.Context) error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating tables if not exist")
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const menuColumns = `id, name, description, price, available, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	var (
		item models.MenuItem
		desc sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Name, &desc, &item.Price, &item.Available, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Description = nullToPtr(desc)
	return &item, nil
}

func (s *MySQLStore) ListMenuItems(ctx context.Context, by MenuSort) ([]models.MenuItem, error) {
	order := "created_at DESC"
	if by == SortByName {
		order = "name ASC"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+menuColumns+" FROM menu_items ORDER BY "+order)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *MySQLStore) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+menuColumns+" FROM menu_items WHERE id = ?", id)
	item, err := scanMenuItem(row)
	if err != nil {
		return nil, sqlErr(err)
	}
	return item, nil
}

func (s *MySQLStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	stampMenuItem(item)
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving menu item %s", item.ID))
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO menu_items ("+menuColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.Name, item.Description, item.Price, item.Available, item.CreatedAt, item.UpdatedAt)
	return sqlErr(err)
}

func (s *MySQLStore) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	item.Price = models.RoundCents(item.Price)
	res, err := s.db.ExecContext(ctx,
		`UPDATE menu_items SET name = ?, description = ?, price = ?, available = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.Description, item.Price, item.Available, item.UpdatedAt, item.ID)
	if err != nil {
		return sqlErr(err)
	}
	return s.mustExist(ctx, res, "menu_items", item.ID)
}

// mustExist turns a zero-row update into ErrNotFound. MySQL reports zero affected rows when the
// new values equal the old ones, so the row is looked up before giving up.
func (s *MySQLStore) mustExist(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	return sqlErr(err)
}

func (s *MySQLStore) DeleteMenuItem(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "menu_items", id)
}

func (s *MySQLStore) deleteByID(ctx context.Context, table, id string) error {
	s.log.LogDatabase("DELETE", "mysql", fmt.Sprintf("Deleting %s %s", table, id))
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateOrder writes the order and its lines in a single transaction.
func (s *MySQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range productIDs(order) {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM menu_items WHERE id = ?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknownProduct
		}
		if err != nil {
			return err
		}
	}

	stampOrder(order)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_name, payment_type, seating, subtotal, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.CustomerName, order.PaymentType, order.Seating, order.Subtotal, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i, item := range order.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, position) VALUES (?, ?, ?, ?, ?)`,
			item.ID, order.ID, item.ProductID, item.Quantity, i)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.LogDatabase("SUCCESS", "mysql", fmt.Sprintf("Order %s saved with %d items", order.ID, len(order.Items)))

	joined, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	*order = *joined
	return nil
}

const orderQuery = `
	SELECT o.id, o.customer_name, o.payment_type, o.seating, o.subtotal, o.status, o.created_at,
		i.id, i.product_id, i.quantity,
		m.id, m.name, m.description, m.price, m.available, m.created_at, m.updated_at
	FROM orders o
	LEFT JOIN order_items i ON i.order_id = o.id
	LEFT JOIN menu_items m ON m.id = i.product_id`

func (s *MySQLStore) queryOrders(ctx context.Context, where string, args ...interface{}) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, orderQuery+where+" ORDER BY o.created_at DESC, o.id, i.position", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	index := map[string]int{}
	for rows.Next() {
		var (
			o                  models.Order
			seating            sql.NullString
			itemID, productID  sql.NullString
			quantity           sql.NullInt64
			mID, mName, mDesc  sql.NullString
			mPrice             sql.NullFloat64
			mAvailable         sql.NullBool
			mCreated, mUpdated sql.NullTime
		)
		err := rows.Scan(&o.ID, &o.CustomerName, &o.PaymentType, &seating, &o.Subtotal, &o.Status, &o.CreatedAt,
			&itemID, &productID, &quantity,
			&mID, &mName, &mDesc, &mPrice, &mAvailable, &mCreated, &mUpdated)
		if err != nil {
			return nil, err
		}

		pos, seen := index[o.ID]
		if !seen {
			o.Seating = nullToPtr(seating)
			o.Items = []models.OrderItem{}
			orders = append(orders, o)
			pos = len(orders) - 1
			index[o.ID] = pos
		}
		if !itemID.Valid {
			continue
		}
		item := models.OrderItem{
			ID:        itemID.String,
			OrderID:   o.ID,
			ProductID: productID.String,
			Quantity:  int(quantity.Int64),
		}
		if mID.Valid {
			item.Product = &models.MenuItem{
				ID:          mID.String,
				Name:        mName.String,
				Description: nullToPtr(mDesc),
				Price:       mPrice.Float64,
				Available:   mAvailable.Bool,
				CreatedAt:   mCreated.Time,
				UpdatedAt:   mUpdated.Time,
			}
		}
		orders[pos].Items = append(orders[pos].Items, item)
	}
	return orders, rows.Err()
}

func (s *MySQLStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, "")
}

func (s *MySQLStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	orders, err := s.queryOrders(ctx, " WHERE o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, res, "orders", id); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// DeleteOrder relies on the foreign key to cascade to order_items.
func (s *MySQLStore) DeleteOrder(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "orders", id)
}

const userColumns = `id, username, password, name, role, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u    models.User
		name sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &name, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = nullToPtr(name)
	return &u, nil
}

func (s *MySQLStore) CreateUser(ctx context.Context, user *models.User) error {
	stampUser(user)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.Name, user.Role, user.CreatedAt)
	return sqlErr(err)
}

func (s *MySQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return nil, sqlErr(err)
	}
	return u, nil
}

func (s *MySQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if err != nil {
		return nil, sqlErr(err)
	}
	return u, nil
}

func (s *MySQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *MySQLStore) DeleteUser(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "users", id)
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func sqlErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return ErrDuplicate
	}
	return err
}
