package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the restaurant directory in a local SQLite file. It is
// the single-node alternative when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)
	if err := initSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS restaurant_tables (
			table_number INTEGER PRIMARY KEY,
			capacity INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			time_slot TEXT NOT NULL,
			table_number INTEGER NOT NULL REFERENCES restaurant_tables(table_number),
			customer_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			num_guests INTEGER NOT NULL,
			special_requests TEXT NOT NULL DEFAULT '',
			UNIQUE (date, time_slot, table_number)
		);`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			price REAL NOT NULL,
			available INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'preparing',
			total REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id INTEGER NOT NULL REFERENCES orders(id),
			item_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price REAL NOT NULL,
			subtotal REAL NOT NULL,
			PRIMARY KEY (order_id, item_name)
		);`,
		`CREATE TABLE IF NOT EXISTS restaurant_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return seedSQLite(ctx, db)
}

func seedSQLite(ctx context.Context, db *sql.DB) error {
	seed := NewMemoryStore()
	for _, t := range seed.tables {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO restaurant_tables (table_number, capacity) VALUES (?, ?)`,
			t.Number, t.Capacity); err != nil {
			return fmt.Errorf("seed tables: %w", err)
		}
	}
	for _, m := range seed.menu {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO menu_items (name, category, price, available) VALUES (?, ?, ?, ?)`,
			m.Name, m.Category, m.Price, m.Available); err != nil {
			return fmt.Errorf("seed menu: %w", err)
		}
	}
	for k, v := range seed.info {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO restaurant_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("seed info: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) AvailableTables(ctx context.Context, date, timeSlot string, guests int) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.table_number, t.capacity
		 FROM restaurant_tables t
		 WHERE t.capacity >= ?
		   AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.date = ? AND r.time_slot = ? AND r.table_number = t.table_number
		   )
		 ORDER BY t.capacity, t.table_number`, guests, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Number, &t.Capacity); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MakeReservation(ctx context.Context, res Reservation) (Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Reservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT t.table_number FROM restaurant_tables t
		 WHERE t.capacity >= ?
		   AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.date = ? AND r.time_slot = ? AND r.table_number = t.table_number
		   )
		 ORDER BY t.capacity, t.table_number
		 LIMIT 1`, res.Guests, res.Date, res.Time).Scan(&res.TableNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrNoTable
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("pick table: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reservations (date, time_slot, table_number, customer_name, phone, num_guests, special_requests)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.Date, res.Time, res.TableNumber, res.CustomerName, res.Phone, res.Guests, res.SpecialRequests)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Reservation{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) CancelReservation(ctx context.Context, date, timeSlot, customerName string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reservations
		 WHERE id = (
			SELECT id FROM reservations
			WHERE date = ? AND time_slot = ? AND LOWER(customer_name) = LOWER(?)
			LIMIT 1
		 )`, date, timeSlot, customerName)
	if err != nil {
		return false, fmt.Errorf("cancel reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel reservation: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Reservations(ctx context.Context, date string) ([]Reservation, error) {
	query := `SELECT date, time_slot, table_number, customer_name, phone, num_guests, special_requests
		 FROM reservations`
	args := []any{}
	if strings.TrimSpace(date) != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY date, time_slot, table_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.Date, &r.Time, &r.TableNumber, &r.CustomerName, &r.Phone, &r.Guests, &r.SpecialRequests); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Menu(ctx context.Context) ([]MenuItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, price, available FROM menu_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query menu: %w", err)
	}
	defer rows.Close()

	var out []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, customerName, phone, orderType string) (Order, error) {
	if orderType != "takeaway" && orderType != "delivery" {
		return Order{}, fmt.Errorf("invalid order type %q: choose takeaway or delivery", orderType)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (customer_name, phone, order_type) VALUES (?, ?, ?)`,
		customerName, phone, orderType)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return Order{
		ID:           int(id),
		CustomerName: customerName,
		Phone:        phone,
		Type:         orderType,
		Status:       OrderStatusPreparing,
	}, nil
}

func (s *SQLiteStore) AddOrderItem(ctx context.Context, orderID int, itemName string, quantity int) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	if status != OrderStatusPreparing {
		return Order{}, ErrOrderClosed
	}

	var name string
	var price float64
	err = tx.QueryRowContext(ctx,
		`SELECT name, price FROM menu_items
		 WHERE available AND LOWER(name) LIKE '%' || LOWER(?) || '%'
		 ORDER BY id LIMIT 1`, itemName).Scan(&name, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownItem, itemName)
	}
	if err != nil {
		return Order{}, fmt.Errorf("find menu item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_items (order_id, item_name, quantity, unit_price, subtotal)
		 VALUES (?, ?, ?, ?, ? * ?)
		 ON CONFLICT (order_id, item_name) DO UPDATE
		 SET quantity = order_items.quantity + excluded.quantity,
		     subtotal = (order_items.quantity + excluded.quantity) * order_items.unit_price`,
		orderID, name, quantity, price, quantity, price)
	if err != nil {
		return Order{}, fmt.Errorf("upsert order item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM order_items WHERE order_id = ?)
		 WHERE id = ?`, orderID, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("update total: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID int) (Order, error) {
	var o Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, phone, order_type, status, total FROM orders WHERE id = ?`,
		orderID).Scan(&o.ID, &o.CustomerName, &o.Phone, &o.Type, &o.Status, &o.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("load order: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_name, quantity, unit_price, subtotal FROM order_items WHERE order_id = ? ORDER BY item_name`,
		orderID)
	if err != nil {
		return Order{}, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ItemName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (s *SQLiteStore) CancelOrder(ctx context.Context, orderID int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		OrderStatusCancelled, orderID, OrderStatusPreparing)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Info(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM restaurant_info`)
	if err != nil {
		return nil, fmt.Errorf("query info: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan info: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
