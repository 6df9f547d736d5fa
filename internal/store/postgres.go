package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the restaurant directory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS restaurant_tables (
			table_number INT PRIMARY KEY,
			capacity INT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id BIGSERIAL PRIMARY KEY,
			date TEXT NOT NULL,
			time_slot TEXT NOT NULL,
			table_number INT NOT NULL REFERENCES restaurant_tables(table_number),
			customer_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			num_guests INT NOT NULL,
			special_requests TEXT NOT NULL DEFAULT '',
			UNIQUE (date, time_slot, table_number)
		);`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			price NUMERIC(8,2) NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			customer_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'preparing',
			total NUMERIC(8,2) NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id INT NOT NULL REFERENCES orders(id),
			item_name TEXT NOT NULL,
			quantity INT NOT NULL,
			unit_price NUMERIC(8,2) NOT NULL,
			subtotal NUMERIC(8,2) NOT NULL,
			PRIMARY KEY (order_id, item_name)
		);`,
		`CREATE TABLE IF NOT EXISTS restaurant_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return seedPostgres(ctx, pool)
}

func seedPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	seed := NewMemoryStore()
	for _, t := range seed.tables {
		if _, err := pool.Exec(ctx,
			`INSERT INTO restaurant_tables (table_number, capacity) VALUES ($1, $2)
			 ON CONFLICT (table_number) DO NOTHING`, t.Number, t.Capacity); err != nil {
			return fmt.Errorf("seed tables: %w", err)
		}
	}
	for _, m := range seed.menu {
		if _, err := pool.Exec(ctx,
			`INSERT INTO menu_items (name, category, price, available) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (name) DO NOTHING`, m.Name, m.Category, m.Price, m.Available); err != nil {
			return fmt.Errorf("seed menu: %w", err)
		}
	}
	for k, v := range seed.info {
		if _, err := pool.Exec(ctx,
			`INSERT INTO restaurant_info (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO NOTHING`, k, v); err != nil {
			return fmt.Errorf("seed info: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) AvailableTables(ctx context.Context, date, timeSlot string, guests int) ([]Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.table_number, t.capacity
		 FROM restaurant_tables t
		 WHERE t.capacity >= $1
		   AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.date = $2 AND r.time_slot = $3 AND r.table_number = t.table_number
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

func (s *PostgresStore) MakeReservation(ctx context.Context, res Reservation) (Reservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Reservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`SELECT t.table_number FROM restaurant_tables t
		 WHERE t.capacity >= $1
		   AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.date = $2 AND r.time_slot = $3 AND r.table_number = t.table_number
		   )
		 ORDER BY t.capacity, t.table_number
		 LIMIT 1
		 FOR UPDATE`, res.Guests, res.Date, res.Time).Scan(&res.TableNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNoTable
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("pick table: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reservations (date, time_slot, table_number, customer_name, phone, num_guests, special_requests)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.Date, res.Time, res.TableNumber, res.CustomerName, res.Phone, res.Guests, res.SpecialRequests)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) CancelReservation(ctx context.Context, date, timeSlot, customerName string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM reservations
		 WHERE ctid IN (
			SELECT ctid FROM reservations
			WHERE date = $1 AND time_slot = $2 AND LOWER(customer_name) = LOWER($3)
			LIMIT 1
		 )`, date, timeSlot, customerName)
	if err != nil {
		return false, fmt.Errorf("cancel reservation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Reservations(ctx context.Context, date string) ([]Reservation, error) {
	query := `SELECT date, time_slot, table_number, customer_name, phone, num_guests, special_requests
		 FROM reservations`
	args := []any{}
	if strings.TrimSpace(date) != "" {
		query += ` WHERE date = $1`
		args = append(args, date)
	}
	query += ` ORDER BY date, time_slot, table_number`

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) Menu(ctx context.Context) ([]MenuItem, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *PostgresStore) CreateOrder(ctx context.Context, customerName, phone, orderType string) (Order, error) {
	if orderType != "takeaway" && orderType != "delivery" {
		return Order{}, fmt.Errorf("invalid order type %q: choose takeaway or delivery", orderType)
	}
	o := Order{CustomerName: customerName, Phone: phone, Type: orderType, Status: OrderStatusPreparing}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO orders (customer_name, phone, order_type) VALUES ($1, $2, $3) RETURNING id`,
		customerName, phone, orderType).Scan(&o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) AddOrderItem(ctx context.Context, orderID int, itemName string, quantity int) (Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err = tx.QueryRow(ctx,
		`SELECT name, price FROM menu_items
		 WHERE available AND name ILIKE '%' || $1 || '%'
		 ORDER BY id LIMIT 1`, itemName).Scan(&name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownItem, itemName)
	}
	if err != nil {
		return Order{}, fmt.Errorf("find menu item: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_items (order_id, item_name, quantity, unit_price, subtotal)
		 VALUES ($1, $2, $3, $4, $3 * $4)
		 ON CONFLICT (order_id, item_name) DO UPDATE
		 SET quantity = order_items.quantity + EXCLUDED.quantity,
		     subtotal = (order_items.quantity + EXCLUDED.quantity) * order_items.unit_price`,
		orderID, name, quantity, price)
	if err != nil {
		return Order{}, fmt.Errorf("upsert order item: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM order_items WHERE order_id = $1)
		 WHERE id = $1`, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("update total: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID int) (Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx,
		`SELECT id, customer_name, phone, order_type, status, total FROM orders WHERE id = $1`,
		orderID).Scan(&o.ID, &o.CustomerName, &o.Phone, &o.Type, &o.Status, &o.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("load order: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT item_name, quantity, unit_price, subtotal FROM order_items WHERE order_id = $1 ORDER BY item_name`,
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

func (s *PostgresStore) CancelOrder(ctx context.Context, orderID int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
		orderID, OrderStatusCancelled, OrderStatusPreparing)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Info(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM restaurant_info`)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
