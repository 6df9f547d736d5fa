// Package store is the boundary to the restaurant directory: tables,
// reservations, menu, orders and the info sheet the inquiry handler reads.
package store

import (
	"context"
	"errors"
)

var (
	ErrNoTable       = errors.New("no table available")
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderClosed   = errors.New("order can no longer be modified")
	ErrUnknownItem   = errors.New("menu item not found")
)

// Table is a physical table with a fixed capacity.
type Table struct {
	Number   int `json:"table_number"`
	Capacity int `json:"capacity"`
}

// Reservation books a table for a date and time slot.
type Reservation struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	TableNumber     int    `json:"table_number"`
	CustomerName    string `json:"customer_name"`
	Phone           string `json:"phone"`
	Guests          int    `json:"num_guests"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

// MenuItem is one orderable dish.
type MenuItem struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// OrderItem is a line inside an order.
type OrderItem struct {
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Order statuses mirror the kitchen workflow; only preparing orders accept
// changes.
const (
	OrderStatusPreparing = "preparing"
	OrderStatusCancelled = "cancelled"
)

// Order is a takeaway or delivery food order.
type Order struct {
	ID           int         `json:"id"`
	CustomerName string      `json:"customer_name"`
	Phone        string      `json:"phone"`
	Type         string      `json:"order_type"`
	Status       string      `json:"status"`
	Total        float64     `json:"total"`
	Items        []OrderItem `json:"items"`
}

// Store exposes the directory operations the task-handler tools need.
type Store interface {
	AvailableTables(ctx context.Context, date, timeSlot string, guests int) ([]Table, error)
	MakeReservation(ctx context.Context, res Reservation) (Reservation, error)
	CancelReservation(ctx context.Context, date, timeSlot, customerName string) (bool, error)
	Reservations(ctx context.Context, date string) ([]Reservation, error)

	Menu(ctx context.Context) ([]MenuItem, error)
	CreateOrder(ctx context.Context, customerName, phone, orderType string) (Order, error)
	AddOrderItem(ctx context.Context, orderID int, itemName string, quantity int) (Order, error)
	GetOrder(ctx context.Context, orderID int) (Order, error)
	CancelOrder(ctx context.Context, orderID int) (bool, error)

	Info(ctx context.Context) (map[string]string, error)

	Close() error
}
