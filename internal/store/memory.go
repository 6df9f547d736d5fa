package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is the default volatile backend, seeded with a small floor
// plan, menu and info sheet so the gateway works out of the box.
type MemoryStore struct {
	mu           sync.RWMutex
	tables       []Table
	reservations []Reservation
	menu         []MenuItem
	orders       map[int]*Order
	nextOrderID  int
	info         map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: []Table{
			{Number: 1, Capacity: 2},
			{Number: 2, Capacity: 2},
			{Number: 3, Capacity: 4},
			{Number: 4, Capacity: 4},
			{Number: 5, Capacity: 4},
			{Number: 6, Capacity: 6},
			{Number: 7, Capacity: 6},
			{Number: 8, Capacity: 8},
		},
		menu: []MenuItem{
			{ID: 1, Name: "Margherita Pizza", Category: "main", Price: 9.50, Available: true},
			{ID: 2, Name: "Quattro Formaggi Pizza", Category: "main", Price: 12.00, Available: true},
			{ID: 3, Name: "Pasta Carbonara", Category: "main", Price: 11.50, Available: true},
			{ID: 4, Name: "Caesar Salad", Category: "starter", Price: 8.00, Available: true},
			{ID: 5, Name: "Onion Soup", Category: "starter", Price: 6.50, Available: true},
			{ID: 6, Name: "Tiramisu", Category: "dessert", Price: 6.00, Available: true},
			{ID: 7, Name: "Creme Brulee", Category: "dessert", Price: 6.50, Available: true},
			{ID: 8, Name: "House Red Wine", Category: "drink", Price: 5.00, Available: true},
		},
		orders:      make(map[int]*Order),
		nextOrderID: 1,
		info: map[string]string{
			"opening_hours":  "Tuesday to Sunday, 12:00-14:30 and 19:00-22:30",
			"location":       "12 Rue des Halles, Paris",
			"phone":          "+33 1 42 00 00 00",
			"email":          "contact@restaurant.example",
			"special_offers": "Lunch menu at 19.90 on weekdays",
		},
	}
}

func (s *MemoryStore) AvailableTables(_ context.Context, date, timeSlot string, guests int) ([]Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Table
	for _, t := range s.tables {
		if t.Capacity < guests {
			continue
		}
		if s.reservedLocked(date, timeSlot, t.Number) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Capacity < out[j].Capacity })
	return out, nil
}

func (s *MemoryStore) MakeReservation(_ context.Context, res Reservation) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First fit: smallest free table with sufficient capacity.
	candidates := make([]Table, 0, len(s.tables))
	for _, t := range s.tables {
		if t.Capacity >= res.Guests && !s.reservedLocked(res.Date, res.Time, t.Number) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return Reservation{}, ErrNoTable
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Capacity < candidates[j].Capacity })

	res.TableNumber = candidates[0].Number
	s.reservations = append(s.reservations, res)
	return res, nil
}

func (s *MemoryStore) CancelReservation(_ context.Context, date, timeSlot, customerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reservations {
		if r.Date == date && r.Time == timeSlot && strings.EqualFold(r.CustomerName, customerName) {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Reservations(_ context.Context, date string) ([]Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Reservation
	for _, r := range s.reservations {
		if date == "" || r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Menu(_ context.Context) ([]MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]MenuItem(nil), s.menu...), nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, customerName, phone, orderType string) (Order, error) {
	if orderType != "takeaway" && orderType != "delivery" {
		return Order{}, fmt.Errorf("invalid order type %q: choose takeaway or delivery", orderType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o := &Order{
		ID:           s.nextOrderID,
		CustomerName: customerName,
		Phone:        phone,
		Type:         orderType,
		Status:       OrderStatusPreparing,
	}
	s.nextOrderID++
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *MemoryStore) AddOrderItem(_ context.Context, orderID int, itemName string, quantity int) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status != OrderStatusPreparing {
		return Order{}, ErrOrderClosed
	}

	item, ok := s.findMenuItemLocked(itemName)
	if !ok {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownItem, itemName)
	}

	merged := false
	for i := range o.Items {
		if strings.EqualFold(o.Items[i].ItemName, item.Name) {
			o.Items[i].Quantity += quantity
			o.Items[i].Subtotal = float64(o.Items[i].Quantity) * o.Items[i].UnitPrice
			merged = true
			break
		}
	}
	if !merged {
		o.Items = append(o.Items, OrderItem{
			ItemName:  item.Name,
			Quantity:  quantity,
			UnitPrice: item.Price,
			Subtotal:  float64(quantity) * item.Price,
		})
	}

	o.Total = 0
	for _, it := range o.Items {
		o.Total += it.Subtotal
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID int) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) CancelOrder(_ context.Context, orderID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != OrderStatusPreparing {
		return false, nil
	}
	o.Status = OrderStatusCancelled
	return true, nil
}

func (s *MemoryStore) Info(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.info))
	for k, v := range s.info {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) reservedLocked(date, timeSlot string, tableNumber int) bool {
	for _, r := range s.reservations {
		if r.Date == date && r.Time == timeSlot && r.TableNumber == tableNumber {
			return true
		}
	}
	return false
}

func (s *MemoryStore) findMenuItemLocked(name string) (MenuItem, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return MenuItem{}, false
	}
	for _, item := range s.menu {
		if !item.Available {
			continue
		}
		if strings.Contains(strings.ToLower(item.Name), needle) {
			return item, true
		}
	}
	return MenuItem{}, false
}

func cloneOrder(o *Order) Order {
	out := *o
	out.Items = append([]OrderItem(nil), o.Items...)
	return out
}
