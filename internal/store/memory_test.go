package store

import (
	"context"
	"errors"
	"testing"
)

func TestMakeReservationPicksSmallestTable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-01", Time: "19:00",
		CustomerName: "Dupont", Phone: "+33600000001", Guests: 2,
	})
	if err != nil {
		t.Fatalf("MakeReservation: %v", err)
	}
	if res.TableNumber != 1 {
		t.Fatalf("expected smallest table 1 for 2 guests, got %d", res.TableNumber)
	}

	// Same slot again: table 1 is taken, the next 2-seater should be picked.
	res2, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-01", Time: "19:00",
		CustomerName: "Martin", Phone: "+33600000002", Guests: 2,
	})
	if err != nil {
		t.Fatalf("second MakeReservation: %v", err)
	}
	if res2.TableNumber != 2 {
		t.Fatalf("expected table 2, got %d", res2.TableNumber)
	}
}

func TestMakeReservationNoTable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-01", Time: "19:00",
		CustomerName: "Big Party", Phone: "+33600000003", Guests: 20,
	}); !errors.Is(err, ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
}

func TestAvailableTablesExcludesReserved(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	before, err := s.AvailableTables(ctx, "2026-09-02", "20:00", 4)
	if err != nil {
		t.Fatalf("AvailableTables: %v", err)
	}

	if _, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-02", Time: "20:00",
		CustomerName: "Durand", Phone: "+33600000004", Guests: 4,
	}); err != nil {
		t.Fatalf("MakeReservation: %v", err)
	}

	after, err := s.AvailableTables(ctx, "2026-09-02", "20:00", 4)
	if err != nil {
		t.Fatalf("AvailableTables: %v", err)
	}
	if len(after) != len(before)-1 {
		t.Fatalf("expected one fewer table, before=%d after=%d", len(before), len(after))
	}
	// A different slot is unaffected.
	other, err := s.AvailableTables(ctx, "2026-09-02", "12:00", 4)
	if err != nil {
		t.Fatalf("AvailableTables: %v", err)
	}
	if len(other) != len(before) {
		t.Fatalf("different slot should be unaffected, got %d want %d", len(other), len(before))
	}
}

func TestCancelReservationCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-03", Time: "19:30",
		CustomerName: "Lefevre", Phone: "+33600000005", Guests: 2,
	}); err != nil {
		t.Fatalf("MakeReservation: %v", err)
	}

	ok, err := s.CancelReservation(ctx, "2026-09-03", "19:30", "LEFEVRE")
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if !ok {
		t.Fatal("expected cancellation to match case-insensitively")
	}

	ok, err = s.CancelReservation(ctx, "2026-09-03", "19:30", "Lefevre")
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if ok {
		t.Fatal("second cancellation should find nothing")
	}
}

func TestReservationsFilterByDate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	dates := []string{"2026-09-04", "2026-09-04", "2026-09-05"}
	for i, d := range dates {
		if _, err := s.MakeReservation(ctx, Reservation{
			Date: d, Time: "19:00",
			CustomerName: "Guest", Phone: "+3360000000", Guests: 2 + i,
		}); err != nil {
			t.Fatalf("MakeReservation %d: %v", i, err)
		}
	}

	day, err := s.Reservations(ctx, "2026-09-04")
	if err != nil {
		t.Fatalf("Reservations: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("expected 2 reservations on the day, got %d", len(day))
	}
	all, err := s.Reservations(ctx, "")
	if err != nil {
		t.Fatalf("Reservations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 reservations total, got %d", len(all))
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	o, err := s.CreateOrder(ctx, "Moreau", "+33600000006", "takeaway")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != OrderStatusPreparing {
		t.Fatalf("new order status = %q, want preparing", o.Status)
	}

	o, err = s.AddOrderItem(ctx, o.ID, "margherita", 2)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].ItemName != "Margherita Pizza" {
		t.Fatalf("partial match failed: %+v", o.Items)
	}
	if o.Total != 19.00 {
		t.Fatalf("total = %.2f, want 19.00", o.Total)
	}

	// Adding the same item merges quantities.
	o, err = s.AddOrderItem(ctx, o.ID, "Margherita Pizza", 1)
	if err != nil {
		t.Fatalf("AddOrderItem merge: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].Quantity != 3 {
		t.Fatalf("merge failed: %+v", o.Items)
	}
	if o.Total != 28.50 {
		t.Fatalf("total after merge = %.2f, want 28.50", o.Total)
	}

	if _, err := s.AddOrderItem(ctx, o.ID, "sushi", 1); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}

	ok, err := s.CancelOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if !ok {
		t.Fatal("expected preparing order to cancel")
	}
	if _, err := s.AddOrderItem(ctx, o.ID, "tiramisu", 1); !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed after cancellation, got %v", err)
	}
	ok, err = s.CancelOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("CancelOrder twice: %v", err)
	}
	if ok {
		t.Fatal("cancelled order should not cancel again")
	}
}

func TestCreateOrderRejectsBadType(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CreateOrder(context.Background(), "X", "+336", "dine-in"); err == nil {
		t.Fatal("expected error for unknown order type")
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetOrder(context.Background(), 999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestGetOrderReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	o, err := s.CreateOrder(ctx, "Petit", "+33600000007", "delivery")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := s.AddOrderItem(ctx, o.ID, "tiramisu", 1); err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	got.Items[0].Quantity = 99

	again, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if again.Items[0].Quantity == 99 {
		t.Fatal("GetOrder must return a copy")
	}
}

func TestInfoSheet(t *testing.T) {
	s := NewMemoryStore()
	info, err := s.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	for _, key := range []string{"opening_hours", "location", "phone"} {
		if info[key] == "" {
			t.Errorf("info sheet missing %q", key)
		}
	}
}

func TestFactoryModes(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Config{Mode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := New(ctx, Config{Mode: "postgres"}); err == nil {
		t.Fatal("postgres mode without DATABASE_URL should fail")
	}
	if _, err := New(ctx, Config{Mode: "sqlite"}); err == nil {
		t.Fatal("sqlite mode without path should fail")
	}

	s, err := New(ctx, Config{Mode: "memory"})
	if err != nil {
		t.Fatalf("memory mode: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected MemoryStore, got %T", s)
	}

	s, err = New(ctx, Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("auto mode with no backends: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("auto mode should fall back to MemoryStore, got %T", s)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/directory.db"

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	menu, err := s.Menu(ctx)
	if err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if len(menu) == 0 {
		t.Fatal("sqlite store should be seeded with menu items")
	}

	res, err := s.MakeReservation(ctx, Reservation{
		Date: "2026-09-06", Time: "19:00",
		CustomerName: "Roche", Phone: "+33600000008", Guests: 2,
	})
	if err != nil {
		t.Fatalf("MakeReservation: %v", err)
	}
	if res.TableNumber == 0 {
		t.Fatal("expected a table to be assigned")
	}

	o, err := s.CreateOrder(ctx, "Roche", "+33600000008", "delivery")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	o, err = s.AddOrderItem(ctx, o.ID, "carbonara", 2)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if o.Total != 23.00 {
		t.Fatalf("total = %.2f, want 23.00", o.Total)
	}

	// Re-opening must not duplicate the seed.
	s.Close()
	s2, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer s2.Close()
	menu2, err := s2.Menu(ctx)
	if err != nil {
		t.Fatalf("Menu after reopen: %v", err)
	}
	if len(menu2) != len(menu) {
		t.Fatalf("seed duplicated on reopen: %d vs %d", len(menu2), len(menu))
	}
}
