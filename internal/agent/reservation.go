package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nprieur/maitred/internal/brain"
	"github.com/nprieur/maitred/internal/store"
)

const reservationPersona = `You handle table reservations for the restaurant.
Check availability before booking. Dates are YYYY-MM-DD and times are HH:MM.`

// NewReservationHandler builds the reservation task handler over the
// restaurant directory.
func NewReservationHandler(client brain.Client, st store.Store, maxIterations int) *Handler {
	return NewHandler("reservation", client, reservationPersona, maxIterations, ReservationTools(st)...)
}

func ReservationTools(st store.Store) []Tool {
	return []Tool{
		{
			Name:        "check_availability",
			Description: "Lists free tables for a date, time and party size.",
			Params: []ParamSpec{
				{Key: "date", Prompt: "the date", Required: true},
				{Key: "time", Prompt: "the time", Required: true},
				{Key: "guests", Prompt: "the number of guests", Required: true},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				guests, err := intArg(args, "guests")
				if err != nil {
					return "", err
				}
				tables, err := st.AvailableTables(ctx, args["date"], args["time"], guests)
				if err != nil {
					return "", err
				}
				if len(tables) == 0 {
					return fmt.Sprintf("No table is free on %s at %s for %d guests.", args["date"], args["time"], guests), nil
				}
				parts := make([]string, len(tables))
				for i, t := range tables {
					parts[i] = fmt.Sprintf("table %d (seats %d)", t.Number, t.Capacity)
				}
				return fmt.Sprintf("Free on %s at %s for %d guests: %s.", args["date"], args["time"], guests, strings.Join(parts, ", ")), nil
			},
		},
		{
			Name:        "make_reservation",
			Description: "Books the smallest suitable free table.",
			Mutating:    true,
			Params: []ParamSpec{
				{Key: "date", Prompt: "the date", Required: true},
				{Key: "time", Prompt: "the time", Required: true},
				{Key: "guests", Prompt: "the number of guests", Required: true},
				{Key: "name", Prompt: "your name", Required: true, Identifying: true},
				{Key: "phone", Prompt: "a phone number", Required: true, Identifying: true},
				{Key: "special_requests", Prompt: "any special requests"},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				guests, err := intArg(args, "guests")
				if err != nil {
					return "", err
				}
				res, err := st.MakeReservation(ctx, store.Reservation{
					Date:            args["date"],
					Time:            args["time"],
					Guests:          guests,
					CustomerName:    args["name"],
					Phone:           args["phone"],
					SpecialRequests: args["special_requests"],
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Reservation confirmed for %s: table %d for %d guests on %s at %s.",
					res.CustomerName, res.TableNumber, res.Guests, res.Date, res.Time), nil
			},
		},
		{
			Name:        "cancel_reservation",
			Description: "Cancels an existing reservation and frees the table.",
			Mutating:    true,
			Params: []ParamSpec{
				{Key: "date", Prompt: "the date of the reservation", Required: true},
				{Key: "time", Prompt: "the time of the reservation", Required: true},
				{Key: "name", Prompt: "the name the reservation is under", Required: true, Identifying: true},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				ok, err := st.CancelReservation(ctx, args["date"], args["time"], args["name"])
				if err != nil {
					return "", err
				}
				if !ok {
					return fmt.Sprintf("No reservation found for %s on %s at %s.", args["name"], args["date"], args["time"]), nil
				}
				return fmt.Sprintf("The reservation for %s on %s at %s is cancelled.", args["name"], args["date"], args["time"]), nil
			},
		},
		{
			Name:        "view_reservations",
			Description: "Lists reservations, optionally for one date.",
			Params: []ParamSpec{
				{Key: "date", Prompt: "the date"},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				reservations, err := st.Reservations(ctx, args["date"])
				if err != nil {
					return "", err
				}
				if len(reservations) == 0 {
					return "There are no reservations on record.", nil
				}
				parts := make([]string, len(reservations))
				for i, r := range reservations {
					parts[i] = fmt.Sprintf("%s at %s, table %d, %d guests under %s", r.Date, r.Time, r.TableNumber, r.Guests, r.CustomerName)
				}
				return "Reservations: " + strings.Join(parts, "; ") + ".", nil
			},
		},
	}
}
