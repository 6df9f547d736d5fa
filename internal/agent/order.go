package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nprieur/maitred/internal/brain"
	"github.com/nprieur/maitred/internal/store"
)

const orderPersona = `You take takeaway and delivery food orders for the
restaurant. Always check the menu before adding items, create the order
first, then add items to it, and finish by telling the customer the order
number and total.`

// NewOrderHandler builds the ordering task handler over the restaurant
// directory.
func NewOrderHandler(client brain.Client, st store.Store, maxIterations int) *Handler {
	return NewHandler("order", client, orderPersona, maxIterations, OrderTools(st)...)
}

func OrderTools(st store.Store) []Tool {
	return []Tool{
		{
			Name:        "view_menu",
			Description: "Lists the dishes currently on the menu with prices.",
			Run: func(ctx context.Context, _ Args) (string, error) {
				menu, err := st.Menu(ctx)
				if err != nil {
					return "", err
				}
				parts := make([]string, 0, len(menu))
				for _, m := range menu {
					if !m.Available {
						continue
					}
					parts = append(parts, fmt.Sprintf("%s (%s) %.2f", m.Name, m.Category, m.Price))
				}
				return "Menu: " + strings.Join(parts, "; ") + ".", nil
			},
		},
		{
			Name:        "create_order",
			Description: "Opens a new takeaway or delivery order.",
			Mutating:    true,
			Params: []ParamSpec{
				{Key: "name", Prompt: "your name", Required: true, Identifying: true},
				{Key: "phone", Prompt: "a phone number", Required: true, Identifying: true},
				{Key: "order_type", Prompt: "whether this is takeaway or delivery", Required: true},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				o, err := st.CreateOrder(ctx, args["name"], args["phone"], strings.ToLower(args["order_type"]))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Order #%d opened for %s (%s).", o.ID, o.CustomerName, o.Type), nil
			},
		},
		{
			Name:        "add_order_item",
			Description: "Adds a quantity of one menu item to an open order.",
			Mutating:    true,
			Params: []ParamSpec{
				{Key: "order_id", Prompt: "the order number", Required: true},
				{Key: "item", Prompt: "which dish you would like", Required: true},
				{Key: "quantity", Prompt: "how many"},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				orderID, err := intArg(args, "order_id")
				if err != nil {
					return "", err
				}
				quantity := 1
				if _, ok := args["quantity"]; ok {
					if quantity, err = intArg(args, "quantity"); err != nil {
						return "", err
					}
				}
				o, err := st.AddOrderItem(ctx, orderID, args["item"], quantity)
				if err != nil {
					return "", err
				}
				name := args["item"]
				for _, it := range o.Items {
					if strings.Contains(strings.ToLower(it.ItemName), strings.ToLower(name)) {
						name = it.ItemName
						break
					}
				}
				return fmt.Sprintf("Added %d x %s to order #%d. Total is now %.2f.",
					quantity, name, o.ID, o.Total), nil
			},
		},
		{
			Name:        "order_status",
			Description: "Reads back an order's items, total and status.",
			Params: []ParamSpec{
				{Key: "order_id", Prompt: "the order number", Required: true},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				orderID, err := intArg(args, "order_id")
				if err != nil {
					return "", err
				}
				o, err := st.GetOrder(ctx, orderID)
				if err != nil {
					return "", err
				}
				if len(o.Items) == 0 {
					return fmt.Sprintf("Order #%d (%s) is %s and has no items yet.", o.ID, o.Type, o.Status), nil
				}
				parts := make([]string, len(o.Items))
				for i, it := range o.Items {
					parts[i] = fmt.Sprintf("%d x %s", it.Quantity, it.ItemName)
				}
				return fmt.Sprintf("Order #%d (%s) is %s: %s. Total %.2f.",
					o.ID, o.Type, o.Status, strings.Join(parts, ", "), o.Total), nil
			},
		},
		{
			Name:        "cancel_order",
			Description: "Cancels an order that is still being prepared.",
			Mutating:    true,
			Params: []ParamSpec{
				{Key: "order_id", Prompt: "the order number", Required: true},
			},
			Run: func(ctx context.Context, args Args) (string, error) {
				orderID, err := intArg(args, "order_id")
				if err != nil {
					return "", err
				}
				ok, err := st.CancelOrder(ctx, orderID)
				if err != nil {
					return "", err
				}
				if !ok {
					return fmt.Sprintf("Order #%d cannot be cancelled any more.", orderID), nil
				}
				return fmt.Sprintf("Order #%d is cancelled.", orderID), nil
			},
		},
	}
}
