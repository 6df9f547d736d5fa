package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nprieur/maitred/internal/brain"
	"github.com/nprieur/maitred/internal/store"
)

const inquiryPersona = `You answer general questions about the restaurant:
opening hours, location, contact details and special offers. Look the facts
up before answering and never invent them.`

// NewInquiryHandler builds the general-inquiry task handler. It reads from
// the restaurant info sheet and the menu.
func NewInquiryHandler(client brain.Client, st store.Store, maxIterations int) *Handler {
	return NewHandler("inquiry", client, inquiryPersona, maxIterations, InquiryTools(st)...)
}

func InquiryTools(st store.Store) []Tool {
	return []Tool{
		{
			Name:        "restaurant_info",
			Description: "Returns the restaurant fact sheet: hours, location, phone, email, offers.",
			Run: func(ctx context.Context, _ Args) (string, error) {
				info, err := st.Info(ctx)
				if err != nil {
					return "", err
				}
				keys := make([]string, 0, len(info))
				for k := range info {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				parts := make([]string, len(keys))
				for i, k := range keys {
					parts[i] = fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), info[k])
				}
				return strings.Join(parts, ". ") + ".", nil
			},
		},
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
	}
}
