package square

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
)

const maxOrderPages = 200

// OrderSearchParams selects completed orders closed within [ClosedFrom, ClosedTo).
type OrderSearchParams struct {
	LocationIDs []string
	ClosedFrom  time.Time
	ClosedTo    time.Time
	Cursor      string
}

type Order struct {
	ID         string
	LocationID string
	ClosedAt   time.Time
	TotalCents int64
	LineItems  []OrderLineItem
}

type OrderLineItem struct {
	CatalogObjectID string
	Name            string
	Quantity        int
	UnitPriceCents  int64
}

type wireOrder struct {
	ID         string     `json:"id"`
	LocationID string     `json:"location_id"`
	State      string     `json:"state"`
	ClosedAt   string     `json:"closed_at"`
	TotalMoney *wireMoney `json:"total_money"`
	LineItems  []struct {
		CatalogObjectID string     `json:"catalog_object_id"`
		Name            string     `json:"name"`
		Quantity        string     `json:"quantity"`
		BasePriceMoney  *wireMoney `json:"base_price_money"`
	} `json:"line_items"`
}

// SearchCompletedOrders returns COMPLETED orders ordered by closed_at.
func (c *Client) SearchCompletedOrders(ctx context.Context, accessToken string, params OrderSearchParams) ([]Order, error) {
	if len(params.LocationIDs) == 0 {
		return nil, errors.New("square location ids are required")
	}
	sdk, err := c.sdk(accessToken)
	if err != nil {
		return nil, err
	}

	closedAt := &sq.TimeRange{}
	if !params.ClosedFrom.IsZero() {
		closedAt.StartAt = sq.String(params.ClosedFrom.UTC().Format(time.RFC3339))
	}
	if !params.ClosedTo.IsZero() {
		closedAt.EndAt = sq.String(params.ClosedTo.UTC().Format(time.RFC3339))
	}
	query := &sq.SearchOrdersQuery{
		Filter: &sq.SearchOrdersFilter{
			StateFilter:    &sq.SearchOrdersStateFilter{States: []sq.OrderState{sq.OrderStateCompleted}},
			DateTimeFilter: &sq.SearchOrdersDateTimeFilter{ClosedAt: closedAt},
		},
		Sort: &sq.SearchOrdersSort{
			SortField: sq.SearchOrdersSortFieldClosedAt,
			SortOrder: sq.SortOrderAsc.Ptr(),
		},
	}

	var (
		orders []Order
		cursor *string
	)
	if params.Cursor != "" {
		cursor = sq.String(params.Cursor)
	}
	for page := 0; page < maxOrderPages; page++ {
		req := &sq.SearchOrdersRequest{
			LocationIDs: params.LocationIDs,
			Cursor:      cursor,
			Query:       query,
		}
		c.log(ctx, "request", "search_orders", map[string]any{
			"locations": len(params.LocationIDs),
			"page":      page,
		})

		var resp *sq.SearchOrdersResponse
		err := c.do(ctx, "search_orders", func(ctx context.Context) error {
			var callErr error
			resp, callErr = sdk.Orders.Search(ctx, req)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		var wire []wireOrder
		if err := reshape(resp.GetOrders(), &wire); err != nil {
			return nil, c.mapSquareError(err, "decode orders")
		}
		for _, w := range wire {
			if order, ok := normalizeOrder(w); ok {
				orders = append(orders, order)
			}
		}

		next := stringValue(resp.GetCursor())
		if next == "" {
			break
		}
		cursor = &next
	}

	c.log(ctx, "response", "search_orders", map[string]any{"orders": len(orders)})
	return orders, nil
}

func normalizeOrder(w wireOrder) (Order, bool) {
	if w.ID == "" || (w.State != "" && w.State != "COMPLETED") {
		return Order{}, false
	}
	closedAt, err := time.Parse(time.RFC3339, w.ClosedAt)
	if err != nil {
		return Order{}, false
	}
	order := Order{
		ID:         w.ID,
		LocationID: w.LocationID,
		ClosedAt:   closedAt.UTC(),
	}
	if w.TotalMoney != nil {
		order.TotalCents = w.TotalMoney.Amount
	}
	for _, li := range w.LineItems {
		item := OrderLineItem{
			CatalogObjectID: li.CatalogObjectID,
			Name:            li.Name,
			Quantity:        parseQuantity(li.Quantity),
		}
		if li.BasePriceMoney != nil {
			item.UnitPriceCents = li.BasePriceMoney.Amount
		}
		order.LineItems = append(order.LineItems, item)
	}
	return order, true
}

// parseQuantity reads Square's decimal string quantity, rounding fractional
// units (weighed goods) to the nearest whole unit.
func parseQuantity(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f + 0.5)
}
