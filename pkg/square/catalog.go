package square

import (
	"context"
	"sort"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
)

// maxCatalogPages bounds one listing so a misbehaving cursor cannot loop.
const maxCatalogPages = 100

// CatalogItem is a sellable item with its variations. Order line items point
// at variation ids, not the item id.
type CatalogItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	CategoryID  string      `json:"category_id,omitempty"`
	Variations  []Variation `json:"variations"`
}

type Variation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency,omitempty"`
}

// Catalog is the cached listing for one merchant.
type Catalog struct {
	Items []CatalogItem `json:"items"`
}

// VariationIndex maps variation ids to their parent item ids.
func (c Catalog) VariationIndex() map[string]string {
	out := make(map[string]string)
	for _, item := range c.Items {
		out[item.ID] = item.ID
		for _, v := range item.Variations {
			out[v.ID] = item.ID
		}
	}
	return out
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type wireCatalogObject struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	IsDeleted bool   `json:"is_deleted"`
	ItemData  *struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		CategoryID  string `json:"category_id"`
		Variations  []struct {
			ID                string `json:"id"`
			ItemVariationData *struct {
				Name       string     `json:"name"`
				PriceMoney *wireMoney `json:"price_money"`
			} `json:"item_variation_data"`
		} `json:"variations"`
	} `json:"item_data"`
}

// ListCatalogItems pages through the merchant's ITEM objects.
func (c *Client) ListCatalogItems(ctx context.Context, accessToken string) ([]CatalogItem, error) {
	sdk, err := c.sdk(accessToken)
	if err != nil {
		return nil, err
	}

	var (
		items  []CatalogItem
		cursor *string
	)
	for page := 0; page < maxCatalogPages; page++ {
		req := &sq.SearchCatalogObjectsRequest{
			Cursor:      cursor,
			ObjectTypes: []sq.CatalogObjectType{sq.CatalogObjectTypeItem},
		}
		c.log(ctx, "request", "list_catalog", map[string]any{"page": page})

		var resp *sq.SearchCatalogObjectsResponse
		err := c.do(ctx, "list_catalog", func(ctx context.Context) error {
			var callErr error
			resp, callErr = sdk.Catalog.Search(ctx, req)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		var objects []wireCatalogObject
		if err := reshape(resp.GetObjects(), &objects); err != nil {
			return nil, c.mapSquareError(err, "decode catalog")
		}
		items = append(items, normalizeCatalog(objects)...)

		next := stringValue(resp.GetCursor())
		if next == "" {
			break
		}
		cursor = &next
	}

	c.log(ctx, "response", "list_catalog", map[string]any{"items": len(items)})
	return items, nil
}

// FetchCatalog serves the listing through the adapter cache. merchantKey
// scopes the cache entry, normally the vendor id.
func (c *Client) FetchCatalog(ctx context.Context, merchantKey, accessToken string) adapter.Result[Catalog] {
	load := func(ctx context.Context) (*Catalog, error) {
		items, err := c.ListCatalogItems(ctx, accessToken)
		if err != nil {
			return nil, adapter.Permanent(err)
		}
		return &Catalog{Items: items}, nil
	}
	if c.catalog == nil {
		cat, err := load(ctx)
		if err != nil {
			c.log(ctx, "error", "fetch_catalog", map[string]any{"error": err.Error()})
			return adapter.Result[Catalog]{Degraded: true}
		}
		return adapter.Result[Catalog]{Value: cat}
	}
	return c.catalog.Fetch(ctx, merchantKey, load)
}

func normalizeCatalog(objects []wireCatalogObject) []CatalogItem {
	out := make([]CatalogItem, 0, len(objects))
	for _, obj := range objects {
		if obj.Type != "ITEM" || obj.IsDeleted || obj.ItemData == nil || obj.ID == "" {
			continue
		}
		item := CatalogItem{
			ID:          obj.ID,
			Name:        obj.ItemData.Name,
			Description: obj.ItemData.Description,
			CategoryID:  obj.ItemData.CategoryID,
		}
		for _, v := range obj.ItemData.Variations {
			variation := Variation{ID: v.ID}
			if v.ItemVariationData != nil {
				variation.Name = v.ItemVariationData.Name
				if m := v.ItemVariationData.PriceMoney; m != nil {
					variation.PriceCents = m.Amount
					variation.Currency = m.Currency
				}
			}
			item.Variations = append(item.Variations, variation)
		}
		sort.SliceStable(item.Variations, func(i, j int) bool {
			return item.Variations[i].PriceCents < item.Variations[j].PriceCents
		})
		out = append(out, item)
	}
	return out
}
