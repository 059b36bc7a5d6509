package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"waste-reduction-api/internal/core/engine"
	"waste-reduction-api/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// defaultPageSize PostgREST 單頁筆數上限
const defaultPageSize = 1000

// SupabaseLoader 透過 Supabase REST API 載入完整資料集
type SupabaseLoader struct {
	client   *resty.Client
	pageSize int
}

// SupabaseConfig Supabase 連線設定
type SupabaseConfig struct {
	URL      string
	Key      string
	Timeout  time.Duration
	PageSize int
}

// NewSupabaseLoader 建立 Supabase 載入器
func NewSupabaseLoader(cfg SupabaseConfig) *SupabaseLoader {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/rest/v1", cfg.URL)).
		SetHeader("apikey", cfg.Key).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Key)).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &SupabaseLoader{client: client, pageSize: pageSize}
}

// flexList 同時接受 JSON 陣列與序列化字串兩種過敏原表示法
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := common.ParseStringList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

type userRow struct {
	UserID              string   `json:"user_id"`
	DietType            string   `json:"diet_type"`
	Allergies           flexList `json:"allergies"`
	PrefersDiscount     bool     `json:"prefers_discount"`
	PreferredCategories flexList `json:"preferred_categories"`
}

type productRow struct {
	ProductID              string   `json:"product_id"`
	Name                   string   `json:"name"`
	Category               string   `json:"category"`
	Brand                  string   `json:"brand"`
	DietType               string   `json:"diet_type"`
	Allergens              flexList `json:"allergens"`
	PriceMRP               float64  `json:"price_mrp"`
	CostPrice              float64  `json:"cost_price"`
	CurrentDiscountPercent float64  `json:"current_discount_percent"`
	WeightGrams            float64  `json:"weight_grams"`
	ShelfLifeDays          int      `json:"shelf_life_days"`
	PackagingDate          string   `json:"packaging_date"`
	ExpiryDate             string   `json:"expiry_date"`
	InventoryQuantity      *float64 `json:"inventory_quantity"`
}

type transactionRow struct {
	UserID              string  `json:"user_id"`
	ProductID           string  `json:"product_id"`
	PurchaseDate        string  `json:"purchase_date"`
	Quantity            float64 `json:"quantity"`
	DiscountPercent     float64 `json:"discount_percent"`
	UserEngagedWithDeal float64 `json:"user_engaged_with_deal"`
}

// Load 依序抓取三張表並轉為引擎資料集
func (l *SupabaseLoader) Load(ctx context.Context) (engine.Dataset, error) {
	var users []userRow
	if err := l.fetchAll(ctx, "users", &users); err != nil {
		return engine.Dataset{}, err
	}
	var products []productRow
	if err := l.fetchAll(ctx, "products", &products); err != nil {
		return engine.Dataset{}, err
	}
	var transactions []transactionRow
	if err := l.fetchAll(ctx, "transactions", &transactions); err != nil {
		return engine.Dataset{}, err
	}

	dataset, err := convertRows(users, products, transactions)
	if err != nil {
		return engine.Dataset{}, err
	}

	common.LogInfo("Supabase 資料集載入完成",
		zap.Int("users", len(dataset.Users)),
		zap.Int("products", len(dataset.Products)),
		zap.Int("transactions", len(dataset.Transactions)),
	)
	return dataset, nil
}

// fetchAll 以 limit/offset 分頁抓完整張表
func (l *SupabaseLoader) fetchAll(ctx context.Context, table string, out any) error {
	var pages []json.RawMessage
	offset := 0
	for {
		resp, err := l.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"select": "*",
				"limit":  fmt.Sprintf("%d", l.pageSize),
				"offset": fmt.Sprintf("%d", offset),
			}).
			Get("/" + table)
		if err != nil {
			return fmt.Errorf("failed to fetch %s from supabase: %w", table, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("supabase returned %d for %s: %s", resp.StatusCode(), table, resp.String())
		}

		var page []json.RawMessage
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return fmt.Errorf("failed to parse supabase %s response: %w", table, err)
		}
		pages = append(pages, page...)
		if len(page) < l.pageSize {
			break
		}
		offset += l.pageSize
	}

	merged, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to merge supabase %s pages: %w", table, err)
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return fmt.Errorf("failed to decode supabase %s rows: %w", table, err)
	}
	return nil
}

func convertRows(users []userRow, products []productRow, transactions []transactionRow) (engine.Dataset, error) {
	out := engine.Dataset{
		Users:        make([]*engine.User, 0, len(users)),
		Products:     make([]*engine.Product, 0, len(products)),
		Transactions: make([]engine.Transaction, 0, len(transactions)),
	}

	for _, u := range users {
		out.Users = append(out.Users, &engine.User{
			ID:                  u.UserID,
			DietType:            u.DietType,
			Allergies:           u.Allergies,
			PrefersDiscount:     u.PrefersDiscount,
			PreferredCategories: u.PreferredCategories,
		})
	}

	for _, p := range products {
		packaging, err := parseSupabaseDate(p.PackagingDate)
		if err != nil {
			return engine.Dataset{}, common.NewDataValidationError("products", p.ProductID, "packaging_date", err.Error())
		}
		expiry, err := parseSupabaseDate(p.ExpiryDate)
		if err != nil {
			return engine.Dataset{}, common.NewDataValidationError("products", p.ProductID, "expiry_date", err.Error())
		}
		inventory := float64(defaultInventoryQuantity)
		if p.InventoryQuantity != nil {
			inventory = *p.InventoryQuantity
		}
		out.Products = append(out.Products, &engine.Product{
			ID:                     p.ProductID,
			Name:                   p.Name,
			Category:               p.Category,
			Brand:                  p.Brand,
			DietType:               p.DietType,
			Allergens:              p.Allergens,
			PriceMRP:               p.PriceMRP,
			CostPrice:              p.CostPrice,
			CurrentDiscountPercent: p.CurrentDiscountPercent,
			WeightGrams:            p.WeightGrams,
			ShelfLifeDays:          p.ShelfLifeDays,
			PackagingDate:          packaging,
			ExpiryDate:             expiry,
			InventoryQuantity:      inventory,
		})
	}

	for i, t := range transactions {
		purchase, err := parseSupabaseDate(t.PurchaseDate)
		if err != nil {
			return engine.Dataset{}, common.NewDataValidationError("transactions", fmt.Sprintf("%d", i+1), "purchase_date", err.Error())
		}
		out.Transactions = append(out.Transactions, engine.Transaction{
			UserID:              t.UserID,
			ProductID:           t.ProductID,
			PurchaseDate:        purchase,
			Quantity:            t.Quantity,
			DiscountPercent:     t.DiscountPercent,
			UserEngagedWithDeal: t.UserEngagedWithDeal,
		})
	}

	return out, nil
}

func parseSupabaseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("required date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", raw)
}
