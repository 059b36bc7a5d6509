package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"waste-reduction-api/internal/core/engine"
	"waste-reduction-api/internal/pkg/common"

	"go.uber.org/zap"
)

// defaultInventoryQuantity 資料缺少庫存欄位時的預設值
const defaultInventoryQuantity = 200

// 支援的日期格式，依序嘗試
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Loader 快照資料來源介面；CSV 與 Supabase 各有一個實作
type Loader interface {
	Load(ctx context.Context) (engine.Dataset, error)
}

// CSVLoader 從三個 CSV 檔載入完整資料集
type CSVLoader struct {
	UsersPath        string
	ProductsPath     string
	TransactionsPath string
}

// NewCSVLoader 建立 CSV 載入器
func NewCSVLoader(usersPath, productsPath, transactionsPath string) *CSVLoader {
	return &CSVLoader{
		UsersPath:        usersPath,
		ProductsPath:     productsPath,
		TransactionsPath: transactionsPath,
	}
}

// Load 讀取並驗證三份 CSV；任一列驗證失敗即中止，不做部分載入
func (l *CSVLoader) Load(ctx context.Context) (engine.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return engine.Dataset{}, err
	}
	users, err := loadUsersCSV(l.UsersPath)
	if err != nil {
		return engine.Dataset{}, err
	}
	products, err := loadProductsCSV(l.ProductsPath)
	if err != nil {
		return engine.Dataset{}, err
	}
	transactions, err := loadTransactionsCSV(l.TransactionsPath)
	if err != nil {
		return engine.Dataset{}, err
	}

	common.LogInfo("CSV 資料集載入完成",
		zap.Int("users", len(users)),
		zap.Int("products", len(products)),
		zap.Int("transactions", len(transactions)),
	)
	return engine.Dataset{Users: users, Products: products, Transactions: transactions}, nil
}

// csvRow 以欄名取值的單列視圖
type csvRow struct {
	table  string
	rowID  string
	index  map[string]int
	record []string
}

func (r *csvRow) str(field string) string {
	idx, ok := r.index[field]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r *csvRow) requiredStr(field string) (string, error) {
	v := r.str(field)
	if v == "" {
		return "", common.NewDataValidationError(r.table, r.rowID, field, "required field is empty")
	}
	return v, nil
}

func (r *csvRow) float(field string, fallback float64) (float64, error) {
	raw := r.str(field)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, common.NewDataValidationError(r.table, r.rowID, field,
			fmt.Sprintf("not a number: %q", raw))
	}
	return v, nil
}

func (r *csvRow) intVal(field string, fallback int) (int, error) {
	v, err := r.float(field, float64(fallback))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (r *csvRow) boolVal(field string) bool {
	switch strings.ToLower(r.str(field)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func (r *csvRow) date(field string) (time.Time, error) {
	raw := r.str(field)
	if raw == "" {
		return time.Time{}, common.NewDataValidationError(r.table, r.rowID, field, "required date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, common.NewDataValidationError(r.table, r.rowID, field,
		fmt.Sprintf("unparseable date: %q", raw))
}

func (r *csvRow) stringList(field string) ([]string, error) {
	list, err := common.ParseStringList(r.str(field))
	if err != nil {
		return nil, common.NewDataValidationError(r.table, r.rowID, field, err.Error())
	}
	return list, nil
}

// forEachRow 逐列讀取 CSV 並以欄名索引回呼
func forEachRow(path, table, idField string, fn func(row *csvRow) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s csv: %w", table, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read %s csv header: %w", table, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := index[idField]; !ok {
		return common.NewDataValidationError(table, "header", idField, "missing identifier column")
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s csv line %d: %w", table, line+1, err)
		}
		line++

		row := &csvRow{table: table, index: index, record: record}
		row.rowID = row.str(idField)
		if row.rowID == "" {
			row.rowID = strconv.Itoa(line)
			return common.NewDataValidationError(table, row.rowID, idField, "empty identifier")
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

func loadUsersCSV(path string) ([]*engine.User, error) {
	var users []*engine.User
	err := forEachRow(path, "users", "user_id", func(row *csvRow) error {
		allergies, err := row.stringList("allergies")
		if err != nil {
			return err
		}
		categories, err := row.stringList("preferred_categories")
		if err != nil {
			return err
		}
		users = append(users, &engine.User{
			ID:                  row.rowID,
			DietType:            row.str("diet_type"),
			Allergies:           allergies,
			PrefersDiscount:     row.boolVal("prefers_discount"),
			PreferredCategories: categories,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func loadProductsCSV(path string) ([]*engine.Product, error) {
	var products []*engine.Product
	err := forEachRow(path, "products", "product_id", func(row *csvRow) error {
		name, err := row.requiredStr("name")
		if err != nil {
			return err
		}
		category, err := row.requiredStr("category")
		if err != nil {
			return err
		}
		allergens, err := row.stringList("allergens")
		if err != nil {
			return err
		}
		packagingDate, err := row.date("packaging_date")
		if err != nil {
			return err
		}
		expiryDate, err := row.date("expiry_date")
		if err != nil {
			return err
		}
		price, err := row.float("price_mrp", 0)
		if err != nil {
			return err
		}
		cost, err := row.float("cost_price", 0)
		if err != nil {
			return err
		}
		discount, err := row.float("current_discount_percent", 0)
		if err != nil {
			return err
		}
		weight, err := row.float("weight_grams", 0)
		if err != nil {
			return err
		}
		shelfLife, err := row.intVal("shelf_life_days", 0)
		if err != nil {
			return err
		}
		inventory, err := row.float("inventory_quantity", defaultInventoryQuantity)
		if err != nil {
			return err
		}

		products = append(products, &engine.Product{
			ID:                     row.rowID,
			Name:                   name,
			Category:               category,
			Brand:                  row.str("brand"),
			DietType:               row.str("diet_type"),
			Allergens:              allergens,
			PriceMRP:               price,
			CostPrice:              cost,
			CurrentDiscountPercent: discount,
			WeightGrams:            weight,
			ShelfLifeDays:          shelfLife,
			PackagingDate:          packagingDate,
			ExpiryDate:             expiryDate,
			InventoryQuantity:      inventory,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func loadTransactionsCSV(path string) ([]engine.Transaction, error) {
	var transactions []engine.Transaction
	err := forEachRow(path, "transactions", "user_id", func(row *csvRow) error {
		productID, err := row.requiredStr("product_id")
		if err != nil {
			return err
		}
		purchaseDate, err := row.date("purchase_date")
		if err != nil {
			return err
		}
		quantity, err := row.float("quantity", 0)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			return common.NewDataValidationError("transactions", row.rowID, "quantity", "must be positive")
		}
		discount, err := row.float("discount_percent", 0)
		if err != nil {
			return err
		}
		engaged, err := row.float("user_engaged_with_deal", 0)
		if err != nil {
			return err
		}

		transactions = append(transactions, engine.Transaction{
			UserID:              row.rowID,
			ProductID:           productID,
			PurchaseDate:        purchaseDate,
			Quantity:            quantity,
			DiscountPercent:     discount,
			UserEngagedWithDeal: engaged,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
