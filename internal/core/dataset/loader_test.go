package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-reduction-api/internal/pkg/common"
)

func TestMain(m *testing.M) {
	if err := common.InitLogger("error"); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeFixtureCSVs(t *testing.T, dir string) *CSVLoader {
	t.Helper()
	users := writeCSV(t, dir, "users.csv",
		"user_id,diet_type,allergies,prefers_discount\n"+
			"U1,vegan,\"['Nuts', 'Dairy']\",true\n"+
			"U2,non_vegetarian,,false\n")
	products := writeCSV(t, dir, "products.csv",
		"product_id,name,category,diet_type,shelf_life_days,packaging_date,expiry_date,weight_grams,price_mrp,current_discount_percent\n"+
			"P1,全脂鮮乳,Dairy,vegetarian,14,2025-03-01,2025-03-15,1000,85,0\n"+
			"P2,板豆腐,Snacks,vegan,30,2025-03-05,2025-04-04,300,45,10\n")
	transactions := writeCSV(t, dir, "transactions.csv",
		"user_id,product_id,purchase_date,quantity,discount_percent\n"+
			"U1,P2,2025-03-06,2,0\n"+
			"U2,P1,2025-03-03,1,5\n")
	return NewCSVLoader(users, products, transactions)
}

func TestCSVLoaderLoad(t *testing.T) {
	loader := writeFixtureCSVs(t, t.TempDir())

	data, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, data.Users, 2)
	assert.Equal(t, "U1", data.Users[0].ID)
	assert.Equal(t, []string{"nuts", "dairy"}, data.Users[0].Allergies)
	assert.True(t, data.Users[0].PrefersDiscount)
	assert.Empty(t, data.Users[1].Allergies)

	require.Len(t, data.Products, 2)
	milk := data.Products[0]
	assert.Equal(t, "全脂鮮乳", milk.Name)
	assert.Equal(t, "Dairy", milk.Category)
	assert.Equal(t, 85.0, milk.PriceMRP)
	assert.Equal(t, 14, milk.ShelfLifeDays)
	// 缺少庫存欄位時採預設值
	assert.Equal(t, float64(defaultInventoryQuantity), milk.InventoryQuantity)

	require.Len(t, data.Transactions, 2)
	assert.Equal(t, "U1", data.Transactions[0].UserID)
	assert.Equal(t, "P2", data.Transactions[0].ProductID)
	assert.Equal(t, 2.0, data.Transactions[0].Quantity)
}

func TestCSVLoaderRejectsBadQuantity(t *testing.T) {
	dir := t.TempDir()
	loader := writeFixtureCSVs(t, dir)
	loader.TransactionsPath = writeCSV(t, dir, "bad_transactions.csv",
		"user_id,product_id,purchase_date,quantity\n"+
			"U1,P1,2025-03-06,0\n")

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsDataValidationError(err))
}

func TestCSVLoaderRejectsBadDate(t *testing.T) {
	dir := t.TempDir()
	loader := writeFixtureCSVs(t, dir)
	loader.ProductsPath = writeCSV(t, dir, "bad_products.csv",
		"product_id,name,category,packaging_date,expiry_date\n"+
			"P1,鮮乳,Dairy,not-a-date,2025-03-15\n")

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsDataValidationError(err))
}

func TestCSVLoaderMissingIdentifierColumn(t *testing.T) {
	dir := t.TempDir()
	loader := writeFixtureCSVs(t, dir)
	loader.UsersPath = writeCSV(t, dir, "bad_users.csv",
		"name,diet_type\nAmy,vegan\n")

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsDataValidationError(err))
}

func TestCSVLoaderCancelledContext(t *testing.T) {
	loader := writeFixtureCSVs(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
