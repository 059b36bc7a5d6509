package engine

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 測試用的固定時間點，避開季節窗（三月）
var testNow = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

func makeProduct(id, category string, shelfLife, daysUntilExpiry int) *Product {
	return &Product{
		ID:                id,
		Name:              "product " + id,
		Category:          category,
		DietType:          "vegetarian",
		PriceMRP:          150,
		WeightGrams:       500,
		ShelfLifeDays:     shelfLife,
		PackagingDate:     testNow.AddDate(0, 0, daysUntilExpiry-shelfLife),
		ExpiryDate:        testNow.AddDate(0, 0, daysUntilExpiry),
		InventoryQuantity: 100,
		DaysUntilExpiry:   daysUntilExpiry,
		DaysSinceLastSale: NoSaleSentinelDays,
	}
}

func TestCategoryBaselineWithoutSales(t *testing.T) {
	products := []*Product{
		makeProduct("P1", "Cheese", 100, 50),
		makeProduct("P2", "Cheese", 100, 40),
	}
	calc := NewThresholdCalculator(products, nil, testNow)

	// 平均保存期限 100 × 0.2 = 20，無銷售 → 低流速係數 1.3
	assert.Equal(t, 26, calc.CategoryThreshold("Cheese"))
}

func TestCategoryBaselineUnknownCategory(t *testing.T) {
	calc := NewThresholdCalculator(nil, nil, testNow)
	assert.Equal(t, defaultBaseThreshold, calc.CategoryThreshold("Nonexistent"))
}

func TestCategoryBaselineHighVelocity(t *testing.T) {
	products := []*Product{makeProduct("P1", "Dairy", 50, 20)}
	// 十天賣 150 件 → 日均 15 > 10 → 係數 0.7
	var transactions []Transaction
	for day := 0; day < 10; day++ {
		transactions = append(transactions, Transaction{
			UserID:       "U1",
			ProductID:    "P1",
			PurchaseDate: testNow.AddDate(0, 0, -10+day),
			Quantity:     15,
		})
	}
	calc := NewThresholdCalculator(products, transactions, testNow)

	// 50 × 0.2 × 0.7 = 7
	assert.Equal(t, 7, calc.CategoryThreshold("Dairy"))
}

func TestProductThresholdNoSalesUsesConservativeMultiplier(t *testing.T) {
	p := makeProduct("P1", "Cheese", 100, 50)
	calc := NewThresholdCalculator([]*Product{p}, nil, testNow)

	result := calc.GetThresholdResult("P1")
	require.NotNil(t, result)
	assert.Equal(t, 2.0, result.VelocityMultiplier)
}

func TestProductThresholdWithinBounds(t *testing.T) {
	shelfLives := []int{14, 30, 60, 100, 140}
	prices := []float64{50, 100, 150, 300, 450}
	discounts := []float64{0, 10, 40}

	var products []*Product
	i := 0
	for _, shelf := range shelfLives {
		for _, price := range prices {
			for _, discount := range discounts {
				p := makeProduct(fmt.Sprintf("P%d", i), "Cheese", shelf, shelf/2)
				p.PriceMRP = price
				p.CurrentDiscountPercent = discount
				products = append(products, p)
				i++
			}
		}
	}
	calc := NewThresholdCalculator(products, nil, testNow)

	for _, p := range products {
		threshold := calc.GetThreshold(p.ID)
		lower := int(math.Max(3, float64(p.ShelfLifeDays)*0.05))
		upper := int(math.Min(60, float64(p.ShelfLifeDays)*0.4))
		assert.GreaterOrEqual(t, threshold, lower, "product %s shelf %d", p.ID, p.ShelfLifeDays)
		assert.LessOrEqual(t, threshold, upper, "product %s shelf %d", p.ID, p.ShelfLifeDays)
	}
}

func TestProductThresholdShortShelfLifeUsesUpperBound(t *testing.T) {
	// 保質期 7 天時下限 3 高於上限 2.8，夾擠後應以上限為準
	p := makeProduct("P1", "Cheese", 7, 3)
	calc := NewThresholdCalculator([]*Product{p}, nil, testNow)

	assert.Equal(t, 2, calc.GetThreshold("P1"))
}

func TestProductThresholdMemoized(t *testing.T) {
	p := makeProduct("P1", "Cheese", 100, 50)
	calc := NewThresholdCalculator([]*Product{p}, nil, testNow)

	first := calc.GetThresholdResult("P1")
	// 改動商品欄位後再查，應拿到快取的舊結果
	p.CurrentDiscountPercent = 40
	second := calc.GetThresholdResult("P1")
	assert.Same(t, first, second)
}

func TestProductThresholdUnknownProduct(t *testing.T) {
	calc := NewThresholdCalculator(nil, nil, testNow)
	assert.Nil(t, calc.GetThresholdResult("missing"))
	assert.Equal(t, defaultBaseThreshold, calc.GetThreshold("missing"))
}

func TestSeasonalMultipliers(t *testing.T) {
	assert.Equal(t, 0.8, seasonalMultiplierFor("Beverages", time.July))
	assert.Equal(t, 1.0, seasonalMultiplierFor("Beverages", time.March))
	assert.Equal(t, 0.9, seasonalMultiplierFor("Snacks", time.December))
	assert.Equal(t, 0.9, seasonalMultiplierFor("Snacks", time.January))
	assert.Equal(t, 1.0, seasonalMultiplierFor("Snacks", time.June))
	assert.Equal(t, 1.0, seasonalMultiplierFor("Cheese", time.July))
}
