package engine

import (
	"math"
	"sync"
	"time"

	"waste-reduction-api/internal/pkg/common"

	"go.uber.org/zap"
)

// 找不到分類基準線時的後備門檻天數
const defaultBaseThreshold = 30

// ThresholdCalculator 動態門檻計算器
// 兩階段：先算分類基準線，再疊加商品層級的四個獨立乘數
// 分類基準線必須在任何商品門檻之前建立（順序不變量）
type ThresholdCalculator struct {
	products map[string]*Product
	now      time.Time

	categoryThresholds map[string]int

	// 商品門檻採 lazy + memoized：首次存取時計算並凍結
	mu                sync.Mutex
	productThresholds map[string]*ThresholdResult
}

// NewThresholdCalculator 創建門檻計算器並立即建立分類基準線
func NewThresholdCalculator(products []*Product, transactions []Transaction, now time.Time) *ThresholdCalculator {
	c := &ThresholdCalculator{
		products:           make(map[string]*Product, len(products)),
		now:                now,
		productThresholds:  make(map[string]*ThresholdResult),
		categoryThresholds: make(map[string]int),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	c.calculateCategoryBaselines(products, transactions)
	return c
}

// calculateCategoryBaselines 計算每個分類的基準門檻：
// 平均保存期限 × 0.2，再依分類日均銷量縮放
func (c *ThresholdCalculator) calculateCategoryBaselines(products []*Product, transactions []Transaction) {
	type categoryAgg struct {
		shelfLifeSum float64
		count        int
		quantity     float64
		firstSale    time.Time
		lastSale     time.Time
		hasSales     bool
	}

	categories := make(map[string]*categoryAgg)
	productCategory := make(map[string]string, len(products))
	for _, p := range products {
		agg, ok := categories[p.Category]
		if !ok {
			agg = &categoryAgg{}
			categories[p.Category] = agg
		}
		agg.shelfLifeSum += float64(p.ShelfLifeDays)
		agg.count++
		productCategory[p.ID] = p.Category
	}

	for _, t := range transactions {
		category, ok := productCategory[t.ProductID]
		if !ok {
			continue
		}
		agg := categories[category]
		if !agg.hasSales {
			agg.firstSale = t.PurchaseDate
			agg.lastSale = t.PurchaseDate
			agg.hasSales = true
		}
		agg.quantity += t.Quantity
		if t.PurchaseDate.Before(agg.firstSale) {
			agg.firstSale = t.PurchaseDate
		}
		if t.PurchaseDate.After(agg.lastSale) {
			agg.lastSale = t.PurchaseDate
		}
	}

	for category, agg := range categories {
		avgShelfLife := agg.shelfLifeSum / float64(agg.count)
		baseThreshold := avgShelfLife * 0.2

		avgDailySales := 0.0
		if agg.hasSales {
			daysActive := daysBetween(agg.firstSale, agg.lastSale) + 1
			avgDailySales = agg.quantity / float64(daysActive)
		}

		var velocityFactor float64
		switch {
		case avgDailySales > 10:
			velocityFactor = 0.7 // 高流速分類可以更晚觸發
		case avgDailySales > 5:
			velocityFactor = 1.0
		default:
			velocityFactor = 1.3
		}

		c.categoryThresholds[category] = int(baseThreshold * velocityFactor)
	}

	common.LogDebug("分類基準門檻已建立",
		zap.Int("categories", len(c.categoryThresholds)),
	)
}

// CategoryThreshold 取得分類基準門檻（找不到時回傳後備值）
func (c *ThresholdCalculator) CategoryThreshold(category string) int {
	if t, ok := c.categoryThresholds[category]; ok {
		return t
	}
	return defaultBaseThreshold
}

// GetThreshold 取得商品動態門檻，首次存取時才計算並快取
func (c *ThresholdCalculator) GetThreshold(productID string) int {
	r := c.GetThresholdResult(productID)
	if r == nil {
		return defaultBaseThreshold
	}
	return r.DynamicThreshold
}

// GetThresholdResult 取得門檻與因子明細；未知商品回傳 nil（LookupMiss 不報錯）
func (c *ThresholdCalculator) GetThresholdResult(productID string) *ThresholdResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.productThresholds[productID]; ok {
		return cached
	}

	p, ok := c.products[productID]
	if !ok {
		return nil
	}

	result := c.calculateProductThreshold(p)
	c.productThresholds[productID] = result
	return result
}

// CalculateAll 為整個目錄預先計算門檻（重建時呼叫，讓併發讀取期間不再有寫入）
func (c *ThresholdCalculator) CalculateAll() {
	for id := range c.products {
		c.GetThresholdResult(id)
	}
}

// calculateProductThreshold 由分類基準線套用四個獨立乘數得到商品門檻
func (c *ThresholdCalculator) calculateProductThreshold(p *Product) *ThresholdResult {
	baseThreshold := c.CategoryThreshold(p.Category)

	// 流速乘數：以每日成交筆數（非銷量）衡量；無銷售紀錄採最保守的 2.0
	var velocityMultiplier float64
	if p.NumberOfSales > 0 && p.DaysOnMarket > 0 {
		perDay := float64(p.NumberOfSales) / float64(p.DaysOnMarket)
		switch {
		case perDay > 2:
			velocityMultiplier = 0.5
		case perDay > 1:
			velocityMultiplier = 0.7
		case perDay > 0.5:
			velocityMultiplier = 1.0
		default:
			velocityMultiplier = 1.5
		}
	} else {
		velocityMultiplier = 2.0
	}

	// 價格乘數：高價品容忍較慢的周轉
	var priceMultiplier float64
	switch {
	case p.PriceMRP > 300:
		priceMultiplier = 1.2
	case p.PriceMRP < 100:
		priceMultiplier = 0.8
	default:
		priceMultiplier = 1.0
	}

	// 折扣乘數：已經在促銷的商品不需要更早觸發
	var discountMultiplier float64
	switch {
	case p.CurrentDiscountPercent > 30:
		discountMultiplier = 0.7
	case p.CurrentDiscountPercent > 0:
		discountMultiplier = 0.9
	default:
		discountMultiplier = 1.0
	}

	seasonalMultiplier := seasonalMultiplierFor(p.Category, c.now.Month())

	dynamic := float64(baseThreshold) * velocityMultiplier * priceMultiplier * discountMultiplier * seasonalMultiplier

	minThreshold := math.Max(3, float64(p.ShelfLifeDays)*0.05)
	maxThreshold := math.Min(60, float64(p.ShelfLifeDays)*0.4)
	final := int(clip(dynamic, minThreshold, maxThreshold))

	return &ThresholdResult{
		ProductID:          p.ID,
		Category:           p.Category,
		BaseThreshold:      baseThreshold,
		DynamicThreshold:   final,
		VelocityMultiplier: velocityMultiplier,
		PriceMultiplier:    priceMultiplier,
		DiscountMultiplier: discountMultiplier,
		SeasonalMultiplier: seasonalMultiplier,
	}
}

// seasonalMultiplierFor 分類季節窗：飲料夏季、零食年末年初需求較高
func seasonalMultiplierFor(category string, month time.Month) float64 {
	switch category {
	case "Beverages":
		if month >= time.June && month <= time.August {
			return 0.8
		}
	case "Snacks":
		if month == time.December || month == time.January {
			return 0.9
		}
	}
	return 1.0
}

// clip 先套下限再套上限；保質期極短時下限可能高於上限，以上限為準
func clip(v, min, max float64) float64 {
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}
