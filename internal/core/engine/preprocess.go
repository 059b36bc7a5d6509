package engine

import (
	"time"

	"waste-reduction-api/internal/pkg/common"

	"go.uber.org/zap"
)

// salesAggregate 單一商品的交易彙總
type salesAggregate struct {
	totalQuantity float64
	numberOfSales int
	firstSale     time.Time
	lastSale      time.Time
	discountSum   float64
	engagementSum float64
}

// preprocessProducts 計算每個商品的時間／銷售速度特徵，並切出有效工作集
// 回傳 active（未過期）與 all（含過期，供歷史查詢）兩份視圖
// 日期缺失或無法解析的列在 loader 階段就會被擋下，這裡只需檢查衍生計算的前提
func preprocessProducts(products []*Product, transactions []Transaction, now time.Time) (active []*Product, all []*Product, err error) {
	aggregates := aggregateSales(transactions)

	all = make([]*Product, 0, len(products))
	active = make([]*Product, 0, len(products))

	for _, p := range products {
		if p.ExpiryDate.IsZero() || p.PackagingDate.IsZero() {
			return nil, nil, common.NewDataValidationError("products", p.ID, "expiry_date/packaging_date",
				"product has missing expiry or packaging date")
		}
		if p.ExpiryDate.Before(p.PackagingDate) {
			return nil, nil, common.NewDataValidationError("products", p.ID, "expiry_date",
				"expiry date precedes packaging date")
		}

		p.DaysUntilExpiry = daysBetween(now, p.ExpiryDate)
		p.TotalShelfLife = daysBetween(p.PackagingDate, p.ExpiryDate)
		if p.TotalShelfLife > 0 {
			p.ShelfLifeRemainingPct = float64(p.DaysUntilExpiry) / float64(p.TotalShelfLife) * 100
		}

		applySalesAggregate(p, aggregates[p.ID], now)

		all = append(all, p)
		if !p.Expired() {
			active = append(active, p)
		}
	}

	common.LogDebug("商品預處理完成",
		zap.Int("total", len(all)),
		zap.Int("active", len(active)),
		zap.Int("expired", len(all)-len(active)),
	)

	return active, all, nil
}

// aggregateSales 依商品彙總交易
func aggregateSales(transactions []Transaction) map[string]*salesAggregate {
	aggregates := make(map[string]*salesAggregate)
	for _, t := range transactions {
		agg, ok := aggregates[t.ProductID]
		if !ok {
			agg = &salesAggregate{firstSale: t.PurchaseDate, lastSale: t.PurchaseDate}
			aggregates[t.ProductID] = agg
		}
		agg.totalQuantity += t.Quantity
		agg.numberOfSales++
		agg.discountSum += t.DiscountPercent
		agg.engagementSum += t.UserEngagedWithDeal
		if t.PurchaseDate.Before(agg.firstSale) {
			agg.firstSale = t.PurchaseDate
		}
		if t.PurchaseDate.After(agg.lastSale) {
			agg.lastSale = t.PurchaseDate
		}
	}
	return aggregates
}

// applySalesAggregate 把交易彙總寫回商品衍生欄位
// 零交易商品：速度 0、停滯天數使用哨兵值（保守處理，不是錯誤）
func applySalesAggregate(p *Product, agg *salesAggregate, now time.Time) {
	if agg == nil || agg.numberOfSales == 0 {
		p.TotalQuantitySold = 0
		p.NumberOfSales = 0
		p.SalesVelocity = 0
		p.DaysSinceLastSale = NoSaleSentinelDays
		p.DaysOnMarket = 0
		return
	}

	p.TotalQuantitySold = agg.totalQuantity
	p.NumberOfSales = agg.numberOfSales
	p.FirstSaleDate = agg.firstSale
	p.LastSaleDate = agg.lastSale
	p.AvgDiscountGiven = agg.discountSum / float64(agg.numberOfSales)
	p.AvgUserEngagement = agg.engagementSum / float64(agg.numberOfSales)
	p.DaysSinceLastSale = daysBetween(agg.lastSale, now)
	if p.DaysSinceLastSale < 0 {
		p.DaysSinceLastSale = 0
	}

	p.DaysOnMarket = daysBetween(agg.firstSale, agg.lastSale) + 1
	p.SalesVelocity = agg.totalQuantity / float64(p.DaysOnMarket)
}

// daysBetween 兩個時間點之間的整數天數（截斷）
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
