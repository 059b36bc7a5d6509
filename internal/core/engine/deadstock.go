package engine

import (
	"math"
)

// DeadStockConfig 死貨判定參數
type DeadStockConfig struct {
	// ClearanceRatio 到期前至少需售出的庫存比例
	ClearanceRatio float64
	// ClearanceFloorUnits 絕對銷量下限；0 表示停用
	ClearanceFloorUnits float64
}

// IsDeadStockRisk 判斷商品是否有死貨風險
// 純函數：批次分類與單品定價查詢都會呼叫，不可有副作用
// 已過期一律視為風險；門檻內的商品看零流速或售罄預測
func IsDeadStockRisk(p *Product, threshold int, cfg DeadStockConfig) bool {
	if p.DaysUntilExpiry <= 0 {
		return true
	}
	if p.DaysUntilExpiry > threshold {
		return false
	}
	if p.SalesVelocity == 0 {
		return true
	}

	projectedSales := p.SalesVelocity * float64(p.DaysUntilExpiry)
	if projectedSales < p.InventoryQuantity*cfg.ClearanceRatio {
		return true
	}
	if cfg.ClearanceFloorUnits > 0 && projectedSales < cfg.ClearanceFloorUnits {
		return true
	}
	return false
}

// RiskScore 加權風險分數：到期壓力 0.5、流速 0.3、停滯 0.2
func RiskScore(p *Product, threshold int) float64 {
	if threshold <= 0 {
		threshold = 1
	}
	expiryScore := math.Max(0, math.Min(0.5, float64(threshold-p.DaysUntilExpiry)/float64(threshold)*0.5))
	velocityScore := 0.3 * (1 - math.Min(1, p.SalesVelocity/5))
	stagnationScore := 0.2 * math.Min(1, float64(p.DaysSinceLastSale)/30)
	return expiryScore + velocityScore + stagnationScore
}
