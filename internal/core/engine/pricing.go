package engine

import (
	"math"
	"strings"
)

// 各分類的急迫度乘數，依易腐程度區分
var categoryUrgencyMultipliers = map[string]float64{
	"Dairy":     1.3,
	"Meat":      1.3,
	"Beverages": 1.1,
	"Snacks":    0.9,
	"Biscuits":  0.9,
}

// PricingEngine 動態定價引擎：綜合到期日、銷售速度、互動度、
// 呆滯風險與庫存壓力計算急迫度與建議折扣
type PricingEngine struct {
	thresholds *ThresholdCalculator
}

// NewPricingEngine 建立定價引擎
func NewPricingEngine(thresholds *ThresholdCalculator) *PricingEngine {
	return &PricingEngine{thresholds: thresholds}
}

// UrgencyScore 商品的動態急迫度，落在 [0,1]；已過期固定為 1
func (e *PricingEngine) UrgencyScore(p *Product) float64 {
	days := p.DaysUntilExpiry
	if days <= 0 {
		return 1.0
	}

	threshold := e.thresholds.GetThreshold(p.ID)

	// 門檻內以指數衰減建立基礎急迫度
	var base float64
	if days <= threshold {
		base = 1 - math.Exp(-2*float64(threshold-days)/float64(threshold))
	}

	velocityMult := 1.0
	switch {
	case p.SalesVelocity < 0.1:
		velocityMult = 1.5
	case p.SalesVelocity < 0.5:
		velocityMult = 1.2
	}

	// 已打折但互動度仍低，表示折扣無效
	discountMult := 1.0
	if p.CurrentDiscountPercent > 0 {
		if p.AvgUserEngagement < 0.3 {
			discountMult = 1.3
		}
	} else {
		discountMult = 1.1
	}

	deadStockMult := 1.0
	if p.IsDeadStockRisk {
		deadStockMult = 1.5
	}

	categoryMult := 1.0
	if m, ok := categoryUrgencyMultipliers[p.Category]; ok {
		categoryMult = m
	}

	// 庫存壓力：依目前速度算出清完庫存所需天數
	inventoryMult := 1.0
	if p.SalesVelocity > 0 {
		daysToClear := p.InventoryQuantity / p.SalesVelocity
		if daysToClear > float64(days) {
			inventoryMult = 1.2 + math.Min(0.3, (daysToClear-float64(days))/float64(days))
		}
	} else {
		inventoryMult = 1.3
	}

	final := base * velocityMult * discountMult * deadStockMult * categoryMult * inventoryMult
	return math.Min(final, 1.0)
}

// RecommendDiscount 計算建議折扣與決策理由
func (e *PricingEngine) RecommendDiscount(p *Product) PricingResult {
	urgency := e.UrgencyScore(p)

	var target float64
	switch {
	case urgency >= 0.8:
		target = 50
	case urgency >= 0.6:
		target = 40
	case urgency >= 0.4:
		target = 30
	case urgency >= 0.2:
		target = 20
	default:
		target = 10
	}

	// 高價品保守折扣，低價品可較積極
	priceAdj := 1.0
	switch {
	case p.PriceMRP > 400:
		priceAdj = 0.8
	case p.PriceMRP < 100:
		priceAdj = 1.2
	}

	velocityAdj := 1.0
	switch {
	case p.SalesVelocity == 0 && p.DaysUntilExpiry < 14:
		velocityAdj = 1.5
	case p.SalesVelocity < 0.5:
		velocityAdj = 1.2
	}

	recommended := target * priceAdj * velocityAdj

	// 折扣只升不降
	recommended = math.Max(recommended, p.CurrentDiscountPercent)

	maxDiscount := 50.0
	if urgency > 0.8 {
		maxDiscount = 70.0
	}
	recommended = math.Min(recommended, maxDiscount)

	// 取最接近的 5% 級距；現行折扣不是 5% 級距時，
	// 四捨五入可能往下越過它，所以要再補一次下限
	recommended = math.Round(recommended/5) * 5
	recommended = math.Max(recommended, p.CurrentDiscountPercent)

	return PricingResult{
		CurrentDiscount:     p.CurrentDiscountPercent,
		RecommendedDiscount: recommended,
		DiscountIncrease:    recommended - p.CurrentDiscountPercent,
		UrgencyScore:        urgency,
		Reasoning:           discountReasoning(p, urgency),
	}
}

// discountReasoning 組出人可讀的折扣理由
func discountReasoning(p *Product, urgency float64) string {
	var reasons []string

	if p.DaysUntilExpiry <= 7 {
		reasons = append(reasons, "Critical expiry window")
	} else if p.DaysUntilExpiry <= 14 {
		reasons = append(reasons, "Approaching expiry")
	}
	if p.SalesVelocity < 0.5 {
		reasons = append(reasons, "Low sales velocity")
	}
	if p.IsDeadStockRisk {
		reasons = append(reasons, "High dead stock risk")
	}
	if urgency > 0.7 {
		reasons = append(reasons, "High urgency score")
	}

	if len(reasons) == 0 {
		return "Standard pricing optimization"
	}
	return strings.Join(reasons, ", ")
}
