package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPricingEngine(products ...*Product) *PricingEngine {
	calc := NewThresholdCalculator(products, nil, testNow)
	return NewPricingEngine(calc)
}

func TestUrgencyExpiredProductIsMaximal(t *testing.T) {
	p := makeProduct("P1", "Cheese", 30, -1)
	e := newPricingEngine(p)
	assert.Equal(t, 1.0, e.UrgencyScore(p))
}

func TestUrgencyAlwaysWithinUnitInterval(t *testing.T) {
	velocities := []float64{0, 0.05, 0.3, 1, 5}
	days := []int{-3, 0, 1, 5, 20, 50}
	discounts := []float64{0, 15, 45}

	var products []*Product
	id := 0
	for _, v := range velocities {
		for _, d := range days {
			for _, disc := range discounts {
				p := makeProduct(string(rune('A'+id%26))+"x", "Dairy", 60, d)
				p.SalesVelocity = v
				p.CurrentDiscountPercent = disc
				p.IsDeadStockRisk = v == 0
				products = append(products, p)
				id++
			}
		}
	}
	e := newPricingEngine(products...)

	for _, p := range products {
		score := e.UrgencyScore(p)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestUrgencyZeroOutsideThresholdWindow(t *testing.T) {
	p := makeProduct("P1", "Cheese", 100, 90)
	p.SalesVelocity = 2
	p.DaysSinceLastSale = 1
	e := newPricingEngine(p)

	// 距離到期遠超過門檻，基礎急迫度為零，所有乘數都救不回來
	threshold := NewThresholdCalculator([]*Product{p}, nil, testNow).GetThreshold("P1")
	require.Greater(t, p.DaysUntilExpiry, threshold)
	assert.Equal(t, 0.0, e.UrgencyScore(p))
}

func TestDiscountIsMultipleOfFive(t *testing.T) {
	cases := []*Product{
		makeProduct("P1", "Cheese", 30, 2),
		makeProduct("P2", "Dairy", 60, 10),
		makeProduct("P3", "Snacks", 90, 40),
	}
	cases[0].SalesVelocity = 0
	cases[1].SalesVelocity = 0.3
	cases[2].SalesVelocity = 2

	e := newPricingEngine(cases...)
	for _, p := range cases {
		result := e.RecommendDiscount(p)
		assert.Equal(t, 0.0, math.Mod(result.RecommendedDiscount, 5),
			"discount %v for %s", result.RecommendedDiscount, p.ID)
	}
}

func TestDiscountNeverDecreases(t *testing.T) {
	p := makeProduct("P1", "Snacks", 120, 100)
	p.SalesVelocity = 3
	p.CurrentDiscountPercent = 40
	e := newPricingEngine(p)

	result := e.RecommendDiscount(p)
	assert.GreaterOrEqual(t, result.RecommendedDiscount, 40.0)
	assert.GreaterOrEqual(t, result.DiscountIncrease, 0.0)
}

func TestDiscountKeepsFractionalCurrentDiscount(t *testing.T) {
	// 現行折扣不是 5% 級距時，四捨五入不得把建議折扣壓到現行折扣以下
	p := makeProduct("P1", "Cheese", 100, 45)
	p.SalesVelocity = 1
	p.CurrentDiscountPercent = 47.4
	e := newPricingEngine(p)

	result := e.RecommendDiscount(p)
	assert.GreaterOrEqual(t, result.RecommendedDiscount, 47.4)
	assert.GreaterOrEqual(t, result.DiscountIncrease, 0.0)
}

func TestDiscountCapForExpiredStagnantProduct(t *testing.T) {
	p := makeProduct("P1", "Cheese", 30, -1)
	p.SalesVelocity = 0
	e := newPricingEngine(p)

	// 急迫度 1.0、零流速、即將到期 → 觸頂 70
	result := e.RecommendDiscount(p)
	assert.Equal(t, 70.0, result.RecommendedDiscount)
	assert.Equal(t, 1.0, result.UrgencyScore)
}

func TestDiscountCapAtFiftyForModerateUrgency(t *testing.T) {
	p := makeProduct("P1", "Cheese", 60, 3)
	p.SalesVelocity = 0.4
	p.PriceMRP = 80
	e := newPricingEngine(p)

	result := e.RecommendDiscount(p)
	if result.UrgencyScore <= 0.8 {
		assert.LessOrEqual(t, result.RecommendedDiscount, 50.0)
	} else {
		assert.LessOrEqual(t, result.RecommendedDiscount, 70.0)
	}
}

func TestPriceBoundaryUsesNeutralAdjustment(t *testing.T) {
	// 價格恰為 100 不屬於低價段，走中性折扣係數
	low := makeProduct("P1", "Cheese", 60, 5)
	low.PriceMRP = 99
	boundary := makeProduct("P2", "Cheese", 60, 5)
	boundary.PriceMRP = 100
	low.SalesVelocity = 1
	boundary.SalesVelocity = 1

	e := newPricingEngine(low, boundary)
	lowResult := e.RecommendDiscount(low)
	boundaryResult := e.RecommendDiscount(boundary)

	assert.GreaterOrEqual(t, lowResult.RecommendedDiscount, boundaryResult.RecommendedDiscount)
}

func TestDiscountReasoning(t *testing.T) {
	critical := makeProduct("P1", "Cheese", 30, 3)
	critical.SalesVelocity = 0.1
	critical.IsDeadStockRisk = true
	e := newPricingEngine(critical)

	result := e.RecommendDiscount(critical)
	assert.Contains(t, result.Reasoning, "Critical expiry window")
	assert.Contains(t, result.Reasoning, "Low sales velocity")
	assert.Contains(t, result.Reasoning, "High dead stock risk")

	healthy := makeProduct("P2", "Snacks", 120, 100)
	healthy.SalesVelocity = 3
	healthy.DaysSinceLastSale = 1
	e2 := newPricingEngine(healthy)
	assert.Equal(t, "Standard pricing optimization", e2.RecommendDiscount(healthy).Reasoning)
}
