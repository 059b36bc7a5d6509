package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-reduction-api/internal/pkg/common"
)

func testDataset() Dataset {
	milk := freshProduct("P-MILK", 28, 2)
	milk.Name = "全脂鮮乳"

	tofu := freshProduct("P-TOFU", 5, 10)
	tofu.Name = "板豆腐"
	tofu.Category = "Snacks"
	tofu.DietType = "vegan"

	chicken := freshProduct("P-CHICK", 3, 8)
	chicken.Name = "雞胸肉"
	chicken.Category = "Meat"
	chicken.DietType = "non_vegetarian"

	juice := freshProduct("P-JUICE", 10, 20)
	juice.Name = "柳橙汁"
	juice.Category = "Beverages"

	granola := freshProduct("P-BAR", 20, 15)
	granola.Name = "堅果燕麥棒"
	granola.Category = "Snacks"
	granola.DietType = "vegan"
	granola.Allergens = []string{"nuts"}

	expired := freshProduct("P-OLD", 40, -3)
	expired.Name = "過期優格"

	return Dataset{
		Users: []*User{
			{ID: "U-VEGAN", DietType: "vegan", Allergies: []string{"nuts"}},
			{ID: "U-OMNI", DietType: "non_vegetarian"},
			{ID: "U-NEW", DietType: "non_vegetarian"},
		},
		Products: []*Product{milk, tofu, chicken, juice, granola, expired},
		Transactions: []Transaction{
			purchase("U-VEGAN", "P-TOFU", 2, 12),
			purchase("U-VEGAN", "P-TOFU", 1, 6),
			purchase("U-OMNI", "P-CHICK", 3, 10),
			purchase("U-OMNI", "P-JUICE", 2, 7),
			purchase("U-OMNI", "P-TOFU", 1, 4),
		},
	}
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys := NewSystem(DefaultParams())
	sys.now = func() time.Time { return testNow }
	return sys
}

func rebuiltSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	sys := newTestSystem(t)
	require.NoError(t, sys.Rebuild(context.Background(), testDataset()))
	snap, err := sys.Snapshot()
	require.NoError(t, err)
	return snap
}

func TestSystemNotReadyBeforeRebuild(t *testing.T) {
	sys := newTestSystem(t)

	assert.False(t, sys.Ready())
	_, err := sys.Snapshot()
	assert.ErrorIs(t, err, common.ErrModelNotReady)
}

func TestSystemRebuildBuildsSnapshot(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.Rebuild(context.Background(), testDataset()))

	assert.True(t, sys.Ready())
	snap, err := sys.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 3, snap.UserCount())
	// 過期商品不在工作集合內，但完整目錄仍認得它：
	// 內容推薦對已過期商品要走退回查詢而非 404
	assert.Equal(t, 5, snap.ProductCount())
	assert.True(t, snap.KnowsProduct("P-OLD"))
	old, ok := snap.Product("P-OLD")
	require.True(t, ok)
	assert.True(t, old.Expired())
}

func TestSystemMaxCatalogSizeGuard(t *testing.T) {
	params := DefaultParams()
	params.MaxCatalogSize = 2
	sys := NewSystem(params)
	sys.now = func() time.Time { return testNow }

	err := sys.Rebuild(context.Background(), testDataset())
	require.Error(t, err)
	assert.False(t, sys.Ready())
}

func TestHybridDietHardFilter(t *testing.T) {
	snap := rebuiltSnapshot(t)

	recs := snap.HybridRecommendations("U-VEGAN", 10)
	for _, rec := range recs {
		assert.Equal(t, "vegan", rec.Product.DietType,
			"純素使用者不應收到 %s (%s)", rec.Product.ID, rec.Product.DietType)
		assert.NotContains(t, rec.Product.Allergens, "nuts")
	}
}

func TestHybridSortedDescending(t *testing.T) {
	snap := rebuiltSnapshot(t)

	recs := snap.HybridRecommendations("U-OMNI", 10)
	require.NotEmpty(t, recs)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
	for _, rec := range recs {
		assert.NotEqual(t, "P-OLD", rec.Product.ID)
	}
}

func TestHybridColdStartFallback(t *testing.T) {
	snap := rebuiltSnapshot(t)

	recs := snap.HybridRecommendations("U-NEW", 10)
	require.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.LessOrEqual(t, rec.Product.DaysUntilExpiry, DefaultParams().ColdStartWindowDays)
	}
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
}

func TestAutoMarkdownRaisesDiscount(t *testing.T) {
	snap := rebuiltSnapshot(t)

	milk, ok := snap.Product("P-MILK")
	require.True(t, ok)
	require.True(t, milk.IsDeadStockRisk)

	// 零銷售且距到期僅 2 天：自動降價必須啟動
	assert.Greater(t, milk.CurrentDiscountPercent, 0.0)
	assert.LessOrEqual(t, milk.CurrentDiscountPercent, 50.0)
	assert.Zero(t, math.Mod(milk.CurrentDiscountPercent, 2.5))
}

func TestThresholdDetailLookup(t *testing.T) {
	snap := rebuiltSnapshot(t)

	detail := snap.ThresholdDetail("P-MILK")
	require.NotNil(t, detail)
	assert.Equal(t, "Dairy", detail.Category)
	assert.Greater(t, detail.DynamicThreshold, 0)

	assert.Nil(t, snap.ThresholdDetail("P-UNKNOWN"))
}

func TestPricingRecommendationsReport(t *testing.T) {
	snap := rebuiltSnapshot(t)

	results := snap.PricingRecommendations(0, 0)
	require.NotEmpty(t, results)
	for i, r := range results {
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].UrgencyScore, r.UrgencyScore)
		}
		assert.Zero(t, math.Mod(r.RecommendedDiscount, 5))
		assert.LessOrEqual(t, r.RecommendedDiscount, 70.0)
	}
}

func TestDeadStockReportSorted(t *testing.T) {
	snap := rebuiltSnapshot(t)

	report := snap.DeadStockReport("")
	require.Len(t, report, 5)
	for i := 1; i < len(report); i++ {
		assert.GreaterOrEqual(t, report[i-1].RiskScore, report[i].RiskScore)
	}
}

func TestDeadStockReportCategoryFilter(t *testing.T) {
	snap := rebuiltSnapshot(t)

	report := snap.DeadStockReport("snacks")
	require.NotEmpty(t, report)
	for _, r := range report {
		assert.Equal(t, "Snacks", r.Product.Category)
	}
}

func TestContentRecommendationsUrgencyBoostToggle(t *testing.T) {
	snap := rebuiltSnapshot(t)

	opts := DefaultContentOptions()
	opts.UrgencyBoost = false
	recs := snap.ContentRecommendations("P-TOFU", 10, opts)
	require.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.Equal(t, rec.BaseScore, rec.Score)
		assert.Zero(t, rec.UrgencyScore)
	}
}

func TestCollaborativeFilterPurchasedToggle(t *testing.T) {
	snap := rebuiltSnapshot(t)

	opts := DefaultCollabOptions()
	opts.FilterPurchased = false
	recs := snap.CollaborativeRecommendations("U-OMNI", 0, opts)

	ids := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		ids[rec.Product.ID] = struct{}{}
	}
	// 關閉過濾後，已購買過的商品也可再次出現
	assert.Contains(t, ids, "P-CHICK")
}
