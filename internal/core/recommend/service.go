package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"waste-reduction-api/internal/core/dataset"
	"waste-reduction-api/internal/core/engine"
	"waste-reduction-api/internal/core/recommend/cache"
	"waste-reduction-api/internal/pkg/common"

	"go.uber.org/zap"
)

// Service 推薦服務：對 handler 層提供所有查詢操作，
// 負責快照存取、結果快取與 DTO 轉換
type Service struct {
	system *engine.System
	loader dataset.Loader
	cache  cache.Store // nil 表示停用快取
}

// NewService 建立推薦服務
func NewService(system *engine.System, loader dataset.Loader, store cache.Store) *Service {
	return &Service{
		system: system,
		loader: loader,
		cache:  store,
	}
}

// Ready 引擎是否已完成首次重建
func (s *Service) Ready() bool {
	return s.system.Ready()
}

// Refresh 重新載入資料來源並重建全部模型，成功後清空結果快取。
// 回傳本次重建的識別碼，供呼叫端與日誌對齊
func (s *Service) Refresh(ctx context.Context) (string, error) {
	refreshID := common.GenerateUUID()

	data, err := s.loader.Load(ctx)
	if err != nil {
		common.LogError("資料來源載入失敗",
			zap.String("refresh_id", refreshID), zap.Error(err))
		if common.IsDataValidationError(err) {
			return refreshID, err
		}
		return refreshID, common.ErrDataSourceError.WithError(err)
	}

	if err := s.system.Rebuild(ctx, data); err != nil {
		return refreshID, err
	}

	if s.cache != nil {
		if err := s.cache.Flush(ctx); err != nil {
			common.LogWarn("結果快取清空失敗",
				zap.String("refresh_id", refreshID), zap.Error(err))
		}
	}
	return refreshID, nil
}

// Stats 引擎與快取的狀態摘要，供健康檢查使用
func (s *Service) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"model_ready": s.system.Ready(),
	}
	if snapshot, err := s.system.Snapshot(); err == nil {
		stats["built_at"] = snapshot.BuiltAt.Format(time.RFC3339)
		stats["users"] = snapshot.UserCount()
		stats["active_products"] = snapshot.ProductCount()
	}
	if s.cache != nil {
		stats["cache"] = s.cache.GetStats()
	}
	return stats
}

// HybridRecommendations 混合推薦
func (s *Service) HybridRecommendations(ctx context.Context, userID string, n int) ([]common.RecommendationItem, error) {
	key := cache.Key("hybrid", userID, strconv.Itoa(n))
	var items []common.RecommendationItem
	if s.cacheGet(ctx, key, &items) {
		return items, nil
	}

	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	items = toRecommendationItems(snapshot.HybridRecommendations(userID, n))
	s.cacheSet(ctx, key, items)
	return items, nil
}

// ContentRecommendations 內容相似推薦；商品完全未知時回傳 404
func (s *Service) ContentRecommendations(ctx context.Context, productID string, n int, opts engine.ContentOptions) ([]common.RecommendationItem, error) {
	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snapshot.KnowsProduct(productID) {
		return nil, common.ErrNotFound.WithError(fmt.Errorf("product %s not found", productID))
	}

	key := cache.Key("content", productID, strconv.Itoa(n),
		strconv.FormatBool(opts.FilterExpired), strconv.FormatBool(opts.UrgencyBoost))
	var items []common.RecommendationItem
	if s.cacheGet(ctx, key, &items) {
		return items, nil
	}

	items = toRecommendationItems(snapshot.ContentRecommendations(productID, n, opts))
	s.cacheSet(ctx, key, items)
	return items, nil
}

// CollaborativeRecommendations 協同過濾推薦
func (s *Service) CollaborativeRecommendations(ctx context.Context, userID string, n int, opts engine.CollabOptions) ([]common.RecommendationItem, error) {
	key := cache.Key("collaborative", userID, strconv.Itoa(n),
		strconv.FormatBool(opts.FilterPurchased), strconv.FormatBool(opts.FocusOnExpiring))
	var items []common.RecommendationItem
	if s.cacheGet(ctx, key, &items) {
		return items, nil
	}

	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	items = toRecommendationItems(snapshot.CollaborativeRecommendations(userID, n, opts))
	s.cacheSet(ctx, key, items)
	return items, nil
}

// PricingRecommendations 動態定價報表
func (s *Service) PricingRecommendations(ctx context.Context, minUrgency float64, limit int) ([]common.PricingItem, error) {
	key := cache.Key("pricing", fmt.Sprintf("%.3f", minUrgency), strconv.Itoa(limit))
	var items []common.PricingItem
	if s.cacheGet(ctx, key, &items) {
		return items, nil
	}

	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}

	results := snapshot.PricingRecommendations(minUrgency, limit)
	items = make([]common.PricingItem, 0, len(results))
	for _, r := range results {
		p, ok := snapshot.Product(r.ProductID)
		if !ok {
			continue
		}
		currentPrice := p.PriceMRP * (1 - r.CurrentDiscount/100)
		recommendedPrice := p.PriceMRP * (1 - r.RecommendedDiscount/100)
		items = append(items, common.PricingItem{
			ProductID:           r.ProductID,
			ProductName:         p.Name,
			Category:            p.Category,
			DaysUntilExpiry:     p.DaysUntilExpiry,
			CurrentDiscount:     r.CurrentDiscount,
			RecommendedDiscount: r.RecommendedDiscount,
			DiscountIncrease:    r.DiscountIncrease,
			UrgencyScore:        r.UrgencyScore,
			Reasoning:           r.Reasoning,
			CurrentPrice:        currentPrice,
			RecommendedPrice:    recommendedPrice,
			PotentialSavings:    p.PriceMRP * r.DiscountIncrease / 100,
		})
	}
	s.cacheSet(ctx, key, items)
	return items, nil
}

// DeadStockRisk 死貨風險報表；category 非空時只列該分類
func (s *Service) DeadStockRisk(ctx context.Context, limit int, category string) ([]common.DeadStockRiskItem, error) {
	key := cache.Key("dead_stock", strconv.Itoa(limit), category)
	var items []common.DeadStockRiskItem
	if s.cacheGet(ctx, key, &items) {
		return items, nil
	}

	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}

	risks := snapshot.DeadStockReport(category)
	if limit > 0 && len(risks) > limit {
		risks = risks[:limit]
	}
	items = make([]common.DeadStockRiskItem, 0, len(risks))
	for _, r := range risks {
		items = append(items, common.DeadStockRiskItem{
			ProductID:       r.Product.ID,
			ProductName:     r.Product.Name,
			Category:        r.Product.Category,
			DaysUntilExpiry: r.Product.DaysUntilExpiry,
			Threshold:       r.Threshold,
			RiskScore:       r.RiskScore,
			SalesVelocity:   r.Product.SalesVelocity,
			Inventory:       r.Product.InventoryQuantity,
		})
	}
	s.cacheSet(ctx, key, items)
	return items, nil
}

// Threshold 單一商品的動態門檻明細；商品未知回傳 404
func (s *Service) Threshold(productID string) (*common.ThresholdDetail, error) {
	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	result := snapshot.ThresholdDetail(productID)
	if result == nil {
		return nil, common.ErrNotFound.WithError(fmt.Errorf("product %s not found", productID))
	}
	return &common.ThresholdDetail{
		ProductID:          result.ProductID,
		Category:           result.Category,
		BaseThreshold:      result.BaseThreshold,
		DynamicThreshold:   result.DynamicThreshold,
		VelocityMultiplier: result.VelocityMultiplier,
		PriceMultiplier:    result.PriceMultiplier,
		DiscountMultiplier: result.DiscountMultiplier,
		SeasonalMultiplier: result.SeasonalMultiplier,
	}, nil
}

// Categories 未過期商品的分類清單
func (s *Service) Categories() ([]string, error) {
	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	return snapshot.Categories(), nil
}

// Users 使用者清單
func (s *Service) Users() ([]common.UserSummary, error) {
	snapshot, err := s.system.Snapshot()
	if err != nil {
		return nil, err
	}
	users := snapshot.Users()
	out := make([]common.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, common.UserSummary{
			UserID:              u.ID,
			DietType:            u.DietType,
			Allergies:           u.Allergies,
			PrefersDiscount:     u.PrefersDiscount,
			PreferredCategories: u.PreferredCategories,
			TransactionCount:    snapshot.PurchaseCount(u.ID),
		})
	}
	return out, nil
}

// cacheGet 從結果快取讀取並反序列化；未命中或解析失敗回傳 false
func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		common.LogWarn("快取內容解析失敗", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// cacheSet 序列化並寫入結果快取；失敗只記錄不中斷
func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw)); err != nil && err != common.ErrCacheFull {
		common.LogWarn("快取寫入失敗", zap.String("key", key), zap.Error(err))
	}
}

// toRecommendationItems 引擎輸出轉為 API DTO
func toRecommendationItems(scored []engine.ScoredProduct) []common.RecommendationItem {
	out := make([]common.RecommendationItem, 0, len(scored))
	for _, rec := range scored {
		out = append(out, common.RecommendationItem{
			ProductID:       rec.Product.ID,
			ProductName:     rec.Product.Name,
			Score:           rec.Score,
			BaseScore:       rec.BaseScore,
			UrgencyScore:    rec.UrgencyScore,
			DaysUntilExpiry: rec.Product.DaysUntilExpiry,
			Category:        rec.Product.Category,
			Price:           rec.Product.PriceMRP,
			Discount:        rec.Product.CurrentDiscountPercent,
			IsDeadStockRisk: rec.Product.IsDeadStockRisk,
		})
	}
	return out
}
