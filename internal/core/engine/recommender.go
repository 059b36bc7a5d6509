package engine

import (
	"sort"
	"strings"
	"time"
)

// Params 引擎的所有可調參數，由設定層注入
type Params struct {
	LatentFactors       int
	SVDSeed             int64
	MaxTFIDFTerms       int
	TextWeight          float64
	NumericWeight       float64
	CollaborativeWeight float64
	ContentWeight       float64
	UrgencyBoostCap     float64
	DeadStockBonus      float64
	ClearanceRatio      float64
	ClearanceFloorUnits float64
	ColdStartWindowDays int
	PricingWindowDays   int
	AutoMarkdown        bool
	MaxCatalogSize      int
}

// DefaultParams 與線上系統一致的預設參數
func DefaultParams() Params {
	return Params{
		LatentFactors:       50,
		SVDSeed:             42,
		MaxTFIDFTerms:       100,
		TextWeight:          0.6,
		NumericWeight:       0.4,
		CollaborativeWeight: 0.6,
		ContentWeight:       0.4,
		UrgencyBoostCap:     0.5,
		DeadStockBonus:      0.15,
		ClearanceRatio:      0.5,
		ClearanceFloorUnits: 80,
		ColdStartWindowDays: 30,
		PricingWindowDays:   60,
		AutoMarkdown:        true,
		MaxCatalogSize:      5000,
	}
}

// popularity 商品的歷史熱門度彙總
type popularity struct {
	quantity     float64
	uniqueBuyers int
}

// Snapshot 一次重建產生的完整模型狀態。建立後不可變，
// 查詢端只讀，與下一次重建的新快照以指標交換
type Snapshot struct {
	BuiltAt time.Time

	users   map[string]*User
	active  []*Product           // 未過期商品，模型的運作集合
	all     map[string]*Product  // 含已過期，供歷史查詢
	byID    map[string]*Product  // 未過期商品索引
	history map[string][]string  // 使用者購買過的商品（依時間排序、去重）
	popular map[string]popularity

	thresholds *ThresholdCalculator
	pricing    *PricingEngine
	content    *ContentModel
	collab     *CollaborativeModel

	params Params
}

// UserCount 快照中的使用者數
func (s *Snapshot) UserCount() int { return len(s.users) }

// ProductCount 快照中未過期的商品數
func (s *Snapshot) ProductCount() int { return len(s.active) }

// Users 所有使用者（穩定排序）
func (s *Snapshot) Users() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// PurchaseCount 使用者購買過的不重複商品數
func (s *Snapshot) PurchaseCount(userID string) int {
	return len(s.history[userID])
}

// Categories 未過期商品涵蓋的分類（字典序）
func (s *Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	for _, p := range s.active {
		seen[p.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Product 依識別碼查商品，含已過期的
func (s *Snapshot) Product(id string) (*Product, bool) {
	p, ok := s.all[id]
	return p, ok
}

// KnowsProduct 商品是否在目錄中（含已過期的）
func (s *Snapshot) KnowsProduct(id string) bool {
	_, ok := s.all[id]
	return ok
}

// ThresholdDetail 商品的動態門檻與各項因子
func (s *Snapshot) ThresholdDetail(productID string) *ThresholdResult {
	return s.thresholds.GetThresholdResult(productID)
}

// HybridRecommendations 混合推薦：
// 無購買史的使用者走冷啟動；否則合併協同過濾與最近三項購買
// 的內容相似度分數，再套用飲食過濾、急迫度加成與呆滯加分
func (s *Snapshot) HybridRecommendations(userID string, n int) []ScoredProduct {
	purchased := s.history[userID]
	if len(purchased) == 0 {
		return s.PopularExpiringProducts(n, userID)
	}

	collabScores := make(map[string]float64)
	for _, rec := range s.CollaborativeRecommendations(userID, n*2, DefaultCollabOptions()) {
		collabScores[rec.Product.ID] = rec.Score
	}

	// 最近三項購買的內容相似度，同商品取平均
	contentSums := make(map[string]float64)
	contentCounts := make(map[string]int)
	recent := purchased
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	for _, productID := range recent {
		for _, rec := range s.ContentRecommendations(productID, n, DefaultContentOptions()) {
			contentSums[rec.Product.ID] += rec.Score
			contentCounts[rec.Product.ID]++
		}
	}

	candidates := make(map[string]struct{}, len(collabScores)+len(contentSums))
	for id := range collabScores {
		candidates[id] = struct{}{}
	}
	for id := range contentSums {
		candidates[id] = struct{}{}
	}

	user := s.users[userID]
	out := make([]ScoredProduct, 0, len(candidates))
	for id := range candidates {
		product, ok := s.byID[id]
		if !ok {
			continue
		}
		if user != nil && !IsCompatibleDietAllergy(user, product) {
			continue
		}

		var base float64
		if score, ok := collabScores[id]; ok {
			base += s.params.CollaborativeWeight * score
		}
		if sum, ok := contentSums[id]; ok {
			base += s.params.ContentWeight * sum / float64(contentCounts[id])
		}

		urgency := s.pricing.UrgencyScore(product)
		score := base * (1 + urgency*s.params.UrgencyBoostCap)
		if product.IsDeadStockRisk {
			score += s.params.DeadStockBonus
		}

		out = append(out, ScoredProduct{
			Product:      product,
			Score:        score,
			BaseScore:    base,
			UrgencyScore: urgency,
		})
	}

	sortScoredDesc(out)
	return truncateScored(out, n)
}

// ContentOptions 內容推薦的查詢選項
type ContentOptions struct {
	// FilterExpired 排除已過期商品
	FilterExpired bool
	// UrgencyBoost 最終分數乘上 (1 + 急迫度)
	UrgencyBoost bool
}

// DefaultContentOptions 線上預設：兩者皆開
func DefaultContentOptions() ContentOptions {
	return ContentOptions{FilterExpired: true, UrgencyBoost: true}
}

// CollabOptions 協同過濾推薦的查詢選項
type CollabOptions struct {
	// FilterPurchased 排除使用者已購買過的商品
	FilterPurchased bool
	// FocusOnExpiring 最終分數乘上 (1 + 急迫度)
	FocusOnExpiring bool
}

// DefaultCollabOptions 線上預設：兩者皆開
func DefaultCollabOptions() CollabOptions {
	return CollabOptions{FilterPurchased: true, FocusOnExpiring: true}
}

// ContentRecommendations 與指定商品內容相似的商品。
// 商品已過期但在目錄內時退回以矩陣首列查詢；完全未知回傳空集合
func (s *Snapshot) ContentRecommendations(productID string, n int, opts ContentOptions) []ScoredProduct {
	if _, known := s.all[productID]; !known {
		return nil
	}
	row, ok := s.content.RowIndex(productID)
	if !ok {
		if s.content.Size() == 0 {
			return nil
		}
		row = 0
	}

	out := make([]ScoredProduct, 0, n)
	for _, rec := range s.content.SimilarTo(row) {
		if opts.FilterExpired && rec.Product.Expired() {
			continue
		}
		score := rec.Score
		urgency := 0.0
		if opts.UrgencyBoost {
			urgency = s.pricing.UrgencyScore(rec.Product)
			score = rec.Score * (1 + urgency)
		}
		out = append(out, ScoredProduct{
			Product:      rec.Product,
			Score:        score,
			BaseScore:    rec.Score,
			UrgencyScore: urgency,
		})
		if n > 0 && len(out) >= n {
			break
		}
	}
	sortScoredDesc(out)
	return out
}

// CollaborativeRecommendations 協同過濾推薦：依預測互動強度
// 排序相容商品，預設排除已購買並乘上急迫度加成。
// 模型不認識該使用者時改走冷啟動
func (s *Snapshot) CollaborativeRecommendations(userID string, n int, opts CollabOptions) []ScoredProduct {
	if !s.collab.KnowsUser(userID) {
		return s.PopularExpiringProducts(n, userID)
	}

	user := s.users[userID]
	out := make([]ScoredProduct, 0, n)
	for _, rec := range s.collab.Scores(userID) {
		if opts.FilterPurchased && s.collab.HasPurchased(userID, rec.Product.ID) {
			continue
		}
		if rec.Product.Expired() {
			continue
		}
		if user != nil && !IsCompatibleDietAllergy(user, rec.Product) {
			continue
		}
		score := rec.Score
		urgency := 0.0
		if opts.FocusOnExpiring {
			urgency = s.pricing.UrgencyScore(rec.Product)
			score = rec.Score * (1 + urgency)
		}
		out = append(out, ScoredProduct{
			Product:      rec.Product,
			Score:        score,
			BaseScore:    rec.Score,
			UrgencyScore: urgency,
		})
	}
	sortScoredDesc(out)
	return truncateScored(out, n)
}

// PopularExpiringProducts 冷啟動推薦：即將到期（預設 30 天內）
// 的熱門商品，分數 = 0.3×銷量 + 0.2×購買人數 + 0.5×急迫度。
// 已知使用者仍套用飲食與過敏原過濾
func (s *Snapshot) PopularExpiringProducts(n int, userID string) []ScoredProduct {
	user := s.users[userID]

	out := make([]ScoredProduct, 0, n)
	for _, p := range s.active {
		if p.DaysUntilExpiry > s.params.ColdStartWindowDays {
			continue
		}
		if user != nil && !IsCompatibleDietAllergy(user, p) {
			continue
		}
		pop := s.popular[p.ID]
		urgency := s.pricing.UrgencyScore(p)
		score := pop.quantity*0.3 + float64(pop.uniqueBuyers)*0.2 + urgency*0.5
		out = append(out, ScoredProduct{
			Product:      p,
			Score:        score,
			BaseScore:    score,
			UrgencyScore: urgency,
		})
	}
	sortScoredDesc(out)
	return truncateScored(out, n)
}

// PricingRecommendations 動態定價報表：60 天內到期且急迫度達
// 門檻的商品，依急迫度遞減
func (s *Snapshot) PricingRecommendations(minUrgency float64, limit int) []PricingResult {
	out := make([]PricingResult, 0, limit)
	for _, p := range s.active {
		if p.DaysUntilExpiry > s.params.PricingWindowDays {
			continue
		}
		if s.pricing.UrgencyScore(p) < minUrgency {
			continue
		}
		result := s.pricing.RecommendDiscount(p)
		result.ProductID = p.ID
		out = append(out, result)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].UrgencyScore > out[b].UrgencyScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeadStockReport 未過期商品的門檻與風險分數，依風險遞減；
// category 非空時只列該分類
func (s *Snapshot) DeadStockReport(category string) []ProductRisk {
	out := make([]ProductRisk, 0, len(s.active))
	for _, p := range s.active {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		threshold := s.thresholds.GetThreshold(p.ID)
		out = append(out, ProductRisk{
			Product:   p,
			Threshold: threshold,
			RiskScore: RiskScore(p, threshold),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RiskScore > out[b].RiskScore })
	return out
}

func sortScoredDesc(items []ScoredProduct) {
	sort.SliceStable(items, func(a, b int) bool { return items[a].Score > items[b].Score })
}

func truncateScored(items []ScoredProduct, n int) []ScoredProduct {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
