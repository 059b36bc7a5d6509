package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"waste-reduction-api/internal/pkg/common"

	"go.uber.org/zap"
)

// Dataset 一次重建所需的原始資料，由 dataset 層載入並驗證
type Dataset struct {
	Users        []*User
	Products     []*Product
	Transactions []Transaction
}

// System 廢棄物減量引擎。內部持有目前快照，查詢端以讀鎖取得
// 快照後在其上運算；Rebuild 在鎖外建好新快照再以寫鎖交換，
// 查詢在重建期間不被阻塞
type System struct {
	mu       sync.RWMutex
	snapshot *Snapshot

	params Params
	now    func() time.Time
}

// NewSystem 建立尚未載入資料的引擎
func NewSystem(params Params) *System {
	return &System{
		params: params,
		now:    time.Now,
	}
}

// Snapshot 目前的模型快照；尚未重建過時回傳 ErrModelNotReady
func (s *System) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, common.ErrModelNotReady
	}
	return s.snapshot, nil
}

// Ready 引擎是否已完成首次重建
func (s *System) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil
}

// Rebuild 以完整資料集重建所有模型並原子性地換入新快照。
// 管線：預處理 → 動態門檻 → 呆滯標記 → 自動降價 → 內容相似度
// → 協同過濾。任一階段失敗則保留舊快照
func (s *System) Rebuild(ctx context.Context, data Dataset) error {
	start := s.now()
	now := start

	active, all, err := preprocessProducts(data.Products, data.Transactions, now)
	if err != nil {
		common.LogRebuild(len(data.Users), len(data.Products), len(data.Transactions), s.now().Sub(start), err)
		return err
	}

	// n×n 相似度矩陣的記憶體是平方成長，超過目錄上限直接拒絕重建
	if s.params.MaxCatalogSize > 0 && len(active) > s.params.MaxCatalogSize {
		err := common.ErrSnapshotInvalid.WithError(
			fmt.Errorf("active catalog size %d exceeds limit %d", len(active), s.params.MaxCatalogSize))
		common.LogRebuild(len(data.Users), len(data.Products), len(data.Transactions), s.now().Sub(start), err)
		return err
	}

	thresholds := NewThresholdCalculator(active, data.Transactions, now)
	thresholds.CalculateAll()

	deadStockCfg := DeadStockConfig{
		ClearanceRatio:      s.params.ClearanceRatio,
		ClearanceFloorUnits: s.params.ClearanceFloorUnits,
	}
	for _, p := range active {
		p.IsDeadStockRisk = IsDeadStockRisk(p, thresholds.GetThreshold(p.ID), deadStockCfg)
	}

	if s.params.AutoMarkdown {
		markDownAtRiskProducts(active, thresholds)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := &Snapshot{
		BuiltAt: now,
		users:   make(map[string]*User, len(data.Users)),
		active:  active,
		all:     make(map[string]*Product, len(all)),
		byID:    make(map[string]*Product, len(active)),
		history: buildUserHistory(data.Transactions),
		popular: buildPopularity(data.Transactions),

		thresholds: thresholds,
		pricing:    NewPricingEngine(thresholds),
		content: BuildContentModel(active, ContentConfig{
			MaxTerms:      s.params.MaxTFIDFTerms,
			TextWeight:    s.params.TextWeight,
			NumericWeight: s.params.NumericWeight,
		}),
		collab: BuildCollaborativeModel(active, data.Transactions, CollaborativeConfig{
			LatentFactors: s.params.LatentFactors,
			Seed:          s.params.SVDSeed,
		}),
		params: s.params,
	}
	for _, u := range data.Users {
		snapshot.users[u.ID] = u
	}
	for _, p := range all {
		snapshot.all[p.ID] = p
	}
	for _, p := range active {
		snapshot.byID[p.ID] = p
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	common.LogRebuild(len(data.Users), len(data.Products), len(data.Transactions), s.now().Sub(start), nil)
	return nil
}

// markDownAtRiskProducts 對呆滯風險商品自動加碼折扣：
// 依急迫度比例補足到 50% 上限，以 2.5% 為級距，只升不降
func markDownAtRiskProducts(products []*Product, thresholds *ThresholdCalculator) {
	marked := 0
	for _, p := range products {
		if !p.IsDeadStockRisk {
			continue
		}
		threshold := thresholds.GetThreshold(p.ID)
		if threshold <= 0 || p.DaysUntilExpiry > threshold {
			continue
		}
		urgencyFactor := float64(threshold-p.DaysUntilExpiry) / float64(threshold)
		add := urgencyFactor * (50 - p.CurrentDiscountPercent)
		add = math.Round(add/2.5) * 2.5
		next := math.Min(50, p.CurrentDiscountPercent+add)
		if next > p.CurrentDiscountPercent {
			p.CurrentDiscountPercent = next
			marked++
		}
	}
	if marked > 0 {
		common.LogInfo("呆滯風險商品自動降價完成", zap.Int("marked", marked))
	}
}

// buildUserHistory 每位使用者依購買時間排序、去重後的商品清單
func buildUserHistory(transactions []Transaction) map[string][]string {
	ordered := make([]Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].PurchaseDate.Before(ordered[b].PurchaseDate)
	})

	history := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, t := range ordered {
		set, ok := seen[t.UserID]
		if !ok {
			set = make(map[string]struct{})
			seen[t.UserID] = set
		}
		if _, dup := set[t.ProductID]; dup {
			continue
		}
		set[t.ProductID] = struct{}{}
		history[t.UserID] = append(history[t.UserID], t.ProductID)
	}
	return history
}

// buildPopularity 每個商品的總銷量與不重複購買人數
func buildPopularity(transactions []Transaction) map[string]popularity {
	buyers := make(map[string]map[string]struct{})
	out := make(map[string]popularity)
	for _, t := range transactions {
		set, ok := buyers[t.ProductID]
		if !ok {
			set = make(map[string]struct{})
			buyers[t.ProductID] = set
		}
		set[t.UserID] = struct{}{}

		pop := out[t.ProductID]
		pop.quantity += t.Quantity
		pop.uniqueBuyers = len(set)
		out[t.ProductID] = pop
	}
	return out
}
