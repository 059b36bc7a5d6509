package engine

import "sort"

// CollaborativeModel 協同過濾模型：使用者×商品互動矩陣經截斷 SVD
// 分解後的潛在因子。建立後視為不可變快照
type CollaborativeModel struct {
	products []*Product

	userIndex map[string]int
	itemIndex map[string]int

	// userFactors = U·S，itemFactors = V；預測分數為兩向量內積
	userFactors [][]float64
	itemFactors [][]float64

	// purchased[userIdx] 為該使用者已購買的商品列索引
	purchased map[int]map[int]struct{}

	rank int
}

// CollaborativeConfig 協同過濾參數
type CollaborativeConfig struct {
	LatentFactors int
	Seed          int64
}

// BuildCollaborativeModel 由交易紀錄建立互動矩陣並分解。
// 互動強度 = 購買數量總和 + 0.5 × 互動度平均；
// 列與欄依識別碼字典序排列，配合固定種子確保重建結果可重現
func BuildCollaborativeModel(products []*Product, transactions []Transaction, cfg CollaborativeConfig) *CollaborativeModel {
	m := &CollaborativeModel{
		products:  products,
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int, len(products)),
		purchased: make(map[int]map[int]struct{}),
	}
	for i, p := range products {
		m.itemIndex[p.ID] = i
	}

	userIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range transactions {
		if _, ok := seen[t.UserID]; !ok {
			seen[t.UserID] = struct{}{}
			userIDs = append(userIDs, t.UserID)
		}
	}
	sort.Strings(userIDs)
	for i, id := range userIDs {
		m.userIndex[id] = i
	}

	if len(userIDs) == 0 || len(products) == 0 {
		return m
	}

	type cell struct {
		quantity   float64
		engagement float64
		count      float64
	}
	cells := make(map[[2]int]*cell)
	for _, t := range transactions {
		u, uok := m.userIndex[t.UserID]
		p, pok := m.itemIndex[t.ProductID]
		if !uok || !pok {
			continue
		}
		key := [2]int{u, p}
		c, ok := cells[key]
		if !ok {
			c = &cell{}
			cells[key] = c
		}
		c.quantity += t.Quantity
		c.engagement += t.UserEngagedWithDeal
		c.count++

		set, ok := m.purchased[u]
		if !ok {
			set = make(map[int]struct{})
			m.purchased[u] = set
		}
		set[p] = struct{}{}
	}

	matrix := make([][]float64, len(userIDs))
	for i := range matrix {
		matrix[i] = make([]float64, len(products))
	}
	for key, c := range cells {
		matrix[key[0]][key[1]] = c.quantity + 0.5*c.engagement/c.count
	}

	m.userFactors, m.itemFactors = truncatedSVD(matrix, cfg.LatentFactors, cfg.Seed)
	if len(m.userFactors) > 0 {
		m.rank = len(m.userFactors[0])
	}
	return m
}

// KnowsUser 使用者是否在訓練矩陣中
func (m *CollaborativeModel) KnowsUser(userID string) bool {
	_, ok := m.userIndex[userID]
	return ok
}

// Predict 使用者對商品的預測互動強度；任一方不在模型中回傳 0
func (m *CollaborativeModel) Predict(userID, productID string) float64 {
	u, uok := m.userIndex[userID]
	p, pok := m.itemIndex[productID]
	if !uok || !pok || m.rank == 0 {
		return 0
	}
	return dotProduct(m.userFactors[u], m.itemFactors[p])
}

// HasPurchased 使用者在訓練矩陣中是否購買過該商品
func (m *CollaborativeModel) HasPurchased(userID, productID string) bool {
	u, uok := m.userIndex[userID]
	p, pok := m.itemIndex[productID]
	if !uok || !pok {
		return false
	}
	_, owned := m.purchased[u][p]
	return owned
}

// Scores 使用者對全部商品的預測互動強度，不做任何過濾
func (m *CollaborativeModel) Scores(userID string) []ScoredProduct {
	u, ok := m.userIndex[userID]
	if !ok || m.rank == 0 {
		return nil
	}
	out := make([]ScoredProduct, 0, len(m.products))
	for p, product := range m.products {
		out = append(out, ScoredProduct{
			Product: product,
			Score:   dotProduct(m.userFactors[u], m.itemFactors[p]),
		})
	}
	return out
}

// Recommend 依預測分數遞減列出使用者未購買過的商品
func (m *CollaborativeModel) Recommend(userID string, n int) []ScoredProduct {
	out := make([]ScoredProduct, 0, len(m.products))
	for _, rec := range m.Scores(userID) {
		if m.HasPurchased(userID, rec.Product.ID) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
