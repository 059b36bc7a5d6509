package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// 價格／折扣離散化的五個等寬桶標籤
var bucketLabels = [5]string{"very_low", "low", "medium", "high", "very_high"}

// ContentModel 內容相似度模型：TF-IDF 文字特徵 + 標準化數值特徵的餘弦相似度矩陣
// 建立後視為不可變快照；n×n 矩陣的記憶體與計算量在設定層以目錄上限控制
type ContentModel struct {
	products []*Product
	index    map[string]int
	// similarity[i][j] 為商品 i 與 j 的餘弦相似度
	similarity [][]float64

	textWeight    float64
	numericWeight float64
}

// ContentConfig 內容模型參數
type ContentConfig struct {
	MaxTerms      int
	TextWeight    float64
	NumericWeight float64
}

// BuildContentModel 建立完整的商品×商品相似度矩陣
func BuildContentModel(products []*Product, cfg ContentConfig) *ContentModel {
	m := &ContentModel{
		products:      products,
		index:         make(map[string]int, len(products)),
		textWeight:    cfg.TextWeight,
		numericWeight: cfg.NumericWeight,
	}
	for i, p := range products {
		m.index[p.ID] = i
	}
	if len(products) == 0 {
		return m
	}

	texts := buildContentTexts(products)
	tfidf := buildTFIDFMatrix(texts, cfg.MaxTerms)
	numeric := buildNumericMatrix(products)

	// 串接 [TF-IDF × textWeight, 數值 × numericWeight]
	combined := make([][]float64, len(products))
	for i := range products {
		row := make([]float64, 0, len(tfidf[i])+len(numeric[i]))
		for _, v := range tfidf[i] {
			row = append(row, v*cfg.TextWeight)
		}
		for _, v := range numeric[i] {
			row = append(row, v*cfg.NumericWeight)
		}
		combined[i] = row
	}

	m.similarity = cosineSimilarityMatrix(combined)
	return m
}

// RowIndex 商品在相似度矩陣中的列索引
func (m *ContentModel) RowIndex(productID string) (int, bool) {
	idx, ok := m.index[productID]
	return idx, ok
}

// Size 模型中的商品數
func (m *ContentModel) Size() int {
	return len(m.products)
}

// SimilarTo 依相似度遞減列出 row 以外的所有商品
func (m *ContentModel) SimilarTo(row int) []ScoredProduct {
	if row < 0 || row >= len(m.similarity) {
		return nil
	}
	out := make([]ScoredProduct, 0, len(m.products)-1)
	for j, score := range m.similarity[row] {
		if j == row {
			continue
		}
		out = append(out, ScoredProduct{Product: m.products[j], Score: score})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// buildContentTexts 為每個商品組出一段描述文字：
// 名稱 + 分類 + 飲食類型 + 品牌 + 價格桶 + 折扣桶 + 過敏原
func buildContentTexts(products []*Product) []string {
	prices := make([]float64, len(products))
	discounts := make([]float64, len(products))
	for i, p := range products {
		prices[i] = p.PriceMRP
		discounts[i] = p.CurrentDiscountPercent
	}
	priceBucket := newEqualWidthBucketer(prices)
	discountBucket := newEqualWidthBucketer(discounts)

	texts := make([]string, len(products))
	for i, p := range products {
		parts := []string{
			p.Name,
			p.Category,
			p.DietType,
			p.Brand,
			fmt.Sprintf("price_%s", priceBucket(p.PriceMRP)),
			fmt.Sprintf("discount_%s", discountBucket(p.CurrentDiscountPercent)),
		}
		parts = append(parts, p.Allergens...)
		texts[i] = strings.Join(parts, " ")
	}
	return texts
}

// newEqualWidthBucketer 對 [min,max] 做五等寬分桶
func newEqualWidthBucketer(values []float64) func(float64) string {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	width := (max - min) / float64(len(bucketLabels))
	return func(v float64) string {
		if width == 0 {
			return bucketLabels[0]
		}
		bin := int((v - min) / width)
		if bin >= len(bucketLabels) {
			bin = len(bucketLabels) - 1
		}
		return bucketLabels[bin]
	}
}

// buildNumericMatrix 六個數值特徵做 z-score 標準化：
// 價格、重量、保存期限、目前折扣、飲食序數、分類序數
func buildNumericMatrix(products []*Product) [][]float64 {
	dietCodes := ordinalEncode(products, func(p *Product) string { return p.DietType })
	categoryCodes := ordinalEncode(products, func(p *Product) string { return p.Category })

	features := make([][]float64, len(products))
	for i, p := range products {
		features[i] = []float64{
			p.PriceMRP,
			p.WeightGrams,
			float64(p.ShelfLifeDays),
			p.CurrentDiscountPercent,
			float64(dietCodes[i]),
			float64(categoryCodes[i]),
		}
	}
	return zScale(features)
}

// ordinalEncode 依字典序給每個唯一標籤一個序數
func ordinalEncode(products []*Product, key func(*Product) string) []int {
	unique := make(map[string]struct{})
	for _, p := range products {
		unique[key(p)] = struct{}{}
	}
	labels := make([]string, 0, len(unique))
	for label := range unique {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	codes := make(map[string]int, len(labels))
	for i, label := range labels {
		codes[label] = i
	}

	out := make([]int, len(products))
	for i, p := range products {
		out[i] = codes[key(p)]
	}
	return out
}

// zScale 逐欄 z-score；零變異的欄位輸出 0，避免除零
func zScale(features [][]float64) [][]float64 {
	if len(features) == 0 {
		return features
	}
	cols := len(features[0])
	n := float64(len(features))

	means := make([]float64, cols)
	for _, row := range features {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}

	stds := make([]float64, cols)
	for _, row := range features {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
	}

	out := make([][]float64, len(features))
	for i, row := range features {
		scaled := make([]float64, cols)
		for j, v := range row {
			if stds[j] > 0 {
				scaled[j] = (v - means[j]) / stds[j]
			}
		}
		out[i] = scaled
	}
	return out
}

// cosineSimilarityMatrix 完整的兩兩餘弦相似度（對角線為 1）
func cosineSimilarityMatrix(rows [][]float64) [][]float64 {
	n := len(rows)
	norms := make([]float64, n)
	for i, row := range rows {
		norms[i] = vectorNorm(row)
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		sim[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var s float64
			if norms[i] > 0 && norms[j] > 0 {
				s = dotProduct(rows[i], rows[j]) / (norms[i] * norms[j])
			}
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}
