package engine

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// 英文停用詞（常見集合的精簡版，足以覆蓋商品描述文字）
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

// tokenize 轉小寫後以非字母數字切詞，僅保留長度 ≥2 且非停用詞的詞
func tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < 2 {
			continue
		}
		if _, stop := englishStopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// buildTFIDFMatrix 對文件集建立 TF-IDF 矩陣：
//   - 詞彙表取全集中出現次數最高的前 maxTerms 個詞（同頻時依字典序）
//   - idf 採平滑版 ln((1+n)/(1+df)) + 1
//   - 每列做 L2 正規化
func buildTFIDFMatrix(texts []string, maxTerms int) [][]float64 {
	n := len(texts)
	tokenized := make([][]string, n)
	corpusCount := make(map[string]int)
	docFreq := make(map[string]int)

	for i, text := range texts {
		tokens := tokenize(text)
		tokenized[i] = tokens

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			corpusCount[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}

	vocab := selectVocabulary(corpusCount, maxTerms)

	idf := make([]float64, len(vocab))
	termIndex := make(map[string]int, len(vocab))
	for j, term := range vocab {
		termIndex[term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+docFreq[term])) + 1
	}

	matrix := make([][]float64, n)
	for i, tokens := range tokenized {
		row := make([]float64, len(vocab))
		for _, t := range tokens {
			if j, ok := termIndex[t]; ok {
				row[j] += idf[j]
			}
		}
		if norm := vectorNorm(row); norm > 0 {
			for j := range row {
				row[j] /= norm
			}
		}
		matrix[i] = row
	}
	return matrix
}

// selectVocabulary 取出現次數最高的前 maxTerms 個詞，排序結果固定
func selectVocabulary(corpusCount map[string]int, maxTerms int) []string {
	terms := make([]string, 0, len(corpusCount))
	for t := range corpusCount {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(a, b int) bool {
		ca, cb := corpusCount[terms[a]], corpusCount[terms[b]]
		if ca != cb {
			return ca > cb
		}
		return terms[a] < terms[b]
	})
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	// 詞彙表本身維持字典序，與欄位索引一一對應
	sort.Strings(terms)
	return terms
}

func dotProduct(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func vectorNorm(v []float64) float64 {
	return math.Sqrt(dotProduct(v, v))
}
