package engine

import (
	"strings"
	"time"
)

// 無銷售紀錄商品的停滯天數哨兵值
const NoSaleSentinelDays = 999

// User 使用者（每次推薦批次視為不可變，真實來源在 adapter 層）
type User struct {
	ID                  string
	DietType            string
	Allergies           []string
	PrefersDiscount     bool
	PreferredCategories []string
}

// Product 商品，含原始欄位與預處理衍生欄位
type Product struct {
	ID                     string
	Name                   string
	Category               string
	Brand                  string
	DietType               string
	Allergens              []string
	PriceMRP               float64
	CostPrice              float64
	CurrentDiscountPercent float64
	WeightGrams            float64
	ShelfLifeDays          int
	PackagingDate          time.Time
	ExpiryDate             time.Time
	InventoryQuantity      float64

	// 衍生欄位：每次重建時由 Preprocessor 重新計算，不做持久化
	DaysUntilExpiry       int
	TotalShelfLife        int
	ShelfLifeRemainingPct float64
	TotalQuantitySold     float64
	NumberOfSales         int
	FirstSaleDate         time.Time
	LastSaleDate          time.Time
	DaysOnMarket          int
	AvgDiscountGiven      float64
	AvgUserEngagement     float64
	DaysSinceLastSale     int
	SalesVelocity         float64
	IsDeadStockRisk       bool
}

// Expired 商品是否已過期（過期 ≠ 風險，直接排除在推薦集合之外）
func (p *Product) Expired() bool {
	return p.DaysUntilExpiry <= 0
}

// Transaction 交易紀錄，只追加不修改，僅做彙總
type Transaction struct {
	UserID              string
	ProductID           string
	PurchaseDate        time.Time
	Quantity            float64
	DiscountPercent     float64
	UserEngagedWithDeal float64 // 0/1 隱式回饋訊號
}

// ThresholdResult 單一商品的動態門檻與計算因子
type ThresholdResult struct {
	ProductID          string
	Category           string
	BaseThreshold      int
	DynamicThreshold   int
	VelocityMultiplier float64
	PriceMultiplier    float64
	DiscountMultiplier float64
	SeasonalMultiplier float64
}

// PricingResult 單一商品的折扣建議
type PricingResult struct {
	ProductID           string
	CurrentDiscount     float64
	RecommendedDiscount float64
	DiscountIncrease    float64
	UrgencyScore        float64
	Reasoning           string
}

// ScoredProduct 排名後的推薦候選
type ScoredProduct struct {
	Product      *Product
	Score        float64
	BaseScore    float64
	UrgencyScore float64
}

// ProductRisk 死貨風險報表條目
type ProductRisk struct {
	Product   *Product
	Threshold int
	RiskScore float64
}

// 飲食層級：商品層級必須小於等於使用者層級才相容
var dietHierarchy = map[string]int{
	"vegan":          0,
	"vegetarian":     1,
	"eggs":           2,
	"dairy":          2,
	"non-vegetarian": 3,
}

// dietLevel 未知飲食類型一律視為最寬鬆層級
func dietLevel(diet string) int {
	if level, ok := dietHierarchy[strings.ToLower(diet)]; ok {
		return level
	}
	return 3
}

// IsCompatibleDietAllergy 檢查商品與使用者的飲食層級與過敏原相容性
// 不相容是正常的淘汰，不是錯誤
func IsCompatibleDietAllergy(user *User, product *Product) bool {
	if dietLevel(product.DietType) > dietLevel(user.DietType) {
		return false
	}
	if len(user.Allergies) == 0 || len(product.Allergens) == 0 {
		return true
	}
	allergens := make(map[string]struct{}, len(product.Allergens))
	for _, a := range product.Allergens {
		allergens[a] = struct{}{}
	}
	for _, a := range user.Allergies {
		if _, hit := allergens[a]; hit {
			return false
		}
	}
	return true
}
