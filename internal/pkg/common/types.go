package common

// RecommendationItem 單筆推薦結果（四種查詢共用的輸出形狀）
type RecommendationItem struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Score           float64 `json:"score"`
	BaseScore       float64 `json:"base_score,omitempty"`
	UrgencyScore    float64 `json:"urgency_score"`
	DaysUntilExpiry int     `json:"days_until_expiry"`
	Category        string  `json:"category"`
	Price           float64 `json:"price"`
	Discount        float64 `json:"discount"`
	IsDeadStockRisk bool    `json:"is_dead_stock_risk"`
}

// PricingItem 單筆動態定價建議
type PricingItem struct {
	ProductID           string  `json:"product_id"`
	ProductName         string  `json:"product_name"`
	Category            string  `json:"category"`
	DaysUntilExpiry     int     `json:"days_until_expiry"`
	CurrentDiscount     float64 `json:"current_discount"`
	RecommendedDiscount float64 `json:"recommended_discount"`
	DiscountIncrease    float64 `json:"discount_increase"`
	UrgencyScore        float64 `json:"urgency_score"`
	Reasoning           string  `json:"reasoning"`
	CurrentPrice        float64 `json:"current_price"`
	RecommendedPrice    float64 `json:"recommended_price"`
	PotentialSavings    float64 `json:"potential_savings"`
}

// DeadStockRiskItem 單筆死貨風險資訊
type DeadStockRiskItem struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	DaysUntilExpiry int     `json:"days_until_expiry"`
	Threshold       int     `json:"threshold"`
	RiskScore       float64 `json:"risk_score"`
	SalesVelocity   float64 `json:"sales_velocity"`
	Inventory       float64 `json:"inventory_quantity"`
}

// ThresholdDetail 門檻值與計算因子明細
type ThresholdDetail struct {
	ProductID           string  `json:"product_id"`
	Category            string  `json:"category"`
	BaseThreshold       int     `json:"base_threshold"`
	DynamicThreshold    int     `json:"dynamic_threshold"`
	VelocityMultiplier  float64 `json:"velocity_multiplier"`
	PriceMultiplier     float64 `json:"price_multiplier"`
	DiscountMultiplier  float64 `json:"discount_multiplier"`
	SeasonalMultiplier  float64 `json:"seasonal_multiplier"`
}

// UserSummary 使用者清單條目（adapter 層輸出）
type UserSummary struct {
	UserID              string   `json:"user_id"`
	DietType            string   `json:"diet_type"`
	Allergies           []string `json:"allergies"`
	PrefersDiscount     bool     `json:"prefers_discount"`
	PreferredCategories []string `json:"preferred_categories"`
	TransactionCount    int      `json:"transaction_count"`
}
