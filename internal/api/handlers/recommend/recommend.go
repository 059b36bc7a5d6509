package recommend

import (
	"net/http"
	"strconv"

	"waste-reduction-api/internal/core/engine"
	recommendService "waste-reduction-api/internal/core/recommend"
	"waste-reduction-api/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRecommendationCount = 10
	defaultMinUrgency          = 0.3
	defaultPricingLimit        = 20
	defaultRiskLimit           = 50
	maxRecommendationCount     = 100
)

// Handler 推薦 API 處理程序
type Handler struct {
	service *recommendService.Service
}

// NewHandler 建立推薦處理程序
func NewHandler(service *recommendService.Service) *Handler {
	return &Handler{service: service}
}

// HandleHybridRecommendations GET /recommendations/:user_id
// 混合推薦：協同過濾 + 內容相似度，含急迫度加成與飲食過濾
func (h *Handler) HandleHybridRecommendations(c *gin.Context) {
	userID := c.Param("user_id")
	n := queryInt(c, "n", defaultRecommendationCount)

	items, err := h.service.HybridRecommendations(c.Request.Context(), userID, n)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"count":           len(items),
		"recommendations": items,
	})
}

// HandleContentRecommendations GET /recommendations/content/:product_id
func (h *Handler) HandleContentRecommendations(c *gin.Context) {
	productID := c.Param("product_id")
	n := queryInt(c, "n", defaultRecommendationCount)
	opts := engine.ContentOptions{
		FilterExpired: queryBool(c, "filter_expired", true),
		UrgencyBoost:  queryBool(c, "urgency_boost", true),
	}

	items, err := h.service.ContentRecommendations(c.Request.Context(), productID, n, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id":      productID,
		"count":           len(items),
		"recommendations": items,
	})
}

// HandleCollaborativeRecommendations GET /recommendations/collaborative/:user_id
func (h *Handler) HandleCollaborativeRecommendations(c *gin.Context) {
	userID := c.Param("user_id")
	n := queryInt(c, "n", defaultRecommendationCount)
	opts := engine.CollabOptions{
		FilterPurchased: queryBool(c, "filter_purchased", true),
		FocusOnExpiring: queryBool(c, "focus_on_expiring", true),
	}

	items, err := h.service.CollaborativeRecommendations(c.Request.Context(), userID, n, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"count":           len(items),
		"recommendations": items,
	})
}

// HandlePricingRecommendations GET /pricing/recommendations
func (h *Handler) HandlePricingRecommendations(c *gin.Context) {
	minUrgency := queryFloat(c, "min_urgency", defaultMinUrgency)
	limit := queryInt(c, "limit", defaultPricingLimit)

	items, err := h.service.PricingRecommendations(c.Request.Context(), minUrgency, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min_urgency":     minUrgency,
		"count":           len(items),
		"recommendations": items,
	})
}

// HandleDeadStockRisk GET /dead_stock_risk
func (h *Handler) HandleDeadStockRisk(c *gin.Context) {
	limit := queryInt(c, "limit", defaultRiskLimit)
	category := c.Query("category")

	items, err := h.service.DeadStockRisk(c.Request.Context(), limit, category)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(items),
		"category": category,
		"products": items,
	})
}

// HandleThreshold GET /thresholds/:product_id
func (h *Handler) HandleThreshold(c *gin.Context) {
	detail, err := h.service.Threshold(c.Param("product_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleCategories GET /categories
func (h *Handler) HandleCategories(c *gin.Context) {
	categories, err := h.service.Categories()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(categories),
		"categories": categories,
	})
}

// HandleUsers GET /users
func (h *Handler) HandleUsers(c *gin.Context) {
	users, err := h.service.Users()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(users),
		"users": users,
	})
}

// HandleRefreshData POST /refresh_data
// 重新載入資料來源並重建全部模型
func (h *Handler) HandleRefreshData(c *gin.Context) {
	refreshID, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "refreshed",
		"refresh_id": refreshID,
		"stats":      h.service.Stats(),
	})
}

// queryInt 解析整數查詢參數，非法值回退預設並夾在安全範圍內
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	if v > maxRecommendationCount {
		return maxRecommendationCount
	}
	return v
}

// queryBool 解析布林查詢參數，非法值回退預設
func queryBool(c *gin.Context, name string, fallback bool) bool {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// queryFloat 解析浮點查詢參數
func queryFloat(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// respondError 依錯誤類型決定 HTTP 狀態碼
func respondError(c *gin.Context, err error) {
	if customErr, ok := err.(*common.CustomError); ok {
		common.LogWarn("請求處理失敗",
			zap.String("code", customErr.Code),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(customErr.Status, common.ErrorResponse{
			Code:    customErr.Code,
			Message: customErr.Message,
		})
		return
	}
	if common.IsDataValidationError(err) {
		common.LogError("資料驗證失敗", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: err.Error(),
		})
		return
	}

	common.LogError("未分類的錯誤", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, common.ErrorResponse{
		Code:    common.ErrCodeInternalError,
		Message: "internal server error",
	})
}
