package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchase(userID, productID string, quantity float64, daysAgo int) Transaction {
	return Transaction{
		UserID:              userID,
		ProductID:           productID,
		PurchaseDate:        testNow.AddDate(0, 0, -daysAgo),
		Quantity:            quantity,
		UserEngagedWithDeal: 1,
	}
}

func TestCollaborativeModelKnowsUser(t *testing.T) {
	products := []*Product{makeProduct("P1", "Cheese", 60, 30)}
	transactions := []Transaction{purchase("U1", "P1", 2, 5)}

	model := BuildCollaborativeModel(products, transactions, CollaborativeConfig{LatentFactors: 10, Seed: 42})

	assert.True(t, model.KnowsUser("U1"))
	assert.False(t, model.KnowsUser("U999"))
}

func TestCollaborativeRecommendExcludesPurchased(t *testing.T) {
	products := []*Product{
		makeProduct("P1", "Cheese", 60, 30),
		makeProduct("P2", "Cheese", 60, 30),
		makeProduct("P3", "Snacks", 90, 50),
	}
	transactions := []Transaction{
		purchase("U1", "P1", 5, 10),
		purchase("U1", "P2", 3, 8),
		purchase("U2", "P1", 5, 9),
	}

	model := BuildCollaborativeModel(products, transactions, CollaborativeConfig{LatentFactors: 1, Seed: 42})

	recs := model.Recommend("U1", 0)
	for _, rec := range recs {
		assert.NotEqual(t, "P1", rec.Product.ID)
		assert.NotEqual(t, "P2", rec.Product.ID)
	}
}

func TestCollaborativeLatentStructure(t *testing.T) {
	products := []*Product{
		makeProduct("P1", "Cheese", 60, 30),
		makeProduct("P2", "Cheese", 60, 30),
		makeProduct("P3", "Snacks", 90, 50),
	}
	// U1 與 U2 都重度購買 P1；U1 另外買了 P2。
	// 低秩分解應把 U2 的潛在偏好推向 P2 而非無關的 P3
	transactions := []Transaction{
		purchase("U1", "P1", 5, 10),
		purchase("U1", "P2", 3, 8),
		purchase("U2", "P1", 5, 9),
	}

	model := BuildCollaborativeModel(products, transactions, CollaborativeConfig{LatentFactors: 1, Seed: 42})

	require.True(t, model.KnowsUser("U2"))
	assert.Greater(t, model.Predict("U2", "P2"), model.Predict("U2", "P3"))
}

func TestCollaborativePredictUnknown(t *testing.T) {
	model := BuildCollaborativeModel(nil, nil, CollaborativeConfig{LatentFactors: 5, Seed: 42})
	assert.Equal(t, 0.0, model.Predict("U1", "P1"))
	// 未知使用者是正常的查詢落空，回空集合而非 nil
	assert.Empty(t, model.Recommend("U1", 10))
}

func TestCollaborativeDeterministicAcrossRebuilds(t *testing.T) {
	products := []*Product{
		makeProduct("P1", "Cheese", 60, 30),
		makeProduct("P2", "Dairy", 20, 10),
	}
	transactions := []Transaction{
		purchase("U1", "P1", 2, 3),
		purchase("U2", "P2", 4, 6),
		{UserID: "U1", ProductID: "P2", PurchaseDate: testNow.Add(-time.Hour), Quantity: 1},
	}
	cfg := CollaborativeConfig{LatentFactors: 2, Seed: 42}

	first := BuildCollaborativeModel(products, transactions, cfg)
	second := BuildCollaborativeModel(products, transactions, cfg)

	assert.Equal(t, first.Predict("U1", "P1"), second.Predict("U1", "P1"))
	assert.Equal(t, first.Predict("U2", "P2"), second.Predict("U2", "P2"))
}
