package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncatedSVDDeterministic(t *testing.T) {
	a := [][]float64{
		{5, 3, 0, 1},
		{4, 0, 0, 1},
		{1, 1, 0, 5},
		{0, 0, 5, 4},
	}

	us1, v1 := truncatedSVD(a, 2, 42)
	us2, v2 := truncatedSVD(a, 2, 42)

	// 相同輸入與種子必須逐位元相同
	assert.Equal(t, us1, us2)
	assert.Equal(t, v1, v2)
}

func TestTruncatedSVDFullRankReconstruction(t *testing.T) {
	// 秩 2 的矩陣用 k=2 分解應可精確重建
	a := [][]float64{
		{2, 4, 6},
		{1, 2, 3},
		{3, 3, 3},
	}

	us, v := truncatedSVD(a, 2, 42)
	require.Len(t, us, 3)
	require.Len(t, v, 3)

	for i := range a {
		for j := range a[i] {
			reconstructed := dotProduct(us[i], v[j])
			assert.InDelta(t, a[i][j], reconstructed, 1e-6,
				"entry (%d,%d)", i, j)
		}
	}
}

func TestTruncatedSVDRankClamped(t *testing.T) {
	a := [][]float64{
		{1, 2},
		{3, 4},
	}

	// k 大於矩陣維度時收斂成 min(k, rows, cols)
	us, v := truncatedSVD(a, 50, 42)
	require.Len(t, us, 2)
	assert.Len(t, us[0], 2)
	assert.Len(t, v[0], 2)
}

func TestTruncatedSVDEmptyMatrix(t *testing.T) {
	us, v := truncatedSVD(nil, 10, 42)
	assert.Nil(t, us)
	assert.Nil(t, v)
}

func TestJacobiEigenSymmetric(t *testing.T) {
	// 已知特徵值：[[2,1],[1,2]] 的特徵值為 3 與 1
	s := [][]float64{
		{2, 1},
		{1, 2},
	}
	eigenvalues, _ := jacobiEigen(s)
	sortEigenDesc(eigenvalues, [][]float64{{1, 0}, {0, 1}})

	assert.InDelta(t, 3.0, eigenvalues[0], 1e-9)
	assert.InDelta(t, 1.0, eigenvalues[1], 1e-9)
}

func TestOrthonormalizeColumns(t *testing.T) {
	m := [][]float64{
		{1, 1},
		{0, 1},
		{0, 0},
	}
	q := orthonormalize(m)

	// 各欄單位長度且兩兩正交
	var norm0, norm1, dot float64
	for i := range q {
		norm0 += q[i][0] * q[i][0]
		norm1 += q[i][1] * q[i][1]
		dot += q[i][0] * q[i][1]
	}
	assert.InDelta(t, 1.0, norm0, 1e-9)
	assert.InDelta(t, 1.0, norm1, 1e-9)
	assert.InDelta(t, 0.0, dot, 1e-9)
}
