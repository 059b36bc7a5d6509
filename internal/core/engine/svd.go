package engine

import (
	"math"
	"math/rand"
)

// svdPowerIterations 隨機化子空間迭代次數，兩次已足夠收斂互動矩陣
const svdPowerIterations = 2

// truncatedSVD 以固定種子的隨機化演算法對 A (rows×cols) 做秩 k 的截斷奇異值分解。
// 回傳 U·S (rows×r) 與 V (cols×r)，r = min(k, rows, cols)。
// 相同輸入與種子保證逐位元相同的結果
func truncatedSVD(a [][]float64, k int, seed int64) (us [][]float64, v [][]float64) {
	rows := len(a)
	if rows == 0 {
		return nil, nil
	}
	cols := len(a[0])
	r := k
	if rows < r {
		r = rows
	}
	if cols < r {
		r = cols
	}
	if r <= 0 {
		return make([][]float64, rows), make([][]float64, cols)
	}

	rng := rand.New(rand.NewSource(seed))

	// 高斯隨機投影 Omega (cols×r)
	omega := make([][]float64, cols)
	for i := range omega {
		omega[i] = make([]float64, r)
		for j := range omega[i] {
			omega[i][j] = rng.NormFloat64()
		}
	}

	// 子空間迭代：Q 逼近 A 的前 r 個左奇異向量張成的空間
	q := orthonormalize(matMul(a, omega))
	for iter := 0; iter < svdPowerIterations; iter++ {
		z := orthonormalize(matMulTransA(a, q))
		q = orthonormalize(matMul(a, z))
	}

	// 小矩陣 B = Qᵀ·A (r×cols)，再對 B·Bᵀ 做 Jacobi 特徵分解
	b := matMulTransA(q, a)
	bbt := matMulTransB(b, b)
	eigenvalues, w := jacobiEigen(bbt)

	sortEigenDesc(eigenvalues, w)

	sigma := make([]float64, len(eigenvalues))
	for i, lambda := range eigenvalues {
		if lambda > 0 {
			sigma[i] = math.Sqrt(lambda)
		}
	}

	// U = Q·W，直接輸出 U·S
	u := matMul(q, w)
	us = make([][]float64, rows)
	for i := range us {
		us[i] = make([]float64, r)
		for j := 0; j < r; j++ {
			us[i][j] = u[i][j] * sigma[j]
		}
	}

	// V = Bᵀ·W·S⁻¹，奇異值為零的方向填零
	btw := matMulTransA(b, w)
	v = make([][]float64, cols)
	for i := range v {
		v[i] = make([]float64, r)
		for j := 0; j < r; j++ {
			if sigma[j] > 0 {
				v[i][j] = btw[i][j] / sigma[j]
			}
		}
	}
	return us, v
}

// matMul C = A·B
func matMul(a, b [][]float64) [][]float64 {
	rows, inner, cols := len(a), len(b), len(b[0])
	c := make([][]float64, rows)
	for i := range c {
		c[i] = make([]float64, cols)
		for t := 0; t < inner; t++ {
			av := a[i][t]
			if av == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				c[i][j] += av * b[t][j]
			}
		}
	}
	return c
}

// matMulTransA C = Aᵀ·B
func matMulTransA(a, b [][]float64) [][]float64 {
	rows, inner, cols := len(a[0]), len(a), len(b[0])
	c := make([][]float64, rows)
	for i := range c {
		c[i] = make([]float64, cols)
	}
	for t := 0; t < inner; t++ {
		for i := 0; i < rows; i++ {
			av := a[t][i]
			if av == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				c[i][j] += av * b[t][j]
			}
		}
	}
	return c
}

// matMulTransB C = A·Bᵀ
func matMulTransB(a, b [][]float64) [][]float64 {
	rows, cols := len(a), len(b)
	c := make([][]float64, rows)
	for i := range c {
		c[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			c[i][j] = dotProduct(a[i], b[j])
		}
	}
	return c
}

// orthonormalize 以修正 Gram-Schmidt 對欄向量做正交化；
// 線性相依的欄位置零，保持欄數不變
func orthonormalize(m [][]float64) [][]float64 {
	rows := len(m)
	cols := len(m[0])
	out := make([][]float64, rows)
	for i := range out {
		out[i] = append([]float64(nil), m[i]...)
	}
	for j := 0; j < cols; j++ {
		for p := 0; p < j; p++ {
			var proj float64
			for i := 0; i < rows; i++ {
				proj += out[i][j] * out[i][p]
			}
			for i := 0; i < rows; i++ {
				out[i][j] -= proj * out[i][p]
			}
		}
		var norm float64
		for i := 0; i < rows; i++ {
			norm += out[i][j] * out[i][j]
		}
		norm = math.Sqrt(norm)
		if norm > 1e-12 {
			for i := 0; i < rows; i++ {
				out[i][j] /= norm
			}
		} else {
			for i := 0; i < rows; i++ {
				out[i][j] = 0
			}
		}
	}
	return out
}

// jacobiEigen 對稱矩陣的循環 Jacobi 特徵分解，
// 回傳特徵值與以欄為特徵向量的矩陣
func jacobiEigen(s [][]float64) ([]float64, [][]float64) {
	n := len(s)
	a := make([][]float64, n)
	for i := range a {
		a[i] = append([]float64(nil), s[i]...)
	}
	v := make([][]float64, n)
	for i := range v {
		v[i] = make([]float64, n)
		v[i][i] = 1
	}

	const maxSweeps = 100
	const tol = 1e-12
	for sweep := 0; sweep < maxSweeps; sweep++ {
		var off float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				off += a[i][j] * a[i][j]
			}
		}
		if off < tol {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				if math.Abs(a[p][q]) < tol {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				sn := t * c
				for i := 0; i < n; i++ {
					aip, aiq := a[i][p], a[i][q]
					a[i][p] = c*aip - sn*aiq
					a[i][q] = sn*aip + c*aiq
				}
				for i := 0; i < n; i++ {
					api, aqi := a[p][i], a[q][i]
					a[p][i] = c*api - sn*aqi
					a[q][i] = sn*api + c*aqi
				}
				for i := 0; i < n; i++ {
					vip, viq := v[i][p], v[i][q]
					v[i][p] = c*vip - sn*viq
					v[i][q] = sn*vip + c*viq
				}
			}
		}
	}

	eigenvalues := make([]float64, n)
	for i := 0; i < n; i++ {
		eigenvalues[i] = a[i][i]
	}
	return eigenvalues, v
}

// sortEigenDesc 依特徵值遞減重排特徵向量欄位（就地）
func sortEigenDesc(eigenvalues []float64, vectors [][]float64) {
	n := len(eigenvalues)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if eigenvalues[order[j]] > eigenvalues[order[best]] {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}

	sorted := make([]float64, n)
	for i, idx := range order {
		sorted[i] = eigenvalues[idx]
	}
	copy(eigenvalues, sorted)

	for r := range vectors {
		row := make([]float64, n)
		for i, idx := range order {
			row[i] = vectors[r][idx]
		}
		vectors[r] = row
	}
}
