// File: internal/workload/matmul.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Compute-bound benchmark kernel.

package workload

// Matmul multiplies an n*n matrix of ones by an n*n matrix of twos and
// returns result[0][0], which equals 2n.
func Matmul(n int) float64 {
	if n <= 0 {
		return 0
	}
	a := make([]float64, n*n)
	b := make([]float64, n*n)
	c := make([]float64, n*n)
	for i := range a {
		a[i] = 1
		b[i] = 2
	}
	for x := 0; x < n; x++ {
		for z := 0; z < n; z++ {
			av := a[x*n+z]
			row := c[x*n : (x+1)*n]
			col := b[z*n : (z+1)*n]
			for y := range row {
				row[y] += av * col[y]
			}
		}
	}
	return c[0]
}
