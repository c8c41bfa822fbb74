package errors

import (
	"fmt"
	"math"
)

// CheckMatrix checks all values in a matrix for numerical instability.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	var unstableValues []float64

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstableValues = append(unstableValues, v)
				if len(unstableValues) >= 10 {
					break
				}
			}
		}
		if len(unstableValues) > 0 {
			break
		}
	}

	if len(unstableValues) > 0 {
		return NewNumericalInstabilityError(operation, unstableValues)
	}

	return nil
}

// CheckSymmetric verifies |m[i][j] - m[j][i]| <= tol for a square matrix.
func CheckSymmetric(operation string, matrix interface{ At(int, int) float64 }, n int, tol float64) error {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := math.Abs(matrix.At(i, j) - matrix.At(j, i)); d > tol {
				return NewValueError(operation, fmt.Sprintf("matrix is not symmetric at (%d,%d): |diff|=%g > %g", i, j, d, tol))
			}
		}
	}
	return nil
}
