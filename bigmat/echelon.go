/*
 * Copyright (c) 2018 XLAB d.o.o
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bigmat

import (
	"math/big"

	"github.com/pkg/errors"
)

// ErrRankDeficient is returned by Echelon/ModInverse when a pivot
// candidate is non-zero but not invertible modulo a composite
// modulus, or when no non-zero pivot can be found in the current
// column. Rank is the value Echelon reported, which is always -1 where
// this package builds the error.
type ErrRankDeficient struct {
	Rank int
}

func (e *ErrRankDeficient) Error() string {
	return "matrix is rank-deficient for this modulus"
}

// Echelon reduces m to reduced-row-echelon form modulo modulo, in
// place. It returns the pivot columns (in the order they were
// eliminated), the free (non-pivot) columns, and the rank counted from
// zero: the number of pivots minus one, so a full-rank n x n matrix
// yields n-1. If some pivot candidate turns out non-zero but not
// invertible mod modulo (possible because modulo is composite), or a
// whole column has no non-zero entry at or below the current pivot
// row, it stops and returns rank -1 along with whatever pivot/free
// columns were found up to that point.
//
// When the entry in the current pivot row is zero, the first row below
// it with a non-zero entry in that column is swapped up, so the i-th
// pivot always sits in row i. Each pivot column is then cleared in
// every other row, above and below the pivot.
func (m Matrix) Echelon(modulo *big.Int) ([]int, []int, int) {
	nRows, nCols := m.Rows(), m.Cols()

	pivotCols := make([]int, 0, nRows)
	freeVars := make([]int, 0, nCols)
	rank := -1

	pivotRow, pivotCol := 0, 0
	for pivotRow < nRows && pivotCol < nCols {
		swapRow := pivotRow
		for m.Get(swapRow, pivotCol).Sign() == 0 {
			swapRow++
			if swapRow >= nRows {
				return pivotCols, freeVars, -1
			}
		}
		m[pivotRow], m[swapRow] = m[swapRow], m[pivotRow]
		pivot := m.Get(pivotRow, pivotCol)

		rank++
		pivotInv := new(big.Int).ModInverse(pivot, modulo)
		if pivotInv == nil {
			return pivotCols, freeVars, -1
		}
		for j := pivotCol; j < nCols; j++ {
			val := new(big.Int).Mul(m.Get(pivotRow, j), pivotInv)
			val.Mod(val, modulo)
			m.Set(pivotRow, j, val)
		}

		for i := 0; i < nRows; i++ {
			if i == pivotRow {
				continue
			}
			ratio := m.Get(i, pivotCol)
			if ratio.Sign() == 0 {
				continue
			}
			ratio = new(big.Int).Set(ratio)
			for j := 0; j < nCols; j++ {
				val := new(big.Int).Mul(m.Get(pivotRow, j), ratio)
				entry := new(big.Int).Sub(m.Get(i, j), val)
				entry.Mod(entry, modulo)
				m.Set(i, j, entry)
			}
		}

		pivotCols = append(pivotCols, pivotCol)
		pivotRow++
		pivotCol++
	}

	for j := pivotCol; j < nCols; j++ {
		freeVars = append(freeVars, j)
	}
	m.ModInplace(modulo)

	return pivotCols, freeVars, rank
}

// ModInverse returns the inverse of square matrix m modulo modulo.
// It augments [m | I], echelons the augmented matrix, and extracts
// the right half. It returns *ErrRankDeficient if m is not invertible
// modulo modulo.
func (m Matrix) ModInverse(modulo *big.Int) (Matrix, error) {
	if m.Rows() != m.Cols() {
		return nil, errors.New("matrix inverse requires a square matrix")
	}
	n := m.Rows()
	aug, err := ConcatenateCol(m.Copy(), Identity(n))
	if err != nil {
		return nil, err
	}

	_, _, rank := aug.Echelon(modulo)
	if rank == -1 {
		return nil, &ErrRankDeficient{Rank: rank}
	}

	inv := NewZeroMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv[i][j] = new(big.Int).Set(aug[i][j+n])
		}
	}

	return inv, nil
}

// RowReduce echelons m modulo modulo and returns the row-operations
// matrix rowOps such that rowOps*m is congruent to echelon(m) mod
// modulo, together with the pivot columns and rank. It is built by
// running Echelon on [m | I] simultaneously: the identity half
// accumulates the same row operations applied to m.
func (m Matrix) RowReduce(modulo *big.Int) (rowOps Matrix, pivotCols []int, rank int, err error) {
	n := m.Rows()
	aug, err := ConcatenateCol(m.Copy(), Identity(n))
	if err != nil {
		return nil, nil, -1, err
	}

	pivotCols, _, rank = aug.Echelon(modulo)

	rowOps = NewZeroMatrix(n, n)
	cols := m.Cols()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowOps[i][j] = new(big.Int).Set(aug[i][j+cols])
		}
	}

	return rowOps, pivotCols, rank, nil
}

// NullSpace returns a basis for the (right) null space of m modulo
// modulo: a matrix whose columns v satisfy m*v ≡ 0 (mod modulo). For
// each non-pivot (free) column j found by Echelon, it emits a basis
// vector whose pivot-row slots hold the negated echelon entries of
// column j and whose own slot holds 1, per spec.md's "row-reduce with
// operations matrix" construction. m must have a pivot in every row:
// whenever Echelon reports rank -1 (for example a singular square
// matrix), NullSpace returns *ErrRankDeficient instead of a basis.
func (m Matrix) NullSpace(modulo *big.Int) (Matrix, error) {
	echelon := m.Copy()
	pivotCols, freeVars, rank := echelon.Echelon(modulo)
	if rank == -1 {
		return nil, &ErrRankDeficient{Rank: rank}
	}

	cols := m.Cols()
	basis := NewZeroMatrix(cols, len(freeVars))
	for bi, free := range freeVars {
		basis[free][bi] = big.NewInt(1)
		for pi, pivotCol := range pivotCols {
			val := new(big.Int).Neg(echelon.Get(pi, free))
			val.Mod(val, modulo)
			basis[pivotCol][bi] = val
		}
	}

	return basis, nil
}
