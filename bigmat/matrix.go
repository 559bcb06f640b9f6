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

	"github.com/xlab-crypto/mhqfe/sample"
)

// Matrix wraps a slice of Vector elements. It represents a row-major
// order matrix. The j-th element from the i-th row of the matrix can
// be obtained as m[i][j].
type Matrix []Vector

// NewMatrix accepts a slice of Vector elements and returns a new
// Matrix instance. It returns an error if not all the vectors have
// the same number of elements.
func NewMatrix(vectors []Vector) (Matrix, error) {
	l := -1
	if len(vectors) > 0 {
		l = len(vectors[0])
	}
	newVectors := make([]Vector, len(vectors))
	for i, v := range vectors {
		if len(v) != l {
			return nil, errors.New("all vectors should be of the same length")
		}
		newVectors[i] = NewVector(v)
	}

	return Matrix(newVectors), nil
}

// NewZeroMatrix returns a new rows x cols Matrix with every entry set
// to 0.
func NewZeroMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := 0; i < rows; i++ {
		m[i] = NewConstantVector(cols, big.NewInt(0))
	}
	return m
}

// Identity returns the n x n identity matrix.
func Identity(n int) Matrix {
	m := NewZeroMatrix(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = big.NewInt(1)
	}
	return m
}

// NewRandomMatrix returns a new rows x cols Matrix with entries
// sampled uniformly from [0, bound) by the provided sample.Sampler.
func NewRandomMatrix(rows, cols int, bound *big.Int, sampler sample.Sampler) (Matrix, error) {
	mat := make([]Vector, rows)
	for i := 0; i < rows; i++ {
		vec, err := NewRandomVector(cols, bound, sampler)
		if err != nil {
			return nil, err
		}
		mat[i] = vec
	}

	return NewMatrix(mat)
}

// Random returns a new Matrix with entries sampled uniformly from
// [0, bound) via rng. It is the Go counterpart of algorithm.rs's
// Matrix::random, used by the structured samplers (SampleH,
// SampleGamma) before shifting/scaling into the range they need.
func Random(rows, cols int, bound *big.Int, rng sample.Sampler) (Matrix, error) {
	return NewRandomMatrix(rows, cols, bound, rng)
}

// RandomSigned returns a new Matrix with entries sampled uniformly
// from [-bound, bound] via rng.
func RandomSigned(rows, cols int, bound *big.Int, rng sample.Sampler) (Matrix, error) {
	max := new(big.Int).Add(bound, bound)
	max.Add(max, big.NewInt(1))
	m, err := NewRandomMatrix(rows, cols, max, rng)
	if err != nil {
		return nil, err
	}
	m.AddIntInplace(new(big.Int).Neg(bound))
	return m, nil
}

// Rows returns the number of rows of matrix m.
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of columns of matrix m.
func (m Matrix) Cols() int {
	if len(m) != 0 {
		return len(m[0])
	}
	return 0
}

// Copy returns a deep copy of m.
func (m Matrix) Copy() Matrix {
	res := make(Matrix, len(m))
	for i, row := range m {
		res[i] = row.Copy()
	}
	return res
}

// DimsMatch returns whether m and other have the same dimensions.
func (m Matrix) DimsMatch(other Matrix) bool {
	return m.Rows() == other.Rows() && m.Cols() == other.Cols()
}

// Get returns the entry at row i, column j.
func (m Matrix) Get(i, j int) *big.Int {
	return m[i][j]
}

// Set assigns val to the entry at row i, column j.
func (m Matrix) Set(i, j int, val *big.Int) {
	m[i][j] = val
}

// GetRow returns row i of m as a Vector (sharing storage with m).
func (m Matrix) GetRow(i int) Vector {
	return m[i]
}

// SetRow overwrites row i of m with v.
func (m Matrix) SetRow(i int, v Vector) {
	copy(m[i], v)
}

// GetCol returns column i of matrix m as a new Vector.
func (m Matrix) GetCol(i int) (Vector, error) {
	if i >= m.Cols() {
		return nil, errors.New("column index exceeds matrix dimensions")
	}

	column := make([]*big.Int, m.Rows())
	for j := 0; j < m.Rows(); j++ {
		column[j] = m[j][i]
	}

	return NewVector(column), nil
}

// Transpose transposes matrix m and returns the result in a new
// Matrix.
func (m Matrix) Transpose() Matrix {
	transposed := make([]Vector, m.Cols())
	for i := 0; i < m.Cols(); i++ {
		transposed[i], _ = m.GetCol(i)
	}
	mT, _ := NewMatrix(transposed)

	return mT
}

// CheckBound checks whether all matrix elements are strictly smaller
// (in absolute value) than the provided bound.
func (m Matrix) CheckBound(bound *big.Int) error {
	for _, v := range m {
		if err := v.CheckBound(bound); err != nil {
			return err
		}
	}
	return nil
}

// CheckDims checks whether the dimensions of matrix m match the
// provided rows and cols arguments.
func (m Matrix) CheckDims(rows, cols int) bool {
	return m.Rows() == rows && m.Cols() == cols
}

// Mod applies the element-wise modulo operation on matrix m. The
// result is returned in a new Matrix.
func (m Matrix) Mod(modulo *big.Int) Matrix {
	vectors := make([]Vector, m.Rows())
	for i, v := range m {
		vectors[i] = v.Mod(modulo)
	}
	matrix, _ := NewMatrix(vectors)

	return matrix
}

// ModInplace reduces every entry of m to [0, modulo) in place.
func (m Matrix) ModInplace(modulo *big.Int) {
	for _, row := range m {
		row.ModInplace(modulo)
	}
}

// AddIntInplace adds scalar k to every entry of m, in place.
func (m Matrix) AddIntInplace(k *big.Int) {
	for _, row := range m {
		row.AddIntInplace(k)
	}
}

// Apply applies an element-wise function f to matrix m, returning the
// result in a new Matrix.
func (m Matrix) Apply(f func(*big.Int) *big.Int) Matrix {
	res := make(Matrix, len(m))
	for i, vi := range m {
		res[i] = vi.Apply(f)
	}
	return res
}

// Add adds matrices m and other, returning the result in a new
// Matrix. It returns an error if the dimensions mismatch.
func (m Matrix) Add(other Matrix) (Matrix, error) {
	if !m.DimsMatch(other) {
		return nil, errors.New("matrices mismatch in dimensions")
	}
	vectors := make([]Vector, m.Rows())
	for i, v := range m {
		vectors[i] = v.Add(other[i])
	}
	return NewMatrix(vectors)
}

// Sub subtracts other from m, returning the result in a new Matrix.
func (m Matrix) Sub(other Matrix) (Matrix, error) {
	if !m.DimsMatch(other) {
		return nil, errors.New("matrices mismatch in dimensions")
	}
	vecs := make([]Vector, m.Rows())
	for i, v := range m {
		vecs[i] = v.Sub(other[i])
	}
	return NewMatrix(vecs)
}

// Mul multiplies matrices m and other, returning the result in a new
// Matrix. Entries are not reduced modulo anything; callers reduce
// explicitly via ModInplace, matching the teacher's and
// original_source's convention of keeping modular reduction an
// explicit, visible step.
func (m Matrix) Mul(other Matrix) (Matrix, error) {
	if m.Cols() != other.Rows() {
		return nil, errors.New("cannot multiply matrices: dimension mismatch")
	}

	prod := make([]Vector, m.Rows())
	for i := 0; i < m.Rows(); i++ {
		prod[i] = make([]*big.Int, other.Cols())
		for j := 0; j < other.Cols(); j++ {
			otherCol, _ := other.GetCol(j)
			prod[i][j], _ = m[i].Dot(otherCol)
		}
	}

	return NewMatrix(prod)
}

// MulScalar multiplies every entry of m by scalar x, returning the
// result in a new Matrix.
func (m Matrix) MulScalar(x *big.Int) Matrix {
	return m.Apply(func(v *big.Int) *big.Int {
		return new(big.Int).Mul(v, x)
	})
}

// MulVec multiplies matrix m by vector v, returning the resulting
// vector. It returns an error if m's column count differs from v's
// length.
func (m Matrix) MulVec(v Vector) (Vector, error) {
	if m.Cols() != len(v) {
		return nil, errors.New("cannot multiply matrix by vector: dimension mismatch")
	}

	res := make(Vector, m.Rows())
	for i, row := range m {
		res[i], _ = row.Dot(v)
	}
	return res, nil
}

// MulXMatY calculates x^T * m * y for vectors x, y.
func (m Matrix) MulXMatY(x, y Vector) (*big.Int, error) {
	t, err := m.MulVec(y)
	if err != nil {
		return nil, err
	}
	return t.Dot(x)
}

// TensorProduct computes the Kronecker product of a and b, reduced
// modulo modulo (if modulo is non-nil). Result has a.Rows()*b.Rows()
// rows and a.Cols()*b.Cols() columns.
func TensorProduct(a, b Matrix, modulo *big.Int) Matrix {
	res := NewZeroMatrix(a.Rows()*b.Rows(), a.Cols()*b.Cols())
	for ai := 0; ai < a.Rows(); ai++ {
		for aj := 0; aj < a.Cols(); aj++ {
			for bi := 0; bi < b.Rows(); bi++ {
				for bj := 0; bj < b.Cols(); bj++ {
					val := new(big.Int).Mul(a[ai][aj], b[bi][bj])
					if modulo != nil {
						val.Mod(val, modulo)
					}
					res[ai*b.Rows()+bi][aj*b.Cols()+bj] = val
				}
			}
		}
	}
	return res
}

// ConcatenateCol returns a new matrix with a and b placed side by
// side: [a | b]. Both must have the same number of rows.
func ConcatenateCol(a, b Matrix) (Matrix, error) {
	if a.Rows() != b.Rows() {
		return nil, errors.New("cannot concatenate matrices with differing row counts")
	}
	res := make(Matrix, a.Rows())
	for i := 0; i < a.Rows(); i++ {
		row := make(Vector, 0, a.Cols()+b.Cols())
		row = append(row, a[i]...)
		row = append(row, b[i]...)
		res[i] = row
	}
	return res, nil
}

// JoinRows stacks a on top of b: [a; b]. Both must have the same
// number of columns.
func JoinRows(a, b Matrix) (Matrix, error) {
	if a.Cols() != b.Cols() {
		return nil, errors.New("cannot join matrices with differing column counts")
	}
	res := make(Matrix, 0, a.Rows()+b.Rows())
	res = append(res, a.Copy()...)
	res = append(res, b.Copy()...)
	return res, nil
}

// ConcatenateDiagOne returns diag(a, 1): a block-diagonal matrix with
// a in the upper-left block and a trailing 1 in the lower-right
// corner, zero elsewhere. This is the padding the protocol layer uses
// to fold an affine "+1" coordinate into otherwise-linear structured
// matrices (h, gamma), so a single matrix-vector product can carry
// both the linear map and the additive shift.
func ConcatenateDiagOne(a Matrix) Matrix {
	rows, cols := a.Rows(), a.Cols()
	res := NewZeroMatrix(rows+1, cols+1)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			res[i][j] = new(big.Int).Set(a[i][j])
		}
	}
	res[rows][cols] = big.NewInt(1)
	return res
}

// RemoveDiagOne is the inverse of ConcatenateDiagOne: it strips the
// trailing row and column, returning the original block.
func RemoveDiagOne(a Matrix) Matrix {
	rows, cols := a.Rows()-1, a.Cols()-1
	res := NewZeroMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			res[i][j] = new(big.Int).Set(a[i][j])
		}
	}
	return res
}

// ToVec flattens m row-major into a single Vector.
func (m Matrix) ToVec() Vector {
	res := make(Vector, 0, m.Rows()*m.Cols())
	for _, row := range m {
		res = append(res, row...)
	}
	return res
}
