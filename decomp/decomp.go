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

// Package decomp implements the base-B digit decomposition codec the
// multi-hop protocol layer uses to keep intermediate ciphertext and
// key entries bounded across hops: instead of carrying a single large
// coordinate forward, a value is split into L digit layers of base B,
// each of which stays small enough to re-encrypt, and is recomposed
// only at the point it is consumed.
package decomp

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/bigmat"
)

// Decomp is a fixed (base, length) digit codec. It is pure and keyed
// only by these two parameters.
type Decomp struct {
	Base *big.Int
	Len  int
}

// New returns a Decomp with the given base and digit length. Callers
// must pick Len large enough that Base^Len exceeds every value the
// codec will be asked to decompose (e.g. the working modulus δ),
// otherwise Vector/VectorInv will not round-trip.
func New(base *big.Int, length int) *Decomp {
	return &Decomp{Base: base, Len: length}
}

// digits returns v's base-Base digits, least-significant first,
// padded/truncated to exactly d.Len entries.
func (d *Decomp) digits(v *big.Int) []*big.Int {
	out := make([]*big.Int, d.Len)
	rem := new(big.Int).Set(v)
	for i := 0; i < d.Len; i++ {
		digit := new(big.Int)
		rem.DivMod(rem, d.Base, digit)
		out[i] = digit
	}
	return out
}

// recompose is the inverse of digits: sum_i digits[i] * Base^i.
func (d *Decomp) recompose(digits []*big.Int) *big.Int {
	res := big.NewInt(0)
	pow := big.NewInt(1)
	for _, digit := range digits {
		res.Add(res, new(big.Int).Mul(digit, pow))
		pow.Mul(pow, d.Base)
	}
	return res
}

// Vector decomposes every coordinate of v into d.Len base-d.Base
// digits, concatenating them coordinate-major: the result has length
// len(v)*d.Len, with coordinate i's digits occupying
// [i*d.Len, (i+1)*d.Len).
func (d *Decomp) Vector(v bigmat.Vector) bigmat.Vector {
	res := make(bigmat.Vector, 0, len(v)*d.Len)
	for _, vi := range v {
		res = append(res, d.digits(vi)...)
	}
	return res
}

// VectorInv is the inverse of Vector: it recomposes each consecutive
// block of d.Len entries back into a single coordinate. It returns an
// error if vHat's length is not a multiple of d.Len.
func (d *Decomp) VectorInv(vHat bigmat.Vector) (bigmat.Vector, error) {
	if len(vHat)%d.Len != 0 {
		return nil, errors.New("decomp: decomposed vector length is not a multiple of the digit length")
	}
	n := len(vHat) / d.Len
	res := make(bigmat.Vector, n)
	for i := 0; i < n; i++ {
		res[i] = d.recompose(vHat[i*d.Len : (i+1)*d.Len])
	}
	return res, nil
}

// MatrixCol expands every column of m into d.Len columns, the l-th
// holding m's original column scaled by Base^l. A matching-length
// digit-decomposed vector x̂ = Vector(x) then satisfies
// MatrixCol(m) · x̂ ≡ m · x, since dotting column block j against x̂'s
// block j sums digit_l(x_j) * Base^l * m[:,j] over l, which recomposes
// to x_j * m[:,j].
func (d *Decomp) MatrixCol(m bigmat.Matrix) bigmat.Matrix {
	rows, cols := m.Rows(), m.Cols()
	res := bigmat.NewZeroMatrix(rows, cols*d.Len)
	for j := 0; j < cols; j++ {
		pow := big.NewInt(1)
		for l := 0; l < d.Len; l++ {
			for i := 0; i < rows; i++ {
				res[i][j*d.Len+l] = new(big.Int).Mul(m.Get(i, j), pow)
			}
			pow = new(big.Int).Mul(pow, d.Base)
		}
	}
	return res
}

// MatrixColInv is the structural inverse of MatrixCol: it recovers m
// from its expansion by reading back the l=0 (unscaled) layer of each
// column block.
func (d *Decomp) MatrixColInv(mHat bigmat.Matrix) (bigmat.Matrix, error) {
	if mHat.Cols()%d.Len != 0 {
		return nil, errors.New("decomp: expanded matrix column count is not a multiple of the digit length")
	}
	cols := mHat.Cols() / d.Len
	res := bigmat.NewZeroMatrix(mHat.Rows(), cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < mHat.Rows(); i++ {
			res[i][j] = new(big.Int).Set(mHat.Get(i, j*d.Len))
		}
	}
	return res, nil
}

// MatrixRow is MatrixCol's row-dual: it expands every row of m into
// d.Len rows, the l-th holding m's original row scaled by Base^l.
func (d *Decomp) MatrixRow(m bigmat.Matrix) bigmat.Matrix {
	rows, cols := m.Rows(), m.Cols()
	res := bigmat.NewZeroMatrix(rows*d.Len, cols)
	for i := 0; i < rows; i++ {
		pow := big.NewInt(1)
		for l := 0; l < d.Len; l++ {
			for j := 0; j < cols; j++ {
				res[i*d.Len+l][j] = new(big.Int).Mul(m.Get(i, j), pow)
			}
			pow = new(big.Int).Mul(pow, d.Base)
		}
	}
	return res
}

// MatrixRowInv is the structural inverse of MatrixRow.
func (d *Decomp) MatrixRowInv(mHat bigmat.Matrix) (bigmat.Matrix, error) {
	if mHat.Rows()%d.Len != 0 {
		return nil, errors.New("decomp: expanded matrix row count is not a multiple of the digit length")
	}
	rows := mHat.Rows() / d.Len
	res := bigmat.NewZeroMatrix(rows, mHat.Cols())
	for i := 0; i < rows; i++ {
		res[i] = mHat.GetRow(i * d.Len).Copy()
	}
	return res, nil
}

// VectorPowExp raises base to each of v's entries modulo modulo,
// producing the in-exponent representation a decryption step needs
// when it must recompose a digit-decomposed value that lives in an
// exponent rather than in the clear.
func (d *Decomp) VectorPowExp(base *big.Int, v bigmat.Vector, modulo *big.Int) bigmat.Vector {
	return v.Apply(func(vi *big.Int) *big.Int {
		return new(big.Int).Exp(base, vi, modulo)
	})
}
