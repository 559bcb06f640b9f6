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

// Package bigmat implements dense vector and matrix arithmetic over
// Z/mZ for an arbitrary (possibly composite) modulus m, as needed by the
// multi-hop quadratic FE pipeline: modular inner products, tensor
// products, echelon reduction tolerant of non-invertible composite
// pivots, and the structured block concatenations the protocol layer
// uses to glue ciphertexts and keys of different hops together.
package bigmat

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/sample"
)

// Vector wraps a slice of *big.Int elements.
type Vector []*big.Int

// NewVector returns a new Vector instance.
func NewVector(coordinates []*big.Int) Vector {
	return Vector(coordinates)
}

// NewRandomVector returns a new Vector instance of length l with
// entries sampled uniformly from [0, bound) by the provided
// sample.Sampler. Returns an error in case of sampling failure.
func NewRandomVector(l int, bound *big.Int, sampler sample.Sampler) (Vector, error) {
	vec := make([]*big.Int, l)
	var err error

	for i := 0; i < l; i++ {
		vec[i], err = sampler.Sample(bound)
		if err != nil {
			return nil, errors.Wrap(err, "error in random vector generation")
		}
	}

	return NewVector(vec), nil
}

// NewConstantVector returns a new Vector instance with all elements
// set to constant c.
func NewConstantVector(l int, c *big.Int) Vector {
	vec := make([]*big.Int, l)
	for i := 0; i < l; i++ {
		vec[i] = new(big.Int).Set(c)
	}

	return vec
}

// Copy creates a new vector with the same values of the entries.
func (v Vector) Copy() Vector {
	newVec := make(Vector, len(v))
	for i, c := range v {
		newVec[i] = new(big.Int).Set(c)
	}

	return newVec
}

// MulScalar multiplies vector v by a given scalar x. The result is
// returned in a new Vector.
func (v Vector) MulScalar(x *big.Int) Vector {
	res := make(Vector, len(v))
	for i, vi := range v {
		res[i] = new(big.Int).Mul(vi, x)
	}

	return res
}

// Mod performs the modulo operation on vector's elements, reducing
// every entry to [0, modulo). The result is returned in a new Vector.
func (v Vector) Mod(modulo *big.Int) Vector {
	newCoords := make([]*big.Int, len(v))
	for i, c := range v {
		newCoords[i] = new(big.Int).Mod(c, modulo)
	}

	return NewVector(newCoords)
}

// ModInplace reduces every entry of v to [0, modulo) in place.
func (v Vector) ModInplace(modulo *big.Int) {
	for i, c := range v {
		v[i] = new(big.Int).Mod(c, modulo)
	}
}

// AddIntInplace adds scalar k to every entry of v, in place.
func (v Vector) AddIntInplace(k *big.Int) {
	for i, c := range v {
		v[i] = new(big.Int).Add(c, k)
	}
}

// CheckBound checks whether the absolute values of all vector elements
// are strictly smaller than the provided bound. It returns an error if
// at least one element's absolute value is >= bound.
func (v Vector) CheckBound(bound *big.Int) error {
	abs := new(big.Int)
	for _, c := range v {
		abs.Abs(c)
		if abs.Cmp(bound) >= 0 {
			return errors.New("all coordinates of a vector should be smaller than bound")
		}
	}

	return nil
}

// Apply applies an element-wise function f to vector v. The result is
// returned in a new Vector.
func (v Vector) Apply(f func(*big.Int) *big.Int) Vector {
	res := make(Vector, len(v))
	for i, vi := range v {
		res[i] = f(vi)
	}

	return res
}

// Add adds vectors v and other. The result is returned in a new
// Vector of len(v). It panics if other is shorter than v; entries of
// other beyond len(v) are ignored, so a longer other is not reported
// as a mismatch.
func (v Vector) Add(other Vector) Vector {
	sum := make([]*big.Int, len(v))
	for i, c := range v {
		sum[i] = new(big.Int).Add(c, other[i])
	}

	return NewVector(sum)
}

// Sub subtracts vector other from v. The result is returned in a new
// Vector.
func (v Vector) Sub(other Vector) Vector {
	sub := make([]*big.Int, len(v))
	for i, c := range v {
		sub[i] = new(big.Int).Sub(c, other[i])
	}

	return sub
}

// Dot calculates the dot product (inner product) of vectors v and
// other. It returns an error if the vectors differ in length.
func (v Vector) Dot(other Vector) (*big.Int, error) {
	if len(v) != len(other) {
		return nil, errors.New("vectors should be of same length")
	}

	prod := big.NewInt(0)
	for i, c := range v {
		prod.Add(prod, new(big.Int).Mul(c, other[i]))
	}

	return prod, nil
}

// Tensor calculates the Kronecker (tensor) product of v and other,
// reduced modulo modulo: res[i*len(other)+j] = v[i] * other[j] mod modulo.
func (v Vector) Tensor(other Vector, modulo *big.Int) Vector {
	res := make(Vector, len(v)*len(other))
	for i, vi := range v {
		for j, oj := range other {
			val := new(big.Int).Mul(vi, oj)
			if modulo != nil {
				val.Mod(val, modulo)
			}
			res[i*len(other)+j] = val
		}
	}

	return res
}

// Concat returns a new vector formed by v followed by other.
func (v Vector) Concat(other Vector) Vector {
	res := make(Vector, 0, len(v)+len(other))
	res = append(res, v...)
	res = append(res, other...)

	return res
}

// String produces a string representation of a vector.
func (v Vector) String() string {
	vStr := ""
	for _, yi := range v {
		vStr = vStr + " " + yi.String()
	}
	return vStr
}
