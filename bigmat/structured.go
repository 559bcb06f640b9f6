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

// maxSamplingRetries bounds the rejection loops in SampleH/SampleGamma.
// The source these are ported from retries forever; looping forever is
// not an option for a library call, and the per-iteration failure
// probability is bounded well away from 1, so a generous cap turns an
// astronomically unlikely run of failures into a reported error instead
// of a hang.
const maxSamplingRetries = 1 << 16

// ErrSamplingExhausted is returned by SampleH/SampleGamma when no
// acceptable candidate was found within maxSamplingRetries attempts.
var ErrSamplingExhausted = errors.New("sampling: exhausted retry budget")

// sampleOneSidedInverse is the shared procedure behind SampleH and
// SampleGamma: draw a dim x (dim+k) matrix h0 with entries in
// [-bound, bound], reject it unless its transpose has full row rank
// dim modulo modulo and h0*h0^T is invertible modulo modulo, derive
// the pseudo-right-inverse h0' = h0^T * (h0*h0^T)^-1, blind it with a
// random element of h0's null space, and pad both matrices with a
// trailing diagonal 1.
func sampleOneSidedInverse(dim, k int, bound, modulo *big.Int, rng sample.Sampler) (hPr, h Matrix, err error) {
	for attempt := 0; attempt < maxSamplingRetries; attempt++ {
		h0, err := RandomSigned(dim, dim+k, bound, rng)
		if err != nil {
			return nil, nil, errors.Wrap(err, "sampling h0")
		}
		h0Mod := h0.Mod(modulo)
		ht := h0Mod.Transpose()

		if _, _, rank := ht.Copy().Echelon(modulo); rank != dim-1 {
			continue
		}

		g, err := h0Mod.Mul(ht)
		if err != nil {
			return nil, nil, errors.Wrap(err, "computing h0 * h0^T")
		}
		g.ModInplace(modulo)

		gInv, err := g.ModInverse(modulo)
		if err != nil {
			continue
		}

		h0Pr, err := ht.Mul(gInv)
		if err != nil {
			return nil, nil, errors.Wrap(err, "computing h0^T * (h0*h0^T)^-1")
		}
		h0Pr.ModInplace(modulo)

		nullBasis, err := h0Mod.NullSpace(modulo)
		if err != nil {
			// h0 has full row rank dim, so its null space has
			// dimension k and always exists; treat failure here as
			// a sampling rejection rather than a hard error.
			continue
		}
		if nullBasis.Cols() > 0 {
			blind, err := NewRandomMatrix(nullBasis.Cols(), dim, modulo, rng)
			if err != nil {
				return nil, nil, errors.Wrap(err, "sampling null-space blinding factor")
			}
			mask, err := nullBasis.Mul(blind)
			if err != nil {
				return nil, nil, errors.Wrap(err, "applying null-space blinding factor")
			}
			h0Pr, err = h0Pr.Add(mask)
			if err != nil {
				return nil, nil, errors.Wrap(err, "blinding h0'")
			}
			h0Pr.ModInplace(modulo)
		}

		return ConcatenateDiagOne(h0Pr), ConcatenateDiagOne(h0), nil
	}

	return nil, nil, ErrSamplingExhausted
}

// SampleH produces h in Z^{dim x (dim+k)} with small entries in
// [-bound, bound] and a right-inverse h' in Z^{(dim+k) x dim} with
// h * h' ≡ I_dim (mod modulo), both padded with a trailing diagonal 1.
// Return order is (h', h), the convention the protocol layer consumes.
func SampleH(dim, k int, bound, modulo *big.Int, rng sample.Sampler) (hPr, h Matrix, err error) {
	return sampleOneSidedInverse(dim, k, bound, modulo, rng)
}

// SampleGamma is SampleH specialized to ternary {-1, 0, +1} entries
// (bound = 1), matching spec's construction of γ by drawing uniform in
// [0, 3) and subtracting 1. Returns (γ', γ).
func SampleGamma(dim, k int, modulo *big.Int, rng sample.Sampler) (gammaPr, gamma Matrix, err error) {
	return sampleOneSidedInverse(dim, k, big.NewInt(1), modulo, rng)
}

// GetSkBound computes the statistical-security bound for DCR secret
// keys: 2^(λ+dim+1) * (bound + dim*⌊√dim⌋*bound)^(dim-1) * dim * N².
// ⌊√dim⌋ is computed with integer (not real-valued) square root, which
// must be preserved exactly for security-parameter reproducibility.
func GetSkBound(dim int, bound *big.Int, lambda int, nSquare *big.Int) *big.Int {
	sqrtDim := new(big.Int).Sqrt(big.NewInt(int64(dim)))

	base := new(big.Int).Mul(big.NewInt(int64(dim)), sqrtDim)
	base.Mul(base, bound)
	base.Add(base, bound)

	res := new(big.Int).Exp(base, big.NewInt(int64(dim-1)), nil)
	res.Mul(res, new(big.Int).Lsh(big.NewInt(1), uint(lambda+dim+1)))
	res.Mul(res, big.NewInt(int64(dim)))
	res.Mul(res, nSquare)

	return res
}
