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

package bigmat_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/sample"
)

// Structured samplers are rejection-sampled, so a modulus under which
// h0*h0^T (resp. gamma0*gamma0^T) happens to be singular just costs a
// retry; a reasonably large prime modulus keeps the retry count low
// for these small test dimensions.
var structuredTestModulo = big.NewInt(1000003)

func TestSampleHProducesARightInverse(t *testing.T) {
	dim, k := 2, 1
	bound := big.NewInt(5)
	rng := sample.NewUniform()

	hPr, h, err := bigmat.SampleH(dim, k, bound, structuredTestModulo, rng)
	assert.NoError(t, err)
	assert.Equal(t, dim+1, h.Rows())
	assert.Equal(t, dim+k+1, h.Cols())
	assert.Equal(t, dim+k+1, hPr.Rows())
	assert.Equal(t, dim+1, hPr.Cols())

	prod, err := h.Mul(hPr)
	assert.NoError(t, err)
	prod.ModInplace(structuredTestModulo)
	assert.Equal(t, bigmat.Identity(dim+1), prod)
}

func TestSampleHEntriesStayWithinBound(t *testing.T) {
	dim, k := 3, 2
	bound := big.NewInt(4)
	rng := sample.NewUniform()

	_, h, err := bigmat.SampleH(dim, k, bound, structuredTestModulo, rng)
	assert.NoError(t, err)

	h0 := bigmat.RemoveDiagOne(h)
	assert.NoError(t, h0.CheckBound(new(big.Int).Add(bound, big.NewInt(1))))
}

func TestSampleGammaProducesARightInverse(t *testing.T) {
	dim, k := 2, 2
	rng := sample.NewUniform()

	gammaPr, gamma, err := bigmat.SampleGamma(dim, k, structuredTestModulo, rng)
	assert.NoError(t, err)
	assert.Equal(t, dim+1, gamma.Rows())
	assert.Equal(t, dim+k+1, gamma.Cols())

	prod, err := gamma.Mul(gammaPr)
	assert.NoError(t, err)
	prod.ModInplace(structuredTestModulo)
	assert.Equal(t, bigmat.Identity(dim+1), prod)
}

func TestSampleGammaEntriesAreTernary(t *testing.T) {
	dim, k := 2, 2
	rng := sample.NewUniform()

	_, gamma, err := bigmat.SampleGamma(dim, k, structuredTestModulo, rng)
	assert.NoError(t, err)

	gamma0 := bigmat.RemoveDiagOne(gamma)
	for _, row := range gamma0 {
		for _, c := range row {
			assert.Contains(t, []int64{-1, 0, 1}, c.Int64())
		}
	}
}

func TestGetSkBoundScalesWithDimension(t *testing.T) {
	bound := big.NewInt(100)
	nSquare := new(big.Int).Exp(big.NewInt(10), big.NewInt(6), nil)

	small := bigmat.GetSkBound(2, bound, 40, nSquare)
	large := bigmat.GetSkBound(8, bound, 40, nSquare)

	assert.Equal(t, 1, large.Cmp(small))
}
