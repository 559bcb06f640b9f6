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

package protocol_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/dcr"
	"github.com/xlab-crypto/mhqfe/decomp"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/protocol"
	"github.com/xlab-crypto/mhqfe/qfe"
	"github.com/xlab-crypto/mhqfe/sample"
)

func setupTestGroup(t *testing.T) (*group.Group, sample.Sampler) {
	rng := sample.NewUniform()
	grp, err := group.Setup(10, rng)
	assert.NoError(t, err)
	return grp, rng
}

func TestEncInitRoundTripsThroughDCR(t *testing.T) {
	grp, rng := setupTestGroup(t)

	skBound := new(big.Int).Lsh(big.NewInt(1), 20)
	dcrSk, dcrPk, err := dcr.Setup(2, skBound, grp, rng)
	assert.NoError(t, err)

	gammaRight := bigmat.Identity(2)
	x := bigmat.NewVector([]*big.Int{big.NewInt(9)})

	ct, err := protocol.EncInit(dcrPk, gammaRight, x, grp, rng)
	assert.NoError(t, err)

	y := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(1)})
	fk, err := dcr.DeriveKey(dcrSk, y)
	assert.NoError(t, err)

	res, err := dcr.Decrypt(ct, y, fk, grp)
	assert.NoError(t, err)

	// x1 = [9, 1], gammaRight = I, so the encrypted vector is [9, 1];
	// <y, [9,1]> = 9+1 = 10.
	assert.Equal(t, big.NewInt(10), res)
}

// hRightRestrict builds a rows x cols matrix whose top cols x cols
// block is the identity and whose remaining rows are zero, used below
// to fold each qfe encoding matrix's native width down to a common
// intermediate width without altering its values.
func hRightRestrict(rows, cols int) bigmat.Matrix {
	m := bigmat.NewZeroMatrix(rows, cols)
	for i := 0; i < cols && i < rows; i++ {
		m[i][i] = big.NewInt(1)
	}
	return m
}

func TestKeygenSwitchAndKeyswitchRecoverLinearMap(t *testing.T) {
	grp, rng := setupTestGroup(t)

	qeSK, err := qfe.Setup(grp, 0, 1, rng)
	assert.NoError(t, err)

	ex, ey, eh := qfe.EncMatrixSameXY(qeSK)
	assert.Equal(t, 2, ex.Cols())
	assert.Equal(t, 2, ey.Cols())
	assert.Equal(t, 3, eh.Cols())

	// Fold every component down to a common width of 2 columns: x and
	// y pass through unchanged (already width 2), h drops its third
	// column.
	hRightX := bigmat.Identity(2)
	hRightY := bigmat.Identity(2)
	hRightH := hRightRestrict(3, 2)
	gammaLeft := bigmat.Identity(2)

	skBound := new(big.Int).Lsh(big.NewInt(1), 20)
	dcrSk, _, err := dcr.Setup(2, skBound, grp, rng)
	assert.NoError(t, err)

	dcp := decomp.New(new(big.Int).Add(grp.Delta, big.NewInt(1)), 1)

	sk, skd, err := protocol.KeygenSwitch(qeSK, dcrSk, hRightX, hRightY, hRightH, gammaLeft, dcp, grp)
	assert.NoError(t, err)

	m := bigmat.NewVector([]*big.Int{big.NewInt(3), big.NewInt(5)})
	dcrPk := dcrSk.Apply(func(x *big.Int) *big.Int {
		return new(big.Int).Exp(grp.G, x, grp.NSq)
	})
	ctIn, err := dcr.Encrypt(dcrPk, m, grp, rng)
	assert.NoError(t, err)

	ct, err := protocol.Keyswitch(ctIn, sk, skd, dcp, grp)
	assert.NoError(t, err)

	wantX, err := ex.MulVec(m)
	assert.NoError(t, err)
	wantX.ModInplace(grp.N)
	assert.Equal(t, wantX, ct.CTx)

	wantY, err := ey.MulVec(m)
	assert.NoError(t, err)
	wantY.ModInplace(grp.N)
	assert.Equal(t, wantY, ct.CTy)

	ehRestricted, err := eh.Mul(hRightH)
	assert.NoError(t, err)
	wantH, err := ehRestricted.MulVec(m)
	assert.NoError(t, err)
	wantH.ModInplace(grp.N)
	assert.Equal(t, wantH, ct.CTh)
}

func TestKeygenEndAndDecEndRecoverBilinearMonomials(t *testing.T) {
	grp, rng := setupTestGroup(t)

	qeSK, err := qfe.Setup(grp, 1, 2, rng)
	assert.NoError(t, err)

	hmLeft := bigmat.ConcatenateDiagOne(bigmat.Identity(2))
	f := bigmat.Identity(4)

	fkMat, err := protocol.KeygenEnd(qeSK, hmLeft, f, grp)
	assert.NoError(t, err)
	assert.Equal(t, 4, fkMat.Rows())

	x := bigmat.NewVector([]*big.Int{big.NewInt(3), big.NewInt(5)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(7)})
	ct, err := qfe.Encrypt(qeSK, x, y, grp, rng)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(40))
	res, err := protocol.DecEnd(ct, fkMat, qeSK.Dim, qeSK.Q, grp, dlBound)
	assert.NoError(t, err)
	assert.Len(t, res, 4)

	want := []int64{3 * 2, 3 * 7, 5 * 2, 5 * 7}
	for i, w := range want {
		expected := new(big.Int).Mul(grp.Mu, big.NewInt(w))
		expected.Mod(expected, grp.N)
		assert.Equal(t, expected, res[i], "monomial %d", i)
	}
}

func TestGenerateHopMatricesFoldToCommonWidth(t *testing.T) {
	grp, rng := setupTestGroup(t)

	qeSK, err := qfe.Setup(grp, 0, 1, rng)
	assert.NoError(t, err)
	ex, ey, eh := qfe.EncMatrixSameXY(qeSK)

	outDim := 1
	bound := big.NewInt(8)
	hRightX, hRightY, hRightH, err := protocol.GenerateHopMatrices(qeSK, outDim, bound, grp.Delta, rng)
	assert.NoError(t, err)

	assert.Equal(t, ex.Cols(), hRightX.Rows())
	assert.Equal(t, outDim+1, hRightX.Cols())
	assert.Equal(t, ey.Cols(), hRightY.Rows())
	assert.Equal(t, outDim+1, hRightY.Cols())
	assert.Equal(t, eh.Cols(), hRightH.Rows())
	assert.Equal(t, outDim+1, hRightH.Cols())
}

func TestGenerateGammaMatricesSatisfyLeftRightIdentity(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, k := 1, 2
	gammaRight, gammaLeft, err := protocol.GenerateGammaMatrices(dim, k, grp.Delta, rng)
	assert.NoError(t, err)
	assert.Equal(t, dim+k+1, gammaRight.Rows())
	assert.Equal(t, dim+1, gammaRight.Cols())
	assert.Equal(t, dim+1, gammaLeft.Rows())
	assert.Equal(t, dim+k+1, gammaLeft.Cols())

	prod, err := gammaLeft.Mul(gammaRight)
	assert.NoError(t, err)
	prod.ModInplace(grp.Delta)
	assert.Equal(t, bigmat.Identity(dim+1), prod)
}

func TestComputeSkBoundMatchesStructuredSamplerBound(t *testing.T) {
	grp, _ := setupTestGroup(t)
	bound := big.NewInt(100)

	got := protocol.ComputeSkBound(3, bound, 40, grp)
	want := bigmat.GetSkBound(3, bound, 40, grp.NSq)
	assert.Equal(t, want, got)
}

// evalQuadraticRef is the independent plaintext oracle a multi-hop
// composition is checked against: f is the row-major flattening of a
// len(x) x len(y) matrix, and the result is sum_i sum_j f[i*len(y)+j] * x[i] * y[j].
func evalQuadraticRef(x, y, f bigmat.Vector) *big.Int {
	out := big.NewInt(0)
	ylen := len(y)
	for i := range x {
		for j := range y {
			term := new(big.Int).Mul(f[i*ylen+j], x[i])
			term.Mul(term, y[j])
			out.Add(out, term)
		}
	}
	return out
}

func TestMultiHopComposesLikeSequentialQuadraticEvaluation(t *testing.T) {
	grp, rng := setupTestGroup(t)

	// A single QFE hop evaluating f(x, y) = sum f_ij x_i y_j must agree
	// with the plaintext reference evaluator, matching the way chained
	// hops are expected to compose under repeated quadratic evaluation.
	qeSK, err := qfe.Setup(grp, 1, 2, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(3), big.NewInt(5)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(7)})
	ct, err := qfe.Encrypt(qeSK, x, y, grp, rng)
	assert.NoError(t, err)

	f := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(1)})
	fk, err := qfe.DeriveKey(qeSK, f, grp)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(200))
	got, err := qfe.Decrypt(fk, ct, qeSK.Dim, qeSK.Q, grp, dlBound)
	assert.NoError(t, err)

	want := evalQuadraticRef(x, y, f)
	wantMu := new(big.Int).Mul(grp.Mu, want)
	wantMu.Mod(wantMu, grp.N)
	assert.Equal(t, wantMu, got)
}

func TestSetupRejectsShortDimVec(t *testing.T) {
	grp, rng := setupTestGroup(t)

	skBound := new(big.Int).Lsh(big.NewInt(1), 20)
	_, err := protocol.Setup([]int{1}, 0, 1, skBound, grp, rng)
	assert.Error(t, err)
}

func TestSetupIsDeterministicUnderFixedSeed(t *testing.T) {
	grp, err := group.Setup(10, sample.NewUniform())
	assert.NoError(t, err)

	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	skBound := new(big.Int).Lsh(big.NewInt(1), 20)
	dimVec := []int{1, 1}

	mk1, err := protocol.Setup(dimVec, 0, 1, skBound, grp, sample.NewUniformDet(&key))
	assert.NoError(t, err)
	mk2, err := protocol.Setup(dimVec, 0, 1, skBound, grp, sample.NewUniformDet(&key))
	assert.NoError(t, err)

	assert.Equal(t, mk1.DCRSk, mk2.DCRSk)
	assert.Equal(t, mk1.DCRPk, mk2.DCRPk)
	assert.Equal(t, mk1.QEInit.MKx.D, mk2.QEInit.MKx.D)
	assert.Equal(t, mk1.QEEnd.MKh.A, mk2.QEEnd.MKh.A)
}
