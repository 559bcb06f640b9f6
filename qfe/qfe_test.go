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

package qfe_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/qfe"
	"github.com/xlab-crypto/mhqfe/sample"
)

func setupTestGroup(t *testing.T) (*group.Group, sample.Sampler) {
	rng := sample.NewUniform()
	grp, err := group.Setup(10, rng)
	assert.NoError(t, err)
	return grp, rng
}

// flatten row-major, matching DeriveKey's expectation for f.
func flattenIdentity(n int) bigmat.Vector {
	f := make(bigmat.Vector, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				f = append(f, big.NewInt(1))
			} else {
				f = append(f, big.NewInt(0))
			}
		}
	}
	return f
}

func TestQFEIdentityFormRecoversDotProduct(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(1)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(3)})

	ct, err := qfe.Encrypt(mk, x, y, grp, rng)
	assert.NoError(t, err)

	f := flattenIdentity(dim + 1)
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(10))
	res, err := qfe.Decrypt(fk, ct, dim, q, grp, dlBound)
	assert.NoError(t, err)

	// x.y = 2*1 + 1*3 = 5, scaled by mu, reduced mod N.
	want := new(big.Int).Mul(grp.Mu, big.NewInt(5))
	want.Mod(want, grp.N)
	assert.Equal(t, want, res)
}

func TestQFEDegenerateFormIsZero(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(0)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(0), big.NewInt(3)})

	ct, err := qfe.Encrypt(mk, x, y, grp, rng)
	assert.NoError(t, err)

	f := flattenIdentity(dim + 1)
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(10))
	res, err := qfe.Decrypt(fk, ct, dim, q, grp, dlBound)
	assert.NoError(t, err)

	// x.y = 2*0 + 0*3 = 0.
	assert.Equal(t, big.NewInt(0), res)
}

func TestQFEGeneralBilinearFormMatchesDirectEvaluation(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(3), big.NewInt(5)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(7)})
	ct, err := qfe.Encrypt(mk, x, y, grp, rng)
	assert.NoError(t, err)

	// f is not diagonal, exercising the off-diagonal cross terms that a
	// per-coordinate x/y reconstruction would have hidden no worse than
	// the diagonal case, but a genuine reduction over CTh must still
	// get right: f(x,y) = 2*x0*y0 + 3*x0*y1 - x1*y0 + x1*y1.
	f := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(3), big.NewInt(-1), big.NewInt(1)})
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(400))
	res, err := qfe.Decrypt(fk, ct, dim, q, grp, dlBound)
	assert.NoError(t, err)

	// 2*3*2 + 3*3*7 - 5*2 + 5*7 = 12 + 63 - 10 + 35 = 100.
	want := new(big.Int).Mul(grp.Mu, big.NewInt(100))
	want.Mod(want, grp.N)
	assert.Equal(t, want, res)
}

// TestQFEFunctionalKeyLeavesCoordinatesUnrecoverable guards against a
// regression to reconstructing x and y coordinate by coordinate: sk_f,
// the pair of linear keys over CTx and CTy, must decrypt to the
// group identity regardless of the ciphertext, since it carries no
// information about f by construction.
func TestQFEFunctionalKeyLeavesCoordinatesUnrecoverable(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(9), big.NewInt(4)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(6), big.NewInt(1)})
	_, err = qfe.Encrypt(mk, x, y, grp, rng)
	assert.NoError(t, err)

	f := flattenIdentity(dim + 1)
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	skFx, skFy, _, err := qfe.DivideVectorForFunctionalKey(fk, dim, q)
	assert.NoError(t, err)

	one := big.NewInt(1)
	for _, c := range skFx {
		assert.Equal(t, one, c)
	}
	for _, c := range skFy {
		assert.Equal(t, one, c)
	}
}

// TestQFEDecryptionConsultsHelperCiphertext guards against the
// reduction key being a disguised no-op: tampering with CTh alone,
// leaving CTx and CTy untouched, must break decryption, proving the
// cross-term cancellation actually runs through CTh rather than
// recovering x and y directly from CTx and CTy.
func TestQFEDecryptionConsultsHelperCiphertext(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(2), big.NewInt(1)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(3)})
	ct, err := qfe.Encrypt(mk, x, y, grp, rng)
	assert.NoError(t, err)

	f := flattenIdentity(dim + 1)
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	dlBound := new(big.Int).Mul(grp.Mu, big.NewInt(10))
	_, err = qfe.Decrypt(fk, ct, dim, q, grp, dlBound)
	assert.NoError(t, err)

	tampered := &qfe.Ciphertext{CTx: ct.CTx, CTy: ct.CTy, CTh: ct.CTh.Copy()}
	tampered.CTh[0] = new(big.Int).Add(tampered.CTh[0], big.NewInt(1))

	_, err = qfe.Decrypt(fk, tampered, dim, q, grp, dlBound)
	assert.Error(t, err)
}

func TestQFEEncryptRejectsWrongDimension(t *testing.T) {
	grp, rng := setupTestGroup(t)

	mk, err := qfe.Setup(grp, 2, 3, rng)
	assert.NoError(t, err)

	x := bigmat.NewVector([]*big.Int{big.NewInt(1)})
	y := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)})
	_, err = qfe.Encrypt(mk, x, y, grp, rng)
	assert.Error(t, err)
}

func TestDivideVectorForFunctionalKeyRoundTrip(t *testing.T) {
	grp, rng := setupTestGroup(t)

	dim, q := 1, 2
	mk, err := qfe.Setup(grp, dim, q, rng)
	assert.NoError(t, err)

	f := flattenIdentity(dim + 1)
	fk, err := qfe.DeriveKey(mk, f, grp)
	assert.NoError(t, err)

	skFx, skFy, skRed, err := qfe.DivideVectorForFunctionalKey(fk, dim, q)
	assert.NoError(t, err)
	assert.Len(t, skFx, dim+1+2+q)
	assert.Len(t, skFy, dim+1+2+q)
	assert.NotEmpty(t, skRed)

	_, _, _, err = qfe.DivideVectorForFunctionalKey(fk[:len(fk)-1], dim, q)
	assert.Error(t, err)
}
