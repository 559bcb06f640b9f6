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

// Package ipfe implements composite-modulus inner-product functional
// encryption over a dual-basis (D, D⁻¹, D⊥) pairing-vector-space
// construction: encryption places a message in a "real" subspace that
// a matching key can pair against, while D⊥ absorbs fresh randomness
// into a complementary subspace every valid key is blind to. qfe
// builds three IPFE instances on top of this package: one for each
// half of a quadratic form and one for its helper vector.
package ipfe

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/internal/dlog"
	"github.com/xlab-crypto/mhqfe/internal/modexp"
	"github.com/xlab-crypto/mhqfe/internal/xerrors"
	"github.com/xlab-crypto/mhqfe/sample"
)

// MasterKey holds the dual-basis secret state for one IPFE instance
// over message dimension Dim, with Q extra "a-vector" coordinates.
// Total = Dim + 2 + Q is the size of the square basis matrix D; the
// last two of its dual columns are reserved as the hiding subspace
// D_perp encryption blinds into.
type MasterKey struct {
	Dim, Q int

	D     bigmat.Matrix // Total x Total, the secret basis
	DInv  bigmat.Matrix // Total x (Q+Dim), the "real" dual columns
	DPerp bigmat.Matrix // Total x 2, the hiding dual columns

	// UMat is the Dim x Q matrix U; A is the length-Q vector a.
	UMat bigmat.Matrix
	A    bigmat.Vector
}

// Setup generates a fresh IPFE master key for message dimension dim
// and helper-vector dimension q, over grp's delta modulus.
func Setup(grp *group.Group, dim, q int, rng sample.Sampler) (*MasterKey, error) {
	total := dim + 2 + q

	var d, dInvFull bigmat.Matrix
	for {
		var err error
		d, err = bigmat.Random(total, total, grp.Delta, rng)
		if err != nil {
			return nil, errors.Wrap(err, "error sampling IPFE basis matrix")
		}
		dInvFull, err = d.ModInverse(grp.Delta)
		if _, deficient := err.(*bigmat.ErrRankDeficient); deficient {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "error inverting IPFE basis matrix")
		}
		break
	}

	dInv := bigmat.NewZeroMatrix(total, q+dim)
	dPerp := bigmat.NewZeroMatrix(total, 2)
	for i := 0; i < total; i++ {
		for j := 0; j < q+dim; j++ {
			dInv[i][j] = new(big.Int).Set(dInvFull.Get(i, j))
		}
		for j := 0; j < 2; j++ {
			dPerp[i][j] = new(big.Int).Set(dInvFull.Get(i, q+dim+j))
		}
	}

	uMat, err := bigmat.Random(dim, q, grp.Delta, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling IPFE U matrix")
	}
	a, err := bigmat.NewRandomVector(q, grp.Delta, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling IPFE a vector")
	}

	return &MasterKey{
		Dim:   dim,
		Q:     q,
		D:     d,
		DInv:  dInv,
		DPerp: dPerp,
		UMat:  uMat,
		A:     a,
	}, nil
}

// DeriveKey derives a functional key for the inner product with y
// (length Dim): u = (-Uᵀy ‖ y ‖ 0, 0), w = u·D mod δ, sk_f = g^w.
func DeriveKey(mk *MasterKey, y bigmat.Vector, grp *group.Group) (bigmat.Vector, error) {
	if len(y) != mk.Dim {
		return nil, xerrors.ErrDimensionMismatch
	}

	uLeft, err := mk.UMat.Transpose().MulVec(y)
	if err != nil {
		return nil, errors.Wrap(err, "error computing IPFE keygen projection")
	}
	uLeft = uLeft.Apply(func(x *big.Int) *big.Int { return new(big.Int).Neg(x) })
	uLeft.ModInplace(grp.Delta)

	u := uLeft.Concat(y).Concat(bigmat.NewVector([]*big.Int{big.NewInt(0), big.NewInt(0)}))

	uMatRow, err := bigmat.NewMatrix([]bigmat.Vector{u})
	if err != nil {
		return nil, err
	}
	w, err := uMatRow.Mul(mk.D)
	if err != nil {
		return nil, errors.Wrap(err, "error computing IPFE keygen basis product")
	}
	w.ModInplace(grp.Delta)

	skF := w.GetRow(0).Apply(func(x *big.Int) *big.Int {
		return modexp.ModExp(grp.G, x, grp.NSq)
	})

	return skF, nil
}

// Encrypt encrypts x (length Dim) under mk. If multMu is set, x is
// first scaled by grp.Mu, lifting the later decryption's discrete-log
// target by that factor.
func Encrypt(mk *MasterKey, x bigmat.Vector, grp *group.Group, multMu bool, rng sample.Sampler) (bigmat.Vector, error) {
	if len(x) != mk.Dim {
		return nil, xerrors.ErrDimensionMismatch
	}

	rPrime, err := rng.Sample(grp.Delta)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling IPFE encryption randomness")
	}
	r := new(big.Int).Mul(grp.N, big.NewInt(2))
	r.Mul(r, rPrime)

	randVec, err := bigmat.NewRandomVector(2, grp.Delta, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling IPFE hiding randomness")
	}
	perpTerm, err := mk.DPerp.MulVec(randVec)
	if err != nil {
		return nil, err
	}
	perpTerm.ModInplace(grp.Delta)

	xTilde := x.Copy()
	if multMu {
		xTilde = xTilde.MulScalar(grp.Mu)
	}
	xTilde.ModInplace(grp.Delta)

	upper := mk.A.MulScalar(r)
	upper.ModInplace(grp.Delta)

	uA, err := mk.UMat.MulVec(mk.A)
	if err != nil {
		return nil, err
	}
	lower := uA.MulScalar(r).Add(xTilde)
	lower.ModInplace(grp.Delta)

	preVec := upper.Concat(lower)
	ct, err := mk.DInv.MulVec(preVec)
	if err != nil {
		return nil, errors.Wrap(err, "error computing IPFE ciphertext")
	}
	ct = ct.Add(perpTerm)
	ct.ModInplace(grp.Delta)

	return ct, nil
}

// Decrypt computes ∏ skF[i]^{ct[i]} mod N² and, if solveDL is set,
// runs a small-range discrete-log solver to extract the numeric inner
// product ⟨x,y⟩ (scaled by mu if the ciphertext was encrypted with
// multMu).
func Decrypt(skF, ct bigmat.Vector, grp *group.Group, solveDL bool, dlBound *big.Int) (*big.Int, error) {
	if len(skF) != len(ct) {
		return nil, xerrors.ErrDimensionMismatch
	}

	out := big.NewInt(1)
	for i, c := range ct {
		t := modexp.ModExp(skF[i], c, grp.NSq)
		out.Mul(out, t)
		out.Mod(out, grp.NSq)
	}

	if solveDL {
		calc, err := dlog.NewCalc().InGroup(grp.NSq, grp.N)
		if err != nil {
			return nil, errors.Wrap(err, "error configuring IPFE discrete logarithm search")
		}
		x, err := calc.WithBound(dlBound).WithNeg().BabyStepGiantStep(out, grp.G)
		if err != nil {
			return nil, errors.Wrap(err, "error solving IPFE discrete logarithm")
		}
		out = x
		out.Mod(out, grp.Delta)
	}

	return out, nil
}
