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

// Package qfe implements quadratic functional encryption on top of
// ipfe: a ciphertext is a triple (CTx, CTy, CTh) carrying x and y on
// two independent IPFE instances plus a helper vector h that mixes
// each side's own masking-matrix projection of its plaintext with the
// other side's plaintext, and a functional key for a bilinear form f
// decrypts the triple into fᵀ(x⊗y)·μ without ever reconstructing x or
// y. This is the layer protocol chains across hops.
package qfe

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/internal/dlog"
	"github.com/xlab-crypto/mhqfe/internal/modexp"
	"github.com/xlab-crypto/mhqfe/internal/xerrors"
	"github.com/xlab-crypto/mhqfe/ipfe"
	"github.com/xlab-crypto/mhqfe/sample"
)

// MasterKey holds the three IPFE instances a QFE scheme is built from,
// plus the x-side and y-side masking matrices V and W. Dim is the base
// dimension: Encrypt's x and y each have length Dim+1 (the protocol
// layer is responsible for appending the homogenizing 1 before calling
// in), matching DeriveKey's f having length (Dim+1)².
type MasterKey struct {
	Dim, Q int

	MKx *ipfe.MasterKey
	MKy *ipfe.MasterKey
	MKh *ipfe.MasterKey

	// V and W are (Dim+1) x Q, with an invertible leading (Dim+1) x
	// (Dim+1) block. Encrypt uses them to derive the helper
	// ciphertext's blinding vectors r_x = Vᵀx and r_y = Wᵀy from the
	// plaintext itself rather than from independent randomness, which
	// is what lets DeriveKey solve back through V (or W) to place an
	// arbitrary bilinear form inside the helper ciphertext's reduction
	// key instead of the plaintext ever leaving CTx or CTy in the
	// clear.
	V, W bigmat.Matrix
}

func (mk *MasterKey) qfeLen() int {
	return mk.Dim + 1
}

// leadingBlock returns the first qfeLen columns of an qfeLen x q
// matrix as a square qfeLen x qfeLen matrix.
func leadingBlock(m bigmat.Matrix, qfeLen int) (bigmat.Matrix, error) {
	rows := make([]bigmat.Vector, qfeLen)
	for i := 0; i < qfeLen; i++ {
		rows[i] = m.GetRow(i)[:qfeLen].Copy()
	}
	return bigmat.NewMatrix(rows)
}

// sampleMaskingMatrix samples a qfeLen x q matrix whose leading
// qfeLen x qfeLen block is invertible mod modulo, rejection-sampling
// exactly like ipfe.Setup does for its basis matrix D.
func sampleMaskingMatrix(qfeLen, q int, modulo *big.Int, rng sample.Sampler) (bigmat.Matrix, error) {
	for {
		m, err := bigmat.Random(qfeLen, q, modulo, rng)
		if err != nil {
			return nil, err
		}

		lead, err := leadingBlock(m, qfeLen)
		if err != nil {
			return nil, err
		}
		if _, err := lead.ModInverse(modulo); err != nil {
			if _, deficient := err.(*bigmat.ErrRankDeficient); deficient {
				continue
			}
			return nil, err
		}

		return m, nil
	}
}

// Setup generates a fresh QFE master key: two IPFE instances of
// dimension Dim+1 for x and y, a third of dimension 2·Q·(Dim+1) for
// the helper vector h, and the x-side and y-side masking matrices V,
// W. q must be at least Dim+1, so that V and W (and therefore a
// functional key for an arbitrary (Dim+1)x(Dim+1) bilinear form) are
// invertible on their leading block.
func Setup(grp *group.Group, dim, q int, rng sample.Sampler) (*MasterKey, error) {
	qfeLen := dim + 1
	if q < qfeLen {
		return nil, xerrors.ErrInsufficientHelperWidth
	}

	mkX, err := ipfe.Setup(grp, qfeLen, q, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up QFE x-side IPFE instance")
	}
	mkY, err := ipfe.Setup(grp, qfeLen, q, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up QFE y-side IPFE instance")
	}
	hLen := 2 * q * qfeLen
	mkH, err := ipfe.Setup(grp, hLen, q, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up QFE helper IPFE instance")
	}

	v, err := sampleMaskingMatrix(qfeLen, q, grp.Delta, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling QFE x-side masking matrix")
	}
	w, err := sampleMaskingMatrix(qfeLen, q, grp.Delta, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling QFE y-side masking matrix")
	}

	return &MasterKey{Dim: dim, Q: q, MKx: mkX, MKy: mkY, MKh: mkH, V: v, W: w}, nil
}

// EncMatrixSameXY returns the three dual-basis matrices (one per IPFE
// instance) whose action on a column vector produces the corresponding
// share of an identity-encoded ciphertext. The protocol layer's
// composite encrypt-and-apply-f step multiplies a chosen column
// directly against these instead of invoking Encrypt, avoiding a
// redundant round of randomness sampling per hop.
func EncMatrixSameXY(sk *MasterKey) (ex, ey, eh bigmat.Matrix) {
	return sk.MKx.DInv, sk.MKy.DInv, sk.MKh.DInv
}

// Ciphertext is a QFE encryption of (x, y): CTx carries μ·x, CTy
// carries y, and CTh carries the helper vector h = (r_x⊗y) ‖ (μ·x⊗r_y)
// where r_x = Vᵀx and r_y = Wᵀy.
type Ciphertext struct {
	CTx bigmat.Vector
	CTy bigmat.Vector
	CTh bigmat.Vector
}

// Encrypt encrypts x and y (each length Dim+1) together. The helper
// ciphertext's blinding vectors r_x, r_y (each length Q) are the
// master key's masking matrices applied to the plaintext itself,
// rather than independent randomness, so that a functional key for f
// can be built entirely from f, V (or W), and the IPFE instances
// without needing to know r_x, r_y in advance.
func Encrypt(sk *MasterKey, x, y bigmat.Vector, grp *group.Group, rng sample.Sampler) (*Ciphertext, error) {
	qfeLen := sk.qfeLen()
	if len(x) != qfeLen || len(y) != qfeLen {
		return nil, xerrors.ErrDimensionMismatch
	}

	rX, err := sk.V.Transpose().MulVec(x)
	if err != nil {
		return nil, errors.Wrap(err, "error computing QFE x-side helper projection")
	}
	rX.ModInplace(grp.Delta)
	rY, err := sk.W.Transpose().MulVec(y)
	if err != nil {
		return nil, errors.Wrap(err, "error computing QFE y-side helper projection")
	}
	rY.ModInplace(grp.Delta)

	xMu := x.MulScalar(grp.Mu)
	xMu.ModInplace(grp.Delta)
	h := rX.Tensor(y, grp.Delta).Concat(xMu.Tensor(rY, grp.Delta))

	ctX, err := ipfe.Encrypt(sk.MKx, x, grp, true, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error encrypting QFE x side")
	}
	ctY, err := ipfe.Encrypt(sk.MKy, y, grp, false, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error encrypting QFE y side")
	}
	ctH, err := ipfe.Encrypt(sk.MKh, h, grp, false, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error encrypting QFE helper vector")
	}

	return &Ciphertext{CTx: ctX, CTy: ctY, CTh: ctH}, nil
}

func ctLen(qfeLen, q int) int {
	return qfeLen + 2 + q
}

func hCtLen(qfeLen, q int) int {
	return 2*q*qfeLen + 2 + q
}

// DeriveKey derives a functional key for the bilinear form encoded by
// f (length (Dim+1)², row-major over the (Dim+1)x(Dim+1) matrix F).
//
// A linear IPFE key over CTx (μx) and one over CTy (y) can only ever
// recover an affine combination of x and y separately; it cannot carry
// a bilinear term. So sk_f (the pair of linear keys over CTx and CTy)
// is derived for the zero functional and contributes nothing — its
// role is structural, matching §4.5's concatenation, not load-bearing.
// The entire bilinear form is instead placed in sk_red, the reduction
// key over CTh: since h's second half is μx⊗r_y with r_y = Wᵀy,
// reducing W to its invertible leading (Dim+1)x(Dim+1) block W0 lets
// sk_red's coefficient matrix C (Dim+1 x Q, zero past column Dim) be
// solved from C·Wᵀ = F via C = [F·(W0⁻¹)ᵀ | 0]. Decrypting CTh with
// that key then yields exactly μ·xᵀFy, because
// ⟨C, μx⊗r_y⟩ = μxᵀ(C·Wᵀ)y = μxᵀFy. The h⁻upper half (r_x⊗y, keyed by
// V) is left uncoupled from f; V still randomizes CTh's distribution,
// it just isn't needed to cover an arbitrary F once W alone can.
func DeriveKey(sk *MasterKey, f bigmat.Vector, grp *group.Group) (bigmat.Vector, error) {
	qfeLen := sk.qfeLen()
	if len(f) != qfeLen*qfeLen {
		return nil, xerrors.ErrDimensionMismatch
	}

	fMat, err := bigmat.NewMatrix(splitRows(f, qfeLen))
	if err != nil {
		return nil, err
	}

	w0, err := leadingBlock(sk.W, qfeLen)
	if err != nil {
		return nil, err
	}
	w0Inv, err := w0.ModInverse(grp.Delta)
	if err != nil {
		return nil, errors.Wrap(err, "error inverting QFE y-side masking block")
	}

	c, err := fMat.Mul(w0Inv.Transpose())
	if err != nil {
		return nil, errors.Wrap(err, "error folding bilinear form through QFE masking matrix")
	}
	c.ModInplace(grp.Delta)

	cLower := bigmat.NewZeroMatrix(qfeLen, sk.Q)
	for i := 0; i < qfeLen; i++ {
		for j := 0; j < qfeLen; j++ {
			cLower[i][j] = new(big.Int).Set(c.Get(i, j))
		}
	}
	cUpper := bigmat.NewZeroMatrix(sk.Q, qfeLen)

	hKeyVec := cUpper.ToVec().Concat(cLower.ToVec())
	hKeyVec.ModInplace(grp.Delta)
	skRed, err := ipfe.DeriveKey(sk.MKh, hKeyVec, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving QFE reduction key")
	}

	zero := bigmat.NewConstantVector(qfeLen, big.NewInt(0))
	skFx, err := ipfe.DeriveKey(sk.MKx, zero, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving QFE x-side functional key")
	}
	skFy, err := ipfe.DeriveKey(sk.MKy, zero, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving QFE y-side functional key")
	}

	fk := make(bigmat.Vector, 0, len(skFx)+len(skFy)+len(skRed))
	fk = append(fk, skFx...)
	fk = append(fk, skFy...)
	fk = append(fk, skRed...)

	return fk, nil
}

// splitRows reshapes a length-n*n vector into n rows of length n.
func splitRows(v bigmat.Vector, n int) []bigmat.Vector {
	rows := make([]bigmat.Vector, n)
	for i := 0; i < n; i++ {
		rows[i] = v[i*n : (i+1)*n]
	}
	return rows
}

// DivideVectorForFunctionalKey splits a functional key produced by
// DeriveKey back into its x-side key, y-side key, and reduction key,
// given only dim and q (the sizes DeriveKey used to build it).
func DivideVectorForFunctionalKey(fk bigmat.Vector, dim, q int) (skFx, skFy, skRed bigmat.Vector, err error) {
	qfeLen := dim + 1
	cLen := ctLen(qfeLen, q)
	want := 2*cLen + hCtLen(qfeLen, q)
	if len(fk) != want {
		return nil, nil, nil, xerrors.ErrMalformedSecretKey
	}

	skFx = fk[:cLen]
	skFy = fk[cLen : 2*cLen]
	skRed = fk[2*cLen:]

	return skFx, skFy, skRed, nil
}

// combine multiplies skF[i]^ct[i] mod N² across a key/ciphertext pair
// without running a discrete-log solve, so several such products can
// be accumulated into one combined exponent before a single solve.
func combine(skF, ct bigmat.Vector, grp *group.Group) (*big.Int, error) {
	if len(skF) != len(ct) {
		return nil, xerrors.ErrDimensionMismatch
	}

	out := big.NewInt(1)
	for i, c := range ct {
		t := modexp.ModExp(skF[i], c, grp.NSq)
		out.Mul(out, t)
		out.Mod(out, grp.NSq)
	}
	return out, nil
}

// Decrypt recovers fᵀ(x⊗y)·μ mod N from a functional key and a
// ciphertext triple. It multiplies together the group elements sk_f
// produces against (CTx, CTy) — always 1, since sk_f is the zero key —
// with the one sk_red produces against CTh, then runs a single
// discrete-log search over the combined exponent. Neither x nor y is
// ever recovered on its own: the functional key only ever yields the
// bilinear evaluation.
func Decrypt(fk bigmat.Vector, ct *Ciphertext, dim, q int, grp *group.Group, dlBound *big.Int) (*big.Int, error) {
	skFx, skFy, skRed, err := DivideVectorForFunctionalKey(fk, dim, q)
	if err != nil {
		return nil, err
	}

	gx, err := combine(skFx, ct.CTx, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error combining QFE x-side term")
	}
	gy, err := combine(skFy, ct.CTy, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error combining QFE y-side term")
	}
	gh, err := combine(skRed, ct.CTh, grp)
	if err != nil {
		return nil, errors.Wrap(err, "error combining QFE reduction term")
	}

	out := new(big.Int).Mul(gx, gy)
	out.Mod(out, grp.NSq)
	out.Mul(out, gh)
	out.Mod(out, grp.NSq)

	calc, err := dlog.NewCalc().InGroup(grp.NSq, grp.N)
	if err != nil {
		return nil, errors.Wrap(err, "error configuring QFE discrete logarithm search")
	}
	x, err := calc.WithBound(dlBound).WithNeg().BabyStepGiantStep(out, grp.G)
	if err != nil {
		return nil, errors.Wrap(err, "error solving QFE discrete logarithm")
	}

	x.Mod(x, grp.N)
	return x, nil
}
