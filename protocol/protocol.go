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

// Package protocol chains dcr and qfe into a multi-hop pipeline: a
// plaintext vector is bootstrapped under dcr, key-switched into the
// first qfe realm, evaluated hop by hop under a sequence of quadratic
// functions, and finally decrypted back to plaintext. Every hop's
// key-switching material is carried compressed under decomp's base-B
// digit codec.
package protocol

import (
	"math/big"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/dcr"
	"github.com/xlab-crypto/mhqfe/decomp"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/qfe"
	"github.com/xlab-crypto/mhqfe/sample"
)

// parallelFor runs work(i) for every i in [0, n) across a bounded pool
// of GOMAXPROCS goroutines, each owning a contiguous slice of rows, and
// reports the first error produced (all goroutines still run to
// completion before it is returned).
func parallelFor(n int, work func(i int) error) error {
	if n <= 0 {
		return nil
	}

	nbGoRoutines := runtime.GOMAXPROCS(0)
	if nbGoRoutines > n {
		nbGoRoutines = n
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(nbGoRoutines)

	start, tasks := 0, n
	for i := 0; i < nbGoRoutines; i++ {
		chunk := (tasks + nbGoRoutines - i - 1) / (nbGoRoutines - i)
		s, e := start, start+chunk
		start += chunk
		tasks -= chunk

		go func(s, e int) {
			defer wg.Done()
			for j := s; j < e; j++ {
				errs[j] = work(j)
			}
		}(s, e)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// MasterKey bundles the DCR bootstrap key with one qfe.MasterKey per
// hop: QEInit receives the key-switched DCR ciphertext, QEFcn holds
// the intermediate hops, and QEEnd is the terminal hop whose Decrypt
// call yields the plaintext result.
type MasterKey struct {
	DCRSk, DCRPk bigmat.Vector

	QEInit *qfe.MasterKey
	QEFcn  []*qfe.MasterKey
	QEEnd  *qfe.MasterKey
}

// Setup builds the per-hop key material for a chain with len(dimVec)
// hops (dimVec[0] is the input dimension, dimVec[len-1] the output
// dimension, and the entries between are the intermediate functions'
// input dimensions). k is the extra padding width mixed into every
// qfe instance's dimension; fNum is the number of intermediate hops.
func Setup(dimVec []int, fNum, k int, skBound *big.Int, grp *group.Group, rng sample.Sampler) (*MasterKey, error) {
	if len(dimVec) < 2 {
		return nil, errors.New("protocol: dimVec must have at least an input and an output dimension")
	}

	dim := dimVec[0]
	dcrSk, dcrPk, err := dcr.Setup(2*dim+1, skBound, grp, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error generating protocol DCR bootstrap key")
	}

	qeInit, err := qfe.Setup(grp, dim+k, 2*(dim+k)+1, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up protocol initial QFE hop")
	}

	qeFcn := make([]*qfe.MasterKey, 0, fNum)
	for i := 1; i < len(dimVec)-1; i++ {
		d := dimVec[i]
		mk, err := qfe.Setup(grp, d+k, 2*(d+k)+1, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "error setting up protocol QFE hop %d", i)
		}
		qeFcn = append(qeFcn, mk)
	}

	dEnd := dimVec[len(dimVec)-1]
	qeEnd, err := qfe.Setup(grp, dEnd+k, 2*(dEnd+k)+1, rng)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up protocol terminal QFE hop")
	}

	return &MasterKey{
		DCRSk:  dcrSk,
		DCRPk:  dcrPk,
		QEInit: qeInit,
		QEFcn:  qeFcn,
		QEEnd:  qeEnd,
	}, nil
}

// GenerateHopMatrices samples fresh one-sided-inverse folding matrices
// for qeSK's three encryption-matrix components (x, y, h), each one
// folding that component's own native ciphertext width down to the
// same output width outDim+1 — the shapes KeygenSwitch and KeygenHop
// need as hRightX, hRightY, hRightH. Every component gets its own
// bigmat.SampleH call because the three native widths differ (see
// KeygenSwitch's doc comment); bound constrains the direct sample's
// entries before the right-inverse is extracted.
func GenerateHopMatrices(qeSK *qfe.MasterKey, outDim int, bound, modulo *big.Int, rng sample.Sampler) (hRightX, hRightY, hRightH bigmat.Matrix, err error) {
	ex, ey, eh := qfe.EncMatrixSameXY(qeSK)

	sampleHRight := func(nativeWidth int) (bigmat.Matrix, error) {
		k := nativeWidth - outDim - 1
		if k < 0 {
			return nil, errors.New("protocol: output dimension exceeds native ciphertext width")
		}
		hPr, _, err := bigmat.SampleH(outDim, k, bound, modulo, rng)
		if err != nil {
			return nil, errors.Wrap(err, "error sampling hop folding matrix")
		}
		return hPr, nil
	}

	if hRightX, err = sampleHRight(ex.Cols()); err != nil {
		return nil, nil, nil, err
	}
	if hRightY, err = sampleHRight(ey.Cols()); err != nil {
		return nil, nil, nil, err
	}
	if hRightH, err = sampleHRight(eh.Cols()); err != nil {
		return nil, nil, nil, err
	}
	return hRightX, hRightY, hRightH, nil
}

// GenerateGammaMatrices samples a matched gammaRight/gammaLeft pair:
// gammaRight folds a width-(dim+1) plaintext vector up to width
// dim+k+1 before DCR bootstrap encryption (EncInit), and gammaLeft
// folds a decomposed width-(dim+1) key-switching matrix up to the same
// width dim+k+1 before DCR functional keys are derived from it
// (KeygenSwitch). Both come from the same ternary structured sample,
// so gammaLeft*gammaRight is the identity on dimension dim+1.
func GenerateGammaMatrices(dim, k int, modulo *big.Int, rng sample.Sampler) (gammaRight, gammaLeft bigmat.Matrix, err error) {
	gammaRight, gammaLeft, err = bigmat.SampleGamma(dim, k, modulo, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error sampling protocol gamma matrices")
	}
	return gammaRight, gammaLeft, nil
}

// ComputeSkBound derives the DCR secret-key sampling bound a hop's
// key-switching material needs: structured folding matrices compound
// their entries' bound by roughly dim multiplicative factors across
// dim-1 products, so the functional keys derived from them require a
// correspondingly larger DCR secret key than a single-hop dcr.Setup
// call would otherwise pick. lambda is the target statistical security
// parameter in bits.
func ComputeSkBound(dim int, bound *big.Int, lambda int, grp *group.Group) *big.Int {
	return bigmat.GetSkBound(dim, bound, lambda, grp.NSq)
}

// EncInit bootstraps x (not yet homogenized) under DCR: it appends
// the affine 1, applies gammaRight, and encrypts the result under
// dcrPk. gammaRight is the one-sided-inverse structured matrix the
// matching KeygenSwitch call was built from.
func EncInit(dcrPk bigmat.Vector, gammaRight bigmat.Matrix, x bigmat.Vector, grp *group.Group, rng sample.Sampler) (bigmat.Vector, error) {
	x1 := x.Concat(bigmat.NewVector([]*big.Int{big.NewInt(1)}))

	gammaRightX, err := gammaRight.MulVec(x1)
	if err != nil {
		return nil, errors.Wrap(err, "error applying gammaRight in protocol EncInit")
	}
	gammaRightX.ModInplace(grp.Delta)

	return dcr.Encrypt(dcrPk, gammaRightX, grp, rng)
}

// switchKeyTriple holds the x/y/h-side matrices (or vectors) produced
// for the three components of a qfe ciphertext by a key-switching
// step.
type switchKeyTriple struct {
	X, Y, H bigmat.Matrix
}

type switchKeyDCRTriple struct {
	X, Y, H bigmat.Vector
}

// KeygenSwitch builds the DCR-to-QFE key-switching material for
// qeSK's encryption matrices: for each of the x/y/h ciphertext
// components, it folds the component's dual-basis matrix through its
// own hRight (the three IPFE instances qeSK is built from have
// different native widths, so each needs its own right-action matrix;
// all three must produce the same number of output columns so that
// the shared gammaLeft can act on the decomposed result), decomposes
// the result, folds it through gammaLeft, and derives a DCR functional
// key per resulting row.
func KeygenSwitch(qeSK *qfe.MasterKey, dcrSk bigmat.Vector, hRightX, hRightY, hRightH, gammaLeft bigmat.Matrix, dcp *decomp.Decomp, grp *group.Group) (switchKeyTriple, switchKeyDCRTriple, error) {
	ex, ey, eh := qfe.EncMatrixSameXY(qeSK)

	genSwitchKey := func(qeEncMat, hRight bigmat.Matrix) (bigmat.Matrix, bigmat.Vector, error) {
		xh, err := qeEncMat.Mul(hRight)
		if err != nil {
			return nil, nil, errors.Wrap(err, "error folding qfe encryption matrix through hRight")
		}
		xh.ModInplace(grp.Delta)

		xhDecomp := dcp.MatrixCol(xh)
		switchKey, err := xhDecomp.Mul(gammaLeft)
		if err != nil {
			return nil, nil, errors.Wrap(err, "error folding decomposed matrix through gammaLeft")
		}
		switchKey.ModInplace(grp.Delta)

		switchKeyDCR := make(bigmat.Vector, switchKey.Rows())
		for i := 0; i < switchKey.Rows(); i++ {
			fk, err := dcr.DeriveKey(dcrSk, switchKey.GetRow(i))
			if err != nil {
				return nil, nil, errors.Wrap(err, "error deriving DCR switch key row")
			}
			switchKeyDCR[i] = fk
		}

		return switchKey, switchKeyDCR, nil
	}

	skX, skdX, err := genSwitchKey(ex, hRightX)
	if err != nil {
		return switchKeyTriple{}, switchKeyDCRTriple{}, err
	}
	skY, skdY, err := genSwitchKey(ey, hRightY)
	if err != nil {
		return switchKeyTriple{}, switchKeyDCRTriple{}, err
	}
	skH, skdH, err := genSwitchKey(eh, hRightH)
	if err != nil {
		return switchKeyTriple{}, switchKeyDCRTriple{}, err
	}

	return switchKeyTriple{X: skX, Y: skY, H: skH}, switchKeyDCRTriple{X: skdX, Y: skdY, H: skdH}, nil
}

// Keyswitch consumes a DCR ciphertext and the KeygenSwitch material to
// produce the first-hop qfe ciphertext components x, y and h.
func Keyswitch(ctIn bigmat.Vector, sk switchKeyTriple, skd switchKeyDCRTriple, dcp *decomp.Decomp, grp *group.Group) (*qfe.Ciphertext, error) {
	dcrDecMulti := func(switchKey bigmat.Matrix, switchKeyDCR bigmat.Vector) (bigmat.Vector, error) {
		if switchKey.Rows() != len(switchKeyDCR) {
			return nil, errors.New("protocol: keyswitch material has mismatched row counts")
		}
		out := make(bigmat.Vector, switchKey.Rows())
		for i := 0; i < switchKey.Rows(); i++ {
			v, err := dcr.Decrypt(ctIn, switchKey.GetRow(i), switchKeyDCR[i], grp)
			if err != nil {
				return nil, errors.Wrap(err, "error decrypting protocol keyswitch row")
			}
			out[i] = v
		}
		out.ModInplace(grp.N)
		return dcp.VectorInv(out)
	}

	x, err := dcrDecMulti(sk.X, skd.X)
	if err != nil {
		return nil, err
	}
	y, err := dcrDecMulti(sk.Y, skd.Y)
	if err != nil {
		return nil, err
	}
	h, err := dcrDecMulti(sk.H, skd.H)
	if err != nil {
		return nil, err
	}

	return &qfe.Ciphertext{CTx: x, CTy: y, CTh: h}, nil
}

func divideMatIntoMB(mat bigmat.Matrix) (bigmat.Matrix, bigmat.Vector) {
	rows, cols := mat.Rows(), mat.Cols()
	left := bigmat.NewZeroMatrix(rows, cols-1)
	right := make(bigmat.Vector, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols-1; j++ {
			left[i][j] = new(big.Int).Set(mat.Get(i, j))
		}
		right[i] = new(big.Int).Set(mat.Get(i, cols-1))
	}
	return left, right
}

// HopKeys is the key-switching material an intermediate hop's
// Decrypt step needs: a constant offset qeB and a functional-key
// matrix fkMat per ciphertext component (one row per output
// coordinate).
type HopKeys struct {
	BX, BY, BH       bigmat.Vector
	FKMatX, FKMatY, FKMatH bigmat.Matrix
}

// KeygenHop derives the key-switching material for one intermediate
// hop: it folds qeSkEnc's encryption matrices through each component's
// own hRight (see KeygenSwitch's doc comment for why x/y/h cannot
// share a single right-action matrix here), splits off the constant
// column, tensors the left-homogenization matrix with itself to cover
// the quadratic cross terms, applies f, and derives one qeSkKeygen
// functional key per resulting row.
func KeygenHop(qeSkEnc, qeSkKeygen *qfe.MasterKey, hRightX, hRightY, hRightH, hmLeft, f bigmat.Matrix, dcp *decomp.Decomp, grp *group.Group) (HopKeys, error) {
	ex, ey, eh := qfe.EncMatrixSameXY(qeSkEnc)
	exL, bx := divideMatIntoMB(ex)
	eyL, by := divideMatIntoMB(ey)
	ehL, bh := divideMatIntoMB(eh)

	qeBx := dcp.Vector(bx)
	qeBy := dcp.Vector(by)
	qeBh := dcp.Vector(bh)

	hRightXOrigin := bigmat.RemoveDiagOne(hRightX)
	hRightYOrigin := bigmat.RemoveDiagOne(hRightY)
	hRightHOrigin := bigmat.RemoveDiagOne(hRightH)
	hmLeftOrigin := bigmat.RemoveDiagOne(hmLeft)
	hmhm := bigmat.TensorProduct(hmLeftOrigin, hmLeftOrigin, grp.Delta)

	matMul4 := func(enc, hRightOrigin bigmat.Matrix) (bigmat.Matrix, error) {
		ab, err := enc.Mul(hRightOrigin)
		if err != nil {
			return nil, err
		}
		ab.ModInplace(grp.Delta)
		abDecomp := dcp.MatrixCol(ab)

		cd, err := f.Mul(hmhm)
		if err != nil {
			return nil, err
		}
		cd.ModInplace(grp.Delta)

		out, err := abDecomp.Mul(cd)
		if err != nil {
			return nil, err
		}
		out.ModInplace(grp.Delta)
		return out, nil
	}

	totalX, err := matMul4(exL, hRightXOrigin)
	if err != nil {
		return HopKeys{}, errors.Wrap(err, "error folding protocol hop x matrix")
	}
	totalY, err := matMul4(eyL, hRightYOrigin)
	if err != nil {
		return HopKeys{}, errors.Wrap(err, "error folding protocol hop y matrix")
	}
	totalH, err := matMul4(ehL, hRightHOrigin)
	if err != nil {
		return HopKeys{}, errors.Wrap(err, "error folding protocol hop h matrix")
	}

	// genFKMat derives one functional key per row of totalMat. Every
	// row's qfe.DeriveKey call is independent, so all but the first
	// (which also discovers the per-row key width) run across a
	// bounded worker pool.
	genFKMat := func(totalMat bigmat.Matrix) (bigmat.Matrix, error) {
		rows := totalMat.Rows()
		if rows == 0 {
			return nil, nil
		}

		fk0, err := qfe.DeriveKey(qeSkKeygen, totalMat.GetRow(0), grp)
		if err != nil {
			return nil, errors.Wrap(err, "error deriving protocol hop functional key")
		}
		fkMat := bigmat.NewZeroMatrix(rows, len(fk0))
		fkMat.SetRow(0, fk0)

		err = parallelFor(rows-1, func(i int) error {
			row := i + 1
			fk, err := qfe.DeriveKey(qeSkKeygen, totalMat.GetRow(row), grp)
			if err != nil {
				return errors.Wrap(err, "error deriving protocol hop functional key")
			}
			fkMat.SetRow(row, fk)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return fkMat, nil
	}

	fkMatX, err := genFKMat(totalX)
	if err != nil {
		return HopKeys{}, err
	}
	fkMatY, err := genFKMat(totalY)
	if err != nil {
		return HopKeys{}, err
	}
	fkMatH, err := genFKMat(totalH)
	if err != nil {
		return HopKeys{}, err
	}

	return HopKeys{
		BX: qeBx, BY: qeBy, BH: qeBh,
		FKMatX: fkMatX, FKMatY: fkMatY, FKMatH: fkMatH,
	}, nil
}

// DecHop evaluates one intermediate hop's key-switching material
// against a ciphertext triple, producing the next hop's (x, y, h)
// ciphertext components.
func DecHop(ct *qfe.Ciphertext, hk HopKeys, dim, q int, grp *group.Group, dlBound *big.Int) (*qfe.Ciphertext, error) {
	// computeOut decrypts one ciphertext component row by row; the
	// rows are independent discrete-log recoveries, so they are spread
	// across a bounded worker pool.
	computeOut := func(fkMat bigmat.Matrix, qeB bigmat.Vector) (bigmat.Vector, error) {
		out := make(bigmat.Vector, fkMat.Rows())
		err := parallelFor(fkMat.Rows(), func(i int) error {
			v, err := qfe.Decrypt(fkMat.GetRow(i), ct, dim, q, grp, dlBound)
			if err != nil {
				return errors.Wrap(err, "error decrypting protocol hop row")
			}
			out[i] = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = out.Add(qeB)
		out.ModInplace(grp.N)
		return out, nil
	}

	x, err := computeOut(hk.FKMatX, hk.BX)
	if err != nil {
		return nil, err
	}
	y, err := computeOut(hk.FKMatY, hk.BY)
	if err != nil {
		return nil, err
	}
	h, err := computeOut(hk.FKMatH, hk.BH)
	if err != nil {
		return nil, err
	}

	return &qfe.Ciphertext{CTx: x, CTy: y, CTh: h}, nil
}

// KeygenEnd derives the terminal hop's functional-key matrix: f
// applied to the tensor square of hmLeft's linear part, one
// qeSK functional key per row.
func KeygenEnd(qeSK *qfe.MasterKey, hmLeft, f bigmat.Matrix, grp *group.Group) (bigmat.Matrix, error) {
	hmOrigin := bigmat.RemoveDiagOne(hmLeft)
	hmhm := bigmat.TensorProduct(hmOrigin, hmOrigin, grp.Delta)

	fhmhm, err := f.Mul(hmhm)
	if err != nil {
		return nil, errors.Wrap(err, "error folding terminal hop function through hmhm")
	}
	fhmhm.ModInplace(grp.Delta)

	var fkMat bigmat.Matrix
	for i := 0; i < fhmhm.Rows(); i++ {
		fk, err := qfe.DeriveKey(qeSK, fhmhm.GetRow(i), grp)
		if err != nil {
			return nil, errors.Wrap(err, "error deriving terminal hop functional key")
		}
		if fkMat == nil {
			fkMat = bigmat.NewZeroMatrix(fhmhm.Rows(), len(fk))
		}
		fkMat.SetRow(i, fk)
	}

	return fkMat, nil
}

// DecEnd evaluates the terminal hop's functional-key matrix against
// the final ciphertext, recovering the plaintext result vector mod N.
func DecEnd(ct *qfe.Ciphertext, fkMat bigmat.Matrix, dim, q int, grp *group.Group, dlBound *big.Int) (bigmat.Vector, error) {
	out := make(bigmat.Vector, fkMat.Rows())
	for i := 0; i < fkMat.Rows(); i++ {
		v, err := qfe.Decrypt(fkMat.GetRow(i), ct, dim, q, grp, dlBound)
		if err != nil {
			return nil, errors.Wrap(err, "error decrypting protocol terminal row")
		}
		out[i] = v
	}
	out.ModInplace(grp.N)
	return out, nil
}

// CompositeEncAndF produces, for each column of f, a fresh qfe
// ciphertext encrypting (f_col, f_col) — the "ciphertext that encodes
// a function" gadget the realm-transition composers below use to hand
// the next hop's keygen step something it can call qfe.DeriveKey on
// without ever materializing f in the clear to that hop. Each
// ciphertext CTx ‖ CTy ‖ CTh forms one row; decomp's MatrixRow repeats
// every row once per digit, scaled by successive powers of Base, and
// the result is transposed, so each column is one scaled copy of a
// whole ciphertext.
func CompositeEncAndF(qeSK *qfe.MasterKey, f bigmat.Matrix, dcp *decomp.Decomp, grp *group.Group, rng sample.Sampler) (bigmat.Matrix, error) {
	cols := f.Cols()
	rows := make([]bigmat.Vector, cols)

	for i := 0; i < cols; i++ {
		fCol, err := f.GetCol(i)
		if err != nil {
			return nil, errors.Wrap(err, "error reading column of f in CompositeEncAndF")
		}

		ct, err := qfe.Encrypt(qeSK, fCol, fCol, grp, rng)
		if err != nil {
			return nil, errors.Wrap(err, "error encrypting function column in CompositeEncAndF")
		}

		rows[i] = ct.CTx.Concat(ct.CTy).Concat(ct.CTh)
	}

	matCtxts, err := bigmat.NewMatrix(rows)
	if err != nil {
		return nil, err
	}

	return dcp.MatrixRow(matCtxts).Transpose(), nil
}

// KeygenDCRToQE builds the key-switching material that lets a DCR
// ciphertext be evaluated directly under the first QFE hop's
// functions: it folds hRight through gammaLeft, encodes the result as
// a function-ciphertext matrix via CompositeEncAndF, and derives one
// DCR functional key per row of that matrix.
func KeygenDCRToQE(dcrSk bigmat.Vector, qeSK *qfe.MasterKey, hRight, gammaLeft bigmat.Matrix, dcp *decomp.Decomp, grp *group.Group, rng sample.Sampler) (bigmat.Matrix, bigmat.Vector, error) {
	totalMat, err := hRight.Mul(gammaLeft)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error folding hRight through gammaLeft")
	}

	fkMat, err := CompositeEncAndF(qeSK, totalMat, dcp, grp, rng)
	if err != nil {
		return nil, nil, err
	}

	fk := make(bigmat.Vector, fkMat.Rows())
	for i := 0; i < fkMat.Rows(); i++ {
		v, err := dcr.DeriveKey(dcrSk, fkMat.GetRow(i))
		if err != nil {
			return nil, nil, errors.Wrap(err, "error deriving DCR-to-QFE functional key row")
		}
		fk[i] = v
	}

	return fkMat, fk, nil
}

// KeygenQEToQE builds the key-switching material chaining one QFE hop
// into the next: h_right · f · (hm_left ⊗ hm_left) is encoded via
// CompositeEncAndF under the encrypting hop's key, then one functional
// key for the next hop is derived per resulting row.
func KeygenQEToQE(qeSkEnc, qeSkKeygen *qfe.MasterKey, hRight, hmLeft, f bigmat.Matrix, dcp *decomp.Decomp, grp *group.Group, rng sample.Sampler) (bigmat.Matrix, error) {
	hmOrigin := bigmat.RemoveDiagOne(hmLeft)
	hmhm := bigmat.TensorProduct(hmOrigin, hmOrigin, grp.Delta)

	t1, err := hRight.Mul(f)
	if err != nil {
		return nil, errors.Wrap(err, "error folding hRight through f")
	}
	totalMat, err := t1.Mul(hmhm)
	if err != nil {
		return nil, errors.Wrap(err, "error folding in hmhm")
	}

	matCtxts, err := CompositeEncAndF(qeSkEnc, totalMat, dcp, grp, rng)
	if err != nil {
		return nil, err
	}

	var fkMat bigmat.Matrix
	for i := 0; i < matCtxts.Rows(); i++ {
		fk, err := qfe.DeriveKey(qeSkKeygen, matCtxts.GetRow(i), grp)
		if err != nil {
			return nil, errors.Wrap(err, "error deriving QFE-to-QFE functional key row")
		}
		if fkMat == nil {
			fkMat = bigmat.NewZeroMatrix(matCtxts.Rows(), len(fk))
		}
		fkMat.SetRow(i, fk)
	}

	return fkMat, nil
}

// KeygenQEToPlain builds the terminal functional-key matrix directly
// from f and hmLeft, with no further ciphertext-encoding gadget: the
// result decrypts the last QFE ciphertext straight into plaintext.
func KeygenQEToPlain(qeSK *qfe.MasterKey, hmLeft, f bigmat.Matrix, grp *group.Group) (bigmat.Matrix, error) {
	hmOrigin := bigmat.RemoveDiagOne(hmLeft)
	hmhm := bigmat.TensorProduct(hmOrigin, hmOrigin, grp.Delta)

	totalMat, err := f.Mul(hmhm)
	if err != nil {
		return nil, errors.Wrap(err, "error folding f through hmhm")
	}
	totalMat.ModInplace(grp.Delta)

	var fkMat bigmat.Matrix
	for i := 0; i < totalMat.Rows(); i++ {
		fk, err := qfe.DeriveKey(qeSK, totalMat.GetRow(i), grp)
		if err != nil {
			return nil, errors.Wrap(err, "error deriving QFE-to-plain functional key row")
		}
		if fkMat == nil {
			fkMat = bigmat.NewZeroMatrix(totalMat.Rows(), len(fk))
		}
		fkMat.SetRow(i, fk)
	}

	return fkMat, nil
}

// DecDCRToQE decrypts a bootstrap DCR ciphertext under a
// KeygenDCRToQE functional-key matrix, recovering the first QFE hop's
// digit-decomposed output coordinates.
func DecDCRToQE(ctxt bigmat.Vector, fkMat bigmat.Matrix, fk bigmat.Vector, dcp *decomp.Decomp, grp *group.Group) (bigmat.Vector, error) {
	out := make(bigmat.Vector, fkMat.Rows())
	for i := 0; i < fkMat.Rows(); i++ {
		v, err := dcr.Decrypt(ctxt, fkMat.GetRow(i), fk[i], grp)
		if err != nil {
			return nil, errors.Wrap(err, "error decrypting DCR-to-QFE row")
		}
		out[i] = v
	}
	out.ModInplace(grp.N)
	return dcp.VectorInv(out)
}

// DecQEToQE decrypts a QFE ciphertext under a KeygenQEToQE functional
// key matrix, recovering the next hop's digit-decomposed output
// coordinates.
func DecQEToQE(ct *qfe.Ciphertext, fkMat bigmat.Matrix, dim, q int, dcp *decomp.Decomp, grp *group.Group, dlBound *big.Int) (bigmat.Vector, error) {
	out := make(bigmat.Vector, fkMat.Rows())
	for i := 0; i < fkMat.Rows(); i++ {
		v, err := qfe.Decrypt(fkMat.GetRow(i), ct, dim, q, grp, dlBound)
		if err != nil {
			return nil, errors.Wrap(err, "error decrypting QFE-to-QFE row")
		}
		out[i] = v
	}
	out.ModInplace(grp.N)
	return dcp.VectorInv(out)
}

// DecQEToPlain decrypts a QFE ciphertext under a KeygenQEToPlain
// functional-key matrix, recovering the final plaintext result.
func DecQEToPlain(ct *qfe.Ciphertext, fkMat bigmat.Matrix, dim, q int, grp *group.Group, dlBound *big.Int) (bigmat.Vector, error) {
	out := make(bigmat.Vector, fkMat.Rows())
	for i := 0; i < fkMat.Rows(); i++ {
		v, err := qfe.Decrypt(fkMat.GetRow(i), ct, dim+1, 2*(dim+1)+1, grp, dlBound)
		if err != nil {
			return nil, errors.Wrap(err, "error decrypting QFE-to-plain row")
		}
		out[i] = v
	}
	out.ModInplace(grp.N)
	return out, nil
}
