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

// Package dcr implements a Damgård–Jurik-style composite-residuosity
// encryption scheme, used throughout the rest of this module to
// bootstrap a plaintext vector into the multi-hop pipeline: its
// ciphertexts are the ones the protocol layer's key-switching step
// consumes on the very first hop.
package dcr

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/internal/modexp"
	"github.com/xlab-crypto/mhqfe/internal/xerrors"
	"github.com/xlab-crypto/mhqfe/sample"
)

// Setup generates a DCR secret/public key pair for a dim-dimensional
// message space. Each secret key coordinate is drawn uniformly from
// [0, skBound); the matching public key coordinate is g^sk_i mod N².
func Setup(dim int, skBound *big.Int, grp *group.Group, rng sample.Sampler) (sk, pk bigmat.Vector, err error) {
	sk, err = bigmat.NewRandomVector(dim, skBound, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error generating DCR secret key")
	}

	pk = sk.Apply(func(x *big.Int) *big.Int {
		return modexp.ModExp(grp.G, x, grp.NSq)
	})

	return sk, pk, nil
}

// Encrypt encrypts a dim-dimensional message vector m under public key
// pk, returning a ciphertext vector of length dim+1: ct[0] = g^r and
// ct[i+1] = pk[i]^r · (1 + m[i]·N) mod N².
func Encrypt(pk bigmat.Vector, m bigmat.Vector, grp *group.Group, rng sample.Sampler) (bigmat.Vector, error) {
	if len(pk) != len(m) {
		return nil, xerrors.ErrDimensionMismatch
	}

	r, err := rng.Sample(grp.N)
	if err != nil {
		return nil, errors.Wrap(err, "error sampling DCR encryption randomness")
	}

	ct := make(bigmat.Vector, len(m)+1)
	ct[0] = modexp.ModExp(grp.G, r, grp.NSq)

	for i, mi := range m {
		t1 := new(big.Int).Mul(mi, grp.N)
		t1.Add(t1, big.NewInt(1))
		t2 := modexp.ModExp(pk[i], r, grp.NSq)
		ci := new(big.Int).Mul(t1, t2)
		ci.Mod(ci, grp.NSq)
		ct[i+1] = ci
	}

	return ct, nil
}

// DeriveKey returns the DCR functional key for the linear function y:
// the plain integer dot product ⟨sk, y⟩, computed with no modular
// reduction.
func DeriveKey(sk, y bigmat.Vector) (*big.Int, error) {
	return sk.Dot(y)
}

// Decrypt recovers ⟨y, m⟩ mod N from ciphertext ct, function vector y
// and functional key fk = DeriveKey(sk, y).
func Decrypt(ct bigmat.Vector, y bigmat.Vector, fk *big.Int, grp *group.Group) (*big.Int, error) {
	if len(ct) != len(y)+1 {
		return nil, xerrors.ErrDimensionMismatch
	}

	cX := modexp.ModExp(ct[0], new(big.Int).Neg(fk), grp.NSq)
	for i, ci := range ct[1:] {
		t := modexp.ModExp(ci, y[i], grp.NSq)
		cX.Mul(cX, t)
		cX.Mod(cX, grp.NSq)
	}

	cX.Sub(cX, big.NewInt(1))
	cX.Mod(cX, grp.NSq)

	ret := new(big.Int).Quo(cX, grp.N)
	ret.Mod(ret, grp.N)

	return ret, nil
}
