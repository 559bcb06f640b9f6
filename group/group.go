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

// Package group holds the Damgård–Jurik-style composite-order group
// every other scheme in this module (dcr, ipfe, qfe, protocol) is
// parameterized by.
package group

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xlab-crypto/mhqfe/internal/keygen"
	"github.com/xlab-crypto/mhqfe/sample"
)

// Group is the immutable composite-order carrier every scheme in this
// module builds on. N = p*q for two safe primes p, q; NSq = N²; G is a
// fixed generator of the order-N subgroup of (Z/N²Z)*; Mu is the
// secret trapdoor multiplier IPFE lifts messages by; Delta is the
// working modulus for secret-key material (N times the safe primes'
// quarter-totient).
type Group struct {
	N     *big.Int
	NSq   *big.Int
	G     *big.Int
	Mu    *big.Int
	Delta *big.Int
}

// Setup generates a fresh Group with an N of the given safe-prime bit
// length per factor. G is fixed to 1+N, the standard Damgård–Jurik
// generator satisfying (1+N)^x ≡ 1+xN (mod N²) for any integer x, so
// g^N ≡ 1 (mod N²) — the "g^N ≡ 1+k·N" structure with k = 0. Mu is
// drawn uniformly from the units of Z/Nℤ.
func Setup(primeBits int, rng sample.Sampler) (*Group, error) {
	p, err := keygen.GetSafePrime(primeBits)
	if err != nil {
		return nil, errors.Wrap(err, "error generating prime p")
	}
	q, err := keygen.GetSafePrime(primeBits)
	if err != nil {
		return nil, errors.Wrap(err, "error generating prime q")
	}

	n := new(big.Int).Mul(p, q)
	nSq := new(big.Int).Mul(n, n)

	pHalf := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	qHalf := new(big.Int).Rsh(new(big.Int).Sub(q, big.NewInt(1)), 1)
	delta := new(big.Int).Mul(n, pHalf)
	delta.Mul(delta, qHalf)

	g := new(big.Int).Add(n, big.NewInt(1))

	var mu *big.Int
	for {
		mu, err = rng.Sample(n)
		if err != nil {
			return nil, errors.Wrap(err, "error sampling mu")
		}
		if mu.Sign() != 0 && new(big.Int).GCD(nil, nil, mu, n).Cmp(big.NewInt(1)) == 0 {
			break
		}
	}

	return &Group{
		N:     n,
		NSq:   nSq,
		G:     g,
		Mu:    mu,
		Delta: delta,
	}, nil
}
