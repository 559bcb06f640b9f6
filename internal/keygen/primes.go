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

// Package keygen holds the parameter-generation helpers the core's
// Group carrier is bootstrapped from. spec.md treats prime sampling as
// an external collaborator; this package is the minimal faithful
// stand-in group.Setup needs for it.
package keygen

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// GetSafePrime generates a random safe prime p (p = 2q + 1 with q also
// prime) of the given bit length, via repeated candidate generation
// and primality testing of both p and q.
func GetSafePrime(bitLength int) (*big.Int, error) {
	one := big.NewInt(1)
	two := big.NewInt(2)

	for {
		q, err := rand.Prime(rand.Reader, bitLength-1)
		if err != nil {
			return nil, errors.Wrap(err, "error generating safe prime candidate")
		}

		p := new(big.Int).Mul(q, two)
		p.Add(p, one)

		if p.ProbablyPrime(20) {
			return p, nil
		}
	}
}
