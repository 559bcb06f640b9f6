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

package sample

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/salsa20"
)

// UniformDet is a pseudo-random Sampler over [0, max) driven by a
// salsa20 keystream keyed on a fixed 32-byte key, with a counter
// mixed into the nonce on every draw. Two UniformDet instances
// constructed with the same key produce the identical sequence of
// samples for the identical sequence of Sample calls, which is what
// lets a full pipeline run be repeated byte-for-byte under a fixed
// seed (spec.md's determinism property).
type UniformDet struct {
	key     *[32]byte
	counter uint64
}

// NewUniformDet returns a UniformDet sampler keyed by key.
func NewUniformDet(key *[32]byte) *UniformDet {
	return &UniformDet{key: key}
}

// Sample deterministically draws the next value in the sequence from
// [0, max), using rejection sampling to stay unbiased.
func (u *UniformDet) Sample(max *big.Int) (*big.Int, error) {
	maxBits := new(big.Int).Sub(max, big.NewInt(1)).BitLen()
	maxBytes := (maxBits / 8) + 1
	over := uint(8 - (maxBits % 8))
	if over == 8 {
		maxBytes--
		over = 0
	}

	for {
		nonce := make([]byte, 8)
		binary.LittleEndian.PutUint64(nonce, u.counter)
		u.counter++

		in := make([]byte, maxBytes)
		out := make([]byte, maxBytes)
		salsa20.XORKeyStream(out, in, nonce, u.key)
		out[0] = out[0] >> over

		ret := new(big.Int).SetBytes(out)
		if ret.Cmp(max) < 0 {
			return ret, nil
		}
	}
}
