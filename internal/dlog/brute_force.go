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

package dlog

import (
	"math/big"

	"github.com/xlab-crypto/mhqfe/internal/xerrors"
)

// BruteForce tries every candidate i in [0, bound) and returns the
// first one with g^i = h (mod m). It is a standalone linear search;
// BabyStepGiantStep does not call it.
func BruteForce(h, g, m, bound *big.Int) (*big.Int, error) {
	for i := big.NewInt(0); i.Cmp(bound) < 0; i.Add(i, big.NewInt(1)) {
		if new(big.Int).Exp(g, i, m).Cmp(h) == 0 {
			return i, nil
		}
	}

	return nil, xerrors.ErrDLOutOfRange
}
