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
	"crypto/rand"
	"math/big"
)

// Uniform draws values uniform in [0, max) from crypto/rand. It is
// the non-deterministic Sampler every production caller passes; tests
// that need reproducibility use UniformDet instead.
type Uniform struct{}

// NewUniform returns a Uniform sampler.
func NewUniform() *Uniform {
	return &Uniform{}
}

// Sample draws a value uniform in [0, max).
func (u *Uniform) Sample(max *big.Int) (*big.Int, error) {
	return rand.Int(rand.Reader, max)
}
