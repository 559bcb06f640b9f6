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

import "math/big"

// Sampler is the random source contract every function in this
// module that needs randomness is threaded with explicitly (dcr,
// ipfe, qfe, bigmat's structured samplers, protocol) — never a hidden
// package-level generator. A single call, Sample(max), returns a
// fresh value uniform in [0, max). Two Samplers seeded identically
// (see NewUniformDet) produce the identical sequence of draws for the
// identical sequence of calls, which is what makes a pipeline run
// reproducible under a fixed seed.
type Sampler interface {
	Sample(max *big.Int) (*big.Int, error)
}
