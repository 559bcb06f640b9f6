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

// Package xerrors collects the sentinel errors shared across
// dcr/ipfe/qfe/protocol, so callers can discriminate error kinds with
// errors.Is instead of string matching. Rank-deficiency during
// sampling is handled locally by its own *bigmat.ErrRankDeficient
// struct (it carries a partial rank, not just a kind), so it is not
// duplicated here.
package xerrors

import "errors"

// ErrDimensionMismatch is returned whenever two operands (vectors,
// matrices, ciphertext components) disagree in length or shape. It is
// a programming error, not a runtime condition to retry on.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ErrMalformedSecretKey is returned when a secret/master key's
// component sizes are inconsistent with the scheme's declared
// dimensions.
var ErrMalformedSecretKey = errors.New("secret key is not of the proper form")

// ErrMalformedCipher is returned when a ciphertext's component sizes
// are inconsistent with the scheme's declared dimensions.
var ErrMalformedCipher = errors.New("ciphertext is not of the proper form")

// ErrDLOutOfRange is returned by a discrete-log solver when the
// searched range was exhausted without finding a solution: the
// message (or inner product) is larger than the solver's configured
// window, not that the ciphertext is malformed.
var ErrDLOutOfRange = errors.New("message too large for the discrete logarithm solver's range")

// ErrInsufficientHelperWidth is returned by qfe.Setup when q is
// smaller than dim+1: the helper ciphertext's masking matrices need at
// least as many columns as the bilinear form has rows for a functional
// key to be able to represent an arbitrary f.
var ErrInsufficientHelperWidth = errors.New("qfe: q must be at least dim+1")
