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

package dcr_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xlab-crypto/mhqfe/bigmat"
	"github.com/xlab-crypto/mhqfe/dcr"
	"github.com/xlab-crypto/mhqfe/group"
	"github.com/xlab-crypto/mhqfe/sample"
)

func TestDCRRoundTrip(t *testing.T) {
	rng := sample.NewUniform()
	grp, err := group.Setup(64, rng)
	assert.NoError(t, err)

	skBound := new(big.Int).Lsh(big.NewInt(1), 20)
	sk, pk, err := dcr.Setup(2, skBound, grp, rng)
	assert.NoError(t, err)
	assert.Len(t, sk, 2)
	assert.Len(t, pk, 2)

	message := bigmat.NewVector([]*big.Int{big.NewInt(7), big.NewInt(11)})
	ct, err := dcr.Encrypt(pk, message, grp, rng)
	assert.NoError(t, err)
	assert.Len(t, ct, 3)

	y := bigmat.NewVector([]*big.Int{big.NewInt(1), big.NewInt(1)})
	fk, err := dcr.DeriveKey(sk, y)
	assert.NoError(t, err)

	res, err := dcr.Decrypt(ct, y, fk, grp)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(18), res)
}

func TestDCRRejectsMismatchedLengths(t *testing.T) {
	rng := sample.NewUniform()
	grp, err := group.Setup(64, rng)
	assert.NoError(t, err)

	skBound := big.NewInt(1000)
	_, pk, err := dcr.Setup(2, skBound, grp, rng)
	assert.NoError(t, err)

	badMessage := bigmat.NewVector([]*big.Int{big.NewInt(1)})
	_, err = dcr.Encrypt(pk, badMessage, grp, rng)
	assert.Error(t, err)
}
