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

package sample_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xlab-crypto/mhqfe/sample"
)

func TestUniformDetInRange(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	bound := big.NewInt(1000)
	sampler := sample.NewUniformDet(&key)

	for i := 0; i < 50; i++ {
		val, err := sampler.Sample(bound)
		assert.NoError(t, err)
		assert.True(t, val.Sign() >= 0)
		assert.True(t, val.Cmp(bound) < 0)
	}
}

func TestUniformDetIsDeterministic(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i * 3)
	}
	bound := big.NewInt(1 << 20)

	s1 := sample.NewUniformDet(&key)
	s2 := sample.NewUniformDet(&key)

	for i := 0; i < 20; i++ {
		v1, err1 := s1.Sample(bound)
		v2, err2 := s2.Sample(bound)
		assert.NoError(t, err1)
		assert.NoError(t, err2)
		assert.Equal(t, v1, v2)
	}
}

func TestUniformDetAdvancesSequence(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i + 7)
	}
	bound := big.NewInt(1 << 30)
	sampler := sample.NewUniformDet(&key)

	first, err := sampler.Sample(bound)
	assert.NoError(t, err)
	second, err := sampler.Sample(bound)
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestUniformInRange(t *testing.T) {
	bound := big.NewInt(12345)
	sampler := sample.NewUniform()

	for i := 0; i < 20; i++ {
		val, err := sampler.Sample(bound)
		assert.NoError(t, err)
		assert.True(t, val.Sign() >= 0)
		assert.True(t, val.Cmp(bound) < 0)
	}
}
