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

// Package dlog solves small-range discrete logarithms in Z/mZ, used to
// recover the numeric message (or inner product) a DCR/IPFE/QFE
// decryption leaves sitting in the exponent.
package dlog

import (
	"fmt"
	"math/big"

	"github.com/xlab-crypto/mhqfe/internal/xerrors"
)

// MaxBound limits the interval of values that are checked when
// computing discrete logarithms. It prevents time and memory
// exhaustive computation for practical purposes. WithBound ignores a
// requested bound that is not below MaxBound and keeps the
// calculator's current bound; the order passed to InGroup is not
// capped.
var MaxBound = big.NewInt(15000000000)

// Calc represents a discrete logarithm calculator.
type Calc struct{}

// NewCalc returns a new Calc.
func NewCalc() *Calc {
	return &Calc{}
}

// CalcZm represents a calculator for discrete logarithms that
// operates in the multiplicative group of integers modulo m, for
// arbitrary (not necessarily prime) modulus m — this module always
// calls it with m = N² from the working Group, never a prime field.
type CalcZm struct {
	m     *big.Int
	bound *big.Int
	step  *big.Int
	neg   bool
}

// InGroup configures a calculator to search for discrete logarithms
// modulo m (the ambient modulus, e.g. N²) within [0, order). order
// must be supplied explicitly: m is not required to be prime, so
// "order = m - 1" does not apply here.
func (*Calc) InGroup(m, order *big.Int) (*CalcZm, error) {
	if m == nil {
		return nil, fmt.Errorf("group modulus cannot be nil")
	}
	if order == nil {
		return nil, fmt.Errorf("group order must be supplied for a composite modulus")
	}

	step := new(big.Int).Sqrt(order)
	step.Add(step, big.NewInt(1))

	return &CalcZm{
		m:     m,
		bound: order,
		step:  step,
		neg:   false,
	}, nil
}

// WithBound returns a copy of c with a narrower search bound.
func (c *CalcZm) WithBound(bound *big.Int) *CalcZm {
	if bound != nil && bound.Cmp(MaxBound) < 0 {
		step := new(big.Int).Sqrt(bound)
		step.Add(step, big.NewInt(1))

		return &CalcZm{
			m:     c.m,
			bound: bound,
			step:  step,
			neg:   c.neg,
		}
	}
	return c
}

// WithNeg returns a copy of c that also searches the negative half of
// the range [-bound, bound].
func (c *CalcZm) WithNeg() *CalcZm {
	return &CalcZm{
		m:     c.m,
		bound: c.bound,
		step:  c.step,
		neg:   true,
	}
}

// BabyStepGiantStep searches for x such that h = g^x mod m. If c.neg
// is set it searches [-bound, bound] by running two goroutines (one
// per sign); otherwise it searches [0, bound] with a single goroutine.
func (c *CalcZm) BabyStepGiantStep(h, g *big.Int) (*big.Int, error) {
	retChan := make(chan *big.Int)
	errChan := make(chan error)
	go c.runBabyStepGiantStepIterative(h, g, retChan, errChan)
	if c.neg {
		gInv := new(big.Int).ModInverse(g, c.m)
		if gInv == nil {
			return nil, fmt.Errorf("base is not invertible modulo m")
		}
		go c.runBabyStepGiantStepIterative(h, gInv, retChan, errChan)
	}

	ret := <-retChan
	err := <-errChan
	if c.neg && err != nil {
		ret = <-retChan
		err = <-errChan
	}
	if err != nil {
		return nil, err
	}

	if c.neg && h.Cmp(new(big.Int).Exp(g, ret, c.m)) != 0 {
		ret.Neg(ret)
	}

	return ret, nil
}

// runBabyStepGiantStepIterative implements the baby-step giant-step
// method, proceeding iteratively so that smaller solutions finish
// faster: the giant step doubles until it reaches c.step, rather than
// using the final step size from the start.
func (c *CalcZm) runBabyStepGiantStepIterative(h, g *big.Int, retChan chan *big.Int, errChan chan error) {
	one := big.NewInt(1)
	two := big.NewInt(2)

	T := make(map[string]*big.Int)
	x := big.NewInt(1)
	y := new(big.Int).Set(h)
	z := new(big.Int).ModInverse(g, c.m)
	if z == nil {
		errChan <- fmt.Errorf("base is not invertible modulo m")
		retChan <- nil
		return
	}
	z.Exp(z, two, c.m)

	bits := int64(c.step.BitLen())

	T[string(x.Bytes())] = big.NewInt(0)
	x.Mod(x.Mul(x, g), c.m)
	j := big.NewInt(0)
	giantStep := new(big.Int)
	bound := new(big.Int)
	for i := int64(0); i < bits; i++ {
		giantStep.Exp(two, big.NewInt(i+1), nil)
		if giantStep.Cmp(c.step) > 0 {
			giantStep.Set(c.step)
			z.ModInverse(g, c.m)
			z.Exp(z, c.step, c.m)
		}
		for k := new(big.Int).Exp(two, big.NewInt(i), nil); k.Cmp(giantStep) < 0; k.Add(k, one) {
			T[string(x.Bytes())] = new(big.Int).Set(k)
			x = x.Mod(x.Mul(x, g), c.m)
		}
		bound.Exp(two, big.NewInt(2*(i+1)), nil)
		for ; j.Cmp(bound) < 0; j.Add(j, giantStep) {
			if e, ok := T[string(y.Bytes())]; ok {
				retChan <- new(big.Int).Add(j, e)
				errChan <- nil
				return
			}
			y.Mod(y.Mul(y, z), c.m)
		}
		z.Mul(z, z)
		z.Mod(z, c.m)
	}

	retChan <- nil
	errChan <- xerrors.ErrDLOutOfRange
}
