/*
 * Salis - PRNG and cosmic-ray mutator.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package mutator implements Salis's per-core pseudo-random generator and
// the cosmic-ray memory perturbation driven by it. The generator is a
// xoshiro256**-style design; its exact state transform and rotation amounts
// are specified bit-for-bit because downstream simulation determinism
// depends on reproducing them exactly.
package mutator

import "math/bits"

// smixIncrement is the golden-ratio increment used by SplitMix64.
const smixIncrement = 0x9e3779b97f4a7c15

// splitMix64 advances *seed and returns the next SplitMix64 output. Used
// only to derive the four xoshiro256** seed words at core-init time.
func splitMix64(seed *uint64) uint64 {
	*seed += smixIncrement
	next := *seed
	next = (next ^ (next >> 30)) * 0xbf58476d1ce4e5b9
	next = (next ^ (next >> 27)) * 0x94d049bb133111eb
	return next ^ (next >> 31)
}

// State is one core's PRNG state: four 64-bit words.
type State struct {
	s [4]uint64
}

// Seed derives this core's four state words from *seed via SplitMix64,
// advancing *seed by four calls so a caller can seed successive cores from
// one running counter and get four distinct states. Seed always overwrites
// the state, whatever *seed holds; a SEED of 0 is handled by the caller not
// calling Seed at all (engine.New skips it), which leaves the state all zero.
func (s *State) Seed(seed *uint64) {
	s.s[0] = splitMix64(seed)
	s.s[1] = splitMix64(seed)
	s.s[2] = splitMix64(seed)
	s.s[3] = splitMix64(seed)
}

// Words returns the four raw state words, for persistence.
func (s *State) Words() [4]uint64 {
	return s.s
}

// LoadWords restores state words previously obtained from Words.
func (s *State) LoadWords(w [4]uint64) {
	s.s = w
}

// Next returns the next pseudo-random 64-bit value and advances state.
// Must reproduce xoshiro256**'s published rotation amounts (7, 45) and
// shift amount (17) exactly; the mutator's reproducibility across save/load depends on it.
func (s *State) Next() uint64 {
	r := bits.RotateLeft64(s.s[1]*5, 7) * 9
	t := s.s[1] << 17

	s.s[2] ^= s.s[0]
	s.s[3] ^= s.s[1]
	s.s[1] ^= s.s[2]
	s.s[0] ^= s.s[3]

	s.s[2] ^= t
	s.s[3] = bits.RotateLeft64(s.s[3], 45)

	return r
}

// Memory is the narrow view of a core's memory vector the cosmic ray can
// mutate: one bit flip, or one instruction overwrite.
type Memory interface {
	Size() int
	FlipBit(addr uint64, bit int)
	SetInst(addr uint64, inst byte)
}

// Config controls cosmic-ray behavior, taken from spec.md §6's MUTA_RANGE
// and MUTA_FLIP_BIT compile-time options.
type Config struct {
	Range   uint64 // MUTA_RANGE: cosmic-ray miss range.
	FlipBit bool   // true: single-bit flip; false: overwrite instruction bits.
}

// CosmicRay draws two numbers from state and, with probability
// MVEC_SIZE/MUTA_RANGE, perturbs one address of mem. The allocation bit is
// never touched by either mutation mode. Reports whether the draw actually
// landed inside mem (a miss leaves mem untouched), so callers can log
// cosmic-ray hits without re-deriving the same probability.
func CosmicRay(s *State, mem Memory, cfg Config) bool {
	a := s.Next() % cfg.Range
	b := s.Next()

	if a >= uint64(mem.Size()) {
		return false
	}

	if cfg.FlipBit {
		mem.FlipBit(a, int(b%8))
	} else {
		mem.SetInst(a, byte(b&0x7f))
	}
	return true
}
