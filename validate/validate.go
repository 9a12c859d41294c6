/*
 * Salis - Debug-only invariant validation.
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

// Package validate implements the engine's debug-only invariant checks
// (spec.md §8, properties 1-6): ProcessTable bookkeeping, the allocation
// counter, per-process memory ownership, and IPC slot consistency.
// Grounded on salis_validate/salis_validate_core/arch_validate_proc
// (original_source) for exactly which invariants to check, and on
// util/debug/debug.go's debug-gated idiom for when to run them: callers
// gate these behind config.Config.Debug rather than a build tag, so a
// release binary pays nothing beyond one branch per Engine.Step call and a
// running simulation can still have checking turned on without a
// rebuild.
package validate

import (
	"fmt"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/core"
)

// Core checks one core's invariants against the engine's running step
// count and configured sync window. Returns the first violation found,
// or nil if the core is consistent.
func Core(c *core.Core, steps, syncInterval uint64) error {
	t := c.Table

	if t.Plst() < t.Pfst() {
		return fmt.Errorf("validate: plst %d < pfst %d", t.Plst(), t.Pfst())
	}
	if t.Pnum() != t.Plst()+1-t.Pfst() {
		return fmt.Errorf("validate: pnum %d != plst+1-pfst (%d)", t.Pnum(), t.Plst()+1-t.Pfst())
	}
	if t.Pnum() > t.Pcap() {
		return fmt.Errorf("validate: pnum %d exceeds pcap %d", t.Pnum(), t.Pcap())
	}
	if t.Pcur() < t.Pfst() || t.Pcur() > t.Plst() {
		return fmt.Errorf("validate: pcur %d outside live range [%d, %d]", t.Pcur(), t.Pfst(), t.Plst())
	}
	if t.Ncyc() > steps {
		return fmt.Errorf("validate: ncyc %d exceeds total steps %d", t.Ncyc(), steps)
	}

	if got, want := c.Memory.Alloc(), c.Memory.Popcount(); got != want {
		return fmt.Errorf("validate: mall %d does not match popcount %d", got, want)
	}

	for pix := t.Pfst(); pix <= t.Plst(); pix++ {
		if err := c.Arch.ValidateProc(c, pix); err != nil {
			return fmt.Errorf("validate: process %d: %w", pix, err)
		}
	}

	if err := ipcSlots(c, syncInterval); err != nil {
		return err
	}

	if want := steps % syncInterval; c.Ipc.Ivpt() != want {
		return fmt.Errorf("validate: ivpt %d != steps mod sync_interval (%d)", c.Ipc.Ivpt(), want)
	}

	return nil
}

// ipcSlots checks property 6: a zero instruction byte must pair with a
// zero address (an idle slot never carries a stray address once
// drained).
func ipcSlots(c *core.Core, syncInterval uint64) error {
	inst := c.Ipc.Inst()
	addr := c.Ipc.Addr()
	for i := uint64(0); i < syncInterval; i++ {
		if inst[i] == 0 && addr[i] != 0 {
			return fmt.Errorf("validate: ipc slot %d has zero instruction but nonzero address %#x", i, addr[i])
		}
	}
	return nil
}

// Engine checks the global sync invariant (property 1) and every core in
// cores.
func Engine(cores []*core.Core, steps, syncs, syncInterval uint64) error {
	if want := steps / syncInterval; syncs != want {
		return fmt.Errorf("validate: syncs %d != steps/sync_interval (%d)", syncs, want)
	}
	for i, c := range cores {
		if err := Core(c, steps, syncInterval); err != nil {
			return fmt.Errorf("validate: core %d: %w", i, err)
		}
	}
	return nil
}

// interface guard: core.Core must satisfy arch.CoreAccess for Core's
// ValidateProc call above to type-check against any architecture.
var _ arch.CoreAccess = (*core.Core)(nil)
