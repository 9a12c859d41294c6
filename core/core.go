/*
 * Salis - Single-core simulation state and stepper.
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

// Package core implements a single Salis core: memory, a process table,
// an IPC sync buffer, a mutator PRNG, and an architecture plug wired
// together, plus the CoreStepper that advances them one instruction
// slice at a time.
package core

import (
	"fmt"
	"log/slog"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/ipc"
	"github.com/pauloliver/salis/memory"
	"github.com/pauloliver/salis/mutator"
	"github.com/pauloliver/salis/process"
)

// Core bundles one simulation core's exclusive state. A Core is not
// safe for concurrent use; the engine gives each goroutine its own Core
// for the duration of a step chunk.
type Core struct {
	Memory *memory.Vector
	Table  *process.Table
	Ipc    *ipc.Buffer
	Muta   mutator.State
	Arch   arch.Architecture

	mutaCfg mutator.Config
}

// New assembles a core from its parts. mutaCfg controls cosmic-ray
// behavior (see mutator.Config).
func New(mem *memory.Vector, tab *process.Table, ipcBuf *ipc.Buffer, a arch.Architecture, mutaCfg mutator.Config) *Core {
	return &Core{Memory: mem, Table: tab, Ipc: ipcBuf, Arch: a, mutaCfg: mutaCfg}
}

// CoreAccess implementation — the narrow surface arch.Architecture uses.

func (c *Core) MemSize() uint64 { return uint64(c.Memory.Size()) }

func (c *Core) IsAlloc(addr uint64) bool { return c.Memory.IsAlloc(addr) }
func (c *Core) AllocAt(addr uint64)      { c.Memory.AllocAt(addr) }
func (c *Core) FreeAt(addr uint64)       { c.Memory.FreeAt(addr) }
func (c *Core) GetInst(addr uint64) byte { return c.Memory.GetInst(addr) }

func (c *Core) SetInst(addr uint64, inst byte) { c.Memory.SetInst(addr, inst) }

func (c *Core) IsProcOwner(pix, addr uint64) bool {
	return c.Memory.IsProcOwner(pix, addr, c)
}

func (c *Core) IsLive(pix uint64) bool { return c.Table.IsLive(pix) }

func (c *Core) ProcGet(pix uint64) process.Proc    { return c.Table.Get(pix) }
func (c *Core) ProcFetch(pix uint64) *process.Proc { return c.Table.Fetch(pix) }
func (c *Core) ProcNew(p process.Proc)             { c.Table.New(p) }

// memory.BlockOwnerView implementation, backed directly by the process
// table: mb0/mb1 are universal process fields, not architecture-specific,
// so this does not need to go through arch.Architecture.

func (c *Core) MB0Addr(pix uint64) uint64 { return c.Table.Get(pix).MB0A }
func (c *Core) MB0Size(pix uint64) uint64 { return c.Table.Get(pix).MB0S }
func (c *Core) MB1Addr(pix uint64) uint64 { return c.Table.Get(pix).MB1A }
func (c *Core) MB1Size(pix uint64) uint64 { return c.Table.Get(pix).MB1S }

// Owner returns the index of the live process that owns addr. Panics if
// addr is unallocated or owned by no live process — both are contract
// violations, mirroring mvec_get_owner's assertions.
func (c *Core) Owner(addr uint64) uint64 {
	if !c.Memory.IsAlloc(addr) {
		panic(fmt.Sprintf("core: owner query on unallocated address %#x", addr))
	}
	for pix := c.Table.Pfst(); pix <= c.Table.Plst(); pix++ {
		if c.Memory.IsProcOwner(pix, addr, c) {
			return pix
		}
	}
	panic(fmt.Sprintf("core: allocated address %#x has no owning process", addr))
}

// Step advances the core by exactly one instruction slice, performing
// whatever cycle-boundary bookkeeping (round-robin advance, kill-when-
// full, cosmic ray) falls due first. Mirrors core_step's recursion as an
// explicit loop: each loop body maps to one recursive call in the
// original, terminating the first time a slice is actually consumed.
func (c *Core) Step() {
	for {
		if c.Table.Psli() != 0 {
			c.Ipc.Drain(c.Memory)
			c.Arch.ProcStep(c, c.Table.Pcur())
			c.Table.SetPsli(c.Table.Psli() - 1)
			c.Ipc.Advance()
			return
		}

		if c.Table.Pcur() != c.Table.Plst() {
			c.Table.IncPcur()
			c.Table.SetPsli(c.Arch.ProcSlice(c, c.Table.Pcur()))
			continue
		}

		c.Table.SetPcur(c.Table.Pfst())
		c.Table.SetPsli(c.Arch.ProcSlice(c, c.Table.Pcur()))
		c.Table.IncNcyc()

		killed := uint64(0)
		for c.Memory.Alloc() > uint64(c.Memory.Size())/2 && c.Table.Pnum() > 1 {
			c.Table.Kill(func(pfst uint64) { c.Arch.OnProcKill(c, pfst) })
			killed++
		}
		if killed > 0 {
			slog.Debug("kill-when-full burst", "killed", killed, "pnum", c.Table.Pnum())
		}
		if c.Table.Pnum() == 0 {
			panic("core: process table emptied at a cycle boundary")
		}

		// No per-cycle attrs here: a long run can take a cosmic-ray hit every
		// cycle on every core, and salog.Handler only coalesces a run of
		// records whose attrs are identical.
		if mutator.CosmicRay(&c.Muta, c.Memory, c.mutaCfg) {
			slog.Debug("cosmic ray hit")
		}
		continue
	}
}
