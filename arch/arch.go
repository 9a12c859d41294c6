/*
 * Salis - Architecture plug contract.
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

// Package arch defines the Architecture plug contract: the instruction
// set and process-memory-layout semantics a core runs, kept separate
// from the engine so a core can be built against any conforming
// implementation. v1 (package arch/v1) is the one shipped implementation.
package arch

import "github.com/pauloliver/salis/process"

// CoreAccess is the narrow view of a core an Architecture implementation
// needs: memory access and process-table access, with no knowledge of
// scheduling, IPC, or the PRNG. A *core.Core satisfies this structurally.
type CoreAccess interface {
	// Memory
	MemSize() uint64
	IsAlloc(addr uint64) bool
	AllocAt(addr uint64)
	FreeAt(addr uint64)
	GetInst(addr uint64) byte
	SetInst(addr uint64, inst byte)
	IsProcOwner(pix, addr uint64) bool

	// Process table
	IsLive(pix uint64) bool
	ProcGet(pix uint64) process.Proc
	ProcFetch(pix uint64) *process.Proc
	ProcNew(p process.Proc)
}

// Architecture is the instruction-set plug contract. Every method that
// takes a pix operates on a process the caller has already confirmed is
// live.
type Architecture interface {
	// ProcSlice returns the number of execution slices pix receives this
	// scheduling round (always 1 for v1; the contract allows variation).
	ProcSlice(c CoreAccess, pix uint64) uint64

	// ProcStep executes one instruction for pix.
	ProcStep(c CoreAccess, pix uint64)

	// OnProcKill is called with pfst, the index of the process the table
	// is about to retire, immediately before it does so. It must free any
	// memory that process owns and overwrite its record with the
	// architecture's dead-process template.
	OnProcKill(c CoreAccess, pfst uint64)

	// AncInit stamps the first clones live process records so each one
	// wraps a size-byte copy of the ancestor code. The loader has already
	// written and allocated every copy (at address 0, or the memory
	// midpoint when half is set, then every MemSize/clones bytes);
	// AncInit itself writes no memory.
	AncInit(c CoreAccess, size uint64, half bool, clones int)

	// Symbol returns the single-character glyph used to render inst in a
	// memory dump.
	Symbol(inst byte) rune

	// Mnemonic returns the short text name of inst, used both for
	// rendering and for parsing ancestor source files.
	Mnemonic(inst byte) string

	// InstCount is the number of distinct opcodes this architecture
	// defines; instruction bytes are taken modulo this count.
	InstCount() int

	// ValidateProc checks pix's record against architecture-specific
	// invariants (e.g. "a live process owns at least one byte of
	// memory"). Returns a descriptive error on violation.
	ValidateProc(c CoreAccess, pix uint64) error
}
