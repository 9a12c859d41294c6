/*
 * Salis - Inter-core IPC sync buffer.
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

// Package ipc implements a core's IPC sync buffer: a fixed-length vector
// of pending memory mutations, written at most once per step and drained
// once per sync window after the multi-core driver rotates buffers
// across cores.
package ipc

// pendingFlag marks a slot as holding an unapplied mutation; mirrors
// IPCM_FLAG (bit 7 of the instruction byte, the same bit memory uses for
// its allocation flag, but in an unrelated byte vector).
const pendingFlag = 0x80

// instMask isolates the instruction bits of a pending slot.
const instMask = 0x7f

// Buffer is one core's fixed-length IPC sync buffer.
type Buffer struct {
	inst []byte   // iviv
	addr []uint64 // ivav
	ivpt uint64   // write/drain cursor within the current sync window
}

// New creates a zeroed buffer sized for a sync window of size slots.
func New(size uint64) *Buffer {
	if size == 0 {
		panic("ipc: buffer size must be positive")
	}
	return &Buffer{
		inst: make([]byte, size),
		addr: make([]uint64, size),
	}
}

// FromState rebuilds a buffer from persisted slot vectors and cursor, for
// StatePersistence's Load path.
func FromState(inst []byte, addr []uint64, ivpt uint64) *Buffer {
	if len(inst) != len(addr) {
		panic("ipc: inst/addr length mismatch")
	}
	return &Buffer{inst: inst, addr: addr, ivpt: ivpt}
}

// Len returns the buffer's slot count (the sync window size).
func (b *Buffer) Len() uint64 { return uint64(len(b.inst)) }

// Ivpt returns the current cursor position.
func (b *Buffer) Ivpt() uint64 { return b.ivpt }

// Inst returns the raw instruction-slot vector, for persistence.
func (b *Buffer) Inst() []byte { return b.inst }

// Addr returns the raw address-slot vector, for persistence.
func (b *Buffer) Addr() []uint64 { return b.addr }

// ResetCursor sets ivpt back to 0, as salis_sync does to every core after
// a ring rotation.
func (b *Buffer) ResetCursor() { b.ivpt = 0 }

// Push records a pending mutation at the current cursor without
// advancing it. Panics if the cursor is out of range or the slot is
// already pending — at most one push per step is a contract invariant.
func (b *Buffer) Push(inst byte, addr uint64) {
	if b.ivpt >= uint64(len(b.inst)) {
		panic("ipc: push past end of sync window")
	}
	if inst&pendingFlag != 0 {
		panic("ipc: pushed instruction must not carry the pending flag")
	}
	if b.inst[b.ivpt] != 0 || b.addr[b.ivpt] != 0 {
		panic("ipc: push onto an already-pending slot")
	}
	b.inst[b.ivpt] = inst | pendingFlag
	b.addr[b.ivpt] = addr
}

// Sink is the memory write surface a drained IPC mutation applies to.
type Sink interface {
	SetInst(addr uint64, inst byte)
}

// Drain applies the pending mutation at the current cursor to mem (if
// any) and clears the slot, without moving the cursor — mirrors
// core_pull_ipcm. The caller advances the cursor separately with Advance
// once the process step that follows has run, matching core_step's
// drain-then-step-then-ivpt++ order.
func (b *Buffer) Drain(mem Sink) {
	if b.ivpt >= uint64(len(b.inst)) {
		panic("ipc: drain past end of sync window")
	}

	if b.inst[b.ivpt]&pendingFlag != 0 {
		mem.SetInst(b.addr[b.ivpt], b.inst[b.ivpt]&instMask)
		b.inst[b.ivpt] = 0
		b.addr[b.ivpt] = 0
	}
}

// Advance moves the cursor forward by one slot.
func (b *Buffer) Advance() { b.ivpt++ }
