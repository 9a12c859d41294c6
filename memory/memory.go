/*
 * Salis - Per-core byte-addressed memory vector.
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

// Package memory implements Salis's per-core byte-addressed memory: a flat
// vector of bytes where bit 7 of each byte is an allocation flag and the low
// seven bits hold an instruction.
package memory

import "math/bits"

const (
	// InstMask isolates the low 7 bits of a memory byte: the instruction.
	InstMask = 0x7f
	// AllocFlag is bit 7 of a memory byte: set means the byte is allocated
	// to some process's memory block.
	AllocFlag = 0x80
	// InstCount is the number of distinct opcodes an instruction byte may
	// take under InstMask.
	InstCount = 0x80
)

// Vector is one core's memory: a fixed-length byte array addressed modulo
// its size, plus the running count of allocated bytes.
type Vector struct {
	data  []byte
	alloc uint64 // count of bytes with AllocFlag set; kept in lockstep with data.
}

// New allocates a zeroed memory vector of the given size in bytes.
func New(size int) *Vector {
	if size <= 0 {
		panic("memory: size must be positive")
	}
	return &Vector{data: make([]byte, size)}
}

// Size returns the vector's length in bytes.
func (v *Vector) Size() int {
	return len(v.data)
}

// Alloc returns the number of bytes currently flagged as allocated.
func (v *Vector) Alloc() uint64 {
	return v.alloc
}

func (v *Vector) wrap(addr uint64) uint64 {
	return addr % uint64(len(v.data))
}

// IsAlloc reports whether the byte at addr carries the allocation flag.
func (v *Vector) IsAlloc(addr uint64) bool {
	return v.data[v.wrap(addr)]&AllocFlag != 0
}

// AllocAt sets the allocation flag at addr. Panics if already allocated —
// that is a contract violation, not a recoverable condition.
func (v *Vector) AllocAt(addr uint64) {
	a := v.wrap(addr)
	if v.data[a]&AllocFlag != 0 {
		panic("memory: alloc of already-allocated address")
	}
	v.data[a] |= AllocFlag
	v.alloc++
}

// FreeAt clears the allocation flag at addr. Panics if not allocated.
func (v *Vector) FreeAt(addr uint64) {
	a := v.wrap(addr)
	if v.data[a]&AllocFlag == 0 {
		panic("memory: free of unallocated address")
	}
	v.data[a] &^= AllocFlag
	v.alloc--
}

// GetByte returns the raw byte (instruction bits and allocation bit) at addr.
func (v *Vector) GetByte(addr uint64) byte {
	return v.data[v.wrap(addr)]
}

// GetInst returns the instruction bits at addr.
func (v *Vector) GetInst(addr uint64) byte {
	return v.data[v.wrap(addr)] & InstMask
}

// SetInst overwrites the instruction bits at addr, preserving the
// allocation bit. Panics if inst carries bits outside InstMask.
func (v *Vector) SetInst(addr uint64, inst byte) {
	if inst >= InstCount {
		panic("memory: instruction out of range")
	}
	a := v.wrap(addr)
	v.data[a] = (v.data[a] & AllocFlag) | inst
}

// FlipBit XORs one bit (0..7) within the instruction bits at addr, used by
// the cosmic-ray mutator in flip-bit mode. The allocation bit is untouched:
// bit 7 is masked out, so a flip of bit 7 leaves the byte unchanged.
func (v *Vector) FlipBit(addr uint64, bit int) {
	if bit < 0 || bit > 7 {
		panic("memory: flip bit out of range")
	}
	a := v.wrap(addr)
	v.data[a] ^= byte(1<<uint(bit)) & InstMask
}

// BlockOwnerView describes the memory blocks a live process owns, as
// reported by the architecture plug. Addresses are not pre-wrapped.
type BlockOwnerView interface {
	MB0Addr(pix uint64) uint64
	MB0Size(pix uint64) uint64
	MB1Addr(pix uint64) uint64
	MB1Size(pix uint64) uint64
}

// IsProcOwner reports whether addr falls within pix's mb0 or mb1 block.
func (v *Vector) IsProcOwner(pix uint64, addr uint64, blocks BlockOwnerView) bool {
	size := uint64(len(v.data))

	mb0a, mb0s := blocks.MB0Addr(pix), blocks.MB0Size(pix)
	if (addr-mb0a)%size < mb0s {
		return true
	}

	mb1a, mb1s := blocks.MB1Addr(pix), blocks.MB1Size(pix)
	if mb1s != 0 && (addr-mb1a)%size < mb1s {
		return true
	}

	return false
}

// Popcount returns the number of allocated bytes by direct popcount over
// the vector, independent of the incrementally maintained Alloc() counter.
// Used by invariant checks (component J) to cross-validate the counter.
func (v *Vector) Popcount() uint64 {
	var n uint64
	for _, b := range v.data {
		n += uint64(bits.OnesCount8(b & AllocFlag))
	}
	return n
}

// Bytes returns the raw backing array for persistence. Callers must not
// retain the slice across a Load.
func (v *Vector) Bytes() []byte {
	return v.data
}

// LoadBytes replaces the vector's contents with data, recomputing the
// allocation counter. Used by StatePersistence on restore.
func (v *Vector) LoadBytes(data []byte) {
	if len(data) != len(v.data) {
		panic("memory: size mismatch on load")
	}
	copy(v.data, data)
	v.alloc = v.Popcount()
}
