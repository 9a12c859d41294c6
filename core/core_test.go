/*
 * Salis - Single-core stepper test cases.
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

package core

import (
	"testing"

	v1 "github.com/pauloliver/salis/arch/v1"
	"github.com/pauloliver/salis/ipc"
	"github.com/pauloliver/salis/memory"
	"github.com/pauloliver/salis/mutator"
	"github.com/pauloliver/salis/process"
)

func TestStepRoundRobinAdvancesAcrossLiveProcesses(t *testing.T) {
	mem := memory.New(16)
	tab := process.New(process.Proc{MB0S: 1})
	tab.New(process.Proc{MB0S: 1})
	c := New(mem, tab, ipc.New(16), v1.New(), mutator.Config{Range: 1 << 40})

	for i := 0; i < 10; i++ {
		c.Step()
	}

	if tab.Ncyc() == 0 {
		t.Fatalf("expected at least one full scheduling cycle after 10 steps")
	}
	if !tab.IsLive(tab.Pcur()) {
		t.Fatalf("pcur must always name a live process")
	}
}

// TestKillWhenFull mirrors the kill-when-full scenario: three processes
// own enough memory to push mall past half capacity; the first cycle
// boundary must kill the oldest until mall falls back below the
// threshold (or only one process remains).
func TestKillWhenFull(t *testing.T) {
	mem := memory.New(20)
	for addr := uint64(0); addr < 12; addr++ {
		mem.AllocAt(addr)
	}

	tab := process.New(process.Proc{MB0A: 0, MB0S: 4})
	tab.New(process.Proc{MB0A: 4, MB0S: 4})
	tab.New(process.Proc{MB0A: 8, MB0S: 4})

	c := New(mem, tab, ipc.New(8), v1.New(), mutator.Config{Range: 1 << 40})

	for i := 0; i < 3; i++ {
		c.Step()
	}

	if tab.Pnum() != 2 {
		t.Fatalf("pnum = %d, want 2 after the kill-when-full cycle", tab.Pnum())
	}
	if mem.Alloc() != 8 {
		t.Fatalf("mall = %d, want 8 after freeing the killed process's 4 bytes", mem.Alloc())
	}
	if tab.IsLive(0) {
		t.Fatalf("process 0 (the oldest) should have been killed first")
	}
}

func buildIncrementingCore(seed uint64) *Core {
	mem := memory.New(10)
	tab := process.New(process.Proc{MB0A: 0, MB0S: 2})
	c := New(mem, tab, ipc.New(64), v1.New(), mutator.Config{Range: 23, FlipBit: false})
	mem.AllocAt(0)
	mem.AllocAt(1)
	mem.SetInst(0, 19) // incn
	mem.SetInst(1, 1)  // nop0

	s := seed
	c.Muta.Seed(&s)
	return c
}

func TestDeterministicGivenSameSeedAndProgram(t *testing.T) {
	a := buildIncrementingCore(0xdeadbeef)
	b := buildIncrementingCore(0xdeadbeef)

	for i := 0; i < 50; i++ {
		a.Step()
		b.Step()
	}

	for addr := uint64(0); addr < 10; addr++ {
		if a.Memory.GetByte(addr) != b.Memory.GetByte(addr) {
			t.Fatalf("memory diverged at address %d: %#x != %#x", addr, a.Memory.GetByte(addr), b.Memory.GetByte(addr))
		}
	}
	if a.Table.Ncyc() != b.Table.Ncyc() || a.Table.Pcur() != b.Table.Pcur() {
		t.Fatalf("process table state diverged between identically seeded runs")
	}
}

func TestOwnerPanicsOnUnallocatedAddress(t *testing.T) {
	mem := memory.New(8)
	tab := process.New(process.Proc{MB0S: 1})
	c := New(mem, tab, ipc.New(8), v1.New(), mutator.Config{Range: 1 << 40})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic querying the owner of an unallocated address")
		}
	}()
	c.Owner(5)
}

func TestOwnerFindsLiveOwningProcess(t *testing.T) {
	mem := memory.New(8)
	mem.AllocAt(3)
	tab := process.New(process.Proc{MB0A: 0, MB0S: 1})
	tab.New(process.Proc{MB0A: 3, MB0S: 1})
	c := New(mem, tab, ipc.New(8), v1.New(), mutator.Config{Range: 1 << 40})

	if got := c.Owner(3); got != 1 {
		t.Fatalf("Owner(3) = %d, want 1", got)
	}
}
