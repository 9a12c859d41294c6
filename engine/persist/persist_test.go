/*
 * Salis - State persistence test cases.
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

package persist

import (
	"bytes"
	"testing"

	v1 "github.com/pauloliver/salis/arch/v1"
	"github.com/pauloliver/salis/core"
	"github.com/pauloliver/salis/ipc"
	"github.com/pauloliver/salis/memory"
	"github.com/pauloliver/salis/mutator"
	"github.com/pauloliver/salis/process"
)

func buildCore(t *testing.T) *core.Core {
	t.Helper()
	mem := memory.New(32)
	for addr := uint64(0); addr < 6; addr++ {
		mem.AllocAt(addr)
	}
	mem.SetInst(0, 19) // incn
	mem.SetInst(1, 1)  // nop0

	tab := process.New(process.Proc{MB0A: 0, MB0S: 4, IP: 0, SP: 1})
	tab.New(process.Proc{MB0A: 4, MB0S: 2, IP: 1})

	mutaCfg := mutator.Config{Range: 1 << 20, FlipBit: true}
	c := core.New(mem, tab, ipc.New(8), v1.New(), mutaCfg)
	seed := uint64(0x1234)
	c.Muta.Seed(&seed)
	c.Ipc.Push(0x2a, 5)

	for i := 0; i < 5; i++ {
		c.Step()
	}
	return c
}

// TestSaveLoadCoreRoundTrip mirrors S6 at the single-core level: a record
// written by SaveCore and read back by LoadCore must reproduce every
// scalar, the PRNG state, the process vector, the IPC buffer and the
// memory bytes exactly.
func TestSaveLoadCoreRoundTrip(t *testing.T) {
	c := buildCore(t)

	var buf bytes.Buffer
	if err := SaveCore(&buf, c); err != nil {
		t.Fatalf("SaveCore: %v", err)
	}

	loaded, err := LoadCore(&buf, 8, 32, v1.New(), mutator.Config{Range: 1 << 20, FlipBit: true})
	if err != nil {
		t.Fatalf("LoadCore: %v", err)
	}

	if !bytes.Equal(c.Memory.Bytes(), loaded.Memory.Bytes()) {
		t.Fatalf("memory bytes diverged across round trip")
	}
	if c.Muta.Words() != loaded.Muta.Words() {
		t.Fatalf("PRNG state diverged across round trip")
	}
	if c.Table.Pnum() != loaded.Table.Pnum() || c.Table.Pcap() != loaded.Table.Pcap() ||
		c.Table.Pfst() != loaded.Table.Pfst() || c.Table.Plst() != loaded.Table.Plst() ||
		c.Table.Pcur() != loaded.Table.Pcur() || c.Table.Psli() != loaded.Table.Psli() ||
		c.Table.Ncyc() != loaded.Table.Ncyc() {
		t.Fatalf("process table scalars diverged across round trip")
	}
	for _, pix := range []uint64{c.Table.Pfst(), c.Table.Plst()} {
		if c.Table.Get(pix) != loaded.Table.Get(pix) {
			t.Fatalf("process %d diverged across round trip", pix)
		}
	}
	if c.Ipc.Ivpt() != loaded.Ipc.Ivpt() {
		t.Fatalf("ivpt diverged across round trip")
	}
	if !bytes.Equal(c.Ipc.Inst(), loaded.Ipc.Inst()) {
		t.Fatalf("ipc instruction slots diverged across round trip")
	}
}

// TestLoadCoreRejectsMallMismatch exercises LoadCore's sanity check: a
// corrupted saved alloc count must surface as an error, not a silently
// wrong core.
func TestLoadCoreRejectsMallMismatch(t *testing.T) {
	c := buildCore(t)

	var buf bytes.Buffer
	if err := SaveCore(&buf, c); err != nil {
		t.Fatalf("SaveCore: %v", err)
	}

	corrupted := buf.Bytes()
	corrupted[0] ^= 0xff // mall is the first little-endian uint64 written

	if _, err := LoadCore(bytes.NewReader(corrupted), 8, 32, v1.New(), mutator.Config{Range: 1 << 20, FlipBit: true}); err == nil {
		t.Fatalf("expected an error loading a record with a corrupted alloc count")
	}
}

// TestSaveLoadAllRoundTrip mirrors S6 at the driver level: SaveAll/LoadAll
// must round-trip every core plus the two running totals.
func TestSaveLoadAllRoundTrip(t *testing.T) {
	cores := []*core.Core{buildCore(t), buildCore(t)}

	var buf bytes.Buffer
	if err := SaveAll(&buf, cores, 40, 5); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	loaded, steps, syncs, err := LoadAll(&buf, len(cores), 8, 32, v1.New(), mutator.Config{Range: 1 << 20, FlipBit: true})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if steps != 40 || syncs != 5 {
		t.Fatalf("steps=%d syncs=%d, want 40 and 5", steps, syncs)
	}
	if len(loaded) != len(cores) {
		t.Fatalf("loaded %d cores, want %d", len(loaded), len(cores))
	}
	for i := range cores {
		if !bytes.Equal(cores[i].Memory.Bytes(), loaded[i].Memory.Bytes()) {
			t.Fatalf("core %d memory diverged across round trip", i)
		}
	}
}

func TestAutoSaveNameFormat(t *testing.T) {
	got := AutoSaveName("run", 0x2a)
	want := "run-000000000000002A"
	if got != want {
		t.Fatalf("AutoSaveName = %q, want %q", got, want)
	}
}
