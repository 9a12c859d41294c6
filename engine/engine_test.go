/*
 * Salis - Multi-core driver test cases.
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

package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/pauloliver/salis/arch/v1"
	"github.com/pauloliver/salis/config"
	"github.com/pauloliver/salis/process"
)

func testConfig(coreCount uint64) config.Config {
	cfg := config.Default()
	cfg.CoreCount = coreCount
	cfg.MvecSize = 256
	cfg.SyncInterval = 8
	cfg.Seed = 0xdeadbeef
	cfg.MutaRange = 1 << 30
	cfg.AncClones = 1
	cfg.AncList = make([]string, coreCount)
	for i := range cfg.AncList {
		cfg.AncList[i] = "_"
	}
	return cfg
}

// TestEmptyCoreStaysEmpty mirrors S1: a core with no ancestor holds at most
// its zero-valued startup process and one step still advances the global
// counter.
func TestEmptyCoreStaysEmpty(t *testing.T) {
	cfg := testConfig(1)
	e, err := New(cfg, v1.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Mirrors spec.md S1: with no ancestor the table still holds the
	// single zero-valued slot core_init always allocates (pnum==1), or a
	// reimplementation may choose to leave it empty (pnum==0) — the
	// spec accepts either.
	if pnum := e.Cores[0].Table.Pnum(); pnum != 0 && pnum != 1 {
		t.Fatalf("Pnum = %d, want 0 or 1 for an ancestor-less core", pnum)
	}

	e.Step(1)
	if e.Steps != 1 {
		t.Fatalf("Steps = %d, want 1", e.Steps)
	}
}

// TestSyncSwapsIpcBufferIdentityBetweenCores mirrors the ring-rotation half
// of S5: after one sync window, core i must be holding the exact buffer
// object core i+1 held before, and every cursor must have reset to 0.
func TestSyncSwapsIpcBufferIdentityBetweenCores(t *testing.T) {
	cfg := testConfig(2)
	e, err := New(cfg, v1.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before0, before1 := e.Cores[0].Ipc, e.Cores[1].Ipc

	e.Step(cfg.SyncInterval)

	if e.Syncs != 1 {
		t.Fatalf("Syncs = %d, want 1", e.Syncs)
	}
	if e.Cores[0].Ipc != before1 {
		t.Fatalf("core 0 should now hold core 1's former buffer")
	}
	if e.Cores[1].Ipc != before0 {
		t.Fatalf("core 1 should now hold core 0's former buffer")
	}
	if e.Cores[0].Ipc.Ivpt() != 0 || e.Cores[1].Ipc.Ivpt() != 0 {
		t.Fatalf("both cursors should reset to 0 after a sync")
	}
}

// TestPendingIpcMutationAppliesWhenDrained mirrors the drain half of S5: a
// mutation sitting in a core's current buffer at the cursor's slot gets
// applied to that core's own memory the moment the stepper reaches it, and
// the slot clears afterward — this is what makes a mutation written by the
// previous owner during the prior window surface once rotation hands the
// buffer to its new owner.
func TestPendingIpcMutationAppliesWhenDrained(t *testing.T) {
	cfg := testConfig(2)
	e, err := New(cfg, v1.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Cores[1].Ipc.Push(0x2a, 7)

	e.Step(1)

	if e.Cores[1].Memory.GetInst(7) != 0x2a {
		t.Fatalf("core 1 memory at address 7 = %#x, want 0x2a", e.Cores[1].Memory.GetInst(7))
	}
	if e.Cores[1].Ipc.Inst()[0] != 0 || e.Cores[1].Ipc.Addr()[0] != 0 {
		t.Fatalf("drained slot should be clear")
	}
}

// TestSaveLoadRoundTrip mirrors S6: running for two sync windows, saving,
// and reloading into a fresh engine must reproduce identical scalars and
// memory bit-for-bit, and re-saving immediately after load with zero
// further steps must byte-for-byte match the original snapshot.
func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := testConfig(2)
	e, err := New(cfg, v1.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Step(2 * cfg.SyncInterval)

	path := filepath.Join(t.TempDir(), "snap")
	if err := e.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	loaded, err := Load(bytes.NewReader(saved), cfg, v1.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Steps != e.Steps || loaded.Syncs != e.Syncs {
		t.Fatalf("loaded (steps=%d, syncs=%d) != saved (steps=%d, syncs=%d)", loaded.Steps, loaded.Syncs, e.Steps, e.Syncs)
	}
	for i := range e.Cores {
		if !bytes.Equal(e.Cores[i].Memory.Bytes(), loaded.Cores[i].Memory.Bytes()) {
			t.Fatalf("core %d memory diverged across save/load", i)
		}
		if e.Cores[i].Table.Pnum() != loaded.Cores[i].Table.Pnum() {
			t.Fatalf("core %d pnum diverged across save/load", i)
		}
	}

	reloadPath := filepath.Join(t.TempDir(), "snap2")
	if err := loaded.Save(reloadPath); err != nil {
		t.Fatalf("Save after load: %v", err)
	}
	again, err := os.ReadFile(reloadPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(saved, again) {
		t.Fatalf("re-saving a freshly loaded engine with zero additional steps changed the snapshot")
	}
}

// TestDebugConfigValidatesInvariants exercises the debug-gated validator
// hook end to end: with cfg.Debug set, Step must not panic across a
// handful of sync windows on a core whose one process owns memory.
func TestDebugConfigValidatesInvariants(t *testing.T) {
	cfg := testConfig(1)
	cfg.Debug = true

	e, err := New(cfg, v1.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Replace the ancestor-less zero process with a single process that
	// actually owns memory, so every arch.ValidateProc call the debug
	// hook makes succeeds.
	e.Cores[0].Table = process.New(process.Proc{MB0A: 0, MB0S: 4, IP: 0, SP: 0})
	for addr := uint64(0); addr < 4; addr++ {
		e.Cores[0].Memory.AllocAt(addr)
	}

	e.Step(3 * cfg.SyncInterval)
}
