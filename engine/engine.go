/*
 * Salis - Multi-core simulation driver.
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

// Package engine implements the multi-core driver: it owns every core's
// state, advances them in parallel chunks sized to land exactly on sync
// boundaries, and rotates the IPC ring between chunks. Grounded on
// salis_loop/salis_run_thread/salis_sync (original_source) for the
// chunking and rotation algorithm, and on emu/core/core.go's
// sync.WaitGroup worker-join idiom in place of the original's raw
// thrd_create/thrd_join per chunk.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/config"
	"github.com/pauloliver/salis/core"
	"github.com/pauloliver/salis/engine/ancestor"
	"github.com/pauloliver/salis/engine/persist"
	"github.com/pauloliver/salis/ipc"
	"github.com/pauloliver/salis/memory"
	"github.com/pauloliver/salis/mutator"
	"github.com/pauloliver/salis/process"
	"github.com/pauloliver/salis/validate"
)

// Engine owns every core and the two running totals (steps, syncs) that
// span them. It is the library's sole externally visible entry point;
// host programs (cmd/salis, benchmarks, a UI) hold one Engine and call
// Step/Save/Load against it.
type Engine struct {
	Cores  []*core.Core
	Config config.Config
	Arch   arch.Architecture

	Steps uint64
	Syncs uint64
}

func mutaConfig(cfg config.Config) mutator.Config {
	return mutator.Config{Range: cfg.MutaRange, FlipBit: cfg.MutaFlipBit}
}

// New builds a fresh engine from cfg: one core per cfg.CoreCount, each
// seeded from a running SplitMix64 counter (core_init's per-core
// muta_smix sequence) and given its slice of cfg.AncList to load as an
// ancestor. If cfg.Action is ActionNew and cfg.AutoSaveInterval is set,
// the freshly built state is immediately auto-saved, matching
// salis_init's ACT_NEW path.
func New(cfg config.Config, a arch.Architecture) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(cfg.AncList)) != cfg.CoreCount {
		return nil, fmt.Errorf("engine: AncList has %d entries, want %d", len(cfg.AncList), cfg.CoreCount)
	}

	e := &Engine{Config: cfg, Arch: a, Cores: make([]*core.Core, cfg.CoreCount)}

	seed := cfg.Seed
	for i := uint64(0); i < cfg.CoreCount; i++ {
		mem := memory.New(int(cfg.MvecSize))
		tab := process.New(process.Proc{})
		ipcBuf := ipc.New(cfg.SyncInterval)
		c := core.New(mem, tab, ipcBuf, a, mutaConfig(cfg))
		if seed != 0 {
			c.Muta.Seed(&seed)
		}

		code, err := ancestor.LoadFile(cfg.AncList[i], a)
		if err != nil {
			return nil, fmt.Errorf("engine: core %d: %w", i, err)
		}
		ancestor.Seed(c, a, code, cfg.AncHalf, int(cfg.AncClones))

		e.Cores[i] = c
		slog.Debug("core initialized", "core", i, "ancestor", cfg.AncList[i])
	}

	if cfg.Action == config.ActionNew && cfg.AutoSaveInterval != 0 {
		if err := e.Save(persist.AutoSaveName(cfg.SimPath, e.Steps)); err != nil {
			return nil, fmt.Errorf("engine: initial auto-save: %w", err)
		}
	}

	return e, nil
}

// Load restores an engine previously written by Save, against a running
// configuration and architecture (neither of which is itself persisted —
// salis_load relies on the architecture already linked into the binary
// and on MVEC_SIZE/SYNC_INTERVAL matching the saved record).
func Load(r io.Reader, cfg config.Config, a arch.Architecture) (*Engine, error) {
	cores, steps, syncs, err := persist.LoadAll(r, int(cfg.CoreCount), cfg.SyncInterval, cfg.MvecSize, a, mutaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Engine{Cores: cores, Config: cfg, Arch: a, Steps: steps, Syncs: syncs}, nil
}

// LoadFile opens cfg.SimPath and calls Load.
func LoadFile(cfg config.Config, a arch.Architecture) (*Engine, error) {
	f, err := os.Open(cfg.SimPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, cfg, a)
}

// Save writes a complete snapshot to path.
func (e *Engine) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return persist.SaveAll(f, e.Cores, e.Steps, e.Syncs)
}

// runChunk advances every core by exactly dt steps, one worker goroutine
// per core, and blocks until all have finished — core_step is strictly
// single-threaded within one core, so each worker touches only its own
// Core and no synchronization is needed until the join.
func (e *Engine) runChunk(dt uint64) {
	var wg sync.WaitGroup
	for _, c := range e.Cores {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint64(0); i < dt; i++ {
				c.Step()
			}
		}()
	}
	wg.Wait()
	e.Steps += dt
}

// sync rotates the IPC ring: core i receives what was core (i+1 mod N)'s
// buffer, so a mutation pushed into core i's buffer during this window
// surfaces in core (i-1 mod N)'s memory during the following one. Mirrors
// salis_sync.
func (e *Engine) sync() {
	n := len(e.Cores)
	if n > 1 {
		first := e.Cores[0].Ipc
		for i := 0; i < n-1; i++ {
			e.Cores[i].Ipc = e.Cores[i+1].Ipc
		}
		e.Cores[n-1].Ipc = first
	}
	for _, c := range e.Cores {
		c.Ipc.ResetCursor()
	}
	e.Syncs++
}

// autoSave fires every cfg.AutoSaveInterval steps, naming the snapshot
// after the current step count in hex, matching salis_auto_save.
func (e *Engine) autoSave() {
	if e.Config.AutoSaveInterval == 0 || e.Steps%e.Config.AutoSaveInterval != 0 {
		return
	}
	name := persist.AutoSaveName(e.Config.SimPath, e.Steps)
	if err := e.Save(name); err != nil {
		slog.Error("auto-save failed", "path", name, "error", err)
		return
	}
	slog.Debug("auto-save complete", "path", name, "steps", e.Steps)
}

// Step advances the simulation by ns steps, chunked so every chunk ends
// exactly on a multiple of SyncInterval: a first short chunk closes out
// the window already in progress, then full-width chunks follow. Each
// chunk that lands on a sync boundary triggers a ring rotation and,
// if configured, an auto-save. Mirrors salis_step/salis_loop's recursion
// as an explicit loop.
func (e *Engine) Step(ns uint64) {
	if ns == 0 {
		return
	}

	interval := e.Config.SyncInterval
	remaining := ns
	dt := interval - e.Steps%interval

	for remaining > 0 {
		if dt > remaining {
			dt = remaining
		}

		e.runChunk(dt)
		remaining -= dt

		if e.Steps%interval == 0 {
			e.sync()
			e.autoSave()
		}

		dt = interval
	}

	if e.Config.Debug {
		if err := validate.Engine(e.Cores, e.Steps, e.Syncs, interval); err != nil {
			panic(err)
		}
	}
}
