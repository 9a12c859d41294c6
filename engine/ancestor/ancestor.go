/*
 * Salis - Ancestor assembler and loader.
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

// Package ancestor implements the ancestor loader: it reads a mnemonic
// assembly source into bytecode and seeds a freshly initialised core with
// one or more copies of it, grounded on the original assembler's mnemonic
// lookup and arch_anc_init's clone placement.
package ancestor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/process"
)

// Skip is the ancestor filename that means "no ancestor on this core".
const Skip = "_"

// mnemonicTable builds the mnemonic-to-opcode lookup once per architecture,
// covering the assembler's full 0..256 range by asking the architecture for
// every index and letting it wrap modulo its own opcode count — the same
// range core_assemble_ancestor's g_mnemo_table covered in the original.
func mnemonicTable(a arch.Architecture) map[string]byte {
	table := make(map[string]byte, 0x100)
	for i := 0; i < 0x100; i++ {
		inst := byte(i % a.InstCount())
		table[a.Mnemonic(inst)] = inst
	}
	return table
}

// Load parses a mnemonic-per-line assembly source into instruction bytes in
// address order. An unknown mnemonic is a fatal configuration error,
// matching core_assemble_ancestor's assert(line_ok).
func Load(r io.Reader, a arch.Architecture) ([]byte, error) {
	table := mnemonicTable(a)
	var code []byte

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		mnemonic := strings.TrimRight(scanner.Text(), "\r\n")
		if mnemonic == "" {
			continue
		}
		inst, ok := table[mnemonic]
		if !ok {
			return nil, fmt.Errorf("ancestor: line %d: unknown mnemonic %q", lineNumber, mnemonic)
		}
		code = append(code, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return code, nil
}

// LoadFile opens name and parses it. name == Skip returns a nil code and no
// error, matching the "_" no-ancestor convention.
func LoadFile(name string, a arch.Architecture) ([]byte, error) {
	if name == Skip {
		return nil, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, a)
}

// Seed writes code into c's memory at clones evenly spaced origins
// (starting at the memory midpoint if half is set, else address 0),
// replicating it fully at each origin, grows the process table to clones
// live entries, and hands off to the architecture to stamp each clone's
// registers via AncInit.
//
// The original's arch_anc_init only ever placed one copy of the assembled
// bytes at address 0 and then pointed every clone's mb0a at an independent,
// never-written offset — harmless only because every shipped config used
// ANC_CLONES == 1. A validator checking that a live process owns allocated
// memory would fail the moment ANC_CLONES > 1, so Seed replicates the
// bytes to every clone's origin before handing off to AncInit.
//
// A nil or empty code (from Skip) leaves the core untouched. With non-empty
// code, clones < 1 panics.
func Seed(c arch.CoreAccess, a arch.Architecture, code []byte, half bool, clones int) {
	if len(code) == 0 {
		return
	}
	if clones < 1 {
		panic("ancestor: clones must be >= 1")
	}

	var base uint64
	if half {
		base = c.MemSize() / 2
	}
	step := c.MemSize() / uint64(clones)

	for i := 0; i < clones; i++ {
		origin := base + step*uint64(i)
		for off, inst := range code {
			addr := origin + uint64(off)
			c.AllocAt(addr)
			c.SetInst(addr, inst)
		}
		if i > 0 {
			c.ProcNew(process.Proc{})
		}
	}

	a.AncInit(c, uint64(len(code)), half, clones)
}
