/*
 * Salis - Simulation state persistence.
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

// Package persist implements state persistence for a running simulation:
// each core's fixed-layout binary record plus the driver's two running
// totals, grounded on salis_save/salis_load's sequential field dump and,
// for the binary encoding itself, the encoding/binary.Write idiom used for
// machine-state snapshots elsewhere in the retrieval pack.
package persist

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/core"
	"github.com/pauloliver/salis/ipc"
	"github.com/pauloliver/salis/memory"
	"github.com/pauloliver/salis/mutator"
	"github.com/pauloliver/salis/process"
	"github.com/pauloliver/salis/util/hex"
)

var order = binary.LittleEndian

// SaveCore writes one core's state as a fixed record: scalar table fields,
// the IPC slot vectors, the raw process vector, then the memory vector —
// the same field order salis_save used, but via a structured binary
// encoding instead of a raw C struct dump.
func SaveCore(w io.Writer, c *core.Core) error {
	fields := []uint64{
		c.Memory.Alloc(),
	}
	words := c.Muta.Words()
	fields = append(fields, words[0], words[1], words[2], words[3])
	fields = append(fields,
		c.Table.Pnum(), c.Table.Pcap(), c.Table.Pfst(), c.Table.Plst(),
		c.Table.Pcur(), c.Table.Psli(), c.Table.Ncyc(), c.Ipc.Ivpt(),
	)
	for _, v := range fields {
		if err := binary.Write(w, order, v); err != nil {
			return err
		}
	}

	if err := binary.Write(w, order, c.Ipc.Inst()); err != nil {
		return err
	}
	if err := binary.Write(w, order, c.Ipc.Addr()); err != nil {
		return err
	}

	for _, p := range c.Table.Raw() {
		if err := writeProc(w, p); err != nil {
			return err
		}
	}

	if err := binary.Write(w, order, c.Memory.Bytes()); err != nil {
		return err
	}
	return nil
}

func writeProc(w io.Writer, p process.Proc) error {
	fields := [18]uint64{
		p.IP, p.SP, p.MB0A, p.MB0S, p.MB1A, p.MB1S,
		p.R0X, p.R1X, p.R2X, p.R3X,
		p.S0, p.S1, p.S2, p.S3, p.S4, p.S5, p.S6, p.S7,
	}
	return binary.Write(w, order, fields)
}

func readProc(r io.Reader) (process.Proc, error) {
	var fields [18]uint64
	if err := binary.Read(r, order, &fields); err != nil {
		return process.Proc{}, err
	}
	return process.Proc{
		IP: fields[0], SP: fields[1], MB0A: fields[2], MB0S: fields[3],
		MB1A: fields[4], MB1S: fields[5],
		R0X: fields[6], R1X: fields[7], R2X: fields[8], R3X: fields[9],
		S0: fields[10], S1: fields[11], S2: fields[12], S3: fields[13],
		S4: fields[14], S5: fields[15], S6: fields[16], S7: fields[17],
	}, nil
}

// LoadCore reads one core's record written by SaveCore, rebuilding its
// memory vector, PRNG state, process table, and IPC buffer. syncInterval
// and mvecSize must match the values the record was saved with — they are
// not themselves persisted, matching salis_load's reliance on the running
// configuration to size its callocs. a and mutaCfg come from the running
// configuration, not the file, the same way salis_load relies on the
// architecture already linked into the binary.
func LoadCore(r io.Reader, syncInterval, mvecSize uint64, a arch.Architecture, mutaCfg mutator.Config) (*core.Core, error) {
	var mall uint64
	if err := binary.Read(r, order, &mall); err != nil {
		return nil, err
	}
	var muta [4]uint64
	if err := binary.Read(r, order, &muta); err != nil {
		return nil, err
	}
	var pnum, pcap, pfst, plst, pcur, psli, ncyc, ivpt uint64
	for _, dst := range []*uint64{&pnum, &pcap, &pfst, &plst, &pcur, &psli, &ncyc, &ivpt} {
		if err := binary.Read(r, order, dst); err != nil {
			return nil, err
		}
	}

	inst := make([]byte, syncInterval)
	if err := binary.Read(r, order, inst); err != nil {
		return nil, err
	}
	addr := make([]uint64, syncInterval)
	if err := binary.Read(r, order, addr); err != nil {
		return nil, err
	}

	pvec := make([]process.Proc, pcap)
	for i := range pvec {
		p, err := readProc(r)
		if err != nil {
			return nil, err
		}
		pvec[i] = p
	}

	data := make([]byte, mvecSize)
	if err := binary.Read(r, order, data); err != nil {
		return nil, err
	}

	mem := memory.New(int(mvecSize))
	mem.LoadBytes(data)
	if mem.Alloc() != mall {
		return nil, fmt.Errorf("persist: loaded alloc count %d does not match saved %d", mem.Alloc(), mall)
	}

	tab := process.FromState(pnum, pcap, pfst, plst, pcur, psli, ncyc, pvec)
	ipcBuf := ipc.FromState(inst, addr, ivpt)

	c := core.New(mem, tab, ipcBuf, a, mutaCfg)
	c.Muta.LoadWords(muta)
	return c, nil
}

// SaveAll writes every core's record in order, followed by the driver's
// two running totals — salis_save's full snapshot.
func SaveAll(w io.Writer, cores []*core.Core, steps, syncs uint64) error {
	for _, c := range cores {
		if err := SaveCore(w, c); err != nil {
			return err
		}
	}
	if err := binary.Write(w, order, steps); err != nil {
		return err
	}
	return binary.Write(w, order, syncs)
}

// LoadAll reads count cores' records followed by the driver's running
// totals, the inverse of SaveAll.
func LoadAll(r io.Reader, count int, syncInterval, mvecSize uint64, a arch.Architecture, mutaCfg mutator.Config) (cores []*core.Core, steps, syncs uint64, err error) {
	cores = make([]*core.Core, count)
	for i := range cores {
		cores[i], err = LoadCore(r, syncInterval, mvecSize, a, mutaCfg)
		if err != nil {
			return nil, 0, 0, err
		}
	}
	if err = binary.Read(r, order, &steps); err != nil {
		return nil, 0, 0, err
	}
	if err = binary.Read(r, order, &syncs); err != nil {
		return nil, 0, 0, err
	}
	return cores, steps, syncs, nil
}

// AutoSaveName builds the auto-save filename "<simPath>-<steps as 16 hex
// digits>", matching salis_auto_save's "<SIM_PATH>-<g_steps-hex-18>"
// (the "18" there counts the "0x" prefix salis's printf added; this
// encoding drops the prefix since Go filenames don't need it).
func AutoSaveName(simPath string, steps uint64) string {
	var b strings.Builder
	b.WriteString(simPath)
	b.WriteByte('-')
	hex.FormatQuad(&b, steps)
	return b.String()
}
