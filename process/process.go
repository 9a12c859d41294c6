/*
 * Salis - Per-core process table.
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

// Package process implements Salis's per-core process table: a dense,
// circular array of process records sharing one growable backing array,
// indexed by a monotonically increasing process index rather than a slot
// number.
package process

import "log/slog"

// Proc is one process's register file. Field order matches the layout a
// persisted core dumps to disk and must not be reordered.
type Proc struct {
	IP   uint64
	SP   uint64
	MB0A uint64
	MB0S uint64
	MB1A uint64
	MB1S uint64
	R0X  uint64
	R1X  uint64
	R2X  uint64
	R3X  uint64
	S0   uint64
	S1   uint64
	S2   uint64
	S3   uint64
	S4   uint64
	S5   uint64
	S6   uint64
	S7   uint64
}

// Table is a core's process table: pcap slots addressed modulo pcap, with
// the live range [pfst, plst] (inclusive) growing monotonically as
// processes are born and shrinking from the front as they are killed.
type Table struct {
	pvec []Proc

	pnum uint64
	pcap uint64
	pfst uint64
	plst uint64
	pcur uint64
	psli uint64
	ncyc uint64
}

// New creates a table holding exactly one live process, matching
// core_init's pnum=1/pcap=1 startup state.
func New(first Proc) *Table {
	t := &Table{
		pvec: make([]Proc, 1),
		pnum: 1,
		pcap: 1,
	}
	t.pvec[0] = first
	return t
}

// FromState rebuilds a table from persisted scalar fields and a raw
// process vector of length pcap, for StatePersistence's Load path.
func FromState(pnum, pcap, pfst, plst, pcur, psli, ncyc uint64, pvec []Proc) *Table {
	if uint64(len(pvec)) != pcap {
		panic("process: pvec length does not match pcap")
	}
	return &Table{
		pvec: pvec,
		pnum: pnum,
		pcap: pcap,
		pfst: pfst,
		plst: plst,
		pcur: pcur,
		psli: psli,
		ncyc: ncyc,
	}
}

func (t *Table) Pnum() uint64 { return t.pnum }
func (t *Table) Pcap() uint64 { return t.pcap }
func (t *Table) Pfst() uint64 { return t.pfst }
func (t *Table) Plst() uint64 { return t.plst }
func (t *Table) Pcur() uint64 { return t.pcur }
func (t *Table) Psli() uint64 { return t.psli }
func (t *Table) Ncyc() uint64 { return t.ncyc }

func (t *Table) SetPcur(pcur uint64) { t.pcur = pcur }
func (t *Table) SetPsli(psli uint64) { t.psli = psli }
func (t *Table) IncNcyc()            { t.ncyc++ }

// IncPcur advances pcur by one, used by core_step's within-cycle
// round-robin advance.
func (t *Table) IncPcur() { t.pcur++ }

// IsLive reports whether pix names a process currently in [pfst, plst].
func (t *Table) IsLive(pix uint64) bool {
	return pix >= t.pfst && pix <= t.plst
}

// Get returns a copy of pix's record, or the zero Proc if pix is not live
// — mirroring proc_get's fallback to g_dead_proc.
func (t *Table) Get(pix uint64) Proc {
	if !t.IsLive(pix) {
		return Proc{}
	}
	return t.pvec[pix%t.pcap]
}

// Fetch returns a pointer to pix's live record for in-place mutation.
// Panics if pix is not live.
func (t *Table) Fetch(pix uint64) *Proc {
	if !t.IsLive(pix) {
		panic("process: fetch of non-live process")
	}
	return &t.pvec[pix%t.pcap]
}

// New appends a new live process at plst+1, doubling pcap and
// re-indexing the live range into a freshly allocated backing array if
// the table is full.
func (t *Table) New(p Proc) {
	if t.pnum == t.pcap {
		newCap := t.pcap * 2
		newVec := make([]Proc, newCap)

		for pix := t.pfst; pix <= t.plst; pix++ {
			newVec[pix%newCap] = t.pvec[pix%t.pcap]
		}

		t.pcap = newCap
		t.pvec = newVec
		slog.Debug("process table grown", "pcap", newCap)
	}

	t.pnum++
	t.plst++
	t.pvec[t.plst%t.pcap] = p
}

// Kill retires the oldest live process (index pfst). blank is invoked
// with pfst before any table bookkeeping changes so the caller (the
// architecture plug) can read the doomed process's fields, free any
// memory it owns, and overwrite its slot with a dead-process template —
// exactly arch_on_proc_kill's job in the original engine. Panics if only
// one process remains live.
func (t *Table) Kill(blank func(pfst uint64)) {
	if t.pnum <= 1 {
		panic("process: kill with one process remaining")
	}

	blank(t.pfst)

	t.pcur++
	t.pfst++
	t.pnum--
}

// Raw returns the backing process vector, in slot order, for
// StatePersistence's raw-byte dump. Callers must not retain it across a
// subsequent New that triggers a grow.
func (t *Table) Raw() []Proc {
	return t.pvec
}
