/*
 * Salis - Architecture v1: the original 64-opcode instruction set.
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

// Package v1 implements Salis's original 64-opcode architecture: the
// instruction set a process's bytecode is interpreted under, ported
// instruction-for-instruction from salis-v1's arch_proc_step dispatch.
package v1

import (
	"fmt"

	"github.com/pauloliver/salis/arch"
	"github.com/pauloliver/salis/process"
)

// Opcode values, in INST_LIST order. Instruction bytes read from memory
// are folded into this range with % instCount before dispatch.
const (
	noop byte = iota
	nop0
	nop1
	nop2
	nop3

	jmpb
	jmpf
	adrb
	adrf
	ifnz

	allb
	allf
	bswp
	bclr
	splt

	addn
	subn
	muln
	divn
	incn
	decn
	notn
	shfl
	shfr
	zero
	unit

	pshn
	popn

	load
	wrte
	dupl
	swap

	keya
	keyb
	keyc
	keyd
	keye
	keyf
	keyg
	keyh
	keyi
	keyj
	keyk
	keyl
	keym
	keyn
	keyo
	keyp

	loka
	lokb
	lokc
	lokd
	loke
	lokf
	lokg
	lokh
	loki
	lokj
	lokk
	lokl
	lokm
	lokn
	loko
	lokp

	instCount
)

var symbols = [instCount]rune{
	noop: ' ', nop0: '0', nop1: '1', nop2: '2', nop3: '3',
	jmpb: '(', jmpf: ')', adrb: '[', adrf: ']', ifnz: '?',
	allb: '{', allf: '}', bswp: '%', bclr: '|', splt: '$',
	addn: '+', subn: '-', muln: '*', divn: '/', incn: '^', decn: 'v',
	notn: '!', shfl: '<', shfr: '>', zero: 'z', unit: 'u',
	pshn: '#', popn: '~',
	load: '.', wrte: ':', dupl: '"', swap: 'x',
	keya: 'a', keyb: 'b', keyc: 'c', keyd: 'd', keye: 'e', keyf: 'f',
	keyg: 'g', keyh: 'h', keyi: 'i', keyj: 'j', keyk: 'k', keyl: 'l',
	keym: 'm', keyn: 'n', keyo: 'o', keyp: 'p',
	loka: 'A', lokb: 'B', lokc: 'C', lokd: 'D', loke: 'E', lokf: 'F',
	lokg: 'G', lokh: 'H', loki: 'I', lokj: 'J', lokk: 'K', lokl: 'L',
	lokm: 'M', lokn: 'N', loko: 'O', lokp: 'P',
}

var mnemonics = [instCount]string{
	noop: "noop", nop0: "nop0", nop1: "nop1", nop2: "nop2", nop3: "nop3",
	jmpb: "jmpb", jmpf: "jmpf", adrb: "adrb", adrf: "adrf", ifnz: "ifnz",
	allb: "allb", allf: "allf", bswp: "bswp", bclr: "bclr", splt: "splt",
	addn: "addn", subn: "subn", muln: "muln", divn: "divn", incn: "incn",
	decn: "decn", notn: "notn", shfl: "shfl", shfr: "shfr", zero: "zero",
	unit: "unit",
	pshn: "pshn", popn: "popn",
	load: "load", wrte: "wrte", dupl: "dupl", swap: "swap",
	keya: "keya", keyb: "keyb", keyc: "keyc", keyd: "keyd", keye: "keye",
	keyf: "keyf", keyg: "keyg", keyh: "keyh", keyi: "keyi", keyj: "keyj",
	keyk: "keyk", keyl: "keyl", keym: "keym", keyn: "keyn", keyo: "keyo",
	keyp: "keyp",
	loka: "loka", lokb: "lokb", lokc: "lokc", lokd: "lokd", loke: "loke",
	lokf: "lokf", lokg: "lokg", lokh: "lokh", loki: "loki", lokj: "lokj",
	lokk: "lokk", lokl: "lokl", lokm: "lokm", lokn: "lokn", loko: "loko",
	lokp: "lokp",
}

// Arch is the v1 architecture. It carries no state of its own; all
// mutable state lives in the core passed as CoreAccess.
type Arch struct{}

// New returns a v1 architecture instance.
func New() *Arch { return &Arch{} }

func (*Arch) InstCount() int { return int(instCount) }

func (*Arch) Symbol(inst byte) rune {
	return symbols[inst%byte(instCount)]
}

func (*Arch) Mnemonic(inst byte) string {
	return mnemonics[inst%byte(instCount)]
}

func (*Arch) ProcSlice(arch.CoreAccess, uint64) uint64 {
	return 1
}

func getInst(c arch.CoreAccess, addr uint64) byte {
	return c.GetInst(addr) % byte(instCount)
}

func incrementIP(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	proc.IP++
	proc.SP = proc.IP
}

func isBetween(inst, lo, hi byte) bool {
	return inst >= lo && inst <= hi
}

func isKey(inst byte) bool  { return isBetween(inst, keya, keyp) }
func isLock(inst byte) bool { return isBetween(inst, loka, lokp) }
func isRMod(inst byte) bool { return isBetween(inst, nop0, nop3) }

func keyLockMatch(key, lock byte) bool {
	return (key - keya) == (lock - loka)
}

// seek advances ip by one normally, or (on a key/lock match) leaves ip in
// place and reports true so the caller performs its jump/addr action.
// On a non-matching lock under the sp cursor, sp is nudged one step in
// the search direction and the caller tries again next step.
func seek(c arch.CoreAccess, pix uint64, fwrd bool) bool {
	proc := c.ProcFetch(pix)
	next := getInst(c, proc.IP+1)

	if !isKey(next) {
		incrementIP(c, pix)
		return false
	}

	spin := getInst(c, proc.SP)
	if keyLockMatch(next, spin) {
		return true
	}

	if fwrd {
		proc.SP++
	} else {
		proc.SP--
	}
	return false
}

func jump(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	proc.IP = proc.SP
}

func getRegAddrList(c arch.CoreAccess, pix uint64, rcount int, offset bool) []*uint64 {
	proc := c.ProcFetch(pix)
	madr := proc.IP + 1
	if offset {
		madr++
	}

	rlist := make([]*uint64, rcount)
	for i := range rlist {
		rlist[i] = &proc.R0X
	}

	for i := 0; i < rcount; i++ {
		mins := getInst(c, madr+uint64(i))
		if !isRMod(mins) {
			break
		}
		switch mins {
		case nop0:
			rlist[i] = &proc.R0X
		case nop1:
			rlist[i] = &proc.R1X
		case nop2:
			rlist[i] = &proc.R2X
		case nop3:
			rlist[i] = &proc.R3X
		}
	}
	return rlist
}

func doAddr(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	reg := getRegAddrList(c, pix, 1, true)[0]
	*reg = proc.SP
	incrementIP(c, pix)
}

func doIfnz(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	reg := getRegAddrList(c, pix, 1, false)[0]

	var jmod uint64
	if isRMod(getInst(c, proc.IP+1)) {
		jmod = 1
	}
	var rmod uint64 = 2
	if *reg != 0 {
		rmod = 1
	}

	proc.IP += jmod + rmod
	proc.SP = proc.IP
}

func freeMemoryBlock(c arch.CoreAccess, addr, size uint64) {
	for i := uint64(0); i < size; i++ {
		c.FreeAt(addr + i)
	}
}

func freeChildMemoryOf(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	freeMemoryBlock(c, proc.MB1A, proc.MB1S)
	proc.MB1A = 0
	proc.MB1S = 0
}

func doAlloc(c arch.CoreAccess, pix uint64, fwrd bool) {
	proc := c.ProcFetch(pix)
	regs := getRegAddrList(c, pix, 2, false)
	bsize := *regs[0]

	if bsize == 0 {
		incrementIP(c, pix)
		return
	}

	if proc.MB1S != 0 {
		expAddr := proc.MB1A
		if fwrd {
			expAddr += proc.MB1S
		} else {
			expAddr--
		}
		if proc.SP != expAddr {
			incrementIP(c, pix)
			return
		}
	}

	if proc.MB1S == bsize {
		incrementIP(c, pix)
		*regs[1] = proc.MB1A
		return
	}

	if c.IsAlloc(proc.SP) {
		if proc.MB1S != 0 {
			freeChildMemoryOf(c, pix)
		}
		if fwrd {
			proc.SP++
		} else {
			proc.SP--
		}
		return
	}

	c.AllocAt(proc.SP)

	if proc.MB1S == 0 || !fwrd {
		proc.MB1A = proc.SP
	}
	proc.MB1S++

	if fwrd {
		proc.SP++
	} else {
		proc.SP--
	}
}

func doBswap(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	if proc.MB1S != 0 {
		proc.MB0A, proc.MB1A = proc.MB1A, proc.MB0A
		proc.MB0S, proc.MB1S = proc.MB1S, proc.MB0S
	}
	incrementIP(c, pix)
}

func doBclear(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	if proc.MB1S != 0 {
		freeChildMemoryOf(c, pix)
	}
	incrementIP(c, pix)
}

func doSplit(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	if proc.MB1S != 0 {
		child := process.Proc{
			IP:   proc.MB1A,
			SP:   proc.MB1A,
			MB0A: proc.MB1A,
			MB0S: proc.MB1S,
		}
		proc.MB1A = 0
		proc.MB1S = 0
		c.ProcNew(child)
	}
	incrementIP(c, pix)
}

func do3rop(c arch.CoreAccess, pix uint64, inst byte) {
	regs := getRegAddrList(c, pix, 3, false)

	switch inst {
	case addn:
		*regs[0] = *regs[1] + *regs[2]
	case subn:
		*regs[0] = *regs[1] - *regs[2]
	case muln:
		*regs[0] = *regs[1] * *regs[2]
	case divn:
		if *regs[2] != 0 {
			*regs[0] = *regs[1] / *regs[2]
		}
	default:
		panic(fmt.Sprintf("v1: do3rop called with non-3rop instruction %d", inst))
	}
	incrementIP(c, pix)
}

func do1rop(c arch.CoreAccess, pix uint64, inst byte) {
	reg := getRegAddrList(c, pix, 1, false)[0]

	switch inst {
	case incn:
		*reg++
	case decn:
		*reg--
	case notn:
		if *reg == 0 {
			*reg = 1
		} else {
			*reg = 0
		}
	case shfl:
		*reg <<= 1
	case shfr:
		*reg >>= 1
	case zero:
		*reg = 0
	case unit:
		*reg = 1
	default:
		panic(fmt.Sprintf("v1: do1rop called with non-1rop instruction %d", inst))
	}
	incrementIP(c, pix)
}

func doPush(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	reg := getRegAddrList(c, pix, 1, false)[0]

	proc.S7 = proc.S6
	proc.S6 = proc.S5
	proc.S5 = proc.S4
	proc.S4 = proc.S3
	proc.S3 = proc.S2
	proc.S2 = proc.S1
	proc.S1 = proc.S0
	proc.S0 = *reg

	incrementIP(c, pix)
}

func doPop(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	reg := getRegAddrList(c, pix, 1, false)[0]

	*reg = proc.S0
	proc.S0 = proc.S1
	proc.S1 = proc.S2
	proc.S2 = proc.S3
	proc.S3 = proc.S4
	proc.S4 = proc.S5
	proc.S5 = proc.S6
	proc.S6 = proc.S7
	proc.S7 = 0

	incrementIP(c, pix)
}

// spDir returns the direction sp must step to reach dst: 0 if already
// there, else -1/+1. Ported as-is from _sp_dir, including its reliance
// on unsigned wraparound rather than a true modular distance.
func spDir(src, dst uint64) int {
	if src == dst {
		return 0
	} else if src-dst <= dst-src {
		return -1
	}
	return 1
}

func doLoad(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	regs := getRegAddrList(c, pix, 2, false)

	switch spDir(proc.SP, *regs[0]) {
	case 1:
		proc.SP++
	case -1:
		proc.SP--
	default:
		*regs[1] = uint64(c.GetInst(*regs[0]))
		incrementIP(c, pix)
	}
}

func isWriteableBy(c arch.CoreAccess, addr, pix uint64) bool {
	return !c.IsAlloc(addr) || c.IsProcOwner(pix, addr)
}

func doWrite(c arch.CoreAccess, pix uint64) {
	proc := c.ProcFetch(pix)
	regs := getRegAddrList(c, pix, 2, false)

	switch spDir(proc.SP, *regs[0]) {
	case 1:
		proc.SP++
	case -1:
		proc.SP--
	default:
		if isWriteableBy(c, *regs[0], pix) {
			c.SetInst(*regs[0], byte(*regs[1]%0x80))
		}
		incrementIP(c, pix)
	}
}

func do2rop(c arch.CoreAccess, pix uint64, inst byte) {
	regs := getRegAddrList(c, pix, 2, false)

	switch inst {
	case dupl:
		*regs[1] = *regs[0]
	case swap:
		*regs[0], *regs[1] = *regs[1], *regs[0]
	default:
		panic(fmt.Sprintf("v1: do2rop called with non-2rop instruction %d", inst))
	}
	incrementIP(c, pix)
}

func (*Arch) ProcStep(c arch.CoreAccess, pix uint64) {
	proc := c.ProcGet(pix)
	inst := getInst(c, proc.IP)

	switch inst {
	case jmpb:
		if seek(c, pix, false) {
			jump(c, pix)
		}
	case jmpf:
		if seek(c, pix, true) {
			jump(c, pix)
		}
	case adrb:
		if seek(c, pix, false) {
			doAddr(c, pix)
		}
	case adrf:
		if seek(c, pix, true) {
			doAddr(c, pix)
		}
	case ifnz:
		doIfnz(c, pix)
	case allb:
		doAlloc(c, pix, false)
	case allf:
		doAlloc(c, pix, true)
	case bswp:
		doBswap(c, pix)
	case bclr:
		doBclear(c, pix)
	case splt:
		doSplit(c, pix)
	case addn, subn, muln, divn:
		do3rop(c, pix, inst)
	case incn, decn, notn, shfl, shfr, zero, unit:
		do1rop(c, pix, inst)
	case pshn:
		doPush(c, pix)
	case popn:
		doPop(c, pix)
	case load:
		doLoad(c, pix)
	case wrte:
		doWrite(c, pix)
	case dupl, swap:
		do2rop(c, pix, inst)
	default:
		incrementIP(c, pix)
	}
}

func (*Arch) OnProcKill(c arch.CoreAccess, pfst uint64) {
	proc := c.ProcFetch(pfst)

	freeMemoryBlock(c, proc.MB0A, proc.MB0S)
	if proc.MB1S != 0 {
		freeMemoryBlock(c, proc.MB1A, proc.MB1S)
	}

	*proc = process.Proc{}
}

func (*Arch) AncInit(c arch.CoreAccess, size uint64, half bool, clones int) {
	var addr uint64
	if half {
		addr = c.MemSize() / 2
	}

	step := c.MemSize() / uint64(clones)
	for i := 0; i < clones; i++ {
		addrClone := addr + step*uint64(i)
		proc := c.ProcFetch(uint64(i))
		proc.MB0A = addrClone
		proc.MB0S = size
		proc.IP = addrClone
		proc.SP = addrClone
	}
}

func (*Arch) ValidateProc(c arch.CoreAccess, pix uint64) error {
	proc := c.ProcGet(pix)

	if proc.MB0S == 0 {
		return fmt.Errorf("v1: process %d owns no primary memory block", pix)
	}
	if proc.MB1A != 0 && proc.MB1S == 0 {
		return fmt.Errorf("v1: process %d has a child block address with zero size", pix)
	}

	for i := uint64(0); i < proc.MB0S; i++ {
		addr := proc.MB0A + i
		if !c.IsAlloc(addr) || !c.IsProcOwner(pix, addr) {
			return fmt.Errorf("v1: process %d's primary block byte %#x is not owned-allocated", pix, addr)
		}
	}
	for i := uint64(0); i < proc.MB1S; i++ {
		addr := proc.MB1A + i
		if !c.IsAlloc(addr) || !c.IsProcOwner(pix, addr) {
			return fmt.Errorf("v1: process %d's child block byte %#x is not owned-allocated", pix, addr)
		}
	}
	return nil
}
