/*
 * Salis - Process table test cases.
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

package process

import "testing"

func TestNewTableStartsWithOneLiveProcess(t *testing.T) {
	tab := New(Proc{IP: 5})

	if tab.Pnum() != 1 || tab.Pcap() != 1 {
		t.Fatalf("pnum=%d pcap=%d, want 1,1", tab.Pnum(), tab.Pcap())
	}
	if !tab.IsLive(0) {
		t.Fatalf("process 0 should be live")
	}
	if tab.Get(0).IP != 5 {
		t.Fatalf("Get(0).IP = %d, want 5", tab.Get(0).IP)
	}
}

func TestNewProcessGrowsCapacity(t *testing.T) {
	tab := New(Proc{IP: 1})
	tab.New(Proc{IP: 2})

	if tab.Pcap() != 2 {
		t.Fatalf("pcap = %d, want 2 after one grow", tab.Pcap())
	}
	if tab.Plst() != 1 {
		t.Fatalf("plst = %d, want 1", tab.Plst())
	}
	if tab.Get(0).IP != 1 || tab.Get(1).IP != 2 {
		t.Fatalf("live range contents corrupted after grow")
	}

	tab.New(Proc{IP: 3})
	if tab.Pcap() != 4 {
		t.Fatalf("pcap = %d, want 4 after second grow", tab.Pcap())
	}
	if tab.Get(0).IP != 1 || tab.Get(1).IP != 2 || tab.Get(2).IP != 3 {
		t.Fatalf("live range contents corrupted after second grow")
	}
}

func TestKillAdvancesLiveRange(t *testing.T) {
	tab := New(Proc{IP: 1})
	tab.New(Proc{IP: 2})

	var blanked uint64
	tab.Kill(func(pfst uint64) { blanked = pfst })

	if blanked != 0 {
		t.Fatalf("blank callback got pfst=%d, want 0", blanked)
	}
	if tab.Pfst() != 1 || tab.Pnum() != 1 {
		t.Fatalf("pfst=%d pnum=%d, want 1,1", tab.Pfst(), tab.Pnum())
	}
	if tab.IsLive(0) {
		t.Fatalf("process 0 should no longer be live")
	}
}

func TestKillWithOneProcessPanics(t *testing.T) {
	tab := New(Proc{})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic killing the last live process")
		}
	}()
	tab.Kill(func(uint64) {})
}

func TestFetchNonLivePanics(t *testing.T) {
	tab := New(Proc{})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic fetching a non-live process")
		}
	}()
	tab.Fetch(7)
}

func TestGetNonLiveReturnsDeadProc(t *testing.T) {
	tab := New(Proc{IP: 99})

	if got := tab.Get(7); got != (Proc{}) {
		t.Fatalf("Get(7) = %+v, want zero Proc", got)
	}
}

func TestFromStateRoundTrip(t *testing.T) {
	raw := []Proc{{IP: 1}, {IP: 2}, {IP: 3}, {IP: 4}}
	tab := FromState(2, 4, 2, 3, 2, 1, 9, raw)

	if tab.Pnum() != 2 || tab.Pcap() != 4 || tab.Pfst() != 2 || tab.Plst() != 3 {
		t.Fatalf("unexpected restored scalars: %+v", tab)
	}
	if tab.Get(2).IP != 3 || tab.Get(3).IP != 4 {
		t.Fatalf("unexpected restored live range contents")
	}
}
