package journal

import (
	"testing"

	"github.com/kungfu-go/kfjournal/location"
)

// writeFrameAt writes a frame whose gen_time is forced to genTime by
// closing it with that explicit close_time, matching how tests construct
// deterministic interleavings without racing the wall clock.
func writeFrameAt(t *testing.T, w *Writer, genTime int64, msgType uint32, payload []byte) {
	t.Helper()
	f, err := w.OpenFrame(genTime, msgType, len(payload))
	if err != nil {
		t.Fatalf("OpenFrame: %v", err)
	}
	f.CopyData(payload, len(payload))
	if err := w.CloseFrame(len(payload), genTime); err != nil {
		t.Fatalf("CloseFrame: %v", err)
	}
}

// TestReaderMergesByGenTime checks that two streams with
// interleaved gen_times are merged into one non-decreasing sequence.
func TestReaderMergesByGenTime(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	locA := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	locB := location.New(lr, location.ModeLive, location.CategoryMD, "b", "y")

	wa, err := NewWriter(locA, location.DestPublic, cfg, nil)
	if err != nil {
		t.Fatalf("NewWriter(a): %v", err)
	}
	writeFrameAt(t, wa, 10, 1, []byte("a10"))
	writeFrameAt(t, wa, 30, 1, []byte("a30"))
	wa.Close()

	wb, err := NewWriter(locB, location.DestPublic, cfg, nil)
	if err != nil {
		t.Fatalf("NewWriter(b): %v", err)
	}
	writeFrameAt(t, wb, 20, 1, []byte("b20"))
	writeFrameAt(t, wb, 40, 1, []byte("b40"))
	wb.Close()

	r := NewReader(cfg)
	defer r.Close()
	if err := r.Join(locA, location.DestPublic, 0); err != nil {
		t.Fatalf("Join(a): %v", err)
	}
	if err := r.Join(locB, location.DestPublic, 0); err != nil {
		t.Fatalf("Join(b): %v", err)
	}

	var times []int64
	for {
		avail, err := r.DataAvailable()
		if err != nil {
			t.Fatalf("DataAvailable: %v", err)
		}
		if !avail {
			break
		}
		times = append(times, r.CurrentFrame().GenTime())
		if err := r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	want := []int64{10, 20, 30, 40}
	if len(times) != len(want) {
		t.Fatalf("times = %v, want %v", times, want)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("times = %v, want %v", times, want)
		}
	}
}

// TestReaderTieBreakByLocationAndDest exercises the tie-break rule:
// equal gen_times are ordered by (location_uid, dest_id) ascending.
func TestReaderTieBreakByLocationAndDest(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	locA := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	locB := location.New(lr, location.ModeLive, location.CategoryMD, "b", "y")

	wa, _ := NewWriter(locA, location.DestPublic, cfg, nil)
	writeFrameAt(t, wa, 100, 1, []byte("a"))
	wa.Close()
	wb, _ := NewWriter(locB, location.DestPublic, cfg, nil)
	writeFrameAt(t, wb, 100, 1, []byte("b"))
	wb.Close()

	r := NewReader(cfg)
	defer r.Close()
	r.Join(locA, location.DestPublic, 0)
	r.Join(locB, location.DestPublic, 0)

	avail, err := r.DataAvailable()
	if err != nil || !avail {
		t.Fatalf("DataAvailable: avail=%v err=%v", avail, err)
	}
	locUID, _ := r.CurrentChannel()
	wantUID := locA.UID()
	if locB.UID() < locA.UID() {
		wantUID = locB.UID()
	}
	if locUID != wantUID {
		t.Fatalf("tie-break picked uid %08x, want smallest uid %08x", locUID, wantUID)
	}
}

func TestReaderDisjoin(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	locA := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	locB := location.New(lr, location.ModeLive, location.CategoryMD, "b", "y")

	wa, _ := NewWriter(locA, location.DestPublic, cfg, nil)
	writeFrameAt(t, wa, 1, 1, []byte("a"))
	wa.Close()
	wb, _ := NewWriter(locB, location.DestPublic, cfg, nil)
	writeFrameAt(t, wb, 2, 1, []byte("b"))
	wb.Close()

	r := NewReader(cfg)
	defer r.Close()
	r.Join(locA, location.DestPublic, 0)
	r.Join(locB, location.DestPublic, 0)
	if err := r.Disjoin(locA.UID()); err != nil {
		t.Fatalf("Disjoin: %v", err)
	}
	if len(r.Channels()) != 1 {
		t.Fatalf("expected 1 channel after Disjoin, got %d", len(r.Channels()))
	}
	avail, err := r.DataAvailable()
	if err != nil || !avail {
		t.Fatalf("DataAvailable after Disjoin: avail=%v err=%v", avail, err)
	}
	if locUID, _ := r.CurrentChannel(); locUID != locB.UID() {
		t.Fatalf("expected remaining channel to be locB")
	}
}
