package assemble

import (
	"os"
	"testing"

	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/location"
)

func testLocator(t *testing.T) *location.Locator {
	t.Helper()
	t.Setenv("KF_HOME", t.TempDir())
	t.Setenv("KF_RUNTIME_DIR", "")
	lr, err := location.NewLocator(location.ModeLive)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return lr
}

func testConfig(t *testing.T) kfconfig.Config {
	t.Helper()
	pageSize := uint32(os.Getpagesize()) * 4
	cfg := kfconfig.Config{PageSize: pageSize, MaxPayloadSize: 64}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func writeOne(t *testing.T, loc location.Location, destID uint32, cfg kfconfig.Config, genTime int64, payload []byte) {
	t.Helper()
	w, err := journal.NewWriter(loc, destID, cfg, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	f, err := w.OpenFrame(genTime, 1, len(payload))
	if err != nil {
		t.Fatalf("OpenFrame: %v", err)
	}
	f.CopyData(payload, len(payload))
	if err := w.CloseFrame(len(payload), genTime); err != nil {
		t.Fatalf("CloseFrame: %v", err)
	}
}

// TestAssemblerMergesAcrossLocations exercises the READ bit:
// an Assembler anchored to one source with assemble-mode READ joins every
// location on the root at the same destination.
func TestAssemblerMergesAcrossLocations(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	source := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	other := location.New(lr, location.ModeLive, location.CategoryMD, "b", "y")

	writeOne(t, source, location.DestPublic, cfg, 10, []byte("s10"))
	writeOne(t, other, location.DestPublic, cfg, 20, []byte("o20"))

	a, err := NewFromSource(cfg, source, location.DestPublic, ModeRead)
	if err != nil {
		t.Fatalf("NewFromSource: %v", err)
	}
	defer a.Close()

	if len(a.Channels()) != 2 {
		t.Fatalf("expected 2 joined channels, got %d: %v", len(a.Channels()), a.Channels())
	}

	var times []int64
	for {
		avail, err := a.DataAvailable()
		if err != nil {
			t.Fatalf("DataAvailable: %v", err)
		}
		if !avail {
			break
		}
		times = append(times, a.CurrentFrame().GenTime())
		if err := a.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(times) != 2 || times[0] != 10 || times[1] != 20 {
		t.Fatalf("times = %v, want [10 20]", times)
	}
}

// TestAssemblerChannelBitJoinsExactlyOne covers S6's CHANNEL bit.
func TestAssemblerChannelBitJoinsExactlyOne(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	source := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	other := location.New(lr, location.ModeLive, location.CategoryMD, "b", "y")
	writeOne(t, source, location.DestPublic, cfg, 1, []byte("s"))
	writeOne(t, other, location.DestPublic, cfg, 2, []byte("o"))

	a, err := NewFromSource(cfg, source, location.DestPublic, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource: %v", err)
	}
	defer a.Close()
	chans := a.Channels()
	if len(chans) != 1 || chans[0].LocationUID != source.UID() || chans[0].DestID != location.DestPublic {
		t.Fatalf("CHANNEL joined %v, want exactly (source, DestPublic)", chans)
	}
}

// TestAssemblerSetAlgebra checks that (A += B) -= B leaves A's
// joined set unchanged, and A + B is commutative on the resulting set.
func TestAssemblerSetAlgebra(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	// Same location, two distinct destinations: a realistic case where two
	// single-channel Assemblers share an identity (same mode/category/
	// group/name) and so are combinable under the set-algebra rule.
	loc := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	const otherDest = 42
	writeOne(t, loc, location.DestPublic, cfg, 1, []byte("a"))
	writeOne(t, loc, otherDest, cfg, 2, []byte("b"))

	a, err := NewFromSource(cfg, loc, location.DestPublic, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource(a): %v", err)
	}
	defer a.Close()
	wantLen := len(a.Channels())

	b, err := NewFromSource(cfg, loc, otherDest, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource(b): %v", err)
	}
	defer b.Close()

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(a.Channels()) != wantLen+1 {
		t.Fatalf("after Merge, channels = %d, want %d", len(a.Channels()), wantLen+1)
	}
	if err := a.Remove(b); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(a.Channels()) != wantLen {
		t.Fatalf("after (a += b) -= b, channels = %d, want %d", len(a.Channels()), wantLen)
	}

	merged1, err := a.Add(b)
	if err != nil {
		t.Fatalf("a.Add(b): %v", err)
	}
	merged2, err := b.Add(a)
	if err != nil {
		t.Fatalf("b.Add(a): %v", err)
	}
	defer merged1.Close()
	defer merged2.Close()
	if len(merged1.Channels()) != len(merged2.Channels()) {
		t.Fatalf("Add is not commutative on the joined set: %d vs %d", len(merged1.Channels()), len(merged2.Channels()))
	}
}

// TestAssemblerIncompatibleIdentityRejected covers the IncompatibleAssemble
// failure mode: combinators across mismatched identity strings fail.
func TestAssemblerIncompatibleIdentityRejected(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	locA := location.New(lr, location.ModeLive, location.CategoryMD, "a", "x")
	locB := location.New(lr, location.ModeLive, location.CategoryTD, "b", "y")
	writeOne(t, locA, location.DestPublic, cfg, 1, []byte("a"))
	writeOne(t, locB, location.DestPublic, cfg, 2, []byte("b"))

	a, err := NewFromSource(cfg, locA, location.DestPublic, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource(a): %v", err)
	}
	defer a.Close()
	b, err := NewFromSource(cfg, locB, location.DestPublic, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource(b): %v", err)
	}
	defer b.Close()

	if _, err := a.Add(b); err == nil {
		t.Fatalf("expected Add across mismatched identities (md vs td) to fail")
	}
}

// TestCopySinkRestampsSourceDest exercises the CopySink end-to-end: frames
// drained from an Assembler are re-emitted at a different root, with
// source/dest restamped to the destination's own location.
func TestCopySinkRestampsSourceDest(t *testing.T) {
	srcLR := testLocator(t)
	cfg := testConfig(t)
	src := location.New(srcLR, location.ModeLive, location.CategoryMD, "a", "x")
	writeOne(t, src, location.DestPublic, cfg, 10, []byte("one"))
	writeOne(t, src, location.DestPublic, cfg, 20, []byte("two"))

	a, err := NewFromSource(cfg, src, location.DestPublic, ModeChannel)
	if err != nil {
		t.Fatalf("NewFromSource: %v", err)
	}
	defer a.Close()

	t.Setenv("KF_HOME", t.TempDir())
	t.Setenv("KF_RUNTIME_DIR", "")
	dstLR, err := location.NewLocator(location.ModeLive)
	if err != nil {
		t.Fatalf("NewLocator(dst): %v", err)
	}
	sink := NewCopySink(dstLR, cfg, nil)
	defer sink.Close()

	if err := a.Drain(sink); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	dstLoc := location.New(dstLR, src.Mode, src.Category, src.Group, src.Name)
	j, err := journal.OpenJournal(dstLoc, location.DestPublic, cfg)
	if err != nil {
		t.Fatalf("OpenJournal(dst): %v", err)
	}
	defer j.Close()
	if err := j.SeekToBegin(); err != nil {
		t.Fatalf("SeekToBegin: %v", err)
	}
	var payloads []string
	for {
		avail, err := j.DataAvailable()
		if err != nil {
			t.Fatalf("DataAvailable: %v", err)
		}
		if !avail {
			break
		}
		f := j.CurrentFrame()
		payloads = append(payloads, string(f.DataAddress()))
		if f.Source() != dstLoc.UID() {
			t.Fatalf("copied frame source = %08x, want restamped %08x", f.Source(), dstLoc.UID())
		}
		if err := j.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(payloads) != 2 || payloads[0] != "one" || payloads[1] != "two" {
		t.Fatalf("payloads = %v, want [one two]", payloads)
	}
}
