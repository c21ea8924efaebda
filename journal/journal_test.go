package journal

import (
	"testing"

	"github.com/kungfu-go/kfjournal/location"
)

// TestJournalDataAvailableRollsOntoNextPage reproduces a reader catching up
// to the writer exactly at a page boundary: the cursor parks at the
// uncommitted tail of page 1 (no more frames will ever land there, since
// the writer rolled to page 2 instead), and DataAvailable must advance the
// cursor onto page 2 rather than reporting no data forever.
func TestJournalDataAvailableRollsOntoNextPage(t *testing.T) {
	lr := testLocator(t)
	cfg := testConfig(t)
	loc := location.New(lr, location.ModeLive, location.CategorySystem, "t", "t")

	w, err := NewWriter(loc, location.DestPublic, cfg, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Fill page 1 up to (but not past) the point where the writer itself
	// would roll over.
	n := 0
	for !w.page.IsFull(cfg) {
		writeFrame(t, w, int64(n), 1, []byte("x"))
		n++
	}

	j, err := OpenJournal(loc, location.DestPublic, cfg)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	if err := j.SeekToBegin(); err != nil {
		t.Fatalf("SeekToBegin: %v", err)
	}
	for i := 0; i < n; i++ {
		avail, err := j.DataAvailable()
		if err != nil {
			t.Fatalf("DataAvailable: %v", err)
		}
		if !avail {
			t.Fatalf("expected frame %d to be available", i)
		}
		if err := j.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	// Reader has drained page 1; page 2 doesn't exist yet.
	if avail, err := j.DataAvailable(); err != nil {
		t.Fatalf("DataAvailable: %v", err)
	} else if avail {
		t.Fatalf("expected no data available before rollover")
	}

	// One more frame forces the writer to roll to page 2, landing at an
	// offset in page 1 the reader's cursor will never see committed.
	writeFrame(t, w, int64(n), 2, []byte("rolled"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	avail, err := j.DataAvailable()
	if err != nil {
		t.Fatalf("DataAvailable after rollover: %v", err)
	}
	if !avail {
		t.Fatalf("expected the reader to roll onto page 2 and see the new frame")
	}
	if got := string(j.CurrentFrame().DataAddress()); got != "rolled" {
		t.Fatalf("got %q, want %q", got, "rolled")
	}
	if j.CurrentPage().PageID != 2 {
		t.Fatalf("expected cursor to have rolled onto page 2, still on page %d", j.CurrentPage().PageID)
	}
}
