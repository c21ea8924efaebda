package journal

import (
	"fmt"
	"math"

	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/kferrors"
	"github.com/kungfu-go/kfjournal/location"
)

// Journal is a read cursor over one (location, dest_id) stream: an ordered
// sequence of pages, advanced frame by frame, crossing page boundaries
// transparently. It never writes; Writer owns the write-mode page.
type Journal struct {
	loc    location.Location
	destID uint32
	cfg    kfconfig.Config

	curPageID uint32
	curPage   *Page
	curOffset uint64
	started   bool
}

// OpenJournal opens a read-only cursor over (loc, destID). The cursor is
// unpositioned until SeekToBegin or SeekToTime is called.
func OpenJournal(loc location.Location, destID uint32, cfg kfconfig.Config) (*Journal, error) {
	return &Journal{loc: loc, destID: destID, cfg: cfg}, nil
}

// Location returns the location this journal cursor reads from.
func (j *Journal) Location() location.Location { return j.loc }

// DestID returns the destination id this journal cursor reads from.
func (j *Journal) DestID() uint32 { return j.destID }

func (j *Journal) pageIDs() ([]uint32, error) {
	return j.loc.Locator().ListPageID(j.loc, j.destID)
}

// FindPageID returns the largest existing page_id whose BeginTime is
// at-or-before t, or the smallest existing page_id if none qualifies.
func (j *Journal) FindPageID(t int64) (uint32, error) {
	ids, err := j.pageIDs()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 1, nil
	}
	best := ids[0]
	for _, id := range ids {
		p, err := LoadPage(j.loc, j.destID, id, j.cfg, false, true)
		if err != nil {
			return 0, err
		}
		begin := p.BeginTime()
		p.Close()
		if begin <= t {
			best = id
		} else {
			break
		}
	}
	return best, nil
}

func (j *Journal) loadPage(pageID uint32) (*Page, error) {
	return LoadPage(j.loc, j.destID, pageID, j.cfg, false, true)
}

func (j *Journal) setPage(pageID uint32) error {
	if j.curPage != nil && j.curPage.PageID == pageID {
		return nil
	}
	p, err := j.loadPage(pageID)
	if err != nil {
		return err
	}
	if j.curPage != nil {
		j.curPage.Close()
	}
	j.curPage = p
	j.curPageID = pageID
	return nil
}

// SeekToBegin positions the cursor at the first frame of the lowest
// numbered existing page.
func (j *Journal) SeekToBegin() error {
	ids, err := j.pageIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		j.started = false
		return nil
	}
	if err := j.setPage(ids[0]); err != nil {
		return err
	}
	j.curOffset = uint64(j.curPage.PageHeaderLength())
	j.started = true
	return nil
}

// SeekToTime positions the cursor at the first frame with gen_time ≥ t.
func (j *Journal) SeekToTime(t int64) error {
	if t <= 0 {
		return j.SeekToBegin()
	}
	pageID, err := j.FindPageID(t)
	if err != nil {
		return err
	}
	if err := j.setPage(pageID); err != nil {
		return err
	}
	j.curOffset = uint64(j.curPage.PageHeaderLength())
	j.started = true
	for {
		avail, err := j.DataAvailable()
		if err != nil {
			return err
		}
		if !avail {
			return nil
		}
		f := j.CurrentFrame()
		if f.GenTime() >= t {
			return nil
		}
		if err := j.Next(); err != nil {
			return err
		}
	}
}

// DataAvailable reports whether the frame at the cursor is committed. If
// the cursor instead sits at the uncommitted tail of a page that a later
// page_id already supersedes, it rolls the cursor onto that later page
// (and, should that page in turn be empty — a writer that rolled over but
// crashed before committing anything into it — keeps rolling) before
// re-checking, so CurrentFrame always reflects wherever the cursor
// actually landed.
func (j *Journal) DataAvailable() (bool, error) {
	if !j.started || j.curPage == nil {
		if err := j.SeekToBegin(); err != nil {
			return false, err
		}
		if !j.started {
			return false, nil
		}
	}
	for {
		if j.CurrentFrame().IsValid() {
			return true, nil
		}
		ids, err := j.pageIDs()
		if err != nil {
			return false, err
		}
		hasNext := false
		for _, id := range ids {
			if id == j.curPageID+1 {
				hasNext = true
				break
			}
		}
		if !hasNext {
			return false, nil
		}
		if err := j.setPage(j.curPageID + 1); err != nil {
			return false, err
		}
		j.curOffset = uint64(j.curPage.PageHeaderLength())
	}
}

// CurrentFrame returns the frame at the cursor. Undefined unless a prior
// DataAvailable call returned true.
func (j *Journal) CurrentFrame() Frame {
	return Frame{page: j.curPage, offset: j.curOffset}
}

// CurrentPage returns the page the cursor currently sits in.
func (j *Journal) CurrentPage() *Page { return j.curPage }

// Next advances past the current frame, rolling onto the next page when
// the cursor has consumed this page's last committed frame and a later
// page already exists on disk.
func (j *Journal) Next() error {
	f := j.CurrentFrame()
	if !f.IsValid() {
		return fmt.Errorf("%w: Next called with no committed frame at cursor", kferrors.ErrCorruptJournal)
	}
	nextOffset := alignUp(f.offset + uint64(f.Length()))
	if nextOffset <= j.curPage.LastFramePosition() {
		// More committed frames remain in this page.
		j.curOffset = nextOffset
		return nil
	}
	ids, err := j.pageIDs()
	if err != nil {
		return err
	}
	rolled := false
	for _, id := range ids {
		if id == j.curPageID+1 {
			rolled = true
			break
		}
	}
	if !rolled {
		// This page isn't sealed yet; wait for the writer to commit more
		// into it at nextOffset.
		j.curOffset = nextOffset
		return nil
	}
	if err := j.setPage(j.curPageID + 1); err != nil {
		return err
	}
	j.curOffset = uint64(j.curPage.PageHeaderLength())
	return nil
}

// Stats snapshots the journal's page-id range as currently visible on
// disk, for monitoring and the CLI.
type JournalStats struct {
	Location   string
	DestID     uint32
	PageIDs    []uint32
	CurrentID  uint32
}

func (j *Journal) Stats() (JournalStats, error) {
	ids, err := j.pageIDs()
	if err != nil {
		return JournalStats{}, err
	}
	return JournalStats{Location: j.loc.String(), DestID: j.destID, PageIDs: ids, CurrentID: j.curPageID}, nil
}

// Close releases the cursor's currently mapped page, if any.
func (j *Journal) Close() error {
	if j.curPage != nil {
		err := j.curPage.Close()
		j.curPage = nil
		return err
	}
	return nil
}

// sentinelFuture mirrors Page.BeginTime's "empty page" value.
const sentinelFuture = int64(math.MaxInt64)
