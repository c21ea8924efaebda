package journal

import (
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/kferrors"
	"github.com/kungfu-go/kfjournal/location"
)

// Page header field offsets, all relative to the start of the mapped file.
const (
	offVersion            = 0
	offPageHeaderLength   = 4
	offPageSize           = 8
	offFrameHeaderLength  = 12
	offLastFramePosition  = 16
)

// Page owns one memory-mapped, fixed-size journal file. Earlier pages in a
// journal are immutable once superseded by rollover; the page with the
// highest page_id for a stream is the only one ever open for writing.
type Page struct {
	Location location.Location
	DestID   uint32
	PageID   uint32

	path string
	file *os.File
	mm   mmap.MMap
}

// LoadPage ensures the backing file for (loc, destID, pageID) exists,
// creating and sizing it exactly once when writing is true and the file is
// absent, then memory-maps it. lazy hints the OS to demand-page rather
// than prefault; mmap-go exposes no madvise knob, so on this platform it
// is accepted but has no effect beyond documenting caller intent.
func LoadPage(loc location.Location, destID, pageID uint32, cfg kfconfig.Config, writing, lazy bool) (*Page, error) {
	path, err := loc.Locator().JournalFile(loc, destID, pageID)
	if err != nil {
		return nil, err
	}

	fi, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, path, statErr)
	}
	if !exists && !writing {
		return nil, fmt.Errorf("%w: page file missing: %s", kferrors.ErrPathUnavailable, path)
	}
	if exists && uint32(fi.Size()) != cfg.PageSize {
		return nil, fmt.Errorf("%w: page %s is %d bytes, expected %d", kferrors.ErrCorruptJournal, path, fi.Size(), cfg.PageSize)
	}

	flags := os.O_RDWR | os.O_CREATE
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, path, err)
	}
	if !exists {
		if err := f.Truncate(int64(cfg.PageSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, path, err)
		}
	}

	prot := mmap.RDONLY
	if writing {
		prot = mmap.RDWR
	}
	mm, err := mmap.Map(f, prot, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, path, err)
	}

	p := &Page{Location: loc, DestID: destID, PageID: pageID, path: path, file: f, mm: mm}

	if !exists {
		storeU32Plain(p.mm, offVersion, kfconfig.Version)
		storeU32Plain(p.mm, offPageHeaderLength, kfconfig.PageHeaderLength)
		storeU32Plain(p.mm, offPageSize, cfg.PageSize)
		storeU32Plain(p.mm, offFrameHeaderLength, kfconfig.FrameHeaderLength)
		storeU64Release(p.mm, offLastFramePosition, uint64(kfconfig.PageHeaderLength))
	} else {
		if v := loadU32Plain(p.mm, offVersion); v != kfconfig.Version {
			p.Close()
			return nil, fmt.Errorf("%w: page %s has version %d, understand %d", kferrors.ErrVersionMismatch, path, v, kfconfig.Version)
		}
		if fh := loadU32Plain(p.mm, offFrameHeaderLength); fh != kfconfig.FrameHeaderLength {
			p.Close()
			return nil, fmt.Errorf("%w: page %s frame header length %d, expected %d", kferrors.ErrVersionMismatch, path, fh, kfconfig.FrameHeaderLength)
		}
	}

	return p, nil
}

func (p *Page) Version() uint32           { return loadU32Plain(p.mm, offVersion) }
func (p *Page) PageHeaderLength() uint32  { return loadU32Plain(p.mm, offPageHeaderLength) }
func (p *Page) PageSize() uint32          { return loadU32Plain(p.mm, offPageSize) }
func (p *Page) FrameHeaderLength() uint32 { return loadU32Plain(p.mm, offFrameHeaderLength) }

// LastFramePosition is the byte offset of the most recently committed
// frame's header. Readers use it only as an accelerator (e.g. EndTime); it
// must never substitute for checking that frame's own length.
func (p *Page) LastFramePosition() uint64 {
	return loadU64Acquire(p.mm, offLastFramePosition)
}

func (p *Page) setLastFramePosition(v uint64) {
	storeU64Release(p.mm, offLastFramePosition, v)
}

// IsEmpty reports whether no frame has ever been committed to this page.
// last_frame_position is initialized to page_header_length (the offset the
// first frame is written at), so that alone can't distinguish "never
// written" from "one frame committed at the page's first slot" — both
// leave last_frame_position unchanged. The frame actually sitting at
// last_frame_position tells them apart: it's committed (length>0,
// msg_type>0) iff the page has at least one frame.
func (p *Page) IsEmpty() bool {
	f := Frame{page: p, offset: p.LastFramePosition()}
	return !f.IsValid()
}

// FirstFrame returns a view over the frame at the head of the page. Only
// meaningful when !IsEmpty().
func (p *Page) FirstFrame() Frame {
	return Frame{page: p, offset: uint64(p.PageHeaderLength())}
}

// LastFrame returns a view over the most recently committed frame. Only
// meaningful when !IsEmpty().
func (p *Page) LastFrame() Frame {
	return Frame{page: p, offset: p.LastFramePosition()}
}

// BeginTime returns the gen_time of the page's first frame, or
// math.MaxInt64 ("the future") if the page has never been written to.
func (p *Page) BeginTime() int64 {
	if p.IsEmpty() {
		return math.MaxInt64
	}
	return p.FirstFrame().GenTime()
}

// EndTime returns the gen_time of the frame at last_frame_position, or
// BeginTime() if the page is empty.
func (p *Page) EndTime() int64 {
	if p.IsEmpty() {
		return p.BeginTime()
	}
	return p.LastFrame().GenTime()
}

// nextWriteOffset is the byte offset a writer would open its next frame
// at: right after the committed tail (rounded up by alignUp so every
// frame header lands at a naturally aligned address for the atomic
// length/msg_type accesses), or the page header for an empty page.
func (p *Page) nextWriteOffset() uint64 {
	if p.IsEmpty() {
		return uint64(p.PageHeaderLength())
	}
	last := p.LastFrame()
	return alignUp(last.offset + uint64(last.Length()))
}

// IsFull reports whether fewer bytes remain than the largest frame cfg
// allows, so the writer must roll to a new page before opening another
// frame.
func (p *Page) IsFull(cfg kfconfig.Config) bool {
	remaining := uint64(p.PageSize()) - p.nextWriteOffset()
	return remaining < cfg.MaxFrameSize()
}

// Fits reports whether a frame of totalSize bytes can be opened without
// rolling the page.
func (p *Page) Fits(totalSize uint64) bool {
	remaining := uint64(p.PageSize()) - p.nextWriteOffset()
	return totalSize <= remaining
}

// Stats is a point-in-time snapshot of page bookkeeping, returned by
// StatsWith. The stat CLI subcommand prints Journal.Stats, not this.
type Stats struct {
	PageID             uint32
	BeginTime          int64
	EndTime            int64
	LastFramePosition  uint64
	PageSize           uint32
	IsFull             bool
}

func (p *Page) StatsWith(cfg kfconfig.Config) Stats {
	return Stats{
		PageID:            p.PageID,
		BeginTime:         p.BeginTime(),
		EndTime:           p.EndTime(),
		LastFramePosition: p.LastFramePosition(),
		PageSize:          p.PageSize(),
		IsFull:            p.IsFull(cfg),
	}
}

// Close unmaps the page and closes its file descriptor. The core never
// truncates or deletes page files; the OS flushes dirty pages on its own
// schedule (or eagerly via Sync).
func (p *Page) Close() error {
	var err error
	if p.mm != nil {
		if uerr := p.mm.Unmap(); uerr != nil {
			err = uerr
		}
		p.mm = nil
	}
	if p.file != nil {
		if cerr := p.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.file = nil
	}
	return err
}

// Sync flushes the page's dirty mapped pages to disk.
func (p *Page) Sync() error {
	if p.mm == nil {
		return nil
	}
	return p.mm.Flush()
}
