package journal

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/kferrors"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/log"
	"github.com/kungfu-go/kfjournal/metrics"
	"github.com/kungfu-go/kfjournal/publisher"
)

var writerLog = log.Module("journal.writer")

// Writer is the single append-only producer for one (location, dest_id)
// stream. Exactly one Writer may hold the page in write mode at a time;
// an advisory file lock enforces that across processes.
type Writer struct {
	loc    location.Location
	destID uint32
	cfg    kfconfig.Config
	pub    publisher.Publisher

	lock *flock.Flock
	page *Page

	pending        *Frame
	pendingMsgType uint32
}

// NewWriter opens (or creates) the journal for (loc, destID) in write
// mode, acquiring an advisory lock that rejects a second concurrent
// writer for the same stream. pub may be nil, in which case a
// publisher.NoopPublisher is used.
func NewWriter(loc location.Location, destID uint32, cfg kfconfig.Config, pub publisher.Publisher) (*Writer, error) {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	dir, err := loc.Locator().LayoutDir(loc, location.LayoutJournal)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(dir, fmt.Sprintf("%08x.lock", destID))
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: locking %s: %v", kferrors.ErrPathUnavailable, lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: stream already has a writer: %s", kferrors.ErrPathUnavailable, lockPath)
	}

	ids, err := loc.Locator().ListPageID(loc, destID)
	if err != nil {
		fl.Unlock()
		return nil, err
	}
	pageID := uint32(1)
	if len(ids) > 0 {
		pageID = ids[len(ids)-1]
	}
	page, err := LoadPage(loc, destID, pageID, cfg, true, false)
	if err != nil {
		fl.Unlock()
		return nil, err
	}

	return &Writer{loc: loc, destID: destID, cfg: cfg, pub: pub, lock: fl, page: page}, nil
}

// OpenFrame reserves header+payload space for a frame of lengthHint
// payload bytes, rolling to a new page first if necessary. The returned
// frame's header is fully zeroed except header_length, gen_time,
// trigger_time, source and dest; msg_type and length remain the
// uncommitted sentinel (0) until CloseFrame. The caller must write the
// payload via the returned frame before calling CloseFrame.
func (w *Writer) OpenFrame(triggerTime int64, msgType uint32, lengthHint int) (Frame, error) {
	start := NowInNano()
	defer func() { metrics.OpenFrameLatency.Observe(float64(NowInNano()-start) / 1e3) }()

	if msgType == 0 {
		return Frame{}, fmt.Errorf("%w: msg_type must be non-zero", kferrors.ErrFrameOverflow)
	}
	total := uint64(kfconfig.FrameHeaderLength) + uint64(lengthHint)
	if total+uint64(kfconfig.PageHeaderLength) > uint64(w.cfg.PageSize) {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes exceeds page size %d", kferrors.ErrFrameOverflow, total, w.cfg.PageSize)
	}

	if w.page.IsFull(w.cfg) || !w.page.Fits(total) {
		if err := w.rollPage(); err != nil {
			return Frame{}, err
		}
	}

	offset := w.page.nextWriteOffset()
	header := w.page.mm[offset : offset+total]
	for i := range header {
		header[i] = 0
	}

	f := Frame{page: w.page, offset: offset}
	f.setHeaderLength(kfconfig.FrameHeaderLength)
	f.setGenTime(NowInNano())
	f.setTriggerTime(triggerTime)
	f.setSource(w.loc.UID())
	f.setDest(w.destID)

	w.pending = &f
	w.pendingMsgType = msgType
	return f, nil
}

// CloseFrame commits the frame most recently returned by OpenFrame:
// stamps the final gen_time, then publishes msg_type and length in the
// order cross-process readers depend on, then advances
// last_frame_position, then notifies the publisher. Every committed frame
// pokes the publisher's Notify so blocked readers wake; Publish carries the
// optional JSON broadcast described in spec.md §6.
func (w *Writer) CloseFrame(actualLength int, closeTime int64) error {
	if w.pending == nil {
		return fmt.Errorf("%w: CloseFrame with no open frame", kferrors.ErrCorruptJournal)
	}
	f := *w.pending
	msgType := w.pendingMsgType
	length := uint32(kfconfig.FrameHeaderLength) + uint32(actualLength)

	f.setGenTime(closeTime)
	f.setMsgType(msgType) // release store, non-zero
	f.setLength(length)   // release store, publishes the frame
	w.page.setLastFramePosition(f.offset)

	w.pending = nil
	metrics.FramesWritten.Inc()
	metrics.BytesWritten.Add(int64(length))

	var pubErr error
	if rc := w.pub.Notify(); rc != 0 {
		metrics.PublisherErrors.Inc()
		writerLog.Warn("publisher notify returned non-zero", "code", rc)
		pubErr = fmt.Errorf("%w: code %d", kferrors.ErrPublisherError, rc)
	}
	if rc := w.pub.Publish(fmt.Sprintf(`{"dest":%d,"msg_type":%d}`, w.destID, msgType), 0); rc != 0 {
		metrics.PublisherErrors.Inc()
		writerLog.Warn("publisher returned non-zero", "code", rc)
		if pubErr == nil {
			pubErr = fmt.Errorf("%w: code %d", kferrors.ErrPublisherError, rc)
		}
	}
	return pubErr
}

// CopyFrame atomically copies src (an already-committed frame from
// another journal, possibly belonging to another writer) into this
// journal at the current write cursor. header_length, gen_time,
// trigger_time and msg_type are preserved; source and dest are restamped
// to this writer's location and destination. Copies across incompatible
// frame header layouts are rejected.
func (w *Writer) CopyFrame(src Frame) error {
	if src.page.FrameHeaderLength() != uint32(kfconfig.FrameHeaderLength) {
		return fmt.Errorf("%w: copy_frame across incompatible frame header length", kferrors.ErrVersionMismatch)
	}
	payloadLen := int(src.Length()) - int(src.HeaderLength())
	if payloadLen < 0 {
		return fmt.Errorf("%w: source frame not committed", kferrors.ErrCorruptJournal)
	}

	f, err := w.OpenFrame(src.TriggerTime(), src.MsgType(), payloadLen)
	if err != nil {
		return err
	}
	f.CopyData(src.DataAddress(), payloadLen)
	f.setGenTime(src.GenTime())
	return w.CloseFrame(payloadLen, src.GenTime())
}

// CurrentFrameUID returns a non-zero idempotency token for the frame
// about to be opened, derived from this writer's location uid and the
// current gen_time.
func (w *Writer) CurrentFrameUID() uint32 {
	return currentFrameUID(w.loc.UID(), NowInNano())
}

func (w *Writer) rollPage() error {
	newPage, err := LoadPage(w.loc, w.destID, w.page.PageID+1, w.cfg, true, false)
	if err != nil {
		return err
	}
	if err := w.page.Close(); err != nil {
		newPage.Close()
		return err
	}
	w.page = newPage
	metrics.PageRollovers.Inc()
	if rc := w.pub.Notify(); rc != 0 {
		metrics.PublisherErrors.Inc()
		writerLog.Warn("publisher notify returned non-zero", "code", rc)
	}
	return nil
}

// Close unmaps the current page and releases the writer's advisory lock.
func (w *Writer) Close() error {
	var err error
	if w.page != nil {
		err = w.page.Close()
	}
	if w.lock != nil {
		if uerr := w.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}
