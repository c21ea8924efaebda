package journal

import (
	"fmt"

	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/kferrors"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/metrics"
)

// channelKey identifies one joined journal within a Reader.
type channelKey struct {
	locationUID uint32
	destID      uint32
}

// Reader is a multi-journal consumer: it owns one Journal per joined
// (location, dest_id) channel and exposes a single cursor whose current
// frame is always the globally oldest among the joined journals' heads.
type Reader struct {
	cfg      kfconfig.Config
	channels map[channelKey]*Journal
	order    []channelKey // insertion order, for deterministic iteration

	current channelKey
	hasCur  bool
}

// NewReader returns an empty Reader. Channels are added with Join.
func NewReader(cfg kfconfig.Config) *Reader {
	return &Reader{cfg: cfg, channels: make(map[channelKey]*Journal)}
}

// Join opens the journal for (loc, destID), seeking to the first frame
// whose gen_time is at-or-after fromTime (fromTime == 0 seeks to the
// stream's very first frame).
func (r *Reader) Join(loc location.Location, destID uint32, fromTime int64) error {
	key := channelKey{loc.UID(), destID}
	if _, ok := r.channels[key]; ok {
		return nil
	}
	j, err := OpenJournal(loc, destID, r.cfg)
	if err != nil {
		return err
	}
	if fromTime <= 0 {
		if err := j.SeekToBegin(); err != nil {
			j.Close()
			return err
		}
	} else {
		if err := j.SeekToTime(fromTime); err != nil {
			j.Close()
			return err
		}
	}
	r.channels[key] = j
	r.order = append(r.order, key)
	r.hasCur = false
	metrics.JoinedJournals.Inc()
	return nil
}

// Disjoin removes every joined journal whose location uid matches.
func (r *Reader) Disjoin(locationUID uint32) error {
	var err error
	kept := r.order[:0]
	for _, key := range r.order {
		if key.locationUID == locationUID {
			if cerr := r.channels[key].Close(); cerr != nil && err == nil {
				err = cerr
			}
			delete(r.channels, key)
			metrics.JoinedJournals.Dec()
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	r.hasCur = false
	return err
}

// DisjoinChannel removes exactly one joined journal.
func (r *Reader) DisjoinChannel(locationUID, destID uint32) error {
	key := channelKey{locationUID, destID}
	j, ok := r.channels[key]
	if !ok {
		return nil
	}
	err := j.Close()
	delete(r.channels, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metrics.JoinedJournals.Dec()
	r.hasCur = false
	return err
}

// Channels returns the (location uid, dest id) pairs currently joined, in
// join order.
func (r *Reader) Channels() []struct {
	LocationUID uint32
	DestID      uint32
} {
	out := make([]struct {
		LocationUID uint32
		DestID      uint32
	}, len(r.order))
	for i, k := range r.order {
		out[i] = struct {
			LocationUID uint32
			DestID      uint32
		}{k.locationUID, k.destID}
	}
	return out
}

// selectCurrent scans all joined journals and picks the one whose current
// frame has the smallest gen_time, tie-broken by (location_uid, dest_id)
// ascending. It is idempotent and cheap to call repeatedly since each
// Journal caches its own cursor state.
func (r *Reader) selectCurrent() (bool, error) {
	var (
		bestKey   channelKey
		bestTime  int64
		found     bool
	)
	for _, key := range r.order {
		j := r.channels[key]
		avail, err := j.DataAvailable()
		if err != nil {
			return false, err
		}
		if !avail {
			continue
		}
		f := j.CurrentFrame()
		if !f.IsValid() {
			continue
		}
		t := f.GenTime()
		switch {
		case !found:
			bestKey, bestTime, found = key, t, true
		case t < bestTime:
			bestKey, bestTime, found = key, t, true
		case t == bestTime && lessChannel(key, bestKey):
			bestKey, bestTime, found = key, t, true
		}
	}
	if !found {
		r.hasCur = false
		return false, nil
	}
	r.current = bestKey
	r.hasCur = true
	return true, nil
}

func lessChannel(a, b channelKey) bool {
	if a.locationUID != b.locationUID {
		return a.locationUID < b.locationUID
	}
	return a.destID < b.destID
}

// DataAvailable reports whether a current frame can be selected from any
// joined journal.
func (r *Reader) DataAvailable() (bool, error) {
	return r.selectCurrent()
}

// CurrentFrame returns the globally oldest frame among joined journals.
// Undefined unless a prior DataAvailable call returned true.
func (r *Reader) CurrentFrame() Frame {
	return r.channels[r.current].CurrentFrame()
}

// CurrentPage returns the page backing the current frame.
func (r *Reader) CurrentPage() *Page {
	return r.channels[r.current].CurrentPage()
}

// CurrentChannel returns the (location uid, dest id) the current frame was
// selected from.
func (r *Reader) CurrentChannel() (locationUID, destID uint32) {
	return r.current.locationUID, r.current.destID
}

// CurrentLocation returns the full Location the current frame was selected
// from, for callers (the Assembler, a copy-sink) that need more than the uid.
func (r *Reader) CurrentLocation() location.Location {
	return r.channels[r.current].Location()
}

// Next advances the journal the current frame was drawn from, then
// re-selects the new global minimum.
func (r *Reader) Next() error {
	if !r.hasCur {
		if _, err := r.selectCurrent(); err != nil {
			return err
		}
		if !r.hasCur {
			return fmt.Errorf("%w: Next called with no current frame", kferrors.ErrCorruptJournal)
		}
	}
	j := r.channels[r.current]
	if err := j.Next(); err != nil {
		return err
	}
	metrics.FramesRead.Inc()
	_, err := r.selectCurrent()
	return err
}

// SeekToTime re-seeks every joined journal to t.
func (r *Reader) SeekToTime(t int64) error {
	for _, key := range r.order {
		if err := r.channels[key].SeekToTime(t); err != nil {
			return err
		}
	}
	r.hasCur = false
	return nil
}

// Close releases every joined journal's mapped page.
func (r *Reader) Close() error {
	var err error
	for _, key := range r.order {
		if cerr := r.channels[key].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
