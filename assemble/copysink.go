package assemble

import (
	"sync"

	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/metrics"
	"github.com/kungfu-go/kfjournal/publisher"
)

// CopySink re-emits every frame it receives into a writer rooted at a
// target locator, keyed by (source location uid, dest id). Writers are
// created on demand and kept open for the sink's lifetime; source/dest are
// restamped by Writer.CopyFrame to the new root's own location.
type CopySink struct {
	target *location.Locator
	cfg    kfconfig.Config
	pub    publisher.Publisher

	mu      sync.Mutex
	writers map[copyKey]*journal.Writer
}

type copyKey struct {
	locationUID uint32
	destID      uint32
}

// NewCopySink returns a CopySink that writes into target using cfg. pub
// may be nil, in which case each created Writer gets a
// publisher.NoopPublisher.
func NewCopySink(target *location.Locator, cfg kfconfig.Config, pub publisher.Publisher) *CopySink {
	return &CopySink{target: target, cfg: cfg, pub: pub, writers: make(map[copyKey]*journal.Writer)}
}

// Put copies frame into the writer for (loc, destID) under the sink's
// target locator, opening that writer the first time it is needed.
func (s *CopySink) Put(loc location.Location, destID uint32, frame journal.Frame) error {
	timer := metrics.NewTimer(metrics.CopySinkLatency)
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := copyKey{loc.UID(), destID}
	w, ok := s.writers[key]
	if !ok {
		dstLoc := location.New(s.target, loc.Mode, loc.Category, loc.Group, loc.Name)
		var err error
		w, err = journal.NewWriter(dstLoc, destID, s.cfg, s.pub)
		if err != nil {
			return err
		}
		s.writers[key] = w
	}
	return w.CopyFrame(frame)
}

// Close closes every writer the sink has created.
func (s *CopySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for _, w := range s.writers {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
