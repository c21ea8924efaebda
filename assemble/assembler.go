// Package assemble implements the Assembler: a time-ordered merge view
// spanning many journal.Reader instances, one per locator root, composed
// with the assemble-mode bitset and set algebra over joined channels.
package assemble

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/kferrors"
	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/metrics"
)

// AssembleMode is a bitset selecting which channels a single-source
// Assembler joins. Bits combine; ALL dominates all others.
type AssembleMode uint32

const (
	ModeChannel AssembleMode = 1 << iota // join exactly (source, dest_id)
	ModeWrite                            // join (source, d) for every d the source writes
	ModeRead                             // join (loc, dest_id) for every loc on the root(s)
	ModePublic                           // join (loc, PUBLIC) for every loc
	ModeSync                             // join (loc, SYNC) for every loc
	ModeAll                              // join every (loc, d); dominates all other bits
)

// identity is the (mode, category, group, name) filter an Assembler was
// constructed with. Two Assemblers may only be combined via Add/Merge/Remove
// when their identities are equal string-for-string.
type identity struct {
	mode, category, group, name string
}

func (a identity) equal(b identity) bool {
	return a.mode == b.mode && a.category == b.category && a.group == b.group && a.name == b.name
}

// joinKey identifies one joined channel regardless of which locator root
// it lives under, for the set-algebra bookkeeping (+=, -=).
type joinKey struct {
	root        string
	locationUID uint32
	destID      uint32
}

// joinRecord remembers enough about a joined channel to re-join it into
// another Assembler's matching reader (used by Merge).
type joinRecord struct {
	loc      location.Location
	destID   uint32
	fromTime int64
}

// Assembler composes a journal.Reader per locator root and selects the
// globally oldest frame across all of them, with the same
// (location_uid, dest_id) tie-break journal.Reader uses within one root.
type Assembler struct {
	cfg      kfconfig.Config
	id       identity
	readers  map[string]*journal.Reader // keyed by locator root
	locators map[string]*location.Locator
	joined   map[joinKey]joinRecord

	currentRoot string
	hasCur      bool
}

// New constructs an Assembler over locators, joining every location
// matching (category, group, name, mode) — each of which accepts "*" as a
// wildcard — and, for each, every destination id the location has ever
// written to. ListLocations is fanned out across locators concurrently.
func New(cfg kfconfig.Config, mode, category, group, name string, locators []*location.Locator) (*Assembler, error) {
	a := &Assembler{
		cfg:      cfg,
		id:       identity{mode, category, group, name},
		readers:  make(map[string]*journal.Reader),
		locators: make(map[string]*location.Locator),
		joined:   make(map[joinKey]joinRecord),
	}

	type found struct {
		root string
		locs []location.Location
	}
	results := make([]found, len(locators))
	var g errgroup.Group
	for i, lr := range locators {
		i, lr := i, lr
		g.Go(func() error {
			locs, err := lr.ListLocations(category, group, name, mode)
			if err != nil {
				return err
			}
			results[i] = found{root: lr.RootDir(), locs: locs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, lr := range locators {
		a.locators[lr.RootDir()] = lr
		for _, loc := range results[i].locs {
			dests, err := lr.ListLocationDest(loc)
			if err != nil {
				return nil, err
			}
			for _, d := range dests {
				if err := a.join(loc, d, 0); err != nil {
					return nil, err
				}
			}
		}
	}
	return a, nil
}

// NewFromSource constructs an Assembler anchored to a single source
// location, joining channels according to assembleMode. The identity
// recorded for set-algebra purposes is the source's own exact (non-wildcard)
// mode/category/group/name.
func NewFromSource(cfg kfconfig.Config, source location.Location, destID uint32, mode AssembleMode) (*Assembler, error) {
	a := &Assembler{
		cfg: cfg,
		id: identity{
			mode:     source.Mode.String(),
			category: source.Category.String(),
			group:    source.Group,
			name:     source.Name,
		},
		readers:  make(map[string]*journal.Reader),
		locators: make(map[string]*location.Locator),
		joined:   make(map[joinKey]joinRecord),
	}
	lr := source.Locator()
	a.locators[lr.RootDir()] = lr

	allLocs := func() ([]location.Location, error) {
		return lr.ListLocations("*", "*", "*", "*")
	}

	switch {
	case mode&ModeAll != 0:
		locs, err := allLocs()
		if err != nil {
			return nil, err
		}
		for _, loc := range locs {
			dests, err := lr.ListLocationDest(loc)
			if err != nil {
				return nil, err
			}
			for _, d := range dests {
				if err := a.join(loc, d, 0); err != nil {
					return nil, err
				}
			}
		}
	default:
		if mode&ModeChannel != 0 {
			if err := a.join(source, destID, 0); err != nil {
				return nil, err
			}
		}
		if mode&ModeWrite != 0 {
			dests, err := lr.ListLocationDest(source)
			if err != nil {
				return nil, err
			}
			for _, d := range dests {
				if err := a.join(source, d, 0); err != nil {
					return nil, err
				}
			}
		}
		if mode&(ModeRead|ModePublic|ModeSync) != 0 {
			locs, err := allLocs()
			if err != nil {
				return nil, err
			}
			for _, loc := range locs {
				if mode&ModeRead != 0 {
					if err := a.join(loc, destID, 0); err != nil {
						return nil, err
					}
				}
				if mode&ModePublic != 0 {
					if err := a.join(loc, location.DestPublic, 0); err != nil {
						return nil, err
					}
				}
				if mode&ModeSync != 0 {
					if err := a.join(loc, location.DestSync, 0); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return a, nil
}

func (a *Assembler) join(loc location.Location, destID uint32, fromTime int64) error {
	root := loc.Locator().RootDir()
	key := joinKey{root, loc.UID(), destID}
	if _, ok := a.joined[key]; ok {
		return nil
	}
	r, ok := a.readers[root]
	if !ok {
		r = journal.NewReader(a.cfg)
		a.readers[root] = r
		a.locators[root] = loc.Locator()
	}
	if err := r.Join(loc, destID, fromTime); err != nil {
		return err
	}
	a.joined[key] = joinRecord{loc: loc, destID: destID, fromTime: fromTime}
	metrics.AssemblerJoinedStreams.Inc()
	return nil
}

// Add returns a new Assembler merging the joined channels of a and other.
// Fails with kferrors.ErrIncompatibleAssemble if their identities differ.
func (a *Assembler) Add(other *Assembler) (*Assembler, error) {
	if !a.id.equal(other.id) {
		return nil, fmt.Errorf("%w: %+v vs %+v", kferrors.ErrIncompatibleAssemble, a.id, other.id)
	}
	merged := &Assembler{
		cfg:      a.cfg,
		id:       a.id,
		readers:  make(map[string]*journal.Reader),
		locators: make(map[string]*location.Locator),
		joined:   make(map[joinKey]joinRecord),
	}
	for _, src := range []*Assembler{a, other} {
		for key, rec := range src.joined {
			if _, ok := merged.joined[key]; ok {
				continue
			}
			if err := merged.join(rec.loc, rec.destID, rec.fromTime); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

// Merge joins other's channels into a in place (a += other). A channel
// already sharing a's (locator root, location_uid, dest_id) is left alone;
// a new one is opened at other's recorded from_time.
func (a *Assembler) Merge(other *Assembler) error {
	if !a.id.equal(other.id) {
		return fmt.Errorf("%w: %+v vs %+v", kferrors.ErrIncompatibleAssemble, a.id, other.id)
	}
	for key, rec := range other.joined {
		if _, ok := a.joined[key]; ok {
			continue
		}
		if err := a.join(rec.loc, rec.destID, rec.fromTime); err != nil {
			return err
		}
	}
	a.hasCur = false
	return nil
}

// Remove disjoins other's channels from a in place (a -= other).
func (a *Assembler) Remove(other *Assembler) error {
	if !a.id.equal(other.id) {
		return fmt.Errorf("%w: %+v vs %+v", kferrors.ErrIncompatibleAssemble, a.id, other.id)
	}
	for key := range other.joined {
		r, ok := a.readers[key.root]
		if !ok {
			continue
		}
		if err := r.DisjoinChannel(key.locationUID, key.destID); err != nil {
			return err
		}
		delete(a.joined, key)
		metrics.AssemblerJoinedStreams.Dec()
	}
	a.hasCur = false
	return nil
}

// Channels returns the joined (locator root, location_uid, dest_id)
// triples, sorted for deterministic inspection in tests.
func (a *Assembler) Channels() []struct {
	Root        string
	LocationUID uint32
	DestID      uint32
} {
	out := make([]struct {
		Root        string
		LocationUID uint32
		DestID      uint32
	}, 0, len(a.joined))
	for key := range a.joined {
		out = append(out, struct {
			Root        string
			LocationUID uint32
			DestID      uint32
		}{key.root, key.locationUID, key.destID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Root != out[j].Root {
			return out[i].Root < out[j].Root
		}
		if out[i].LocationUID != out[j].LocationUID {
			return out[i].LocationUID < out[j].LocationUID
		}
		return out[i].DestID < out[j].DestID
	})
	return out
}

// selectCurrent picks the per-root reader whose current frame is globally
// oldest, tie-broken by (location_uid, dest_id) ascending — the same rule
// journal.Reader applies within a single root.
func (a *Assembler) selectCurrent() (bool, error) {
	var (
		bestRoot string
		bestTime int64
		bestLoc  uint32
		bestDest uint32
		found    bool
	)
	roots := make([]string, 0, len(a.readers))
	for root := range a.readers {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for _, root := range roots {
		r := a.readers[root]
		avail, err := r.DataAvailable()
		if err != nil {
			return false, err
		}
		if !avail {
			continue
		}
		f := r.CurrentFrame()
		locUID, destID := r.CurrentChannel()
		t := f.GenTime()
		switch {
		case !found:
			bestRoot, bestTime, bestLoc, bestDest, found = root, t, locUID, destID, true
		case t < bestTime:
			bestRoot, bestTime, bestLoc, bestDest, found = root, t, locUID, destID, true
		case t == bestTime && (locUID < bestLoc || (locUID == bestLoc && destID < bestDest)):
			bestRoot, bestTime, bestLoc, bestDest, found = root, t, locUID, destID, true
		}
	}
	if !found {
		a.hasCur = false
		return false, nil
	}
	a.currentRoot = bestRoot
	a.hasCur = true
	return true, nil
}

// DataAvailable reports whether a current frame can be selected from any
// joined reader.
func (a *Assembler) DataAvailable() (bool, error) {
	return a.selectCurrent()
}

// CurrentFrame, CurrentLocation and CurrentDestID describe the globally
// oldest joined frame. Undefined unless a prior DataAvailable returned true.
func (a *Assembler) CurrentFrame() journal.Frame {
	return a.readers[a.currentRoot].CurrentFrame()
}

func (a *Assembler) CurrentLocation() location.Location {
	return a.readers[a.currentRoot].CurrentLocation()
}

func (a *Assembler) CurrentDestID() uint32 {
	_, destID := a.readers[a.currentRoot].CurrentChannel()
	return destID
}

// Next advances the reader the current frame was drawn from, then
// re-selects the new global minimum.
func (a *Assembler) Next() error {
	if !a.hasCur {
		if _, err := a.selectCurrent(); err != nil {
			return err
		}
		if !a.hasCur {
			return fmt.Errorf("%w: Next called with no current frame", kferrors.ErrCorruptJournal)
		}
	}
	if err := a.readers[a.currentRoot].Next(); err != nil {
		return err
	}
	_, err := a.selectCurrent()
	return err
}

// Drain calls sink.Put for every joined frame in non-decreasing gen_time
// order until the Assembler is exhausted.
func (a *Assembler) Drain(sink Sink) error {
	for {
		avail, err := a.DataAvailable()
		if err != nil {
			return err
		}
		if !avail {
			return nil
		}
		loc := a.CurrentLocation()
		destID := a.CurrentDestID()
		frame := a.CurrentFrame()
		metrics.AssemblerMergeLatency.Observe(float64(journal.NowInNano()-frame.GenTime()) / 1e6)
		if err := sink.Put(loc, destID, frame); err != nil {
			return err
		}
		metrics.AssemblerFramesDrained.Inc()
		if err := a.Next(); err != nil {
			return err
		}
	}
}

// Close releases every joined reader's mapped pages.
func (a *Assembler) Close() error {
	var err error
	for _, r := range a.readers {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
