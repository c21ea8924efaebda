// Package location implements the identity-addressing layer: Location value
// objects, their canonical names and 32-bit uids, and the Locator that
// resolves them to filesystem paths.
package location

import (
	"fmt"

	"github.com/kungfu-go/kfjournal/khash"
)

// Mode is the lifecycle mode a location belongs to.
type Mode int

const (
	ModeLive Mode = iota
	ModeData
	ModeReplay
	ModeBacktest
)

// String returns the lowercase mode name used in path segments.
func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeData:
		return "data"
	case ModeReplay:
		return "replay"
	case ModeBacktest:
		return "backtest"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeFromString parses a mode name. "*" and unrecognised strings are
// rejected by callers that require an exact mode; ListLocations treats "*"
// specially itself.
func ModeFromString(s string) (Mode, bool) {
	switch s {
	case "live":
		return ModeLive, true
	case "data":
		return ModeData, true
	case "replay":
		return ModeReplay, true
	case "backtest":
		return ModeBacktest, true
	default:
		return 0, false
	}
}

// Category is the producer class a location belongs to.
type Category int

const (
	CategoryMD Category = iota
	CategoryTD
	CategoryStrategy
	CategorySystem
)

// String returns the lowercase category name used in path segments.
func (c Category) String() string {
	switch c {
	case CategoryMD:
		return "md"
	case CategoryTD:
		return "td"
	case CategoryStrategy:
		return "strategy"
	case CategorySystem:
		return "system"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// CategoryFromString parses a category name.
func CategoryFromString(s string) (Category, bool) {
	switch s {
	case "md":
		return CategoryMD, true
	case "td":
		return CategoryTD, true
	case "strategy":
		return CategoryStrategy, true
	case "system":
		return CategorySystem, true
	default:
		return 0, false
	}
}

// Reserved destination ids.
const (
	DestPublic uint32 = 0 // broadcast destination
	DestSync   uint32 = 1 // synchronization channel
)

// Location is the immutable identity of a stream endpoint: a
// (mode, category, group, name) tuple plus a back-reference to the Locator
// that resolves it to paths. Two Locations with equal tuples always share
// a canonical name and hash to the same uid, regardless of which Locator
// instance produced them; Go's == also compares the Locator pointer.
type Location struct {
	Mode     Mode
	Category Category
	Group    string
	Name     string

	locator *Locator
}

// New constructs a Location bound to the given locator.
func New(locator *Locator, mode Mode, category Category, group, name string) Location {
	return Location{Mode: mode, Category: category, Group: group, Name: name, locator: locator}
}

// Locator returns the Locator this location resolves paths through.
func (l Location) Locator() *Locator { return l.locator }

// CanonicalName returns "<category-int>/<group>/<name>/<mode-int>", the
// stable string hashed to produce the uid.
func (l Location) CanonicalName() string {
	return fmt.Sprintf("%d/%s/%s/%d", int(l.Category), l.Group, l.Name, int(l.Mode))
}

// UID returns the stable 32-bit uid for this location: hash(CanonicalName()).
// It is cached process-wide so repeated calls on equal locations are cheap
// and, more importantly, always agree.
func (l Location) UID() uint32 {
	return cachedUID(l.CanonicalName())
}

// String renders a Location for logging.
func (l Location) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", l.Category, l.Group, l.Name, l.Mode)
}
