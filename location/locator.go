package location

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/kungfu-go/kfjournal/kferrors"
)

// Filesystem layout segment names.
const (
	LayoutJournal = "journal"
	LayoutSQLite  = "sqlite"
	LayoutLog     = "log"
)

// Locator resolves Locations to filesystem paths, rooted under a directory
// chosen from environment overrides, an optional KF_HOME, or a per-platform
// default. A process typically owns one Locator per mode it participates
// in, though Location.Mode (used in path construction) may differ from the
// Locator's own mode — a backtest locator routinely resolves locations
// whose Mode is ModeData, replaying recorded market data through its own
// backtest root.
type Locator struct {
	mode Mode
	root string
}

// modeEnvVar returns the environment variable consulted for mode's root
// directory before falling back to KF_HOME / the platform default.
func modeEnvVar(mode Mode) string {
	switch mode {
	case ModeLive:
		return "KF_RUNTIME_DIR"
	case ModeData:
		return "KF_DATASET_DIR"
	case ModeReplay:
		return "KF_REPLAY_DIR"
	case ModeBacktest:
		return "KF_BACKTEST_DIR"
	default:
		return ""
	}
}

func platformDefaultHome() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "kungfu", "home")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", "kungfu", "home")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "kungfu", "home")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "kungfu", "home")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "kungfu", "home")
	}
}

// NewLocator resolves a Locator's root directory for mode. Resolution
// order: the mode-specific environment variable (KF_RUNTIME_DIR etc.) if
// set; otherwise KF_HOME (if set) or the platform default, with mode's
// subdirectory appended. Any further tags (instance name, account id, ...)
// are appended last, to separate co-located instances sharing one home.
func NewLocator(mode Mode, tags ...string) (*Locator, error) {
	base := os.Getenv(modeEnvVar(mode))
	if base == "" {
		home := os.Getenv("KF_HOME")
		if home == "" {
			home = platformDefaultHome()
		}
		base = filepath.Join(home, mode.String())
	}
	root := filepath.Join(append([]string{base}, tags...)...)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, root, err)
	}
	return &Locator{mode: mode, root: root}, nil
}

// Mode returns the locator's own mode, used only for root resolution.
func (lr *Locator) Mode() Mode { return lr.mode }

// RootDir returns the locator's resolved root directory.
func (lr *Locator) RootDir() string { return lr.root }

// LayoutDir returns, creating it if necessary, the directory
// root/category/group/name/layout/mode for loc.
func (lr *Locator) LayoutDir(loc Location, layout string) (string, error) {
	dir := filepath.Join(lr.root, loc.Category.String(), loc.Group, loc.Name, layout, loc.Mode.String())
	if dirKnownToExist(dir) {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, dir, err)
	}
	return dir, nil
}

// LayoutFile returns layout_dir/name.layout for loc.
func (lr *Locator) LayoutFile(loc Location, layout, name string) (string, error) {
	dir, err := lr.LayoutDir(loc, layout)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+"."+layout), nil
}

// pageFileStem formats the <dest-hex8>.<page-id> stem shared by JournalFile
// and the page-id/dest-id directory scans below.
func pageFileStem(destID uint32, pageID uint32) string {
	return fmt.Sprintf("%08x.%d", destID, pageID)
}

// JournalFile returns the path of the page file for (loc, destID, pageID),
// creating the containing directory if necessary.
func (lr *Locator) JournalFile(loc Location, destID uint32, pageID uint32) (string, error) {
	return lr.LayoutFile(loc, LayoutJournal, pageFileStem(destID, pageID))
}

// ListPageID returns the page ids present on disk for (loc, destID) in
// ascending order.
func (lr *Locator) ListPageID(loc Location, destID uint32) ([]uint32, error) {
	dir, err := lr.LayoutDir(loc, LayoutJournal)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, dir, err)
	}
	prefix := fmt.Sprintf("%08x.", destID)
	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".journal") {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".journal")
		n, err := strconv.ParseUint(mid, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListLocationDest returns the distinct destination ids with at least one
// page file under loc, in ascending order.
func (lr *Locator) ListLocationDest(loc Location) ([]uint32, error) {
	dir, err := lr.LayoutDir(loc, LayoutJournal)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, dir, err)
	}
	seen := make(map[uint32]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := strings.SplitN(e.Name(), ".", 3)
		if len(parts) != 3 || parts[2] != "journal" {
			continue
		}
		destID, err := strconv.ParseUint(parts[0], 16, 32)
		if err != nil {
			continue
		}
		seen[uint32(destID)] = struct{}{}
	}
	dests := make([]uint32, 0, len(seen))
	for d := range seen {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
	return dests, nil
}

// matches reports whether name satisfies filter, where "*" (or any glob
// pattern accepted by filepath.Match) matches any name.
func matches(filter, name string) bool {
	if filter == "" || filter == "*" {
		return true
	}
	ok, err := filepath.Match(filter, name)
	return err == nil && ok
}

// ListLocations walks the locator's root and returns every Location whose
// category, group, name and mode satisfy the given filters. Each filter
// accepts "*" (or any filepath.Match pattern) to match any value, or an
// exact string to match one value.
func (lr *Locator) ListLocations(category, group, name, mode string) ([]Location, error) {
	var out []Location

	categoryEntries, err := os.ReadDir(lr.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", kferrors.ErrPathUnavailable, lr.root, err)
	}
	for _, catEnt := range categoryEntries {
		if !catEnt.IsDir() || !matches(category, catEnt.Name()) {
			continue
		}
		cat, ok := CategoryFromString(catEnt.Name())
		if !ok {
			continue
		}
		catDir := filepath.Join(lr.root, catEnt.Name())
		groupEntries, err := os.ReadDir(catDir)
		if err != nil {
			continue
		}
		for _, grpEnt := range groupEntries {
			if !grpEnt.IsDir() || !matches(group, grpEnt.Name()) {
				continue
			}
			grpDir := filepath.Join(catDir, grpEnt.Name())
			nameEntries, err := os.ReadDir(grpDir)
			if err != nil {
				continue
			}
			for _, nameEnt := range nameEntries {
				if !nameEnt.IsDir() || !matches(name, nameEnt.Name()) {
					continue
				}
				journalDir := filepath.Join(grpDir, nameEnt.Name(), LayoutJournal)
				modeEntries, err := os.ReadDir(journalDir)
				if err != nil {
					continue
				}
				for _, modeEnt := range modeEntries {
					if !modeEnt.IsDir() || !matches(mode, modeEnt.Name()) {
						continue
					}
					m, ok := ModeFromString(modeEnt.Name())
					if !ok {
						continue
					}
					out = append(out, New(lr, m, cat, grpEnt.Name(), nameEnt.Name()))
				}
			}
		}
	}
	return out, nil
}
