package location

import (
	"encoding/binary"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/kungfu-go/kfjournal/khash"
)

// uidCache memoizes CanonicalName -> uid so that hot paths (Writer's
// current-frame-uid derivation, Reader's per-frame tie-break key) never
// recompute xxhash over the same small set of strings. Sized generously
// since entries are a handful of bytes each; a real deployment may touch
// thousands of distinct locations.
var uidCache = fastcache.New(4 << 20)

// dirCache remembers which layout directories have already been verified
// to exist, so repeated LayoutDir calls for the same (location, layout)
// pair skip the os.MkdirAll/Stat round trip.
var dirCache = fastcache.New(4 << 20)

var dirCacheMu sync.Mutex

func cachedUID(canonical string) uint32 {
	key := []byte(canonical)
	if buf := uidCache.Get(nil, key); len(buf) == 4 {
		return binary.LittleEndian.Uint32(buf)
	}
	uid := khash.HashStr32(canonical)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uid)
	uidCache.Set(key, buf[:])
	return uid
}

// dirKnownToExist reports whether path was previously confirmed present,
// and records it as confirmed for subsequent calls.
func dirKnownToExist(path string) bool {
	dirCacheMu.Lock()
	defer dirCacheMu.Unlock()
	key := []byte(path)
	has := dirCache.Has(key)
	if !has {
		dirCache.Set(key, []byte{1})
	}
	return has
}
