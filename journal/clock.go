package journal

import (
	"strconv"
	"time"

	"github.com/kungfu-go/kfjournal/khash"
)

// wallAnchor and monoAnchor are captured exactly once, at package init, and
// never touched again. now_in_nano is then wallAnchor plus the monotonic
// duration elapsed since monoAnchor — immune to wall-clock adjustments
// mid-process while still reporting epoch-aligned nanoseconds.
var (
	wallAnchor = time.Now().UnixNano()
	monoAnchor = time.Now()
)

// NowInNano returns a monotonic nanosecond count anchored to the system
// epoch at process start. Every gen_time stamped by a Writer comes from
// this call.
func NowInNano() int64 {
	return wallAnchor + time.Since(monoAnchor).Nanoseconds()
}

// Strftime formats a gen_time-style nanosecond timestamp. Three sentinels
// short-circuit the usual time.Time formatting: the maximum int64 renders
// as "end of world", a value of exactly zero renders with every digit
// replaced by '0', and a negative value renders as a single '#'.
func Strftime(nano int64, layout string) string {
	switch {
	case nano == int64(^uint64(0)>>1):
		return "end of world"
	case nano < 0:
		return "#"
	case nano == 0:
		zeroed := time.Unix(0, 0).UTC().Format(layout)
		out := make([]byte, len(zeroed))
		for i := 0; i < len(zeroed); i++ {
			if zeroed[i] >= '0' && zeroed[i] <= '9' {
				out[i] = '0'
			} else {
				out[i] = zeroed[i]
			}
		}
		return string(out)
	default:
		return time.Unix(0, nano).UTC().Format(layout)
	}
}

// currentFrameUID derives a non-zero idempotency token from a writer
// location's uid and the gen_time of the frame about to be opened.
func currentFrameUID(locationUID uint32, genTime int64) uint32 {
	h := locationUID ^ foldInt64(genTime)
	if h == 0 {
		h = 1
	}
	return h
}

func foldInt64(v int64) uint32 {
	return khash.HashStr32(strconv.FormatInt(v, 10))
}
