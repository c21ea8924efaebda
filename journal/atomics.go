package journal

import (
	"sync/atomic"
	"unsafe"

	"github.com/kungfu-go/kfjournal/kfconfig"
)

// alignUp rounds v up to the next multiple of kfconfig.FrameAlignment, so
// every frame a writer opens starts at an address where the loads/stores
// below are naturally aligned.
func alignUp(v uint64) uint64 {
	a := uint64(kfconfig.FrameAlignment)
	return (v + a - 1) &^ (a - 1)
}

// loadU32Acquire and storeU32Release give the volatile length/msg_type
// fields cross-process acquire/release semantics over a plain mmap'd byte
// slice. The wire layout is untouched; only the access discipline is
// explicit, standing in for the source's volatile-qualified struct fields.
func loadU32Acquire(b []byte, off uint64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&b[off])))
}

func storeU32Release(b []byte, off uint64, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&b[off])), v)
}

func loadU64Acquire(b []byte, off uint64) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&b[off])))
}

func storeU64Release(b []byte, off uint64, v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&b[off])), v)
}

// loadU32Plain and loadI64Plain read header fields that carry no
// cross-process ordering requirement of their own (header_length, source,
// dest, trigger_time): by the time a reader may legitimately inspect them,
// the acquire load of length has already fenced the rest of the header
// into visibility.
func loadU32Plain(b []byte, off uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(&b[off]))
}

func storeU32Plain(b []byte, off uint64, v uint32) {
	*(*uint32)(unsafe.Pointer(&b[off])) = v
}

func loadI64Plain(b []byte, off uint64) int64 {
	return *(*int64)(unsafe.Pointer(&b[off]))
}

func storeI64Plain(b []byte, off uint64, v int64) {
	*(*int64)(unsafe.Pointer(&b[off])) = v
}
