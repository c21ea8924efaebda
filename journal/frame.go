package journal

// Frame header field offsets, relative to the frame's own start (which is
// itself an offset into the owning page).
const (
	offLength       = 0
	offHeaderLength = 4
	offGenTime      = 8
	offTriggerTime  = 16
	offMsgType      = 24
	offSource       = 28
	offDest         = 32
)

// Frame is a (page, offset) pair; every accessor re-reads the underlying
// mapped bytes, so a Frame is cheap to pass around and never goes stale on
// its own — though it must never outlive the Page it borrows from.
type Frame struct {
	page   *Page
	offset uint64
}

// Length is the volatile total frame size (header + payload); zero means
// "not yet committed". Loaded with acquire semantics: once a reader
// observes a non-zero length, the rest of the header and the full payload
// are guaranteed visible.
func (f Frame) Length() uint32 { return loadU32Acquire(f.page.mm, f.offset+offLength) }

func (f Frame) setLength(v uint32) { storeU32Release(f.page.mm, f.offset+offLength, v) }

// HeaderLength is the byte distance from the frame's start to its payload.
func (f Frame) HeaderLength() uint32 { return loadU32Plain(f.page.mm, f.offset+offHeaderLength) }

func (f Frame) setHeaderLength(v uint32) { storeU32Plain(f.page.mm, f.offset+offHeaderLength, v) }

// GenTime is the writer's monotonic-nanosecond clock reading at commit.
func (f Frame) GenTime() int64 { return loadI64Plain(f.page.mm, f.offset+offGenTime) }

func (f Frame) setGenTime(v int64) { storeI64Plain(f.page.mm, f.offset+offGenTime, v) }

// TriggerTime is the caller-supplied causal timestamp.
func (f Frame) TriggerTime() int64 { return loadI64Plain(f.page.mm, f.offset+offTriggerTime) }

func (f Frame) setTriggerTime(v int64) { storeI64Plain(f.page.mm, f.offset+offTriggerTime, v) }

// MsgType is the volatile message type id; zero is the "uncommitted"
// sentinel. Loaded with acquire semantics alongside Length.
func (f Frame) MsgType() uint32 { return loadU32Acquire(f.page.mm, f.offset+offMsgType) }

func (f Frame) setMsgType(v uint32) { storeU32Release(f.page.mm, f.offset+offMsgType, v) }

// Source is the writer location's uid.
func (f Frame) Source() uint32 { return loadU32Plain(f.page.mm, f.offset+offSource) }

func (f Frame) setSource(v uint32) { storeU32Plain(f.page.mm, f.offset+offSource, v) }

// Dest is the destination location's uid (0 = PUBLIC).
func (f Frame) Dest() uint32 { return loadU32Plain(f.page.mm, f.offset+offDest) }

func (f Frame) setDest(v uint32) { storeU32Plain(f.page.mm, f.offset+offDest, v) }

// IsValid reports whether the frame has been fully committed.
func (f Frame) IsValid() bool { return f.Length() > 0 && f.MsgType() > 0 }

// DataAddress returns the payload region as a byte slice that aliases the
// underlying mapped page. Valid only once the frame is committed (or, for
// a writer holding the frame it just opened, once it has reserved the
// payload space).
func (f Frame) DataAddress() []byte {
	start := f.offset + uint64(f.HeaderLength())
	end := f.offset + uint64(f.Length())
	if f.Length() == 0 {
		// Uncommitted: caller (the writer) knows its own reserved extent.
		return f.page.mm[start:]
	}
	return f.page.mm[start:end]
}

// CopyData memcpy's n bytes of src into the frame's payload region. The
// caller (always the writer that just opened this frame) is responsible
// for having reserved at least n bytes.
func (f Frame) CopyData(src []byte, n int) {
	start := f.offset + uint64(f.HeaderLength())
	copy(f.page.mm[start:start+uint64(n)], src[:n])
}

// Page returns the page this frame view borrows from.
func (f Frame) Page() *Page { return f.page }

// Offset returns the frame's byte offset within its page.
func (f Frame) Offset() uint64 { return f.offset }
