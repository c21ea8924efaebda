package assemble

import (
	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/location"
)

// Sink consumes frames drained from an Assembler in strict gen_time-
// ascending order. Implementations may be pass-through, copy-to-new-root,
// or user-defined; the fan-out mechanism (callback, channel, iterator) is
// unconstrained — this is the one contract Drain depends on.
type Sink interface {
	Put(loc location.Location, destID uint32, frame journal.Frame) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(loc location.Location, destID uint32, frame journal.Frame) error

// Put calls f.
func (f SinkFunc) Put(loc location.Location, destID uint32, frame journal.Frame) error {
	return f(loc, destID, frame)
}
