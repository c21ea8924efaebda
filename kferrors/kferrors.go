// Package kferrors declares the error kinds used across the journal engine.
// These are plain sentinel errors wrapped with fmt.Errorf("%w") at call
// sites — no exceptions-style error library.
package kferrors

import "errors"

var (
	// ErrCorruptJournal marks a page or frame header invariant violation,
	// or a missing page_id in an otherwise-contiguous sequence. Fatal to
	// the owning operation.
	ErrCorruptJournal = errors.New("kfjournal: corrupt journal")

	// ErrFrameOverflow marks an OpenFrame request whose size exceeds a
	// whole page, or one made with a zero msg_type. Fatal to the owning
	// operation.
	ErrFrameOverflow = errors.New("kfjournal: frame exceeds page capacity")

	// ErrVersionMismatch marks a page version this implementation does not
	// understand, or (for CopyFrame) a mismatch between source and
	// destination frame header layouts. Fatal to the owning operation.
	ErrVersionMismatch = errors.New("kfjournal: version mismatch")

	// ErrIncompatibleAssemble marks a set-algebra combinator applied across
	// assemblers whose four identity strings differ. Fails only the
	// combinator call.
	ErrIncompatibleAssemble = errors.New("kfjournal: incompatible assemble identity")

	// ErrPathUnavailable marks a filesystem failure to create or map a
	// path. Fatal to the owning operation.
	ErrPathUnavailable = errors.New("kfjournal: path unavailable")

	// ErrPublisherError marks a non-zero return from the notification
	// publisher. Logged and returned alongside a successful commit; never
	// aborts the write that triggered it.
	ErrPublisherError = errors.New("kfjournal: publisher error")
)

// Kind classifies err as one of the sentinel kinds above. It returns "" for
// a nil err and "Unknown" for an error that matches none of them. Used by
// logging and metrics to tag errors without string-matching their messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCorruptJournal):
		return "CorruptJournal"
	case errors.Is(err, ErrFrameOverflow):
		return "FrameOverflow"
	case errors.Is(err, ErrVersionMismatch):
		return "VersionMismatch"
	case errors.Is(err, ErrIncompatibleAssemble):
		return "IncompatibleAssemble"
	case errors.Is(err, ErrPathUnavailable):
		return "PathUnavailable"
	case errors.Is(err, ErrPublisherError):
		return "PublisherError"
	default:
		return "Unknown"
	}
}
