package metrics

// Pre-defined metrics for the journal engine. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Writer / Page metrics ----

	// FramesWritten counts frames successfully committed by writers.
	FramesWritten = DefaultRegistry.Counter("journal.frames_written")
	// BytesWritten counts frame bytes (header plus payload) committed by
	// writers.
	BytesWritten = DefaultRegistry.Counter("journal.bytes_written")
	// PageRollovers counts page-to-page transitions across all journals.
	PageRollovers = DefaultRegistry.Counter("journal.page_rollovers")
	// PublisherErrors counts non-zero returns from the notification publisher.
	PublisherErrors = DefaultRegistry.Counter("journal.publisher_errors")
	// OpenFrameLatency records the duration of Writer.OpenFrame in microseconds.
	OpenFrameLatency = DefaultRegistry.Histogram("journal.open_frame_us")

	// ---- Reader metrics ----

	// FramesRead counts frames observed by readers via Next.
	FramesRead = DefaultRegistry.Counter("journal.frames_read")
	// JoinedJournals tracks the number of journals currently joined across
	// all readers.
	JoinedJournals = DefaultRegistry.Gauge("journal.joined_journals")

	// ---- Assembler metrics ----

	// AssemblerJoinedStreams tracks the number of (location, dest) streams
	// currently joined by assemblers.
	AssemblerJoinedStreams = DefaultRegistry.Gauge("assembler.joined_streams")
	// AssemblerMergeLatency records the age (now - gen_time), in
	// milliseconds, of frames as they are drained from an assembler.
	AssemblerMergeLatency = DefaultRegistry.Histogram("assembler.merge_lag_ms")
	// AssemblerFramesDrained counts frames emitted by Assembler.Drain.
	AssemblerFramesDrained = DefaultRegistry.Counter("assembler.frames_drained")

	// ---- Sink metrics ----

	// CopySinkLatency records, in milliseconds, how long CopySink.Put takes
	// to re-emit a frame into its target writer.
	CopySinkLatency = DefaultRegistry.Histogram("sink.copy_put_ms")
)
