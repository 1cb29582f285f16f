// Package jfr reads the Java Flight Recorder (JFR) binary profiling
// container format written by async-profiler: a concatenation of
// self-describing chunks, each carrying its own metadata descriptor,
// constant pool, and event stream.
package jfr

// wellKnownEventNames are the six JFR event type names this reader
// recognizes (spec §6 "Type-id resolution").
var wellKnownEventNames = []string{
	"jdk.ExecutionSample",
	"jdk.NativeMethodSample",
	"jdk.ObjectAllocationInNewTLAB",
	"jdk.ObjectAllocationOutsideTLAB",
	"jdk.JavaMonitorEnter",
	"jdk.ThreadPark",
}

// Reader reads one JFR file's worth of chunks. It holds one memory
// mapping and one moving Cursor; it is not safe for concurrent use by
// multiple goroutines (spec §5). Multiple Readers over the same path
// are independently safe, since the mapping is read-only.
//
// Grounded on perffile/reader.go's File: exported scalar/metadata
// fields built eagerly by New, an unexported cursor/section state,
// Open wrapping file-handle acquisition around New with teardown on
// error.
type Reader struct {
	// StartNanos is the epoch start time of the first chunk, in
	// nanoseconds.
	StartNanos uint64

	// DurationNanos is the end time of the last chunk minus
	// StartNanos, across all chunks (spec §3).
	DurationNanos uint64

	// StartTicks and TicksPerSec give the writer's tick clock:
	// event Time fields are ticks since StartTicks, at
	// TicksPerSec ticks per second.
	StartTicks  uint64
	TicksPerSec uint64

	// Threads maps thread id to display name (Java thread name if
	// present, else OS thread name).
	Threads Dictionary[string]

	// Classes maps class id to a reference whose name is resolved
	// through Symbols.
	Classes Dictionary[ClassRef]

	// Methods maps method id to a reference whose class/name/
	// signature are resolved through Classes and Symbols.
	Methods Dictionary[MethodRef]

	// Symbols maps symbol id to its raw UTF-8 bytes. These slices
	// alias the memory mapping directly and are valid for the
	// Reader's lifetime.
	Symbols Dictionary[[]byte]

	// StackTraces maps stack trace id to its method/frame-type
	// sequence, deepest frame first.
	StackTraces Dictionary[StackTrace]

	// FrameTypes and ThreadStates map the small integer enum
	// values used by ExecutionSample.ThreadState and StackTrace
	// frame entries to human-readable labels.
	FrameTypes   map[int32]string
	ThreadStates map[int32]string

	mapping    *mapping
	cursor     *Cursor
	registry   *typeRegistry
	chunks     []chunkInfo
	curChunk   int
	eventNames map[int32]string // type id -> one of wellKnownEventNames
}

// Open memory-maps the file at path and fully indexes every chunk:
// validating headers, parsing metadata, and populating all constant
// pools. The returned Reader is positioned at the first event of the
// first chunk.
func Open(path string) (*Reader, error) {
	m, err := openMapping(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{mapping: m, curChunk: -1}
	if err := r.index(); err != nil {
		m.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the mapping and underlying file handle. It is safe
// to call once; calling it again, or on the nil Reader a failed Open
// returns, is a no-op.
func (r *Reader) Close() error {
	if r == nil || r.mapping == nil {
		return nil
	}
	err := r.mapping.Close()
	r.mapping = nil
	return err
}

func (r *Reader) index() error {
	buf := r.mapping.data
	r.cursor = newCursor(buf)
	r.registry = newTypeRegistry()
	dicts := newRefDicts()

	var chunks []chunkInfo
	pos := int64(0)
	for pos < int64(len(buf)) {
		ci, err := indexChunk(r.cursor, pos)
		if err != nil {
			return err
		}

		r.cursor.SetPos(ci.metaOffset)
		if err := parseMetadata(r.cursor, r.registry); err != nil {
			return err
		}

		if err := parsePools(r.cursor, ci.poolOffset, r.registry, dicts); err != nil {
			return err
		}
		ci.bodyStart = r.cursor.Pos()

		chunks = append(chunks, ci)
		pos = ci.bodyEnd
	}
	if len(chunks) == 0 {
		return invalidFormat("no chunks in file")
	}
	r.chunks = chunks

	r.Threads = dicts.threads
	r.Classes = dicts.classes
	r.Methods = dicts.methods
	r.Symbols = dicts.symbols
	r.StackTraces = dicts.stackTraces
	r.FrameTypes = dicts.frameTypes
	r.ThreadStates = dicts.threadStates

	first, last := chunks[0], chunks[len(chunks)-1]
	r.StartNanos = first.startNanos
	r.StartTicks = first.startTicks
	r.TicksPerSec = first.ticksPerSec
	r.DurationNanos = (last.startNanos + last.durationNanos) - first.startNanos

	r.eventNames = make(map[int32]string, len(wellKnownEventNames))
	for _, name := range wellKnownEventNames {
		if id, ok := r.registry.typeIDByName(name); ok {
			r.eventNames[id] = name
		}
	}

	if !r.advanceChunk() {
		return invalidFormat("chunk body window could not be established")
	}
	return nil
}

// SymbolString looks up id in Symbols and returns it as a string, or
// "" if id is absent.
func (r *Reader) SymbolString(id uint64) string {
	b, ok := r.Symbols.Get(id)
	if !ok {
		return ""
	}
	return string(b)
}

// ClassName resolves a class id to its fully-qualified name via
// Classes and Symbols, or "" if either lookup fails.
func (r *Reader) ClassName(classID uint64) string {
	cr, ok := r.Classes.Get(classID)
	if !ok {
		return ""
	}
	return r.SymbolString(cr.NameSymbolID)
}

// MethodName resolves a method id to "ClassName.methodName" via
// Methods, Classes, and Symbols. It returns "" if the method id is
// absent, and just the method name if the class name cannot be
// resolved.
func (r *Reader) MethodName(methodID uint64) string {
	mr, ok := r.Methods.Get(methodID)
	if !ok {
		return ""
	}
	cls := r.ClassName(mr.ClassID)
	name := r.SymbolString(mr.NameSymbolID)
	if cls == "" {
		return name
	}
	return cls + "." + name
}
