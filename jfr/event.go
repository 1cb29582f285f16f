package jfr

import "sort"

// Kind selects which recognized event shape ReadEvent/ReadAllEvents
// should return. KindAny matches any of the three.
type Kind int

const (
	KindAny Kind = iota
	KindExecutionSample
	KindAllocationSample
	KindContendedLock
)

// EventCommon is the set of fields every recognized event carries
// (spec §3: "all carry time in writer ticks").
type EventCommon struct {
	Time uint64
	Tid  uint64
}

// Event is implemented by every recognized event record.
//
// Grounded on perffile/records.go's Record interface (RecordMmap,
// RecordComm, ... each expose a Common() RecordCommon method so
// callers can type-switch on the concrete kind while still sharing a
// uniform accessor for the fields every record has).
type Event interface {
	Common() EventCommon
}

// ExecutionSample is a CPU or native-method execution sample (spec
// §3).
type ExecutionSample struct {
	Time         uint64
	Tid          uint64
	StackTraceID uint64
	ThreadState  int32
}

func (e *ExecutionSample) Common() EventCommon { return EventCommon{e.Time, e.Tid} }

// AllocationSample is an object allocation sample. TLABSize is 0 when
// the source event was the "outside TLAB" variant, which carries no
// TLAB size on the wire (spec §3).
type AllocationSample struct {
	Time           uint64
	Tid            uint64
	StackTraceID   uint64
	ClassID        uint64
	AllocationSize uint64
	TLABSize       uint64
}

func (e *AllocationSample) Common() EventCommon { return EventCommon{e.Time, e.Tid} }

// ContendedLock is a contended java.lang.Object monitor enter or
// thread park (spec §3). The source event's timeout (park only) and
// address fields are read off the wire but not retained.
type ContendedLock struct {
	Time         uint64
	Tid          uint64
	StackTraceID uint64
	Duration     uint64
	ClassID      uint64
}

func (e *ContendedLock) Common() EventCommon { return EventCommon{e.Time, e.Tid} }

// kindOf maps each of the six JFR event type names this reader
// recognizes to the Kind used for filtering (spec §6 "Type-id
// resolution").
func kindOf(name string) Kind {
	switch name {
	case "jdk.ExecutionSample", "jdk.NativeMethodSample":
		return KindExecutionSample
	case "jdk.ObjectAllocationInNewTLAB", "jdk.ObjectAllocationOutsideTLAB":
		return KindAllocationSample
	case "jdk.JavaMonitorEnter", "jdk.ThreadPark":
		return KindContendedLock
	default:
		return KindAny
	}
}

// decodeEventBody decodes one event's body given its declared type
// name. The caller has already consumed the record's size and type
// fields; decodeEventBody consumes exactly the fields documented for
// that type in spec §3/§4.5, in the declared order, so the cursor
// ends up exactly at the next record regardless of which branch ran.
func decodeEventBody(c *Cursor, name string) (Event, error) {
	switch name {
	case "jdk.ExecutionSample", "jdk.NativeMethodSample":
		time, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		tid, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		stk, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		state, err := c.Varint()
		if err != nil {
			return nil, err
		}
		return &ExecutionSample{Time: time, Tid: tid, StackTraceID: stk, ThreadState: int32(state)}, nil

	case "jdk.ObjectAllocationInNewTLAB", "jdk.ObjectAllocationOutsideTLAB":
		time, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		tid, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		stk, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		classID, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		allocSize, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		var tlabSize uint64
		if name == "jdk.ObjectAllocationInNewTLAB" {
			tlabSize, err = c.Varlong()
			if err != nil {
				return nil, err
			}
		}
		return &AllocationSample{
			Time: time, Tid: tid, StackTraceID: stk, ClassID: classID,
			AllocationSize: allocSize, TLABSize: tlabSize,
		}, nil

	case "jdk.JavaMonitorEnter", "jdk.ThreadPark":
		time, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		tid, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		stk, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		duration, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		classID, err := c.Varlong()
		if err != nil {
			return nil, err
		}
		if name == "jdk.ThreadPark" {
			if _, err := c.Varlong(); err != nil { // timeout, discarded
				return nil, err
			}
		}
		if _, err := c.Varlong(); err != nil { // address, discarded
			return nil, err
		}
		return &ContendedLock{Time: time, Tid: tid, StackTraceID: stk, Duration: duration, ClassID: classID}, nil
	}
	return nil, invalidFormatf("decodeEventBody: unrecognized event type %q", name)
}

// ReadEvent returns the next event of kind filter (KindAny for any
// recognized kind), or nil if the stream is exhausted.
func (r *Reader) ReadEvent(filter Kind) (Event, error) {
	for {
		if r.cursor.AtLimit() {
			if !r.advanceChunk() {
				return nil, nil
			}
			continue
		}

		start := r.cursor.Pos()
		size, err := r.cursor.Varint()
		if err != nil {
			return nil, err
		}
		typ, err := r.cursor.Varint()
		if err != nil {
			return nil, err
		}

		name, known := r.eventNames[int32(typ)]
		if known && (filter == KindAny || kindOf(name) == filter) {
			return decodeEventBody(r.cursor, name)
		}
		r.cursor.SetPos(start + int64(size))
	}
}

// advanceChunk moves the cursor window to the next indexed chunk's
// event body, widening then re-narrowing the limit the way spec §4.5
// describes (the new position may exceed the still-narrow limit from
// the chunk just finished).
func (r *Reader) advanceChunk() bool {
	idx := r.curChunk + 1
	if idx >= len(r.chunks) {
		return false
	}
	ci := r.chunks[idx]
	r.cursor.SetLimit(ci.bodyStart)
	r.cursor.SetPos(ci.bodyStart)
	r.cursor.SetLimit(ci.bodyEnd)
	r.curChunk = idx
	return true
}

// ReadAllEvents drains the stream and returns every event of kind
// filter, sorted by time ascending (spec §4.5, §9 open question (c):
// wire order is not assumed sorted).
//
// Grounded on perffile/reader.go's Records(RecordsTimeOrder), which
// likewise makes no assumption about on-disk ordering and explicitly
// sort.Stable-sorts a second pass by timestamp.
func (r *Reader) ReadAllEvents(filter Kind) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.ReadEvent(filter)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			break
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Common().Time < events[j].Common().Time
	})
	return events, nil
}

// ReadExecutionSample reads the next ExecutionSample, skipping any
// other recognized event kinds.
func (r *Reader) ReadExecutionSample() (*ExecutionSample, error) {
	ev, err := r.ReadEvent(KindExecutionSample)
	if err != nil || ev == nil {
		return nil, err
	}
	return ev.(*ExecutionSample), nil
}

// ReadAllocationSample reads the next AllocationSample, skipping any
// other recognized event kinds.
func (r *Reader) ReadAllocationSample() (*AllocationSample, error) {
	ev, err := r.ReadEvent(KindAllocationSample)
	if err != nil || ev == nil {
		return nil, err
	}
	return ev.(*AllocationSample), nil
}

// ReadContendedLock reads the next ContendedLock, skipping any other
// recognized event kinds.
func (r *Reader) ReadContendedLock() (*ContendedLock, error) {
	ev, err := r.ReadEvent(KindContendedLock)
	if err != nil || ev == nil {
		return nil, err
	}
	return ev.(*ContendedLock), nil
}

// ReadAllExecutionSamples drains the stream and returns every
// ExecutionSample, sorted by time ascending.
func (r *Reader) ReadAllExecutionSamples() ([]*ExecutionSample, error) {
	events, err := r.ReadAllEvents(KindExecutionSample)
	if err != nil {
		return nil, err
	}
	out := make([]*ExecutionSample, len(events))
	for i, ev := range events {
		out[i] = ev.(*ExecutionSample)
	}
	return out, nil
}

// ReadAllAllocationSamples drains the stream and returns every
// AllocationSample, sorted by time ascending.
func (r *Reader) ReadAllAllocationSamples() ([]*AllocationSample, error) {
	events, err := r.ReadAllEvents(KindAllocationSample)
	if err != nil {
		return nil, err
	}
	out := make([]*AllocationSample, len(events))
	for i, ev := range events {
		out[i] = ev.(*AllocationSample)
	}
	return out, nil
}

// ReadAllContendedLocks drains the stream and returns every
// ContendedLock, sorted by time ascending.
func (r *Reader) ReadAllContendedLocks() ([]*ContendedLock, error) {
	events, err := r.ReadAllEvents(KindContendedLock)
	if err != nil {
		return nil, err
	}
	out := make([]*ContendedLock, len(events))
	for i, ev := range events {
		out[i] = ev.(*ContendedLock)
	}
	return out, nil
}
