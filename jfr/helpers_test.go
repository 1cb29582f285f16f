package jfr

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// --- LEB128 encoders mirroring the decode rules in cursor.go, used
// to synthesize fixtures byte-for-byte. ---

func putVarint(b *bytes.Buffer, v uint32) {
	for {
		x := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			b.WriteByte(x)
			return
		}
		b.WriteByte(x | 0x80)
	}
}

func putVarlong(b *bytes.Buffer, v uint64) {
	rem := v
	for i := 0; i < 8; i++ {
		x := byte(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			b.WriteByte(x)
			return
		}
		b.WriteByte(x | 0x80)
	}
	b.WriteByte(byte(rem))
}

func putStringTag3(b *bytes.Buffer, s string) {
	b.WriteByte(3)
	putVarint(b, uint32(len(s)))
	b.WriteString(s)
}

func putStringNull(b *bytes.Buffer) {
	b.WriteByte(0)
}

// --- metadata element-tree fixture builder ---

type elemSpec struct {
	name     string
	attrs    map[string]string
	children []*elemSpec
}

type fieldSpec struct {
	name         string
	typeID       int32
	constantPool bool
}

func fieldElem(f fieldSpec) *elemSpec {
	attrs := map[string]string{"name": f.name, "type": itoa(int(f.typeID))}
	if f.constantPool {
		attrs["constantPool"] = "true"
	}
	return &elemSpec{name: "field", attrs: attrs}
}

func classElem(id int32, name string, superType string, fields ...fieldSpec) *elemSpec {
	attrs := map[string]string{"id": itoa(int(id)), "name": name}
	if superType != "" {
		attrs["superType"] = superType
	}
	children := make([]*elemSpec, len(fields))
	for i, f := range fields {
		children[i] = fieldElem(f)
	}
	return &elemSpec{name: "class", attrs: attrs, children: children}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildMetadataSection returns the bytes of a full metadata section
// (discarded preamble, string pool, element tree) whose root has the
// given classes as children.
func buildMetadataSection(classes ...*elemSpec) []byte {
	root := &elemSpec{name: "metadata", attrs: map[string]string{}, children: classes}

	pool := []string{}
	idx := map[string]int{}
	var getIdx func(string) uint32
	getIdx = func(s string) uint32 {
		if i, ok := idx[s]; ok {
			return uint32(i)
		}
		idx[s] = len(pool)
		pool = append(pool, s)
		return uint32(len(pool) - 1)
	}

	var walk func(e *elemSpec)
	walk = func(e *elemSpec) {
		getIdx(e.name)
		for _, k := range sortedKeys(e.attrs) {
			getIdx(k)
			getIdx(e.attrs[k])
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(root)

	var writeElement func(b *bytes.Buffer, e *elemSpec)
	writeElement = func(b *bytes.Buffer, e *elemSpec) {
		putVarint(b, getIdx(e.name))
		putVarint(b, uint32(len(e.attrs)))
		for _, k := range sortedKeys(e.attrs) {
			putVarint(b, getIdx(k))
			putVarint(b, getIdx(e.attrs[k]))
		}
		putVarint(b, uint32(len(e.children)))
		for _, c := range e.children {
			writeElement(b, c)
		}
	}

	var out bytes.Buffer
	for i := 0; i < 5; i++ {
		putVarlong(&out, 0)
	}
	putVarint(&out, uint32(len(pool)))
	for _, s := range pool {
		putStringTag3(&out, s)
	}
	writeElement(&out, root)
	return out.Bytes()
}

// --- constant pool fixture builder ---

type poolTypeEntry struct {
	id    int32
	write func(b *bytes.Buffer)
}

// buildPoolSection returns the bytes of a full constant-pool section
// made of the given blocks, each a set of (type id, body) entries.
// Blocks are chained via the delta field; every non-last block's
// encoded length must stay under 128 bytes so its 1-byte varlong delta
// assumption holds (only a non-last block's delta is ever nonzero; a
// last block's delta is always the 1-byte varlong(0) regardless of
// its own size).
func buildPoolSection(blocks [][]poolTypeEntry) []byte {
	bodies := make([][]byte, len(blocks))
	for i, block := range blocks {
		var b bytes.Buffer
		putVarint(&b, uint32(len(block)))
		for _, pt := range block {
			putVarint(&b, uint32(pt.id))
			pt.write(&b)
		}
		bodies[i] = b.Bytes()
	}

	const fixedPrefixLen = 4 + 1 + 1 // four discarded varlong(0) + 1-byte delta + one discarded varint(0)
	lens := make([]int, len(blocks))
	for i := range blocks {
		lens[i] = fixedPrefixLen + len(bodies[i])
		if i+1 < len(blocks) && lens[i] >= 128 {
			panic("pool fixture block too large for 1-byte delta assumption")
		}
	}

	var out bytes.Buffer
	for i := range blocks {
		for k := 0; k < 4; k++ {
			putVarlong(&out, 0)
		}
		delta := 0
		if i+1 < len(blocks) {
			delta = lens[i]
		}
		putVarlong(&out, uint64(delta))
		putVarint(&out, 0)
		out.Write(bodies[i])
	}
	return out.Bytes()
}

func chunkHeaderPoolEntry(id int32) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		b.Write(make([]byte, chunkHeaderSize+3))
	}}
}

type threadRec struct {
	id           uint64
	osName       string
	osThreadID   uint32
	javaName     string
	hasJavaName  bool
	javaThreadID uint64
	group        uint64
}

func threadPoolEntry(id int32, hasGroup bool, threads []threadRec) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(threads)))
		for _, t := range threads {
			putVarlong(b, t.id)
			putStringTag3(b, t.osName)
			putVarint(b, t.osThreadID)
			if t.hasJavaName {
				putStringTag3(b, t.javaName)
			} else {
				putStringNull(b)
			}
			putVarlong(b, t.javaThreadID)
			if hasGroup {
				putVarlong(b, t.group)
			}
		}
	}}
}

type classRec struct {
	id     uint64
	loader uint64
	name   uint64
	pkg    uint64
	mods   uint32
	hidden uint32
}

func classPoolEntry(id int32, hasHidden bool, classes []classRec) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(classes)))
		for _, c := range classes {
			putVarlong(b, c.id)
			putVarlong(b, c.loader)
			putVarlong(b, c.name)
			putVarlong(b, c.pkg)
			putVarint(b, c.mods)
			if hasHidden {
				putVarint(b, c.hidden)
			}
		}
	}}
}

type symbolRec struct {
	id  uint64
	tag byte // 3 for a well-formed entry; any other value forces the InvalidFormat path
	s   string
}

func symbolPoolEntry(id int32, symbols []symbolRec) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(symbols)))
		for _, s := range symbols {
			putVarlong(b, s.id)
			if s.tag == 3 {
				putStringTag3(b, s.s)
			} else {
				b.WriteByte(s.tag)
				putVarint(b, uint32(len(s.s)))
				b.WriteString(s.s)
			}
		}
	}}
}

type methodRec struct {
	id, cls, name, sig uint64
	mods, hidden       uint32
}

func methodPoolEntry(id int32, methods []methodRec) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(methods)))
		for _, m := range methods {
			putVarlong(b, m.id)
			putVarlong(b, m.cls)
			putVarlong(b, m.name)
			putVarlong(b, m.sig)
			putVarint(b, m.mods)
			putVarint(b, m.hidden)
		}
	}}
}

type frameRec struct {
	method    uint64
	line, bci uint32
	frameType byte
}

type stackTraceRec struct {
	id         uint64
	truncated  uint32
	frames     []frameRec
}

func stackTracePoolEntry(id int32, traces []stackTraceRec) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(traces)))
		for _, t := range traces {
			putVarlong(b, t.id)
			putVarint(b, t.truncated)
			putVarint(b, uint32(len(t.frames)))
			for _, f := range t.frames {
				putVarlong(b, f.method)
				putVarint(b, f.line)
				putVarint(b, f.bci)
				b.WriteByte(f.frameType)
			}
		}
	}}
}

func labelMapPoolEntry(id int32, pairs map[int32]string) poolTypeEntry {
	return poolTypeEntry{id: id, write: func(b *bytes.Buffer) {
		putVarint(b, uint32(len(pairs)))
		keys := make([]int, 0, len(pairs))
		for k := range pairs {
			keys = append(keys, int(k))
		}
		sort.Ints(keys)
		for _, k := range keys {
			putVarint(b, uint32(k))
			putStringTag3(b, pairs[int32(k)])
		}
	}}
}

// --- event body fixture builder ---

func eventRecord(typeID int32, body []byte) []byte {
	var inner bytes.Buffer
	putVarint(&inner, uint32(typeID))
	inner.Write(body)

	size := computeRecordSize(inner.Bytes())
	var out bytes.Buffer
	putVarint(&out, size)
	out.Write(inner.Bytes())
	return out.Bytes()
}

func varintLen(v uint32) int {
	n := 0
	for {
		n++
		v >>= 7
		if v == 0 {
			return n
		}
	}
}

// computeRecordSize finds the size field value s such that
// varintLen(s) + len(inner) == s, matching how JFR records declare
// their own total length including the size field itself.
func computeRecordSize(inner []byte) uint32 {
	s := uint32(len(inner)) + 1
	for {
		if varintLen(s)+len(inner) == int(s) {
			return s
		}
		s++
	}
}

func execSampleBody(time, tid, stk uint64, state uint32) []byte {
	var b bytes.Buffer
	putVarlong(&b, time)
	putVarlong(&b, tid)
	putVarlong(&b, stk)
	putVarint(&b, state)
	return b.Bytes()
}

func allocInTLABBody(time, tid, stk, classID, allocSize, tlabSize uint64) []byte {
	var b bytes.Buffer
	putVarlong(&b, time)
	putVarlong(&b, tid)
	putVarlong(&b, stk)
	putVarlong(&b, classID)
	putVarlong(&b, allocSize)
	putVarlong(&b, tlabSize)
	return b.Bytes()
}

func allocOutsideTLABBody(time, tid, stk, classID, allocSize uint64) []byte {
	var b bytes.Buffer
	putVarlong(&b, time)
	putVarlong(&b, tid)
	putVarlong(&b, stk)
	putVarlong(&b, classID)
	putVarlong(&b, allocSize)
	return b.Bytes()
}

func monitorEnterBody(time, tid, stk, duration, classID, address uint64) []byte {
	var b bytes.Buffer
	putVarlong(&b, time)
	putVarlong(&b, tid)
	putVarlong(&b, stk)
	putVarlong(&b, duration)
	putVarlong(&b, classID)
	putVarlong(&b, address)
	return b.Bytes()
}

func threadParkBody(time, tid, stk, duration, classID uint64, timeout int64, address uint64) []byte {
	var b bytes.Buffer
	putVarlong(&b, time)
	putVarlong(&b, tid)
	putVarlong(&b, stk)
	putVarlong(&b, duration)
	putVarlong(&b, classID)
	putVarlong(&b, uint64(timeout))
	putVarlong(&b, address)
	return b.Bytes()
}

// --- chunk + file fixture builder ---

type chunkFixture struct {
	classes        []*elemSpec
	poolBlocks     [][]poolTypeEntry
	events         [][]byte // pre-built event records (size+type+body)
	startNanos     uint64
	durationNanos  uint64
	startTicks     uint64
	ticksPerSec    uint64
}

func buildChunk(cf chunkFixture) []byte {
	meta := buildMetadataSection(cf.classes...)
	pool := buildPoolSection(cf.poolBlocks)

	var body bytes.Buffer
	for _, ev := range cf.events {
		body.Write(ev)
	}

	metaOffset := int64(chunkHeaderSize)
	poolOffset := metaOffset + int64(len(meta))
	bodyStart := poolOffset + int64(len(pool))
	length := bodyStart + int64(body.Len())

	var hdr bytes.Buffer
	hdr.Write(magicJFR[:])
	writeBigU32(&hdr, (2<<16)|0) // version 2.0
	writeBigU64(&hdr, uint64(length))
	writeBigU64(&hdr, uint64(poolOffset))
	writeBigU64(&hdr, uint64(metaOffset))
	writeBigU64(&hdr, cf.startNanos)
	writeBigU64(&hdr, cf.durationNanos)
	writeBigU64(&hdr, cf.startTicks)
	writeBigU64(&hdr, cf.ticksPerSec)
	hdr.Write(make([]byte, chunkHeaderSize-hdr.Len()))

	var out bytes.Buffer
	out.Write(hdr.Bytes())
	out.Write(meta)
	out.Write(pool)
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeBigU32(b *bytes.Buffer, v uint32) {
	b.WriteByte(byte(v >> 24))
	b.WriteByte(byte(v >> 16))
	b.WriteByte(byte(v >> 8))
	b.WriteByte(byte(v))
}

func writeBigU64(b *bytes.Buffer, v uint64) {
	for i := 7; i >= 0; i-- {
		b.WriteByte(byte(v >> (8 * uint(i))))
	}
}

// openFixture writes data to a temp file and opens it as a Reader,
// registering cleanup.
func openFixture(t *testing.T, data []byte) *Reader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.jfr")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}
