package jfr

// magicJFR is the 4-byte chunk magic "FLR\0" (spec §4.2).
var magicJFR = [4]byte{'F', 'L', 'R', 0}

// chunkHeaderSize is the fixed size of a chunk header in bytes. Only
// the first 64 bytes carry fields this reader interprets (spec §4.2's
// table); the remaining 4 bytes are present on disk but their meaning
// isn't needed to locate or parse chunk contents (spec §9 open
// question (b)) — CHUNK_HEADER_SIZE still has to account for them so
// the embedded chunk-header copies in jdk.types.ChunkHeader pool
// entries are skipped correctly.
const chunkHeaderSize = 68

// chunkHeader is the decoded fixed-layout header every chunk begins
// with (spec §4.2).
//
// Grounded on perffile/format.go's fileHeader/fileSection pair: a
// fixed struct read field-by-field with explicit offsets, the same
// "read the structural header, then hand out section offsets"
// pattern, generalized here to a big-endian, fixed-width
// layout instead of perf.data's little-endian io.ReaderAt sections.
type chunkHeader struct {
	versionMajor, versionMinor uint16
	length                     int64
	poolOffset                 int64 // relative to chunk start
	metaOffset                 int64 // relative to chunk start
	startNanos                 uint64
	durationNanos              uint64
	startTicks                 uint64
	ticksPerSec                uint64
}

// readChunkHeader decodes the chunk header at c's current position,
// leaving the cursor positioned just past the fields it reads.
func readChunkHeader(c *Cursor) (chunkHeader, error) {
	var hdr chunkHeader

	var magic [4]byte
	for i := range magic {
		b, err := c.u8()
		if err != nil {
			return hdr, err
		}
		magic[i] = b
	}
	if magic != magicJFR {
		return hdr, ErrNotJfr
	}

	version, err := c.BigU32()
	if err != nil {
		return hdr, err
	}
	hdr.versionMajor = uint16(version >> 16)
	hdr.versionMinor = uint16(version)
	if hdr.versionMajor != 2 {
		return hdr, &UnsupportedVersionError{Major: hdr.versionMajor, Minor: hdr.versionMinor}
	}

	length, err := c.BigU64()
	if err != nil {
		return hdr, err
	}
	hdr.length = int64(length)

	poolRaw, err := c.BigU64()
	if err != nil {
		return hdr, err
	}
	hdr.poolOffset = int64(uint32(poolRaw))

	metaRaw, err := c.BigU64()
	if err != nil {
		return hdr, err
	}
	hdr.metaOffset = int64(uint32(metaRaw))

	if hdr.startNanos, err = c.BigU64(); err != nil {
		return hdr, err
	}
	if hdr.durationNanos, err = c.BigU64(); err != nil {
		return hdr, err
	}
	if hdr.startTicks, err = c.BigU64(); err != nil {
		return hdr, err
	}
	if hdr.ticksPerSec, err = c.BigU64(); err != nil {
		return hdr, err
	}

	return hdr, nil
}

// chunkInfo is the indexed form of one chunk: its header plus the
// absolute byte offsets of its metadata, constant-pool, and event
// body sections within the file image.
//
// bodyStart is not implied by the header: it is wherever constant-pool
// parsing lands once the pool's block-linked list is fully walked (see
// index in reader.go), since this reader lays metadata and the pool
// ahead of the event stream rather than assuming the event body
// starts immediately after the fixed header.
type chunkInfo struct {
	start         int64
	length        int64
	metaOffset    int64
	poolOffset    int64
	bodyStart     int64
	bodyEnd       int64
	startNanos    uint64
	durationNanos uint64
	startTicks    uint64
	ticksPerSec   uint64
}

func indexChunk(c *Cursor, start int64) (chunkInfo, error) {
	c.SetPos(start)
	hdr, err := readChunkHeader(c)
	if err != nil {
		return chunkInfo{}, err
	}
	return chunkInfo{
		start:         start,
		length:        hdr.length,
		metaOffset:    start + hdr.metaOffset,
		poolOffset:    start + hdr.poolOffset,
		bodyEnd:       start + hdr.length,
		startNanos:    hdr.startNanos,
		durationNanos: hdr.durationNanos,
		startTicks:    hdr.startTicks,
		ticksPerSec:   hdr.ticksPerSec,
	}, nil
}
