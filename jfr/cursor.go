package jfr

import (
	"encoding/binary"
	"unicode/utf16"
)

// Cursor is a positioned view over a fixed byte image — the whole
// mapped JFR file. Reads advance pos; Bytes and symbol reads slice
// directly into the backing array, while String returns a newly
// allocated Go string.
//
// limit narrows the cursor to the current chunk's event body so the
// event stream reader can tell when one chunk is exhausted and it's
// time to move to the next. Structural reads (chunk headers,
// metadata, constant pools) ignore limit and are bounded only by the
// size of buf itself.
//
// Grounded on perffile/bufdecoder.go's bufDecoder (a slice-backed
// cursor that self-advances on every read) and perffile/buf.go's
// bufferedSectionReader, whose offset-tracking shape motivates
// keeping (pos, limit) explicit rather than reslicing buf on every
// chunk transition.
type Cursor struct {
	buf   []byte
	pos   int64
	limit int64
}

func newCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf, pos: 0, limit: int64(len(buf))}
}

func (c *Cursor) Pos() int64      { return c.pos }
func (c *Cursor) SetPos(p int64)  { c.pos = p }
func (c *Cursor) Limit() int64    { return c.limit }
func (c *Cursor) SetLimit(l int64) { c.limit = l }

// AtLimit reports whether the cursor has reached (or passed) its
// chunk-local soft limit.
func (c *Cursor) AtLimit() bool { return c.pos >= c.limit }

func (c *Cursor) require(n int64) error {
	if c.pos < 0 || c.pos+n > int64(len(c.buf)) {
		return ErrUnexpectedEOF
	}
	return nil
}

func (c *Cursor) u8() (byte, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// BigU32 reads a 4-byte big-endian unsigned integer, used for the
// fixed chunk header fields (spec §4.2).
func (c *Cursor) BigU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// BigU64 reads an 8-byte big-endian unsigned integer.
func (c *Cursor) BigU64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// Varint decodes a little-endian LEB128 value into a 32-bit result.
// Overflow past 32 bits silently truncates (spec §4.1, §9 open
// question (a)): callers only use this for sizes, type ids, counts,
// and other small integers.
func (c *Cursor) Varint() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := c.u8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// Varlong decodes a little-endian LEB128 value into a 64-bit result,
// with the format's 9-byte terminator: if the first 8 bytes all carry
// the continuation bit, a final 9th byte contributes a full 8 bits,
// unshifted, into bits 56-63 (spec §4.1, §8 scenario S6).
func (c *Cursor) Varlong() (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 8; i++ {
		b, err := c.u8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	b, err := c.u8()
	if err != nil {
		return 0, err
	}
	result |= uint64(b) << 56
	return result, nil
}

// Bytes reads a varint length n followed by n raw bytes, returned as
// a slice directly into the backing image (no copy — valid for the
// lifetime of the Reader's mapping).
func (c *Cursor) Bytes() ([]byte, error) {
	n, err := c.Varint()
	if err != nil {
		return nil, err
	}
	if err := c.require(int64(n)); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+int64(n)]
	c.pos += int64(n)
	return b, nil
}

// String decodes the 5-variant JFR string encoding (spec §4.1). ok is
// false only for the null (tag 0) encoding; all other tags produce
// ok == true, including the empty string (tag 1).
func (c *Cursor) String() (s string, ok bool, err error) {
	tag, err := c.u8()
	if err != nil {
		return "", false, err
	}
	switch tag {
	case 0:
		return "", false, nil
	case 1:
		return "", true, nil
	case 3:
		b, err := c.Bytes()
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	case 4:
		n, err := c.Varint()
		if err != nil {
			return "", false, err
		}
		units := make([]uint16, n)
		for i := range units {
			v, err := c.Varint()
			if err != nil {
				return "", false, err
			}
			units[i] = uint16(v)
		}
		return string(utf16.Decode(units)), true, nil
	case 5:
		b, err := c.Bytes()
		if err != nil {
			return "", false, err
		}
		runes := make([]rune, len(b))
		for i, x := range b {
			runes[i] = rune(x) // ISO-8859-1: byte value is the code point
		}
		return string(runes), true, nil
	default:
		return "", false, invalidFormatf("invalid string tag %d", tag)
	}
}

// symbolBytes reads a string that must be encoded with tag 3
// (length-prefixed UTF-8); any other tag is a format error (spec
// §4.4 jdk.types.Symbol, §8 property 7). Returned bytes slice directly
// into the backing image.
func (c *Cursor) symbolBytes() ([]byte, error) {
	tag, err := c.u8()
	if err != nil {
		return nil, err
	}
	if tag != 3 {
		return nil, invalidFormat("Invalid symbol encoding")
	}
	return c.Bytes()
}
