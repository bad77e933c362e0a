// Package wire frames cache snapshots for provider storage. Every snapshot
// carries the key's tag and the write sequence that produced it; readers
// validate both against the entry index, so bytes left behind by an older
// write (or written by foreign code under our keyspace) are detected and
// dropped instead of served.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("catalogcache: corrupt snapshot")
	magic4     = [...]byte{'C', 'T', 'L', 'G'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Snapshot layout: magic(4) | ver(1) | tag(1) | seq(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(tag byte, seq uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(tag)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], seq)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (tag byte, seq uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return 0, 0, nil, ErrCorrupt
	}

	tag = b[5]
	off := 6

	seq = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // reject truncated and trailing bytes
		return 0, 0, nil, ErrCorrupt
	}

	return tag, seq, b[off : off+vlen], nil
}
