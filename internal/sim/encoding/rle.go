package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Palette is any small unsigned id type that can be run-length encoded.
type Palette interface {
	~uint8 | ~uint16
}

// EncodeRLE encodes a sequence of palette ids as varint pairs.
// The pairs are (id, run_len) repeated.
func EncodeRLE[T Palette](ids []T) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return buf.Bytes()
}

// DecodeRLE expands varint pairs into out. The decoded length must match len(out) exactly.
func DecodeRLE[T Palette](raw []byte, out []T) error {
	limit := uint64(^T(0))
	pos := 0
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > limit {
			return fmt.Errorf("id too large: %d", b)
		}
		if run > uint64(len(out)-pos) {
			return fmt.Errorf("run overflows output: pos=%d run=%d len=%d", pos, run, len(out))
		}
		for k := 0; k < int(run); k++ {
			out[pos] = T(b)
			pos++
		}
	}
	if pos != len(out) {
		return fmt.Errorf("short rle payload: got %d want %d", pos, len(out))
	}
	return nil
}
