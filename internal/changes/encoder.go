package changes

import (
	"encoding/binary"
	"unicode/utf16"
)

// AppendRecord appends rec to dst as the last record of the batch, patching the
// next entry offset of the previous last record at prevStart. Pass prevStart < 0
// when dst holds no records yet. It returns the extended batch and the start of
// the appended record.
func AppendRecord(dst []byte, prevStart int, rec Record) ([]byte, int) {
	start := len(dst)
	if pad := start % alignment; pad != 0 {
		dst = append(dst, make([]byte, alignment-pad)...)
		start = len(dst)
	}
	if prevStart >= 0 {
		binary.LittleEndian.PutUint32(dst[prevStart:], uint32(start-prevStart))
	}

	units := utf16.Encode([]rune(rec.Name))
	dst = binary.LittleEndian.AppendUint32(dst, 0)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(rec.Action))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(units)*CharWidth))
	for _, unit := range units {
		dst = binary.LittleEndian.AppendUint16(dst, unit)
	}
	return dst, start
}

// EncodedSize is the number of bytes rec occupies, excluding alignment padding.
func EncodedSize(rec Record) int {
	return headerSize + len(utf16.Encode([]rune(rec.Name)))*CharWidth
}

// Encoder fills a fixed-size buffer with records, the way the OS fills the
// buffer handed to a directory change read.
type Encoder struct {
	buf       []byte
	limit     int
	prevStart int
}

func NewEncoder(buf []byte) *Encoder {
	return &Encoder{
		buf:       buf[:0],
		limit:     len(buf),
		prevStart: -1,
	}
}

// Put appends rec and reports whether it fit in the remaining space.
func (e *Encoder) Put(rec Record) bool {
	start := len(e.buf)
	if pad := start % alignment; pad != 0 {
		start += alignment - pad
	}
	if start+EncodedSize(rec) > e.limit {
		return false
	}
	e.buf, e.prevStart = AppendRecord(e.buf, e.prevStart, rec)
	return true
}

// Len is the number of valid bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) Empty() bool {
	return e.prevStart < 0
}
