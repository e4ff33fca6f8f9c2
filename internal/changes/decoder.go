package changes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"unicode/utf16"

	"hotreload/internal/domain"
)

var ErrCorruptBatch = errors.New("corrupt notification batch")

// Decoder walks the records of one batch. It is not restartable; create a new
// Decoder for every batch. The buffer must not be overwritten while decoding.
type Decoder struct {
	buf    []byte
	offset int
	done   bool
	record Record
	err    error
}

// NewDecoder decodes the first n bytes of buf. n is clamped to len(buf).
func NewDecoder(buf []byte, n int) *Decoder {
	if n < 0 {
		n = 0
	}
	if n > len(buf) {
		n = len(buf)
	}
	return &Decoder{
		buf:  buf[:n],
		done: n == 0,
	}
}

// Next advances to the next record. It returns false at the end of the batch
// or after a corrupt record, in which case Err reports why.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}

	start := d.offset
	remaining := len(d.buf) - start
	if remaining < headerSize {
		return d.fail(start, fmt.Sprintf("header needs %d bytes, %d remain", headerSize, remaining))
	}

	next := binary.LittleEndian.Uint32(d.buf[start:])
	action := Action(binary.LittleEndian.Uint32(d.buf[start+4:]))
	nameLength := binary.LittleEndian.Uint32(d.buf[start+8:])

	if !action.Valid() {
		return d.fail(start, fmt.Sprintf("unknown action %d", uint32(action)))
	}
	if nameLength%CharWidth != 0 {
		return d.fail(start, fmt.Sprintf("name length %d is not a multiple of %d", nameLength, CharWidth))
	}
	if uint64(nameLength) > uint64(remaining-headerSize) {
		return d.fail(start, fmt.Sprintf("name length %d exceeds %d remaining bytes", nameLength, remaining-headerSize))
	}
	recordEnd := uint64(headerSize) + uint64(nameLength)
	if next != 0 && (uint64(next) < recordEnd || uint64(next) >= uint64(remaining)) {
		return d.fail(start, fmt.Sprintf("next entry offset %d out of range", next))
	}

	nameStart := start + headerSize
	units := make([]uint16, nameLength/CharWidth)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(d.buf[nameStart+i*CharWidth:])
	}

	d.record = Record{
		Action: action,
		Name:   string(utf16.Decode(units)),
	}
	if next == 0 {
		d.done = true
	} else {
		d.offset = start + int(next)
	}
	return true
}

// Record returns the record produced by the last successful call to Next.
func (d *Decoder) Record() Record {
	return d.record
}

// Err returns the corruption error that stopped decoding, if any.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fail(offset int, reason string) bool {
	d.done = true
	d.record = Record{}
	d.err = &domain.OpError{
		Op:   "changes.decode",
		Kind: domain.KindCorruptBatch,
		Err:  fmt.Errorf("%w: record at offset %d: %s", ErrCorruptBatch, offset, reason),
	}
	return false
}

// Records yields the records of buf[:n] in order. A corrupt tail is yielded
// once as a zero Record with a non-nil error, after which iteration stops.
func Records(buf []byte, n int) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		decoder := NewDecoder(buf, n)
		for decoder.Next() {
			if !yield(decoder.Record(), nil) {
				return
			}
		}
		if err := decoder.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}
