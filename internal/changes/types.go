// Package changes decodes and encodes batches of directory change records.
//
// A batch is a byte buffer holding back-to-back variable-length records:
//
//	uint32 next entry offset (from this record's start, 0 for the last record)
//	uint32 action
//	uint32 name length in bytes
//	name   UTF-16LE, not NUL-terminated
//
// All integers are little-endian and records start on 4-byte boundaries.
package changes

import "fmt"

// Action is the kind of change a record describes.
type Action uint32

const (
	Added      Action = 1
	Removed    Action = 2
	Modified   Action = 3
	RenamedOld Action = 4
	RenamedNew Action = 5
)

const (
	// CharWidth is the byte width of one name character.
	CharWidth  = 2
	headerSize = 12
	alignment  = 4

	// MaxNameLength is the longest file name, in UTF-16 code units, that
	// common file systems allow.
	MaxNameLength = 255
	// MaxRecordSize is the encoded size of a record with the longest name.
	MaxRecordSize = headerSize + MaxNameLength*CharWidth
)

func (a Action) Valid() bool {
	return a >= Added && a <= RenamedNew
}

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case RenamedOld:
		return "renamed_old"
	case RenamedNew:
		return "renamed_new"
	default:
		return fmt.Sprintf("action(%d)", uint32(a))
	}
}

// Record is one decoded change. Name is relative to the watched directory.
type Record struct {
	Action Action
	Name   string
}
