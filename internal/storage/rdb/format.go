package rdb

import (
	"errors"
	"fmt"
	"hash/crc64"
	"time"
)

const (
	magic = "REDIS"

	// Version is the RDB version written by this package.
	Version = 11
	// MaxVersion is the newest version Read accepts.
	MaxVersion = 12

	// maxStringLen bounds the allocation for a single encoded string.
	maxStringLen = 512 << 20
)

// Opcodes.
const (
	opSlotInfo  = 0xF4
	opIdle      = 0xF8
	opFreq      = 0xF9
	opAux       = 0xFA
	opResizeDB  = 0xFB
	opExpireMs  = 0xFC
	opExpireSec = 0xFD
	opSelectDB  = 0xFE
	opEOF       = 0xFF
)

// Value types.
const (
	typeString = 0
)

// Length and string encodings.
const (
	len6       = 0
	len14      = 1
	len32      = 0x80
	len64      = 0x81
	lenSpecial = 3

	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

// Errors.
var (
	ErrInvalidMagic     = errors.New("rdb: invalid magic string")
	ErrChecksumMismatch = errors.New("rdb: checksum mismatch")
	ErrCorrupt          = errors.New("rdb: corrupt file")
)

// UnsupportedVersionError reports a header version Read does not accept.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("rdb: unsupported version %d", e.Version)
}

// UnsupportedTypeError reports a value type other than string.
type UnsupportedTypeError struct {
	Type byte
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("rdb: unsupported value type %d", e.Type)
}

// Entry is one key with its value and optional expiration.
type Entry struct {
	Key      string
	Value    []byte
	ExpireAt time.Time // zero means no expiry
}

// crcTable is CRC-64/Jones in reflected form.
var crcTable = crc64.MakeTable(0x95AC9329AC4BC9B5)

// updateCRC extends a Redis CRC-64, which uses no initial or final
// inversion. crc64.Update inverts on both ends, so undo that here.
func updateCRC(crc uint64, p []byte) uint64 {
	return ^crc64.Update(^crc, crcTable, p)
}
