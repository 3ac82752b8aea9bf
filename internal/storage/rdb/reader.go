package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Dump is the decoded content of an RDB file.
type Dump struct {
	Version int
	Aux     map[string]string
	Entries []Entry

	// Expired counts keys dropped because their expiry had passed.
	Expired int
	// Skipped counts keys stored in databases other than 0.
	Skipped int
}

type reader struct {
	r   *bufio.Reader
	crc uint64
	buf []byte
}

// Read decodes an RDB file. Keys whose expiry is at or before now are
// dropped.
func Read(r io.Reader, now time.Time) (*Dump, error) {
	rd := &reader{r: bufio.NewReader(r)}

	header, err := rd.read(len(magic) + 4)
	if err != nil {
		return nil, fmt.Errorf("rdb: read header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], []byte(magic)) {
		return nil, ErrInvalidMagic
	}
	version, err := strconv.Atoi(string(header[len(magic):]))
	if err != nil {
		return nil, ErrInvalidMagic
	}
	if version < 1 || version > MaxVersion {
		return nil, &UnsupportedVersionError{Version: version}
	}

	dump := &Dump{Version: version, Aux: make(map[string]string)}
	db := uint64(0)
	var expireAt time.Time

	for {
		op, err := rd.readByte()
		if err != nil {
			return nil, rd.eof(err)
		}

		switch op {
		case opAux:
			key, err := rd.readString()
			if err != nil {
				return nil, rd.eof(err)
			}
			value, err := rd.readString()
			if err != nil {
				return nil, rd.eof(err)
			}
			dump.Aux[string(key)] = string(value)

		case opSelectDB:
			if db, err = rd.plainLength(); err != nil {
				return nil, rd.eof(err)
			}

		case opResizeDB:
			if _, err := rd.plainLength(); err != nil {
				return nil, rd.eof(err)
			}
			if _, err := rd.plainLength(); err != nil {
				return nil, rd.eof(err)
			}

		case opSlotInfo:
			for i := 0; i < 3; i++ {
				if _, err := rd.plainLength(); err != nil {
					return nil, rd.eof(err)
				}
			}

		case opExpireSec:
			b, err := rd.read(4)
			if err != nil {
				return nil, rd.eof(err)
			}
			expireAt = time.Unix(int64(binary.LittleEndian.Uint32(b)), 0)

		case opExpireMs:
			b, err := rd.read(8)
			if err != nil {
				return nil, rd.eof(err)
			}
			expireAt = time.UnixMilli(int64(binary.LittleEndian.Uint64(b)))

		case opIdle:
			if _, err := rd.plainLength(); err != nil {
				return nil, rd.eof(err)
			}

		case opFreq:
			if _, err := rd.readByte(); err != nil {
				return nil, rd.eof(err)
			}

		case opEOF:
			if err := rd.verifyChecksum(version); err != nil {
				return nil, err
			}
			return dump, nil

		case typeString:
			key, err := rd.readString()
			if err != nil {
				return nil, rd.eof(err)
			}
			value, err := rd.readString()
			if err != nil {
				return nil, rd.eof(err)
			}

			switch {
			case db != 0:
				dump.Skipped++
			case !expireAt.IsZero() && !now.Before(expireAt):
				dump.Expired++
			default:
				dump.Entries = append(dump.Entries, Entry{Key: string(key), Value: value, ExpireAt: expireAt})
			}
			expireAt = time.Time{}

		default:
			return nil, &UnsupportedTypeError{Type: op}
		}
	}
}

func (rd *reader) eof(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: unexpected end of file", ErrCorrupt)
	}
	return err
}

// read returns the next n bytes. The slice is reused by later calls.
func (rd *reader) read(n int) ([]byte, error) {
	if cap(rd.buf) < n {
		rd.buf = make([]byte, n)
	}
	b := rd.buf[:n]
	if _, err := io.ReadFull(rd.r, b); err != nil {
		return nil, err
	}
	rd.crc = updateCRC(rd.crc, b)
	return b, nil
}

func (rd *reader) readByte() (byte, error) {
	b, err := rd.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readLength decodes a length. When special is set, n holds the encoding type
// of a specially encoded string instead.
func (rd *reader) readLength() (n uint64, special bool, err error) {
	first, err := rd.readByte()
	if err != nil {
		return 0, false, err
	}

	switch first >> 6 {
	case len6:
		return uint64(first & 0x3F), false, nil
	case len14:
		next, err := rd.readByte()
		if err != nil {
			return 0, false, err
		}
		return uint64(first&0x3F)<<8 | uint64(next), false, nil
	case lenSpecial:
		return uint64(first & 0x3F), true, nil
	}

	switch first {
	case len32:
		b, err := rd.read(4)
		if err != nil {
			return 0, false, err
		}
		return uint64(binary.BigEndian.Uint32(b)), false, nil
	case len64:
		b, err := rd.read(8)
		if err != nil {
			return 0, false, err
		}
		return binary.BigEndian.Uint64(b), false, nil
	}
	return 0, false, fmt.Errorf("%w: bad length prefix 0x%02x", ErrCorrupt, first)
}

func (rd *reader) plainLength() (uint64, error) {
	n, special, err := rd.readLength()
	if err != nil {
		return 0, err
	}
	if special {
		return 0, fmt.Errorf("%w: unexpected encoded length", ErrCorrupt)
	}
	return n, nil
}

// readString decodes a string in any encoding into a fresh slice.
func (rd *reader) readString() ([]byte, error) {
	n, special, err := rd.readLength()
	if err != nil {
		return nil, err
	}

	if !special {
		if n > maxStringLen {
			return nil, fmt.Errorf("%w: string of %d bytes", ErrCorrupt, n)
		}
		b, err := rd.read(int(n))
		if err != nil {
			return nil, err
		}
		return bytes.Clone(b), nil
	}

	switch n {
	case encInt8:
		b, err := rd.read(1)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int8(b[0])), 10), nil
	case encInt16:
		b, err := rd.read(2)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int16(binary.LittleEndian.Uint16(b))), 10), nil
	case encInt32:
		b, err := rd.read(4)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int32(binary.LittleEndian.Uint32(b))), 10), nil
	case encLZF:
		clen, err := rd.plainLength()
		if err != nil {
			return nil, err
		}
		ulen, err := rd.plainLength()
		if err != nil {
			return nil, err
		}
		if clen > maxStringLen || ulen > maxStringLen {
			return nil, fmt.Errorf("%w: compressed string too large", ErrCorrupt)
		}
		b, err := rd.read(int(clen))
		if err != nil {
			return nil, err
		}
		return lzfDecompress(b, int(ulen))
	}
	return nil, fmt.Errorf("%w: unknown string encoding %d", ErrCorrupt, n)
}

func (rd *reader) verifyChecksum(version int) error {
	if version < 5 {
		return nil
	}
	expected := rd.crc
	var sum [8]byte
	if _, err := io.ReadFull(rd.r, sum[:]); err != nil {
		return rd.eof(err)
	}
	stored := binary.LittleEndian.Uint64(sum[:])
	if stored != 0 && stored != expected {
		return ErrChecksumMismatch
	}
	return nil
}
