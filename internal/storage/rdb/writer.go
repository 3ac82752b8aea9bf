package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Writer encodes an RDB file. Errors are sticky: after the first failure
// every method is a no-op and Close returns the error.
type Writer struct {
	w   *bufio.Writer
	crc uint64
	err error
	buf [9]byte
}

// NewWriter returns a Writer that has already emitted the file header.
func NewWriter(w io.Writer) *Writer {
	rw := &Writer{w: bufio.NewWriter(w)}
	rw.write(fmt.Appendf(nil, "%s%04d", magic, Version))
	return rw
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	w.crc = updateCRC(w.crc, p)
	_, w.err = w.w.Write(p)
}

func (w *Writer) writeByte(b byte) {
	w.buf[0] = b
	w.write(w.buf[:1])
}

func (w *Writer) writeLength(n uint64) {
	switch {
	case n < 1<<6:
		w.writeByte(byte(n))
	case n < 1<<14:
		w.buf[0] = byte(n>>8) | len14<<6
		w.buf[1] = byte(n)
		w.write(w.buf[:2])
	case n <= math.MaxUint32:
		w.buf[0] = len32
		binary.BigEndian.PutUint32(w.buf[1:], uint32(n))
		w.write(w.buf[:5])
	default:
		w.buf[0] = len64
		binary.BigEndian.PutUint64(w.buf[1:], n)
		w.write(w.buf[:9])
	}
}

// writeString writes s, integer encoded when it is the canonical decimal form
// of a 32-bit integer.
func (w *Writer) writeString(s []byte) {
	if len(s) > 0 && len(s) <= 11 {
		if v, err := strconv.ParseInt(string(s), 10, 32); err == nil && strconv.FormatInt(v, 10) == string(s) {
			w.writeInt(v)
			return
		}
	}
	w.writeLength(uint64(len(s)))
	w.write(s)
}

func (w *Writer) writeInt(v int64) {
	special := byte(lenSpecial << 6)
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.buf[0] = special | encInt8
		w.buf[1] = byte(int8(v))
		w.write(w.buf[:2])
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.buf[0] = special | encInt16
		binary.LittleEndian.PutUint16(w.buf[1:], uint16(int16(v)))
		w.write(w.buf[:3])
	default:
		w.buf[0] = special | encInt32
		binary.LittleEndian.PutUint32(w.buf[1:], uint32(int32(v)))
		w.write(w.buf[:5])
	}
}

// Aux writes an auxiliary metadata field.
func (w *Writer) Aux(key, value string) {
	w.writeByte(opAux)
	w.writeString([]byte(key))
	w.writeString([]byte(value))
}

// SelectDB starts database db, announcing its key and expire counts.
func (w *Writer) SelectDB(db, keys, expires int) {
	w.writeByte(opSelectDB)
	w.writeLength(uint64(db))
	w.writeByte(opResizeDB)
	w.writeLength(uint64(keys))
	w.writeLength(uint64(expires))
}

// Entry writes one string key.
func (w *Writer) Entry(e Entry) {
	if !e.ExpireAt.IsZero() {
		w.writeByte(opExpireMs)
		binary.LittleEndian.PutUint64(w.buf[:8], uint64(e.ExpireAt.UnixMilli()))
		w.write(w.buf[:8])
	}
	w.writeByte(typeString)
	w.writeString([]byte(e.Key))
	w.writeString(e.Value)
}

// Close writes the EOF opcode and checksum and flushes the output.
func (w *Writer) Close() error {
	w.writeByte(opEOF)
	if w.err != nil {
		return w.err
	}
	binary.LittleEndian.PutUint64(w.buf[:8], w.crc)
	if _, err := w.w.Write(w.buf[:8]); err != nil {
		return err
	}
	return w.w.Flush()
}

// Write encodes entries as a complete single-database RDB file.
func Write(w io.Writer, entries []Entry, ctime time.Time) error {
	rw := NewWriter(w)
	rw.Aux("redis-ver", "7.2.0")
	rw.Aux("redis-bits", strconv.Itoa(strconv.IntSize))
	rw.Aux("ctime", strconv.FormatInt(ctime.Unix(), 10))
	rw.Aux("aof-base", "0")

	expires := 0
	for _, e := range entries {
		if !e.ExpireAt.IsZero() {
			expires++
		}
	}
	rw.SelectDB(0, len(entries), expires)
	for _, e := range entries {
		rw.Entry(e)
	}
	return rw.Close()
}
