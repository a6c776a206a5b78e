// Package serializer provides the length-prefixed primitive encoders the
// wire transport builds its request/reply frames out of.
package serializer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFieldBytes writes a 4-byte little-endian length followed by bytes.
func WriteFieldBytes(buf *bufio.Writer, bytes []byte) error {
	size := uint32(len(bytes))
	if err := binary.Write(buf, binary.LittleEndian, &size); err != nil {
		return err
	}
	n, err := buf.Write(bytes)
	if err != nil {
		return err
	}
	if uint32(n) != size {
		return fmt.Errorf("serializer: short write, expected %d bytes, wrote %d", size, n)
	}
	return nil
}

// ReadFieldBytes reads a length-prefixed byte field written by
// WriteFieldBytes. It uses io.ReadFull so a field spanning more than one
// underlying TCP read is still assembled correctly.
func ReadFieldBytes(buf *bufio.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	bytes := make([]byte, size)
	if _, err := io.ReadFull(buf, bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

// WriteString writes s as a length-prefixed field.
func WriteString(buf *bufio.Writer, s string) error {
	return WriteFieldBytes(buf, []byte(s))
}

// ReadString reads a length-prefixed string field.
func ReadString(buf *bufio.Reader) (string, error) {
	bytes, err := ReadFieldBytes(buf)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WriteUint64 writes v as 8 little-endian bytes.
func WriteUint64(buf *bufio.Writer, v uint64) error {
	return binary.Write(buf, binary.LittleEndian, &v)
}

// ReadUint64 reads 8 little-endian bytes into a uint64.
func ReadUint64(buf *bufio.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteInt64 writes v as 8 little-endian bytes.
func WriteInt64(buf *bufio.Writer, v int64) error {
	return binary.Write(buf, binary.LittleEndian, &v)
}

// ReadInt64 reads 8 little-endian bytes into an int64.
func ReadInt64(buf *bufio.Reader) (int64, error) {
	var v int64
	if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteUint8 writes a single byte.
func WriteUint8(buf *bufio.Writer, v uint8) error {
	return buf.WriteByte(v)
}

// ReadUint8 reads a single byte.
func ReadUint8(buf *bufio.Reader) (uint8, error) {
	return buf.ReadByte()
}

// WriteBool writes v as a single byte, 1 for true and 0 for false.
func WriteBool(buf *bufio.Writer, v bool) error {
	if v {
		return buf.WriteByte(1)
	}
	return buf.WriteByte(0)
}

// ReadBool reads a single byte written by WriteBool.
func ReadBool(buf *bufio.Reader) (bool, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
