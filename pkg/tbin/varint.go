package tbin

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ZigZagEncode int64 => uint64.
func ZigZagEncode(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

// ZigZagDecode uint64 => int64.
func ZigZagDecode(z uint64) int64 {
	return int64((z >> 1) ^ uint64((int64(z&1)<<63)>>63))
}

func WriteVarint(w io.Writer, value uint64) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, value)
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("failed to write varint: %w", err)
	}
	return nil
}

func ReadVarint(r io.Reader) (uint64, error) {
	byteReader, ok := r.(io.ByteReader)
	if !ok {
		return 0, fmt.Errorf("reader does not implement io.ByteReader")
	}

	value, err := binary.ReadUvarint(byteReader)
	if err != nil {
		return 0, fmt.Errorf("failed to read varint: %w", err)
	}
	return value, nil
}

func writeSigned(w io.Writer, v int64) error {
	return WriteVarint(w, ZigZagEncode(v))
}

func readSigned(r io.Reader) (int64, error) {
	z, err := ReadVarint(r)
	if err != nil {
		return 0, err
	}
	return ZigZagDecode(z), nil
}

// writeText writes a uvarint byte length followed by the bytes.
func writeText(w io.Writer, s string) error {
	if err := WriteVarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readText(r io.Reader, limit uint64) (string, error) {
	n, err := ReadVarint(r)
	if err != nil {
		return "", err
	}
	if n > limit {
		return "", fmt.Errorf("string length %d exceeds %d", n, limit)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read string of length %d: %w", n, err)
	}
	return string(buf), nil
}

func verifyMagicValue(r io.ReaderAt, expectedMagic string, offset int64) error {
	magicBuffer := make([]byte, len(expectedMagic))
	if _, err := r.ReadAt(magicBuffer, offset); err != nil {
		return fmt.Errorf("file is too short. Error reading %s: %w", expectedMagic, err)
	}
	if string(magicBuffer) != expectedMagic {
		return fmt.Errorf("invalid magic: expected '%s', got '%s'", expectedMagic, string(magicBuffer))
	}
	return nil
}
