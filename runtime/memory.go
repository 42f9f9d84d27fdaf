package runtime

import (
	"encoding/binary"

	"github.com/wippyai/bridgegen/errors"
)

// Memory is the address space both sides share. Offsets are byte addresses;
// multi-byte values are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory on behalf of one side.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// SliceMemory is a fixed-size Memory backed by a byte slice.
type SliceMemory struct {
	buf []byte
}

// NewSliceMemory returns a zeroed memory of size bytes.
func NewSliceMemory(size uint32) *SliceMemory {
	return &SliceMemory{buf: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *SliceMemory) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("memory access out of bounds: offset=%d, length=%d, size=%d", offset, length, len(m.buf)).Build()
	}
	return m.buf[offset:end], nil
}

// Read returns a view of length bytes at offset.
func (m *SliceMemory) Read(offset uint32, length uint32) ([]byte, error) {
	return m.span(offset, length)
}

// Write copies data to offset.
func (m *SliceMemory) Write(offset uint32, data []byte) error {
	b, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m *SliceMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *SliceMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *SliceMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *SliceMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *SliceMemory) WriteU8(offset uint32, value uint8) error {
	b, err := m.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (m *SliceMemory) WriteU16(offset uint32, value uint16) error {
	b, err := m.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (m *SliceMemory) WriteU32(offset uint32, value uint32) error {
	b, err := m.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (m *SliceMemory) WriteU64(offset uint32, value uint64) error {
	b, err := m.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
