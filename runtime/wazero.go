package runtime

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/bridgegen/errors"
)

// WrapMemory adapts a wazero linear memory so the contract operations can
// run against the memory of an instantiated module.
func WrapMemory(mem api.Memory) Memory {
	if mem == nil {
		return nil
	}
	return &wazeroMemory{mem: mem}
}

type wazeroMemory struct {
	mem api.Memory
}

func outOfBounds(op string, offset uint32, length int) error {
	return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
		Detail("memory %s out of bounds: offset=%d, length=%d", op, offset, length).Build()
}

func (m *wazeroMemory) Size() uint32 {
	return m.mem.Size()
}

func (m *wazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, int(length))
	}
	return data, nil
}

func (m *wazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds("write", offset, len(data))
	}
	return nil
}

func (m *wazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 1)
	}
	return v, nil
}

func (m *wazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 2)
	}
	return v, nil
}

func (m *wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 4)
	}
	return v, nil
}

func (m *wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 8)
	}
	return v, nil
}

func (m *wazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return outOfBounds("write", offset, 1)
	}
	return nil
}

func (m *wazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return outOfBounds("write", offset, 2)
	}
	return nil
}

func (m *wazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return outOfBounds("write", offset, 4)
	}
	return nil
}

func (m *wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfBounds("write", offset, 8)
	}
	return nil
}
