package engine

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

// fakeMemory backs api.Memory with a plain byte slice. Methods the
// tests do not exercise fall through to the embedded nil interface.
type fakeMemory struct {
	api.Memory
	data []byte
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{data: make([]byte, size)}
}

func (f *fakeMemory) Size() uint32 {
	return uint32(len(f.data))
}

func (f *fakeMemory) Read(offset, count uint32) ([]byte, bool) {
	if uint64(offset)+uint64(count) > uint64(len(f.data)) {
		return nil, false
	}
	return f.data[offset : offset+count], true
}

func (f *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(f.data)) {
		return false
	}
	copy(f.data[offset:], v)
	return true
}

func (f *fakeMemory) ReadByte(offset uint32) (byte, bool) {
	if offset >= uint32(len(f.data)) {
		return 0, false
	}
	return f.data[offset], true
}

func (f *fakeMemory) WriteByte(offset uint32, v byte) bool {
	if offset >= uint32(len(f.data)) {
		return false
	}
	f.data[offset] = v
	return true
}

func (f *fakeMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := f.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (f *fakeMemory) WriteUint32Le(offset uint32, v uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return f.Write(offset, b[:])
}

func (f *fakeMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	b, ok := f.Read(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (f *fakeMemory) WriteUint64Le(offset uint32, v uint64) bool {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return f.Write(offset, b[:])
}

func TestReadCString(t *testing.T) {
	tests := []struct {
		name string
		want string
		at   uint32
	}{
		{name: "short", want: "hello", at: 10},
		{name: "empty", want: "", at: 10},
		{name: "crosses chunk boundary", want: strings.Repeat("x", 100), at: 10},
		{name: "exactly one chunk", want: strings.Repeat("y", 64), at: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newFakeMemory(256)
			copy(mem.data[tt.at:], tt.want)
			if got := readCString(mem, tt.at); got != tt.want {
				t.Errorf("readCString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadCString_ZeroPointer(t *testing.T) {
	mem := newFakeMemory(16)
	if got := readCString(mem, 0); got != "" {
		t.Errorf("readCString(0) = %q, want empty", got)
	}
}

func TestReadCString_NearEndOfMemory(t *testing.T) {
	// String runs up to the last byte with no terminator in range;
	// the scan must stop at the boundary instead of failing.
	mem := newFakeMemory(32)
	copy(mem.data[29:], "end")
	if got := readCString(mem, 29); got != "end" {
		t.Errorf("readCString = %q, want %q", got, "end")
	}
}

func TestGuestMemory_ReadWrite(t *testing.T) {
	g := guestMemory{mem: newFakeMemory(64)}

	if err := g.Write(8, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	b, err := g.Read(8, 3)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("Read = %v, want [1 2 3]", b)
	}

	if err := g.WriteU32(16, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	v, err := g.ReadU32(16)
	if err != nil {
		t.Fatalf("ReadU32 failed: %v", err)
	}
	if v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x, want 0xdeadbeef", v)
	}
}

func TestGuestMemory_OutOfRange(t *testing.T) {
	g := guestMemory{mem: newFakeMemory(16)}

	if _, err := g.Read(12, 8); err == nil {
		t.Error("Read past end should fail")
	}
	if err := g.Write(15, []byte{1, 2}); err == nil {
		t.Error("Write past end should fail")
	}
	if _, err := g.ReadU64(12); err == nil {
		t.Error("ReadU64 past end should fail")
	}
}
