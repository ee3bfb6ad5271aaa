package engine

import (
	"github.com/tetratelabs/wazero/api"

	sqliteruntime "github.com/wippyai/sqlite-runtime"
	"github.com/wippyai/sqlite-runtime/errors"
)

// guestMemory adapts wazero linear memory to the root Memory interface.
type guestMemory struct {
	mem api.Memory
}

var _ sqliteruntime.Memory = guestMemory{}
var _ sqliteruntime.MemorySizer = guestMemory{}

func (g guestMemory) Read(offset, length uint32) ([]byte, error) {
	b, ok := g.mem.Read(offset, length)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "memory read out of range")
	}
	return b, nil
}

func (g guestMemory) Write(offset uint32, data []byte) error {
	if !g.mem.Write(offset, data) {
		return errors.InvalidInput(errors.PhaseRuntime, "memory write out of range")
	}
	return nil
}

func (g guestMemory) ReadU8(offset uint32) (uint8, error) {
	b, ok := g.mem.ReadByte(offset)
	if !ok {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "memory read out of range")
	}
	return b, nil
}

func (g guestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := g.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "memory read out of range")
	}
	return v, nil
}

func (g guestMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := g.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "memory read out of range")
	}
	return v, nil
}

func (g guestMemory) WriteU8(offset uint32, value uint8) error {
	if !g.mem.WriteByte(offset, value) {
		return errors.InvalidInput(errors.PhaseRuntime, "memory write out of range")
	}
	return nil
}

func (g guestMemory) WriteU32(offset uint32, value uint32) error {
	if !g.mem.WriteUint32Le(offset, value) {
		return errors.InvalidInput(errors.PhaseRuntime, "memory write out of range")
	}
	return nil
}

func (g guestMemory) WriteU64(offset uint32, value uint64) error {
	if !g.mem.WriteUint64Le(offset, value) {
		return errors.InvalidInput(errors.PhaseRuntime, "memory write out of range")
	}
	return nil
}

func (g guestMemory) Size() uint32 {
	return g.mem.Size()
}

// instanceAllocator adapts an instance's malloc/free exports to the
// root Allocator interface.
type instanceAllocator struct {
	inst *Instance
}

var _ sqliteruntime.Allocator = instanceAllocator{}

func (a instanceAllocator) Alloc(size uint32) (uint32, error) {
	ptr := a.inst.malloc(size)
	if ptr == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("guest malloc failed for %d bytes", size).
			Build()
	}
	return ptr, nil
}

func (a instanceAllocator) Free(ptr uint32) {
	a.inst.free(ptr)
}

// readCString copies a NUL-terminated string out of guest memory.
// A zero pointer reads as the empty string.
func readCString(mem api.Memory, ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	// Scan in chunks to avoid walking one byte at a time.
	const chunk = 64
	var buf []byte
	for off := ptr; ; off += chunk {
		n := uint32(chunk)
		if b, ok := mem.Read(off, n); ok {
			for i, c := range b {
				if c == 0 {
					return string(append(buf, b[:i]...))
				}
			}
			buf = append(buf, b...)
			continue
		}
		// Near the end of memory, fall back to byte reads.
		for {
			c, ok := mem.ReadByte(off)
			if !ok || c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
			off++
		}
	}
}

// arena tracks guest allocations for one engine call and frees them all
// on release. Allocation goes through the engine's own malloc so
// ownership conventions match what the entry points expect.
type arena struct {
	inst *Instance
	ptrs []uint32
}

func (a *arena) alloc(size uint32) uint32 {
	ptr := a.inst.malloc(size)
	if ptr != 0 {
		a.ptrs = append(a.ptrs, ptr)
	}
	return ptr
}

// cstring copies s into guest memory with a NUL terminator.
func (a *arena) cstring(s string) uint32 {
	ptr := a.alloc(uint32(len(s)) + 1)
	if ptr == 0 {
		return 0
	}
	mem := a.inst.mod.Memory()
	mem.Write(ptr, []byte(s))
	mem.WriteByte(ptr+uint32(len(s)), 0)
	return ptr
}

// bytes copies b into guest memory. Empty slices get a 1-byte
// allocation so the pointer is non-zero.
func (a *arena) bytes(b []byte) uint32 {
	size := uint32(len(b))
	if size == 0 {
		size = 1
	}
	ptr := a.alloc(size)
	if ptr == 0 {
		return 0
	}
	a.inst.mod.Memory().Write(ptr, b)
	return ptr
}

// out4 allocates a zeroed 4-byte out-parameter slot.
func (a *arena) out4() uint32 {
	ptr := a.alloc(4)
	if ptr != 0 {
		a.inst.mod.Memory().WriteUint32Le(ptr, 0)
	}
	return ptr
}

// out8 allocates a zeroed 8-byte out-parameter slot.
func (a *arena) out8() uint32 {
	ptr := a.alloc(8)
	if ptr != 0 {
		a.inst.mod.Memory().WriteUint64Le(ptr, 0)
	}
	return ptr
}

func (a *arena) release() {
	for _, ptr := range a.ptrs {
		a.inst.free(ptr)
	}
	a.ptrs = a.ptrs[:0]
}
