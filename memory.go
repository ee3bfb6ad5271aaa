package sqliteruntime

// Memory represents the engine's linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the engine's linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside the engine's linear memory.
// Implementations wrap the engine's own malloc/free exports so that
// ownership conventions match what the engine expects for passed-in
// buffers (SQL text, bound blobs, C strings).
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}
