package registry

// Handle is an opaque, generation-checked reference to an entry in a
// table. The low 32 bits hold the slot index plus one; the high 32 bits
// hold the slot's generation at insert time. Handle 0 is reserved and
// always invalid.
type Handle uint64

// Zero is the invalid handle.
const Zero Handle = 0

func makeHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func (h Handle) index() (uint32, bool) {
	if h == 0 {
		return 0, false
	}
	return uint32(h&0xffffffff) - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// Well-known type IDs for the wrapper kinds the binding registers.
// Callback context resolution uses these to reject handles of the
// wrong kind rather than misinterpreting them.
const (
	TypeConn uint32 = iota + 1
	TypeStmt
	TypeBlob
	TypeBackup
	TypeFunction
	TypeAggregate
	TypeModule
	TypeVTab
	TypeVTabCursor
	TypeVFS
	TypeVFSFile
	TypeCollation
	TypeHook
)

// Finalizer is implemented by wrappers that own an engine handle.
// Finalize is invoked exactly once, when the entry is removed from the
// table or the table closes.
type Finalizer interface {
	Finalize()
}

// Event types for entry lifecycle notifications.
type EventType uint8

const (
	EventInserted EventType = iota
	EventRemoved
)

// Event represents an entry lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about entry lifecycle events.
type Observer interface {
	OnRegistryEvent(Event)
}
