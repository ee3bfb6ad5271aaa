package engine

// OpenFlags control OpenV2, matching the engine's SQLITE_OPEN_* bits.
type OpenFlags uint32

const (
	OpenReadOnly     OpenFlags = 0x00000001
	OpenReadWrite    OpenFlags = 0x00000002
	OpenCreate       OpenFlags = 0x00000004
	OpenURI          OpenFlags = 0x00000040
	OpenMemory       OpenFlags = 0x00000080
	OpenNoMutex      OpenFlags = 0x00008000
	OpenFullMutex    OpenFlags = 0x00010000
	OpenSharedCache  OpenFlags = 0x00020000
	OpenPrivateCache OpenFlags = 0x00040000
	OpenNoFollow     OpenFlags = 0x01000000
)

// FuncFlags qualify a registered function, matching SQLITE_* bits.
type FuncFlags uint32

const (
	FuncDeterministic FuncFlags = 0x000000800
	FuncDirectOnly    FuncFlags = 0x000080000
	FuncInnocuous     FuncFlags = 0x000200000
)

// IndexConstraintOp identifies a WHERE-clause operator in best-index
// negotiation, matching SQLITE_INDEX_CONSTRAINT_*.
type IndexConstraintOp uint8

const (
	IndexConstraintEq        IndexConstraintOp = 2
	IndexConstraintGT        IndexConstraintOp = 4
	IndexConstraintLE        IndexConstraintOp = 8
	IndexConstraintLT        IndexConstraintOp = 16
	IndexConstraintGE        IndexConstraintOp = 32
	IndexConstraintMatch     IndexConstraintOp = 64
	IndexConstraintLike      IndexConstraintOp = 65
	IndexConstraintGlob      IndexConstraintOp = 66
	IndexConstraintRegexp    IndexConstraintOp = 67
	IndexConstraintNE        IndexConstraintOp = 68
	IndexConstraintIsNot     IndexConstraintOp = 69
	IndexConstraintIsNotNull IndexConstraintOp = 70
	IndexConstraintIsNull    IndexConstraintOp = 71
	IndexConstraintIs        IndexConstraintOp = 72
	IndexConstraintLimit     IndexConstraintOp = 73
	IndexConstraintOffset    IndexConstraintOp = 74
	IndexConstraintFunction  IndexConstraintOp = 150
)

// IndexScanFlags are returned from best-index negotiation.
type IndexScanFlags uint32

const (
	IndexScanUnique IndexScanFlags = 1
)

// AuthAction identifies the operation an authorizer callback is asked
// to vet, matching SQLITE_* action codes.
type AuthAction int32

const (
	AuthCreateIndex       AuthAction = 1
	AuthCreateTable       AuthAction = 2
	AuthCreateTempIndex   AuthAction = 3
	AuthCreateTempTable   AuthAction = 4
	AuthCreateTempTrigger AuthAction = 5
	AuthCreateTempView    AuthAction = 6
	AuthCreateTrigger     AuthAction = 7
	AuthCreateView        AuthAction = 8
	AuthDelete            AuthAction = 9
	AuthDropIndex         AuthAction = 10
	AuthDropTable         AuthAction = 11
	AuthDropTempIndex     AuthAction = 12
	AuthDropTempTable     AuthAction = 13
	AuthDropTempTrigger   AuthAction = 14
	AuthDropTempView      AuthAction = 15
	AuthDropTrigger       AuthAction = 16
	AuthDropView          AuthAction = 17
	AuthInsert            AuthAction = 18
	AuthPragma            AuthAction = 19
	AuthRead              AuthAction = 20
	AuthSelect            AuthAction = 21
	AuthTransaction       AuthAction = 22
	AuthUpdate            AuthAction = 23
	AuthAttach            AuthAction = 24
	AuthDetach            AuthAction = 25
	AuthAlterTable        AuthAction = 26
	AuthReindex           AuthAction = 27
	AuthAnalyze           AuthAction = 28
	AuthCreateVTable      AuthAction = 29
	AuthDropVTable        AuthAction = 30
	AuthFunction          AuthAction = 31
	AuthSavepoint         AuthAction = 32
	AuthRecursive         AuthAction = 33
)

// AuthResult is an authorizer verdict.
type AuthResult int32

const (
	AuthOK     AuthResult = 0
	AuthDeny   AuthResult = 1
	AuthIgnore AuthResult = 2
)

// UpdateOp identifies the row operation reported to an update hook.
type UpdateOp int32

const (
	UpdateInsert UpdateOp = 18
	UpdateDelete UpdateOp = 9
	UpdateUpdate UpdateOp = 23
)

// LockLevel is a VFS file lock state, matching SQLITE_LOCK_*.
type LockLevel int32

const (
	LockNone      LockLevel = 0
	LockShared    LockLevel = 1
	LockReserved  LockLevel = 2
	LockPending   LockLevel = 3
	LockExclusive LockLevel = 4
)

// AccessFlags qualify a VFS access check, matching SQLITE_ACCESS_*.
type AccessFlags int32

const (
	AccessExists    AccessFlags = 0
	AccessReadWrite AccessFlags = 1
	AccessRead      AccessFlags = 2
)

// SyncFlags qualify a VFS sync request, matching SQLITE_SYNC_*.
type SyncFlags int32

const (
	SyncNormal   SyncFlags = 2
	SyncFull     SyncFlags = 3
	SyncDataOnly SyncFlags = 16
)
