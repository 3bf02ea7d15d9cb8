package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is just a set of multiple modules/files, in the VM spec each Jack class is
// translated to its own .vm file (just like Java .class file) that can be handled as its
// own translation unit during the compilation or lowering phases. Keyed by translation
// unit name (e.g. "Main"), since 'static i' resolves to the assembler symbol "X.i" per file.
type Program map[string]Module

// A VM Module is just a linear list of parsed VM commands, each carrying the
// source line it was parsed from for diagnostics.
type Module []Command

// Command pairs a parsed Operation with the line of VM text it came from.
type Command struct {
	Op     Operation
	Source Source
}

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Flow Op

// LabelDecl marks a jump target. Inside a function its Name is internally
// qualified as "FunctionName$Label" to scope it to that function.
type LabelDecl struct{ Name string }

// GotoOp transfers control to Label, either unconditionally or by popping
// and testing the stack's top (if-goto).
type GotoOp struct {
	Jump  JumpType
	Label string
}

type JumpType string // Enum to manage the two goto flavors

const (
	Unconditional JumpType = "goto"
	Conditional   JumpType = "if-goto"
)

// ----------------------------------------------------------------------------
// Function Op

// FuncDecl opens a function body, declaring how many local slots to
// zero-initialize before the first statement runs.
type FuncDecl struct {
	Name   string
	NLocal uint8
}

// ReturnOp unwinds the current frame back to its caller.
type ReturnOp struct{}

// FuncCallOp invokes Name, having already pushed NArgs arguments.
type FuncCallOp struct {
	Name  string
	NArgs uint8
}

// ----------------------------------------------------------------------------
// Source provenance

// Source pins an Operation back to the VM text it was parsed from, so
// diagnostics can cite "file:line: code".
type Source struct {
	Module string
	Line   int
	Code   string
}
