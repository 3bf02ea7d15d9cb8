package vm

import (
	"fmt"
	"sort"

	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/utils"
)

// Lowerer translates a whole vm.Program (one Module per translation unit)
// into its asm.Program counterpart, applying the calling convention and the
// per-segment addressing templates described for the VM-to-Assembly stage.
//
// Labels used for comparisons (END_EQ/END_GT/END_LT) and call return
// addresses (RET_ADDR_CALL) are unique across the whole program, not just
// within one module: the 'labels' counter is shared by every module of one Lowerer.
type Lowerer struct {
	program Program
	labels  utils.LabelCounter
}

// NewLowerer returns a Lowerer ready to translate p.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p, labels: utils.NewLabelCounter()}
}

// Lower translates every module in deterministic (sorted) order, so the
// compiled output doesn't depend on map iteration order, and prepends the
// bootstrap sequence if any module defines Sys.init.
func (vl *Lowerer) Lower() (asm.Program, error) {
	var program asm.Program

	names := make([]string, 0, len(vl.program))
	for name := range vl.program {
		names = append(names, name)
	}
	sort.Strings(names)

	if vl.definesSysInit() {
		boot, err := vl.lowerBootstrap()
		if err != nil {
			return nil, fmt.Errorf("lowering bootstrap sequence: %w", err)
		}
		program = append(program, boot...)
	}

	for _, name := range names {
		for _, cmd := range vl.program[name] {
			inst, err := vl.lowerCommand(name, cmd)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, cmd.Source.Line, err)
			}
			program = append(program, inst...)
		}
	}

	return program, nil
}

func (vl *Lowerer) definesSysInit() bool {
	for _, module := range vl.program {
		for _, cmd := range module {
			if decl, ok := cmd.Op.(FuncDecl); ok && decl.Name == "Sys.init" {
				return true
			}
		}
	}
	return false
}

// lowerBootstrap sets SP=256 then expands 'call Sys.init 0' via the same
// calling convention used for every other call site.
func (vl *Lowerer) lowerBootstrap() (asm.Program, error) {
	prelude := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	call, err := vl.lowerFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, err
	}
	return append(prelude, call...), nil
}

func (vl *Lowerer) lowerCommand(module string, cmd Command) (asm.Program, error) {
	switch op := cmd.Op.(type) {
	case MemoryOp:
		return vl.lowerMemoryOp(module, op)
	case ArithmeticOp:
		return vl.lowerArithmeticOp(op)
	case LabelDecl:
		return asm.Program{asm.LabelDecl{Name: op.Name}}, nil
	case GotoOp:
		return vl.lowerGotoOp(op)
	case FuncDecl:
		return vl.lowerFuncDecl(op)
	case ReturnOp:
		return vl.lowerReturnOp()
	case FuncCallOp:
		return vl.lowerFuncCallOp(op)
	default:
		return nil, fmt.Errorf("unrecognized operation %T", cmd.Op)
	}
}

// ----------------------------------------------------------------------------
// Stack push/pop primitives

// pushD appends the canonical push-from-D-register sequence: @SP; A=M; M=D; @SP; M=M+1.
func pushD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// popD appends the canonical pop-into-D-register sequence: @SP; AM=M-1; D=M.
func popD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

func (vl *Lowerer) lowerMemoryOp(module string, op MemoryOp) (asm.Program, error) {
	if op.Operation == Push {
		return vl.lowerPush(module, op.Segment, op.Offset)
	}
	return vl.lowerPop(module, op.Segment, op.Offset)
}

func (vl *Lowerer) lowerPush(module string, segment SegmentType, offset uint16) (asm.Program, error) {
	switch segment {
	case Constant:
		return append(asm.Program{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD()...), nil

	case Local, Argument, This, That:
		return append(asm.Program{
			asm.AInstruction{Location: segmentBase[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil

	case Temp:
		return append(asm.Program{
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil

	case Pointer:
		return append(asm.Program{
			asm.AInstruction{Location: pointerTarget(offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil

	case Static:
		return append(asm.Program{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", module, offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", segment)
	}
}

func (vl *Lowerer) lowerPop(module string, segment SegmentType, offset uint16) (asm.Program, error) {
	switch segment {
	case Local, Argument, This, That:
		prog := asm.Program{
			asm.AInstruction{Location: segmentBase[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		prog = append(prog, popD()...)
		return append(prog,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Temp:
		prog := popD()
		return append(prog,
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Pointer:
		prog := popD()
		return append(prog,
			asm.AInstruction{Location: pointerTarget(offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Static:
		prog := popD()
		return append(prog,
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", module, offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s', or segment is push-only", segment)
	}
}

var segmentBase = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
}

func pointerTarget(offset uint16) string {
	if offset == 0 {
		return "THIS"
	}
	return "THAT"
}

// ----------------------------------------------------------------------------
// Arithmetic Op

var binaryOpComp = map[ArithOpType]string{
	Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M",
}

var comparisonJump = map[ArithOpType]string{
	Eq: "JEQ", Gt: "JGT", Lt: "JLT",
}

var comparisonLabelPrefix = map[ArithOpType]string{
	Eq: "END_EQ", Gt: "END_GT", Lt: "END_LT",
}

func (vl *Lowerer) lowerArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Neg, Not:
		comp := "-M"
		if op.Operation == Not {
			comp = "!M"
		}
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil

	case Add, Sub, And, Or:
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: binaryOpComp[op.Operation]},
		}, nil

	case Eq, Gt, Lt:
		label := vl.labels.Next(comparisonLabelPrefix[op.Operation])
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.AInstruction{Location: label},
			asm.CInstruction{Comp: "D", Jump: comparisonJump[op.Operation]},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.LabelDecl{Name: label},
		}, nil

	default:
		return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
	}
}

// ----------------------------------------------------------------------------
// Flow Op

func (vl *Lowerer) lowerGotoOp(op GotoOp) (asm.Program, error) {
	if op.Jump == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: op.Label},
			asm.CInstruction{Comp: "0", Jump: "JEQ"},
		}, nil
	}
	return append(popD(),
		asm.AInstruction{Location: op.Label},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	), nil
}

// ----------------------------------------------------------------------------
// Function Op

func (vl *Lowerer) lowerFuncDecl(op FuncDecl) (asm.Program, error) {
	prog := asm.Program{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		prog = append(prog,
			asm.CInstruction{Dest: "D", Comp: "0"},
		)
		prog = append(prog, pushD()...)
	}
	return prog, nil
}

func (vl *Lowerer) lowerReturnOp() (asm.Program, error) {
	restore := func(offset, dest string) asm.Program {
		return asm.Program{
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: offset},
			asm.CInstruction{Dest: "A", Comp: "D-A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: dest},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
	}

	prog := asm.Program{
		// FRAME (R13) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	prog = append(prog, restore("5", "R14")...) // RET (R14) = *(FRAME-5)

	// *ARG = pop(), via R15 so the write happens after SP is already moved
	prog = append(prog,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R15"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D+1"}, // SP = ARG+1
		asm.AInstruction{Location: "R15"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // *ARG = return value
	)

	prog = append(prog, restore("1", "THAT")...)
	prog = append(prog, restore("2", "THIS")...)
	prog = append(prog, restore("3", "ARG")...)
	prog = append(prog, restore("4", "LCL")...)

	prog = append(prog,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JEQ"}, // goto RET
	)

	return prog, nil
}

func (vl *Lowerer) lowerFuncCallOp(op FuncCallOp) (asm.Program, error) {
	retLabel := vl.labels.Next("RET_ADDR_CALL")

	prog := asm.Program{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	prog = append(prog, pushD()...)

	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		prog = append(prog,
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		prog = append(prog, pushD()...)
	}

	prog = append(prog,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(int(op.NArgs) + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JEQ"},

		asm.LabelDecl{Name: retLabel},
	)

	return prog, nil
}
