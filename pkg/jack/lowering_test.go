package jack_test

import (
	"testing"

	"its-hmny.dev/nand2tetris/pkg/jack"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

func lowerOne(t *testing.T, class jack.Class) vm.Module {
	t.Helper()
	program := jack.Program{class.Name: class}
	for name, abi := range jack.StandardLibraryABI {
		if _, exists := program[name]; !exists {
			program[name] = abi
		}
	}
	lowerer := jack.NewLowerer(program)
	compiled, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}
	return compiled[class.Name]
}

func opsOf(mod vm.Module) []vm.Operation {
	ops := make([]vm.Operation, len(mod))
	for i, cmd := range mod {
		ops[i] = cmd.Op
	}
	return ops
}

func TestLowerMethodCall(t *testing.T) {
	class := parseClass(t, "Point.jack", `
class Point {
    field int x;
    method int getX() {
        return x;
    }
}`)
	ops := opsOf(lowerOne(t, class))

	want := []vm.Operation{
		vm.FuncDecl{Name: "Point.getX", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 0},
		vm.ReturnOp{},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d: %+v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d: expected %+v, got %+v", i, want[i], ops[i])
		}
	}
}

func TestLowerConstructorAllocatesFields(t *testing.T) {
	class := parseClass(t, "Point.jack", `
class Point {
    field int x, y;
    constructor Point new() {
        return this;
    }
}`)
	ops := opsOf(lowerOne(t, class))

	want := []vm.Operation{
		vm.FuncDecl{Name: "Point.new", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0},
		vm.ReturnOp{},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d: %+v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d: expected %+v, got %+v", i, want[i], ops[i])
		}
	}
}

func TestLowerStringLiteral(t *testing.T) {
	class := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        do Output.printString("hi");
        return;
    }
}`)
	ops := opsOf(lowerOne(t, class))

	want := []vm.Operation{
		vm.FuncDecl{Name: "Main.main", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "String.new", NArgs: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('h')},
		vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('i')},
		vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		vm.FuncCallOp{Name: "Output.printString", NArgs: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d: %+v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d: expected %+v, got %+v", i, want[i], ops[i])
		}
	}
}

func TestLowerMethodParameterIndexing(t *testing.T) {
	// Argument 0 is the synthesized receiver; a method's own parameters must
	// start at Arg index 1, not 0 (which would alias the receiver).
	class := parseClass(t, "Point.jack", `
class Point {
    field int x;
    method int f(int d) {
        return d;
    }
}`)
	ops := opsOf(lowerOne(t, class))

	want := []vm.Operation{
		vm.FuncDecl{Name: "Point.f", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 1},
		vm.ReturnOp{},
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d: %+v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d: expected %+v, got %+v", i, want[i], ops[i])
		}
	}
}

func TestLowerRightAssociativeExpression(t *testing.T) {
	// 'a + b * c' must parse/lower as 'a + (b*c)' since the grammar has no
	// precedence climbing: lhs=a, rhs=(b*c), then '+'.
	class := parseClass(t, "Main.jack", `
class Main {
    function int compute() {
        var int a, b, c;
        let a = 1;
        let b = 2;
        let c = 3;
        return a + b * c;
    }
}`)
	ops := opsOf(lowerOne(t, class))

	// The five operations right before the trailing 'return'
	last5 := ops[len(ops)-6 : len(ops)-1]
	want := []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0}, // a
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 1}, // b
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 2}, // c
		vm.FuncCallOp{Name: "Math.multiply", NArgs: 2},                // b*c
		vm.ArithmeticOp{Operation: vm.Add},                            // a+(b*c)
	}
	for i := range want {
		if last5[i] != want[i] {
			t.Fatalf("expected right-associative lowering %+v, got %+v", want, last5)
		}
	}
}
