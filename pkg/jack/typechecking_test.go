package jack_test

import (
	"testing"

	"its-hmny.dev/nand2tetris/pkg/jack"
	"its-hmny.dev/nand2tetris/pkg/source"
)

func parseClass(t *testing.T, path, content string) jack.Class {
	t.Helper()
	class, err := jack.ParseSource(source.New(path, content))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return class
}

func TestTypeCheckerValidPrograms(t *testing.T) {
	main := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        var int sum;
        let sum = 0;
        let sum = sum + 1;
        if (sum > 0) {
            let sum = sum - 1;
        } else {
            let sum = sum + 1;
        }
        return;
    }
}`)

	checker := jack.NewTypeChecker(jack.Program{"Main": main})
	if ok, err := checker.Check(); !ok || err != nil {
		t.Fatalf("expected a valid program, got ok=%v err=%v", ok, err)
	}
}

func TestTypeCheckerMethodCallAcrossClasses(t *testing.T) {
	point := parseClass(t, "Point.jack", `
class Point {
    field int x, y;
    constructor Point new(int ax, int ay) {
        let x = ax;
        let y = ay;
        return this;
    }
    method int getX() {
        return x;
    }
}`)
	main := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        var Point p;
        let p = Point.new(1, 2);
        do p.getX();
        return;
    }
}`)

	checker := jack.NewTypeChecker(jack.Program{"Point": point, "Main": main})
	if ok, err := checker.Check(); !ok || err != nil {
		t.Fatalf("expected a valid program, got ok=%v err=%v", ok, err)
	}
}

func TestTypeCheckerRejectsUndefinedSymbol(t *testing.T) {
	main := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        let x = 1;
        return;
    }
}`)

	checker := jack.NewTypeChecker(jack.Program{"Main": main})
	ok, err := checker.Check()
	if ok || err == nil {
		t.Fatal("expected an error for assignment to an undeclared variable")
	}
	if _, isSemantic := err.(jack.SemanticError); !isSemantic {
		t.Logf("error is wrapped, not a bare SemanticError: %v", err)
	}
}

func TestTypeCheckerRejectsArityMismatch(t *testing.T) {
	point := parseClass(t, "Point.jack", `
class Point {
    constructor Point new(int ax, int ay) {
        return this;
    }
}`)
	main := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        var Point p;
        let p = Point.new(1);
        return;
    }
}`)

	checker := jack.NewTypeChecker(jack.Program{"Point": point, "Main": main})
	if ok, err := checker.Check(); ok || err == nil {
		t.Fatal("expected an arity-mismatch error calling 'Point.new' with one argument instead of two")
	}
}

func TestTypeCheckerRejectsMethodCallOnClassName(t *testing.T) {
	point := parseClass(t, "Point.jack", `
class Point {
    method int getX() {
        return 0;
    }
}`)
	main := parseClass(t, "Main.jack", `
class Main {
    function void main() {
        do Point.getX();
        return;
    }
}`)

	checker := jack.NewTypeChecker(jack.Program{"Point": point, "Main": main})
	if ok, err := checker.Check(); ok || err == nil {
		t.Fatal("expected an error calling a method through its class name without a receiver instance")
	}
}
