package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJackCompiler(t *testing.T) {
	// Writes 'source' to a temp '<name>.jack' file, compiles it and returns the
	// generated '.vm' text, failing the test on any non-zero exit status.
	compile := func(t *testing.T, name, source string, options map[string]string) string {
		t.Helper()
		dir := t.TempDir()
		input := filepath.Join(dir, name+".jack")

		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %s", err)
		}

		if options == nil {
			options = map[string]string{}
		}
		status := Handler([]string{input}, options)
		if status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(filepath.Join(dir, name+".vm"))
		if err != nil {
			t.Fatalf("unable to read generated output: %s", err)
		}
		return string(compiled)
	}

	t.Run("Average", func(t *testing.T) {
		source := `
class Main {
    function void main() {
        var int sum;
        let sum = 0;
        let sum = sum + 1;
        do Output.printInt(sum);
        return;
    }
}`
		vm := compile(t, "Main", source, map[string]string{"stdlib": "true"})
		for _, want := range []string{"function Main.main 1", "push constant 0", "pop local 0", "push constant 1", "add", "return"} {
			if !strings.Contains(vm, want) {
				t.Fatalf("expected generated vm code to contain %q, got:\n%s", want, vm)
			}
		}
	})

	t.Run("constructor allocates fields via Memory.alloc", func(t *testing.T) {
		source := `
class Point {
    field int x, y;
    constructor Point new(int ax, int ay) {
        let x = ax;
        let y = ay;
        return this;
    }
}`
		vm := compile(t, "Point", source, nil)
		for _, want := range []string{"push constant 2", "call Memory.alloc 1", "pop pointer 0", "push argument 0", "pop this 0"} {
			if !strings.Contains(vm, want) {
				t.Fatalf("expected generated vm code to contain %q, got:\n%s", want, vm)
			}
		}
	})

	t.Run("method calls push the receiver as implicit first argument", func(t *testing.T) {
		source := `
class Main {
    function void main() {
        var Point p;
        do p.dispose();
        return;
    }
}`
		vm := compile(t, "Main", source, map[string]string{"stdlib": "true"})
		if !strings.Contains(vm, "push local 0") {
			t.Fatalf("expected the receiver to be pushed before the call, got:\n%s", vm)
		}
	})

	t.Run("typecheck rejects undefined symbols", func(t *testing.T) {
		source := `
class Main {
    function void main() {
        do Output.printInt(undefined);
        return;
    }
}`
		dir := t.TempDir()
		input := filepath.Join(dir, "Main.jack")
		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %s", err)
		}

		status := Handler([]string{input}, map[string]string{"stdlib": "true", "typecheck": "true"})
		if status == 0 {
			t.Fatal("expected a non-zero exit status for a program referencing an undefined symbol")
		}
	})
}
