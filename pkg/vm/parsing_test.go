package vm_test

import (
	"strings"
	"testing"

	"its-hmny.dev/nand2tetris/pkg/vm"
)

func TestParseModule(t *testing.T) {
	parse := func(source string) (vm.Module, error) {
		return vm.NewParser("Test").Parse(strings.NewReader(source))
	}

	t.Run("Valid data", func(t *testing.T) {
		mod, err := parse("push constant 7\npush constant 8\nadd\n// a trailing comment\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(mod) != 3 {
			t.Fatalf("expected 3 commands (comment-only lines are skipped), got %d", len(mod))
		}
		if _, ok := mod[2].Op.(vm.ArithmeticOp); !ok {
			t.Errorf("expected the third command to be an ArithmeticOp, got %T", mod[2].Op)
		}
	})

	t.Run("labels inside a function are qualified with the function name", func(t *testing.T) {
		mod, err := parse("function Main.loop 0\nlabel START\ngoto START\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		decl, ok := mod[1].Op.(vm.LabelDecl)
		if !ok || decl.Name != "Main.loop$START" {
			t.Fatalf("expected label 'Main.loop$START', got %+v", mod[1].Op)
		}
		goTo, ok := mod[2].Op.(vm.GotoOp)
		if !ok || goTo.Label != "Main.loop$START" {
			t.Fatalf("expected goto target 'Main.loop$START', got %+v", mod[2].Op)
		}
	})

	t.Run("Invalid data", func(t *testing.T) {
		cases := []string{
			"push constant",          // missing index
			"push weird 3",           // unrecognized segment
			"pop constant 0",         // constant is push-only
			"push pointer 2",         // pointer index out of range
			"push temp 8",            // temp index out of range
			"return",                 // return outside any function
			"goto 123bad",            // invalid label symbol
			"call Foo",               // missing arg count
			"gibberish 1 2",          // unrecognized command
			"add extra",              // arithmetic command takes no arguments
			"function Main.f notanumber", // bad local count
		}
		for _, code := range cases {
			if _, err := parse(code); err == nil {
				t.Errorf("expected an error for %q, got none", code)
			}
		}
	})
}
