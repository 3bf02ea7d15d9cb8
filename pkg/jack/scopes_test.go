package jack_test

import (
	"testing"

	"its-hmny.dev/nand2tetris/pkg/jack"
)

func TestClassScope(t *testing.T) {
	test := func(st jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		offset, variable, err := st.ResolveVariable(lookup)
		if err != nil && !fail {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable '%s', got %+v", lookup, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected to find offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("Without variable shadowing", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass") // Push a new class scope before doing anything

		// Register a field variable and a static variable
		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Object})
		st.RegisterVariable(jack.Variable{Name: "test_field_2", Kind: jack.Field, DataType: jack.Char})
		st.RegisterVariable(jack.Variable{Name: "test_static_2", Kind: jack.Static, DataType: jack.Bool})

		// All of these variables should be found and resolved correctly
		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Int}, 0, false)
		test(st, "test_static", jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Object}, 0, false)
		test(st, "test_field_2", jack.Variable{Name: "test_field_2", Kind: jack.Field, DataType: jack.Char}, 1, false)
		test(st, "test_static_2", jack.Variable{Name: "test_static_2", Kind: jack.Static, DataType: jack.Bool}, 1, false)

		// None of these variables were ever registered
		test(st, "random1", jack.Variable{}, 0, true)
		test(st, "random2", jack.Variable{}, 0, true)
		test(st, "random3", jack.Variable{}, 0, true)
		test(st, "random4", jack.Variable{}, 0, true)
	})

	t.Run("With variable shadowing", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass") // Push a new class scope before doing anything

		// Register a field variable and a static variable
		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Object})
		st.RegisterVariable(jack.Variable{Name: "test_class", Kind: jack.Static, DataType: jack.Object, ClassName: "AnotherClass"})
		// These should shadow the previous ones
		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Char})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Bool})
		st.RegisterVariable(jack.Variable{Name: "test_class", Kind: jack.Static, DataType: jack.Object, ClassName: "Class"})

		// All of these variables should resolve to the most recently registered entry
		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Char}, 1, false)
		test(st, "test_static", jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Bool}, 2, false)
		test(st, "test_class", jack.Variable{Name: "test_class", Kind: jack.Static, DataType: jack.Object, ClassName: "Class"}, 3, false)

		test(st, "random1", jack.Variable{}, 0, true)
		test(st, "random2", jack.Variable{}, 0, true)
		test(st, "random3", jack.Variable{}, 0, true)
		test(st, "random4", jack.Variable{}, 0, true)
	})

	t.Run("With scope deallocation", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass") // Push a new class scope before doing anything

		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_field_2", Kind: jack.Field, DataType: jack.Char})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Object})
		st.RegisterVariable(jack.Variable{Name: "test_static_2", Kind: jack.Static, DataType: jack.Bool})

		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.Field, DataType: jack.Int}, 0, false)
		test(st, "test_field_2", jack.Variable{Name: "test_field_2", Kind: jack.Field, DataType: jack.Char}, 1, false)
		test(st, "test_static", jack.Variable{Name: "test_static", Kind: jack.Static, DataType: jack.Object}, 0, false)
		test(st, "test_static_2", jack.Variable{Name: "test_static_2", Kind: jack.Static, DataType: jack.Bool}, 1, false)

		st.PopClassScope() // Deallocates the current class scope

		// Field vars don't survive the class scope they were declared in
		test(st, "test_field", jack.Variable{}, 0, true)
		test(st, "test_field_2", jack.Variable{}, 0, true)
		// Static vars are scoped the same as field vars here: both live only
		// while their declaring class scope is active
		test(st, "test_static", jack.Variable{}, 0, true)
		test(st, "test_static_2", jack.Variable{}, 0, true)
	})
}

func TestSubroutineScope(t *testing.T) {
	test := func(st jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		offset, variable, err := st.ResolveVariable(lookup)
		if err != nil && !fail {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable '%s', got %+v", lookup, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected to find offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("Without variable shadowing", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass")           // Push a new class scope before doing anything
		st.PushSubRoutineScope("TestSubroutine") // Push a new subroutine scope before doing anything

		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Object})
		st.RegisterVariable(jack.Variable{Name: "test_local_2", Kind: jack.Var, DataType: jack.Char})
		st.RegisterVariable(jack.Variable{Name: "test_parameter_2", Kind: jack.Arg, DataType: jack.Bool})

		test(st, "test_local", jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int}, 0, false)
		test(st, "test_parameter", jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Object}, 0, false)
		test(st, "test_local_2", jack.Variable{Name: "test_local_2", Kind: jack.Var, DataType: jack.Char}, 1, false)
		test(st, "test_parameter_2", jack.Variable{Name: "test_parameter_2", Kind: jack.Arg, DataType: jack.Bool}, 1, false)

		test(st, "random1", jack.Variable{}, 0, true)
		test(st, "random2", jack.Variable{}, 0, true)
		test(st, "random3", jack.Variable{}, 0, true)
		test(st, "random4", jack.Variable{}, 0, true)
	})

	t.Run("With variable shadowing (on subroutine scope)", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("TestSubroutine")

		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Object})
		st.RegisterVariable(jack.Variable{Name: "test_class", Kind: jack.Arg, DataType: jack.Object, ClassName: "AnotherClass"})
		// These should shadow the previous ones
		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Char})
		st.RegisterVariable(jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Bool})
		st.RegisterVariable(jack.Variable{Name: "test_class", Kind: jack.Arg, DataType: jack.Object, ClassName: "Class"})

		test(st, "test_local", jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Char}, 1, false)
		test(st, "test_parameter", jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Bool}, 2, false)
		test(st, "test_class", jack.Variable{Name: "test_class", Kind: jack.Arg, DataType: jack.Object, ClassName: "Class"}, 3, false)

		test(st, "random1", jack.Variable{}, 0, true)
		test(st, "random2", jack.Variable{}, 0, true)
		test(st, "random3", jack.Variable{}, 0, true)
		test(st, "random4", jack.Variable{}, 0, true)
	})

	t.Run("With scope deallocation", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("TestSubroutine")

		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Object})

		test(st, "test_local", jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int}, 0, false)
		test(st, "test_parameter", jack.Variable{Name: "test_parameter", Kind: jack.Arg, DataType: jack.Object}, 0, false)

		st.PopSubroutineScope() // Deallocates the current subroutine scope

		test(st, "test_local", jack.Variable{}, 0, true)
		test(st, "test_parameter", jack.Variable{}, 0, true)
	})

	t.Run("With variable shadowing (on class scope)", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass")

		st.RegisterVariable(jack.Variable{Name: "test1", Kind: jack.Field, DataType: jack.Int})
		st.RegisterVariable(jack.Variable{Name: "test2", Kind: jack.Static, DataType: jack.Object})

		st.PushSubRoutineScope("TestSubroutine")

		st.RegisterVariable(jack.Variable{Name: "test1", Kind: jack.Var, DataType: jack.Bool})
		st.RegisterVariable(jack.Variable{Name: "test2", Kind: jack.Arg, DataType: jack.Char})

		test(st, "test1", jack.Variable{Name: "test1", Kind: jack.Var, DataType: jack.Bool}, 0, false)
		test(st, "test2", jack.Variable{Name: "test2", Kind: jack.Arg, DataType: jack.Char}, 0, false)

		st.PopSubroutineScope()

		// Once the subroutine scope is gone, the class-scope entries resurface
		test(st, "test1", jack.Variable{Name: "test1", Kind: jack.Field, DataType: jack.Int}, 0, false)
		test(st, "test2", jack.Variable{Name: "test2", Kind: jack.Static, DataType: jack.Object}, 0, false)
	})

	t.Run("Method receiver resolves through 'this'", func(t *testing.T) {
		st := jack.ScopeTable{}
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("TestMethod")

		st.RegisterVariable(jack.Variable{Name: "this", Kind: jack.This, DataType: jack.Object, ClassName: "TestClass"})
		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int})

		test(st, "this", jack.Variable{Name: "this", Kind: jack.This, DataType: jack.Object, ClassName: "TestClass"}, 0, false)
		test(st, "test_local", jack.Variable{Name: "test_local", Kind: jack.Var, DataType: jack.Int}, 0, false)
	})
}

func TestScopeTracking(t *testing.T) {
	test := func(st jack.ScopeTable, expected string) {
		if scope := st.GetScope(); scope != expected {
			t.Errorf("expected to get scope %s, got %+v", expected, scope)
		}
	}

	t.Run("Basic scope tracking checks", func(t *testing.T) {
		st := jack.ScopeTable{}
		test(st, "Global")

		st.PushClassScope("TestClass") // Push a new class scope before doing anything
		test(st, "TestClass.Global")

		st.PushSubRoutineScope("TestSubroutine") // Push a new subroutine scope before doing anything
		test(st, "TestClass.TestSubroutine")

		st.PopSubroutineScope() // Deallocates the current subroutine scope
		test(st, "TestClass.Global")

		st.PopClassScope() // Deallocates the current class scope
		test(st, "Global")
	})
}

func TestLabelHygiene(t *testing.T) {
	st := jack.ScopeTable{}
	st.PushClassScope("TestClass")
	st.PushSubRoutineScope("TestSubroutine")

	if got := st.NextLabel("IF_FALSE"); got != "IF_FALSE_0" {
		t.Errorf("expected IF_FALSE_0, got %s", got)
	}
	if got := st.NextLabel("IF_FALSE"); got != "IF_FALSE_1" {
		t.Errorf("expected IF_FALSE_1, got %s", got)
	}
	if got := st.NextLabel("WHILE_START"); got != "WHILE_START_0" {
		t.Errorf("expected WHILE_START_0, got %s", got)
	}

	// A new subroutine scope gets fresh counters, even for a prefix reused above
	st.PushSubRoutineScope("AnotherSubroutine")
	if got := st.NextLabel("IF_FALSE"); got != "IF_FALSE_0" {
		t.Errorf("expected counters to reset per subroutine, got %s", got)
	}
}
