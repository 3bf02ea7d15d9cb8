package jack

import (
	"fmt"

	"its-hmny.dev/nand2tetris/pkg/utils"
)

// ScopeTable builds the two-level scope JackC needs for symbol resolution:
// a class scope (static + field vars, persisting for the whole class) and a
// subroutine scope (arg + var + the synthesized `this`, reset per subroutine).
//
// Two flat per-kind stacks per level, not a general linked-parent scope: the
// hierarchy is exactly two levels deep, which matches the kind-based index
// counters (Arg/Var/Static/Field each start at 0 and increment independently).
type ScopeTable struct {
	className      string
	subroutineName string

	static utils.Stack[Variable]
	field  utils.Stack[Variable]

	arg  utils.Stack[Variable]
	vars utils.Stack[Variable]
	this *Variable // nil unless the current subroutine is a method

	labels utils.LabelCounter
}

// NewScopeTable returns an empty ScopeTable ready for PushClassScope.
func NewScopeTable() ScopeTable {
	return ScopeTable{}
}

// PushClassScope begins a new class scope named 'class', clearing any prior
// static/field bindings (only one class scope is ever active at a time).
func (st *ScopeTable) PushClassScope(class string) {
	st.className = class
	st.static = utils.Stack[Variable]{}
	st.field = utils.Stack[Variable]{}
}

// PopClassScope discards the current class scope.
func (st *ScopeTable) PopClassScope() {
	st.className = ""
	st.static = utils.Stack[Variable]{}
	st.field = utils.Stack[Variable]{}
}

// PushSubRoutineScope begins a new subroutine scope named 'method', resetting
// arg/var bindings and the per-subroutine label counters (label hygiene is
// scoped to one emitted function).
func (st *ScopeTable) PushSubRoutineScope(method string) {
	st.subroutineName = method
	st.arg = utils.Stack[Variable]{}
	st.vars = utils.Stack[Variable]{}
	st.this = nil
	st.labels = utils.NewLabelCounter()
}

// PopSubroutineScope discards the current subroutine scope.
func (st *ScopeTable) PopSubroutineScope() {
	st.subroutineName = ""
	st.arg = utils.Stack[Variable]{}
	st.vars = utils.Stack[Variable]{}
	st.this = nil
}

// RegisterVariable adds v to the scope matching its Kind. Its index is the
// count of same-kind entries already registered, so Arg/Var counters (reset
// per subroutine) and Static/Field counters (persisting for the class) never
// interfere with each other.
func (st *ScopeTable) RegisterVariable(v Variable) {
	switch v.Kind {
	case Static:
		st.static.Push(v)
	case Field:
		st.field.Push(v)
	case Arg:
		st.arg.Push(v)
	case Var:
		st.vars.Push(v)
	case This:
		st.this = &v
		st.arg.Push(v) // reserve arg slot 0 for the receiver, user parameters start at 1
	}
}

// ResolveVariable looks up name, searching the subroutine scope (this, var,
// arg) before falling back to the class scope (field, static). Later
// declarations shadow earlier ones sharing a name.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	if st.this != nil && st.this.Name == name {
		return 0, *st.this, nil
	}

	for _, stack := range []*utils.Stack[Variable]{&st.vars, &st.arg, &st.field, &st.static} {
		if idx, v, ok := findLatest(stack, name); ok {
			return idx, v, nil
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}

// findLatest returns the declaration-order index (0-based) and value of the
// most recently pushed entry in stack named 'name'.
func findLatest(stack *utils.Stack[Variable], name string) (uint16, Variable, bool) {
	ordered := inOrder(stack)
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Name == name {
			return uint16(i), ordered[i], true
		}
	}
	return 0, Variable{}, false
}

// inOrder drains stack's Iterator (top-to-bottom) back into declaration order.
func inOrder(stack *utils.Stack[Variable]) []Variable {
	var reversed []Variable
	it := stack.Iterator()
	it(func(v Variable) bool {
		reversed = append(reversed, v)
		return true
	})
	ordered := make([]Variable, len(reversed))
	for i, v := range reversed {
		ordered[len(reversed)-1-i] = v
	}
	return ordered
}

// GetScope renders the active scope as "Class.Subroutine", "Class.Global"
// or "Global", mirroring the scope bookkeeping push/pop exercises.
func (st *ScopeTable) GetScope() string {
	if st.className == "" {
		return "Global"
	}
	if st.subroutineName == "" {
		return fmt.Sprintf("%s.Global", st.className)
	}
	return fmt.Sprintf("%s.%s", st.className, st.subroutineName)
}

// NextLabel returns the next "PREFIX_N" label for the active subroutine scope,
// implementing the per-subroutine, per-prefix label hygiene (IF_FALSE/IF_END/WHILE_START/WHILE_END).
func (st *ScopeTable) NextLabel(prefix string) string {
	return st.labels.Next(prefix)
}
