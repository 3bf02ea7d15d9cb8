package jack

import (
	"fmt"
)

// TypeChecker walks a Program building the two-level scope described in
// ScopeTable and resolving every identifier/call against it. It does not
// enforce argument types (a known gap, see the call resolution rules),
// only that referenced symbols and subroutines exist and arities match.
type TypeChecker struct {
	program Program
	classes Program // alias of program, kept for call-resolution lookups
	scopes  ScopeTable
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program, classes: program}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error handling class '%s': %w", name, err)
		}
	}

	return true, nil
}

// HandleClass resolves a single class' fields and subroutines.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name)
	defer tc.scopes.PopClassScope()

	for _, entry := range class.Vars.Entries() {
		tc.scopes.RegisterVariable(entry.Value)
	}

	for _, entry := range class.Subroutines.Entries() {
		subroutine := entry.Value
		if _, err := tc.HandleSubroutine(class, subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// HandleSubroutine builds the subroutine scope per its Kind (see §4.3) and
// resolves every statement in its body.
func (tc *TypeChecker) HandleSubroutine(class Class, subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name)
	defer tc.scopes.PopSubroutineScope()

	switch subroutine.Kind {
	case Method:
		// Argument 0 is the synthesized receiver; user parameters start at 1.
		tc.scopes.RegisterVariable(Variable{Name: "this", Kind: This, DataType: Object, ClassName: class.Name})
	case Function, Constructor:
		// No synthesized receiver; user parameters start at 0.
	}

	for _, param := range subroutine.Parameters {
		tc.scopes.RegisterVariable(Variable{Name: param.Name, Kind: Arg, DataType: param.DataType, ClassName: param.ClassName, Loc: param.Loc})
	}
	for _, local := range subroutine.Locals {
		tc.scopes.RegisterVariable(Variable{Name: local.Name, Kind: Var, DataType: local.DataType, ClassName: local.ClassName, Loc: local.Loc})
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, err
		}
	}

	return true, nil
}

// HandleStatement dispatches to the statement's nested expressions.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch s := stmt.(type) {
	case DoStmt:
		return tc.HandleExpression(s.Call)
	case LetStmt:
		if _, _, err := tc.scopes.ResolveVariable(s.Name); err != nil {
			return false, SemanticError{Loc: s.Loc, Message: fmt.Sprintf("undefined symbol %s", s.Name)}
		}
		if s.Index != nil {
			if _, err := tc.HandleExpression(s.Index); err != nil {
				return false, err
			}
		}
		return tc.HandleExpression(s.Rhs)
	case ReturnStmt:
		if s.Value == nil {
			return true, nil
		}
		return tc.HandleExpression(s.Value)
	case IfStmt:
		if _, err := tc.HandleExpression(s.Cond); err != nil {
			return false, err
		}
		for _, nested := range s.Then {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		for _, nested := range s.Else {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		return true, nil
	case WhileStmt:
		if _, err := tc.HandleExpression(s.Cond); err != nil {
			return false, err
		}
		for _, nested := range s.Body {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("unrecognized statement type '%T'", stmt)
	}
}

// HandleExpression resolves every identifier and call reachable from expr.
func (tc *TypeChecker) HandleExpression(expr Expression) (bool, error) {
	switch e := expr.(type) {
	case IntegerExpr, StringExpr, KeywordConstExpr:
		return true, nil
	case VarExpr:
		if _, _, err := tc.scopes.ResolveVariable(e.Name); err != nil {
			return false, SemanticError{Loc: e.Loc, Message: fmt.Sprintf("undefined symbol %s", e.Name)}
		}
		return true, nil
	case IndexExpr:
		if _, _, err := tc.scopes.ResolveVariable(e.Name); err != nil {
			return false, SemanticError{Loc: e.Loc, Message: fmt.Sprintf("undefined symbol %s", e.Name)}
		}
		return tc.HandleExpression(e.Index)
	case FuncCallExpr:
		return tc.HandleCall(e)
	case UnaryExpr:
		return tc.HandleExpression(e.Operand)
	case BinaryExpr:
		if _, err := tc.HandleExpression(e.Lhs); err != nil {
			return false, err
		}
		return tc.HandleExpression(e.Rhs)
	default:
		return false, fmt.Errorf("unrecognized expression type '%T'", expr)
	}
}

// HandleCall implements the 4-step call resolution algorithm from §4.3:
// method-call-via-receiver-symbol, function-or-constructor-via-class-name,
// implicit-this, then an arity check (parameter types are not enforced).
func (tc *TypeChecker) HandleCall(call FuncCallExpr) (bool, error) {
	for _, arg := range call.Args {
		if _, err := tc.HandleExpression(arg); err != nil {
			return false, err
		}
	}

	var target Subroutine
	var found bool

	switch {
	case call.Receiver == "":
		// 3) No receiver: implicit 'this', resolved on the enclosing class.
		class, ok := tc.classes[tc.scopes.className]
		if !ok {
			return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("unresolved class '%s'", tc.scopes.className)}
		}
		target, found = class.Subroutines.Get(call.Name)

	default:
		if _, recv, err := tc.scopes.ResolveVariable(call.Receiver); err == nil {
			// 1) Receiver resolves to a symbol, its type must be Class(C).
			if recv.DataType != Object || recv.ClassName == "" {
				return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("'%s' is not an object, cannot call '%s' on it", call.Receiver, call.Name)}
			}
			class, ok := tc.classes[recv.ClassName]
			if !ok {
				return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("unresolved class '%s'", recv.ClassName)}
			}
			target, found = class.Subroutines.Get(call.Name)
		} else {
			// 2) Receiver is a class name: look up a function or constructor.
			class, ok := tc.classes[call.Receiver]
			if !ok {
				return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("undefined symbol %s", call.Receiver)}
			}
			target, found = class.Subroutines.Get(call.Name)
			if found && target.Kind == Method {
				return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("'%s.%s' is a method, it requires a receiver instance", call.Receiver, call.Name)}
			}
		}
	}

	if !found {
		return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("undefined subroutine '%s'", call.Name)}
	}

	// 4) Argument count must match the declared parameters.
	if len(call.Args) != len(target.Parameters) {
		return false, SemanticError{Loc: call.Loc, Message: fmt.Sprintf("'%s' expects %d argument(s), got %d", call.Name, len(target.Parameters), len(call.Args))}
	}

	return true, nil
}
