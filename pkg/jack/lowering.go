package jack

import (
	"fmt"
	"sort"

	"its-hmny.dev/nand2tetris/pkg/utils"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Lowerer

// The Lowerer takes a 'jack.Program' and produces its 'vm.Program' counterpart.
//
// Since we get a tree-like struct we are able to traverse it using a Depth First Search (DFS) algorithm
// on it. For each operation node visited we produce a list of 'vm.Operation' as counterpart as well as
// validating the input before proceeding with the processing.
type Lowerer struct {
	program utils.OrderedMap[string, Class] // The program to lower, it must be not nil nor empty
	scopes  ScopeTable                      // Keeps track of the scopes and declared variables inside each one
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	// ? Why do we convert from a jack.Program (a map[string]Class) to an OrderedMap[string, Class]?
	// Without doing this is impossible to have reproducible builds (and also meaningful test cases) because
	// the Go built-in map is not ordered and non-deterministic, so the order of iteration of the classes can
	// change on different runs. Iterating in sorted-by-name order keeps the emitted VM text reproducible.
	classes := []utils.MapEntry[string, Class]{}
	for _, class := range p {
		classes = append(classes, utils.MapEntry[string, Class]{Key: class.Name, Value: class})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Key < classes[j].Key })

	return Lowerer{program: utils.NewOrderedMapFromList(classes), scopes: ScopeTable{}}
}

// Triggers the lowering process. It iterates class by class and then statement by statement
// and recursively calling the necessary helper function based on the construct type (much like
// a recursive descent parser but for lowering), this means the AST is visited in DFS order.
func (l *Lowerer) Lower() (vm.Program, error) {
	if l.program.Size() == 0 {
		return nil, fmt.Errorf("the given 'program' is empty or nil")
	}

	program := vm.Program{}
	for _, entry := range l.program.Entries() {
		commands, err := l.HandleClass(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("error handling lowering of class '%s': %w", entry.Key, err)
		}
		program[entry.Key] = toModule(entry.Key, commands)
	}

	return program, nil
}

// toModule pairs each emitted Operation with a synthetic Source, since Jack
// source positions don't map 1:1 onto the emitted VM commands.
func toModule(class string, ops []vm.Operation) vm.Module {
	mod := make(vm.Module, 0, len(ops))
	for _, op := range ops {
		mod = append(mod, vm.Command{Op: op, Source: vm.Source{Module: class}})
	}
	return mod
}

// Specialized function to convert a 'jack.Class' node to a list of 'vm.Operation'.
func (l *Lowerer) HandleClass(class Class) ([]vm.Operation, error) {
	l.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer l.scopes.PopClassScope()      // Reset the scope after processing

	for _, entry := range class.Vars.Entries() {
		l.scopes.RegisterVariable(entry.Value)
	}

	operations := []vm.Operation{}
	for _, entry := range class.Subroutines.Entries() {
		ops, err := l.HandleSubroutine(class, entry.Value)
		if err != nil {
			return nil, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", entry.Value.Name, class.Name, err)
		}
		operations = append(operations, ops...)
	}

	return operations, nil
}

// Specialized function to convert a 'jack.Subroutine' node to a list of 'vm.Operation'.
func (l *Lowerer) HandleSubroutine(class Class, subroutine Subroutine) ([]vm.Operation, error) {
	l.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine being processed
	defer l.scopes.PopSubroutineScope()           // Reset the scope after processing

	if subroutine.Kind == Method {
		// Argument 0 is the synthesized receiver; user parameters start at 1.
		l.scopes.RegisterVariable(Variable{Name: "this", Kind: This, DataType: Object, ClassName: class.Name})
	}

	for _, param := range subroutine.Parameters {
		l.scopes.RegisterVariable(Variable{Name: param.Name, Kind: Arg, DataType: param.DataType, ClassName: param.ClassName, Loc: param.Loc})
	}
	for _, local := range subroutine.Locals {
		l.scopes.RegisterVariable(Variable{Name: local.Name, Kind: Var, DataType: local.DataType, ClassName: local.ClassName, Loc: local.Loc})
	}

	body := []vm.Operation{}
	for _, stmt := range subroutine.Statements {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling nested statement %T': %w", stmt, err)
		}
		body = append(body, ops...)
	}

	decl := vm.FuncDecl{Name: fmt.Sprintf("%s.%s", class.Name, subroutine.Name), NLocal: uint8(len(subroutine.Locals))}

	switch subroutine.Kind {
	case Constructor:
		// By convention constructors allocate their own backing memory, one word per field.
		var nFields uint16
		for _, entry := range class.Vars.Entries() {
			if entry.Value.Kind == Field {
				nFields++
			}
		}
		prelude := []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: nFields},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}
		return append(append([]vm.Operation{decl}, prelude...), body...), nil

	case Method:
		// The caller pushes the receiver as argument 0; set 'this' from it.
		prelude := []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}
		return append(append([]vm.Operation{decl}, prelude...), body...), nil

	default: // Function
		return append([]vm.Operation{decl}, body...), nil
	}
}

// Generalized function to lower multiple statements types returning a 'vm.Operation' list.
func (l *Lowerer) HandleStatement(stmt Statement) ([]vm.Operation, error) {
	switch s := stmt.(type) {
	case DoStmt:
		return l.HandleDoStmt(s)
	case LetStmt:
		return l.HandleLetStmt(s)
	case IfStmt:
		return l.HandleIfStmt(s)
	case WhileStmt:
		return l.HandleWhileStmt(s)
	case ReturnStmt:
		return l.HandleReturnStmt(s)
	default:
		return nil, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Specialized function to convert a 'jack.DoStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleDoStmt(statement DoStmt) ([]vm.Operation, error) {
	ops, err := l.HandleFuncCallExpr(statement.Call)
	if err != nil {
		return nil, fmt.Errorf("error handling nested function call expression: %w", err)
	}

	// Do statements discard the returned value.
	return append(ops, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

// segmentOf maps a resolved Variable's Kind to the VM memory segment it lives in.
func segmentOf(kind VarKind) (vm.SegmentType, error) {
	switch kind {
	case Var:
		return vm.Local, nil
	case Arg:
		return vm.Argument, nil
	case Field:
		return vm.This, nil
	case Static:
		return vm.Static, nil
	default:
		return "", fmt.Errorf("variable kind '%s' is not a readable/writable segment", kind)
	}
}

// Specialized function to convert a 'jack.LetStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleLetStmt(statement LetStmt) ([]vm.Operation, error) {
	offset, variable, err := l.scopes.ResolveVariable(statement.Name)
	if err != nil {
		return nil, fmt.Errorf("error resolving variable '%s': %w", statement.Name, err)
	}
	segment, err := segmentOf(variable.Kind)
	if err != nil {
		return nil, err
	}

	rhsOps, err := l.HandleExpression(statement.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling RHS expression: %w", err)
	}

	if statement.Index == nil { // Plain 'let name = e'
		return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: segment, Offset: offset}), nil
	}

	// 'let name[i] = e': push base, push index, add, save the address in 'pointer 1',
	// then (after evaluating the RHS) pop into 'that 0'. The RHS is saved to 'temp 0'
	// first so it survives the base/index evaluation that follows.
	indexOps, err := l.HandleExpression(statement.Index)
	if err != nil {
		return nil, fmt.Errorf("error handling index expression: %w", err)
	}

	ops := append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0})
	ops = append(ops, vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset})
	ops = append(ops, indexOps...)
	ops = append(ops,
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
	)
	return ops, nil
}

// Specialized function to convert a 'jack.IfStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleIfStmt(statement IfStmt) ([]vm.Operation, error) {
	condOps, err := l.HandleExpression(statement.Cond)
	if err != nil {
		return nil, fmt.Errorf("error handling if condition expression: %w", err)
	}

	thenOps, err := l.handleBlock(statement.Then)
	if err != nil {
		return nil, fmt.Errorf("error handling 'then' block: %w", err)
	}
	elseOps, err := l.handleBlock(statement.Else)
	if err != nil {
		return nil, fmt.Errorf("error handling 'else' block: %w", err)
	}

	ifFalse, ifEnd := l.scopes.NextLabel("IF_FALSE"), l.scopes.NextLabel("IF_END")

	ops := append(condOps, vm.ArithmeticOp{Operation: vm.Not}, vm.GotoOp{Jump: vm.Conditional, Label: ifFalse})
	ops = append(ops, thenOps...)
	ops = append(ops, vm.GotoOp{Jump: vm.Unconditional, Label: ifEnd}, vm.LabelDecl{Name: ifFalse})
	ops = append(ops, elseOps...)
	ops = append(ops, vm.LabelDecl{Name: ifEnd})
	return ops, nil
}

// Specialized function to convert a 'jack.WhileStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleWhileStmt(statement WhileStmt) ([]vm.Operation, error) {
	condOps, err := l.HandleExpression(statement.Cond)
	if err != nil {
		return nil, fmt.Errorf("error handling while condition expression: %w", err)
	}
	bodyOps, err := l.handleBlock(statement.Body)
	if err != nil {
		return nil, fmt.Errorf("error handling while body: %w", err)
	}

	start, end := l.scopes.NextLabel("WHILE_START"), l.scopes.NextLabel("WHILE_END")

	ops := []vm.Operation{vm.LabelDecl{Name: start}}
	ops = append(ops, condOps...)
	ops = append(ops, vm.ArithmeticOp{Operation: vm.Not}, vm.GotoOp{Jump: vm.Conditional, Label: end})
	ops = append(ops, bodyOps...)
	ops = append(ops, vm.GotoOp{Jump: vm.Unconditional, Label: start}, vm.LabelDecl{Name: end})
	return ops, nil
}

func (l *Lowerer) handleBlock(stmts []Statement) ([]vm.Operation, error) {
	ops := []vm.Operation{}
	for _, stmt := range stmts {
		stmtOps, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, err
		}
		ops = append(ops, stmtOps...)
	}
	return ops, nil
}

// Specialized function to convert a 'jack.ReturnStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleReturnStmt(statement ReturnStmt) ([]vm.Operation, error) {
	if statement.Value == nil {
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	ops, err := l.HandleExpression(statement.Value)
	if err != nil {
		return nil, fmt.Errorf("error handling return expression: %w", err)
	}
	return append(ops, vm.ReturnOp{}), nil
}

// Generalized function to lower multiple expression types returning a 'vm.Operation' list.
func (l *Lowerer) HandleExpression(expr Expression) ([]vm.Operation, error) {
	switch e := expr.(type) {
	case IntegerExpr:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: e.Value}}, nil
	case StringExpr:
		return l.HandleStringExpr(e)
	case KeywordConstExpr:
		return l.HandleKeywordConstExpr(e)
	case VarExpr:
		return l.HandleVarExpr(e)
	case IndexExpr:
		return l.HandleIndexExpr(e)
	case UnaryExpr:
		return l.HandleUnaryExpr(e)
	case BinaryExpr:
		return l.HandleBinaryExpr(e)
	case FuncCallExpr:
		return l.HandleFuncCallExpr(e)
	default:
		return nil, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// Specialized function to convert a string literal term into a 'String.new' +
// per-byte 'String.appendChar' chain (see §4.4).
func (l *Lowerer) HandleStringExpr(expression StringExpr) ([]vm.Operation, error) {
	ops := []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(expression.Value))},
		vm.FuncCallOp{Name: "String.new", NArgs: 1},
	}
	for _, b := range []byte(expression.Value) {
		ops = append(ops,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(b)},
			vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		)
	}
	return ops, nil
}

// Specialized function to convert a keyword constant term (true/false/null/this).
func (l *Lowerer) HandleKeywordConstExpr(expression KeywordConstExpr) ([]vm.Operation, error) {
	switch expression.Kind {
	case KeywordTrue:
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
			vm.ArithmeticOp{Operation: vm.Neg},
		}, nil
	case KeywordFalse, KeywordNull:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil
	case KeywordThis:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	default:
		return nil, fmt.Errorf("unrecognized keyword constant: %s", expression.Kind)
	}
}

// Specialized function to convert a 'jack.VarExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleVarExpr(expression VarExpr) ([]vm.Operation, error) {
	offset, variable, err := l.scopes.ResolveVariable(expression.Name)
	if err != nil {
		return nil, fmt.Errorf("error resolving variable '%s': %w", expression.Name, err)
	}
	if variable.Kind == This {
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	}
	segment, err := segmentOf(variable.Kind)
	if err != nil {
		return nil, err
	}
	return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset}}, nil
}

// Specialized function to convert a 'jack.IndexExpr' (a[e]) to a list of 'vm.Operation'.
func (l *Lowerer) HandleIndexExpr(expression IndexExpr) ([]vm.Operation, error) {
	baseOps, err := l.HandleVarExpr(VarExpr{Name: expression.Name, Loc: expression.Loc})
	if err != nil {
		return nil, fmt.Errorf("error handling base variable expression: %w", err)
	}
	indexOps, err := l.HandleExpression(expression.Index)
	if err != nil {
		return nil, fmt.Errorf("error handling index expression: %w", err)
	}

	ops := append(baseOps, indexOps...)
	ops = append(ops,
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	)
	return ops, nil
}

// Specialized function to convert a 'jack.UnaryExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleUnaryExpr(expression UnaryExpr) ([]vm.Operation, error) {
	ops, err := l.HandleExpression(expression.Operand)
	if err != nil {
		return nil, fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Op {
	case UnaryNeg:
		return append(ops, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case UnaryNot:
		return append(ops, vm.ArithmeticOp{Operation: vm.Not}), nil
	default:
		return nil, fmt.Errorf("unrecognized unary operator: %s", expression.Op)
	}
}

var binaryArithOps = map[ExprType]vm.ArithOpType{
	Plus: vm.Add, Minus: vm.Sub, BoolAnd: vm.And, BoolOr: vm.Or,
	LessThan: vm.Lt, GreatThan: vm.Gt, Equal: vm.Eq,
}

// Specialized function to convert a 'jack.BinaryExpr' to a list of 'vm.Operation'.
//
// write_expr(lhs, rhs) emits lhs, then (if rhs present) recursively emits rhs
// followed by the operator; the grammar is flat so this is just lhs ops, rhs
// ops, operator, with no precedence climbing (see the Parser's flat grammar).
func (l *Lowerer) HandleBinaryExpr(expression BinaryExpr) ([]vm.Operation, error) {
	lhsOps, err := l.HandleExpression(expression.Lhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested LHS expression: %w", err)
	}
	rhsOps, err := l.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested RHS expression: %w", err)
	}
	ops := append(lhsOps, rhsOps...)

	switch expression.Op {
	case Multiply:
		return append(ops, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case Divide:
		return append(ops, vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	default:
		arith, ok := binaryArithOps[expression.Op]
		if !ok {
			return nil, fmt.Errorf("unrecognized binary operator: %s", expression.Op)
		}
		return append(ops, vm.ArithmeticOp{Operation: arith}), nil
	}
}

// Specialized function to convert a 'jack.FuncCallExpr' to a list of 'vm.Operation',
// implementing the 4-step call resolution algorithm from §4.3.
func (l *Lowerer) HandleFuncCallExpr(expression FuncCallExpr) ([]vm.Operation, error) {
	argsOps := []vm.Operation{}
	for _, arg := range expression.Args {
		ops, err := l.HandleExpression(arg)
		if err != nil {
			return nil, fmt.Errorf("error handling argument expression: %w", err)
		}
		argsOps = append(argsOps, ops...)
	}
	nArgs := uint8(len(expression.Args))

	if expression.Receiver == "" {
		// 3) No receiver: implicit 'this', resolved on the enclosing class.
		className := l.currentClass()
		class, ok := l.program.Get(className)
		if !ok {
			return nil, fmt.Errorf("class definition not found for '%s'", className)
		}
		routine, ok := class.Subroutines.Get(expression.Name)
		if !ok {
			return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.Name, className)
		}

		fName := fmt.Sprintf("%s.%s", className, expression.Name)
		if routine.Kind == Method {
			thisOp := vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}
			return append(append([]vm.Operation{thisOp}, argsOps...), vm.FuncCallOp{Name: fName, NArgs: nArgs + 1}), nil
		}
		return append(argsOps, vm.FuncCallOp{Name: fName, NArgs: nArgs}), nil
	}

	if _, variable, err := l.scopes.ResolveVariable(expression.Receiver); err == nil {
		// 1) Receiver resolves to a symbol: require its type to be Class(C).
		if variable.DataType != Object || variable.ClassName == "" {
			return nil, fmt.Errorf("variable '%s' is not an object", expression.Receiver)
		}

		recvOps, err := l.HandleVarExpr(VarExpr{Name: expression.Receiver, Loc: expression.Loc})
		if err != nil {
			return nil, fmt.Errorf("error handling receiver variable expression: %w", err)
		}

		fName := fmt.Sprintf("%s.%s", variable.ClassName, expression.Name)
		return append(append(recvOps, argsOps...), vm.FuncCallOp{Name: fName, NArgs: nArgs + 1}), nil
	}

	// 2) Receiver is taken as a class name: look up a function or constructor.
	class, ok := l.program.Get(expression.Receiver)
	if !ok {
		return nil, fmt.Errorf("class definition not found for '%s'", expression.Receiver)
	}
	routine, ok := class.Subroutines.Get(expression.Name)
	if !ok {
		return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.Name, class.Name)
	}
	if routine.Kind == Method {
		return nil, fmt.Errorf("'%s.%s' is a method, it requires a receiver instance", class.Name, expression.Name)
	}

	fName := fmt.Sprintf("%s.%s", class.Name, expression.Name)
	return append(argsOps, vm.FuncCallOp{Name: fName, NArgs: nArgs}), nil
}

// currentClass extracts the class name from the active scope ("Class.Subroutine" or "Class.Global").
func (l *Lowerer) currentClass() string {
	scope := l.scopes.GetScope()
	for i, c := range scope {
		if c == '.' {
			return scope[:i]
		}
	}
	return scope
}
