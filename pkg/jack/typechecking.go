package jack

import "fmt"

// The TypeChecker walks a 'jack.Program' the same way the Lowerer does (one DFS pass per
// class, subroutine and statement) but instead of emitting 'vm.Operation(s)' it only verifies
// that every variable reference resolves and that operand types are compatible with one another.
//
// It purposefully does not try to fully reconstruct Jack's type system (e.g. it accepts any
// Object-typed operand as compatible with another Object, rather than checking the class
// hierarchy) since Jack itself performs almost no implicit coercion.
type TypeChecker struct {
	program Program
	scopes  ScopeTable // Keeps track of the scopes and declared variables inside each one
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil || len(tc.program) == 0 {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error handling typecheck of class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Reset the function name after processing

	for _, field := range class.Fields.Entries() {
		if _, err := tc.HandleVarStmt(VarStmt{Vars: []Variable{field}}); err != nil {
			return false, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
	}

	for _, subroutine := range class.Subroutines.Entries() {
		if _, err := tc.HandleSubroutine(subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "this", Type: Parameter, DataType: Object})
	}

	// We add to the current scope also all of the arguments of the subroutine
	for _, arg := range subroutine.Arguments {
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		_, err := tc.HandleExpression(tStmt.FuncCall)
		return err == nil, err
	case VarStmt:
		return tc.HandleVarStmt(tStmt)
	case LetStmt:
		return tc.HandleLetStmt(tStmt)
	case IfStmt:
		return tc.HandleIfStmt(tStmt)
	case WhileStmt:
		return tc.HandleWhileStmt(tStmt)
	case ReturnStmt:
		if tStmt.Expr == nil {
			return true, nil
		}
		_, err := tc.HandleExpression(tStmt.Expr)
		return err == nil, err
	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Specialized function to type-check a 'jack.VarStmt', registering the new declaration(s).
func (tc *TypeChecker) HandleVarStmt(statement VarStmt) (bool, error) {
	for _, variable := range statement.Vars {
		tc.scopes.RegisterVariable(variable)
	}
	return true, nil
}

// Specialized function to type-check a 'jack.LetStmt', verifying the LHS is assignable and
// that the RHS' type is compatible with it.
func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	rhs, err := tc.HandleExpression(statement.Rhs)
	if err != nil {
		return false, fmt.Errorf("error handling RHS expression: %w", err)
	}

	var lhs DataType
	switch expr := statement.Lhs.(type) {
	case VarExpr:
		_, variable, err := tc.scopes.ResolveVariable(expr.Var)
		if err != nil {
			return false, fmt.Errorf("error resolving variable '%s': %w", expr.Var, err)
		}
		lhs = variable.DataType
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(expr.Var); err != nil {
			return false, fmt.Errorf("error resolving array variable '%s': %w", expr.Var, err)
		}
		if _, err := tc.HandleExpression(expr.Index); err != nil {
			return false, fmt.Errorf("error handling array index expression: %w", err)
		}
		return true, nil // Array cells are untyped (any word), no further check possible
	default:
		return false, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}

	if !compatible(lhs, rhs) {
		return false, fmt.Errorf("cannot assign value of type '%s' to variable of type '%s'", rhs, lhs)
	}

	return true, nil
}

// Specialized function to type-check a 'jack.IfStmt', verifying the condition is boolean.
func (tc *TypeChecker) HandleIfStmt(statement IfStmt) (bool, error) {
	condType, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling if condition expression: %w", err)
	}
	if condType != Bool {
		return false, fmt.Errorf("if condition must be of type 'bool', got '%s'", condType)
	}

	for _, stmt := range append(append([]Statement{}, statement.ThenBlock...), statement.ElseBlock...) {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.WhileStmt', verifying the condition is boolean.
func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt) (bool, error) {
	condType, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling while condition expression: %w", err)
	}
	if condType != Bool {
		return false, fmt.Errorf("while condition must be of type 'bool', got '%s'", condType)
	}

	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Generalized function to type-check multiple expression types, returning the DataType it produces.
func (tc *TypeChecker) HandleExpression(expr Expression) (DataType, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		if tExpr.Var == "this" {
			return Object, nil
		}
		_, variable, err := tc.scopes.ResolveVariable(tExpr.Var)
		if err != nil {
			return "", fmt.Errorf("error resolving variable '%s': %w", tExpr.Var, err)
		}
		return variable.DataType, nil

	case LiteralExpr:
		return tExpr.Type, nil

	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			return "", fmt.Errorf("error resolving array variable '%s': %w", tExpr.Var, err)
		}
		if _, err := tc.HandleExpression(tExpr.Index); err != nil {
			return "", fmt.Errorf("error handling array index expression: %w", err)
		}
		return Int, nil // Array cells are conventionally treated as words/ints once loaded

	case UnaryExpr:
		rhs, err := tc.HandleExpression(tExpr.Rhs)
		if err != nil {
			return "", fmt.Errorf("error handling nested expression: %w", err)
		}
		if tExpr.Type == BoolNot && rhs != Bool {
			return "", fmt.Errorf("'~' requires a 'bool' operand, got '%s'", rhs)
		}
		if tExpr.Type == Minus && rhs != Int {
			return "", fmt.Errorf("unary '-' requires an 'int' operand, got '%s'", rhs)
		}
		return rhs, nil

	case BinaryExpr:
		lhs, err := tc.HandleExpression(tExpr.Lhs)
		if err != nil {
			return "", fmt.Errorf("error handling nested LHS expression: %w", err)
		}
		rhs, err := tc.HandleExpression(tExpr.Rhs)
		if err != nil {
			return "", fmt.Errorf("error handling nested RHS expression: %w", err)
		}

		switch tExpr.Type {
		case Plus, Minus, Divide, Multiply:
			if lhs != Int || rhs != Int {
				return "", fmt.Errorf("arithmetic operator requires 'int' operands, got '%s' and '%s'", lhs, rhs)
			}
			return Int, nil
		case BoolOr, BoolAnd:
			if lhs != Bool || rhs != Bool {
				return "", fmt.Errorf("boolean operator requires 'bool' operands, got '%s' and '%s'", lhs, rhs)
			}
			return Bool, nil
		case Equal, LessThan, GreatThan:
			if !compatible(lhs, rhs) {
				return "", fmt.Errorf("comparison operator requires matching operand types, got '%s' and '%s'", lhs, rhs)
			}
			return Bool, nil
		default:
			return "", fmt.Errorf("unrecognized binary expression type: %s", tExpr.Type)
		}

	case FuncCallExpr:
		subroutine, err := tc.resolveSubroutine(tExpr)
		if err != nil {
			return "", err
		}
		for i, arg := range tExpr.Arguments {
			if _, err := tc.HandleExpression(arg); err != nil {
				return "", fmt.Errorf("error handling argument %d of call to '%s': %w", i, tExpr.FuncName, err)
			}
		}
		return subroutine.Return, nil

	default:
		return "", fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// Looks up the 'jack.Subroutine' targeted by a call expression, whether it's a local
// call, a call qualified by an object instance, or a call qualified by a class name.
func (tc *TypeChecker) resolveSubroutine(call FuncCallExpr) (Subroutine, error) {
	if !call.IsExtCall {
		className := splitScope(tc.scopes.GetScope())
		class, exists := tc.program[className]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", className)
		}
		routine, exists := class.Subroutines.Get(call.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", call.FuncName, className)
		}
		return routine, nil
	}

	if _, variable, err := tc.scopes.ResolveVariable(call.Var); err == nil {
		class, exists := tc.program[variable.ClassName]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", variable.ClassName)
		}
		routine, exists := class.Subroutines.Get(call.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", call.FuncName, variable.ClassName)
		}
		return routine, nil
	}

	class, exists := tc.program[call.Var]
	if !exists {
		return Subroutine{}, fmt.Errorf("class definition not found for '%s'", call.Var)
	}
	routine, exists := class.Subroutines.Get(call.FuncName)
	if !exists {
		return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", call.FuncName, call.Var)
	}
	return routine, nil
}

func splitScope(scope string) string {
	for i := 0; i < len(scope); i++ {
		if scope[i] == '.' {
			return scope[:i]
		}
	}
	return scope
}

// compatible reports whether a value of type 'from' may be used where 'to' is expected.
// Any object reference may stand in for another (Jack does not check class hierarchies
// at this level) and 'null' may be assigned to or compared against any object.
func compatible(to, from DataType) bool {
	if to == from {
		return true
	}
	if (to == Object && from == Null) || (to == Null && from == Object) {
		return true
	}
	return to == Object && from == Object
}
