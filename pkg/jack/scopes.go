package jack

import (
	"fmt"
	"strings"

	"nand2go.dev/toolchain/pkg/utils"
)

type Scope struct {
	name    string
	entries utils.Stack[Variable]
}

type ScopeTable struct {
	static utils.Stack[Variable]

	local     Scope
	field     Scope
	parameter Scope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{
		static:    utils.Stack[Variable]{},
		local:     Scope{},
		field:     Scope{},
		parameter: Scope{},
	}
}

func (st *ScopeTable) PushClassScope(class string) {
	newScope := fmt.Sprintf("%s.Global", class)
	st.field = Scope{name: newScope, entries: utils.Stack[Variable]{}}
}

func (st *ScopeTable) PopClassScope() { st.field = Scope{} }

func (st *ScopeTable) PushSubRoutineScope(method string) {
	newScope := strings.ReplaceAll(st.GetScope(), "Global", method)
	st.local = Scope{name: newScope, entries: utils.Stack[Variable]{}}
	st.parameter = Scope{name: newScope, entries: utils.Stack[Variable]{}}
}

func (st *ScopeTable) PopSubroutineScope() { st.local, st.parameter = Scope{}, Scope{} }

func (st *ScopeTable) GetScope() string {
	if st.local.name != "" && st.parameter.name != "" {
		return st.local.name
	}

	if st.field.name != "" {
		return st.field.name
	}

	return "Global"
}

// scopeFor returns the stack backing variables of the given kind, so the kind -> stack
// mapping lives in one place instead of being re-derived by every caller that needs it.
func (st *ScopeTable) scopeFor(t VarType) *utils.Stack[Variable] {
	switch t {
	case Local:
		return &st.local.entries
	case Field:
		return &st.field.entries
	case Parameter:
		return &st.parameter.entries
	case Static:
		return &st.static
	default:
		return nil
	}
}

func (st *ScopeTable) RegisterVariable(new Variable) {
	if scope := st.scopeFor(new.Type); scope != nil {
		scope.Push(new)
	}
}

// shadowingOrder lists the variable kinds in the precedence a bare name reference should
// resolve them: locals and parameters shadow a same-named field, which in turn shadows a
// same-named static.
var shadowingOrder = []VarType{Local, Parameter, Field, Static}

func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	for _, kind := range shadowingOrder {
		for idx, entry := range st.scopeFor(kind).Iterator() {
			if entry.Name == name {
				return uint16(idx), entry, nil
			}
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}
