// Package sema implements semantic analysis for the hammer scripting
// language: scope construction, symbol resolution and capture detection,
// and the node-id-keyed side tables [irbuild] consumes instead of mutating
// the AST directly.
package sema

import (
	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/strtable"
)

// ExprType classifies an expression's static value-producing behavior.
type ExprType int

const (
	// TypeNone is assigned to nodes that never produce a usable value
	// (e.g. an empty block's tail).
	TypeNone ExprType = iota
	// TypeValue is the ordinary case: the expression evaluates to a value.
	TypeValue
	// TypeNever marks an expression that never completes normally — its
	// evaluation always returns, breaks, or continues out of it. The
	// analyzer records it for return, break and continue statements.
	TypeNever
)

// Table holds the result of analyzing one module: its scope tree, its
// symbol table, and node-id-keyed side tables for symbol and type
// information, plus any diagnostics raised along the way.
type Table struct {
	Strings *strtable.Table

	Scopes  []Scope
	Symbols []Symbol

	NodeSymbol map[ast.NodeID]SymbolID
	NodeType   map[ast.NodeID]ExprType

	Diagnostics Diagnostics
}

// Symbol returns the Symbol with the given id.
func (t *Table) Symbol(id SymbolID) *Symbol { return &t.Symbols[id-1] }

// Scope returns the Scope with the given id.
func (t *Table) Scope(id ScopeID) *Scope { return &t.Scopes[id] }

// SymbolFor returns the symbol bound to the given node, if any — resolved
// identifier references and declaring nodes both carry an entry.
func (t *Table) SymbolFor(id ast.NodeID) (*Symbol, bool) {
	sid, ok := t.NodeSymbol[id]
	if !ok {
		return nil, false
	}
	return t.Symbol(sid), true
}

// TypeFor returns the static expression type recorded for the given node,
// defaulting to TypeValue for nodes the analyzer never annotated.
func (t *Table) TypeFor(id ast.NodeID) ExprType {
	if ty, ok := t.NodeType[id]; ok {
		return ty
	}
	return TypeValue
}

type analyzer struct {
	tab *Table

	// globals interns one implicit SymGlobal symbol per distinct name,
	// since the same unresolved identifier used twice should refer to
	// the same logical global binding.
	globals map[strtable.Handle]SymbolID

	loopDepth int
}

// Analyze walks mod and returns its scope/symbol tables and diagnostics.
// It never panics on a malformed program; analysis continues best-effort
// and the caller inspects Table.Diagnostics.HasErrors() before proceeding
// to [irbuild].
func Analyze(mod *ast.Module, strings *strtable.Table) *Table {
	tab := &Table{
		Strings:    strings,
		NodeSymbol: make(map[ast.NodeID]SymbolID),
		NodeType:   make(map[ast.NodeID]ExprType),
	}
	a := &analyzer{tab: tab, globals: make(map[strtable.Handle]SymbolID)}

	globalID := a.pushScope(ScopeID(0), ScopeID(0), ScopeGlobal)
	fileID := a.pushScope(globalID, ScopeID(0), ScopeFile)

	a.hoistModuleFuncs(mod, fileID)
	for _, item := range mod.Items {
		a.analyzeItem(item, fileID)
	}
	return tab
}

// pushScope creates a new scope. fn must be the ID of the nearest enclosing
// scope that defines a function boundary (the Parameters scope of the
// innermost function, or the scope's own ID when it IS that boundary); see
// [Scope.Func] for how this drives capture detection.
func (a *analyzer) pushScope(parent, fn ScopeID, kind ScopeKind) ScopeID {
	id := ScopeID(len(a.tab.Scopes))
	a.tab.Scopes = append(a.tab.Scopes, newScope(id, parent, fn, kind))
	return id
}

func (a *analyzer) declare(scopeID ScopeID, name strtable.Handle, kind SymbolKind, decl ast.NodeID, active bool) SymbolID {
	scope := a.tab.Scope(scopeID)
	id := SymbolID(len(a.tab.Symbols) + 1)
	a.tab.Symbols = append(a.tab.Symbols, Symbol{
		ID: id, Name: name, Kind: kind, Scope: scopeID, Decl: decl, Active: active,
	})
	scope.names[name] = id
	a.tab.NodeSymbol[decl] = id
	return id
}

// resolve looks up name starting at scopeID and walking the parent chain.
// If found in an ancestor whose Func differs from the referencing scope's
// Func, the symbol is marked Captured. An unresolved name is treated as an
// implicit global.
func (a *analyzer) resolve(scopeID ScopeID, name strtable.Handle) SymbolID {
	referencingFunc := a.tab.Scope(scopeID).Func
	for s := scopeID; ; {
		scope := a.tab.Scope(s)
		if sid, ok := scope.names[name]; ok {
			if scope.Func != referencingFunc {
				a.tab.Symbol(sid).Captured = true
			}
			return sid
		}
		if scope.Parent == s {
			break
		}
		s = scope.Parent
	}
	if sid, ok := a.globals[name]; ok {
		return sid
	}
	sid := a.declare(ScopeID(0), name, SymGlobal, ast.InvalidNodeID, true)
	a.globals[name] = sid
	return sid
}

// hoistModuleFuncs pre-declares every top-level function so mutual
// recursion and forward references resolve; function bindings are active
// throughout their enclosing scope per spec.md §3.
func (a *analyzer) hoistModuleFuncs(mod *ast.Module, fileID ScopeID) {
	for _, item := range mod.Items {
		if fn, ok := item.(*ast.FuncItem); ok {
			name := a.tab.Strings.Intern(fn.Name)
			a.declare(fileID, name, SymModule, fn.ID(), true)
		}
	}
}

func (a *analyzer) analyzeItem(item ast.Item, fileID ScopeID) {
	switch it := item.(type) {
	case *ast.FuncItem:
		a.analyzeFuncBody(it.Params, it.Body, fileID)
	case *ast.VarItem:
		a.analyzeExpr(it.Value, fileID)
		name := a.tab.Strings.Intern(it.Name.Value)
		sid := a.declare(fileID, name, SymModule, it.Name.ID(), true)
		a.tab.NodeSymbol[it.ID()] = sid
	case *ast.ImportItem:
		name := a.tab.Strings.Intern(it.Name)
		a.declare(fileID, name, SymModule, it.ID(), true)
	}
}

// analyzeFuncBody analyzes a function's parameter list and body. A binding
// for the function's own name (for self-recursion) is declared by the
// caller in the enclosing scope beforehand, as [hoistModuleFuncs] does
// for module functions.
func (a *analyzer) analyzeFuncBody(params []*ast.Identifier, body *ast.BlockExpr, enclosing ScopeID) {
	paramScope := a.pushScope(enclosing, ScopeID(0), ScopeParameters)
	a.tab.Scope(paramScope).Func = paramScope
	for _, p := range params {
		name := a.tab.Strings.Intern(p.Value)
		a.declare(paramScope, name, SymParameter, p.ID(), true)
	}

	bodyScope := a.pushScope(paramScope, paramScope, ScopeFunctionBody)
	a.analyzeBlockInScope(body, bodyScope)
}

func (a *analyzer) analyzeExpr(expr ast.Expression, scopeID ScopeID) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ast.Identifier:
		name := a.tab.Strings.Intern(e.Value)
		sid := a.resolve(scopeID, name)
		a.tab.NodeSymbol[e.ID()] = sid

	case *ast.IntegerLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.BoolLiteral, *ast.NullLiteral:
		// leaves, nothing to resolve

	case *ast.FormatExpr:
		for _, part := range e.Parts {
			a.analyzeExpr(part.Expr, scopeID)
		}

	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			a.analyzeExpr(el, scopeID)
		}
	case *ast.TupleLiteral:
		for _, el := range e.Elements {
			a.analyzeExpr(el, scopeID)
		}
	case *ast.SetLiteral:
		for _, el := range e.Elements {
			a.analyzeExpr(el, scopeID)
		}
	case *ast.RecordLiteral:
		for _, f := range e.Fields {
			a.analyzeExpr(f.Value, scopeID)
		}
	case *ast.MapLiteral:
		for _, p := range e.Pairs {
			a.analyzeExpr(p.Key, scopeID)
			a.analyzeExpr(p.Value, scopeID)
		}

	case *ast.PrefixExpr:
		a.analyzeExpr(e.Right, scopeID)
	case *ast.InfixExpr:
		a.analyzeExpr(e.Left, scopeID)
		a.analyzeExpr(e.Right, scopeID)
	case *ast.LogicalExpr:
		a.analyzeExpr(e.Left, scopeID)
		a.analyzeExpr(e.Right, scopeID)
	case *ast.AssignExpr:
		a.analyzeAssignTarget(e.Target, scopeID)
		a.analyzeExpr(e.Value, scopeID)

	case *ast.IfExpr:
		a.analyzeExpr(e.Cond, scopeID)
		thenScope := a.pushScope(scopeID, a.tab.Scope(scopeID).Func, ScopeBlock)
		a.analyzeBlockInScope(e.Then, thenScope)
		switch alt := e.Else.(type) {
		case nil:
		case *ast.IfExpr:
			a.analyzeExpr(alt, scopeID)
		case *ast.BlockExpr:
			elseScope := a.pushScope(scopeID, a.tab.Scope(scopeID).Func, ScopeBlock)
			a.analyzeBlockInScope(alt, elseScope)
		}

	case *ast.BlockExpr:
		blockScope := a.pushScope(scopeID, a.tab.Scope(scopeID).Func, ScopeBlock)
		a.analyzeBlockInScope(e, blockScope)

	case *ast.FuncLiteral:
		// The function's own name (if any) is visible only within its
		// body, to support direct recursion without polluting the
		// enclosing scope.
		paramScope := a.pushScope(scopeID, ScopeID(0), ScopeParameters)
		a.tab.Scope(paramScope).Func = paramScope
		for _, p := range e.Params {
			name := a.tab.Strings.Intern(p.Value)
			a.declare(paramScope, name, SymParameter, p.ID(), true)
		}
		bodyScope := a.pushScope(paramScope, paramScope, ScopeFunctionBody)
		if e.Name != "" {
			name := a.tab.Strings.Intern(e.Name)
			a.declare(bodyScope, name, SymLocal, e.ID(), true)
		}
		a.analyzeBlockInScope(e.Body, bodyScope)

	case *ast.CallExpr:
		a.analyzeExpr(e.Callee, scopeID)
		for _, arg := range e.Args {
			a.analyzeExpr(arg, scopeID)
		}
	case *ast.IndexExpr:
		a.analyzeExpr(e.Left, scopeID)
		a.analyzeExpr(e.Index, scopeID)
	case *ast.FieldExpr:
		a.analyzeExpr(e.Left, scopeID)
	}
}

// analyzeAssignTarget resolves an lvalue without treating it as a fresh
// read-before-declared use; identifiers still resolve through the normal
// scope chain since hammer has no separate assignment-target binding form.
func (a *analyzer) analyzeAssignTarget(target ast.Expression, scopeID ScopeID) {
	switch t := target.(type) {
	case *ast.Identifier:
		a.analyzeExpr(t, scopeID)
	case *ast.IndexExpr:
		a.analyzeExpr(t, scopeID)
	case *ast.FieldExpr:
		a.analyzeExpr(t, scopeID)
	default:
		a.analyzeExpr(target, scopeID)
	}
}

// analyzeBlockInScope walks a block's statements and tail expression using
// an already-created scope (the caller decides the scope's kind).
func (a *analyzer) analyzeBlockInScope(block *ast.BlockExpr, scopeID ScopeID) {
	for _, stmt := range block.Statements {
		a.analyzeStmt(stmt, scopeID)
	}
	if block.Tail != nil {
		a.analyzeExpr(block.Tail, scopeID)
		a.tab.NodeType[block.ID()] = a.tab.TypeFor(block.Tail.ID())
	} else {
		a.tab.NodeType[block.ID()] = TypeNone
	}
}

func (a *analyzer) analyzeStmt(stmt ast.Statement, scopeID ScopeID) {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		a.analyzeExpr(s.Value, scopeID)
		name := a.tab.Strings.Intern(s.Name.Value)
		sid := a.declare(scopeID, name, SymLocal, s.Name.ID(), true)
		a.tab.NodeSymbol[s.ID()] = sid

	case *ast.ExprStmt:
		a.analyzeExpr(s.Expression, scopeID)

	case *ast.ReturnStmt:
		a.analyzeExpr(s.Value, scopeID)
		a.tab.NodeType[s.ID()] = TypeNever

	case *ast.BreakStmt:
		if a.loopDepth == 0 {
			a.tab.Diagnostics.Report(LevelError, SourceRange{Line: s.Tok.Line, Column: s.Tok.Column}, "break outside of a loop")
		}
		a.tab.NodeType[s.ID()] = TypeNever

	case *ast.ContinueStmt:
		if a.loopDepth == 0 {
			a.tab.Diagnostics.Report(LevelError, SourceRange{Line: s.Tok.Line, Column: s.Tok.Column}, "continue outside of a loop")
		}
		a.tab.NodeType[s.ID()] = TypeNever

	case *ast.WhileStmt:
		a.analyzeExpr(s.Cond, scopeID)
		loopScope := a.pushScope(scopeID, a.tab.Scope(scopeID).Func, ScopeLoopBody)
		a.loopDepth++
		a.analyzeBlockInScope(s.Body, loopScope)
		a.loopDepth--

	case *ast.ForStmt:
		declScope := a.pushScope(scopeID, a.tab.Scope(scopeID).Func, ScopeForStmtDecls)
		if s.Init != nil {
			a.analyzeStmt(s.Init, declScope)
		}
		if s.Cond != nil {
			a.analyzeExpr(s.Cond, declScope)
		}
		loopScope := a.pushScope(declScope, a.tab.Scope(declScope).Func, ScopeLoopBody)
		a.loopDepth++
		a.analyzeBlockInScope(s.Body, loopScope)
		if s.Post != nil {
			a.analyzeStmt(s.Post, declScope)
		}
		a.loopDepth--
	}
}
