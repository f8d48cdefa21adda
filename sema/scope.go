package sema

import (
	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/strtable"
)

// ScopeKind tags the lexical purpose of a [Scope], per spec.md §3.
type ScopeKind int

const (
	// ScopeGlobal is the single root scope shared by every module loaded
	// into one runtime, holding host-provided and cross-module bindings.
	ScopeGlobal ScopeKind = iota
	// ScopeFile holds a module's own top-level items.
	ScopeFile
	// ScopeParameters holds a function's parameter bindings.
	ScopeParameters
	// ScopeForStmtDecls holds a for-statement's init-clause binding.
	ScopeForStmtDecls
	// ScopeFunctionBody is a function literal or item's body block.
	ScopeFunctionBody
	// ScopeLoopBody is a while/for loop's body block.
	ScopeLoopBody
	// ScopeBlock is any other brace-delimited block.
	ScopeBlock
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "Global"
	case ScopeFile:
		return "File"
	case ScopeParameters:
		return "Parameters"
	case ScopeForStmtDecls:
		return "ForStmtDecls"
	case ScopeFunctionBody:
		return "FunctionBody"
	case ScopeLoopBody:
		return "LoopBody"
	case ScopeBlock:
		return "Block"
	default:
		return "?"
	}
}

// ScopeID identifies a [Scope] within a [Table] by its index in
// Table.Scopes. ID 0 is the Global scope, which Analyze creates first.
type ScopeID uint32

// Scope is one node of the lexical scope tree built during analysis.
type Scope struct {
	ID     ScopeID
	Kind   ScopeKind
	Parent ScopeID

	// Func is the ID of the innermost enclosing function's
	// ScopeParameters scope (the Scope's own ID if it is that scope),
	// used to decide whether a
	// resolved symbol crosses a function boundary and must be captured.
	// Zero at global/file scope, which owns no function.
	Func ScopeID

	names map[strtable.Handle]SymbolID
}

func newScope(id, parent, fn ScopeID, kind ScopeKind) Scope {
	return Scope{ID: id, Kind: kind, Parent: parent, Func: fn, names: make(map[strtable.Handle]SymbolID)}
}

// SymbolKind classifies a [Symbol]'s storage class, per spec.md §3.
type SymbolKind int

const (
	// SymParameter is a function parameter.
	SymParameter SymbolKind = iota
	// SymLocal is a local variable, constant, or named function binding.
	SymLocal
	// SymModule is a module-scope (top-level) binding.
	SymModule
	// SymGlobal is an implicit binding resolved against the host's global
	// namespace at runtime — hammer has no declaration syntax for these;
	// any identifier that resolves to nothing in the lexical scope chain
	// falls back to a SymGlobal reference (spec.md §4.4's `LoadGlobal
	// <name>` opcode exists for exactly this case).
	SymGlobal
)

func (k SymbolKind) String() string {
	switch k {
	case SymParameter:
		return "Parameter"
	case SymLocal:
		return "Local"
	case SymModule:
		return "Module"
	case SymGlobal:
		return "Global"
	default:
		return "?"
	}
}

// SymbolID identifies a [Symbol] within a [Table]. The zero value denotes
// "no symbol".
type SymbolID uint32

// Symbol is a single name binding.
type Symbol struct {
	ID    SymbolID
	Name  strtable.Handle
	Kind  SymbolKind
	Scope ScopeID
	Decl  ast.NodeID

	// Captured is set once any reference to this symbol is resolved from
	// a nested function scope, meaning it must be lifted into a closure
	// environment rather than a plain register slot.
	Captured bool

	// Active becomes true once control has passed the symbol's
	// declaration in source order; function bindings are active
	// throughout their enclosing scope (spec.md §3).
	Active bool
}
