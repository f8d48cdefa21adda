// Package ir defines the SSA intermediate representation lowered from the
// AST by irbuild, transformed by irpass, and consumed by regalloc/emit.
//
// A Function's blocks and instructions are stored in flat, id-indexed
// arenas rather than as a pointer graph, mirroring the arena-allocated
// compiler entities of the original toolchain: ids are stable across
// passes even as instructions are added, replaced by aliases, or (after
// dead-code elimination) left unreferenced.
package ir

// BlockID identifies a basic block within one Function. The zero value
// denotes "no block".
type BlockID uint32

// InstID identifies an instruction within one Function. The zero value
// denotes "no instruction"; Phi operands and terminators use this to mean
// "undefined along this edge", which is itself a construction error if it
// survives to emission.
type InstID uint32

// ParamID identifies one of a Function's parameters, in declaration order.
type ParamID uint32

// FuncID identifies a Function within a Module.
type FuncID uint32

// MemberID identifies a Module member: a function, an import, a
// module-level constant, or a record template. Bytecode emission resolves
// symbolic member references through this id.
type MemberID uint32

// RecordID identifies a record template (the closed field-name set shared
// by every record literal with the same fields) within a Module.
type RecordID uint32

func (id BlockID) valid() bool { return id != 0 }
func (id InstID) valid() bool  { return id != 0 }

// Valid reports whether id refers to a real block, as opposed to the
// zero value's "no block" sentinel.
func (id BlockID) Valid() bool { return id.valid() }

// Valid reports whether id refers to a real instruction, as opposed to
// the zero value's "no instruction"/"undefined" sentinel used by
// not-yet-filled phi operands.
func (id InstID) Valid() bool { return id.valid() }
