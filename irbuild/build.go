// Package irbuild lowers a hammer module's AST, together with the scope
// and symbol tables produced by sema, into the SSA form defined by
// package ir (spec.md §4.1). One top-down pass per function builds its
// blocks and instructions directly; no separate CFG-construction step
// precedes it.
package irbuild

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/sema"
	"github.com/dr8co/hammer/strtable"
)

// initMemberName is the synthesized module member that runs every
// top-level var initializer in source order, per spec.md §4.9: the
// loader wraps it in a coroutine and gates export visibility on its
// completion.
const initMemberName = "$init"

// Builder lowers one module at a time.
type Builder struct {
	strs *strtable.Table
	sema *sema.Table
	mod  *ir.Module

	memberOf map[sema.SymbolID]ir.MemberID
	records  map[string]ir.RecordID

	anonCount int

	Diagnostics sema.Diagnostics
}

// Build lowers mod into an IR module. Construction continues best-effort
// across errors (spec.md §4.1); callers must check
// Diagnostics.HasErrors() before handing the result to bytecode emission.
func Build(mod *ast.Module, tab *sema.Table, strs *strtable.Table) (*ir.Module, *Builder) {
	b := &Builder{
		strs:     strs,
		sema:     tab,
		mod:      ir.NewModule("main"),
		memberOf: make(map[sema.SymbolID]ir.MemberID),
		records:  make(map[string]ir.RecordID),
	}

	var inits []*ast.VarItem
	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.ImportItem:
			mem := b.mod.AddMember(ir.MemberImport, it.Name)
			mem.ImportName = it.Name
			b.bindMember(it.ID(), mem.ID)
		case *ast.FuncItem:
			mem := b.mod.AddMember(ir.MemberFunction, it.Name)
			b.bindMember(it.ID(), mem.ID)
		case *ast.VarItem:
			mem := b.mod.AddMember(ir.MemberVariable, it.Name.Value)
			b.bindMember(it.ID(), mem.ID)
			inits = append(inits, it)
		}
	}

	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.FuncItem:
			fn := b.buildTopLevelFunction(it.Name, it.Params, it.Body)
			b.mod.Member(b.memberOf[b.symbolDeclaredBy(it.ID())]).Function = fn
		}
	}

	// $init always exists, even with zero top-level vars, so the loader
	// has a uniform coroutine to enqueue (spec.md §4.9).
	initMem := b.mod.AddMember(ir.MemberFunction, initMemberName)
	initMem.Function = b.buildInitFunction(inits)

	b.mod.Valid = !b.Diagnostics.HasErrors()
	return b.mod, b
}

// bindMember records the ir.MemberID a top-level item's own symbol maps
// to, so references to it from function bodies resolve to a module slot.
func (b *Builder) bindMember(declNode ast.NodeID, mem ir.MemberID) {
	if sym, ok := b.sema.SymbolFor(declNode); ok {
		b.memberOf[sym.ID] = mem
	}
}

func (b *Builder) symbolDeclaredBy(declNode ast.NodeID) sema.SymbolID {
	sym, _ := b.sema.SymbolFor(declNode)
	return sym.ID
}

func (b *Builder) buildTopLevelFunction(name string, params []*ast.Identifier, body *ast.BlockExpr) *ir.Function {
	fn := ir.NewFunction(ir.FuncID(len(b.mod.Members)+1), name, len(params))
	fb := b.newFuncBuilder(fn, nil)
	fb.bindParams(params)
	fb.buildFunctionBody(body)
	return fn
}

func (b *Builder) buildInitFunction(inits []*ast.VarItem) *ir.Function {
	fn := ir.NewFunction(ir.FuncID(len(b.mod.Members)+1), initMemberName, 0)
	fb := b.newFuncBuilder(fn, nil)
	for _, it := range inits {
		val := fb.buildExpr(it.Value)
		mem := b.memberOf[fb.b.symbolDeclaredBy(it.ID())]
		fb.emit(ir.StoreLValue{LValue: ir.LValueModule{Member: mem}, Value: val})
	}
	if !fb.terminated() {
		fb.setTerminator(ir.Return{})
	}
	return fn
}

// recordTemplateFor returns the RecordID for a record literal's field set
// and that template's canonical (sorted) field order — field order in
// source is not significant to a record's identity, only its name set is,
// so two literals naming the same fields in different orders share one
// template. Callers building a MakeRecord must supply field values in
// this returned order, not the literal's own.
func (b *Builder) recordTemplateFor(fields []string) (ir.RecordID, []string) {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "\x00")
	if id, ok := b.records[key]; ok {
		return id, b.mod.Member(ir.MemberID(id)).RecordTemplate.Fields
	}
	rt := &ir.RecordTemplate{Fields: sorted}
	mem := b.mod.AddMember(ir.MemberRecordTemplate, "record")
	mem.RecordTemplate = rt
	rt.ID = ir.RecordID(mem.ID)
	b.records[key] = rt.ID
	return rt.ID, sorted
}

func (b *Builder) anonymousFuncMember(enclosing string) (*ir.Member, string) {
	b.anonCount++
	name := enclosing + "$" + strconv.Itoa(b.anonCount)
	mem := b.mod.AddMember(ir.MemberFunction, name)
	return mem, name
}
