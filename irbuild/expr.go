package irbuild

import (
	"strings"

	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/ir"
)

var binaryOps = map[string]ir.BinaryOpKind{
	"+": ir.BinAdd, "-": ir.BinSub, "*": ir.BinMul, "/": ir.BinDiv,
	"%": ir.BinMod, "**": ir.BinPow,
	">": ir.BinGt, ">=": ir.BinGte, "<": ir.BinLt, "<=": ir.BinLte,
	"==": ir.BinEq, "!=": ir.BinNEq,
}

var unaryOps = map[string]ir.UnaryOpKind{
	"+": ir.UnaryPos, "-": ir.UnaryNeg, "!": ir.UnaryNot, "~": ir.UnaryBNot,
}

func (fb *funcBuilder) buildExpr(expr ast.Expression) ir.InstID {
	if fb.terminated() {
		return 0 // dead code past a return/break/continue; nothing left to build into
	}

	switch e := expr.(type) {
	case *ast.Identifier:
		sym, _ := fb.b.sema.SymbolFor(e.ID())
		return fb.readSymbol(sym)

	case *ast.IntegerLiteral:
		return fb.emit(ir.Constant{Kind: ir.ConstInt, Int: e.Value})
	case *ast.FloatLiteral:
		return fb.emit(ir.Constant{Kind: ir.ConstFloat, Flt: e.Value})
	case *ast.StringLiteral:
		return fb.emit(ir.Constant{Kind: ir.ConstString, Str: e.Value})
	case *ast.BoolLiteral:
		return fb.emit(ir.Constant{Kind: ir.ConstBool, Bool: e.Value})
	case *ast.NullLiteral:
		return fb.emit(ir.Constant{Kind: ir.ConstNull})

	case *ast.FormatExpr:
		return fb.buildFormatExpr(e)

	case *ast.ArrayLiteral:
		return fb.emit(ir.MakeContainer{Kind: ir.ContainerArray, Elements: fb.buildAll(e.Elements)})
	case *ast.TupleLiteral:
		return fb.emit(ir.MakeContainer{Kind: ir.ContainerTuple, Elements: fb.buildAll(e.Elements)})
	case *ast.SetLiteral:
		return fb.emit(ir.MakeContainer{Kind: ir.ContainerSet, Elements: fb.buildAll(e.Elements)})

	case *ast.RecordLiteral:
		return fb.buildRecordLiteral(e)

	case *ast.MapLiteral:
		keys := make([]ir.InstID, len(e.Pairs))
		values := make([]ir.InstID, len(e.Pairs))
		for i, p := range e.Pairs {
			keys[i] = fb.buildExpr(p.Key)
			values[i] = fb.buildExpr(p.Value)
		}
		return fb.emit(ir.MakeMap{Keys: keys, Values: values})

	case *ast.PrefixExpr:
		operand := fb.buildExpr(e.Right)
		op := unaryOps[e.Operator]
		if c, ok := fb.constOf(operand); ok {
			if folded, ok := foldUnary(op, c, ok); ok {
				return fb.emit(folded)
			}
		}
		return fb.emit(ir.UnaryOp{Op: op, Operand: operand})

	case *ast.InfixExpr:
		lhs := fb.buildExpr(e.Left)
		rhs := fb.buildExpr(e.Right)
		op := binaryOps[e.Operator]
		lc, lok := fb.constOf(lhs)
		rc, rok := fb.constOf(rhs)
		if folded, ok := foldBinary(op, lc, lok, rc, rok); ok {
			return fb.emit(folded)
		}
		return fb.emit(ir.BinaryOp{Op: op, LHS: lhs, RHS: rhs})

	case *ast.LogicalExpr:
		return fb.buildLogical(e)

	case *ast.AssignExpr:
		value := fb.buildExpr(e.Value)
		fb.assignTo(e.Target, value)
		return value

	case *ast.IfExpr:
		return fb.buildIfExpr(e)

	case *ast.BlockExpr:
		val, _ := fb.buildBlock(e)
		return val

	case *ast.FuncLiteral:
		return fb.buildFuncLiteral(e)

	case *ast.CallExpr:
		callee := fb.buildExpr(e.Callee)
		return fb.emit(ir.Call{Callee: callee, Args: fb.buildAll(e.Args)})

	case *ast.IndexExpr:
		target := fb.buildExpr(e.Left)
		index := fb.buildExpr(e.Index)
		return fb.emit(ir.UseLValue{LValue: ir.LValueIndex{Target: target, Index: index}})

	case *ast.FieldExpr:
		target := fb.buildExpr(e.Left)
		return fb.emit(ir.UseLValue{LValue: ir.LValueField{Target: target, Name: e.Name}})
	}
	return 0
}

func (fb *funcBuilder) buildAll(exprs []ast.Expression) []ir.InstID {
	ids := make([]ir.InstID, len(exprs))
	for i, e := range exprs {
		ids[i] = fb.buildExpr(e)
	}
	return ids
}

// constOf returns the Constant a just-built instruction holds, if it is
// one — used to feed constant folding without re-deriving literal values.
func (fb *funcBuilder) constOf(id ir.InstID) (ir.Constant, bool) {
	if !id.Valid() {
		return ir.Constant{}, false
	}
	c, ok := fb.fn.Inst(id).Value.(ir.Constant)
	return c, ok
}

// buildFormatExpr lowers a format string. A FormatExpr whose parts are
// all literal text folds to a single string constant at construction
// time (spec.md §8's boundary behavior); otherwise each hole is built in
// order and the parts are joined at runtime by a FormatString op.
func (fb *funcBuilder) buildFormatExpr(e *ast.FormatExpr) ir.InstID {
	allLiteral := true
	for _, p := range e.Parts {
		if p.Expr != nil {
			allLiteral = false
			break
		}
	}
	if allLiteral {
		var sb strings.Builder
		for _, p := range e.Parts {
			sb.WriteString(p.Literal)
		}
		return fb.emit(ir.Constant{Kind: ir.ConstString, Str: sb.String()})
	}

	parts := make([]ir.InstID, len(e.Parts))
	for i, p := range e.Parts {
		if p.Expr != nil {
			parts[i] = fb.buildExpr(p.Expr)
		} else {
			parts[i] = fb.emit(ir.Constant{Kind: ir.ConstString, Str: p.Literal})
		}
	}
	return fb.emit(ir.FormatString{Parts: parts})
}

func (fb *funcBuilder) buildRecordLiteral(e *ast.RecordLiteral) ir.InstID {
	names := make([]string, len(e.Fields))
	values := make(map[string]ir.InstID, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
		values[f.Name] = fb.buildExpr(f.Value)
	}
	template, order := fb.b.recordTemplateFor(names)
	fields := make([]ir.InstID, len(order))
	for i, name := range order {
		fields[i] = values[name]
	}
	return fb.emit(ir.MakeRecord{Template: template, Fields: fields})
}

func (fb *funcBuilder) assignTo(target ast.Expression, value ir.InstID) {
	switch t := target.(type) {
	case *ast.Identifier:
		sym, _ := fb.b.sema.SymbolFor(t.ID())
		fb.writeSymbol(sym, value)
	case *ast.IndexExpr:
		container := fb.buildExpr(t.Left)
		index := fb.buildExpr(t.Index)
		fb.emit(ir.StoreLValue{LValue: ir.LValueIndex{Target: container, Index: index}, Value: value})
	case *ast.FieldExpr:
		container := fb.buildExpr(t.Left)
		fb.emit(ir.StoreLValue{LValue: ir.LValueField{Target: container, Name: t.Name}, Value: value})
	}
}

// buildLogical short-circuits && and || by branching rather than
// computing both sides (spec.md §4.1).
func (fb *funcBuilder) buildLogical(e *ast.LogicalExpr) ir.InstID {
	lhs := fb.buildExpr(e.Left)
	lhsBlock := fb.cur

	rhsBlock := fb.newBlock("logic.rhs")
	joinBlock := fb.newBlock("logic.join")

	if e.Operator == "&&" {
		fb.setTerminator(ir.Branch{Cond: lhs, IfTrue: rhsBlock, IfFalse: joinBlock})
	} else {
		fb.setTerminator(ir.Branch{Cond: lhs, IfTrue: joinBlock, IfFalse: rhsBlock})
	}
	fb.addPred(rhsBlock, lhsBlock)
	fb.addPred(joinBlock, lhsBlock)
	fb.seal(rhsBlock)

	fb.switchTo(rhsBlock)
	rhs := fb.buildExpr(e.Right)
	rhsEnd := fb.cur
	rhsTerminated := fb.terminated()
	if !rhsTerminated {
		fb.setTerminator(ir.Jump{Target: joinBlock})
		fb.addPred(joinBlock, rhsEnd)
	}
	fb.seal(joinBlock)

	fb.switchTo(joinBlock)
	if rhsTerminated {
		return lhs // only the short-circuit path reaches join
	}
	return fb.newPhiForPreds(joinBlock, map[ir.BlockID]ir.InstID{lhsBlock: lhs, rhsEnd: rhs})
}

func (fb *funcBuilder) buildIfExpr(e *ast.IfExpr) ir.InstID {
	cond := fb.buildExpr(e.Cond)
	entryBlock := fb.cur

	thenBlock := fb.newBlock("if.then")
	joinBlock := fb.newBlock("if.join")
	var elseBlock ir.BlockID
	if e.Else != nil {
		elseBlock = fb.newBlock("if.else")
	} else {
		elseBlock = joinBlock
	}

	fb.setTerminator(ir.Branch{Cond: cond, IfTrue: thenBlock, IfFalse: elseBlock})
	fb.addPred(thenBlock, entryBlock)
	fb.addPred(elseBlock, entryBlock)
	fb.seal(thenBlock)
	if elseBlock != joinBlock {
		fb.seal(elseBlock)
	}

	fb.switchTo(thenBlock)
	thenVal, thenTerm := fb.buildBlock(e.Then)
	thenEnd := fb.cur
	if !thenTerm {
		fb.setTerminator(ir.Jump{Target: joinBlock})
		fb.addPred(joinBlock, thenEnd)
	}

	var elseVal ir.InstID
	elseTerm := false
	var elseEnd ir.BlockID
	switch {
	case e.Else == nil:
		fb.switchTo(entryBlock)
		elseVal = fb.emit(ir.Constant{Kind: ir.ConstNull})
		elseEnd = entryBlock // the value flows from the original false edge straight into join
	case elseBlock != joinBlock:
		fb.switchTo(elseBlock)
		switch alt := e.Else.(type) {
		case *ast.BlockExpr:
			elseVal, elseTerm = fb.buildBlock(alt)
		default:
			elseVal = fb.buildExpr(alt)
			elseTerm = fb.terminated()
		}
		elseEnd = fb.cur
		if !elseTerm {
			fb.setTerminator(ir.Jump{Target: joinBlock})
			fb.addPred(joinBlock, elseEnd)
		}
	}

	fb.seal(joinBlock)
	fb.switchTo(joinBlock)

	switch {
	case thenTerm && elseTerm:
		fb.setTerminator(ir.Unreachable{})
		return 0
	case thenTerm:
		return elseVal
	case elseTerm:
		return thenVal
	default:
		return fb.newPhiForPreds(joinBlock, map[ir.BlockID]ir.InstID{thenEnd: thenVal, elseEnd: elseVal})
	}
}

func (fb *funcBuilder) buildFuncLiteral(e *ast.FuncLiteral) ir.InstID {
	mem, name := fb.b.anonymousFuncMember(fb.name)
	fn := ir.NewFunction(ir.FuncID(mem.ID), name, len(e.Params))
	child := fb.b.newFuncBuilder(fn, fb)
	child.bindParams(e.Params)
	if e.Name != "" {
		if sym, ok := fb.b.sema.SymbolFor(e.ID()); ok {
			self := child.emit(ir.SelfClosure{})
			child.defineLocal(sym, self)
		}
	}
	child.buildFunctionBody(e.Body)
	mem.Function = fn

	return fb.emit(ir.MakeClosure{FuncTemplate: mem.ID, Env: fb.ownEnvRef()})
}
