package irbuild

import (
	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/ir"
)

// buildBlock lowers a block expression's statements followed by its tail
// expression (or an implicit null tail if absent), returning the value the
// block evaluates to and whether control fell off the end with a
// terminator already set (a return/break/continue inside it).
func (fb *funcBuilder) buildBlock(block *ast.BlockExpr) (ir.InstID, bool) {
	for _, stmt := range block.Statements {
		fb.buildStmt(stmt)
		if fb.terminated() {
			return 0, true
		}
	}
	if block.Tail == nil {
		return fb.emit(ir.Constant{Kind: ir.ConstNull}), false
	}
	val := fb.buildExpr(block.Tail)
	return val, fb.terminated()
}

func (fb *funcBuilder) buildStmt(stmt ast.Statement) {
	if fb.terminated() {
		return
	}
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		val := fb.buildExpr(s.Value)
		sym, _ := fb.b.sema.SymbolFor(s.Name.ID())
		fb.defineLocal(sym, val)

	case *ast.ExprStmt:
		fb.buildExpr(s.Expression)

	case *ast.ReturnStmt:
		var val ir.InstID
		if s.Value != nil {
			val = fb.buildExpr(s.Value)
		} else {
			val = fb.emit(ir.Constant{Kind: ir.ConstNull})
		}
		if !fb.terminated() {
			fb.setTerminator(ir.Return{Value: val})
		}

	case *ast.BreakStmt:
		fb.buildBreak()

	case *ast.ContinueStmt:
		fb.buildContinue()

	case *ast.WhileStmt:
		fb.buildWhile(s)

	case *ast.ForStmt:
		fb.buildFor(s)

	case *ast.BlockExpr:
		fb.buildBlock(s)
	}
}

func (fb *funcBuilder) buildBreak() {
	if len(fb.loopExit) == 0 {
		return // malformed program; sema should already have reported this
	}
	target := fb.loopExit[len(fb.loopExit)-1]
	fb.setTerminator(ir.Jump{Target: target})
	fb.addPred(target, fb.cur)
}

func (fb *funcBuilder) buildContinue() {
	if len(fb.loopContinue) == 0 {
		return
	}
	target := fb.loopContinue[len(fb.loopContinue)-1]
	fb.setTerminator(ir.Jump{Target: target})
	fb.addPred(target, fb.cur)
}

// buildWhile lowers a while loop to header/body/exit blocks. The header is
// sealed only once its back-edge from the body is known (its predecessors
// are the block entering the loop and the body's end), matching Braun et
// al.'s treatment of a natural loop's single header.
func (fb *funcBuilder) buildWhile(s *ast.WhileStmt) {
	preheader := fb.cur
	header := fb.newBlock("while.header")
	body := fb.newBlock("while.body")
	exit := fb.newBlock("while.exit")

	fb.setTerminator(ir.Jump{Target: header})
	fb.addPred(header, preheader)

	fb.switchTo(header)
	cond := fb.buildExpr(s.Cond)
	fb.setTerminator(ir.Branch{Cond: cond, IfTrue: body, IfFalse: exit})
	fb.addPred(body, header)
	fb.addPred(exit, header)
	fb.seal(body) // header is body's only predecessor

	fb.loopExit = append(fb.loopExit, exit)
	fb.loopContinue = append(fb.loopContinue, header)

	fb.switchTo(body)
	fb.buildBlock(s.Body)
	if !fb.terminated() {
		fb.setTerminator(ir.Jump{Target: header})
		fb.addPred(header, fb.cur)
	}

	fb.loopExit = fb.loopExit[:len(fb.loopExit)-1]
	fb.loopContinue = fb.loopContinue[:len(fb.loopContinue)-1]

	fb.seal(header) // all of header's predecessors (preheader + back-edge) now known
	fb.seal(exit)    // every break target and the false edge are now wired

	fb.switchTo(exit)
}

// buildFor lowers a for loop to init/header/body/step/exit blocks. continue
// always targets step, whether or not the loop has a post statement, so
// that `continue` still runs it.
func (fb *funcBuilder) buildFor(s *ast.ForStmt) {
	if s.Init != nil {
		fb.buildStmt(s.Init)
		if fb.terminated() {
			return
		}
	}

	preheader := fb.cur
	header := fb.newBlock("for.header")
	body := fb.newBlock("for.body")
	step := fb.newBlock("for.step")
	exit := fb.newBlock("for.exit")

	fb.setTerminator(ir.Jump{Target: header})
	fb.addPred(header, preheader)

	fb.switchTo(header)
	if s.Cond != nil {
		cond := fb.buildExpr(s.Cond)
		fb.setTerminator(ir.Branch{Cond: cond, IfTrue: body, IfFalse: exit})
	} else {
		fb.setTerminator(ir.Jump{Target: body})
	}
	fb.addPred(body, header)
	fb.addPred(exit, header)
	fb.seal(body)

	fb.loopExit = append(fb.loopExit, exit)
	fb.loopContinue = append(fb.loopContinue, step)

	fb.switchTo(body)
	fb.buildBlock(s.Body)
	if !fb.terminated() {
		fb.setTerminator(ir.Jump{Target: step})
		fb.addPred(step, fb.cur)
	}

	fb.loopExit = fb.loopExit[:len(fb.loopExit)-1]
	fb.loopContinue = fb.loopContinue[:len(fb.loopContinue)-1]

	fb.seal(step)
	fb.switchTo(step)
	if s.Post != nil {
		fb.buildStmt(s.Post)
	}
	if !fb.terminated() {
		fb.setTerminator(ir.Jump{Target: header})
		fb.addPred(header, fb.cur)
	}

	fb.seal(header)
	fb.seal(exit)

	fb.switchTo(exit)
}
