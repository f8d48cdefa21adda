package parser

import "github.com/dr8co/hammer/ast"

// EventKind distinguishes the two halves of a node's parse event pair.
type EventKind int

const (
	// Enter is emitted when the parser begins building a node, before its
	// children are parsed.
	Enter EventKind = iota
	// Leave is emitted once a node and all its children are complete.
	Leave
)

// Event is one entry of the flat parser event stream spec.md §2 names as
// the external contract between the front end and semantic analysis: a
// trace of node construction independent of the AST's own pointer shape.
// hammer produces both the event stream and the AST in one pass so later
// stages (sema, irbuild) can be written against either, but convention is
// to consume only the AST plus its node-id-keyed side tables.
type Event struct {
	Kind EventKind
	ID   ast.NodeID
	// Label is a short human-readable node-kind tag (e.g. "IfExpr"),
	// useful for building source maps or trace dumps; not interpreted by
	// any consumer in this module.
	Label string
}

func (p *Parser) emit(kind EventKind, id ast.NodeID, label string) {
	p.events = append(p.events, Event{Kind: kind, ID: id, Label: label})
}

// Events returns the flat parser event stream recorded during the most
// recent call to [Parser.ParseModule].
func (p *Parser) Events() []Event { return p.events }
