package nodes

import (
	"fmt"
	"strings"
)

// Position represents source code position information
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// NewPosition creates a new Position
func NewPosition(line, column int) Position {
	return Position{
		Line:   line,
		Column: column,
	}
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Node represents the base interface for all AST nodes. Nodes are built once
// by the parser and never modified afterwards.
type Node interface {
	// GetPosition returns the position information for this node
	GetPosition() Position

	// GetChildren returns all child nodes
	GetChildren() []Node

	// String returns a string representation of the node
	String() string

	// Type returns the node type for identification
	Type() string
}

// BaseNode provides common functionality for all nodes
type BaseNode struct {
	Pos Position `json:"pos"`
}

// GetPosition returns the position information
func (n *BaseNode) GetPosition() Position {
	return n.Pos
}

// GetChildren returns the base implementation (empty slice)
func (n *BaseNode) GetChildren() []Node {
	return []Node{}
}

// Visitor implements the visitor pattern for AST traversal
type Visitor interface {
	Visit(node Node) interface{}
}

// NodeVisitorFunc is a function adapter for Visitor interface
type NodeVisitorFunc func(node Node) interface{}

func (f NodeVisitorFunc) Visit(node Node) interface{} {
	return f(node)
}

// Walk traverses the AST depth first. A non-nil visitor result stops descent
// into that node's children.
func Walk(visitor Visitor, node Node) {
	if node == nil {
		return
	}
	if visitor.Visit(node) != nil {
		return
	}
	for _, child := range node.GetChildren() {
		Walk(visitor, child)
	}
}

// Stmt represents template nodes
type Stmt interface {
	Node
	isStmt()
}

// BaseStmt provides common functionality for statement nodes
type BaseStmt struct {
	BaseNode
}

func (n *BaseStmt) isStmt() {}

// Expr represents expression nodes
type Expr interface {
	Node
	isExpr()
}

// BaseExpr provides common functionality for expression nodes
type BaseExpr struct {
	BaseNode
}

func (n *BaseExpr) isExpr() {}

func stmtsAsNodes(list []Stmt) []Node {
	out := make([]Node, 0, len(list))
	for _, s := range list {
		out = append(out, s)
	}
	return out
}

func exprsAsNodes(list ...Expr) []Node {
	out := make([]Node, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func joinExprs(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Template nodes

// Template is the root of a parsed template.
type Template struct {
	BaseNode
	Name string
	Body []Stmt
}

func (n *Template) GetChildren() []Node { return stmtsAsNodes(n.Body) }
func (n *Template) Type() string        { return "Template" }
func (n *Template) String() string {
	return fmt.Sprintf("Template(%s, %d nodes)", n.Name, len(n.Body))
}

// TemplateData is a run of literal text.
type TemplateData struct {
	BaseStmt
	Data string
}

func (n *TemplateData) Type() string   { return "TemplateData" }
func (n *TemplateData) String() string { return fmt.Sprintf("TemplateData(%q)", n.Data) }

// Output prints the value of an expression.
type Output struct {
	BaseStmt
	Node Expr
}

func (n *Output) GetChildren() []Node { return exprsAsNodes(n.Node) }
func (n *Output) Type() string        { return "Output" }
func (n *Output) String() string      { return fmt.Sprintf("Output(%s)", n.Node) }

// IfBranch is one condition/body pair of an if statement.
type IfBranch struct {
	BaseNode
	Test Expr
	Body []Stmt
}

func (n *IfBranch) GetChildren() []Node {
	return append(exprsAsNodes(n.Test), stmtsAsNodes(n.Body)...)
}
func (n *IfBranch) Type() string   { return "IfBranch" }
func (n *IfBranch) String() string { return fmt.Sprintf("IfBranch(%s)", n.Test) }

// If holds the if/elseif branches in source order and the optional else body.
type If struct {
	BaseStmt
	Branches []*IfBranch
	Else     []Stmt
}

func (n *If) GetChildren() []Node {
	out := make([]Node, 0, len(n.Branches)+len(n.Else))
	for _, b := range n.Branches {
		out = append(out, b)
	}
	return append(out, stmtsAsNodes(n.Else)...)
}
func (n *If) Type() string { return "If" }
func (n *If) String() string {
	return fmt.Sprintf("If(%d branches, else=%t)", len(n.Branches), n.Else != nil)
}

// For iterates a sequence or mapping. KeyVar is empty for single-variable loops.
type For struct {
	BaseStmt
	KeyVar   string
	ValueVar string
	Iter     Expr
	Body     []Stmt
	Else     []Stmt
}

func (n *For) GetChildren() []Node {
	out := exprsAsNodes(n.Iter)
	out = append(out, stmtsAsNodes(n.Body)...)
	return append(out, stmtsAsNodes(n.Else)...)
}
func (n *For) Type() string { return "For" }
func (n *For) String() string {
	if n.KeyVar != "" {
		return fmt.Sprintf("For(%s, %s in %s)", n.KeyVar, n.ValueVar, n.Iter)
	}
	return fmt.Sprintf("For(%s in %s)", n.ValueVar, n.Iter)
}

// Block is a named, overridable section.
type Block struct {
	BaseStmt
	Name string
	Body []Stmt
}

func (n *Block) GetChildren() []Node { return stmtsAsNodes(n.Body) }
func (n *Block) Type() string        { return "Block" }
func (n *Block) String() string      { return fmt.Sprintf("Block(%s)", n.Name) }

// Extends names the parent template.
type Extends struct {
	BaseStmt
	Template string
}

func (n *Extends) Type() string   { return "Extends" }
func (n *Extends) String() string { return fmt.Sprintf("Extends(%q)", n.Template) }

// Include renders another template in place. With is the optional context
// override; Only hides the including template's variables.
type Include struct {
	BaseStmt
	Template      Expr
	With          Expr
	Only          bool
	IgnoreMissing bool
}

func (n *Include) GetChildren() []Node { return exprsAsNodes(n.Template, n.With) }
func (n *Include) Type() string        { return "Include" }
func (n *Include) String() string {
	s := fmt.Sprintf("Include(%s", n.Template)
	if n.With != nil {
		s += " with " + n.With.String()
	}
	if n.Only {
		s += " only"
	}
	if n.IgnoreMissing {
		s += " ignore missing"
	}
	return s + ")"
}

// Set binds a variable in the current scope. When Value is nil the rendered
// Body is captured instead.
type Set struct {
	BaseStmt
	Name  string
	Value Expr
	Body  []Stmt
}

func (n *Set) GetChildren() []Node {
	return append(exprsAsNodes(n.Value), stmtsAsNodes(n.Body)...)
}
func (n *Set) Type() string { return "Set" }
func (n *Set) String() string {
	if n.Value == nil {
		return fmt.Sprintf("Set(%s, capture)", n.Name)
	}
	return fmt.Sprintf("Set(%s = %s)", n.Name, n.Value)
}

// ---------------------------------------------------------------------------
// Expression nodes

// Const is a literal: nil, bool, int64, float64 or string.
type Const struct {
	BaseExpr
	Value interface{}
}

func (n *Const) Type() string { return "Const" }
func (n *Const) String() string {
	if s, ok := n.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if n.Value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", n.Value)
}

// Name is a variable reference.
type Name struct {
	BaseExpr
	Name string
}

func (n *Name) Type() string   { return "Name" }
func (n *Name) String() string { return n.Name }

// BinExpr is a binary operation. Op is the operator as written, with word
// operators normalized ("not in", "starts with", "ends with").
type BinExpr struct {
	BaseExpr
	Op    string
	Left  Expr
	Right Expr
}

func (n *BinExpr) GetChildren() []Node { return exprsAsNodes(n.Left, n.Right) }
func (n *BinExpr) Type() string        { return "BinExpr" }
func (n *BinExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// UnaryExpr is a prefix operation: "not", "-" or "+".
type UnaryExpr struct {
	BaseExpr
	Op   string
	Node Expr
}

func (n *UnaryExpr) GetChildren() []Node { return exprsAsNodes(n.Node) }
func (n *UnaryExpr) Type() string        { return "UnaryExpr" }
func (n *UnaryExpr) String() string      { return fmt.Sprintf("(%s %s)", n.Op, n.Node) }

// CondExpr is the ternary operator. Expr1 is nil for the `a ?: b` form.
type CondExpr struct {
	BaseExpr
	Test  Expr
	Expr1 Expr
	Expr2 Expr
}

func (n *CondExpr) GetChildren() []Node { return exprsAsNodes(n.Test, n.Expr1, n.Expr2) }
func (n *CondExpr) Type() string        { return "CondExpr" }
func (n *CondExpr) String() string {
	if n.Expr1 == nil {
		return fmt.Sprintf("(%s ?: %s)", n.Test, n.Expr2)
	}
	return fmt.Sprintf("(%s ? %s : %s)", n.Test, n.Expr1, n.Expr2)
}

// List is an array literal.
type List struct {
	BaseExpr
	Items []Expr
}

func (n *List) GetChildren() []Node { return exprsAsNodes(n.Items...) }
func (n *List) Type() string        { return "List" }
func (n *List) String() string      { return "[" + joinExprs(n.Items) + "]" }

// Pair is one key/value entry of a hash literal.
type Pair struct {
	BaseExpr
	Key   Expr
	Value Expr
}

func (n *Pair) GetChildren() []Node { return exprsAsNodes(n.Key, n.Value) }
func (n *Pair) Type() string        { return "Pair" }
func (n *Pair) String() string      { return fmt.Sprintf("%s: %s", n.Key, n.Value) }

// Dict is a hash literal with pairs in source order.
type Dict struct {
	BaseExpr
	Items []*Pair
}

func (n *Dict) GetChildren() []Node {
	out := make([]Node, len(n.Items))
	for i, p := range n.Items {
		out[i] = p
	}
	return out
}
func (n *Dict) Type() string { return "Dict" }
func (n *Dict) String() string {
	parts := make([]string, len(n.Items))
	for i, p := range n.Items {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Call invokes a registered function by name.
type Call struct {
	BaseExpr
	Name string
	Args []Expr
}

func (n *Call) GetChildren() []Node { return exprsAsNodes(n.Args...) }
func (n *Call) Type() string        { return "Call" }
func (n *Call) String() string      { return fmt.Sprintf("%s(%s)", n.Name, joinExprs(n.Args)) }

// Filter applies a registered filter to Node.
type Filter struct {
	BaseExpr
	Node Expr
	Name string
	Args []Expr
}

func (n *Filter) GetChildren() []Node {
	return append(exprsAsNodes(n.Node), exprsAsNodes(n.Args...)...)
}
func (n *Filter) Type() string { return "Filter" }
func (n *Filter) String() string {
	if len(n.Args) == 0 {
		return fmt.Sprintf("%s|%s", n.Node, n.Name)
	}
	return fmt.Sprintf("%s|%s(%s)", n.Node, n.Name, joinExprs(n.Args))
}

// Test is an `is` / `is not` check.
type Test struct {
	BaseExpr
	Node    Expr
	Name    string
	Args    []Expr
	Negated bool
}

func (n *Test) GetChildren() []Node {
	return append(exprsAsNodes(n.Node), exprsAsNodes(n.Args...)...)
}
func (n *Test) Type() string { return "Test" }
func (n *Test) String() string {
	op := "is"
	if n.Negated {
		op = "is not"
	}
	if len(n.Args) == 0 {
		return fmt.Sprintf("(%s %s %s)", n.Node, op, n.Name)
	}
	return fmt.Sprintf("(%s %s %s(%s))", n.Node, op, n.Name, joinExprs(n.Args))
}

// Getattr is member access with a static key: `a.b` or `a.0`.
type Getattr struct {
	BaseExpr
	Node Expr
	Attr string
}

func (n *Getattr) GetChildren() []Node { return exprsAsNodes(n.Node) }
func (n *Getattr) Type() string        { return "Getattr" }
func (n *Getattr) String() string      { return fmt.Sprintf("%s.%s", n.Node, n.Attr) }

// Getitem is member access with a computed key: `a[expr]`.
type Getitem struct {
	BaseExpr
	Node Expr
	Arg  Expr
}

func (n *Getitem) GetChildren() []Node { return exprsAsNodes(n.Node, n.Arg) }
func (n *Getitem) Type() string        { return "Getitem" }
func (n *Getitem) String() string      { return fmt.Sprintf("%s[%s]", n.Node, n.Arg) }

// ---------------------------------------------------------------------------
// Helpers

// Dump renders an indented tree of the node for debugging.
func Dump(node Node) string {
	var b strings.Builder
	dump(&b, node, 0)
	return b.String()
}

func dump(b *strings.Builder, node Node, depth int) {
	if node == nil {
		return
	}
	pos := node.GetPosition()
	fmt.Fprintf(b, "%s%s @%d:%d\n", strings.Repeat("  ", depth), node.String(), pos.Line, pos.Column)
	for _, child := range node.GetChildren() {
		dump(b, child, depth+1)
	}
}

// FindAll collects the nodes for which match returns true.
func FindAll(node Node, match func(Node) bool) []Node {
	var results []Node
	Walk(NodeVisitorFunc(func(n Node) interface{} {
		if match(n) {
			results = append(results, n)
		}
		return nil
	}), node)
	return results
}
