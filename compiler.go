// Package compiler implements the driver: it orchestrates a syntax
// tree traversal over internal/scope's resolver, emits internal/ir op
// trees, and hands the result to internal/ir.Program for static-pool
// registration, lowering, and fixpoint finalization.
package compiler

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/praizmiky/focus/internal/builtin"
	"github.com/praizmiky/focus/internal/ir"
	"github.com/praizmiky/focus/internal/rtvalue"
	"github.com/praizmiky/focus/internal/scope"
	"github.com/praizmiky/focus/internal/tree"
)

// defaultSeverity is the severity ParseletPop assigns when the front
// end does not specify one; silent (severity 0) must be requested
// explicitly.
const defaultSeverity = 5

// Error is the single error shape covering every diagnostic the
// compiler can report — undefined name, missing required argument,
// unresolved symbol at emission, parse error — distinguished only by
// Message. No identifier-case or reserved-name (lexical constraint)
// check is made, so no such error is reported.
type Error struct {
	Offset  *tree.Offset
	Message string
}

func (e Error) Error() string {
	if e.Offset == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Offset.String(), e.Message)
}

// Program is the compiled artifact: an ordered static pool and the
// index of the main parselet within it.
type Program struct {
	Statics []ir.Static
	Main    int
}

// Compiler is the driver. The zero value is not usable; construct with
// New.
type Compiler struct {
	// Debug is read from the DEBUG environment variable at
	// construction (integer, 0 = silent), and gates tree/IR/program
	// tracing to stderr at increasing verbosity.
	Debug int

	resolver *scope.Resolver
	errs     []Error
}

// New constructs a compiler, pushing no scopes yet — Compile pushes
// the single global parselet scope before traversal and never pops
// it, so the scope stack's final depth is always exactly 1.
func New() *Compiler {
	debug := 0
	if v, ok := os.LookupEnv("DEBUG"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			debug = n
		}
	}
	return &Compiler{Debug: debug, resolver: scope.New()}
}

// CompileString compiles src through internal/tree's optional front
// end. A caller with its own front end should build a *tree.Node and
// call Compile directly instead.
func (c *Compiler) CompileString(src string) (*Program, []Error) {
	return c.Compile(strings.NewReader(src))
}

// Compile reads one program from r, parses it through internal/tree,
// and compiles the resulting tree.
func (c *Compiler) Compile(r io.Reader) (*Program, []Error) {
	main, err := tree.Parse(r)
	if err != nil {
		return nil, []Error{{Message: err.Error()}}
	}
	return c.CompileTree(main)
}

// CompileTree runs the driver over an already-built tree, for callers
// supplying their own front end.
func (c *Compiler) CompileTree(main *tree.Node) (*Program, []Error) {
	if c.Debug > 0 {
		fmt.Fprintln(os.Stderr, "--- tree ---")
		fmt.Fprintln(os.Stderr, main.String())
	}

	// Traverse the tree. The one global parselet scope is pushed here
	// and never popped; every top-level statement — named definition
	// or bare expression — compiles as its own nested parselet scope
	// fully contained within the global one's lifetime, so scope
	// balance never dips below depth 1.
	c.resolver.PushParselet()

	var mainValue ir.Value = ir.Const{V: rtvalue.Void{}}
	for _, stmt := range main.Children {
		mainValue = c.compileTopLevel(stmt)
	}

	// A forward reference inside an earlier statement (e.g. two
	// mutually recursive definitions) can only resolve once every
	// sibling name has been bound — which happens here, after the
	// whole global scope's constants are complete, rather than when
	// the referencing statement's own (already-closed) nested scope
	// popped.
	c.resolver.Resolve()

	// The global scope must be the only one left open.
	if c.resolver.Depth() != 1 {
		panic("compiler: scope imbalance after traversal")
	}

	errs := c.errs
	for _, usage := range c.resolver.Usages() {
		if name, ok := unresolvedName(usage); ok {
			errs = append(errs, Error{
				Offset:  name.Offset,
				Message: fmt.Sprintf("use of undefined name %q", name.Name),
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if c.Debug > 1 {
		fmt.Fprintf(os.Stderr, "--- main ---\n%#v\n", mainValue)
	}

	// Build the program rooted at main and run the registration,
	// lowering and finalization passes (static registration happens as
	// lowering calls Register).
	program := ir.NewProgram(mainValue)
	statics, mainIdx, compileErrs := program.Compile()
	if len(compileErrs) > 0 {
		out := make([]Error, len(compileErrs))
		for i, e := range compileErrs {
			out[i] = Error{Message: e.Error()}
		}
		return nil, out
	}

	if c.Debug > 2 {
		fmt.Fprintln(os.Stderr, "--- program ---")
		for i, s := range statics {
			fmt.Fprintf(os.Stderr, "%d: %v\n", i, s)
		}
	}

	return &Program{Statics: statics, Main: mainIdx}, nil
}

// compileTopLevel compiles one top-level statement as its own nested
// parselet scope, returning the resulting value. A "constant" node
// additionally binds its name in the enclosing (global) scope.
func (c *Compiler) compileTopLevel(stmt *tree.Node) ir.Value {
	if stmt.Emit == "constant" {
		nameNode := stmt.Child(0)
		bodyNode := stmt.Child(1)
		name := string(nameNode.Value.(rtvalue.Str))

		c.resolver.PushParselet()
		signature := c.compileSignature(stmt.Child(2))
		body := c.compileExpr(bodyNode)
		value := c.resolver.ParseletPop(stmt.Offset, name, defaultSeverity, nil, signature, body)
		c.resolver.Constant(name, value)
		return value
	}

	c.resolver.PushParselet()
	body := c.compileExpr(stmt)
	return c.resolver.ParseletPop(stmt.Offset, "", defaultSeverity, nil, nil, body)
}

// compileSignature lowers an optional "signature" node into a
// parameter list, binding each parameter as a local in the
// already-pushed parselet scope so the body can reference it by name.
// A parameter without a default gets ir.Void{}, the sentinel a call
// site must supply explicitly (see checkRequiredArgs).
func (c *Compiler) compileSignature(n *tree.Node) []ir.Param {
	if n == nil {
		return nil
	}
	params := make([]ir.Param, len(n.Children))
	for i, p := range n.Children {
		name := string(p.Value.(rtvalue.Str))
		c.resolver.Local(name)

		var def ir.Value = ir.Void{}
		if d := p.Child(0); d != nil {
			def = c.compileOperandValue(d)
		}
		params[i] = ir.Param{Name: name, Default: def}
	}
	return params
}

// compileExpr lowers one grammar expression node into an IR op.
func (c *Compiler) compileExpr(n *tree.Node) ir.Op {
	switch n.Emit {
	case "block":
		alts := make([]ir.Op, len(n.Children))
		for i, ch := range n.Children {
			alts[i] = c.compileExpr(ch)
		}
		return ir.Alt{Alts: alts}

	case "inline_sequence":
		items := make([]ir.Op, len(n.Children))
		for i, ch := range n.Children {
			items[i] = c.compileExpr(ch)
		}
		return ir.Seq{Items: items}

	case "value_string", "value_int":
		// A string literal in grammar-body position is the language's
		// literal-match primitive (rtvalue.Str's IsConsuming), so it
		// must dispatch through Call like any other bare reference —
		// not Load, which only pushes a value and would never register
		// as consuming to the finalizer. An int literal takes the same
		// path; rtvalue.Int is neither callable nor consuming, so it is
		// lowered to a static load.
		return ir.Call{Target: ir.Const{V: n.Value}, Qualified: false, Offset: n.Offset}

	case "name":
		name := string(n.Value.(rtvalue.Str))
		target := ir.TryResolve(ir.Name{Offset: n.Offset, Name: name}, c.resolver)
		return ir.Call{Target: target, Qualified: false, Offset: n.Offset}

	case "call":
		return c.compileCall(n)

	case "instance":
		return c.compileInstance(n)

	case "op_mod_opt":
		return c.compileQuantifier(n, builtin.Opt)
	case "op_mod_pos":
		return c.compileQuantifier(n, builtin.Pos)
	case "op_mod_kle":
		return c.compileQuantifier(n, builtin.Kle)

	default:
		panic(fmt.Sprintf("compiler: unexpected node kind %q", n.Emit))
	}
}

// compileCall lowers an explicit call site ("call" node: target name
// followed by positional/named argument nodes).
func (c *Compiler) compileCall(n *tree.Node) ir.Op {
	targetNode := n.Child(0)
	name := string(targetNode.Value.(rtvalue.Str))
	target := ir.TryResolve(ir.Name{Offset: targetNode.Offset, Name: name}, c.resolver)

	var args []ir.Op
	var named []ir.NamedArg
	for _, a := range n.Children[1:] {
		if a.Emit == "named_arg" {
			argName := string(a.Value.(rtvalue.Str))
			named = append(named, ir.NamedArg{Name: argName, Value: c.compileArg(a.Child(0))})
			continue
		}
		args = append(args, c.compileArg(a))
	}

	c.checkRequiredArgs(n.Offset, target, len(args), named)

	return ir.Call{Target: target, Args: args, NamedArgs: named, Qualified: true, Offset: n.Offset}
}

// checkRequiredArgs records a compile error when a call targets a
// parselet whose signature has a parameter with no default (Void)
// that the call site leaves unsupplied. Only a target already resolved
// at the call site is checked; a call through a still-pending forward
// reference is not.
func (c *Compiler) checkRequiredArgs(off *tree.Offset, target ir.Value, nargs int, named []ir.NamedArg) {
	ref, ok := target.(ir.ParseletRef)
	if !ok {
		return
	}
	for i, p := range ref.P.Model.Signature {
		if _, void := p.Default.(ir.Void); !void {
			continue
		}
		if i < nargs {
			continue
		}
		supplied := false
		for _, a := range named {
			if a.Name == p.Name {
				supplied = true
				break
			}
		}
		if !supplied {
			c.errs = append(c.errs, Error{
				Offset:  off,
				Message: fmt.Sprintf("missing required argument %q for %q", p.Name, ref.P.Name),
			})
		}
	}
}

// compileInstance lowers an explicit "<...>" generic instantiation
// site: the named target parselet is derived against the given
// config, sharing one static entry with any other instantiation of
// the same (model, config) pair. Positional args keep an empty Name
// here; ir.Resolve fills it in from the target's own parameter names
// once the target is known.
func (c *Compiler) compileInstance(n *tree.Node) ir.Op {
	targetNode := n.Child(0)
	name := string(targetNode.Value.(rtvalue.Str))
	target := ir.TryResolve(ir.Name{Offset: targetNode.Offset, Name: name}, c.resolver)

	var config []ir.Arg
	for _, a := range n.Children[1:] {
		if a.Emit == "named_arg" {
			argName := string(a.Value.(rtvalue.Str))
			config = append(config, ir.Arg{Offset: a.Offset, Name: argName, Value: c.compileOperandValue(a.Child(0))})
			continue
		}
		config = append(config, ir.Arg{Offset: a.Offset, Value: c.compileOperandValue(a)})
	}

	instance := ir.Instance{Offset: n.Offset, Target: target, Config: config}
	resolved := ir.TryResolve(instance, c.resolver)
	return ir.Call{Target: resolved, Qualified: true, Offset: n.Offset}
}

// compileQuantifier lowers a postfix ?/+/* node by deriving an
// instance of the matching built-in generic (Opt/Pos/Kle) over the
// quantified operand, desugaring the quantifier to a single implicit
// call.
func (c *Compiler) compileQuantifier(n *tree.Node, generic *ir.Parselet) ir.Op {
	operand := c.compileOperandValue(n.Child(0))
	instance := ir.IntoGeneric(operand, n.Offset, ir.ParseletRef{P: generic})
	resolved := ir.TryResolve(instance, c.resolver)
	return ir.Call{Target: resolved, Qualified: false, Offset: n.Offset}
}

// compileOperandValue reduces a quantified operand to an IR value. A
// bare name or literal already denotes one directly; any compound
// expression (a call, an alternation, a sequence, or a nested
// quantifier) is wrapped as an anonymous parselet first, so the
// generic always instantiates over a plain callable value.
func (c *Compiler) compileOperandValue(n *tree.Node) ir.Value {
	switch n.Emit {
	case "name":
		name := string(n.Value.(rtvalue.Str))
		return ir.TryResolve(ir.Name{Offset: n.Offset, Name: name}, c.resolver)
	case "value_string", "value_int":
		return ir.Const{V: n.Value}
	default:
		c.resolver.PushParselet()
		body := c.compileExpr(n)
		return c.resolver.ParseletPop(n.Offset, "", defaultSeverity, nil, nil, body)
	}
}

// compileArg lowers a call argument expression. A call argument
// supplies a value to a runtime parameter, so a bare literal or name
// is loaded as a value rather than dispatched as a grammar match —
// unlike the same node in grammar-body position (compileExpr). A
// compound node (a nested call, alternation, or sequence) still
// compiles through compileExpr, since a call argument may itself be a
// sub-parse whose result value is bound.
func (c *Compiler) compileArg(n *tree.Node) ir.Op {
	switch n.Emit {
	case "name", "value_string", "value_int":
		return ir.Load{Value: c.compileOperandValue(n)}
	default:
		return c.compileExpr(n)
	}
}

// unresolvedName digs through a possibly-Shared IR value to the
// unresolved Name underneath, if any.
func unresolvedName(v ir.Value) (ir.Name, bool) {
	switch t := v.(type) {
	case ir.Shared:
		return unresolvedName(t.Cell.V)
	case ir.Name:
		return t, true
	default:
		return ir.Name{}, false
	}
}
