package tree

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/praizmiky/focus/internal/rtvalue"
)

// parser is a small recursive-descent reader over the token stream
// produced by lexAll, implementing this grammar language's fixed,
// non-extensible precedence:
//
//	alternation ">" sequence ">" postfix
//
// There is no user-definable operator table here, so the reader is a
// plain top-down grammar instead of a precedence climber.
type parser struct {
	toks []lexeme
	pos  int
	errs []error
}

// Parse reads one program from r and returns its tree, rooted at a
// "main" node whose children are the program's top-level statements.
func Parse(r io.Reader) (*Node, error) {
	toks, err := lexAll(r)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n := p.parseProgram()
	if len(p.errs) > 0 {
		msgs := make([]string, len(p.errs))
		for i, e := range p.errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return n, nil
}

// ParseString is a convenience wrapper around Parse for string sources.
func ParseString(src string) (*Node, error) {
	return Parse(strings.NewReader(src))
}

func (p *parser) peek() lexeme  { return p.toks[p.pos] }
func (p *parser) advance() lexeme {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) skipNL() {
	for p.peek().typ == nlTok {
		p.advance()
	}
}

func (p *parser) errorf(off Offset, format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s", off.String(), fmt.Sprintf(format, args...)))
}

func (p *parser) expectOp(op string) (Offset, bool) {
	t := p.peek()
	if t.typ == opTok && t.tok == op {
		p.advance()
		return t.off, true
	}
	p.errorf(t.off, "expected %q, found %q", op, t.tok)
	return t.off, false
}

func (p *parser) parseProgram() *Node {
	off := p.peek().off
	main := &Node{Emit: "main", Offset: &off}
	p.skipNL()
	for p.peek().typ != eofTok {
		stmt := p.parseStatement()
		if stmt != nil {
			main.Children = append(main.Children, stmt)
		}
		p.skipNL()
	}
	return main
}

// parseStatement recognizes a named parselet/constant definition
// ("Name : alternation") or, for any other construct, a bare
// expression statement, returned as a direct child of the "main" node.
func (p *parser) parseStatement() *Node {
	start := p.pos
	t := p.peek()
	if t.typ == identTok {
		nameOff := t.off
		name := t.tok
		p.advance()

		var sig *Node
		if p.peek().typ == opTok && p.peek().tok == "(" {
			sigStart := p.pos
			if n, ok := p.tryParseSignature(); ok {
				sig = n
			} else {
				p.pos = sigStart
			}
		}

		if op := p.peek(); op.typ == opTok && op.tok == ":" {
			p.advance()
			body := p.parseAlternation()
			nameNode := &Node{Emit: "name", Offset: &nameOff, Value: rtvalue.Str(name)}
			children := []*Node{nameNode, body}
			if sig != nil {
				children = append(children, sig)
			}
			return &Node{
				Emit:     "constant",
				Offset:   &nameOff,
				Children: children,
			}
		}
		// Not a definition; rewind and fall through to expression parsing.
		p.pos = start
	}
	return p.parseAlternation()
}

// tryParseSignature speculatively parses "(p1, p2: default, ...)" as a
// parameter list. It only succeeds on the simple shape a signature can
// take (bare names, optionally "name: default-literal-or-name"); any
// other content (nested calls, postfix operators) means the opening
// "(" actually started an ordinary call expression, so the caller
// rewinds and falls back to expression parsing.
func (p *parser) tryParseSignature() (*Node, bool) {
	off := p.peek().off
	p.advance() // "("

	var params []*Node
	for {
		if p.peek().typ == opTok && p.peek().tok == ")" {
			break
		}
		if p.peek().typ != identTok {
			return nil, false
		}
		nt := p.advance()
		param := &Node{Emit: "param", Offset: &nt.off, Value: rtvalue.Str(nt.tok)}
		if p.peek().typ == opTok && p.peek().tok == ":" {
			p.advance()
			def, ok := p.tryParseSimplePrimary()
			if !ok {
				return nil, false
			}
			param.Children = []*Node{def}
		}
		params = append(params, param)
		if p.peek().typ == opTok && p.peek().tok == "," {
			p.advance()
			continue
		}
		break
	}

	if !(p.peek().typ == opTok && p.peek().tok == ")") {
		return nil, false
	}
	p.advance()
	return &Node{Emit: "signature", Offset: &off, Children: params}, true
}

// tryParseSimplePrimary parses the restricted set of expressions
// allowed as a signature parameter's default: a literal or a bare
// name, with no calls or postfix operators.
func (p *parser) tryParseSimplePrimary() (*Node, bool) {
	t := p.peek()
	switch {
	case t.typ == strTok:
		p.advance()
		return &Node{Emit: "value_string", Offset: &t.off, Value: rtvalue.Str(t.tok)}, true
	case t.typ == intTok:
		p.advance()
		n := new(big.Int)
		n.SetString(t.tok, 10)
		return &Node{Emit: "value_int", Offset: &t.off, Value: rtvalue.Int{Int: n}}, true
	case t.typ == identTok:
		p.advance()
		return &Node{Emit: "name", Offset: &t.off, Value: rtvalue.Str(t.tok)}, true
	default:
		return nil, false
	}
}

func (p *parser) parseAlternation() *Node {
	off := p.peek().off
	alts := []*Node{p.parseSequence()}
	for p.peek().typ == opTok && p.peek().tok == "|" {
		p.advance()
		alts = append(alts, p.parseSequence())
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return &Node{Emit: "block", Offset: &off, Children: alts}
}

func (p *parser) parseSequence() *Node {
	off := p.peek().off
	var items []*Node
	for isPrimaryStart(p.peek()) {
		items = append(items, p.parsePostfix())
	}
	if len(items) == 0 {
		p.errorf(off, "expected an expression, found %q", p.peek().tok)
		return &Node{Emit: "inline_sequence", Offset: &off}
	}
	if len(items) == 1 {
		return items[0]
	}
	return &Node{Emit: "inline_sequence", Offset: &off, Children: items}
}

func isPrimaryStart(t lexeme) bool {
	switch t.typ {
	case identTok, strTok, intTok:
		return true
	case opTok:
		return t.tok == "("
	}
	return false
}

func (p *parser) parsePostfix() *Node {
	off := p.peek().off
	primary := p.parsePrimary()
	for p.peek().typ == opTok {
		var emit string
		switch p.peek().tok {
		case "?":
			emit = "op_mod_opt"
		case "+":
			emit = "op_mod_pos"
		case "*":
			emit = "op_mod_kle"
		default:
			return primary
		}
		p.advance()
		primary = &Node{Emit: emit, Offset: &off, Children: []*Node{primary}}
	}
	return primary
}

func (p *parser) parsePrimary() *Node {
	t := p.peek()
	switch {
	case t.typ == strTok:
		p.advance()
		return &Node{Emit: "value_string", Offset: &t.off, Value: rtvalue.Str(t.tok)}
	case t.typ == intTok:
		p.advance()
		n := new(big.Int)
		n.SetString(t.tok, 10)
		return &Node{Emit: "value_int", Offset: &t.off, Value: rtvalue.Int{Int: n}}
	case t.typ == opTok && t.tok == "(":
		p.advance()
		inner := p.parseAlternation()
		p.expectOp(")")
		return inner
	case t.typ == identTok:
		return p.parseNameOrCall()
	default:
		p.errorf(t.off, "unexpected token %q", t.tok)
		p.advance()
		return &Node{Emit: "name", Offset: &t.off, Value: rtvalue.Str("")}
	}
}

func (p *parser) parseNameOrCall() *Node {
	t := p.advance()
	name := &Node{Emit: "name", Offset: &t.off, Value: rtvalue.Str(t.tok)}

	if op := p.peek(); op.typ == opTok && (op.tok == "<" || op.tok == "(") {
		// "<...>" is generic instantiation (config bound into a derived
		// parselet's Constants); "(...)" is an ordinary call (runtime
		// args bound to the target's Signature/Locals). Same argument
		// grammar, different Emit so the compiler can tell them apart
		// without re-inspecting source text.
		emit := "call"
		closing := ")"
		if op.tok == "<" {
			emit = "instance"
			closing = ">"
		}
		off := op.off
		p.advance()
		args := []*Node{name}
		if !(p.peek().typ == opTok && p.peek().tok == closing) {
			args = append(args, p.parseArg())
			for p.peek().typ == opTok && p.peek().tok == "," {
				p.advance()
				args = append(args, p.parseArg())
			}
		}
		p.expectOp(closing)
		return &Node{Emit: emit, Offset: &off, Children: args}
	}

	return name
}

// parseArg parses one call argument, either positional or, when
// followed by ':', named ("name: expr" becomes a "named_arg" node
// whose own Value carries the argument name).
func (p *parser) parseArg() *Node {
	if p.peek().typ == identTok {
		save := p.pos
		t := p.advance()
		if op := p.peek(); op.typ == opTok && op.tok == ":" {
			p.advance()
			val := p.parsePostfix()
			return &Node{Emit: "named_arg", Offset: &t.off, Value: rtvalue.Str(t.tok), Children: []*Node{val}}
		}
		p.pos = save
	}
	return p.parsePostfix()
}
