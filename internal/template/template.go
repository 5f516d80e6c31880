// Package template implements the controller wire-format template
// language (spec.md §4.2): whitespace-separated tokens mixing byte
// literals, `{expr}` expressions, bare-identifier macro/function/variable
// resolution, and a `{#for pad in pads} … {#end}` bulk loop.
//
// Per spec.md Design Notes §9, templates are parsed once into a small AST
// at descriptor load time and evaluated against a typed integer
// environment — the Python original instead calls eval() on the
// expression strings at send time, which this package deliberately does
// not reproduce.
package template

import (
	"fmt"
	"strings"
)

// Pad carries the fields a `{#for pad in pads}` body can reference:
// pad.x, pad.y, pad.noteNumber, pad.red, pad.green, pad.blue. Colors are
// halved by padFieldValue at evaluation time for the 7-bit MIDI payload.
type Pad struct {
	X, Y, NoteNumber int
	Red, Green, Blue int
}

// FuncDef is a controller-declared helper function (keyIndex, boardIndex,
// MSB, …), itself defined as an expression string over its parameters.
type FuncDef struct {
	Params []string
	Body   Expr
}

func (f *FuncDef) call(env *Env, args []int) (int, error) {
	if len(args) != len(f.Params) {
		return 0, fmt.Errorf("template: %q expects %d args, got %d", f.Params, len(f.Params), len(args))
	}
	child := env.child()
	for i, p := range f.Params {
		child.Vars[p] = args[i]
	}
	return f.Body.eval(child)
}

// Env is the variable environment a Template is rendered against.
type Env struct {
	Vars       map[string]int
	Macros     map[string]*Template
	Funcs      map[string]*FuncDef
	RowLengths []int
	Pads       []Pad
	Pad        *Pad
	Warn       func(format string, args ...any)
}

func (e *Env) child() *Env {
	nv := make(map[string]int, len(e.Vars))
	for k, v := range e.Vars {
		nv[k] = v
	}
	c := *e
	c.Vars = nv
	return &c
}

func (e *Env) withPad(p *Pad) *Env {
	c := *e
	c.Pad = p
	return &c
}

func (e *Env) warnf(format string, args ...any) {
	if e.Warn != nil {
		e.Warn(format, args...)
	}
}

func evalBuiltinExpr(env *Env, name string, args []int) (int, bool, error) {
	switch name {
	case "cumulativeIndex":
		if len(args) != 2 {
			return 0, true, fmt.Errorf("template: cumulativeIndex expects (x,y)")
		}
		x, y := args[0], args[1]
		idx := x
		for row := 0; row < y && row < len(env.RowLengths); row++ {
			idx += env.RowLengths[row]
		}
		return idx, true, nil
	case "MSB":
		if len(args) != 1 {
			return 0, true, fmt.Errorf("template: MSB expects one argument")
		}
		return (args[0] >> 7) & 0x7f, true, nil
	case "LSB":
		if len(args) != 1 {
			return 0, true, fmt.Errorf("template: LSB expects one argument")
		}
		return args[0] & 0x7f, true, nil
	default:
		return 0, false, nil
	}
}

// node is the statement-level AST: each node renders to zero or more
// bytes (a for-loop or a macro expansion renders many, NRPN renders two,
// everything else renders exactly one; an unresolved failure renders a
// single zero byte).
type node interface {
	eval(env *Env, visiting map[string]bool) ([]byte, error)
}

type literalNode byte

func (n literalNode) eval(*Env, map[string]bool) ([]byte, error) { return []byte{byte(n)}, nil }

type exprNode struct{ expr Expr }

func (n exprNode) eval(env *Env, _ map[string]bool) ([]byte, error) {
	v, err := n.expr.eval(env)
	if err != nil {
		env.warnf("template: %v", err)
		return []byte{0}, nil
	}
	if v < 0 || v > 255 {
		env.warnf("template: expression value %d out of byte range", v)
		return []byte{0}, nil
	}
	return []byte{byte(v)}, nil
}

// ErrTemplateRecursion is reported (via Env.Warn, not returned — per
// spec.md §4.2 a template failure never aborts a bulk send) when a macro
// references itself.
type ErrTemplateRecursion struct{ Name string }

func (e ErrTemplateRecursion) Error() string {
	return fmt.Sprintf("template: recursive self-reference through macro %q", e.Name)
}

const maxMacroDepth = 32

type identNode string

func (n identNode) eval(env *Env, visiting map[string]bool) ([]byte, error) {
	name := string(n)
	if t, ok := env.Macros[name]; ok {
		if visiting[name] || len(visiting) >= maxMacroDepth {
			env.warnf("%v", ErrTemplateRecursion{Name: name})
			return []byte{0}, nil
		}
		visiting[name] = true
		defer delete(visiting, name)
		return t.renderNodes(env, visiting)
	}
	if v, ok := env.Vars[name]; ok {
		if v < 0 || v > 255 {
			env.warnf("template: variable %q value %d out of byte range", name, v)
			return []byte{0}, nil
		}
		return []byte{byte(v)}, nil
	}
	env.warnf("template: unknown identifier %q", name)
	return []byte{0}, nil
}

type callNode struct {
	name string
	args []Expr
}

func (n callNode) eval(env *Env, _ map[string]bool) ([]byte, error) {
	args := make([]int, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			env.warnf("template: %v", err)
			return []byte{0}, nil
		}
		args[i] = v
	}
	if n.name == "NRPN" {
		if len(args) != 2 {
			env.warnf("template: NRPN expects (msb,lsb)")
			return []byte{0}, nil
		}
		return []byte{byte(args[0] & 0x7f), byte(args[1] & 0x7f)}, nil
	}
	if fn, ok := env.Funcs[n.name]; ok {
		v, err := fn.call(env, args)
		if err != nil || v < 0 || v > 255 {
			env.warnf("template: call to %q failed or out of range: %v", n.name, err)
			return []byte{0}, nil
		}
		return []byte{byte(v)}, nil
	}
	if v, ok, err := evalBuiltinExpr(env, n.name, args); ok {
		if err != nil || v < 0 || v > 255 {
			env.warnf("template: built-in %q failed or out of range: %v", n.name, err)
			return []byte{0}, nil
		}
		return []byte{byte(v)}, nil
	}
	env.warnf("template: unknown function %q", n.name)
	return []byte{0}, nil
}

// padFieldValue resolves pad.<field>, shared by padFieldNode (bare-token
// statements) and identExpr (braced expressions, e.g. {pad.x}) so both
// paths agree on field names and on halving color channels.
func padFieldValue(p *Pad, field string) (int, bool) {
	switch field {
	case "x":
		return p.X, true
	case "y":
		return p.Y, true
	case "noteNumber":
		return p.NoteNumber, true
	case "red":
		return p.Red / 2, true
	case "green":
		return p.Green / 2, true
	case "blue":
		return p.Blue / 2, true
	default:
		return 0, false
	}
}

type padFieldNode string

func (n padFieldNode) eval(env *Env, _ map[string]bool) ([]byte, error) {
	if env.Pad == nil {
		env.warnf("template: pad.%s referenced outside a {#for pad in pads} body", string(n))
		return []byte{0}, nil
	}
	v, ok := padFieldValue(env.Pad, string(n))
	if !ok {
		env.warnf("template: unknown pad field %q", string(n))
		return []byte{0}, nil
	}
	if v < 0 || v > 255 {
		env.warnf("template: pad.%s value %d out of byte range", string(n), v)
		return []byte{0}, nil
	}
	return []byte{byte(v)}, nil
}

type forNode struct{ body []node }

func (n forNode) eval(env *Env, visiting map[string]bool) ([]byte, error) {
	var out []byte
	for i := range env.Pads {
		padEnv := env.withPad(&env.Pads[i])
		for _, child := range n.body {
			b, err := child.eval(padEnv, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}
	return out, nil
}

// Template is a parsed, ready-to-render program.
type Template struct {
	nodes []node
}

func (t *Template) renderNodes(env *Env, visiting map[string]bool) ([]byte, error) {
	var out []byte
	for _, n := range t.nodes {
		b, err := n.eval(env, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// Render evaluates the template into its MIDI byte stream.
func (t *Template) Render(env *Env) ([]byte, error) {
	if env.Warn == nil {
		env.Warn = func(string, ...any) {}
	}
	return t.renderNodes(env, make(map[string]bool, 4))
}

// Parse parses a template source string into an AST. warn, if non-nil, is
// used to report soft failures found during parsing (out-of-range literals);
// structural errors (an unterminated `{#for}` loop) are returned, per
// spec.md §4.2's "loop without matching {#end} is a descriptor-load error".
func Parse(src string, warn func(format string, args ...any)) (*Template, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	// Rejoin a braced expression that whitespace split apart, e.g.
	// "{0x0F & 0x03}", so it reaches ParseExpr as one token.
	fields := strings.Fields(src)
	toks := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if strings.HasPrefix(tok, "{") && !strings.HasPrefix(tok, "{#") {
			for !strings.HasSuffix(tok, "}") && i+1 < len(fields) {
				i++
				tok += " " + fields[i]
			}
		}
		toks = append(toks, tok)
	}
	p := &tplParser{toks: toks, warn: warn}
	nodes, err := p.parseUntil("")
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

type tplParser struct {
	toks []string
	pos  int
	warn func(format string, args ...any)
}

func (p *tplParser) parseUntil(stop string) ([]node, error) {
	var nodes []node
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		if stop != "" && tok == stop {
			p.pos++
			return nodes, nil
		}
		n, err := p.parseToken()
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	if stop != "" {
		return nil, fmt.Errorf("template: unterminated {#for} loop, expected %s", stop)
	}
	return nodes, nil
}

func (p *tplParser) parseToken() (node, error) {
	tok := p.toks[p.pos]
	switch {
	case tok == "{#for":
		p.pos++
		if p.pos >= len(p.toks) {
			return nil, fmt.Errorf("template: malformed {#for loop header")
		}
		p.pos++ // loop variable name ("pad"), not otherwise validated
		if p.pos >= len(p.toks) || p.toks[p.pos] != "in" {
			return nil, fmt.Errorf("template: malformed {#for loop header, expected 'in'")
		}
		p.pos++
		if p.pos >= len(p.toks) || !strings.HasSuffix(p.toks[p.pos], "}") {
			return nil, fmt.Errorf("template: malformed {#for loop header, expected 'pads}'")
		}
		p.pos++
		body, err := p.parseUntil("{#end}")
		if err != nil {
			return nil, err
		}
		return forNode{body: body}, nil
	case tok == "{#end}":
		return nil, fmt.Errorf("template: unexpected {#end} without matching {#for}")
	case strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") && !strings.HasPrefix(tok, "{#"):
		p.pos++
		inner := tok[1 : len(tok)-1]
		e, err := ParseExpr(inner)
		if err != nil {
			p.warn("template: malformed expression %q: %v", inner, err)
			return literalNode(0), nil
		}
		return exprNode{expr: e}, nil
	case strings.HasPrefix(tok, "pad.") && isPadField(tok[4:]):
		p.pos++
		return padFieldNode(tok[4:]), nil
	case looksLikeNumber(tok):
		p.pos++
		v, err := parseIntLiteral(tok)
		if err != nil {
			p.warn("template: malformed literal %q: %v", tok, err)
			return literalNode(0), nil
		}
		if v < 0 || v > 255 {
			p.warn("template: literal %q out of byte range", tok)
			return literalNode(0), nil
		}
		return literalNode(byte(v)), nil
	default:
		p.pos++
		if idx := strings.IndexByte(tok, '('); idx >= 0 && strings.HasSuffix(tok, ")") {
			name := tok[:idx]
			argsStr := tok[idx+1 : len(tok)-1]
			var args []Expr
			if argsStr != "" {
				for _, part := range strings.Split(argsStr, ",") {
					e, err := ParseExpr(strings.TrimSpace(part))
					if err != nil {
						p.warn("template: malformed call argument %q: %v", part, err)
						return literalNode(0), nil
					}
					args = append(args, e)
				}
			}
			return callNode{name: name, args: args}, nil
		}
		return identNode(tok), nil
	}
}

func isPadField(field string) bool {
	switch field {
	case "x", "y", "noteNumber", "red", "green", "blue":
		return true
	default:
		return false
	}
}

func looksLikeNumber(tok string) bool {
	if tok == "" {
		return false
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		return len(tok) > 2
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
