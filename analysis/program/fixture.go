// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package program

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// A fixture is a yaml description of a program in three-address form:
//
//	superglobals: [_GET]
//	constants: [DEBUG]
//	functions:
//	  - name: f
//	    params: ["&p"]
//	    body:
//	      - "$p = $_GET['x']"
//	main:
//	  - "$a = 1"
//	  - "f($a)"
//	  - if:
//	      - "echo($a)"
//	    else:
//	      - "$a = htmlentities($a)"
//	  - while:
//	      - "$a = $a . 'x'"
//
// Statements are one of:
//
//	$x = ATOM | $x = ATOM OP ATOM | $x = UNOP ATOM | $x = (cast) ATOM
//	$x =& $y | $x = array() | $a[ATOM] = ATOM | $x = $a[ATOM]
//	[$x =] name(ATOM, ...) | unset($x) | global $x | include 'file' | return [ATOM]
//
// An atom is a variable, a number, a quoted string or a constant. A call to a function declared in the fixture is a
// user function call, any other call is a builtin call.
type fixture struct {
	Superglobals []string          `yaml:"superglobals"`
	Constants    []string          `yaml:"constants"`
	Globals      []string          `yaml:"globals"`
	Functions    []fixtureFunction `yaml:"functions"`
	Main         []fixtureStmt     `yaml:"main"`
}

type fixtureFunction struct {
	Name   string        `yaml:"name"`
	Params []string      `yaml:"params"`
	Body   []fixtureStmt `yaml:"body"`
}

// fixtureStmt is either a single statement or a structured statement (if/else, while)
type fixtureStmt struct {
	Line  int
	Text  string
	If    []fixtureStmt
	Else  []fixtureStmt
	While []fixtureStmt
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *fixtureStmt) UnmarshalYAML(value *yaml.Node) error {
	s.Line = value.Line
	switch value.Kind {
	case yaml.ScalarNode:
		s.Text = value.Value
		return nil
	case yaml.MappingNode:
		var structured struct {
			If    []fixtureStmt `yaml:"if"`
			Else  []fixtureStmt `yaml:"else"`
			While []fixtureStmt `yaml:"while"`
		}
		if err := value.Decode(&structured); err != nil {
			return err
		}
		if (structured.If == nil) == (structured.While == nil) {
			return fmt.Errorf("line %d: structured statement must be exactly one of if or while", value.Line)
		}
		if structured.Else != nil && structured.If == nil {
			return fmt.Errorf("line %d: else without if", value.Line)
		}
		s.If, s.Else, s.While = structured.If, structured.Else, structured.While
		return nil
	}
	return fmt.Errorf("line %d: unexpected statement", value.Line)
}

// LoadYAML reads a program fixture from a file
func LoadYAML(filename string) (*Program, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read program file: %w", err)
	}
	return LoadYAMLBytes(filename, b)
}

// LoadYAMLBytes parses a program fixture. The filename is only used in error messages.
func LoadYAMLBytes(filename string, b []byte) (*Program, error) {
	var f fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("could not unmarshal program %q: %w", filename, err)
	}
	builder := NewBuilder()
	for _, name := range f.Superglobals {
		builder.Superglobal(name)
	}
	for _, name := range f.Constants {
		builder.Constant(name)
	}
	for _, name := range f.Globals {
		builder.Global(name)
	}
	// declare all functions first so that calls can be classified as user calls or builtin calls
	var fbs []*FunctionBuilder
	for _, fn := range f.Functions {
		var params []ParamDecl
		for _, p := range fn.Params {
			name := strings.TrimPrefix(p, "&")
			params = append(params, ParamDecl{Name: strings.TrimPrefix(name, "$"), ByRef: strings.HasPrefix(p, "&")})
		}
		fbs = append(fbs, builder.Function(fn.Name, params...))
	}
	for i, fn := range f.Functions {
		if err := emitStmts(fbs[i], fn.Body); err != nil {
			return nil, fmt.Errorf("%s: function %s: %w", filename, fn.Name, err)
		}
	}
	if err := emitStmts(builder.Main(), f.Main); err != nil {
		return nil, fmt.Errorf("%s: main: %w", filename, err)
	}
	p, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

func emitStmts(fb *FunctionBuilder, stmts []fixtureStmt) error {
	for _, stmt := range stmts {
		var err error
		switch {
		case stmt.If != nil:
			var errThen, errElse error
			var els func(*FunctionBuilder)
			if stmt.Else != nil {
				els = func(fb *FunctionBuilder) { errElse = emitStmts(fb, stmt.Else) }
			}
			fb.Branch(func(fb *FunctionBuilder) { errThen = emitStmts(fb, stmt.If) }, els)
			err = firstError(errThen, errElse)
		case stmt.While != nil:
			fb.Loop(func(fb *FunctionBuilder) { err = emitStmts(fb, stmt.While) })
		default:
			err = emitStmt(fb, stmt.Text)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", stmt.Line, err)
		}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var binOps = map[string]BinOp{
	".": Concat, "+": Plus, "-": Minus, "*": Mult, "/": Div, "%": Mod, "==": Equal, "<": Less, "&&": And, "||": Or,
}

var unOps = map[string]UnOp{"-": Neg, "!": Not, "~": BitNot}

var casts = map[string]UnOp{
	"int": CastInt, "float": CastFloat, "bool": CastBool, "string": CastString, "array": CastArray,
}

// emitStmt parses a single statement and emits the corresponding nodes
func emitStmt(fb *FunctionBuilder, text string) error {
	toks, err := lex(text)
	if err != nil {
		return err
	}
	p := &stmtParser{fb: fb, toks: toks}
	if err := p.statement(); err != nil {
		return fmt.Errorf("%q: %w", text, err)
	}
	return nil
}

type stmtParser struct {
	fb   *FunctionBuilder
	toks []token
	pos  int
}

func (p *stmtParser) peek(offset int) token {
	if p.pos+offset < len(p.toks) {
		return p.toks[p.pos+offset]
	}
	return token{kind: tokEOF}
}

func (p *stmtParser) next() token {
	t := p.peek(0)
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *stmtParser) expect(kind tokenKind, text string) error {
	t := p.next()
	if t.kind != kind || (text != "" && t.text != text) {
		return fmt.Errorf("expected %q, got %q", text, t.text)
	}
	return nil
}

func (p *stmtParser) end() error {
	if t := p.peek(0); t.kind != tokEOF {
		return fmt.Errorf("unexpected %q", t.text)
	}
	return nil
}

func (p *stmtParser) variable() (VarID, error) {
	t := p.next()
	if t.kind != tokVar {
		return NoVar, fmt.Errorf("expected variable, got %q", t.text)
	}
	return p.fb.Local(t.text), nil
}

func (p *stmtParser) atom() (Place, error) {
	t := p.next()
	switch t.kind {
	case tokVar:
		return V(p.fb.Local(t.text)), nil
	case tokNumber, tokString:
		return Lit(t.text), nil
	case tokIdent:
		if p.fb.b.IsConstant(t.text) {
			return V(p.fb.b.Constant(t.text)), nil
		}
		return Place{}, fmt.Errorf("undeclared constant %s", t.text)
	}
	return Place{}, fmt.Errorf("expected operand, got %q", t.text)
}

func (p *stmtParser) statement() error {
	t := p.peek(0)
	switch {
	case t.kind == tokIdent && t.text == "return":
		p.next()
		if p.peek(0).kind == tokEOF {
			p.fb.Return(Lit(""))
			return nil
		}
		x, err := p.atom()
		if err != nil {
			return err
		}
		p.fb.Return(x)
		return p.end()
	case t.kind == tokIdent && t.text == "global":
		p.next()
		v := p.next()
		if v.kind != tokVar {
			return fmt.Errorf("expected variable after global")
		}
		p.fb.Global(v.text)
		return p.end()
	case t.kind == tokIdent && t.text == "include":
		p.next()
		f := p.next()
		if f.kind != tokString {
			return fmt.Errorf("expected file name after include")
		}
		p.fb.Include(f.text)
		return p.end()
	case t.kind == tokIdent && t.text == "unset":
		p.next()
		if err := p.expect(tokPunct, "("); err != nil {
			return err
		}
		v, err := p.variable()
		if err != nil {
			return err
		}
		if err := p.expect(tokPunct, ")"); err != nil {
			return err
		}
		p.fb.Unset(v)
		return p.end()
	case t.kind == tokIdent:
		if err := p.call(NoVar); err != nil {
			return err
		}
		return p.end()
	case t.kind == tokVar && p.peek(1).text == "[":
		return p.store()
	case t.kind == tokVar:
		return p.assignment()
	}
	return fmt.Errorf("unexpected %q", t.text)
}

func (p *stmtParser) store() error {
	arr, err := p.variable()
	if err != nil {
		return err
	}
	p.next()
	index, err := p.atom()
	if err != nil {
		return err
	}
	if err := p.expect(tokPunct, "]"); err != nil {
		return err
	}
	if err := p.expect(tokPunct, "="); err != nil {
		return err
	}
	value, err := p.atom()
	if err != nil {
		return err
	}
	p.fb.Store(arr, index, value)
	return p.end()
}

func (p *stmtParser) assignment() error {
	left, err := p.variable()
	if err != nil {
		return err
	}
	op := p.next()
	if op.text == "=&" {
		right, err := p.variable()
		if err != nil {
			return err
		}
		p.fb.Ref(left, right)
		return p.end()
	}
	if op.text != "=" {
		return fmt.Errorf("expected assignment, got %q", op.text)
	}
	t := p.peek(0)
	switch {
	case t.kind == tokIdent && t.text == "array" && p.peek(1).text == "(":
		p.pos += 2
		if err := p.expect(tokPunct, ")"); err != nil {
			return err
		}
		p.fb.Array(left)
		return p.end()
	case t.kind == tokIdent && !p.fb.b.IsConstant(t.text):
		if err := p.call(left); err != nil {
			return err
		}
		return p.end()
	case t.kind == tokPunct && t.text == "(":
		p.next()
		c := p.next()
		castOp, ok := casts[c.text]
		if !ok {
			return fmt.Errorf("unknown cast %q", c.text)
		}
		if err := p.expect(tokPunct, ")"); err != nil {
			return err
		}
		x, err := p.atom()
		if err != nil {
			return err
		}
		p.fb.Unary(left, castOp, x)
		return p.end()
	case t.kind == tokPunct:
		unOp, ok := unOps[t.text]
		if !ok {
			return fmt.Errorf("unknown unary operator %q", t.text)
		}
		p.next()
		x, err := p.atom()
		if err != nil {
			return err
		}
		p.fb.Unary(left, unOp, x)
		return p.end()
	case t.kind == tokVar && p.peek(1).text == "[":
		arr, err := p.variable()
		if err != nil {
			return err
		}
		p.next()
		index, err := p.atom()
		if err != nil {
			return err
		}
		if err := p.expect(tokPunct, "]"); err != nil {
			return err
		}
		p.fb.Load(left, arr, index)
		return p.end()
	}
	x, err := p.atom()
	if err != nil {
		return err
	}
	if p.peek(0).kind == tokEOF {
		p.fb.Assign(left, x)
		return nil
	}
	opTok := p.next()
	binOp, ok := binOps[opTok.text]
	if !ok {
		return fmt.Errorf("unknown binary operator %q", opTok.text)
	}
	y, err := p.atom()
	if err != nil {
		return err
	}
	p.fb.Binary(left, binOp, x, y)
	return p.end()
}

// call parses name(args...) and emits a user function call if name is a function of the program, and a builtin call
// otherwise.
func (p *stmtParser) call(result VarID) error {
	name := p.next().text
	if err := p.expect(tokPunct, "("); err != nil {
		return err
	}
	var args []Place
	for p.peek(0).text != ")" {
		if len(args) > 0 {
			if err := p.expect(tokPunct, ","); err != nil {
				return err
			}
		}
		a, err := p.atom()
		if err != nil {
			return err
		}
		args = append(args, a)
	}
	p.next()
	if p.fb.b.HasFunction(name) {
		p.fb.Call(name, result, args...)
	} else {
		p.fb.Builtin(name, result, args...)
	}
	return nil
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokVar
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// two-character punctuation, checked before single characters
var punct2 = []string{"=&", "==", "&&", "||"}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '$':
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty variable name at %d", i)
			}
			toks = append(toks, token{tokVar, s[i+1 : j]})
			i = j
		case isDigit(c):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case isIdentChar(c):
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		case c == '\'' || c == '"':
			j := strings.IndexByte(s[i+1:], c)
			if j < 0 {
				return nil, fmt.Errorf("unterminated string at %d", i)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+j]})
			i += j + 2
		default:
			matched := false
			for _, p := range punct2 {
				if strings.HasPrefix(s[i:], p) {
					toks = append(toks, token{tokPunct, p})
					i += 2
					matched = true
					break
				}
			}
			if !matched {
				if !strings.ContainsRune("=[](),.+-*/%<!~", rune(c)) {
					return nil, fmt.Errorf("unexpected character %q at %d", c, i)
				}
				toks = append(toks, token{tokPunct, string(c)})
				i++
			}
		}
	}
	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
