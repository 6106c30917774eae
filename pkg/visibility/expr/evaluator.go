package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formstate/pkg/visibility"
)

// Evaluator is a small, dependency-free visibility evaluator.
//
// Supported syntax:
// - boolean checks: `checked`
// - comparisons: `checked == true`, `name != "x"`, `age >= 18`, `age < 65`
// - boolean composition: `a && !b`, `(a || b) && c`
//
// Identifiers resolve against visibility.Context.Values (with dot-path
// traversal) and visibility.Context.Extras (via the `extras.` prefix).
// Parsed programs are kept per rule string; evaluation always reads the
// context it is given.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*Program
}

func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*Program)}
}

// Eval implements visibility.Evaluator.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	_ = fieldPath
	program, err := e.program(rule)
	if err != nil {
		return false, err
	}
	return program.Eval(ctx)
}

func (e *Evaluator) program(rule string) (*Program, error) {
	key := strings.TrimSpace(rule)

	e.mu.RLock()
	program, ok := e.programs[key]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := Compile(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.programs == nil {
		e.programs = make(map[string]*Program)
	}
	e.programs[key] = program
	e.mu.Unlock()
	return program, nil
}

// Program is a compiled rule.
type Program struct {
	source string
	root   exprNode
}

// Compile parses rule. An empty rule compiles to a program that is always
// true.
func Compile(rule string) (*Program, error) {
	trimmed := strings.TrimSpace(rule)
	program := &Program{source: trimmed}
	if trimmed == "" {
		return program, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return program, nil
	}

	root, err := parseExpression(tokens)
	if err != nil {
		return nil, err
	}
	program.root = root
	return program, nil
}

// Source returns the rule the program was compiled from.
func (p *Program) Source() string {
	return p.source
}

// Identifiers lists the value identifiers the rule reads, in first-use order.
func (p *Program) Identifiers() []string {
	if p == nil || p.root == nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	p.root.identifiers(func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	})
	return out
}

// Eval runs the program against ctx.
func (p *Program) Eval(ctx visibility.Context) (bool, error) {
	if p == nil || p.root == nil {
		return true, nil
	}
	return p.root.eval(ctx)
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|', '<', '>':
		return true
	}
	return false
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw})
		i += len(raw)
	}

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			emit(tokenLParen, "(")
		case ch == ')':
			emit(tokenRParen, ")")
		case ch == '!' && peek(1) == '=':
			emit(tokenNeq, "!=")
		case ch == '!':
			emit(tokenNot, "!")
		case ch == '=' && peek(1) == '=':
			emit(tokenEq, "==")
		case ch == '=':
			return nil, errors.New("visibility/expr: unexpected '='; use '=='")
		case ch == '<' && peek(1) == '=':
			emit(tokenLte, "<=")
		case ch == '<':
			emit(tokenLt, "<")
		case ch == '>' && peek(1) == '=':
			emit(tokenGte, ">=")
		case ch == '>':
			emit(tokenGt, ">")
		case ch == '&' && peek(1) == '&':
			emit(tokenAnd, "&&")
		case ch == '&':
			return nil, errors.New("visibility/expr: unexpected '&'; use '&&'")
		case ch == '|' && peek(1) == '|':
			emit(tokenOr, "||")
		case ch == '|':
			return nil, errors.New("visibility/expr: unexpected '|'; use '||'")
		case ch == '"' || ch == '\'':
			value, width, err := scanString(input[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i += width
		default:
			start := i
			for i < len(input) && !isSeparator(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}

	return tokens, nil
}

// scanString reads a quoted literal at the start of input and returns the
// unquoted value plus the number of bytes consumed.
func scanString(input string) (string, int, error) {
	quote := input[0]
	escaped := false
	for j := 1; j < len(input); j++ {
		c := input[j]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c != quote {
			continue
		}
		body := input[1:j]
		if quote == '\'' {
			body = strings.ReplaceAll(body, `\'`, `'`)
			body = strings.ReplaceAll(body, `"`, `\"`)
		}
		value, err := strconv.Unquote(`"` + body + `"`)
		if err != nil {
			return "", 0, fmt.Errorf("visibility/expr: invalid string literal: %w", err)
		}
		return value, j + 1, nil
	}
	return "", 0, errors.New("visibility/expr: unterminated string literal")
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+' || ch == '.'
}

type exprNode interface {
	eval(ctx visibility.Context) (bool, error)
	identifiers(visit func(string))
}

type exprOr struct {
	left  exprNode
	right exprNode
}

func (n exprOr) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return n.right.eval(ctx)
}

func (n exprOr) identifiers(visit func(string)) {
	n.left.identifiers(visit)
	n.right.identifiers(visit)
}

type exprAnd struct {
	left  exprNode
	right exprNode
}

func (n exprAnd) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return n.right.eval(ctx)
}

func (n exprAnd) identifiers(visit func(string)) {
	n.left.identifiers(visit)
	n.right.identifiers(visit)
}

type exprNot struct {
	inner exprNode
}

func (n exprNot) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n exprNot) identifiers(visit func(string)) {
	n.inner.identifiers(visit)
}

type literalKind int

const (
	litString literalKind = iota
	litNumber
	litBool
	litNull
)

type literal struct {
	kind   literalKind
	raw    string
	number float64
}

type exprCompare struct {
	identifier string
	op         tokenKind
	literal    literal
}

func (n exprCompare) identifiers(visit func(string)) {
	visit(n.identifier)
}

func (n exprCompare) eval(ctx visibility.Context) (bool, error) {
	value, ok := lookup(ctx, n.identifier)
	if !ok {
		value = nil
	}

	switch n.literal.kind {
	case litNull:
		isNull := value == nil
		switch n.op {
		case tokenEq:
			return isNull, nil
		case tokenNeq:
			return !isNull, nil
		}
	case litBool:
		want := n.literal.raw == "true"
		got, _ := coerceBool(value)
		switch n.op {
		case tokenEq:
			return got == want, nil
		case tokenNeq:
			return got != want, nil
		}
	case litNumber:
		got, ok := coerceNumber(value)
		if !ok {
			// Missing or non-numeric values only satisfy !=.
			return n.op == tokenNeq, nil
		}
		return compareOrdered(n.op, got, n.literal.number), nil
	case litString:
		return compareOrdered(n.op, coerceString(value), n.literal.raw), nil
	}
	return false, fmt.Errorf("visibility/expr: unsupported operator %q for %s literal", opString(n.op), n.literal.kindName())
}

func compareOrdered[T float64 | string](op tokenKind, got, want T) bool {
	switch op {
	case tokenEq:
		return got == want
	case tokenNeq:
		return got != want
	case tokenLt:
		return got < want
	case tokenLte:
		return got <= want
	case tokenGt:
		return got > want
	case tokenGte:
		return got >= want
	default:
		return false
	}
}

func (l literal) kindName() string {
	switch l.kind {
	case litNull:
		return "null"
	case litBool:
		return "bool"
	case litNumber:
		return "number"
	default:
		return "string"
	}
}

func opString(op tokenKind) string {
	switch op {
	case tokenEq:
		return "=="
	case tokenNeq:
		return "!="
	case tokenLt:
		return "<"
	case tokenLte:
		return "<="
	case tokenGt:
		return ">"
	case tokenGte:
		return ">="
	default:
		return "?"
	}
}

type exprTruthy struct {
	identifier string
}

func (n exprTruthy) eval(ctx visibility.Context) (bool, error) {
	value, ok := lookup(ctx, n.identifier)
	if !ok {
		return false, nil
	}
	return truthy(value), nil
}

func (n exprTruthy) identifiers(visit func(string)) {
	visit(n.identifier)
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseExpression(tokens []token) (exprNode, error) {
	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("visibility/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node, nil
}

func parseOr(stream *tokenStream) (exprNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = exprOr{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (exprNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = exprAnd{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}
	return parsePrimary(stream)
}

var comparisonOps = []tokenKind{tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte}

func parsePrimary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("visibility/expr: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return nil, errors.New("visibility/expr: empty expression")
		}
		return nil, fmt.Errorf("visibility/expr: expected identifier, got %q", stream.tokens[stream.pos].raw)
	}

	for _, op := range comparisonOps {
		if !stream.match(op) {
			continue
		}
		lit, err := stream.consumeLiteral()
		if err != nil {
			return nil, err
		}
		if isOrdering(op) && lit.kind != litNumber && lit.kind != litString {
			return nil, fmt.Errorf("visibility/expr: operator %q needs a number or string literal", opString(op))
		}
		return exprCompare{identifier: ident.raw, op: op, literal: lit}, nil
	}

	return exprTruthy{identifier: ident.raw}, nil
}

func isOrdering(op tokenKind) bool {
	return op == tokenLt || op == tokenLte || op == tokenGt || op == tokenGte
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeLiteral() (literal, error) {
	if s.pos >= len(s.tokens) {
		return literal{}, errors.New("visibility/expr: missing literal")
	}
	tok := s.tokens[s.pos]
	s.pos++
	switch tok.kind {
	case tokenString:
		return literal{kind: litString, raw: tok.raw}, nil
	case tokenNumber:
		n, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return literal{}, fmt.Errorf("visibility/expr: invalid number literal %q", tok.raw)
		}
		return literal{kind: litNumber, raw: tok.raw, number: n}, nil
	case tokenBool:
		return literal{kind: litBool, raw: tok.raw}, nil
	case tokenNull:
		return literal{kind: litNull, raw: "null"}, nil
	case tokenIdentifier:
		// Bare identifiers are treated as strings to keep rules forgiving.
		return literal{kind: litString, raw: tok.raw}, nil
	default:
		return literal{}, fmt.Errorf("visibility/expr: expected literal, got %q", tok.raw)
	}
}

func lookup(ctx visibility.Context, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(strings.ToLower(key), "extras.") {
		return lookupMap(ctx.Extras, strings.TrimSpace(key[len("extras."):]))
	}
	return lookupMap(ctx.Values, key)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := node[strings.TrimSpace(part)]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
		return strings.TrimSpace(v) != "", true
	default:
		return truthy(value), true
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
