package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxFormulaLength bounds accepted formula text so evaluation cost stays
// linear and small regardless of user input.
const MaxFormulaLength = 512

// ErrInvalidFormula marks rejected user-authored formulas: malformed syntax,
// unresolved identifiers, disallowed functions, or non-finite results.
// Callers treat it as "no value", never as a crash.
var ErrInvalidFormula = errors.New("invalid formula")

// allowedFunctions is the fixed function allow-list with arity bounds.
var allowedFunctions = map[string]struct {
	minArgs int
	maxArgs int
	apply   func(args []float64) float64
}{
	"abs":   {1, 1, func(args []float64) float64 { return math.Abs(args[0]) }},
	"round": {1, 1, func(args []float64) float64 { return math.Round(args[0]) }},
	"floor": {1, 1, func(args []float64) float64 { return math.Floor(args[0]) }},
	"ceil":  {1, 1, func(args []float64) float64 { return math.Ceil(args[0]) }},
	"min": {1, 16, func(args []float64) float64 {
		out := args[0]
		for _, arg := range args[1:] {
			out = math.Min(out, arg)
		}
		return out
	}},
	"max": {1, 16, func(args []float64) float64 {
		out := args[0]
		for _, arg := range args[1:] {
			out = math.Max(out, arg)
		}
		return out
	}},
}

// Evaluate evaluates one user-authored arithmetic formula against named
// variables. The grammar admits numeric literals, the four arithmetic
// operators, parentheses, unary sign, variables resolved whole-word from
// vars, and the fixed function allow-list. Anything else is rejected
// deterministically; there is no fallback evaluation path.
// Params: formula text and variable bindings.
// Returns: finite numeric result, or ErrInvalidFormula-wrapped rejection.
func Evaluate(formula string, vars map[string]float64) (float64, error) {
	if len(formula) > MaxFormulaLength {
		return 0, fmt.Errorf("%w: formula exceeds %d bytes", ErrInvalidFormula, MaxFormulaLength)
	}
	if strings.TrimSpace(formula) == "" {
		return 0, fmt.Errorf("%w: empty formula", ErrInvalidFormula)
	}

	tokens, err := tokenize(formula)
	if err != nil {
		return 0, err
	}
	parser := &formulaParser{tokens: tokens, vars: vars}
	value, err := parser.parseExpr()
	if err != nil {
		return 0, err
	}
	if parser.peek().kind != tokenEOF {
		return 0, fmt.Errorf("%w: unexpected trailing %q", ErrInvalidFormula, parser.peek().text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: non-finite result", ErrInvalidFormula)
	}
	return value, nil
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOp
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits formula text into the restricted token set.
// Params: formula text within the length bound.
// Returns: token list ending with EOF, or rejection for foreign characters.
func tokenize(formula string) ([]token, error) {
	tokens := make([]token, 0, 16)
	i := 0
	for i < len(formula) {
		ch := formula[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
			tokens = append(tokens, token{kind: tokenOp, text: string(ch)})
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")"})
			i++
		case ch == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ","})
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			start := i
			for i < len(formula) && (formula[i] >= '0' && formula[i] <= '9' || formula[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: formula[start:i]})
		case isIdentByte(ch):
			start := i
			for i < len(formula) && (isIdentByte(formula[i]) || formula[i] >= '0' && formula[i] <= '9') {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: formula[start:i]})
		default:
			return nil, fmt.Errorf("%w: unsupported character %q", ErrInvalidFormula, string(ch))
		}
	}
	return append(tokens, token{kind: tokenEOF}), nil
}

// isIdentByte reports whether a byte can start or continue an identifier.
// Params: candidate byte.
// Returns: true for ASCII letters and underscore.
func isIdentByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

// formulaParser is a recursive-descent parser over the restricted grammar.
// Params: token stream and variable bindings.
// Returns: evaluated value per production.
type formulaParser struct {
	tokens []token
	pos    int
	vars   map[string]float64
}

func (p *formulaParser) peek() token {
	return p.tokens[p.pos]
}

func (p *formulaParser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

// parseExpr handles addition and subtraction.
// Params: none.
// Returns: evaluated sum or parse error.
func (p *formulaParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.peek().kind == tokenOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			value += rhs
		} else {
			value -= rhs
		}
	}
	return value, nil
}

// parseTerm handles multiplication and division.
// Params: none.
// Returns: evaluated product or parse error.
func (p *formulaParser) parseTerm() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.peek().kind == tokenOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text
		rhs, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			value *= rhs
		} else {
			value /= rhs
		}
	}
	return value, nil
}

// parseUnary handles optional sign prefixes.
// Params: none.
// Returns: evaluated signed primary or parse error.
func (p *formulaParser) parseUnary() (float64, error) {
	if p.peek().kind == tokenOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -value, nil
		}
		return value, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles literals, variables, function calls, and groups.
// Params: none.
// Returns: evaluated primary or parse error.
func (p *formulaParser) parsePrimary() (float64, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad number %q", ErrInvalidFormula, tok.text)
		}
		return value, nil
	case tokenIdent:
		if p.peek().kind == tokenLParen {
			return p.parseCall(tok.text)
		}
		value, ok := p.vars[tok.text]
		if !ok {
			return 0, fmt.Errorf("%w: unresolved identifier %q", ErrInvalidFormula, tok.text)
		}
		return value, nil
	case tokenLParen:
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.next().kind != tokenRParen {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidFormula)
		}
		return value, nil
	default:
		return 0, fmt.Errorf("%w: unexpected token %q", ErrInvalidFormula, tok.text)
	}
}

// parseCall handles one allow-listed function invocation.
// Params: already-consumed function name.
// Returns: applied function value or rejection for unknown names/arity.
func (p *formulaParser) parseCall(name string) (float64, error) {
	def, ok := allowedFunctions[name]
	if !ok {
		return 0, fmt.Errorf("%w: function %q is not allowed", ErrInvalidFormula, name)
	}
	p.next() // consume '('

	args := make([]float64, 0, 2)
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if p.next().kind != tokenRParen {
		return 0, fmt.Errorf("%w: missing closing parenthesis in %s()", ErrInvalidFormula, name)
	}
	if len(args) < def.minArgs || len(args) > def.maxArgs {
		return 0, fmt.Errorf("%w: %s() takes %d to %d arguments", ErrInvalidFormula, name, def.minArgs, def.maxArgs)
	}
	return def.apply(args), nil
}
