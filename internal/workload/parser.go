package workload

import (
	"fmt"

	"github.com/psantana5/callstats/pkg/callstats"
)

// Node is an expression tree node
type Node interface {
	node()
}

// Num is an integer literal
type Num struct {
	Value int64
}

// Unary is a negation
type Unary struct {
	Op string
	X  Node
}

// Binary is an arithmetic operation
type Binary struct {
	Op   string
	L, R Node
}

// Call invokes a builtin function
type Call struct {
	Name string
	Args []Node
}

func (Num) node()    {}
func (Unary) node()  {}
func (Binary) node() {}
func (Call) node()   {}

type parser struct {
	stats  *callstats.Stats
	tokens []Token
	pos    int
}

// Parse builds the expression tree of tokens. Every nested expression is
// its own ParseExpr activation, so parenthesised input recurses on that
// counter.
func Parse(stats *callstats.Stats, tokens []Token) (Node, error) {
	defer callstats.NewScope(stats, idParse).Close()

	p := &parser{stats: stats, tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, fmt.Errorf("unexpected %q at %d", tok.Text, tok.Pos)
	}
	return n, nil
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind, what string) error {
	tok := p.next()
	if tok.Kind != kind {
		return fmt.Errorf("expected %s at %d, got %q", what, tok.Pos, tok.Text)
	}
	return nil
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (Node, error) {
	defer callstats.NewScope(p.stats, idParseExpr).Close()

	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp || (tok.Text != "+" && tok.Text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: tok.Text, L: left, R: right}
	}
}

// term := factor (('*' | '/' | '%') factor)*
func (p *parser) term() (Node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp || (tok.Text != "*" && tok.Text != "/" && tok.Text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: tok.Text, L: left, R: right}
	}
}

// factor := NUMBER | IDENT '(' args ')' | '(' expr ')' | '-' factor
func (p *parser) factor() (Node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		return Num{Value: tok.Value}, nil
	case TokenOp:
		if tok.Text != "-" {
			return nil, fmt.Errorf("unexpected operator %q at %d", tok.Text, tok.Pos)
		}
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", X: x}, nil
	case TokenLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil
	case TokenIdent:
		if err := p.expect(TokenLParen, "'('"); err != nil {
			return nil, err
		}
		call := Call{Name: tok.Text}
		if p.peek().Kind == TokenRParen {
			p.next()
			return call, nil
		}
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			sep := p.next()
			if sep.Kind == TokenRParen {
				return call, nil
			}
			if sep.Kind != TokenComma {
				return nil, fmt.Errorf("expected ',' or ')' at %d, got %q", sep.Pos, sep.Text)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected %q at %d", tok.Text, tok.Pos)
	}
}
