package workload

import (
	"fmt"
	"strconv"

	"github.com/psantana5/callstats/pkg/callstats"
)

// TokenKind classifies a token
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenIdent
	TokenOp
	TokenLParen
	TokenRParen
	TokenComma
)

// Token is one lexeme of an expression
type Token struct {
	Kind  TokenKind
	Text  string
	Value int64
	Pos   int
}

// Lex splits src into tokens, ending with TokenEOF.
func Lex(stats *callstats.Stats, src string) ([]Token, error) {
	defer callstats.NewScope(stats, idLex).Close()

	var tokens []Token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			v, err := strconv.ParseInt(src[start:i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number at %d: %w", start, err)
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: src[start:i], Value: v, Pos: start})
		case isLetter(c):
			start := i
			for i < len(src) && (isLetter(src[i]) || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: src[start:i], Pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			tokens = append(tokens, Token{Kind: TokenOp, Text: string(c), Pos: i})
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: TokenLParen, Text: "(", Pos: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: TokenRParen, Text: ")", Pos: i})
			i++
		case c == ',':
			tokens = append(tokens, Token{Kind: TokenComma, Text: ",", Pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(src)})
	return tokens, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
