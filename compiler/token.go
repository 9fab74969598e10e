package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Caedan lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals and names
	TokenIdentifier // read_digit, main
	TokenInteger    // 42 (region sizes)
	TokenHexByte    // "2a (two hex digits after a double quote)

	// Instruction characters
	TokenPlus      // +
	TokenMinus     // -
	TokenGreater   // >
	TokenLess      // <
	TokenPeriod    // .
	TokenComma     // ,
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenTilde     // ~
	TokenCaret     // ^
	TokenAmpersand // &
	TokenAt        // @
	TokenDollar    // $
	TokenLParen    // (
	TokenRParen    // )

	// Declaration punctuation
	TokenColon     // :
	TokenSemicolon // ;

	// Reserved words
	TokenRegion
	TokenProc
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenHexByte:    "HEXBYTE",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenGreater:    ">",
	TokenLess:       "<",
	TokenPeriod:     ".",
	TokenComma:      ",",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenTilde:      "~",
	TokenCaret:      "^",
	TokenAmpersand:  "&",
	TokenAt:         "@",
	TokenDollar:     "$",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenColon:      ":",
	TokenSemicolon:  ";",
	TokenRegion:     "region",
	TokenProc:       "proc",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"region": TokenRegion,
	"proc":   TokenProc,
}
