package compiler

import (
	"testing"
)

func TestLexerInstructionTokens(t *testing.T) {
	input := `+ - > < . , [ ] ~ ^ & @ $ ( ) : ;`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenGreater, ">"},
		{TokenLess, "<"},
		{TokenPeriod, "."},
		{TokenComma, ","},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenTilde, "~"},
		{TokenCaret, "^"},
		{TokenAmpersand, "&"},
		{TokenAt, "@"},
		{TokenDollar, "$"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerDense(t *testing.T) {
	// No whitespace between instruction characters.
	input := `,>"30[-<->]~`
	expected := []TokenType{
		TokenComma, TokenGreater, TokenHexByte, TokenLBracket,
		TokenMinus, TokenLess, TokenMinus, TokenGreater,
		TokenRBracket, TokenTilde, TokenEOF,
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp)
		}
	}
}

func TestLexerIdentifiersAndReservedWords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"foo", TokenIdentifier, "foo"},
		{"read_digit", TokenIdentifier, "read_digit"},
		{"_private", TokenIdentifier, "_private"},
		{"r2d2", TokenIdentifier, "r2d2"},
		{"main", TokenIdentifier, "main"},
		{"region", TokenRegion, "region"},
		{"proc", TokenProc, "proc"},
		{"regions", TokenIdentifier, "regions"},
		{"procs", TokenIdentifier, "procs"},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.lit {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.lit)
		}
	}
}

func TestLexerIntegers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"0", "0"},
		{"1000000", "1000000"},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenInteger {
			t.Errorf("Lexer(%q): type = %v, want INTEGER", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerHexBytes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"30`, "30"},
		{`"2a`, "2a"},
		{`"FF`, "FF"},
		{`"Ab`, "Ab"},
		{`"00`, "00"},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenHexByte {
			t.Errorf("Lexer(%q): type = %v, want HEXBYTE", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerBadHexBytes(t *testing.T) {
	tests := []string{
		`"`,
		`"3`,
		`"g0`,
		`"3z`,
		`" 30`,
	}

	for _, input := range tests {
		l := NewLexer(input)
		tok := l.NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestLexerHexByteExactlyTwoDigits(t *testing.T) {
	// A third hex digit starts a new token, it is not part of the literal.
	l := NewLexer(`"2af`)
	tok := l.NextToken()
	if tok.Type != TokenHexByte || tok.Literal != "2a" {
		t.Errorf("first token = %v, want HEXBYTE(2a)", tok)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "f" {
		t.Errorf("second token = %v, want IDENTIFIER(f)", tok)
	}
}

func TestLexerComments(t *testing.T) {
	input := "# leading comment\nregion main[1]; # trailing comment\n# another\nproc"
	expected := []TokenType{
		TokenRegion, TokenIdentifier, TokenLBracket, TokenInteger,
		TokenRBracket, TokenSemicolon, TokenProc, TokenEOF,
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	input := "region main[2];\nproc main: +;"

	l := NewLexer(input)

	tok := l.NextToken() // region
	if tok.Pos.Line != 1 || tok.Pos.Column != 1 {
		t.Errorf("'region' pos = %d:%d, want 1:1", tok.Pos.Line, tok.Pos.Column)
	}

	tok = l.NextToken() // main
	if tok.Pos.Line != 1 || tok.Pos.Column != 8 {
		t.Errorf("'main' pos = %d:%d, want 1:8", tok.Pos.Line, tok.Pos.Column)
	}
	if tok.Pos.Offset != 7 {
		t.Errorf("'main' offset = %d, want 7", tok.Pos.Offset)
	}

	for i := 0; i < 4; i++ {
		l.NextToken() // [ 2 ] ;
	}

	tok = l.NextToken() // proc
	if tok.Pos.Line != 2 || tok.Pos.Column != 1 {
		t.Errorf("'proc' pos = %d:%d, want 2:1", tok.Pos.Line, tok.Pos.Column)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	tests := []string{"%", "!", "{", "}", "ü"}

	for _, input := range tests {
		l := NewLexer(input)
		tok := l.NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("proc main: +-;")
	want := []TokenType{
		TokenProc, TokenIdentifier, TokenColon,
		TokenPlus, TokenMinus, TokenSemicolon, TokenEOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize returned %d tokens, want %d", len(tokens), len(want))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] type = %v, want %v", i, tokens[i].Type, typ)
		}
	}
}

func TestTokenizeRecoversAfterError(t *testing.T) {
	// The bad hex literal produces an error token, then lexing continues.
	tokens := Tokenize(`"zz +`)
	if len(tokens) < 2 {
		t.Fatalf("Tokenize returned %d tokens, want at least 2", len(tokens))
	}
	if tokens[0].Type != TokenError {
		t.Errorf("token[0] type = %v, want ERROR", tokens[0].Type)
	}
	if tokens[len(tokens)-1].Type != TokenEOF {
		t.Errorf("last token type = %v, want EOF", tokens[len(tokens)-1].Type)
	}
}
