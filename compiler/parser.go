package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for Caedan
// ---------------------------------------------------------------------------

// Parser parses Caedan source code into a Program.
type Parser struct {
	lexer       *Lexer
	curToken    Token
	peekToken   Token
	diagnostics DiagnosticList
	input       string // original source text
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		input: input,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token. Lexer error tokens are recorded as
// diagnostics and skipped so the parser only ever sees well-formed tokens.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	tok := p.lexer.NextToken()
	for tok.Type == TokenError {
		p.errorAt(LexError, tok.Pos, "%s", tok.Literal)
		tok = p.lexer.NextToken()
	}
	p.peekToken = tok
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(ParseError, p.curToken.Pos, format, args...)
}

// errorAt records a diagnostic of the given kind at a position.
func (p *Parser) errorAt(kind DiagnosticKind, pos Position, format string, args ...interface{}) {
	p.diagnostics = append(p.diagnostics, &Diagnostic{
		Kind:    kind,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns accumulated parse diagnostics.
func (p *Parser) Diagnostics() DiagnosticList {
	return p.diagnostics
}

// synchronize skips tokens until the start of the next declaration so one
// malformed declaration does not drown everything after it.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			return
		}
		if p.curTokenIs(TokenRegion) || p.curTokenIs(TokenProc) {
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a whole source file: any number of region and
// procedure declarations in any order.
func (p *Parser) ParseProgram() *Program {
	startPos := p.curToken.Pos
	prog := &Program{}

	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenRegion:
			if decl := p.parseRegionDecl(); decl != nil {
				prog.Regions = append(prog.Regions, decl)
			}
		case TokenProc:
			if decl := p.parseProcDecl(); decl != nil {
				prog.Procs = append(prog.Procs, decl)
			}
		default:
			p.errorf("expected 'region' or 'proc' declaration, got %s", p.curToken.Type)
			p.synchronize()
		}
	}

	prog.SpanVal = MakeSpan(startPos, p.curToken.Pos)
	return prog
}

// parseRegionDecl parses `region <name>[<size>];`.
func (p *Parser) parseRegionDecl() *RegionDecl {
	startPos := p.curToken.Pos
	p.nextToken() // consume 'region'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected region name, got %s", p.curToken.Type)
		p.synchronize()
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenLBracket) {
		p.synchronize()
		return nil
	}

	if !p.curTokenIs(TokenInteger) {
		p.errorf("expected region size, got %s", p.curToken.Type)
		p.synchronize()
		return nil
	}
	sizeLit := p.curToken.Literal
	sizePos := p.curToken.Pos
	size, err := strconv.Atoi(sizeLit)
	if err != nil || size < 1 {
		p.errorAt(ParseError, sizePos, "region size must be a positive integer, got %s", sizeLit)
		size = 1
	}
	p.nextToken()

	if !p.expect(TokenRBracket) {
		p.synchronize()
		return nil
	}

	endPos := p.curToken.Pos
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	} else {
		p.errorf("expected ';' after region declaration")
		p.synchronize()
	}

	return &RegionDecl{
		SpanVal: MakeSpan(startPos, endPos),
		Name:    name,
		Size:    size,
	}
}

// parseProcDecl parses `proc <name>: <instructions>;`.
func (p *Parser) parseProcDecl() *ProcDecl {
	startPos := p.curToken.Pos
	p.nextToken() // consume 'proc'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected procedure name, got %s", p.curToken.Type)
		p.synchronize()
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenColon) {
		p.synchronize()
		return nil
	}

	body := p.parseInstructions(false, false)

	endPos := p.curToken.Pos
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	} else {
		p.errorf("expected ';' to end procedure '%s'", name)
	}

	return &ProcDecl{
		SpanVal: MakeSpan(startPos, endPos),
		Name:    name,
		Body:    body,
	}
}

// ---------------------------------------------------------------------------
// Instruction parsing
// ---------------------------------------------------------------------------

// parseInstructions parses a sequence of instructions until the surrounding
// scope closes. inLoop and inAnon say which closing tokens legitimately end
// the sequence; a ']' or ')' that has no opener in the current scope is
// reported here. A loop bracket left open when a procedure or anonymous body
// ends is reported by parseLoop, so brackets can never cross those
// boundaries silently.
func (p *Parser) parseInstructions(inLoop, inAnon bool) []Instr {
	var body []Instr

	for {
		switch p.curToken.Type {
		case TokenSemicolon, TokenEOF, TokenRegion, TokenProc:
			return body

		case TokenRBracket:
			if inLoop {
				return body
			}
			p.errorAt(BracketScopeError, p.curToken.Pos, "']' without a matching '[' in this scope")
			p.nextToken()

		case TokenRParen:
			if inAnon {
				return body
			}
			p.errorf("')' without a matching '('")
			p.nextToken()

		default:
			if in := p.parseInstr(inAnon); in != nil {
				body = append(body, in)
			}
		}
	}
}

// parseInstr parses a single instruction.
func (p *Parser) parseInstr(inAnon bool) Instr {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenPlus:
		p.nextToken()
		return &Increment{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenMinus:
		p.nextToken()
		return &Decrement{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenGreater:
		p.nextToken()
		return &MoveRight{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenLess:
		p.nextToken()
		return &MoveLeft{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenTilde:
		p.nextToken()
		return &ResetHead{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenPeriod:
		p.nextToken()
		return &Output{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenComma:
		p.nextToken()
		return &Input{SpanVal: MakeSpan(pos, p.curToken.Pos)}

	case TokenHexByte:
		lit := p.curToken.Literal
		p.nextToken()
		// The lexer guarantees exactly two hex digits.
		v, _ := strconv.ParseUint(lit, 16, 8)
		return &WriteLiteral{SpanVal: MakeSpan(pos, p.curToken.Pos), Value: byte(v)}

	case TokenLBracket:
		return p.parseLoop(inAnon)

	case TokenCaret:
		p.nextToken()
		ref := p.parseRegionRef("'^'")
		if ref == nil {
			return nil
		}
		return &Send{SpanVal: MakeSpan(pos, p.curToken.Pos), Target: ref}

	case TokenAmpersand:
		p.nextToken()
		ref := p.parseRegionRef("'&'")
		if ref == nil {
			return nil
		}
		return &Receive{SpanVal: MakeSpan(pos, p.curToken.Pos), Target: ref}

	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		clause := p.parseOptionalClause()
		return &Call{SpanVal: MakeSpan(pos, p.curToken.Pos), Proc: name, Clause: clause}

	case TokenLParen:
		return p.parseAnonCall()

	default:
		p.errorf("unexpected %s in procedure body", p.curToken.Type)
		p.nextToken()
		return nil
	}
}

// parseLoop parses `[<instructions>]`. The closing bracket must appear in
// the same procedure or anonymous body as the opener.
func (p *Parser) parseLoop(inAnon bool) Instr {
	openPos := p.curToken.Pos
	p.nextToken() // consume [

	body := p.parseInstructions(true, inAnon)

	if p.curTokenIs(TokenRBracket) {
		p.nextToken()
	} else {
		p.errorAt(BracketScopeError, openPos, "'[' is not closed before the end of its enclosing scope")
	}

	return &Loop{SpanVal: MakeSpan(openPos, p.curToken.Pos), Body: body}
}

// parseAnonCall parses `(<instructions>)` plus an optional call clause.
func (p *Parser) parseAnonCall() Instr {
	openPos := p.curToken.Pos
	p.nextToken() // consume (

	body := p.parseInstructions(false, true)

	if p.curTokenIs(TokenRParen) {
		p.nextToken()
	} else {
		p.errorAt(ParseError, openPos, "'(' is not closed before the end of its enclosing scope")
	}

	clause := p.parseOptionalClause()

	return &AnonCall{SpanVal: MakeSpan(openPos, p.curToken.Pos), Body: body, Clause: clause}
}

// parseOptionalClause parses a call-target clause if one follows: `@name`,
// `@$`, or the bare `$` shorthand. Returns nil when the call is bare.
func (p *Parser) parseOptionalClause() *RegionRef {
	switch p.curToken.Type {
	case TokenAt:
		p.nextToken()
		return p.parseRegionRef("'@'")

	case TokenDollar:
		pos := p.curToken.Pos
		p.nextToken()
		return &RegionRef{SpanVal: MakeSpan(pos, p.curToken.Pos), Back: true}

	default:
		return nil
	}
}

// parseRegionRef parses a region name or `$`.
func (p *Parser) parseRegionRef(after string) *RegionRef {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		return &RegionRef{SpanVal: MakeSpan(pos, p.curToken.Pos), Name: name}

	case TokenDollar:
		p.nextToken()
		return &RegionRef{SpanVal: MakeSpan(pos, p.curToken.Pos), Back: true}

	default:
		p.errorf("expected region name or '$' after %s, got %s", after, p.curToken.Type)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// Parse parses source text and returns the program plus any diagnostics.
func Parse(input string) (*Program, DiagnosticList) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.Diagnostics()
}

// Check parses and then analyzes source text. Analysis only runs when the
// parse was clean, so callers see structural errors before name errors.
func Check(input string) (*Program, DiagnosticList) {
	prog, diags := Parse(input)
	if len(diags) > 0 {
		return prog, diags
	}
	return prog, Analyze(prog)
}
