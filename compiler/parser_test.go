package compiler

import (
	"testing"
)

const adderSource = `# Adds two single-digit numbers read from input.
region main[2];
region a[2];
region b[2];

proc read_digit: ,>"30[-<->]~;
proc add: &a>&b[-<+>]<;
proc print_byte: >"30[-<+>]<.;
proc main: read_digit@a read_digit@b add print_byte;
`

func mustParse(t *testing.T, input string) *Program {
	t.Helper()
	prog, diags := Parse(input)
	if len(diags) > 0 {
		t.Fatalf("Parse(%q) diagnostics: %v", input, diags)
	}
	return prog
}

func TestParseAdderProgram(t *testing.T) {
	prog := mustParse(t, adderSource)

	if len(prog.Regions) != 3 {
		t.Fatalf("regions = %d, want 3", len(prog.Regions))
	}
	if len(prog.Procs) != 4 {
		t.Fatalf("procs = %d, want 4", len(prog.Procs))
	}

	wantRegions := []struct {
		name string
		size int
	}{
		{"main", 2}, {"a", 2}, {"b", 2},
	}
	for i, want := range wantRegions {
		r := prog.Regions[i]
		if r.Name != want.name || r.Size != want.size {
			t.Errorf("region[%d] = %s[%d], want %s[%d]", i, r.Name, r.Size, want.name, want.size)
		}
	}

	main := prog.Procs[3]
	if main.Name != "main" {
		t.Fatalf("procs[3].Name = %q, want main", main.Name)
	}
	if len(main.Body) != 4 {
		t.Fatalf("main body length = %d, want 4", len(main.Body))
	}
	call, ok := main.Body[0].(*Call)
	if !ok {
		t.Fatalf("main.Body[0] is %T, want *Call", main.Body[0])
	}
	if call.Proc != "read_digit" {
		t.Errorf("call proc = %q, want read_digit", call.Proc)
	}
	if call.Clause == nil || call.Clause.Back || call.Clause.Name != "a" {
		t.Errorf("call clause = %v, want @a", call.Clause)
	}
}

func TestParseReadDigitBody(t *testing.T) {
	prog := mustParse(t, `region main[1]; proc main: ,>"30[-<->]~;`)

	body := prog.Procs[0].Body
	wantTypes := []string{"*compiler.Input", "*compiler.MoveRight", "*compiler.WriteLiteral",
		"*compiler.Loop", "*compiler.ResetHead"}
	if len(body) != len(wantTypes) {
		t.Fatalf("body length = %d, want %d", len(body), len(wantTypes))
	}

	lit := body[2].(*WriteLiteral)
	if lit.Value != 0x30 {
		t.Errorf("literal value = %#x, want 0x30", lit.Value)
	}

	loop := body[3].(*Loop)
	if len(loop.Body) != 4 {
		t.Fatalf("loop body length = %d, want 4", len(loop.Body))
	}
	if _, ok := loop.Body[0].(*Decrement); !ok {
		t.Errorf("loop.Body[0] is %T, want *Decrement", loop.Body[0])
	}
}

func TestParseCallClauses(t *testing.T) {
	tests := []struct {
		input    string
		proc     string
		hasRef   bool
		back     bool
		region   string
	}{
		{"proc main: foo;", "foo", false, false, ""},
		{"proc main: foo@bar;", "foo", true, false, "bar"},
		{"proc main: foo@$;", "foo", true, true, ""},
		{"proc main: foo$;", "foo", true, true, ""},
		{"proc main: foo @ bar;", "foo", true, false, "bar"},
		{"proc main: foo $;", "foo", true, true, ""},
	}

	for _, tc := range tests {
		prog, diags := Parse(tc.input)
		if len(diags) > 0 {
			t.Errorf("Parse(%q) diagnostics: %v", tc.input, diags)
			continue
		}
		call, ok := prog.Procs[0].Body[0].(*Call)
		if !ok {
			t.Errorf("Parse(%q): body[0] is %T, want *Call", tc.input, prog.Procs[0].Body[0])
			continue
		}
		if call.Proc != tc.proc {
			t.Errorf("Parse(%q): proc = %q, want %q", tc.input, call.Proc, tc.proc)
		}
		if tc.hasRef != (call.Clause != nil) {
			t.Errorf("Parse(%q): clause presence = %v, want %v", tc.input, call.Clause != nil, tc.hasRef)
			continue
		}
		if tc.hasRef {
			if call.Clause.Back != tc.back {
				t.Errorf("Parse(%q): clause back = %v, want %v", tc.input, call.Clause.Back, tc.back)
			}
			if call.Clause.Name != tc.region {
				t.Errorf("Parse(%q): clause region = %q, want %q", tc.input, call.Clause.Name, tc.region)
			}
		}
	}
}

func TestParseAnonCall(t *testing.T) {
	prog := mustParse(t, `proc main: (+>-)@work;`)

	anon, ok := prog.Procs[0].Body[0].(*AnonCall)
	if !ok {
		t.Fatalf("body[0] is %T, want *AnonCall", prog.Procs[0].Body[0])
	}
	if len(anon.Body) != 3 {
		t.Errorf("anon body length = %d, want 3", len(anon.Body))
	}
	if anon.Clause == nil || anon.Clause.Name != "work" {
		t.Errorf("anon clause = %v, want @work", anon.Clause)
	}
}

func TestParseAnonCallVariants(t *testing.T) {
	tests := []struct {
		input  string
		hasRef bool
		back   bool
	}{
		{"proc main: (+);", false, false},
		{"proc main: ()@r;", true, false},
		{"proc main: (+)@$;", true, true},
		{"proc main: (+)$;", true, true},
	}

	for _, tc := range tests {
		prog, diags := Parse(tc.input)
		if len(diags) > 0 {
			t.Errorf("Parse(%q) diagnostics: %v", tc.input, diags)
			continue
		}
		anon := prog.Procs[0].Body[0].(*AnonCall)
		if tc.hasRef != (anon.Clause != nil) {
			t.Errorf("Parse(%q): clause presence = %v, want %v", tc.input, anon.Clause != nil, tc.hasRef)
			continue
		}
		if tc.hasRef && anon.Clause.Back != tc.back {
			t.Errorf("Parse(%q): clause back = %v, want %v", tc.input, anon.Clause.Back, tc.back)
		}
	}
}

func TestParseNestedAnonAndLoops(t *testing.T) {
	prog := mustParse(t, `proc main: [(+[-])@x](~)$;`)

	body := prog.Procs[0].Body
	if len(body) != 2 {
		t.Fatalf("body length = %d, want 2", len(body))
	}

	loop := body[0].(*Loop)
	inner := loop.Body[0].(*AnonCall)
	if inner.Clause == nil || inner.Clause.Name != "x" {
		t.Errorf("inner anon clause = %v, want @x", inner.Clause)
	}
	if _, ok := inner.Body[1].(*Loop); !ok {
		t.Errorf("inner.Body[1] is %T, want *Loop", inner.Body[1])
	}

	tail := body[1].(*AnonCall)
	if tail.Clause == nil || !tail.Clause.Back {
		t.Errorf("tail anon clause = %v, want $", tail.Clause)
	}
}

func TestParseSendReceive(t *testing.T) {
	prog := mustParse(t, `proc main: ^a &b ^$ &$;`)

	body := prog.Procs[0].Body
	send := body[0].(*Send)
	if send.Target.Name != "a" || send.Target.Back {
		t.Errorf("send target = %v, want a", send.Target)
	}
	recv := body[1].(*Receive)
	if recv.Target.Name != "b" || recv.Target.Back {
		t.Errorf("receive target = %v, want b", recv.Target)
	}
	if !body[2].(*Send).Target.Back {
		t.Errorf("send target = %v, want $", body[2].(*Send).Target)
	}
	if !body[3].(*Receive).Target.Back {
		t.Errorf("receive target = %v, want $", body[3].(*Receive).Target)
	}
}

func TestParseBracketScopeViolations(t *testing.T) {
	tests := []string{
		`proc bad: ([)];`,
		`proc bad: [;`,
		`proc bad: ];`,
		`proc bad: ([);`,
		`proc bad: (]);`,
		`proc bad: [(])`,
	}

	for _, input := range tests {
		_, diags := Parse(input)
		if !diags.HasKind(BracketScopeError) {
			t.Errorf("Parse(%q) diagnostics = %v, want a bracket scope error", input, diags)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  DiagnosticKind
	}{
		{`region [4];`, ParseError},
		{`region main;`, ParseError},
		{`region main[];`, ParseError},
		{`region main[0];`, ParseError},
		{`region main[zero];`, ParseError},
		{`proc : +;`, ParseError},
		{`proc main +;`, ParseError},
		{`proc main: +`, ParseError},
		{`proc main: @foo;`, ParseError},
		{`proc main: ^;`, ParseError},
		{`proc main: &;`, ParseError},
		{`proc main: );`, ParseError},
		{`proc main: (+;`, ParseError},
		{`+`, ParseError},
		{`proc main: "z1;`, LexError},
		{`proc main: %;`, LexError},
	}

	for _, tc := range tests {
		_, diags := Parse(tc.input)
		if !diags.HasKind(tc.kind) {
			t.Errorf("Parse(%q) diagnostics = %v, want kind %v", tc.input, diags, tc.kind)
		}
	}
}

func TestParseRecoversBetweenDeclarations(t *testing.T) {
	input := `region bad[;
region good[4];
proc main: +;`

	prog, diags := Parse(input)
	if len(diags) == 0 {
		t.Fatalf("expected diagnostics for the malformed region")
	}
	if len(prog.Regions) != 1 || prog.Regions[0].Name != "good" {
		t.Errorf("regions = %v, want just 'good'", prog.Regions)
	}
	if len(prog.Procs) != 1 || prog.Procs[0].Name != "main" {
		t.Errorf("procs = %v, want just 'main'", prog.Procs)
	}
}

func TestParseErrorPositions(t *testing.T) {
	input := "region main[2];\nproc main: [;"

	_, diags := Parse(input)
	if len(diags) == 0 {
		t.Fatal("expected a bracket scope diagnostic")
	}
	d := diags[0]
	if d.Kind != BracketScopeError {
		t.Fatalf("diagnostic kind = %v, want BracketScopeError", d.Kind)
	}
	if d.Pos.Line != 2 || d.Pos.Column != 12 {
		t.Errorf("diagnostic pos = %d:%d, want 2:12", d.Pos.Line, d.Pos.Column)
	}
}

func TestParseHexLiteralValues(t *testing.T) {
	tests := []struct {
		input string
		want  byte
	}{
		{`proc main: "00;`, 0x00},
		{`proc main: "2a;`, 0x2A},
		{`proc main: "FF;`, 0xFF},
		{`proc main: "fF;`, 0xFF},
		{`proc main: "30;`, 0x30},
	}

	for _, tc := range tests {
		prog := mustParse(t, tc.input)
		lit := prog.Procs[0].Body[0].(*WriteLiteral)
		if lit.Value != tc.want {
			t.Errorf("Parse(%q): value = %#x, want %#x", tc.input, lit.Value, tc.want)
		}
	}
}

func TestProgramString(t *testing.T) {
	input := `region main[2];
proc main: ,>"30[-<->]~ read_digit@a (+)$;
`
	prog, _ := Parse(input)

	got := prog.String()
	want := "region main[2];\nproc main: ,>\"30[-<->]~read_digit@a(+)@$;\n"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	// The rendering must parse back to the same shape.
	again, diags := Parse(got)
	if len(diags) > 0 {
		t.Fatalf("reparsing rendered source failed: %v", diags)
	}
	if again.String() != got {
		t.Errorf("rendering is not stable: %q vs %q", again.String(), got)
	}
}
