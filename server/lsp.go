// Package server implements the Caedan language server. Analysis
// (diagnostics, completion, hover, navigation) runs directly on the
// compiler; program execution is serialized through a Worker so the
// single-threaded engine is never shared between requests.
package server

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/JonasKaplan/Caedan/compiler"
	"github.com/JonasKaplan/Caedan/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "caedan-lsp"

// RunCommand is the workspace command that executes the current document.
const RunCommand = "caedan.run"

// runStepLimit bounds programs started from the editor so a runaway loop
// cannot wedge the server.
const runStepLimit = 5_000_000

// document is one open document plus its latest analysis.
type document struct {
	text  string
	prog  *compiler.Program
	diags compiler.DiagnosticList
}

// LspServer bridges LSP editor features to the Caedan compiler and engine.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]*document // URI → open document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewWorker(),
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,

		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Caedan LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"@", "^", "&"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{RunCommand},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

// analyze parses and, when the parse is clean, validates a document.
func analyze(text string) *document {
	prog, diags := compiler.Check(text)
	return &document{text: text, prog: prog, diags: diags}
}

func (s *LspServer) setDocument(uri string, text string) *document {
	doc := analyze(text)
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) document(uri string) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[uri]
}

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.setDocument(string(uri), params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.setDocument(string(uri), whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	diagnostics := lspDiagnostics(doc)

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// lspDiagnostics converts compiler diagnostics into LSP form with real
// source ranges.
func lspDiagnostics(doc *document) []protocol.Diagnostic {
	diagnostics := make([]protocol.Diagnostic, 0, len(doc.diags))
	severity := protocol.DiagnosticSeverityError
	source := lspName

	for _, d := range doc.diags {
		kind := d.Kind.String()
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    rangeAt(doc.text, d.Pos),
			Severity: &severity,
			Source:   &source,
			Code:     &protocol.IntegerOrString{Value: kind},
			Message:  d.Message,
		})
	}
	return diagnostics
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(string(params.TextDocument.URI))
	if doc == nil {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	return complete(doc, prefix), nil
}

// complete offers declared region and procedure names plus the two
// declaration keywords.
func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	if doc.prog != nil {
		for _, r := range doc.prog.Regions {
			if strings.HasPrefix(strings.ToLower(r.Name), lowerPrefix) {
				kind := protocol.CompletionItemKindVariable
				detail := fmt.Sprintf("region[%d]", r.Size)
				items = append(items, protocol.CompletionItem{
					Label:      r.Name,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &r.Name,
				})
			}
		}

		for _, p := range doc.prog.Procs {
			if strings.HasPrefix(strings.ToLower(p.Name), lowerPrefix) {
				kind := protocol.CompletionItemKindFunction
				detail := "proc"
				items = append(items, protocol.CompletionItem{
					Label:      p.Name,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &p.Name,
				})
			}
		}
	}

	for _, kw := range []string{"region", "proc"} {
		if strings.HasPrefix(kw, lowerPrefix) {
			kind := protocol.CompletionItemKindKeyword
			kwCopy := kw
			items = append(items, protocol.CompletionItem{
				Label:      kw,
				Kind:       &kind,
				InsertText: &kwCopy,
			})
		}
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(string(params.TextDocument.URI))
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	return hover(doc, word), nil
}

// hover renders declaration signatures for the word under the cursor.
// Regions and procedures are separate namespaces, so one name can have
// both (main always does).
func hover(doc *document, word string) *protocol.Hover {
	if doc.prog == nil {
		return nil
	}

	var b strings.Builder

	if r := findRegion(doc.prog, word); r != nil {
		fmt.Fprintf(&b, "```caedan\nregion %s[%d];\n```\n\n%d wrapping byte cells, head starts at 0\n", r.Name, r.Size, r.Size)
	}

	if p := findProc(doc.prog, word); p != nil {
		if b.Len() > 0 {
			b.WriteString("\n---\n\n")
		}
		body := compiler.BodyString(p.Body)
		if len(body) > 60 {
			body = body[:60] + "…"
		}
		fmt.Fprintf(&b, "```caedan\nproc %s: %s;\n```\n", p.Name, body)
	}

	if b.Len() == 0 {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.document(string(uri))
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	spans := definitionSpans(doc, word)
	if len(spans) == 0 {
		return nil, nil
	}

	locations := make([]protocol.Location, len(spans))
	for i, span := range spans {
		locations[i] = protocol.Location{URI: uri, Range: spanRange(span)}
	}
	return locations, nil
}

// definitionSpans returns the declaration spans for a name, region first.
func definitionSpans(doc *document, word string) []compiler.Span {
	if doc.prog == nil {
		return nil
	}

	var spans []compiler.Span
	if r := findRegion(doc.prog, word); r != nil {
		spans = append(spans, r.SpanVal)
	}
	if p := findProc(doc.prog, word); p != nil {
		spans = append(spans, p.SpanVal)
	}
	return spans
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.document(string(uri))
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	spans := referenceSpans(doc, word, params.Context.IncludeDeclaration)
	if len(spans) == 0 {
		return nil, nil
	}

	locations := make([]protocol.Location, len(spans))
	for i, span := range spans {
		locations[i] = protocol.Location{URI: uri, Range: spanRange(span)}
	}
	return locations, nil
}

// referenceSpans collects every call, send, receive, and clause that
// mentions a name, in either namespace.
func referenceSpans(doc *document, word string, includeDecl bool) []compiler.Span {
	if doc.prog == nil {
		return nil
	}

	var spans []compiler.Span
	if includeDecl {
		spans = append(spans, definitionSpans(doc, word)...)
	}

	refSpan := func(ref *compiler.RegionRef) {
		if ref != nil && !ref.Back && ref.Name == word {
			spans = append(spans, ref.SpanVal)
		}
	}

	for _, proc := range doc.prog.Procs {
		compiler.WalkInstrs(proc.Body, func(in compiler.Instr) {
			switch n := in.(type) {
			case *compiler.Send:
				refSpan(n.Target)
			case *compiler.Receive:
				refSpan(n.Target)
			case *compiler.Call:
				if n.Proc == word {
					spans = append(spans, n.SpanVal)
				}
				refSpan(n.Clause)
			case *compiler.AnonCall:
				refSpan(n.Clause)
			}
		})
	}

	return spans
}

// --- Workspace commands ---

// workspaceExecuteCommand runs the current document on the worker
// goroutine. The first argument is the document URI.
func (s *LspServer) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != RunCommand {
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
	if len(params.Arguments) == 0 {
		return nil, fmt.Errorf("%s: missing document URI argument", RunCommand)
	}
	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: document URI must be a string", RunCommand)
	}

	doc := s.document(uri)
	if doc == nil {
		return nil, fmt.Errorf("%s: document %q is not open", RunCommand, uri)
	}

	return s.runDocument(doc)
}

// runDocument compiles and executes one document, returning its output.
func (s *LspServer) runDocument(doc *document) (string, error) {
	if err := doc.diags.Err(); err != nil {
		return "", err
	}

	prog, err := vm.Compile(doc.text)
	if err != nil {
		return "", err
	}

	result, err := s.worker.Do(func() interface{} {
		var out bytes.Buffer
		m := vm.NewMachine(prog, vm.WithOutput(&out), vm.WithStepLimit(runStepLimit))
		if err := m.Run(); err != nil {
			return err
		}
		return out.String()
	})
	if err != nil {
		return "", err
	}
	if runErr, ok := result.(error); ok {
		return "", runErr
	}
	return result.(string), nil
}

// --- AST lookup helpers ---

func findRegion(prog *compiler.Program, name string) *compiler.RegionDecl {
	for _, r := range prog.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func findProc(prog *compiler.Program, name string) *compiler.ProcDecl {
	for _, p := range prog.Procs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// --- Position conversion ---

// protoPos converts a compiler position (1-based) to LSP form (0-based).
func protoPos(p compiler.Position) protocol.Position {
	line := p.Line - 1
	col := p.Column - 1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(col),
	}
}

// spanRange converts a compiler span to an LSP range.
func spanRange(s compiler.Span) protocol.Range {
	return protocol.Range{Start: protoPos(s.Start), End: protoPos(s.End)}
}

// rangeAt builds a range covering the token at a position: the identifier
// under it when there is one, otherwise a single character.
func rangeAt(text string, pos compiler.Position) protocol.Range {
	start := protoPos(pos)
	end := start

	length := 1
	if pos.Offset >= 0 && pos.Offset < len(text) && isWordChar(rune(text[pos.Offset])) {
		i := pos.Offset
		for i < len(text) && isWordChar(rune(text[i])) {
			i++
		}
		length = i - pos.Offset
	}
	end.Character += protocol.UInteger(length)

	return protocol.Range{Start: start, End: end}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
