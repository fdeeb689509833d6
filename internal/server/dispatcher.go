package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/cargotom-lsp/internal/analyzer"
	"github.com/dshills/cargotom-lsp/internal/analyzer/script"
	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

// Server dispatches spec.md §6's LSP surface to internal/analyzer, owning
// the per-workspace Provider, Workspace Graph, and Lockfile Snapshot that
// analyzer operations need. It is the generalization of the teacher's
// internal/lsp.Handler: that type translates one editor's input.Actions
// into requests sent to an external LSP server; this type sits on the
// other end of an equivalent wire protocol and answers directly.
type Server struct {
	transport *Transport
	logger    *log.Logger
	docs      *DocumentStore

	mu       sync.RWMutex
	root     string
	cfg      Config
	provider registry.Provider
	cache    *registry.Cache
	graph    workspace.Graph
	lock     workspace.LockfileSnapshot
	script   *script.Hook

	shuttingDown bool
}

// NewServer builds a Server bound to transport. Call Serve to run its
// request loop.
func NewServer(transport *Transport) *Server {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "cargotom-lsp"})
	s := &Server{
		transport: transport,
		logger:    logger,
		cfg:       DefaultConfig(),
	}
	s.docs = NewDocumentStore(s.publishDiagnostics)
	return s
}

// Serve runs the read/dispatch loop until the client sends `exit` or the
// stream closes.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return s.transport.Serve(ctx, func(method string, id json.RawMessage, params json.RawMessage) {
		if method == "exit" {
			cancel()
			return
		}
		s.handle(ctx, method, id, params)
	})
}

func (s *Server) handle(ctx context.Context, method string, id json.RawMessage, params json.RawMessage) {
	result, rpcErr := s.dispatch(ctx, method, params)
	if id == nil {
		// Notification: no response, but log dispatch errors since the
		// client will never see them otherwise.
		if rpcErr != nil {
			s.logger.Error("notification handling failed", "method", method, "error", rpcErr.Message)
		}
		return
	}
	if err := s.transport.WriteResponse(id, result, rpcErr); err != nil {
		s.logger.Error("write response failed", "method", method, "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	switch method {
	case "initialize":
		return s.handleInitialize(params)
	case "initialized":
		go s.discoverWorkspace()
		return nil, nil
	case "shutdown":
		s.mu.Lock()
		s.shuttingDown = true
		s.mu.Unlock()
		return nil, nil
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(params)
	case "textDocument/didOpen":
		return s.handleDidOpen(params)
	case "textDocument/didChange":
		return s.handleDidChange(params)
	case "textDocument/didSave":
		return s.handleDidSave(params)
	case "textDocument/didClose":
		return s.handleDidClose(params)
	case "textDocument/completion":
		return s.handleCompletion(ctx, params)
	case "textDocument/hover":
		return s.handleHover(ctx, params)
	case "textDocument/codeAction":
		return s.handleCodeAction(ctx, params)
	case "textDocument/inlayHint":
		return s.handleInlayHint(params)
	case "textDocument/formatting":
		return s.handleFormatting(params)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(ctx, params)
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

func decodeParams[T any](params json.RawMessage) (T, *RPCError) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return v, nil
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[InitializeParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	root := URIToFilePath(p.RootURI)
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}

	fileCfg, err := LoadFileConfig(root)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidRequest, Message: err.Error()}
	}
	cfg := MergeInitializationOptions(fileCfg, p.InitializationOptions)

	s.mu.Lock()
	s.root = root
	s.cfg = cfg
	s.provider = s.buildProvider(cfg)
	s.mu.Unlock()

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:   TextDocumentSyncKindFull,
			CompletionProvider: &CompletionOptions{TriggerCharacters: []string{"\"", "="}},
			HoverProvider:      true,
			CodeActionProvider: true,
			InlayHintProvider:  true,
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{"cargo-tom.openUrl", "cargo-tom.updateAll", "cargo-tom.upgradeAll"},
			},
			DocumentFormattingProvider: cfg.SortFormat,
		},
		ServerInfo: &InitializeServerInfo{Name: "cargotom-lsp", Version: "0.1.0"},
	}
	return result, nil
}

// buildProvider selects the online or offline Crate Info Provider backend
// per spec.md §4.3's `offline` config key, wrapping either in the shared
// TTL/single-flight Cache.
func (s *Server) buildProvider(cfg Config) *registry.Cache {
	var backend registry.Provider
	if cfg.Offline {
		backend = registry.NewOfflineProvider()
	} else {
		backend = registry.NewOnlineProvider(registry.WithLogger(s.logger))
	}
	cache := registry.NewCache(backend)
	s.cache = cache
	return cache
}

// discoverWorkspace runs the Workspace Index's filesystem walk off the
// dispatch thread, per spec.md §5's "Suspension points" (a filesystem walk
// must never block request handling).
func (s *Server) discoverWorkspace() {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	if root == "" {
		return
	}

	workspaceRoot := root
	if discovered, ok := workspace.DiscoverRoot(root); ok {
		workspaceRoot = discovered
	}

	graph, err := workspace.BuildGraph(workspaceRoot)
	if err != nil {
		s.logger.Warn("workspace graph build failed", "root", workspaceRoot, "error", err)
		graph = workspace.Graph{Root: workspace.Node{Path: workspaceRoot, InheritedDeps: map[string]manifest.Origin{}}}
	}
	lock, err := workspace.LoadLockfile(workspaceRoot)
	if err != nil {
		s.logger.Warn("lockfile load failed", "root", workspaceRoot, "error", err)
		lock = workspace.LockfileSnapshot{Packages: map[string][]workspace.ResolvedPackage{}}
	}

	scriptPath := workspaceRoot + string(os.PathSeparator) + ".cargotom.lua"
	hook, hookErr := script.Load(scriptPath)
	if hookErr != nil {
		hook = nil
	}

	s.mu.Lock()
	s.graph = graph
	s.lock = lock
	s.script = hook
	s.mu.Unlock()
}

func (s *Server) handleDidChangeConfiguration(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DidChangeConfigurationParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.mu.Lock()
	s.cfg = MergeInitializationOptions(s.cfg, p.Settings)
	s.mu.Unlock()
	return nil, nil
}

func (s *Server) snapshot() (Config, registry.Provider, workspace.Graph, workspace.LockfileSnapshot, *script.Hook) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.provider, s.graph, s.lock, s.script
}

func (s *Server) analyzerConfig() analyzer.Config {
	cfg, _, _, _, hook := s.snapshot()
	ac := cfg.AnalyzerConfig()
	ac.Script = hook
	return ac
}

// --- document lifecycle ---

func (s *Server) handleDidOpen(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DidOpenTextDocumentParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.docs.Open(p.TextDocument.URI, p.TextDocument.Version, p.TextDocument.Text)
	return nil, nil
}

func (s *Server) handleDidChange(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DidChangeTextDocumentParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(p.ContentChanges) == 0 {
		return nil, nil
	}
	// Full sync: the last change carries the whole document text.
	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	s.docs.Change(p.TextDocument.URI, p.TextDocument.Version, text)
	return nil, nil
}

func (s *Server) handleDidSave(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DidSaveTextDocumentParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.docs.FlushNow(p.TextDocument.URI)
	return nil, nil
}

func (s *Server) handleDidClose(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DidCloseTextDocumentParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.docs.Close(p.TextDocument.URI)
	return nil, nil
}

// cursorAt resolves the manifest.Cursor at pos for an open document.
func (s *Server) cursorAt(uri DocumentURI, pos Position) (*manifest.Document, manifest.Cursor, bool) {
	doc, pc, _, ok := s.docs.Get(uri)
	if !ok {
		return nil, manifest.Cursor{}, false
	}
	offset := pc.PositionToByteOffset(manifest.Position{Line: pos.Line, Character: pos.Character})
	return doc, manifest.Locate(doc, offset), true
}

func toRange(pc *manifest.PositionConverter, span manifest.Span) Range {
	// Span ends are inclusive; an LSP range end is exclusive.
	r := pc.ByteOffsetsToRange(span.Start, span.End+1)
	return Range{
		Start: Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func (s *Server) handleCompletion(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[CompletionParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	doc, cur, ok := s.cursorAt(p.TextDocument.URI, p.Position)
	if !ok {
		return CompletionList{}, nil
	}
	_, provider, graph, _, _ := s.snapshot()
	result := analyzer.Complete(ctx, doc, cur, graph, provider, s.analyzerConfig())

	items := make([]CompletionItem, 0, len(result.Items))
	_, pc, _, _ := s.docs.Get(p.TextDocument.URI)
	for _, it := range result.Items {
		item := CompletionItem{Label: it.Label, Detail: it.Detail, InsertText: it.InsertText}
		if it.Documentation != "" {
			item.Documentation = &MarkupContent{Kind: MarkupKindMarkdown, Value: it.Documentation}
		}
		if it.ReplaceSpan != (manifest.Span{}) && pc != nil {
			r := toRange(pc, it.ReplaceSpan)
			item.TextEdit = &TextEdit{Range: r, NewText: it.InsertText}
		}
		item.SortText = fmt.Sprintf("%08d-%s", it.SortRank, it.Label)
		items = append(items, item)
	}
	return CompletionList{IsIncomplete: result.Incomplete, Items: items}, nil
}

func (s *Server) handleHover(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[HoverParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	doc, cur, ok := s.cursorAt(p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}
	_, provider, _, _, _ := s.snapshot()
	content, ok := analyzer.Hover(ctx, doc, cur, provider, s.analyzerConfig())
	if !ok {
		return nil, nil
	}
	_, pc, _, _ := s.docs.Get(p.TextDocument.URI)
	hover := Hover{Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: content.Markdown}}
	if pc != nil && content.Span != (manifest.Span{}) {
		r := toRange(pc, content.Span)
		hover.Range = &r
	}
	return hover, nil
}

func (s *Server) handleCodeAction(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[CodeActionParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	doc, pc, _, ok := s.docs.Get(p.TextDocument.URI)
	if !ok {
		return []CodeAction{}, nil
	}
	offset := pc.PositionToByteOffset(manifest.Position{Line: p.Range.Start.Line, Character: p.Range.Start.Character})
	cur := manifest.Locate(doc, offset)

	_, provider, graph, _, _ := s.snapshot()
	actions := analyzer.Actions(ctx, doc, cur, graph, provider)

	out := make([]CodeAction, 0, len(actions))
	for _, a := range actions {
		wire := CodeAction{Title: a.Title}
		if len(a.Edits) > 0 {
			wire.Kind = CodeActionKindQuickFix
			changes := map[DocumentURI][]TextEdit{}
			for _, e := range a.Edits {
				changes[p.TextDocument.URI] = append(changes[p.TextDocument.URI], TextEdit{
					Range:   toRange(pc, e.Span),
					NewText: e.Replacement,
				})
			}
			wire.Edit = &WorkspaceEdit{Changes: changes}
		}
		if a.Command != "" {
			args := make([]any, 0, len(a.CommandArgs)+1)
			args = append(args, string(p.TextDocument.URI))
			for _, arg := range a.CommandArgs {
				args = append(args, arg)
			}
			wire.Command = &Command{Title: a.Title, Command: a.Command, Arguments: args}
		}
		out = append(out, wire)
	}
	return out, nil
}

func (s *Server) handleInlayHint(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[InlayHintParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	doc, pc, _, ok := s.docs.Get(p.TextDocument.URI)
	if !ok {
		return []InlayHint{}, nil
	}
	_, _, _, lock, _ := s.snapshot()
	hints := analyzer.InlayHints(doc, lock, pc)
	out := make([]InlayHint, 0, len(hints))
	for _, h := range hints {
		out = append(out, InlayHint{
			Position: Position{Line: h.Position.Line, Character: h.Position.Character},
			Label:    h.Label,
		})
	}
	return out, nil
}

func (s *Server) handleFormatting(params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[DocumentFormattingParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	doc, pc, _, ok := s.docs.Get(p.TextDocument.URI)
	if !ok {
		return []TextEdit{}, nil
	}
	cfg, _, _, _, _ := s.snapshot()
	edits := analyzer.Format(doc, cfg.SortFormat)
	out := make([]TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, TextEdit{Range: toRange(pc, e.Span), NewText: e.Replacement})
	}
	return out, nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	p, rpcErr := decodeParams[ExecuteCommandParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	switch p.Command {
	case "cargo-tom.openUrl":
		// The client-side editor owns opening a browser; the server's role
		// is just to have named the URL via a prior code action.
		return nil, nil
	case "cargo-tom.updateAll", "cargo-tom.upgradeAll":
		if len(p.Arguments) == 0 {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "missing document uri argument"}
		}
		uriStr, ok := p.Arguments[0].(string)
		if !ok {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "expected string document uri"}
		}
		s.docs.FlushNow(DocumentURI(uriStr))
		return nil, nil
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown command: %s", p.Command)}
	}
}

// publishDiagnostics runs the Analyzer's Diagnose pass for uri and sends a
// textDocument/publishDiagnostics notification, unless generation has been
// superseded by a newer edit (spec.md §5's ordering guarantee).
func (s *Server) publishDiagnostics(uri DocumentURI, generation uint64) {
	doc, pc, _, ok := s.docs.Get(uri)
	if !ok {
		return
	}
	cfg, provider, graph, _, _ := s.snapshot()
	ctx := context.Background()
	diags := analyzer.Diagnose(ctx, doc, graph, provider, cfg.AnalyzerConfig())
	if !s.docs.IsCurrent(uri, generation) {
		return
	}

	wire := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		wire = append(wire, Diagnostic{
			Range:    toRange(pc, d.Span),
			Severity: DiagnosticSeverity(d.Severity),
			Code:     string(d.Code),
			Source:   "cargotom",
			Message:  d.Message,
		})
	}
	if err := s.transport.Notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: wire}); err != nil {
		s.logger.Error("publish diagnostics failed", "uri", uri, "error", err)
	}
}
