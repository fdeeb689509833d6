package server

import (
	"net/url"
	"path/filepath"
	"runtime"
)

// FilePathToURI converts a local file path to a `file://` DocumentURI,
// adapted unchanged from the teacher's internal/lsp/protocol.go (the
// conversion is symmetric regardless of which side of the protocol is
// running it).
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	path = filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}
	u := &url.URL{Scheme: "file", Path: path}
	return DocumentURI(u.String())
}

// URIToFilePath converts a `file://` DocumentURI back to a local file path.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(string(uri))
	if err != nil {
		return string(uri)
	}
	if u.Scheme != "file" {
		return string(uri)
	}
	path := u.Path
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

// The types below are the LSP wire shapes for the surface spec.md §6
// names: initialize/initialized/shutdown/exit,
// textDocument/{didOpen,didChange,didSave,didClose},
// textDocument/{completion,hover,codeAction,inlayHint,formatting}, and
// workspace/executeCommand. Field names and JSON tags follow the LSP
// specification, mirroring the teacher's internal/lsp/protocol.go (which
// implements the same wire shapes from the client side) rather than
// inventing a parallel vocabulary.

// DocumentURI is a `file://`-scheme URI identifying a text document.
type DocumentURI string

// Position is a zero-based line/UTF-16-character position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end Position pair.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier adds a version number to a document identity.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem transfers a whole document from client to server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams pairs a document identity with a position in it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit is a single textual replacement.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// TextDocumentContentChangeEvent describes one incremental (or full) edit.
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength int    `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// MarkupContent is human-readable markdown or plain text.
type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// MarkupKind selects MarkupContent's rendering.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// Command is a reference to a named, server-defined command with arguments.
type Command struct {
	Title     string `json:"title"`
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// WorkspaceFolder is one root the client asked the server to service.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// WorkspaceEdit is a set of per-document text edits.
type WorkspaceEdit struct {
	Changes map[DocumentURI][]TextEdit `json:"changes,omitempty"`
}

// --- Lifecycle ---

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProcessID             int               `json:"processId"`
	RootURI               DocumentURI       `json:"rootUri,omitempty"`
	InitializationOptions RawConfig         `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// RawConfig is the untyped initializationOptions/didChangeConfiguration
// payload; Config.Merge decodes only the keys spec.md §4.6 documents and
// ignores the rest.
type RawConfig map[string]any

// InitializeResult answers the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities    `json:"capabilities"`
	ServerInfo   *InitializeServerInfo `json:"serverInfo,omitempty"`
}

// InitializeServerInfo names this server for the client's log/UI.
type InitializeServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities advertises which of spec.md §6's methods this server
// implements.
type ServerCapabilities struct {
	TextDocumentSync           TextDocumentSyncKind `json:"textDocumentSync"`
	CompletionProvider         *CompletionOptions   `json:"completionProvider,omitempty"`
	HoverProvider              bool                 `json:"hoverProvider,omitempty"`
	CodeActionProvider         bool                 `json:"codeActionProvider,omitempty"`
	InlayHintProvider          bool                 `json:"inlayHintProvider,omitempty"`
	DocumentFormattingProvider bool                 `json:"documentFormattingProvider,omitempty"`
	ExecuteCommandProvider     *ExecuteCommandOptions `json:"executeCommandProvider,omitempty"`
}

// CompletionOptions declares completion triggers.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// ExecuteCommandOptions lists the commands spec.md §6 names.
type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

// TextDocumentSyncKind selects how document content changes are reported.
type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone TextDocumentSyncKind = 0
	TextDocumentSyncKindFull TextDocumentSyncKind = 1
)

// --- Document sync ---

// DidOpenTextDocumentParams are parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are parameters for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams are parameters for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams are parameters for textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeConfigurationParams carries the client's live configuration
// updates (spec.md §4.6's second configuration source).
type DidChangeConfigurationParams struct {
	Settings RawConfig `json:"settings"`
}

// --- Completion ---

// CompletionParams are parameters for textDocument/completion.
type CompletionParams struct {
	TextDocumentPositionParams
}

// CompletionList is the completion response envelope.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	Label      string    `json:"label"`
	Detail     string    `json:"detail,omitempty"`
	Documentation *MarkupContent `json:"documentation,omitempty"`
	InsertText string    `json:"insertText,omitempty"`
	TextEdit   *TextEdit `json:"textEdit,omitempty"`
	SortText   string    `json:"sortText,omitempty"`
}

// --- Hover ---

// HoverParams are parameters for textDocument/hover.
type HoverParams struct {
	TextDocumentPositionParams
}

// Hover is the hover response.
type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// --- Diagnostics ---

// PublishDiagnosticsParams is the textDocument/publishDiagnostics notification body.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic mirrors LSP's Diagnostic shape.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     string             `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// DiagnosticSeverity mirrors LSP's severity ordinals.
type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// --- Code actions ---

// CodeActionParams are parameters for textDocument/codeAction.
type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Context      CodeActionContext      `json:"context"`
}

// CodeActionContext carries the diagnostics visible at the requested range.
type CodeActionContext struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// CodeAction is a named fix or command offered to the client.
type CodeAction struct {
	Title   string         `json:"title"`
	Kind    CodeActionKind `json:"kind,omitempty"`
	Edit    *WorkspaceEdit `json:"edit,omitempty"`
	Command *Command       `json:"command,omitempty"`
}

// CodeActionKind classifies a CodeAction for client filtering.
type CodeActionKind string

const (
	CodeActionKindQuickFix CodeActionKind = "quickfix"
	CodeActionKindRefactor CodeActionKind = "refactor.rewrite"
)

// --- Inlay hints ---

// InlayHintParams are parameters for textDocument/inlayHint.
type InlayHintParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

// InlayHint is one lockfile-resolved-version annotation.
type InlayHint struct {
	Position Position `json:"position"`
	Label    string   `json:"label"`
	Kind     int      `json:"kind,omitempty"`
	PaddingLeft bool  `json:"paddingLeft,omitempty"`
}

// --- Formatting ---

// DocumentFormattingParams are parameters for textDocument/formatting.
type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- executeCommand ---

// ExecuteCommandParams are parameters for workspace/executeCommand. spec.md
// §6 names three commands: cargo-tom.openUrl, cargo-tom.updateAll,
// cargo-tom.upgradeAll.
type ExecuteCommandParams struct {
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// ShowMessageParams is a window/showMessage notification body, used for the
// Provider "Unavailable" one-time notice (spec.md §7).
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// MessageType mirrors LSP's window/showMessage severity.
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
)
