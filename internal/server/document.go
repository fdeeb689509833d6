package server

import (
	"sync"
	"time"

	"github.com/dshills/cargotom-lsp/internal/integration"
	"github.com/dshills/cargotom-lsp/internal/manifest"
)

// defaultDebounceDelay matches spec.md §5's debounced diagnostic task
// cadence: long enough to coalesce keystrokes, short enough to feel live.
const defaultDebounceDelay = 250 * time.Millisecond

// managedDocument is the Server Facade's per-document state: the parsed
// Manifest Model, its version, and the generation counter spec.md §5 uses
// to drop results from a superseded edit.
type managedDocument struct {
	uri        DocumentURI
	version    int
	content    string
	doc        *manifest.Document
	pc         *manifest.PositionConverter
	generation uint64
	debouncer  *integration.Debouncer
}

// DocumentStore owns every open document and the debounced diagnostic task
// scheduled for each, per spec.md §4.6/§5. It is adapted from the
// teacher's internal/lsp.DocumentManager: the same open/change/close
// lifecycle and per-document lock, retargeted from "buffer the client is
// editing" to "manifest the server is analyzing" and generalized from a
// single global debounce to one Debouncer per document (edits to
// unrelated documents must not reset each other's debounce window).
type DocumentStore struct {
	mu        sync.RWMutex
	docs      map[DocumentURI]*managedDocument
	delay     time.Duration
	onDiagnose func(uri DocumentURI, generation uint64)
}

// NewDocumentStore builds a store that invokes onDiagnose after the
// debounce delay following each edit, once per document.
func NewDocumentStore(onDiagnose func(uri DocumentURI, generation uint64)) *DocumentStore {
	return &DocumentStore{
		docs:       make(map[DocumentURI]*managedDocument),
		delay:      defaultDebounceDelay,
		onDiagnose: onDiagnose,
	}
}

// Open registers a newly opened document and schedules its first diagnostic pass.
func (s *DocumentStore) Open(uri DocumentURI, version int, text string) {
	s.mu.Lock()
	md := &managedDocument{
		uri:     uri,
		version: version,
		content: text,
		doc:     manifest.Parse(text),
		pc:      manifest.NewPositionConverter(text),
	}
	md.debouncer = integration.NewDebouncer(s.delay, s.diagnoseFunc(md))
	s.docs[uri] = md
	s.mu.Unlock()

	md.debouncer.Call()
}

// Change applies a full-content replacement (spec.md's Server Facade uses
// TextDocumentSyncKindFull, so every change carries the whole document,
// matching the teacher's ReplaceContent path rather than its incremental
// applyTextChange path) and reschedules diagnostics, superseding a pass
// still waiting out the debounce delay. A pass already running is not
// stopped; its result for the old generation fails IsCurrent.
func (s *DocumentStore) Change(uri DocumentURI, version int, text string) {
	s.mu.Lock()
	md, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return
	}
	md.version = version
	md.content = text
	md.doc = manifest.Parse(text)
	md.pc = manifest.NewPositionConverter(text)
	md.generation++
	s.mu.Unlock()

	md.debouncer.Call()
}

// Close removes a document and cancels its pending debounce.
func (s *DocumentStore) Close(uri DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if md, ok := s.docs[uri]; ok {
		md.debouncer.Cancel()
		delete(s.docs, uri)
	}
}

// FlushNow runs the diagnostic pass immediately instead of waiting for the
// debounce window, used on textDocument/didSave per editors' expectation
// of prompt post-save feedback.
func (s *DocumentStore) FlushNow(uri DocumentURI) {
	s.mu.RLock()
	md, ok := s.docs[uri]
	s.mu.RUnlock()
	if ok {
		md.debouncer.CallImmediate()
	}
}

// Get returns the current parsed state of an open document.
func (s *DocumentStore) Get(uri DocumentURI) (doc *manifest.Document, pc *manifest.PositionConverter, generation uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, found := s.docs[uri]
	if !found {
		return nil, nil, 0, false
	}
	return md.doc, md.pc, md.generation, true
}

// Content returns the raw text of an open document.
func (s *DocumentStore) Content(uri DocumentURI) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.docs[uri]
	if !ok {
		return "", false
	}
	return md.content, true
}

// IsCurrent reports whether generation still matches the document's latest
// edit, per spec.md §5's "results from a superseded generation are
// dropped" ordering guarantee.
func (s *DocumentStore) IsCurrent(uri DocumentURI, generation uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.docs[uri]
	return ok && md.generation == generation
}

func (s *DocumentStore) diagnoseFunc(md *managedDocument) func() {
	return func() {
		if s.onDiagnose == nil {
			return
		}
		s.mu.RLock()
		gen := md.generation
		s.mu.RUnlock()
		s.onDiagnose(md.uri, gen)
	}
}
