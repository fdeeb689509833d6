package server

import (
	"sync"
	"testing"
	"time"
)

// newTestStore builds a DocumentStore with a short debounce delay and a
// channel-fed onDiagnose callback, so tests can wait for a diagnostic pass
// instead of sleeping past an arbitrary guess.
func newTestStore() (*DocumentStore, chan uint64) {
	fired := make(chan uint64, 16)
	s := NewDocumentStore(func(uri DocumentURI, generation uint64) {
		fired <- generation
	})
	s.delay = 10 * time.Millisecond
	return s, fired
}

func TestDocumentStoreOpenSchedulesFirstDiagnosticPass(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")

	select {
	case gen := <-fired:
		if gen != 0 {
			t.Fatalf("expected generation 0 on first pass, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial diagnostic pass")
	}
}

func TestDocumentStoreChangeBumpsGenerationAndRedebounces(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")
	<-fired // drain the open-triggered pass

	s.Change("file:///Cargo.toml", 2, "[dependencies]\nserde = \"1.0\"\n")

	select {
	case gen := <-fired:
		if gen != 1 {
			t.Fatalf("expected generation 1 after one change, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-change diagnostic pass")
	}
}

func TestDocumentStoreRapidChangesCoalesceIntoOnePass(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")
	<-fired

	for i := 0; i < 5; i++ {
		s.Change("file:///Cargo.toml", i+2, "[dependencies]\nserde = \"1.0\"\n")
	}

	select {
	case gen := <-fired:
		if gen != 5 {
			t.Fatalf("expected the final generation 5, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for coalesced diagnostic pass")
	}

	select {
	case gen := <-fired:
		t.Fatalf("expected only one diagnostic pass for coalesced edits, got extra generation %d", gen)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDocumentStoreIsCurrentDetectsStaleGeneration(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")
	<-fired

	s.Change("file:///Cargo.toml", 2, "[dependencies]\nserde = \"1.0\"\n")
	if s.IsCurrent("file:///Cargo.toml", 0) {
		t.Fatal("expected generation 0 to be stale after a change")
	}
	if !s.IsCurrent("file:///Cargo.toml", 1) {
		t.Fatal("expected generation 1 to be current")
	}
	<-fired
}

func TestDocumentStoreCloseCancelsPendingDiagnostics(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")
	<-fired

	s.Change("file:///Cargo.toml", 2, "[dependencies]\nserde = \"1.0\"\n")
	s.Close("file:///Cargo.toml")

	select {
	case gen := <-fired:
		t.Fatalf("expected no diagnostic pass after close, got generation %d", gen)
	case <-time.After(100 * time.Millisecond):
	}

	if _, _, _, ok := s.Get("file:///Cargo.toml"); ok {
		t.Fatal("expected document to be removed from the store after close")
	}
}

func TestDocumentStoreFlushNowRunsImmediately(t *testing.T) {
	s, fired := newTestStore()
	s.delay = time.Hour // would never fire on its own within this test
	s.Open("file:///Cargo.toml", 1, "[dependencies]\n")
	s.FlushNow("file:///Cargo.toml")
	<-fired // Open only schedules its pass; FlushNow runs it at once

	s.Change("file:///Cargo.toml", 2, "[dependencies]\nserde = \"1.0\"\n")
	s.FlushNow("file:///Cargo.toml")

	select {
	case gen := <-fired:
		if gen != 1 {
			t.Fatalf("expected generation 1 from the flushed pass, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for FlushNow to trigger the diagnostic pass")
	}
}

func TestDocumentStoreGetReturnsParsedDocumentAndContent(t *testing.T) {
	s, fired := newTestStore()
	s.Open("file:///Cargo.toml", 1, "[dependencies]\nserde = \"1.0\"\n")
	<-fired

	doc, pc, gen, ok := s.Get("file:///Cargo.toml")
	if !ok || doc == nil || pc == nil {
		t.Fatal("expected an open document with a parsed model and position converter")
	}
	if gen != 0 {
		t.Fatalf("expected generation 0 right after Open, got %d", gen)
	}

	content, ok := s.Content("file:///Cargo.toml")
	if !ok || content != "[dependencies]\nserde = \"1.0\"\n" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestDocumentStoreConcurrentEditsOfDifferentDocumentsDoNotInterfere(t *testing.T) {
	s, fired := newTestStore()
	uris := []DocumentURI{"file:///a/Cargo.toml", "file:///b/Cargo.toml"}
	for _, uri := range uris {
		s.Open(uri, 1, "[dependencies]\n")
	}

	seen := map[uint64]int{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		gen := <-fired
		mu.Lock()
		seen[gen]++
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		gen := <-fired
		mu.Lock()
		seen[gen]++
		mu.Unlock()
	}()
	wg.Wait()

	if seen[0] != 2 {
		t.Fatalf("expected both independent documents to reach generation 0, got %+v", seen)
	}
}
