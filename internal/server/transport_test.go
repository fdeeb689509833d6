package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestTransportReadMessageParsesRequestAndNotification(t *testing.T) {
	var buf bytes.Buffer
	writeFrame(&buf, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"processId":1}}`)
	writeFrame(&buf, `{"jsonrpc":"2.0","method":"initialized","params":{}}`)

	tr := NewTransport(&buf, &bytes.Buffer{})

	method, id, params, err := tr.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "initialize" || id == nil || string(id) != "1" {
		t.Fatalf("unexpected first message: method=%q id=%s params=%s", method, id, params)
	}

	method, id, _, err = tr.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "initialized" || id != nil {
		t.Fatalf("expected a notification with nil id, got method=%q id=%s", method, id)
	}
}

func TestTransportWriteResponseFramesCorrectly(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(&bytes.Buffer{}, &out)

	if err := tr.WriteResponse(json.RawMessage("7"), map[string]string{"ok": "yes"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := readOneFrame(t, &out)
	var resp outgoingResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if string(resp.ID) != "7" || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTransportWriteResponseWithError(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(&bytes.Buffer{}, &out)

	rpcErr := &RPCError{Code: CodeMethodNotFound, Message: "not found"}
	if err := tr.WriteResponse(json.RawMessage("1"), nil, rpcErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := readOneFrame(t, &out)
	var resp outgoingResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected the method-not-found error to round-trip, got %+v", resp.Error)
	}
}

func TestTransportNotifySendsNoID(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(&bytes.Buffer{}, &out)

	if err := tr.Notify("textDocument/publishDiagnostics", map[string]any{"uri": "file:///a.toml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := readOneFrame(t, &out)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg, &raw); err != nil {
		t.Fatal(err)
	}
	if _, hasID := raw["id"]; hasID {
		t.Fatal("expected a notification to carry no id field")
	}
	if _, hasMethod := raw["method"]; !hasMethod {
		t.Fatal("expected a method field")
	}
}

func TestTransportServeDispatchesUntilEOF(t *testing.T) {
	var in bytes.Buffer
	writeFrame(&in, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	writeFrame(&in, `{"jsonrpc":"2.0","method":"initialized","params":{}}`)

	tr := NewTransport(&in, &bytes.Buffer{})

	var got []string
	err := tr.Serve(context.Background(), func(method string, id json.RawMessage, params json.RawMessage) {
		got = append(got, method)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "initialize" || got[1] != "initialized" {
		t.Fatalf("unexpected dispatch order: %v", got)
	}
}

func TestTransportServeReturnsImmediatelyOnAlreadyCancelledContext(t *testing.T) {
	var in bytes.Buffer
	writeFrame(&in, `{"jsonrpc":"2.0","method":"initialized","params":{}}`)
	tr := NewTransport(&in, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := tr.Serve(ctx, func(string, json.RawMessage, json.RawMessage) { called = true })
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("expected the handler to never run once the context was already cancelled")
	}
}

func TestTransportServeReturnsNilOnEOF(t *testing.T) {
	tr := NewTransport(&bytes.Buffer{}, &bytes.Buffer{})
	done := make(chan error, 1)
	go func() {
		done <- tr.Serve(context.Background(), func(string, json.RawMessage, json.RawMessage) {})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on EOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on immediate EOF")
	}
}

func writeFrame(buf *bytes.Buffer, body string) {
	fmt.Fprintf(buf, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func readOneFrame(t *testing.T, buf *bytes.Buffer) []byte {
	t.Helper()
	data := buf.Bytes()
	sep := []byte("\r\n\r\n")
	idx := bytes.Index(data, sep)
	if idx < 0 {
		t.Fatalf("no header/body separator found in %q", data)
	}
	return data[idx+len(sep):]
}
