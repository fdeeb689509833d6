package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Transport speaks the LSP base protocol (Content-Length-framed JSON-RPC
// 2.0) over a pair of streams. It is the mirror image of the teacher's
// internal/lsp/Transport: that one issues requests and waits on responses
// from an external server; this one receives requests/notifications from
// an editor and writes responses/notifications back. The header framing
// (readMessage/send) is unchanged since the wire format is symmetric.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
}

// incomingMessage is a JSON-RPC request or notification from the client.
// ID is nil for notifications.
type incomingMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// outgoingResponse is a JSON-RPC response to a request.
type outgoingResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// outgoingNotification is a server-initiated JSON-RPC notification (no id).
type outgoingNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewTransport builds a Transport reading requests from r and writing
// responses/notifications to w.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{reader: bufio.NewReaderSize(r, 64*1024), writer: w}
}

// ReadMessage blocks for the next Content-Length-framed JSON-RPC message.
func (t *Transport) ReadMessage() (method string, id json.RawMessage, params json.RawMessage, err error) {
	body, err := t.readFrame()
	if err != nil {
		return "", nil, nil, err
	}
	var msg incomingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", nil, nil, fmt.Errorf("decode message: %w", err)
	}
	var idRaw json.RawMessage
	if msg.ID != nil {
		idRaw = *msg.ID
	}
	return msg.Method, idRaw, msg.Params, nil
}

func (t *Transport) readFrame() ([]byte, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				n, convErr := strconv.Atoi(strings.TrimSpace(parts[1]))
				if convErr == nil {
					contentLength = n
				}
			}
		}
	}
	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// WriteResponse sends a JSON-RPC response for request id.
func (t *Transport) WriteResponse(id json.RawMessage, result any, rpcErr *RPCError) error {
	return t.send(outgoingResponse{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr})
}

// Notify sends a server-initiated notification.
func (t *Transport) Notify(method string, params any) error {
	return t.send(outgoingNotification{JSONRPC: "2.0", Method: method, Params: params})
}

func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Serve reads messages until ctx is cancelled or the stream closes,
// invoking handle for each. handle receives the raw params so the
// Dispatcher can unmarshal into the method-specific type; a nil id means
// the message was a notification.
func (t *Transport) Serve(ctx context.Context, handle func(method string, id json.RawMessage, params json.RawMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		method, id, params, err := t.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		handle(method, id, params)
	}
}
