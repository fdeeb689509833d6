package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
)

// daemonIdleTimeout is how long the daemon waits with zero connected
// clients before exiting, per spec.md §5's "the daemon exits after an idle
// timeout with no clients".
const daemonIdleTimeout = 10 * time.Minute

// DaemonRequest is one IPC call, per spec.md §5's daemon protocol:
// `{id, op, args}`.
type DaemonRequest struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// DaemonResponse answers a DaemonRequest: `{id, ok|err, payload}`.
type DaemonResponse struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Err     string          `json:"err,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Daemon holds a single shared Crate Info Provider behind a loopback TCP
// listener, so multiple editor sessions on one machine reuse the same
// cache and single-flight group instead of each cold-starting their own,
// per spec.md §4.6's `daemon: true` option and §5's "Daemon mode".
type Daemon struct {
	listener net.Listener
	provider registry.Provider
	logger   *log.Logger

	mu           sync.Mutex
	clients      int
	lastActivity time.Time
}

// NewDaemon builds a Daemon over provider (already Cache-wrapped by the
// caller) and an optional Redis address for a shared, cross-restart L2
// cache in front of it — spec.md §4.3's Cache TTL policy survives a daemon
// restart when Redis is configured, and degrades to the in-process Cache
// alone when it is not (Redis is opt-in per DESIGN.md).
func NewDaemon(provider registry.Provider, redisAddr string, logger *log.Logger) *Daemon {
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		provider = &redisBackedProvider{client: client, upstream: provider, logger: logger}
	}
	return &Daemon{provider: provider, logger: logger, lastActivity: time.Now()}
}

// ListenAndServe starts the TCP IPC listener on addr and blocks until ctx
// is cancelled or the idle timeout fires with zero connected clients.
func (d *Daemon) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("daemon listen: %w", err)
	}
	d.listener = ln
	defer ln.Close()

	go d.watchIdle(ctx)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		d.mu.Lock()
		d.clients++
		d.lastActivity = time.Now()
		d.mu.Unlock()

		go d.serveConn(ctx, conn)
	}
}

func (d *Daemon) watchIdle(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			idle := d.clients == 0 && time.Since(d.lastActivity) > daemonIdleTimeout
			d.mu.Unlock()
			if idle {
				d.logger.Info("daemon idle timeout reached, shutting down")
				d.listener.Close()
				return
			}
		}
	}
}

func (d *Daemon) serveConn(ctx context.Context, conn net.Conn) {
	session := newSessionID()
	d.logger.Info("daemon client connected", "session", session, "remote", conn.RemoteAddr())
	defer conn.Close()
	defer func() {
		d.mu.Lock()
		d.clients--
		d.lastActivity = time.Now()
		d.mu.Unlock()
		d.logger.Info("daemon client disconnected", "session", session)
	}()

	for {
		req, err := readFramed[DaemonRequest](conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.logger.Warn("daemon read failed", "session", session, "error", err)
			}
			return
		}

		d.mu.Lock()
		d.lastActivity = time.Now()
		d.mu.Unlock()

		resp := d.handleRequest(ctx, req)
		if err := writeFramed(conn, resp); err != nil {
			d.logger.Warn("daemon write failed", "session", session, "error", err)
			return
		}
	}
}

func (d *Daemon) handleRequest(ctx context.Context, req DaemonRequest) DaemonResponse {
	start := time.Now()
	payload, err := d.dispatch(ctx, req)
	if err != nil {
		return DaemonResponse{ID: req.ID, OK: false, Err: err.Error()}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return DaemonResponse{ID: req.ID, OK: false, Err: err.Error()}
	}
	// Stamp a took_ms field onto object-shaped payloads (lookup, features)
	// without a per-op wrapper struct. Array-shaped payloads (versions,
	// search) are left untouched since sjson has no key to attach to at
	// the root of an array.
	if len(data) > 0 && data[0] == '{' {
		if stamped, err := sjson.SetBytes(data, "took_ms", time.Since(start).Milliseconds()); err == nil {
			data = stamped
		}
	}
	return DaemonResponse{ID: req.ID, OK: true, Payload: data}
}

func (d *Daemon) dispatch(ctx context.Context, req DaemonRequest) (any, error) {
	switch req.Op {
	case "lookup":
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return d.provider.Lookup(ctx, args.Name)
	case "versions":
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return d.provider.Versions(ctx, args.Name)
	case "features":
		var args struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		v, err := semver.ParseVersion(args.Version)
		if err != nil {
			return nil, err
		}
		return d.provider.Features(ctx, args.Name, v)
	case "search":
		var args struct {
			Prefix  string `json:"prefix"`
			Page    int    `json:"page"`
			PerPage int    `json:"per_page"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return d.provider.Search(ctx, args.Prefix, args.Page, args.PerPage)
	default:
		return nil, fmt.Errorf("daemon: unknown op %q", req.Op)
	}
}

// StatusRouter builds the chi-routed /status and /healthz HTTP endpoints
// spec.md §5 describes as a second, read-only loopback surface, separate
// from the LSP and daemon-IPC protocols.
func (d *Daemon) StatusRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		clients := d.clients
		d.mu.Unlock()

		status := struct {
			Clients int             `json:"clients"`
			Cache   *registry.Stats `json:"cache,omitempty"`
		}{Clients: clients}
		if cache, ok := d.provider.(*registry.Cache); ok {
			stats := cache.Stats()
			status.Cache = &stats
		}
		data, err := json.Marshal(status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(pretty.Pretty(data))
	})
	return r
}

// readFramed reads one 4-byte-big-endian-length-prefixed JSON message.
func readFramed[T any](r io.Reader) (T, error) {
	var v T
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return v, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, err
	}
	return v, nil
}

// writeFramed writes v as a 4-byte-big-endian-length-prefixed JSON message.
func writeFramed(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// newSessionID generates a daemon client session identifier, attached to
// every log line serveConn emits for one connection so a multi-client
// daemon's log can be filtered per session.
func newSessionID() string {
	return uuid.New().String()
}

// redisBackedProvider fronts upstream with a Redis-backed record cache,
// keyed by crate name, so a daemon restart does not cold-start every
// completion in a workspace at once. Only Lookup is cached: Versions and
// Features are derivable from the same CrateRecord in the common case, and
// Search results are too query-shaped to cache usefully.
type redisBackedProvider struct {
	client   *redis.Client
	upstream registry.Provider
	logger   *log.Logger
}

func (p *redisBackedProvider) Lookup(ctx context.Context, name string) (registry.CrateRecord, error) {
	key := "cargotom:crate:" + name
	if data, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var rec registry.CrateRecord
		if json.Unmarshal(data, &rec) == nil {
			return rec, nil
		}
	}
	rec, err := p.upstream.Lookup(ctx, name)
	if err != nil {
		return rec, err
	}
	if data, err := json.Marshal(rec); err == nil {
		if err := p.client.Set(ctx, key, data, time.Hour).Err(); err != nil {
			p.logger.Warn("redis cache write failed", "key", key, "error", err)
		}
	}
	return rec, nil
}

func (p *redisBackedProvider) Versions(ctx context.Context, name string) ([]registry.CrateVersion, error) {
	return p.upstream.Versions(ctx, name)
}

func (p *redisBackedProvider) Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error) {
	return p.upstream.Features(ctx, name, version)
}

func (p *redisBackedProvider) Search(ctx context.Context, prefix string, page, perPage int) ([]registry.SearchResult, error) {
	return p.upstream.Search(ctx, prefix, page, perPage)
}
