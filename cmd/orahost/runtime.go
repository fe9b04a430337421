package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tomyedwab/oracledb/internal/auth"
	"github.com/tomyedwab/oracledb/sqlproxy/host"
	"github.com/tomyedwab/oracledb/wasi/types"
)

// hostErrorFlag marks a sql_host_handler result whose buffer holds an error.
const hostErrorFlag = 1 << 32

type contextKey int

const contextKeyResponse contextKey = iota

// guestResponse collects what the guest writes while serving one request.
type guestResponse struct {
	body []byte
}

// guestHost exposes the env module imported by guest modules and routes HTTP
// requests to the handlers they register.
type guestHost struct {
	logger     *slog.Logger
	sqlHost    *host.SQLHost
	mux        *http.ServeMux
	middleware []func(http.HandlerFunc) http.HandlerFunc

	// Guest calls are serialized; a module instance is single threaded.
	mu sync.Mutex
}

func readBytes(m api.Module, offset, byteCount uint32) ([]byte, error) {
	buf, ok := m.Memory().Read(offset, byteCount)
	if !ok {
		return nil, fmt.Errorf("Memory.Read(%d, %d) out of range", offset, byteCount)
	}
	return buf, nil
}

// writeBytes copies data into a guest buffer and returns the buffer handle.
func writeBytes(ctx context.Context, m api.Module, data []byte) (uint32, error) {
	alloc := m.ExportedFunction("alloc_bytes")
	if alloc == nil {
		return 0, fmt.Errorf("guest does not export alloc_bytes")
	}
	result, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("alloc_bytes: %w", err)
	}
	handle := uint32(result[0] >> 32)
	ptr := uint32(result[0])
	if !m.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("Memory.Write(%d, %d) out of range", ptr, len(data))
	}
	return handle, nil
}

func freeBytes(ctx context.Context, m api.Module, handle uint32) {
	if free := m.ExportedFunction("free_bytes"); free != nil {
		free.Call(ctx, uint64(handle))
	}
}

// instantiate registers the env host module with r.
func (g *guestHost) instantiate(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(g.writeResponse).Export("write_response").
		NewFunctionBuilder().WithFunc(g.registerHandler).Export("register_handler").
		NewFunctionBuilder().WithFunc(g.sqlHostHandler).Export("sql_host_handler").
		Instantiate(ctx)
	return err
}

func (g *guestHost) registerHandler(ctx context.Context, m api.Module, uriOffset, uriByteCount, handlerID uint32) {
	uri, err := readBytes(m, uriOffset, uriByteCount)
	if err != nil {
		g.logger.Error("register_handler: bad uri", "error", err)
		return
	}
	g.logger.Info("registering handler", "handler", handlerID, "uri", string(uri))

	h := func(w http.ResponseWriter, r *http.Request) {
		g.serveGuest(w, r, m, handlerID)
	}
	g.mux.HandleFunc(string(uri), auth.Chain(h, g.middleware...))
}

func (g *guestHost) serveGuest(w http.ResponseWriter, r *http.Request, m api.Module, handlerID uint32) {
	params, err := requestParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := json.Marshal(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	resp := &guestResponse{}
	ctx := context.WithValue(r.Context(), contextKeyResponse, resp)

	handle, err := writeBytes(ctx, m, payload)
	if err != nil {
		g.logger.Error("failed to pass request to guest", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	handlerFn := m.ExportedFunction("handle_request")
	if handlerFn == nil {
		freeBytes(ctx, m, handle)
		g.logger.Error("guest does not export handle_request")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	result, err := handlerFn.Call(ctx, uint64(handle), uint64(handlerID))
	if err != nil || int32(result[0]) != 0 {
		g.logger.Error("guest request failed", "path", r.URL.Path, "error", err, "body", string(resp.body))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeGuestResponse(w, resp.body)
}

// requestParams describes r for the guest, including the caller's profile.
func requestParams(r *http.Request) (types.RequestParams, error) {
	params := types.RequestParams{
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return params, fmt.Errorf("read request body: %w", err)
		}
		params.Body = string(body)
	}
	if claims, ok := auth.FromContext(r.Context()); ok {
		params.Profile = claims.Profile
	}
	return params, nil
}

// writeGuestResponse writes the types.Response encoded in body.
func writeGuestResponse(w http.ResponseWriter, body []byte) {
	var resp types.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.WriteHeader(resp.Status)
	w.Write([]byte(resp.Body))
}

func (g *guestHost) writeResponse(ctx context.Context, m api.Module, respOffset, respByteCount uint32) {
	resp, ok := ctx.Value(contextKeyResponse).(*guestResponse)
	if !ok {
		g.logger.Error("write_response called outside of a request")
		return
	}
	body, err := readBytes(m, respOffset, respByteCount)
	if err != nil {
		g.logger.Error("write_response: bad buffer", "error", err)
		return
	}
	resp.body = append(resp.body[:0], body...)
}

func (g *guestHost) sqlHostHandler(ctx context.Context, m api.Module, reqOffset, reqByteCount uint32) uint64 {
	var (
		response []byte
		flag     uint64
	)
	request, err := readBytes(m, reqOffset, reqByteCount)
	if err == nil {
		g.logger.Debug("sql request", "request", string(request))
		response, err = g.sqlHost.HandleRequest(request)
	}
	if err != nil {
		g.logger.Warn("sql request failed", "error", err)
		response, flag = []byte(err.Error()), hostErrorFlag
	}

	handle, err := writeBytes(ctx, m, response)
	if err != nil {
		// The guest cannot be told about a failure to reach its memory.
		panic(err)
	}
	return uint64(handle) | flag
}
