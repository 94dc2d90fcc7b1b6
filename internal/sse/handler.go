// Package sse streams JSON messages to HTTP clients as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	clientBufferSize  = 32
	keepaliveInterval = 30 * time.Second
)

// Handler is an HTTP handler that serves a stream of data using Server-Sent
// Events. Every message read from the source channel is sent to all clients
// connected at that moment.
type Handler[T any] struct {
	ctx context.Context
	b   *bus[T]
	log *slog.Logger

	// OnConnect, if set, resolves a message sent to each client right after
	// it connects (typically the current state).
	OnConnect func() T
}

// NewHandler starts fanning messages from ch out to connected clients until
// ctx is done.
func NewHandler[T any](ctx context.Context, ch <-chan T, log *slog.Logger) *Handler[T] {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler[T]{
		ctx: ctx,
		b:   newBus[T](),
		log: log,
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				h.b.clear()
				return
			case message, ok := <-ch:
				if !ok {
					return
				}
				if skipped := h.b.publish(message); skipped > 0 {
					h.log.Warn("sse clients too slow, message skipped", slog.Int("clients", skipped))
				}
			}
		}
	}()
	return h
}

// ServeHTTP opens a long-lived text/event-stream response and writes each
// message as a "data:" line holding its JSON encoding.
func (h *Handler[T]) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	accept := req.Header.Get("accept")
	if accept != "" && accept != "*/*" && !strings.HasPrefix(accept, "text/event-stream") {
		http.Error(res, fmt.Sprintf("content-type %s is not supported", accept), http.StatusBadRequest)
		return
	}
	flusher, ok := res.(http.Flusher)
	if !ok {
		http.Error(res, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	res.Header().Set("content-type", "text/event-stream")
	res.Header().Set("cache-control", "no-cache")
	res.Header().Set("connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// Register before sending the initial message so nothing published in
	// between is lost
	ch := make(chan T, clientBufferSize)
	h.b.register(ch)
	defer h.b.unregister(ch)

	if h.OnConnect != nil {
		h.write(res, h.OnConnect())
	} else {
		res.Write([]byte(":\n\n"))
	}
	flusher.Flush()

	h.log.Debug("sse connection opened", slog.String("remote_addr", req.RemoteAddr))
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-keepalive.C:
			res.Write([]byte(":\n\n"))
			flusher.Flush()
		case message := <-ch:
			h.write(res, message)
			flusher.Flush()
		case <-h.ctx.Done():
			h.log.Debug("server shutting down, closing sse connection", slog.String("remote_addr", req.RemoteAddr))
			return
		case <-req.Context().Done():
			h.log.Debug("sse connection closed", slog.String("remote_addr", req.RemoteAddr))
			return
		}
	}
}

func (h *Handler[T]) write(res http.ResponseWriter, message T) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to serialize sse message", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(res, "data: %s\n\n", data)
}
