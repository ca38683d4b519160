package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// NewMux mounts the RPC handlers and a health check.
func NewMux(svc Assistant, opts ...connect.HandlerOption) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler := NewHandler(svc, opts...)
	mux.Handle(path, handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve runs an HTTP server for svc until ctx is done, then shuts it down
// within the configured timeout. ready, when non-nil, receives the bound
// address once the listener is open.
func Serve(ctx context.Context, cfg *Config, svc Assistant, ready func(addr string)) error {
	merged := DefaultConfig()
	merged.Merge(cfg)

	ln, err := net.Listen("tcp", merged.Addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	srv := &http.Server{
		Handler:           NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.Serve(ln) }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), merged.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
